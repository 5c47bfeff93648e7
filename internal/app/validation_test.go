package app

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omnixys/omnixys-person-service/internal/domain"
)

func violationsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var violations *domain.ConstraintViolationsError
	require.True(t, errors.As(err, &violations), "expected constraint violations, got %v", err)
	out := make(map[string]string, len(violations.Violations))
	for _, v := range violations.Violations {
		out[v.Field] = v.Message
	}
	return out
}

func TestValidatorAcceptsValidCustomer(t *testing.T) {
	require.NoError(t, NewValidator().Struct(validCustomerInput()))
}

func TestValidatorReportsFieldPaths(t *testing.T) {
	future := domain.NewDate(time.Now().AddDate(1, 0, 0))

	tests := []struct {
		name    string
		mutate  func(in *CreateCustomerInput)
		field   string
		message string
	}{
		{
			name:    "missing email",
			mutate:  func(in *CreateCustomerInput) { in.Person.Email = "" },
			field:   "personInput.email",
			message: "is required",
		},
		{
			name:    "malformed email",
			mutate:  func(in *CreateCustomerInput) { in.Person.Email = "not-an-email" },
			field:   "personInput.email",
			message: "must be a valid email address",
		},
		{
			name:    "lower-case last name",
			mutate:  func(in *CreateCustomerInput) { in.Person.LastName = "mustermann" },
			field:   "personInput.lastName",
			message: "must contain letters only and start with a capital letter",
		},
		{
			name:    "birthdate in the future",
			mutate:  func(in *CreateCustomerInput) { in.Person.Birthdate = &future },
			field:   "personInput.birthdate",
			message: "must be in the past",
		},
		{
			name:    "tier below range",
			mutate:  func(in *CreateCustomerInput) { in.Customer.TierLevel = 0 },
			field:   "customerInput.tierLevel",
			message: "must be at least 1",
		},
		{
			name: "duplicate contact options",
			mutate: func(in *CreateCustomerInput) {
				in.Customer.ContactOptions = []domain.ContactOptionsType{domain.ContactOptionSMS, domain.ContactOptionSMS}
			},
			field:   "customerInput.contactOptions",
			message: "must not contain duplicates",
		},
		{
			name:    "short username",
			mutate:  func(in *CreateCustomerInput) { in.User.Username = "max" },
			field:   "userInput.username",
			message: "must be at least 4 characters long",
		},
		{
			name:    "unknown gender",
			mutate:  func(in *CreateCustomerInput) { in.Person.Gender = "ROBOT" },
			field:   "personInput.gender",
			message: "is not a known gender",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validCustomerInput()
			tt.mutate(&in)
			violations := violationsOf(t, NewValidator().Struct(in))
			require.Equal(t, tt.message, violations[tt.field], "violations: %v", violations)
		})
	}
}

func TestValidatorEmployeeEmailIsOptional(t *testing.T) {
	hired := domain.NewDate(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	in := CreateEmployeeInput{
		Person: validCustomerInput().Person,
		Employee: EmployeeInput{
			Department: "Finance",
			HireDate:   &hired,
			Role:       domain.EmployeeRoles.Values()[0],
			Position:   domain.EmployeePositions.Values()[0],
		},
		User: UserInput{Username: "max.mustermann", Password: "Abcdef1!"},
	}
	in.Person.Email = ""
	require.NoError(t, NewValidator().Struct(in))

	in.Employee.HireDate = nil
	violations := violationsOf(t, NewValidator().Struct(in))
	require.Equal(t, "is required", violations["employeeInput.hireDate"])
}

func TestValidatorContactDateRange(t *testing.T) {
	start := domain.NewDate(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	end := domain.NewDate(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	in := ContactInput{
		LastName:     "Schmidt",
		FirstName:    "Anna",
		Relationship: domain.RelationshipSibling,
		StartDate:    &start,
		EndDate:      &end,
	}
	violations := violationsOf(t, NewValidator().Struct(in))
	require.Equal(t, "must not be before the start date", violations["endDate"])

	in.EndDate = &start
	require.NoError(t, NewValidator().Struct(in))
}
