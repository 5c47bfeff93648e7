package app

import (
	"strings"

	"github.com/google/uuid"

	"github.com/omnixys/omnixys-person-service/internal/domain"
)

// AddressInput is the address part of a person request.
type AddressInput struct {
	Street         string `json:"street" validate:"required,street"`
	HouseNumber    string `json:"houseNumber" validate:"required,max=10"`
	ZipCode        string `json:"zipCode" validate:"required,max=10"`
	City           string `json:"city" validate:"required,max=60"`
	State          string `json:"state" validate:"required,max=60"`
	Country        string `json:"country" validate:"required,max=60"`
	AdditionalInfo string `json:"additionalInfo,omitempty" validate:"max=200"`
}

func (a *AddressInput) toDomain() *domain.Address {
	if a == nil {
		return nil
	}
	return &domain.Address{
		Street:         strings.TrimSpace(a.Street),
		HouseNumber:    strings.TrimSpace(a.HouseNumber),
		ZipCode:        strings.TrimSpace(a.ZipCode),
		City:           strings.TrimSpace(a.City),
		State:          strings.TrimSpace(a.State),
		Country:        strings.TrimSpace(a.Country),
		AdditionalInfo: strings.TrimSpace(a.AdditionalInfo),
	}
}

// PersonInput carries the fields shared by customers and employees on create.
type PersonInput struct {
	LastName    string            `json:"lastName" validate:"required,max=40,lastname"`
	FirstName   string            `json:"firstName" validate:"required,max=40,firstname"`
	Email       string            `json:"email" validate:"omitempty,email,max=40"`
	PhoneNumber string            `json:"phoneNumber,omitempty" validate:"omitempty,phone"`
	Birthdate   *domain.Date      `json:"birthdate" validate:"-"`
	Gender      domain.GenderType `json:"gender" validate:"required,gender"`
	Address     *AddressInput     `json:"address" validate:"required"`
}

// CustomerInput is the customer part of a create or update request.
type CustomerInput struct {
	TierLevel      int                         `json:"tierLevel" validate:"min=1,max=3"`
	Subscribed     bool                        `json:"subscribed"`
	MaritalStatus  domain.MaritalStatusType    `json:"maritalStatus" validate:"required,marital"`
	Interests      []domain.InterestType       `json:"interests,omitempty" validate:"omitempty,unique,dive,interest"`
	ContactOptions []domain.ContactOptionsType `json:"contactOptions" validate:"required,min=1,unique,dive,contactoption"`
}

func (c *CustomerInput) toDomain() *domain.Customer {
	return &domain.Customer{
		TierLevel:      c.TierLevel,
		Subscribed:     c.Subscribed,
		MaritalStatus:  c.MaritalStatus,
		Interests:      append([]domain.InterestType(nil), c.Interests...),
		ContactOptions: append([]domain.ContactOptionsType(nil), c.ContactOptions...),
	}
}

// EmployeeInput is the employee part of a create or update request.
type EmployeeInput struct {
	Department string                  `json:"department" validate:"required,max=60"`
	Salary     *float64                `json:"salary,omitempty" validate:"omitempty,gte=0"`
	HireDate   *domain.Date            `json:"hireDate" validate:"-"`
	IsExternal bool                    `json:"isExternal"`
	Role       domain.EmployeeRole     `json:"role" validate:"required,employeerole"`
	Position   domain.EmployeePosition `json:"position" validate:"required,position"`
}

func (e *EmployeeInput) toDomain() *domain.Employee {
	return &domain.Employee{
		Department: strings.TrimSpace(e.Department),
		Salary:     e.Salary,
		HireDate:   e.HireDate,
		IsExternal: e.IsExternal,
		Role:       e.Role,
		Position:   e.Position,
	}
}

// UserInput holds the login credentials registered with the identity provider.
type UserInput struct {
	Username string `json:"username" validate:"required,min=4,max=20,username"`
	Password string `json:"password" validate:"required"`
}

type CreateCustomerInput struct {
	Person   PersonInput   `json:"personInput"`
	Customer CustomerInput `json:"customerInput"`
	User     UserInput     `json:"userInput"`
}

type CreateEmployeeInput struct {
	Person   PersonInput   `json:"personInput"`
	Employee EmployeeInput `json:"employeeInput"`
	User     UserInput     `json:"userInput"`
}

func newPerson(in PersonInput, username string, kind domain.PersonType) *domain.Person {
	return &domain.Person{
		ID:          uuid.New(),
		LastName:    strings.TrimSpace(in.LastName),
		FirstName:   strings.TrimSpace(in.FirstName),
		PersonType:  kind,
		Email:       strings.TrimSpace(in.Email),
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
		Username:    username,
		Birthdate:   in.Birthdate,
		Gender:      in.Gender,
		Address:     in.Address.toDomain(),
	}
}

// PersonUpdateInput lists the person fields an update may change. Absent
// (nil) fields keep their stored value.
type PersonUpdateInput struct {
	LastName    *string            `json:"lastName,omitempty" validate:"omitempty,max=40,lastname"`
	FirstName   *string            `json:"firstName,omitempty" validate:"omitempty,max=40,firstname"`
	Email       *string            `json:"email,omitempty" validate:"omitempty,email,max=40"`
	PhoneNumber *string            `json:"phoneNumber,omitempty" validate:"omitempty,phone"`
	Username    *string            `json:"username,omitempty" validate:"omitempty,min=4,max=20,username"`
	Birthdate   *domain.Date       `json:"birthdate,omitempty" validate:"-"`
	Gender      *domain.GenderType `json:"gender,omitempty" validate:"omitempty,gender"`
	Address     *AddressInput      `json:"address,omitempty" validate:"omitempty"`
}

func (in PersonUpdateInput) patch() domain.PersonPatch {
	patch := domain.PersonPatch{
		LastName:    trimmed(in.LastName),
		FirstName:   trimmed(in.FirstName),
		Email:       trimmed(in.Email),
		PhoneNumber: trimmed(in.PhoneNumber),
		Birthdate:   in.Birthdate,
		Gender:      in.Gender,
		Address:     in.Address.toDomain(),
	}
	if in.Username != nil {
		username := normalizeUsername(*in.Username)
		patch.Username = &username
	}
	return patch
}

type UpdateCustomerInput struct {
	Person   PersonUpdateInput `json:"personInput"`
	Customer *CustomerInput    `json:"customerInput,omitempty" validate:"omitempty"`
}

type UpdateEmployeeInput struct {
	Person   PersonUpdateInput `json:"personInput"`
	Employee *EmployeeInput    `json:"employeeInput,omitempty" validate:"omitempty"`
}

// ContactInput creates a contact.
type ContactInput struct {
	LastName         string                  `json:"lastName" validate:"required,max=40"`
	FirstName        string                  `json:"firstName" validate:"required,max=40"`
	Relationship     domain.RelationshipType `json:"relationship" validate:"required,relationship"`
	WithdrawalLimit  int                     `json:"withdrawalLimit" validate:"gte=0"`
	EmergencyContact bool                    `json:"emergencyContact"`
	StartDate        *domain.Date            `json:"startDate,omitempty" validate:"-"`
	EndDate          *domain.Date            `json:"endDate,omitempty" validate:"-"`
}

func (in ContactInput) toDomain() *domain.Contact {
	return &domain.Contact{
		LastName:         strings.TrimSpace(in.LastName),
		FirstName:        strings.TrimSpace(in.FirstName),
		Relationship:     in.Relationship,
		WithdrawalLimit:  in.WithdrawalLimit,
		EmergencyContact: in.EmergencyContact,
		StartDate:        in.StartDate,
		EndDate:          in.EndDate,
	}
}

// ContactUpdateInput changes a contact. Empty strings, a zero withdrawal limit
// and a false emergency flag leave the stored values alone.
type ContactUpdateInput struct {
	LastName         string                  `json:"lastName,omitempty" validate:"omitempty,max=40"`
	FirstName        string                  `json:"firstName,omitempty" validate:"omitempty,max=40"`
	Relationship     domain.RelationshipType `json:"relationship,omitempty" validate:"omitempty,relationship"`
	WithdrawalLimit  int                     `json:"withdrawalLimit,omitempty" validate:"gte=0"`
	EmergencyContact bool                    `json:"emergencyContact,omitempty"`
	StartDate        *domain.Date            `json:"startDate,omitempty" validate:"-"`
	EndDate          *domain.Date            `json:"endDate,omitempty" validate:"-"`
}

func (in ContactUpdateInput) toDomain() *domain.Contact {
	return &domain.Contact{
		LastName:         strings.TrimSpace(in.LastName),
		FirstName:        strings.TrimSpace(in.FirstName),
		Relationship:     in.Relationship,
		WithdrawalLimit:  in.WithdrawalLimit,
		EmergencyContact: in.EmergencyContact,
		StartDate:        in.StartDate,
		EndDate:          in.EndDate,
	}
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
