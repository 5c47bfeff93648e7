/**
 * @description
 * Input validation for the write path. Request structs are checked with
 * go-playground/validator; failures are collected into a
 * ConstraintViolationsError of (field path, message) pairs keyed by the JSON
 * field names.
 *
 * @dependencies
 * - github.com/go-playground/validator/v10: struct validation.
 */

package app

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/omnixys/omnixys-person-service/internal/domain"
)

var (
	lastNamePattern  = regexp.MustCompile(`^(o'|von|von der|von und zu|van)?[A-ZÄÖÜ][a-zäöüß]+(-[A-ZÄÖÜ][a-zäöüß]+)?$`)
	firstNamePattern = regexp.MustCompile(`^[A-ZÄÖÜ][a-zäöüß]+(-[A-ZÄÖÜ][a-zäöüß]+)?$`)
	phonePattern     = regexp.MustCompile(`^\+?[0-9. ()-]{7,25}$`)
	usernamePattern  = regexp.MustCompile(`^[a-zA-Z0-9_\-.]{4,}$`)
	streetPattern    = regexp.MustCompile(`^[a-zA-ZäöüßÄÖÜ\s]+(?:\s\d+)?$`)
)

var tagMessages = map[string]string{
	"required":      "is required",
	"email":         "must be a valid email address",
	"lastname":      "must contain letters only and start with a capital letter",
	"firstname":     "must contain letters only and start with a capital letter",
	"phone":         "must be a valid phone number of 7 to 25 characters",
	"username":      "may only contain letters, digits, underscores, dots or hyphens",
	"street":        "must be a valid street name",
	"unique":        "must not contain duplicates",
	"gender":        "is not a known gender",
	"marital":       "is not a known marital status",
	"interest":      "is not a known interest",
	"contactoption": "is not a known contact option",
	"relationship":  "is not a known relationship",
	"employeerole":  "is not a known employee role",
	"position":      "is not a known position",
	"past":          "must be in the past",
	"daterange":     "must not be before the start date",
}

// Validator checks request inputs before they are mapped to domain types.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

func NewValidator() *Validator {
	v := &Validator{
		validate: validator.New(),
		now:      time.Now,
	}

	v.validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})

	registerPattern(v.validate, "lastname", lastNamePattern)
	registerPattern(v.validate, "firstname", firstNamePattern)
	registerPattern(v.validate, "phone", phonePattern)
	registerPattern(v.validate, "username", usernamePattern)
	registerPattern(v.validate, "street", streetPattern)

	registerEnum(v.validate, "gender", domain.GenderTypes)
	registerEnum(v.validate, "marital", domain.MaritalStatusTypes)
	registerEnum(v.validate, "interest", domain.InterestTypes)
	registerEnum(v.validate, "contactoption", domain.ContactOptionsTypes)
	registerEnum(v.validate, "relationship", domain.RelationshipTypes)
	registerEnum(v.validate, "employeerole", domain.EmployeeRoles)
	registerEnum(v.validate, "position", domain.EmployeePositions)

	v.validate.RegisterStructValidation(v.validateCreateCustomer, CreateCustomerInput{})
	v.validate.RegisterStructValidation(v.validatePerson, PersonInput{})
	v.validate.RegisterStructValidation(v.validatePersonUpdate, PersonUpdateInput{})
	v.validate.RegisterStructValidation(validateEmployee, EmployeeInput{})
	v.validate.RegisterStructValidation(validateContact, ContactInput{})
	v.validate.RegisterStructValidation(validateContactUpdate, ContactUpdateInput{})
	return v
}

func registerPattern(v *validator.Validate, tag string, pattern *regexp.Regexp) {
	_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return pattern.MatchString(fl.Field().String())
	})
}

func registerEnum[T ~string](v *validator.Validate, tag string, codec domain.Codec[T]) {
	_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return codec.Valid(T(fl.Field().String()))
	})
}

// Struct validates input and returns a ConstraintViolationsError listing every
// failed constraint.
func (v *Validator) Struct(input interface{}) error {
	err := v.validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &domain.InvalidArgumentError{Message: err.Error()}
	}

	violations := make([]domain.FieldViolation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, domain.FieldViolation{
			Field:   fieldPath(fe.Namespace()),
			Message: messageFor(fe),
		})
	}
	return &domain.ConstraintViolationsError{Violations: violations}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters long", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "min":
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("must be at least %s characters long", fe.Param())
		case reflect.Slice:
			return fmt.Sprintf("must contain at least %s element(s)", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "gte":
		return "must not be less than " + fe.Param()
	}
	if msg, ok := tagMessages[fe.Tag()]; ok {
		return msg
	}
	return "failed the " + fe.Tag() + " constraint"
}

func (v *Validator) validateCreateCustomer(sl validator.StructLevel) {
	in := sl.Current().Interface().(CreateCustomerInput)
	if strings.TrimSpace(in.Person.Email) == "" {
		sl.ReportError(in.Person.Email, "personInput.email", "Email", "required", "")
	}
}

func (v *Validator) validatePerson(sl validator.StructLevel) {
	in := sl.Current().Interface().(PersonInput)
	if in.Birthdate == nil || in.Birthdate.IsZero() {
		sl.ReportError(in.Birthdate, "birthdate", "Birthdate", "required", "")
		return
	}
	if !in.Birthdate.Before(v.now()) {
		sl.ReportError(in.Birthdate, "birthdate", "Birthdate", "past", "")
	}
}

func (v *Validator) validatePersonUpdate(sl validator.StructLevel) {
	in := sl.Current().Interface().(PersonUpdateInput)
	if in.Birthdate != nil && !in.Birthdate.Before(v.now()) {
		sl.ReportError(in.Birthdate, "birthdate", "Birthdate", "past", "")
	}
}

func validateEmployee(sl validator.StructLevel) {
	in := sl.Current().Interface().(EmployeeInput)
	if in.HireDate == nil || in.HireDate.IsZero() {
		sl.ReportError(in.HireDate, "hireDate", "HireDate", "required", "")
	}
}

func validateContact(sl validator.StructLevel) {
	in := sl.Current().Interface().(ContactInput)
	checkDateRange(sl, in.StartDate, in.EndDate)
}

func validateContactUpdate(sl validator.StructLevel) {
	in := sl.Current().Interface().(ContactUpdateInput)
	checkDateRange(sl, in.StartDate, in.EndDate)
}

func checkDateRange(sl validator.StructLevel, start, end *domain.Date) {
	if start == nil || end == nil {
		return
	}
	if end.Before(start.Time) {
		sl.ReportError(end, "endDate", "EndDate", "daterange", "")
	}
}

// checkContactPeriod applies the start/end rule to a contact after a merge,
// where either bound may come from the stored record.
func checkContactPeriod(c *domain.Contact) error {
	if c.StartDate == nil || c.EndDate == nil || !c.EndDate.Before(c.StartDate.Time) {
		return nil
	}
	return &domain.ConstraintViolationsError{Violations: []domain.FieldViolation{
		{Field: "endDate", Message: tagMessages["daterange"]},
	}}
}
