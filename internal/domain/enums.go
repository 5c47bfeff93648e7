/**
 * @description
 * Enumerated tags used by the person aggregate. Every tag has a long form (the
 * canonical value written to storage and JSON) and a short form accepted on
 * input. A single generic Codec holds both lookup directions so the individual
 * types only declare their variants.
 */

package domain

import (
	"fmt"
	"strings"
)

// CodecEntry pairs an enum value with its short code.
type CodecEntry[T ~string] struct {
	Value T
	Short string
}

// Codec is a bidirectional lookup table between enum values and their
// short/long string forms.
type Codec[T ~string] struct {
	name    string
	order   []T
	byLong  map[string]T
	byShort map[string]T
	short   map[T]string
}

// NewCodec builds a Codec for the given variants. The name is used in error
// messages only.
func NewCodec[T ~string](name string, entries ...CodecEntry[T]) Codec[T] {
	c := Codec[T]{
		name:    name,
		order:   make([]T, 0, len(entries)),
		byLong:  make(map[string]T, len(entries)),
		byShort: make(map[string]T, len(entries)),
		short:   make(map[T]string, len(entries)),
	}
	for _, e := range entries {
		c.order = append(c.order, e.Value)
		c.byLong[strings.ToUpper(string(e.Value))] = e.Value
		c.byShort[strings.ToUpper(e.Short)] = e.Value
		c.short[e.Value] = e.Short
	}
	return c
}

// Parse resolves either the long or the short form, case-insensitively.
func (c Codec[T]) Parse(raw string) (T, error) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	if v, ok := c.byLong[key]; ok {
		return v, nil
	}
	if v, ok := c.byShort[key]; ok {
		return v, nil
	}
	var zero T
	return zero, &InvalidArgumentError{Message: fmt.Sprintf("unknown %s %q", c.name, raw)}
}

// Short returns the short code of v, or "" when v is not a known variant.
func (c Codec[T]) Short(v T) string {
	return c.short[v]
}

// Valid reports whether v is one of the declared variants.
func (c Codec[T]) Valid(v T) bool {
	_, ok := c.short[v]
	return ok
}

// Values returns the variants in declaration order.
func (c Codec[T]) Values() []T {
	out := make([]T, len(c.order))
	copy(out, c.order)
	return out
}

func (c Codec[T]) decode(text []byte, dst *T) error {
	v, err := c.Parse(string(text))
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

type PersonType string

const (
	PersonTypeCustomer PersonType = "CUSTOMER"
	PersonTypeEmployee PersonType = "EMPLOYEE"
)

var PersonTypes = NewCodec("person type",
	CodecEntry[PersonType]{PersonTypeCustomer, "C"},
	CodecEntry[PersonType]{PersonTypeEmployee, "E"},
)

func (t *PersonType) UnmarshalText(b []byte) error { return PersonTypes.decode(b, t) }

type GenderType string

const (
	GenderMale    GenderType = "MALE"
	GenderFemale  GenderType = "FEMALE"
	GenderDiverse GenderType = "DIVERSE"
)

var GenderTypes = NewCodec("gender",
	CodecEntry[GenderType]{GenderMale, "M"},
	CodecEntry[GenderType]{GenderFemale, "F"},
	CodecEntry[GenderType]{GenderDiverse, "D"},
)

func (g *GenderType) UnmarshalText(b []byte) error { return GenderTypes.decode(b, g) }

type MaritalStatusType string

const (
	MaritalSingle   MaritalStatusType = "SINGLE"
	MaritalMarried  MaritalStatusType = "MARRIED"
	MaritalDivorced MaritalStatusType = "DIVORCED"
	MaritalWidowed  MaritalStatusType = "WIDOWED"
)

var MaritalStatusTypes = NewCodec("marital status",
	CodecEntry[MaritalStatusType]{MaritalSingle, "S"},
	CodecEntry[MaritalStatusType]{MaritalMarried, "M"},
	CodecEntry[MaritalStatusType]{MaritalDivorced, "D"},
	CodecEntry[MaritalStatusType]{MaritalWidowed, "W"},
)

func (m *MaritalStatusType) UnmarshalText(b []byte) error { return MaritalStatusTypes.decode(b, m) }

// StatusType is the lifecycle state of a customer.
type StatusType string

const (
	StatusActive    StatusType = "ACTIVE"
	StatusBlocked   StatusType = "BLOCKED"
	StatusInactive  StatusType = "INACTIVE"
	StatusPending   StatusType = "PENDING"
	StatusSuspended StatusType = "SUSPENDED"
	StatusClosed    StatusType = "CLOSED"
)

var StatusTypes = NewCodec("customer state",
	CodecEntry[StatusType]{StatusActive, "A"},
	CodecEntry[StatusType]{StatusBlocked, "B"},
	CodecEntry[StatusType]{StatusInactive, "I"},
	CodecEntry[StatusType]{StatusPending, "P"},
	CodecEntry[StatusType]{StatusSuspended, "S"},
	CodecEntry[StatusType]{StatusClosed, "C"},
)

func (s *StatusType) UnmarshalText(b []byte) error { return StatusTypes.decode(b, s) }

type InterestType string

const (
	InterestInvestments                     InterestType = "INVESTMENTS"
	InterestSavingAndFinance                InterestType = "SAVING_AND_FINANCE"
	InterestCreditAndDebt                   InterestType = "CREDIT_AND_DEBT"
	InterestBankProductsAndServices         InterestType = "BANK_PRODUCTS_AND_SERVICES"
	InterestFinancialEducationAndCounseling InterestType = "FINANCIAL_EDUCATION_AND_COUNSELING"
	InterestRealEstate                      InterestType = "REAL_ESTATE"
	InterestInsurance                       InterestType = "INSURANCE"
	InterestSustainableFinance              InterestType = "SUSTAINABLE_FINANCE"
	InterestTechnologyAndInnovation         InterestType = "TECHNOLOGY_AND_INNOVATION"
	InterestTravel                          InterestType = "TRAVEL"
)

var InterestTypes = NewCodec("interest",
	CodecEntry[InterestType]{InterestInvestments, "I"},
	CodecEntry[InterestType]{InterestSavingAndFinance, "SF"},
	CodecEntry[InterestType]{InterestCreditAndDebt, "CD"},
	CodecEntry[InterestType]{InterestBankProductsAndServices, "BPS"},
	CodecEntry[InterestType]{InterestFinancialEducationAndCounseling, "FEC"},
	CodecEntry[InterestType]{InterestRealEstate, "RE"},
	CodecEntry[InterestType]{InterestInsurance, "IN"},
	CodecEntry[InterestType]{InterestSustainableFinance, "SUF"},
	CodecEntry[InterestType]{InterestTechnologyAndInnovation, "IT"},
	CodecEntry[InterestType]{InterestTravel, "T"},
)

func (i *InterestType) UnmarshalText(b []byte) error { return InterestTypes.decode(b, i) }

type ContactOptionsType string

const (
	ContactOptionEmail  ContactOptionsType = "EMAIL"
	ContactOptionPhone  ContactOptionsType = "PHONE"
	ContactOptionLetter ContactOptionsType = "LETTER"
	ContactOptionSMS    ContactOptionsType = "SMS"
)

var ContactOptionsTypes = NewCodec("contact option",
	CodecEntry[ContactOptionsType]{ContactOptionEmail, "E"},
	CodecEntry[ContactOptionsType]{ContactOptionPhone, "P"},
	CodecEntry[ContactOptionsType]{ContactOptionLetter, "L"},
	CodecEntry[ContactOptionsType]{ContactOptionSMS, "S"},
)

func (o *ContactOptionsType) UnmarshalText(b []byte) error { return ContactOptionsTypes.decode(b, o) }

type RelationshipType string

const (
	RelationshipPartner         RelationshipType = "PARTNER"
	RelationshipBusinessPartner RelationshipType = "BUSINESS_PARTNER"
	RelationshipRelative        RelationshipType = "RELATIVE"
	RelationshipColleague       RelationshipType = "COLLEAGUE"
	RelationshipParent          RelationshipType = "PARENT"
	RelationshipSibling         RelationshipType = "SIBLING"
	RelationshipChild           RelationshipType = "CHILD"
	RelationshipCousin          RelationshipType = "COUSIN"
)

var RelationshipTypes = NewCodec("relationship",
	CodecEntry[RelationshipType]{RelationshipPartner, "PN"},
	CodecEntry[RelationshipType]{RelationshipBusinessPartner, "BP"},
	CodecEntry[RelationshipType]{RelationshipRelative, "R"},
	CodecEntry[RelationshipType]{RelationshipColleague, "C"},
	CodecEntry[RelationshipType]{RelationshipParent, "P"},
	CodecEntry[RelationshipType]{RelationshipSibling, "S"},
	CodecEntry[RelationshipType]{RelationshipChild, "CH"},
	CodecEntry[RelationshipType]{RelationshipCousin, "CO"},
)

func (r *RelationshipType) UnmarshalText(b []byte) error { return RelationshipTypes.decode(b, r) }

// EmployeeRole doubles as the identity provider role assigned to employees.
type EmployeeRole string

const (
	EmployeeRoleAdmin   EmployeeRole = "ADMIN"
	EmployeeRoleManager EmployeeRole = "MANAGER"
	EmployeeRoleUser    EmployeeRole = "USER"
)

var EmployeeRoles = NewCodec("employee role",
	CodecEntry[EmployeeRole]{EmployeeRoleAdmin, "A"},
	CodecEntry[EmployeeRole]{EmployeeRoleManager, "M"},
	CodecEntry[EmployeeRole]{EmployeeRoleUser, "U"},
)

func (r *EmployeeRole) UnmarshalText(b []byte) error { return EmployeeRoles.decode(b, r) }

type EmployeePosition string

const (
	PositionDepartmentHead    EmployeePosition = "ABTEILUNGSLEITER"
	PositionTeamLead          EmployeePosition = "TEAMLEITER"
	PositionFrontendDeveloper EmployeePosition = "FRONTEND_DEVELOPER"
	PositionBackendDeveloper  EmployeePosition = "BACKEND_DEVELOPER"
	PositionDevOpsEngineer    EmployeePosition = "DEVOPS_ENGINEER"
	PositionConsultant        EmployeePosition = "CONSULTANT"
	PositionHRManager         EmployeePosition = "HR_MANAGER"
)

var EmployeePositions = NewCodec("employee position",
	CodecEntry[EmployeePosition]{PositionDepartmentHead, "AL"},
	CodecEntry[EmployeePosition]{PositionTeamLead, "TL"},
	CodecEntry[EmployeePosition]{PositionFrontendDeveloper, "FD"},
	CodecEntry[EmployeePosition]{PositionBackendDeveloper, "BD"},
	CodecEntry[EmployeePosition]{PositionDevOpsEngineer, "DE"},
	CodecEntry[EmployeePosition]{PositionConsultant, "C"},
	CodecEntry[EmployeePosition]{PositionHRManager, "HR"},
)

func (p *EmployeePosition) UnmarshalText(b []byte) error { return EmployeePositions.decode(b, p) }
