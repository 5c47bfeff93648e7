/**
 * @description
 * Person aggregate and its embedded records. A Person is either a customer or
 * an employee; exactly one of Customer/Employee is populated and it matches
 * PersonType.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Address is embedded in a Person.
type Address struct {
	Street         string `json:"street"`
	HouseNumber    string `json:"houseNumber"`
	ZipCode        string `json:"zipCode"`
	City           string `json:"city"`
	State          string `json:"state"`
	Country        string `json:"country"`
	AdditionalInfo string `json:"additionalInfo,omitempty"`
}

// Customer holds the customer-specific part of a Person.
type Customer struct {
	TierLevel      int                  `json:"tierLevel"`
	Subscribed     bool                 `json:"subscribed"`
	MaritalStatus  MaritalStatusType    `json:"maritalStatus,omitempty"`
	CustomerState  StatusType           `json:"customerState,omitempty"`
	ContactIDs     []uuid.UUID          `json:"contactIds"`
	Interests      []InterestType       `json:"interests,omitempty"`
	ContactOptions []ContactOptionsType `json:"contactOptions,omitempty"`
}

// HasContact reports whether id is among the customer's contact references.
func (c *Customer) HasContact(id uuid.UUID) bool {
	for _, ref := range c.ContactIDs {
		if ref == id {
			return true
		}
	}
	return false
}

// RemoveContact drops every reference to id.
func (c *Customer) RemoveContact(id uuid.UUID) {
	kept := c.ContactIDs[:0]
	for _, ref := range c.ContactIDs {
		if ref != id {
			kept = append(kept, ref)
		}
	}
	c.ContactIDs = kept
}

// Employee holds the employee-specific part of a Person.
type Employee struct {
	Department string           `json:"department"`
	Salary     *float64         `json:"salary,omitempty"`
	HireDate   *Date            `json:"hireDate,omitempty"`
	IsExternal bool             `json:"isExternal"`
	Role       EmployeeRole     `json:"role"`
	Position   EmployeePosition `json:"position"`
}

// Person is the aggregate root. Version starts at 0 and is incremented by the
// store on every successful write.
type Person struct {
	ID          uuid.UUID  `json:"id"`
	Version     int        `json:"version"`
	LastName    string     `json:"lastName"`
	FirstName   string     `json:"firstName"`
	PersonType  PersonType `json:"personType"`
	Email       string     `json:"email"`
	PhoneNumber string     `json:"phoneNumber,omitempty"`
	Username    string     `json:"username"`
	Birthdate   *Date      `json:"birthdate,omitempty"`
	Gender      GenderType `json:"gender,omitempty"`
	Address     *Address   `json:"address,omitempty"`
	Customer    *Customer  `json:"customer,omitempty"`
	Employee    *Employee  `json:"employee,omitempty"`
	Created     time.Time  `json:"created"`
	Updated     time.Time  `json:"updated"`
}

// PersonPatch carries the fields of an update. Nil means "keep the stored
// value".
type PersonPatch struct {
	LastName    *string
	FirstName   *string
	Email       *string
	PhoneNumber *string
	Username    *string
	Birthdate   *Date
	Gender      *GenderType
	Address     *Address
	Customer    *Customer
	Employee    *Employee
}

// Apply merges the patch onto p using override-if-present semantics. The
// embedded records are replaced as a whole when present.
func (p *Person) Apply(patch PersonPatch) {
	if patch.LastName != nil {
		p.LastName = *patch.LastName
	}
	if patch.FirstName != nil {
		p.FirstName = *patch.FirstName
	}
	if patch.Email != nil {
		p.Email = *patch.Email
	}
	if patch.PhoneNumber != nil {
		p.PhoneNumber = *patch.PhoneNumber
	}
	if patch.Username != nil {
		p.Username = *patch.Username
	}
	if patch.Birthdate != nil {
		p.Birthdate = patch.Birthdate
	}
	if patch.Gender != nil {
		p.Gender = *patch.Gender
	}
	if patch.Address != nil {
		p.Address = patch.Address
	}
	if patch.Customer != nil {
		refs := []uuid.UUID(nil)
		if p.Customer != nil {
			refs = p.Customer.ContactIDs
		}
		next := *patch.Customer
		if next.ContactIDs == nil {
			next.ContactIDs = refs
		}
		p.Customer = &next
	}
	if patch.Employee != nil {
		next := *patch.Employee
		p.Employee = &next
	}
}

// Clone returns a deep copy of p.
func (p *Person) Clone() *Person {
	if p == nil {
		return nil
	}
	out := *p
	if p.Address != nil {
		a := *p.Address
		out.Address = &a
	}
	if p.Customer != nil {
		c := *p.Customer
		c.ContactIDs = append([]uuid.UUID(nil), p.Customer.ContactIDs...)
		c.Interests = append([]InterestType(nil), p.Customer.Interests...)
		c.ContactOptions = append([]ContactOptionsType(nil), p.Customer.ContactOptions...)
		out.Customer = &c
	}
	if p.Employee != nil {
		e := *p.Employee
		out.Employee = &e
	}
	return &out
}
