package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/omnixys/omnixys-person-service/internal/domain"
)

// BSON shapes of the persons and contacts collections. Ids are stored as
// their canonical string form, calendar dates as UTC midnight.

type addressDoc struct {
	Street         string `bson:"street"`
	HouseNumber    string `bson:"house_number"`
	ZipCode        string `bson:"zip_code"`
	City           string `bson:"city"`
	State          string `bson:"state"`
	Country        string `bson:"country"`
	AdditionalInfo string `bson:"additional_info,omitempty"`
}

type customerDoc struct {
	TierLevel      int      `bson:"tier_level"`
	Subscribed     bool     `bson:"subscribed"`
	MaritalStatus  string   `bson:"marital_status,omitempty"`
	CustomerState  string   `bson:"customer_state,omitempty"`
	ContactIDs     []string `bson:"contact_ids"`
	Interests      []string `bson:"interests,omitempty"`
	ContactOptions []string `bson:"contact_options,omitempty"`
}

type employeeDoc struct {
	Department string     `bson:"department"`
	Salary     *float64   `bson:"salary,omitempty"`
	HireDate   *time.Time `bson:"hire_date,omitempty"`
	IsExternal bool       `bson:"is_external"`
	Role       string     `bson:"role"`
	Position   string     `bson:"position"`
}

type personDoc struct {
	ID          string       `bson:"_id"`
	Version     int          `bson:"version"`
	LastName    string       `bson:"last_name"`
	FirstName   string       `bson:"first_name"`
	PersonType  string       `bson:"person_type"`
	Email       string       `bson:"email"`
	PhoneNumber string       `bson:"phone_number,omitempty"`
	Username    string       `bson:"username"`
	Birthdate   *time.Time   `bson:"birthdate,omitempty"`
	Gender      string       `bson:"gender,omitempty"`
	Address     *addressDoc  `bson:"address,omitempty"`
	Customer    *customerDoc `bson:"customer,omitempty"`
	Employee    *employeeDoc `bson:"employee,omitempty"`
	CreatedAt   time.Time    `bson:"created_at"`
	UpdatedAt   time.Time    `bson:"updated_at"`
}

type contactDoc struct {
	ID               string     `bson:"_id"`
	Version          int        `bson:"version"`
	LastName         string     `bson:"last_name"`
	FirstName        string     `bson:"first_name"`
	Relationship     string     `bson:"relationship"`
	WithdrawalLimit  int        `bson:"withdrawal_limit"`
	EmergencyContact bool       `bson:"emergency_contact"`
	StartDate        *time.Time `bson:"start_date,omitempty"`
	EndDate          *time.Time `bson:"end_date,omitempty"`
	CreatedAt        time.Time  `bson:"created_at"`
	UpdatedAt        time.Time  `bson:"updated_at"`
}

func dateToBSON(d *domain.Date) *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time.UTC()
	return &t
}

func dateFromBSON(t *time.Time) *domain.Date {
	if t == nil {
		return nil
	}
	d := domain.NewDate(*t)
	return &d
}

func stringsOf[T ~string](in []T) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

func typedOf[T ~string](in []string) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = T(v)
	}
	return out
}

func toPersonDoc(p *domain.Person) personDoc {
	doc := personDoc{
		ID:          p.ID.String(),
		Version:     p.Version,
		LastName:    p.LastName,
		FirstName:   p.FirstName,
		PersonType:  string(p.PersonType),
		Email:       p.Email,
		PhoneNumber: p.PhoneNumber,
		Username:    p.Username,
		Birthdate:   dateToBSON(p.Birthdate),
		Gender:      string(p.Gender),
		CreatedAt:   p.Created,
		UpdatedAt:   p.Updated,
	}
	if a := p.Address; a != nil {
		doc.Address = &addressDoc{
			Street: a.Street, HouseNumber: a.HouseNumber, ZipCode: a.ZipCode,
			City: a.City, State: a.State, Country: a.Country, AdditionalInfo: a.AdditionalInfo,
		}
	}
	if c := p.Customer; c != nil {
		refs := make([]string, len(c.ContactIDs))
		for i, id := range c.ContactIDs {
			refs[i] = id.String()
		}
		doc.Customer = &customerDoc{
			TierLevel:      c.TierLevel,
			Subscribed:     c.Subscribed,
			MaritalStatus:  string(c.MaritalStatus),
			CustomerState:  string(c.CustomerState),
			ContactIDs:     refs,
			Interests:      stringsOf(c.Interests),
			ContactOptions: stringsOf(c.ContactOptions),
		}
	}
	if e := p.Employee; e != nil {
		doc.Employee = &employeeDoc{
			Department: e.Department,
			Salary:     e.Salary,
			HireDate:   dateToBSON(e.HireDate),
			IsExternal: e.IsExternal,
			Role:       string(e.Role),
			Position:   string(e.Position),
		}
	}
	return doc
}

func (d personDoc) toDomain() (*domain.Person, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	p := &domain.Person{
		ID:          id,
		Version:     d.Version,
		LastName:    d.LastName,
		FirstName:   d.FirstName,
		PersonType:  domain.PersonType(d.PersonType),
		Email:       d.Email,
		PhoneNumber: d.PhoneNumber,
		Username:    d.Username,
		Birthdate:   dateFromBSON(d.Birthdate),
		Gender:      domain.GenderType(d.Gender),
		Created:     d.CreatedAt,
		Updated:     d.UpdatedAt,
	}
	if a := d.Address; a != nil {
		p.Address = &domain.Address{
			Street: a.Street, HouseNumber: a.HouseNumber, ZipCode: a.ZipCode,
			City: a.City, State: a.State, Country: a.Country, AdditionalInfo: a.AdditionalInfo,
		}
	}
	if c := d.Customer; c != nil {
		refs := make([]uuid.UUID, 0, len(c.ContactIDs))
		for _, raw := range c.ContactIDs {
			ref, err := uuid.Parse(raw)
			if err != nil {
				return nil, err
			}
			refs = append(refs, ref)
		}
		p.Customer = &domain.Customer{
			TierLevel:      c.TierLevel,
			Subscribed:     c.Subscribed,
			MaritalStatus:  domain.MaritalStatusType(c.MaritalStatus),
			CustomerState:  domain.StatusType(c.CustomerState),
			ContactIDs:     refs,
			Interests:      typedOf[domain.InterestType](c.Interests),
			ContactOptions: typedOf[domain.ContactOptionsType](c.ContactOptions),
		}
	}
	if e := d.Employee; e != nil {
		p.Employee = &domain.Employee{
			Department: e.Department,
			Salary:     e.Salary,
			HireDate:   dateFromBSON(e.HireDate),
			IsExternal: e.IsExternal,
			Role:       domain.EmployeeRole(e.Role),
			Position:   domain.EmployeePosition(e.Position),
		}
	}
	return p, nil
}

func toContactDoc(c *domain.Contact) contactDoc {
	return contactDoc{
		ID:               c.ID.String(),
		Version:          c.Version,
		LastName:         c.LastName,
		FirstName:        c.FirstName,
		Relationship:     string(c.Relationship),
		WithdrawalLimit:  c.WithdrawalLimit,
		EmergencyContact: c.EmergencyContact,
		StartDate:        dateToBSON(c.StartDate),
		EndDate:          dateToBSON(c.EndDate),
		CreatedAt:        c.Created,
		UpdatedAt:        c.Updated,
	}
}

func (d contactDoc) toDomain() (*domain.Contact, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	return &domain.Contact{
		ID:               id,
		Version:          d.Version,
		LastName:         d.LastName,
		FirstName:        d.FirstName,
		Relationship:     domain.RelationshipType(d.Relationship),
		WithdrawalLimit:  d.WithdrawalLimit,
		EmergencyContact: d.EmergencyContact,
		StartDate:        dateFromBSON(d.StartDate),
		EndDate:          dateFromBSON(d.EndDate),
		Created:          d.CreatedAt,
		Updated:          d.UpdatedAt,
	}, nil
}
