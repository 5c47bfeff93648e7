package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/omnixys/omnixys-person-service/internal/domain"
	"github.com/omnixys/omnixys-person-service/internal/logging"
	"github.com/omnixys/omnixys-person-service/internal/store"
)

// effects records the side effects of a pipeline in call order.
type effects struct {
	log []string
}

func (e *effects) add(effect string) { e.log = append(e.log, effect) }

// recordingStore wraps the in-memory store, counting every call and logging
// the mutating ones.
type recordingStore struct {
	*store.MemoryStore
	fx        *effects
	calls     int
	createErr error
}

func (s *recordingStore) FindPersonByID(ctx context.Context, id uuid.UUID) (*domain.Person, error) {
	s.calls++
	return s.MemoryStore.FindPersonByID(ctx, id)
}

func (s *recordingStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	s.calls++
	return s.MemoryStore.ExistsByEmail(ctx, email)
}

func (s *recordingStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	s.calls++
	return s.MemoryStore.ExistsByUsername(ctx, username)
}

func (s *recordingStore) CreatePerson(ctx context.Context, p *domain.Person) error {
	s.calls++
	if s.createErr != nil {
		return s.createErr
	}
	s.fx.add("persons.create")
	return s.MemoryStore.CreatePerson(ctx, p)
}

func (s *recordingStore) UpdatePerson(ctx context.Context, p *domain.Person) error {
	s.calls++
	s.fx.add("persons.update")
	return s.MemoryStore.UpdatePerson(ctx, p)
}

func (s *recordingStore) DeletePerson(ctx context.Context, id uuid.UUID) error {
	s.calls++
	s.fx.add("persons.delete")
	return s.MemoryStore.DeletePerson(ctx, id)
}

func (s *recordingStore) FindContactByID(ctx context.Context, id uuid.UUID) (*domain.Contact, error) {
	s.calls++
	return s.MemoryStore.FindContactByID(ctx, id)
}

func (s *recordingStore) FindContactsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Contact, error) {
	s.calls++
	return s.MemoryStore.FindContactsByIDs(ctx, ids)
}

func (s *recordingStore) CreateContact(ctx context.Context, c *domain.Contact) error {
	s.calls++
	s.fx.add("contacts.create")
	return s.MemoryStore.CreateContact(ctx, c)
}

func (s *recordingStore) UpdateContact(ctx context.Context, c *domain.Contact) error {
	s.calls++
	s.fx.add("contacts.update")
	return s.MemoryStore.UpdateContact(ctx, c)
}

func (s *recordingStore) DeleteContact(ctx context.Context, id uuid.UUID) error {
	s.calls++
	s.fx.add("contacts.delete")
	return s.MemoryStore.DeleteContact(ctx, id)
}

type registration struct {
	username string
	password string
	role     string
}

type identityUpdate struct {
	username         string
	previousUsername string
	caller           string
}

type identityStub struct {
	fx            *effects
	calls         int
	registerErr   error
	updateErr     error
	deregisterErr error
	registrations []registration
	updates       []identityUpdate
	secrets       []string
	deregistered  []string
	adminTokens   []string
}

func (i *identityStub) RegisterIdentity(_ context.Context, person *domain.Person, password, role string) error {
	i.calls++
	if i.registerErr != nil {
		return i.registerErr
	}
	i.fx.add("identity.register")
	i.registrations = append(i.registrations, registration{username: person.Username, password: password, role: role})
	return nil
}

func (i *identityStub) UpdateIdentity(_ context.Context, person *domain.Person, caller domain.Caller, previousUsername string) error {
	i.calls++
	if i.updateErr != nil {
		return i.updateErr
	}
	i.fx.add("identity.update")
	i.updates = append(i.updates, identityUpdate{username: person.Username, previousUsername: previousUsername, caller: caller.Username})
	return nil
}

func (i *identityStub) UpdateCredentialSecret(_ context.Context, newSecret string, _ domain.Caller) error {
	i.calls++
	i.fx.add("identity.password")
	i.secrets = append(i.secrets, newSecret)
	return nil
}

func (i *identityStub) DeregisterIdentity(_ context.Context, adminToken, username string) error {
	i.calls++
	if i.deregisterErr != nil {
		return i.deregisterErr
	}
	i.fx.add("identity.deregister")
	i.adminTokens = append(i.adminTokens, adminToken)
	i.deregistered = append(i.deregistered, username)
	return nil
}

type published struct {
	topic   string
	payload interface{}
}

type publisherStub struct {
	fx     *effects
	events []published
	err    error
}

func (p *publisherStub) Publish(_ context.Context, topic string, payload interface{}) error {
	p.fx.add("publish " + topic)
	p.events = append(p.events, published{topic: topic, payload: payload})
	return p.err
}

func (p *publisherStub) topics() []string {
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.topic)
	}
	return out
}

type fixture struct {
	svc       *WriteService
	reader    *ReadService
	mem       *store.MemoryStore
	store     *recordingStore
	identity  *identityStub
	publisher *publisherStub
	fx        *effects
}

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &effects{}
	mem := store.NewMemoryStore()
	rec := &recordingStore{MemoryStore: mem, fx: fx}
	identity := &identityStub{fx: fx}
	publisher := &publisherStub{fx: fx}

	svc := NewWriteService(WriteDependencies{
		Persons:   rec,
		Contacts:  rec,
		Identity:  identity,
		Publisher: publisher,
		Logger:    logging.Nop(),
	})
	svc.now = func() time.Time { return fixedNow }

	return &fixture{
		svc:       svc,
		reader:    NewReadService(rec, rec, logging.Nop()),
		mem:       mem,
		store:     rec,
		identity:  identity,
		publisher: publisher,
		fx:        fx,
	}
}

// resetRecording forgets everything recorded while seeding.
func (f *fixture) resetRecording() {
	f.fx.log = nil
	f.store.calls = 0
	f.identity.calls = 0
	f.publisher.events = nil
}

// seedCustomer stores a customer directly, bypassing the pipeline, and bumps
// it to the given version.
func (f *fixture) seedCustomer(t *testing.T, username string, version int) *domain.Person {
	t.Helper()
	birth := domain.NewDate(time.Date(1988, 2, 1, 0, 0, 0, 0, time.UTC))
	p := &domain.Person{
		ID:         uuid.New(),
		LastName:   "Muster",
		FirstName:  "Erika",
		PersonType: domain.PersonTypeCustomer,
		Email:      username + "@example.com",
		Username:   username,
		Birthdate:  &birth,
		Gender:     domain.GenderFemale,
		Customer: &domain.Customer{
			TierLevel:      2,
			MaritalStatus:  domain.MaritalMarried,
			CustomerState:  domain.StatusActive,
			ContactIDs:     []uuid.UUID{},
			ContactOptions: []domain.ContactOptionsType{domain.ContactOptionEmail},
		},
	}
	ctx := context.Background()
	if err := f.mem.CreatePerson(ctx, p); err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	for p.Version < version {
		if err := f.mem.UpdatePerson(ctx, p); err != nil {
			t.Fatalf("bump version: %v", err)
		}
	}
	return p
}

func (f *fixture) stored(t *testing.T, id uuid.UUID) *domain.Person {
	t.Helper()
	p, err := f.mem.FindPersonByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load person %s: %v", id, err)
	}
	return p
}

func validCustomerInput() CreateCustomerInput {
	birth := domain.NewDate(time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC))
	return CreateCustomerInput{
		Person: PersonInput{
			LastName:    "Mustermann",
			FirstName:   "Max",
			Email:       "max@example.com",
			PhoneNumber: "+49 170 1234567",
			Birthdate:   &birth,
			Gender:      domain.GenderMale,
			Address: &AddressInput{
				Street:      "Hauptstrasse",
				HouseNumber: "12",
				ZipCode:     "76133",
				City:        "Karlsruhe",
				State:       "Baden-Wuerttemberg",
				Country:     "Germany",
			},
		},
		Customer: CustomerInput{
			TierLevel:      1,
			MaritalStatus:  domain.MaritalSingle,
			Interests:      []domain.InterestType{domain.InterestTravel},
			ContactOptions: []domain.ContactOptionsType{domain.ContactOptionEmail},
		},
		User: UserInput{Username: "MaxMuster", Password: "Abcdef1!"},
	}
}

func adminCaller() domain.Caller {
	return domain.Caller{Subject: "admin-sub", Username: "admin", Roles: []string{domain.RoleAdmin}, Token: "admin-token"}
}

func customerCaller(username string) domain.Caller {
	return domain.Caller{Subject: username + "-sub", Username: username, Roles: []string{domain.RoleBasic}, Token: username + "-token"}
}

func ptr[T any](v T) *T { return &v }
