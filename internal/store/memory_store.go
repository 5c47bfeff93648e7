package store

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/omnixys/omnixys-person-service/internal/domain"
)

// MemoryStore keeps persons, contacts and outbox messages in process memory.
// It backs STORAGE_DRIVER=memory and the service tests. Stored values are
// copied on the way in and out.
type MemoryStore struct {
	mu       sync.RWMutex
	persons  map[uuid.UUID]*domain.Person
	contacts map[uuid.UUID]*domain.Contact
	outbox   []*memoryOutboxEntry
	nextID   int64
	now      func() time.Time
}

type memoryOutboxEntry struct {
	msg         OutboxMessage
	status      string
	nextAttempt time.Time
	claimedAt   time.Time
	publishedAt time.Time
	lastError   string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		persons:  make(map[uuid.UUID]*domain.Person),
		contacts: make(map[uuid.UUID]*domain.Contact),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) FindPersonByID(_ context.Context, id uuid.UUID) (*domain.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.persons[id]
	if !ok {
		return nil, ErrPersonNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) FindPersonByEmail(_ context.Context, email string) (*domain.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p := s.byEmail(email); p != nil {
		return p.Clone(), nil
	}
	return nil, ErrPersonNotFound
}

func (s *MemoryStore) FindPersonByUsername(_ context.Context, username string) (*domain.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p := s.byUsername(username); p != nil {
		return p.Clone(), nil
	}
	return nil, ErrPersonNotFound
}

func (s *MemoryStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byEmail(email) != nil, nil
}

func (s *MemoryStore) ExistsByUsername(_ context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byUsername(username) != nil, nil
}

func (s *MemoryStore) byEmail(email string) *domain.Person {
	email = strings.TrimSpace(email)
	for _, p := range s.persons {
		if p.Email == email {
			return p
		}
	}
	return nil
}

func (s *MemoryStore) byUsername(username string) *domain.Person {
	username = strings.ToLower(strings.TrimSpace(username))
	for _, p := range s.persons {
		if p.Username == username {
			return p
		}
	}
	return nil
}

func (s *MemoryStore) FindPersons(_ context.Context, q PersonQuery) ([]domain.Person, error) {
	s.mu.RLock()
	out := make([]domain.Person, 0, len(s.persons))
	for _, p := range s.persons {
		if matchesQuery(p, q) {
			out = append(out, *p.Clone())
		}
	}
	s.mu.RUnlock()

	key := sortKey(q.SortBy)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := key(&out[i]), key(&out[j])
		if a == b {
			return out[i].ID.String() < out[j].ID.String()
		}
		if q.SortDir == SortDesc {
			return a > b
		}
		return a < b
	})

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return []domain.Person{}, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, nil
}

func matchesQuery(p *domain.Person, q PersonQuery) bool {
	switch {
	case q.PersonType != "" && p.PersonType != q.PersonType,
		q.LastName != "" && p.LastName != q.LastName,
		q.FirstName != "" && p.FirstName != q.FirstName,
		q.Email != "" && p.Email != q.Email,
		q.Username != "" && p.Username != strings.ToLower(q.Username),
		q.Gender != "" && p.Gender != q.Gender:
		return false
	}
	if q.CustomerState != "" || q.TierLevel > 0 || q.Subscribed != nil {
		c := p.Customer
		if c == nil {
			return false
		}
		if q.CustomerState != "" && c.CustomerState != q.CustomerState {
			return false
		}
		if q.TierLevel > 0 && c.TierLevel != q.TierLevel {
			return false
		}
		if q.Subscribed != nil && c.Subscribed != *q.Subscribed {
			return false
		}
	}
	return true
}

func sortKey(field string) func(*domain.Person) string {
	switch field {
	case "lastName":
		return func(p *domain.Person) string { return p.LastName }
	case "firstName":
		return func(p *domain.Person) string { return p.FirstName }
	case "email":
		return func(p *domain.Person) string { return p.Email }
	case "username":
		return func(p *domain.Person) string { return p.Username }
	case "birthdate":
		return func(p *domain.Person) string {
			if p.Birthdate == nil {
				return ""
			}
			return p.Birthdate.String()
		}
	case "updated":
		return func(p *domain.Person) string { return p.Updated.Format(time.RFC3339Nano) }
	default:
		return func(p *domain.Person) string { return p.Created.Format(time.RFC3339Nano) }
	}
}

func (s *MemoryStore) CreatePerson(_ context.Context, p *domain.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byEmail(p.Email) != nil {
		return ErrEmailTaken
	}
	if s.byUsername(p.Username) != nil {
		return ErrUsernameTaken
	}
	now := s.now()
	p.Version = 0
	p.Created = now
	p.Updated = now
	s.persons[p.ID] = p.Clone()
	return nil
}

func (s *MemoryStore) UpdatePerson(_ context.Context, p *domain.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.persons[p.ID]
	if !ok {
		return ErrPersonNotFound
	}
	if stored.Version != p.Version {
		return ErrVersionConflict
	}
	if other := s.byEmail(p.Email); other != nil && other.ID != p.ID {
		return ErrEmailTaken
	}
	if other := s.byUsername(p.Username); other != nil && other.ID != p.ID {
		return ErrUsernameTaken
	}
	p.Version++
	p.Updated = s.now()
	s.persons[p.ID] = p.Clone()
	return nil
}

func (s *MemoryStore) DeletePerson(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.persons[id]; !ok {
		return ErrPersonNotFound
	}
	delete(s.persons, id)
	return nil
}

func (s *MemoryStore) FindContactByID(_ context.Context, id uuid.UUID) (*domain.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contacts[id]
	if !ok {
		return nil, ErrContactNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) FindContactsByIDs(_ context.Context, ids []uuid.UUID) ([]domain.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byID := make(map[uuid.UUID]domain.Contact, len(ids))
	for _, id := range ids {
		if c, ok := s.contacts[id]; ok {
			byID[id] = *c
		}
	}
	return orderContacts(ids, byID), nil
}

func (s *MemoryStore) CreateContact(_ context.Context, c *domain.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	c.Version = 0
	c.Created = now
	c.Updated = now
	cp := *c
	s.contacts[c.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateContact(_ context.Context, c *domain.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.contacts[c.ID]
	if !ok {
		return ErrContactNotFound
	}
	if stored.Version != c.Version {
		return ErrVersionConflict
	}
	c.Version++
	c.Updated = s.now()
	cp := *c
	s.contacts[c.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteContact(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contacts[id]; !ok {
		return ErrContactNotFound
	}
	delete(s.contacts, id)
	return nil
}

func (s *MemoryStore) EnqueueEvent(_ context.Context, exchange, routingKey string, payload interface{}) error {
	blob, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.outbox = append(s.outbox, &memoryOutboxEntry{
		msg: OutboxMessage{
			ID:         s.nextID,
			Exchange:   strings.TrimSpace(exchange),
			RoutingKey: strings.TrimSpace(routingKey),
			Payload:    blob,
		},
		status:      "pending",
		nextAttempt: s.now(),
	})
	return nil
}

func (s *MemoryStore) ClaimOutboxMessages(_ context.Context, limit int, staleAfterSeconds int) ([]OutboxMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	if staleAfterSeconds <= 0 {
		staleAfterSeconds = 120
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	stale := now.Add(-time.Duration(staleAfterSeconds) * time.Second)
	out := make([]OutboxMessage, 0, limit)
	for _, e := range s.outbox {
		if len(out) == limit {
			break
		}
		due := (e.status == "pending" && !e.nextAttempt.After(now)) ||
			(e.status == "processing" && e.claimedAt.Before(stale))
		if !due {
			continue
		}
		e.status = "processing"
		e.claimedAt = now
		e.msg.Attempts++
		out = append(out, e.msg)
	}
	return out, nil
}

func (s *MemoryStore) MarkOutboxPublished(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.outbox {
		if e.msg.ID == id {
			e.status = "published"
			e.publishedAt = s.now()
			e.lastError = ""
		}
	}
	return nil
}

func (s *MemoryStore) MarkOutboxFailed(_ context.Context, id int64, retryAfterSeconds int, reason string) error {
	if retryAfterSeconds < 1 {
		retryAfterSeconds = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.outbox {
		if e.msg.ID == id {
			e.status = "pending"
			e.nextAttempt = s.now().Add(time.Duration(retryAfterSeconds) * time.Second)
			e.lastError = reason
		}
	}
	return nil
}

func (s *MemoryStore) PurgePublishedOutbox(_ context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-olderThan)
	kept := s.outbox[:0]
	var purged int64
	for _, e := range s.outbox {
		if e.status == "published" && e.publishedAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	s.outbox = kept
	return purged, nil
}

func (s *MemoryStore) CountPendingOutbox(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, e := range s.outbox {
		if e.status != "published" {
			n++
		}
	}
	return n, nil
}
