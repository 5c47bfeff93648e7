/**
 * @description
 * MongoDB implementation of PersonRepository and ContactRepository. Persons and
 * contacts live in their own collections; the optimistic lock is a filter on
 * (_id, version) whose replacement carries version+1.
 *
 * @dependencies
 * - go.mongodb.org/mongo-driver: MongoDB client.
 */

package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/omnixys/omnixys-person-service/internal/domain"
)

const (
	personsCollection  = "persons"
	contactsCollection = "contacts"
)

// MongoRepository serves both persons and contacts from one database.
type MongoRepository struct {
	persons  *mongo.Collection
	contacts *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		persons:  db.Collection(personsCollection),
		contacts: db.Collection(contactsCollection),
	}
}

// EnsureIndexes creates the unique indexes on email and username.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.persons.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("persons_email_key")},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName("persons_username_key")},
		{Keys: bson.D{{Key: "person_type", Value: 1}}},
	})
	return pkgerrors.Wrap(err, "create person indexes")
}

func (r *MongoRepository) findPerson(ctx context.Context, filter bson.M) (*domain.Person, error) {
	var doc personDoc
	if err := r.persons.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPersonNotFound
		}
		return nil, err
	}
	return doc.toDomain()
}

func (r *MongoRepository) FindPersonByID(ctx context.Context, id uuid.UUID) (*domain.Person, error) {
	return r.findPerson(ctx, bson.M{"_id": id.String()})
}

func (r *MongoRepository) FindPersonByEmail(ctx context.Context, email string) (*domain.Person, error) {
	return r.findPerson(ctx, bson.M{"email": strings.TrimSpace(email)})
}

func (r *MongoRepository) FindPersonByUsername(ctx context.Context, username string) (*domain.Person, error) {
	return r.findPerson(ctx, bson.M{"username": strings.ToLower(strings.TrimSpace(username))})
}

func (r *MongoRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	n, err := r.persons.CountDocuments(ctx, bson.M{"email": strings.TrimSpace(email)}, options.Count().SetLimit(1))
	return n > 0, err
}

func (r *MongoRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	n, err := r.persons.CountDocuments(ctx, bson.M{"username": strings.ToLower(strings.TrimSpace(username))}, options.Count().SetLimit(1))
	return n > 0, err
}

var personSortFields = map[string]string{
	"lastName":  "last_name",
	"firstName": "first_name",
	"email":     "email",
	"username":  "username",
	"birthdate": "birthdate",
	"created":   "created_at",
	"updated":   "updated_at",
}

func (r *MongoRepository) FindPersons(ctx context.Context, q PersonQuery) ([]domain.Person, error) {
	filter := bson.M{}
	if q.PersonType != "" {
		filter["person_type"] = string(q.PersonType)
	}
	if q.LastName != "" {
		filter["last_name"] = q.LastName
	}
	if q.FirstName != "" {
		filter["first_name"] = q.FirstName
	}
	if q.Email != "" {
		filter["email"] = q.Email
	}
	if q.Username != "" {
		filter["username"] = strings.ToLower(q.Username)
	}
	if q.Gender != "" {
		filter["gender"] = string(q.Gender)
	}
	if q.CustomerState != "" {
		filter["customer.customer_state"] = string(q.CustomerState)
	}
	if q.TierLevel > 0 {
		filter["customer.tier_level"] = q.TierLevel
	}
	if q.Subscribed != nil {
		filter["customer.subscribed"] = *q.Subscribed
	}

	field := "created_at"
	if f, ok := personSortFields[q.SortBy]; ok {
		field = f
	}
	dir := 1
	if q.SortDir == SortDesc {
		dir = -1
	}
	opts := options.Find().SetSort(bson.D{{Key: field, Value: dir}, {Key: "_id", Value: 1}})
	if q.Offset > 0 {
		opts.SetSkip(int64(q.Offset))
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := r.persons.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	persons := make([]domain.Person, 0)
	for cur.Next(ctx) {
		var doc personDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		p, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		persons = append(persons, *p)
	}
	return persons, cur.Err()
}

func (r *MongoRepository) CreatePerson(ctx context.Context, p *domain.Person) error {
	now := time.Now().UTC()
	p.Version = 0
	p.Created = now
	p.Updated = now
	_, err := r.persons.InsertOne(ctx, toPersonDoc(p))
	return translateDuplicateKey(err)
}

func (r *MongoRepository) UpdatePerson(ctx context.Context, p *domain.Person) error {
	expected := p.Version
	next := *p
	next.Version = expected + 1
	next.Updated = time.Now().UTC()

	res, err := r.persons.ReplaceOne(ctx, bson.M{"_id": p.ID.String(), "version": expected}, toPersonDoc(&next))
	if err != nil {
		return translateDuplicateKey(err)
	}
	if res.MatchedCount == 0 {
		n, err := r.persons.CountDocuments(ctx, bson.M{"_id": p.ID.String()})
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrPersonNotFound
		}
		return ErrVersionConflict
	}
	p.Version = next.Version
	p.Updated = next.Updated
	return nil
}

func (r *MongoRepository) DeletePerson(ctx context.Context, id uuid.UUID) error {
	res, err := r.persons.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrPersonNotFound
	}
	return nil
}

func (r *MongoRepository) FindContactByID(ctx context.Context, id uuid.UUID) (*domain.Contact, error) {
	var doc contactDoc
	if err := r.contacts.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}
	return doc.toDomain()
}

func (r *MongoRepository) FindContactsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Contact, error) {
	if len(ids) == 0 {
		return []domain.Contact{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	cur, err := r.contacts.Find(ctx, bson.M{"_id": bson.M{"$in": keys}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	byID := make(map[uuid.UUID]domain.Contact, len(ids))
	for cur.Next(ctx) {
		var doc contactDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		c, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		byID[c.ID] = *c
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return orderContacts(ids, byID), nil
}

func (r *MongoRepository) CreateContact(ctx context.Context, c *domain.Contact) error {
	now := time.Now().UTC()
	c.Version = 0
	c.Created = now
	c.Updated = now
	_, err := r.contacts.InsertOne(ctx, toContactDoc(c))
	return err
}

func (r *MongoRepository) UpdateContact(ctx context.Context, c *domain.Contact) error {
	expected := c.Version
	next := *c
	next.Version = expected + 1
	next.Updated = time.Now().UTC()

	res, err := r.contacts.ReplaceOne(ctx, bson.M{"_id": c.ID.String(), "version": expected}, toContactDoc(&next))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		n, err := r.contacts.CountDocuments(ctx, bson.M{"_id": c.ID.String()})
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrContactNotFound
		}
		return ErrVersionConflict
	}
	c.Version = next.Version
	c.Updated = next.Updated
	return nil
}

func (r *MongoRepository) DeleteContact(ctx context.Context, id uuid.UUID) error {
	res, err := r.contacts.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrContactNotFound
	}
	return nil
}

func translateDuplicateKey(err error) error {
	if err == nil || !mongo.IsDuplicateKeyError(err) {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "persons_email_key"):
		return ErrEmailTaken
	case strings.Contains(msg, "persons_username_key"):
		return ErrUsernameTaken
	}
	return err
}
