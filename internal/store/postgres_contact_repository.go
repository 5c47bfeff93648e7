package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pkgerrors "github.com/pkg/errors"

	"github.com/omnixys/omnixys-person-service/internal/domain"
)

// PostgresContactRepository stores contacts as JSONB documents.
type PostgresContactRepository struct {
	db *pgxpool.Pool
}

func NewPostgresContactRepository(db *pgxpool.Pool) *PostgresContactRepository {
	return &PostgresContactRepository{db: db}
}

const selectContact = `SELECT document::text, version, created_at, updated_at FROM contacts`

func scanContact(row pgx.Row) (*domain.Contact, error) {
	var (
		doc              string
		version          int
		created, updated time.Time
	)
	if err := row.Scan(&doc, &version, &created, &updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}
	var c domain.Contact
	if err := json.Unmarshal([]byte(doc), &c); err != nil {
		return nil, pkgerrors.Wrap(err, "decode contact document")
	}
	c.Version = version
	c.Created = created
	c.Updated = updated
	return &c, nil
}

func (r *PostgresContactRepository) FindContactByID(ctx context.Context, id uuid.UUID) (*domain.Contact, error) {
	return scanContact(r.db.QueryRow(ctx, selectContact+` WHERE id = $1`, id))
}

func (r *PostgresContactRepository) FindContactsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Contact, error) {
	if len(ids) == 0 {
		return []domain.Contact{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	rows, err := r.db.Query(ctx, selectContact+` WHERE id = ANY($1::uuid[])`, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]domain.Contact, len(ids))
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		byID[c.ID] = *c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orderContacts(ids, byID), nil
}

func (r *PostgresContactRepository) CreateContact(ctx context.Context, c *domain.Contact) error {
	now := time.Now().UTC()
	c.Version = 0
	c.Created = now
	c.Updated = now
	doc, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO contacts (id, version, document, created_at, updated_at)
		VALUES ($1, 0, $2::jsonb, $3, $3)
	`, c.ID, string(doc), now)
	return err
}

func (r *PostgresContactRepository) UpdateContact(ctx context.Context, c *domain.Contact) error {
	expected := c.Version
	next := *c
	next.Version = expected + 1
	next.Updated = time.Now().UTC()
	doc, err := json.Marshal(&next)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE contacts
		SET version = version + 1, document = $3::jsonb, updated_at = $4
		WHERE id = $1 AND version = $2
	`, c.ID, expected, string(doc), next.Updated)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM contacts WHERE id = $1)`, c.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrContactNotFound
		}
		return ErrVersionConflict
	}
	c.Version = next.Version
	c.Updated = next.Updated
	return nil
}

func (r *PostgresContactRepository) DeleteContact(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrContactNotFound
	}
	return nil
}

func orderContacts(ids []uuid.UUID, byID map[uuid.UUID]domain.Contact) []domain.Contact {
	out := make([]domain.Contact, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out
}
