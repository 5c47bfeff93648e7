/**
 * @description
 * PostgreSQL implementation of PersonRepository. The aggregate is stored as a
 * JSONB document; id, version, username and email are promoted to columns so
 * uniqueness and the optimistic lock are enforced by the database.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver and pool.
 */

package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pkgerrors "github.com/pkg/errors"

	"github.com/omnixys/omnixys-person-service/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return pkgerrors.Wrap(err, "apply schema")
	}
	return nil
}

// PostgresPersonRepository is the Postgres-backed PersonRepository.
type PostgresPersonRepository struct {
	db *pgxpool.Pool
}

// NewPostgresPersonRepository creates a new PostgresPersonRepository.
func NewPostgresPersonRepository(db *pgxpool.Pool) *PostgresPersonRepository {
	return &PostgresPersonRepository{db: db}
}

const selectPerson = `SELECT document::text, version, created_at, updated_at FROM persons`

func scanPerson(row pgx.Row) (*domain.Person, error) {
	var (
		doc              string
		version          int
		created, updated time.Time
	)
	if err := row.Scan(&doc, &version, &created, &updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPersonNotFound
		}
		return nil, err
	}
	var p domain.Person
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, pkgerrors.Wrap(err, "decode person document")
	}
	p.Version = version
	p.Created = created
	p.Updated = updated
	return &p, nil
}

func (r *PostgresPersonRepository) FindPersonByID(ctx context.Context, id uuid.UUID) (*domain.Person, error) {
	return scanPerson(r.db.QueryRow(ctx, selectPerson+` WHERE id = $1`, id))
}

func (r *PostgresPersonRepository) FindPersonByEmail(ctx context.Context, email string) (*domain.Person, error) {
	return scanPerson(r.db.QueryRow(ctx, selectPerson+` WHERE email = $1`, strings.TrimSpace(email)))
}

func (r *PostgresPersonRepository) FindPersonByUsername(ctx context.Context, username string) (*domain.Person, error) {
	return scanPerson(r.db.QueryRow(ctx, selectPerson+` WHERE username = $1`, strings.ToLower(strings.TrimSpace(username))))
}

func (r *PostgresPersonRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM persons WHERE email = $1)`, strings.TrimSpace(email)).Scan(&exists)
	return exists, err
}

func (r *PostgresPersonRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM persons WHERE username = $1)`, strings.ToLower(strings.TrimSpace(username))).Scan(&exists)
	return exists, err
}

var personSortColumns = map[string]string{
	"lastName":  "document->>'lastName'",
	"firstName": "document->>'firstName'",
	"email":     "email",
	"username":  "username",
	"birthdate": "document->>'birthdate'",
	"created":   "created_at",
	"updated":   "updated_at",
}

func (r *PostgresPersonRepository) FindPersons(ctx context.Context, q PersonQuery) ([]domain.Person, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(expr string, value interface{}) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(expr, len(args)))
	}
	if q.PersonType != "" {
		add("person_type = $%d", string(q.PersonType))
	}
	if q.LastName != "" {
		add("document->>'lastName' = $%d", q.LastName)
	}
	if q.FirstName != "" {
		add("document->>'firstName' = $%d", q.FirstName)
	}
	if q.Email != "" {
		add("email = $%d", q.Email)
	}
	if q.Username != "" {
		add("username = $%d", strings.ToLower(q.Username))
	}
	if q.Gender != "" {
		add("document->>'gender' = $%d", string(q.Gender))
	}
	if q.CustomerState != "" {
		add("document->'customer'->>'customerState' = $%d", string(q.CustomerState))
	}
	if q.TierLevel > 0 {
		add("(document->'customer'->>'tierLevel')::int = $%d", q.TierLevel)
	}
	if q.Subscribed != nil {
		add("(document->'customer'->>'subscribed')::boolean = $%d", *q.Subscribed)
	}

	var sb strings.Builder
	sb.WriteString(selectPerson)
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	order := "created_at"
	if col, ok := personSortColumns[q.SortBy]; ok {
		order = col
	}
	dir := "ASC"
	if q.SortDir == SortDesc {
		dir = "DESC"
	}
	fmt.Fprintf(&sb, " ORDER BY %s %s, id", order, dir)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	persons := make([]domain.Person, 0)
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		persons = append(persons, *p)
	}
	return persons, rows.Err()
}

func (r *PostgresPersonRepository) CreatePerson(ctx context.Context, p *domain.Person) error {
	now := time.Now().UTC()
	p.Version = 0
	p.Created = now
	p.Updated = now
	doc, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO persons (id, version, person_type, username, email, document, created_at, updated_at)
		VALUES ($1, 0, $2, $3, $4, $5::jsonb, $6, $6)
	`, p.ID, string(p.PersonType), p.Username, p.Email, string(doc), now)
	return translateUniqueViolation(err)
}

func (r *PostgresPersonRepository) UpdatePerson(ctx context.Context, p *domain.Person) error {
	expected := p.Version
	next := *p
	next.Version = expected + 1
	next.Updated = time.Now().UTC()
	doc, err := json.Marshal(&next)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE persons
		SET version = version + 1,
			person_type = $3,
			username = $4,
			email = $5,
			document = $6::jsonb,
			updated_at = $7
		WHERE id = $1 AND version = $2
	`, p.ID, expected, string(p.PersonType), p.Username, p.Email, string(doc), next.Updated)
	if err != nil {
		return translateUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM persons WHERE id = $1)`, p.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrPersonNotFound
		}
		return ErrVersionConflict
	}
	p.Version = next.Version
	p.Updated = next.Updated
	return nil
}

func (r *PostgresPersonRepository) DeletePerson(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM persons WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPersonNotFound
	}
	return nil
}

func translateUniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "persons_email_key":
			return ErrEmailTaken
		case "persons_username_key":
			return ErrUsernameTaken
		}
	}
	return err
}
