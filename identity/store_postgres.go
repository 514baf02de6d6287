package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
//
// The pgx pool is owned by the caller; the store never closes it. Email
// uniqueness is enforced by the uq_identities_email index created by
// [Migrate].
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the schema holding the identities table (default "public").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "public",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "identities"}.Sanitize()
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	var (
		out Identity
		uid *string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, email, uid, created_at FROM `+s.table()+` WHERE email = $1`,
		email,
	).Scan(&out.ID, &out.Email, &uid, &out.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if uid != nil {
		out.UID = *uid
	}
	return &out, nil
}

func (s *PostgresStore) Create(ctx context.Context, in Identity) (*Identity, error) {
	const op = "identity.PostgresStore.Create"

	var uid *string
	if in.UID != "" {
		uid = &in.UID
	}

	out := in
	err := s.pool.QueryRow(ctx,
		`INSERT INTO `+s.table()+` (id, email, uid, created_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		in.ID, in.Email, uid, in.CreatedAt,
	).Scan(&out.CreatedAt)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return nil, ConflictError{Op: op, Field: field}
		}
		return nil, err
	}
	return &out, nil
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch {
	case c == "uq_identities_email", strings.Contains(c, "email"):
		return "email", true
	case strings.Contains(c, "pkey"):
		return "id", true
	default:
		return "", true
	}
}
