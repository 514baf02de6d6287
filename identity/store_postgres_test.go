package identity

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassifyUniqueViolation(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		wantField string
		wantOK    bool
	}{
		{"email index", &pgconn.PgError{Code: "23505", ConstraintName: "uq_identities_email"}, "email", true},
		{"primary key", &pgconn.PgError{Code: "23505", ConstraintName: "identities_pkey"}, "id", true},
		{"wrapped", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "UQ_IDENTITIES_EMAIL"}), "email", true},
		{"fk violation", &pgconn.PgError{Code: "23503"}, "", false},
		{"plain error", errors.New("boom"), "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			field, ok := pgClassifyUniqueViolation(tc.err)
			if ok != tc.wantOK || field != tc.wantField {
				t.Fatalf("got (%q, %v), want (%q, %v)", field, ok, tc.wantField, tc.wantOK)
			}
		})
	}
}

func TestNewPostgresStoreValidation(t *testing.T) {
	if _, err := NewPostgresStore(nil); err == nil {
		t.Fatal("expected nil pool to be rejected")
	}
	if _, err := NewPostgresStore(nil, WithSchema("bad-schema;")); err == nil {
		t.Fatal("expected invalid schema to be rejected")
	}
}

func TestMigrateOptionsNormalize(t *testing.T) {
	got, err := MigrateOptions{}.normalize()
	if err != nil {
		t.Fatalf("normalize defaults: %v", err)
	}
	if got.Schema != "public" || got.Table != "identity_schema_migrations" {
		t.Fatalf("unexpected defaults %+v", got)
	}
	if _, err := (MigrateOptions{Schema: "auth; DROP"}).normalize(); err == nil {
		t.Fatal("expected invalid schema to be rejected")
	}
	if err := Migrate(context.Background(), nil, MigrateOptions{}); !errors.Is(err, ErrMigrate) {
		t.Fatalf("expected ErrMigrate for nil pool, got %v", err)
	}
}
