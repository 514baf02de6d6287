package identity

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrMigrate wraps any failure applying the identity schema.
var ErrMigrate = errors.New("identity: failed to apply migrations")

// MigrateOptions configures [Migrate].
type MigrateOptions struct {
	// Schema receives the identities table and the version table. It must
	// match the store's [WithSchema]; empty means "public". A schema other
	// than "public" is created when missing.
	Schema string
	// Table names the goose version table.
	Table  string
	Logger goose.Logger
}

func (o MigrateOptions) normalize() (MigrateOptions, error) {
	o.Schema = strings.TrimSpace(o.Schema)
	if o.Schema == "" {
		o.Schema = "public"
	}
	if !pgIdentRe.MatchString(o.Schema) {
		return o, fmt.Errorf("invalid schema identifier %q", o.Schema)
	}
	if o.Table == "" {
		o.Table = "identity_schema_migrations"
	}
	return o, nil
}

// Migrate applies the embedded identity schema inside opts.Schema. The
// caller's pool stays open; migrations run on a short-lived pool cloned
// from its config with search_path pinned to the schema.
//
// goose keeps its settings in package globals, so Migrate must not run
// concurrently with other goose users in the same process.
func Migrate(ctx context.Context, pool *pgxpool.Pool, opts MigrateOptions) error {
	if pool == nil {
		return errors.Join(ErrMigrate, errors.New("nil pool"))
	}
	opts, err := opts.normalize()
	if err != nil {
		return errors.Join(ErrMigrate, err)
	}

	if opts.Schema != "public" {
		if _, err := pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+pgx.Identifier{opts.Schema}.Sanitize()); err != nil {
			return errors.Join(ErrMigrate, err)
		}
	}

	cfg := pool.Config()
	if cfg.ConnConfig.RuntimeParams == nil {
		cfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = opts.Schema
	cfg.MinConns = 0
	cfg.MaxConns = 1
	scoped, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return errors.Join(ErrMigrate, err)
	}
	defer scoped.Close()

	db := stdlib.OpenDBFromPool(scoped)
	defer func() { _ = db.Close() }()

	if opts.Logger != nil {
		goose.SetLogger(opts.Logger)
	}
	goose.SetBaseFS(migrations)
	goose.SetTableName(opts.Table)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrMigrate, err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return errors.Join(ErrMigrate, err)
	}
	return nil
}
