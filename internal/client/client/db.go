package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/ledgersync/internal/client/migrations"
	"github.com/dmitrijs2005/ledgersync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/ledgersync/internal/client/repositories/outbox"
	"github.com/dmitrijs2005/ledgersync/internal/dbx"
)

// Repositories groups the SQLite-backed stores of the client.
type Repositories struct {
	Metadata metadata.Repository
	Outbox   outbox.Repository
}

// NewRepositories binds every repository to db, which may be a transaction.
func NewRepositories(db dbx.DBTX) *Repositories {
	return &Repositories{
		Metadata: metadata.NewSQLiteRepository(db),
		Outbox:   outbox.NewSQLiteRepository(db),
	}
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return gooseUpContext(ctx, db, ".")
}

// InitDatabase opens the SQLite file at dsn and applies the embedded
// migrations.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
