// Package credentials implements CredentialStore: a durable, process-safe
// key-value store of per-app test credentials, backed by a single embedded
// SQLite table separate from the per-run PersistenceStore database — it
// outlives any one run.
package credentials

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/codeready-toolchain/crawlforge/pkg/models"
)

// Store is the CredentialStore.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the credential database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("credentials: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Has reports whether credentials are on file for appPackage.
func (s *Store) Has(ctx context.Context, appPackage string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM app_credentials WHERE app_package = ?`, appPackage,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("credentials: has(%s): %w", appPackage, err)
	}
	return true, nil
}

// Get returns the stored credential record for appPackage, or
// (nil, nil) if none exists.
func (s *Store) Get(ctx context.Context, appPackage string) (*models.CredentialRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT app_package, email, password, name, extras, signup_completed, login_count, created_at, updated_at
		 FROM app_credentials WHERE app_package = ?`, appPackage)

	var c models.CredentialRecord
	var name, extras sql.NullString
	err := row.Scan(&c.AppPackage, &c.Email, &c.Password, &name, &extras, &c.SignupCompleted, &c.LoginCount, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credentials: get(%s): %w", appPackage, err)
	}
	c.Name = name.String
	c.Extras = extras.String
	return &c, nil
}

// Store upserts the credential record for appPackage: last-write-wins, one
// row per package.
func (s *Store) Store(ctx context.Context, appPackage, email, password, name, extras string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO app_credentials (app_package, email, password, name, extras, signup_completed, login_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 1, 0, ?, ?)
		 ON CONFLICT(app_package) DO UPDATE SET
		   email = excluded.email,
		   password = excluded.password,
		   name = excluded.name,
		   extras = excluded.extras,
		   signup_completed = 1,
		   updated_at = excluded.updated_at`,
		appPackage, email, password, nullableString(name), nullableString(extras), now, now,
	)
	if err != nil {
		return fmt.Errorf("credentials: store(%s): %w", appPackage, err)
	}
	return nil
}

// IncrementLoginCount bumps the login counter for appPackage.
func (s *Store) IncrementLoginCount(ctx context.Context, appPackage string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE app_credentials SET login_count = login_count + 1, updated_at = ? WHERE app_package = ?`,
		time.Now().UTC(), appPackage,
	)
	if err != nil {
		return fmt.Errorf("credentials: increment_login_count(%s): %w", appPackage, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("credentials: increment_login_count(%s): no credentials on file", appPackage)
	}
	return nil
}

// Delete removes any stored credentials for appPackage.
func (s *Store) Delete(ctx context.Context, appPackage string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM app_credentials WHERE app_package = ?`, appPackage)
	if err != nil {
		return fmt.Errorf("credentials: delete(%s): %w", appPackage, err)
	}
	return nil
}

// ListAll returns every stored credential as a summary — passwords are
// never returned in bulk listings.
func (s *Store) ListAll(ctx context.Context) ([]models.CredentialSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT app_package, email, name, signup_completed, login_count, updated_at FROM app_credentials ORDER BY app_package`)
	if err != nil {
		return nil, fmt.Errorf("credentials: list_all: %w", err)
	}
	defer rows.Close()

	var out []models.CredentialSummary
	for rows.Next() {
		var c models.CredentialSummary
		var name sql.NullString
		if err := rows.Scan(&c.AppPackage, &c.Email, &name, &c.SignupCompleted, &c.LoginCount, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("credentials: scan summary: %w", err)
		}
		c.Name = name.String
		out = append(out, c)
	}
	return out, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
