package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	msqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"nodove/auth/internal/repository"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Storage is the user directory backed by SQLite.
type Storage struct {
	db *sql.DB
}

var _ repository.UserRepository = (*Storage)(nil)

func New(storagePath string) (*Storage, error) {
	const op = "storage.sqlite.New"

	db, err := sql.Open("sqlite", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return nil, fmt.Errorf("%s: failed to enable WAL mode: %w", op, err)
	}

	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		return nil, fmt.Errorf("%s: failed to set synchronous mode: %w", op, err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		return nil, fmt.Errorf("%s: failed to set busy timeout: %w", op, err)
	}

	return &Storage{db: db}, nil
}

// Migrate applies the embedded schema migrations. It reports whether anything changed.
func (s *Storage) Migrate() (bool, error) {
	const op = "storage.sqlite.Migrate"

	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	driver, err := msqlite.WithInstance(s.db, &msqlite.Config{MigrationsTable: "migrations"})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	// m.Close would close s.db through the driver, so only the source is released.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer src.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return true, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}
