package prefstore

import (
	"database/sql"
	"embed"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	zlog "github.com/rs/zerolog/log"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SqliteConfig holds settings for the sqlite backend.
type SqliteConfig struct {
	DSN string `mapstructure:"dsn" default:"file:zora.db" validate:"required"`
}

// SqliteStore keeps preferences in a sqlite table.
type SqliteStore struct {
	db *sqlx.DB
}

// NewSqliteStore opens the database and applies migrations.
func NewSqliteStore(dsn string) (*SqliteStore, error) {
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open sqlite %s", dsn)
	}
	// :memory: databases are per connection
	db.SetMaxOpenConns(1)

	s := &SqliteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqliteStore) migrate() error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{})

	if err := goose.SetDialect(string(goose.DialectSQLite3)); err != nil {
		return errors.Wrap(err, "failed to set goose dialect")
	}
	if err := goose.Up(s.db.DB, "migrations"); err != nil {
		return errors.Wrap(err, "failed to apply migrations")
	}
	return nil
}

// Get returns the stored value.
func (s *SqliteStore) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.Get(&value, "SELECT value FROM preferences WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read preference %s", key)
	}
	return value, nil
}

// Set upserts the value.
func (s *SqliteStore) Set(key string, value []byte) error {
	query := `
	INSERT INTO preferences (key, value, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT (key) DO UPDATE SET
	value = excluded.value,
	updated_at = excluded.updated_at
	`
	if _, err := s.db.Exec(query, key, value, time.Now().UnixMilli()); err != nil {
		return errors.Wrapf(err, "failed to write preference %s", key)
	}
	return nil
}

// Close closes the database.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

// gooseLogger routes migration output through zerolog.
type gooseLogger struct{}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	zlog.Error().Msgf("goose: "+format, v...)
}

func (gooseLogger) Printf(format string, v ...interface{}) {
	zlog.Debug().Msgf("goose: "+format, v...)
}
