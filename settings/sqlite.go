package settings

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value INTEGER NOT NULL
)`

// SQLStore keeps settings as rows of a SQLite table, one per key.
type SQLStore struct {
	db   *sql.DB
	path string

	// Defaults fill keys with no row. OpenSQL sets Default().
	Defaults Settings
}

// OpenSQL opens or creates the database at path. The special path
// ":memory:" opens a private in-memory database.
func OpenSQL(ctx context.Context, path string) (*SQLStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("ensure settings dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create settings table: %w", err)
	}
	return &SQLStore{db: db, path: path, Defaults: Default()}, nil
}

// Path returns the database path.
func (s *SQLStore) Path() string {
	return s.path
}

// Load reads every known key; absent rows take defaults.
func (s *SQLStore) Load(ctx context.Context) (Settings, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return Settings{}, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	var p Patch
	for rows.Next() {
		var (
			key   string
			value int64
		)
		if err := rows.Scan(&key, &value); err != nil {
			return Settings{}, fmt.Errorf("scan setting: %w", err)
		}
		switch key {
		case KeyEnabled:
			p.Enabled = Bool(value != 0)
		case KeySmartRounding:
			p.SmartRounding = Bool(value != 0)
		}
	}
	if err := rows.Err(); err != nil {
		return Settings{}, fmt.Errorf("iterate settings: %w", err)
	}
	return p.Apply(s.Defaults), nil
}

// Save upserts both keys in one transaction.
func (s *SQLStore) Save(ctx context.Context, st Settings) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	values := []struct {
		key string
		on  bool
	}{
		{KeyEnabled, st.Enabled},
		{KeySmartRounding, st.SmartRounding},
	}
	for _, v := range values {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?)
             ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			v.key, boolToInt(v.on),
		); err != nil {
			return fmt.Errorf("save setting %s: %w", v.key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
