// Package store implements the persistent startup-script document
// (§6), grounded on main/storage.cpp's in-memory startup buffer backed
// by chunked flash writes. Flash has no analogue on a general-purpose
// host, so this repo persists the same buffer as a single row in a
// SQL database instead of fixed-size chunks — chunking existed only to
// fit NVS's per-key size limit, which a database row doesn't have.
package store

import (
	"database/sql"
	"strings"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"ctrlscript/internal/errors"
)

const (
	schemaSQLite   = `CREATE TABLE IF NOT EXISTS startup (id INTEGER PRIMARY KEY CHECK (id = 0), script TEXT NOT NULL)`
	schemaPostgres = `CREATE TABLE IF NOT EXISTS startup (id INTEGER PRIMARY KEY CHECK (id = 0), script TEXT NOT NULL)`
	schemaMySQL    = `CREATE TABLE IF NOT EXISTS startup (id INTEGER PRIMARY KEY, script LONGTEXT NOT NULL)`
)

// Backend is the single-row SQL-backed startup-script document.
// Connect selects the dialect the same way the teacher's DBManager
// did, reusing the same three driver imports (sqlite/postgres/mysql);
// the fourth dialect the teacher's DBManager also supported,
// go-mssqldb, is not wired here — see DESIGN.md.
type Backend struct {
	mu      sync.Mutex
	db      *sql.DB
	dialect string
	startup string
}

// Connect opens the backing database and loads the current startup
// script into memory, matching Storage::init's eager load.
func Connect(dialect, dsn string) (*Backend, error) {
	driverName, schema, err := dialectSchema(dialect)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, errors.NewDeviceError("failed to open %s database: %s", dialect, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.NewDeviceError("failed to reach %s database: %s", dialect, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.NewDeviceError("failed to prepare startup table: %s", err)
	}
	b := &Backend{db: db, dialect: dialect}
	startup, err := b.load()
	if err != nil {
		db.Close()
		return nil, err
	}
	b.startup = startup
	return b, nil
}

func dialectSchema(dialect string) (driverName, schema string, err error) {
	switch dialect {
	case "sqlite", "sqlite3":
		return "sqlite", schemaSQLite, nil
	case "postgres", "postgresql":
		return "postgres", schemaPostgres, nil
	case "mysql":
		return "mysql", schemaMySQL, nil
	default:
		return "", "", errors.NewDeviceError("unsupported startup-store dialect %q", dialect)
	}
}

func (b *Backend) load() (string, error) {
	var script string
	err := b.db.QueryRow(`SELECT script FROM startup WHERE id = 0`).Scan(&script)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.NewDeviceError("failed to load startup script: %s", err)
	}
	return script, nil
}

// Close releases the underlying database handle.
func (b *Backend) Close() error { return b.db.Close() }

// Startup returns every currently stored startup line, in order.
func (b *Backend) Startup() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return splitLines(b.startup)
}

// AppendToStartup adds one line to the end of the startup script
// (the "!+" control command), matching Storage::append_to_startup.
func (b *Backend) AppendToStartup(line string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.startup += line + "\n"
	return nil
}

// RemoveFromStartup drops every stored line that begins with prefix
// (the "!-" control command), matching Storage::remove_from_startup.
func (b *Backend) RemoveFromStartup(prefix string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var kept strings.Builder
	for _, line := range splitLines(b.startup) {
		if !strings.HasPrefix(line, prefix) {
			kept.WriteString(line)
			kept.WriteByte('\n')
		}
	}
	b.startup = kept.String()
	return nil
}

// PrintStartup returns every stored line that begins with prefix (the
// "!?" control command), matching Storage::print_startup.
func (b *Backend) PrintStartup(prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, line := range splitLines(b.startup) {
		if strings.HasPrefix(line, prefix) {
			out = append(out, line)
		}
	}
	return out, nil
}

// SaveStartup persists the in-memory startup script to the backing
// database (the "!." control command), matching Storage::save_startup.
func (b *Backend) SaveStartup() error {
	b.mu.Lock()
	script := b.startup
	b.mu.Unlock()

	res, err := b.db.Exec(`UPDATE startup SET script = ? WHERE id = 0`, script)
	if err != nil {
		return b.insertOrError(script, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return b.insertOrError(script, nil)
	}
	return nil
}

func (b *Backend) insertOrError(script string, updateErr error) error {
	_, err := b.db.Exec(`INSERT INTO startup (id, script) VALUES (0, ?)`, script)
	if err != nil {
		if updateErr != nil {
			return errors.NewDeviceError("failed to save startup script: %s (update also failed: %s)", err, updateErr)
		}
		return errors.NewDeviceError("failed to save startup script: %s", err)
	}
	return nil
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
