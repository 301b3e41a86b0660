// Package docstore is a SQLite-backed JSON document store. Each document
// lives in a named collection and is addressed by id.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Collection names.
const (
	Clients              = "clients"
	Vehicles             = "vehicles"
	Orders               = "orders"
	Categories           = "categories"
	Templates            = "templates"
	Expenses             = "expenses"
	Providers            = "providers"
	Appointments         = "appointments"
	Users                = "users"
	MaintenanceReminders = "maintenance-reminders"
)

// Known lists every collection the service exposes.
var Known = []string{
	Clients, Vehicles, Orders, Categories, Templates,
	Expenses, Providers, Appointments, Users, MaintenanceReminders,
}

// IsKnown reports whether name is a collection the service exposes.
func IsKnown(name string) bool {
	for _, k := range Known {
		if k == name {
			return true
		}
	}
	return false
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (collection, id)
);

CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(collection, created_at);
`

// Document is one stored record.
type Document struct {
	Collection string
	ID         string
	Data       json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Decode unmarshals the document body into v.
func (d *Document) Decode(v any) error {
	return json.Unmarshal(d.Data, v)
}

// Store is the generic CRUD contract the domain layer depends on.
type Store interface {
	Create(ctx context.Context, collection string, data any) (string, error)
	Get(ctx context.Context, collection, id string) (*Document, error)
	List(ctx context.Context, collection string, f Filter) ([]Document, error)
	Update(ctx context.Context, collection, id string, patch any) error
	Delete(ctx context.Context, collection, id string) error
}

var _ Store = (*DB)(nil)

// DB is the SQLite implementation of Store.
type DB struct {
	conn *sqlx.DB
	now  func() time.Time
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sqlx.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("docstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: apply schema: %w", err)
	}
	return &DB{conn: conn, now: time.Now}, nil
}

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
