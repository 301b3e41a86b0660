package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/erikfacundo/mechiv2-sub000/internal/apperr"
)

// Reserved top-level keys maintained by the store.
const (
	keyID        = "id"
	keyCreatedAt = "createdAt"
	keyUpdatedAt = "updatedAt"
)

var fieldRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Filter narrows a List call. Field/Value match a top-level JSON field by
// equality. OrderBy names a top-level field; the default is newest first.
type Filter struct {
	Field   string
	Value   any
	OrderBy string
	Desc    bool
	Limit   int
	Offset  int
}

type row struct {
	Collection string    `db:"collection"`
	ID         string    `db:"id"`
	Data       string    `db:"data"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r row) document() Document {
	return Document{
		Collection: r.Collection,
		ID:         r.ID,
		Data:       json.RawMessage(r.Data),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// Create stores data as a new document. An "id" field in data is used when
// present, otherwise a UUID is assigned.
func (db *DB) Create(ctx context.Context, collection string, data any) (string, error) {
	fields, err := toFields(data)
	if err != nil {
		return "", err
	}

	var id string
	if raw, ok := fields[keyID]; ok {
		_ = json.Unmarshal(raw, &id)
	}
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}

	now := db.now().UTC()
	stamp, _ := json.Marshal(now)
	fields[keyID], _ = json.Marshal(id)
	fields[keyCreatedAt] = stamp
	fields[keyUpdatedAt] = stamp

	body, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("docstore: encode: %w", err)
	}

	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO NOTHING
	`, collection, id, string(body), now, now)
	if err != nil {
		return "", fmt.Errorf("docstore: create %s: %w", collection, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", fmt.Errorf("%s/%s: %w", collection, id, apperr.ErrAlreadyExists)
	}
	return id, nil
}

// Get returns a single document.
func (db *DB) Get(ctx context.Context, collection, id string) (*Document, error) {
	var r row
	err := db.conn.GetContext(ctx, &r,
		`SELECT collection, id, data, created_at, updated_at FROM documents WHERE collection = ? AND id = ?`,
		collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: get %s/%s: %w", collection, id, err)
	}
	doc := r.document()
	return &doc, nil
}

// List returns the documents of a collection matching f.
func (db *DB) List(ctx context.Context, collection string, f Filter) ([]Document, error) {
	query := `SELECT collection, id, data, created_at, updated_at FROM documents WHERE collection = ?`
	args := []any{collection}

	if f.Field != "" {
		if !fieldRe.MatchString(f.Field) {
			return nil, fmt.Errorf("%w: filter field %q", apperr.ErrInvalid, f.Field)
		}
		query += ` AND json_extract(data, '$.` + f.Field + `') = ?`
		args = append(args, f.Value)
	}

	order := "created_at DESC"
	if f.OrderBy != "" {
		if !fieldRe.MatchString(f.OrderBy) {
			return nil, fmt.Errorf("%w: order field %q", apperr.ErrInvalid, f.OrderBy)
		}
		dir := "ASC"
		if f.Desc {
			dir = "DESC"
		}
		order = `json_extract(data, '$.` + f.OrderBy + `') ` + dir
	}
	query += " ORDER BY " + order + ", id"

	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	var rows []row
	if err := db.conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("docstore: list %s: %w", collection, err)
	}
	out := make([]Document, len(rows))
	for i, r := range rows {
		out[i] = r.document()
	}
	return out, nil
}

// Update merges the top-level fields of patch into the stored document.
// Fields absent from patch are left as they are; id and createdAt cannot
// be changed.
func (db *DB) Update(ctx context.Context, collection, id string, patch any) error {
	changes, err := toFields(patch)
	if err != nil {
		return err
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("docstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var current string
	err = tx.GetContext(ctx, &current, `SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s/%s: %w", collection, id, apperr.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("docstore: load %s/%s: %w", collection, id, err)
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal([]byte(current), &fields); err != nil {
		return fmt.Errorf("docstore: decode %s/%s: %w", collection, id, err)
	}
	for k, v := range changes {
		if k == keyID || k == keyCreatedAt {
			continue
		}
		fields[k] = v
	}
	now := db.now().UTC()
	fields[keyUpdatedAt], _ = json.Marshal(now)

	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("docstore: encode: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		string(body), now, collection, id); err != nil {
		return fmt.Errorf("docstore: update %s/%s: %w", collection, id, err)
	}
	return tx.Commit()
}

// Delete removes a document.
func (db *DB) Delete(ctx context.Context, collection, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("docstore: delete %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, apperr.ErrNotFound)
	}
	return nil
}

// OrderNumbersForYear returns every order number issued for year.
func (db *DB) OrderNumbersForYear(ctx context.Context, year int) ([]string, error) {
	var out []string
	err := db.conn.SelectContext(ctx, &out, `
		SELECT json_extract(data, '$.orderNumber') FROM documents
		WHERE collection = ? AND json_extract(data, '$.orderNumber') LIKE ?
	`, Orders, fmt.Sprintf("%%-%d-%%", year))
	if err != nil {
		return nil, fmt.Errorf("docstore: order numbers %d: %w", year, err)
	}
	return out, nil
}

// toFields converts v into its top-level JSON fields. v must encode to a
// JSON object.
func toFields(v any) (map[string]json.RawMessage, error) {
	var data []byte
	switch t := v.(type) {
	case json.RawMessage:
		data = t
	case []byte:
		data = t
	default:
		var err error
		if data, err = json.Marshal(v); err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
		}
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: document must be a JSON object", apperr.ErrInvalid)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: document must be a JSON object", apperr.ErrInvalid)
	}
	return fields, nil
}
