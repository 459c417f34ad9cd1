package compat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DBTX is the query surface shared by *sql.DB and *sql.Tx, so the registry
// and group store run unchanged inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// timeFormat is how timestamps are stored in TEXT columns.
const timeFormat = time.RFC3339Nano

// PhoneRegistry maps folded model names to phone records.
type PhoneRegistry struct {
	db  DBTX
	now func() time.Time
}

// NewPhoneRegistry binds a registry to a connection or transaction.
func NewPhoneRegistry(db DBTX) *PhoneRegistry {
	return &PhoneRegistry{db: db, now: time.Now}
}

const phoneColumns = `model_id, search_key, display_group_id, glass_group_id, created_at, updated_at`

// Find looks a phone up case-insensitively.
// Returns ErrPhoneNotFound if no record matches.
func (r *PhoneRegistry) Find(ctx context.Context, name string) (*PhoneRecord, error) {
	key := FoldKey(name)
	if key == "" {
		return nil, ErrPhoneNotFound
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT `+phoneColumns+` FROM phones WHERE search_key = ?`, key)
	p, err := scanPhone(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPhoneNotFound
		}
		return nil, fmt.Errorf("querying phone: %w", err)
	}
	return p, nil
}

// FindMany fetches the phones for names, keyed by folded name. Names with no
// record are simply absent from the result.
func (r *PhoneRegistry) FindMany(ctx context.Context, names []string) (map[string]*PhoneRecord, error) {
	keys := make([]any, 0, len(names))
	for _, n := range names {
		if k := FoldKey(n); k != "" {
			keys = append(keys, k)
		}
	}
	found := make(map[string]*PhoneRecord, len(keys))
	if len(keys) == 0 {
		return found, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+phoneColumns+` FROM phones WHERE search_key IN (`+placeholders(len(keys))+`)`,
		keys...)
	if err != nil {
		return nil, fmt.Errorf("querying phones: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPhone(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning phone: %w", err)
		}
		found[p.SearchKey] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating phones: %w", err)
	}
	return found, nil
}

// ListAll returns every model id in byte order (case-sensitive).
func (r *PhoneRegistry) ListAll(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT model_id FROM phones ORDER BY model_id`)
	if err != nil {
		return nil, fmt.Errorf("listing phones: %w", err)
	}
	defer rows.Close()

	models := []string{}
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scanning model id: %w", err)
		}
		models = append(models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating phones: %w", err)
	}
	return models, nil
}

// List returns every phone record ordered by model id.
func (r *PhoneRegistry) List(ctx context.Context) ([]PhoneRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+phoneColumns+` FROM phones ORDER BY model_id`)
	if err != nil {
		return nil, fmt.Errorf("listing phones: %w", err)
	}
	defer rows.Close()

	var phones []PhoneRecord
	for rows.Next() {
		p, err := scanPhone(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning phone: %w", err)
		}
		phones = append(phones, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating phones: %w", err)
	}
	return phones, nil
}

// Upsert creates the phone if absent, otherwise points its part reference at
// groupID. The other category's reference is never touched, and an existing
// model id keeps its original spelling.
func (r *PhoneRegistry) Upsert(ctx context.Context, modelID string, part PartType, groupID string) error {
	return r.UpsertMany(ctx, []string{modelID}, part, groupID)
}

// UpsertMany applies Upsert to every model through one prepared statement.
// Re-running it with the same arguments converges to the same state.
func (r *PhoneRegistry) UpsertMany(ctx context.Context, modelIDs []string, part PartType, groupID string) error {
	if !part.Valid() {
		return ErrInvalidPartType
	}
	if len(modelIDs) == 0 {
		return nil
	}

	col := part.column()
	stmt, err := r.db.PrepareContext(ctx, `INSERT INTO phones
		(model_id, search_key, `+col+`, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(search_key) DO UPDATE SET
			`+col+` = excluded.`+col+`,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("preparing phone upsert: %w", err)
	}
	defer stmt.Close()

	now := r.now().UTC().Format(timeFormat)
	for _, m := range modelIDs {
		modelID, err := CleanModelName(m)
		if err != nil {
			return fmt.Errorf("%w: %q", err, m)
		}
		if _, err := stmt.ExecContext(ctx, modelID, FoldKey(modelID), groupID, now, now); err != nil {
			return fmt.Errorf("upserting phone %q: %w", modelID, err)
		}
	}
	return nil
}

// Remove deletes the phone matching name.
// Returns ErrPhoneNotFound if there was nothing to delete.
func (r *PhoneRegistry) Remove(ctx context.Context, name string) error {
	key := FoldKey(name)
	if key == "" {
		return ErrPhoneNotFound
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM phones WHERE search_key = ?`, key)
	if err != nil {
		return fmt.Errorf("deleting phone: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrPhoneNotFound
	}
	return nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhone(row rowScanner) (*PhoneRecord, error) {
	var (
		p                  PhoneRecord
		display, glass     sql.NullString
		createdAt, updated string
	)
	if err := row.Scan(&p.ModelID, &p.SearchKey, &display, &glass, &createdAt, &updated); err != nil {
		return nil, err
	}
	if display.Valid && display.String != "" {
		p.DisplayGroupID = &display.String
	}
	if glass.Valid && glass.String != "" {
		p.GlassGroupID = &glass.String
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
