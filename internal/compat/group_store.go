package compat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GroupStore persists compatibility groups and their ordered member lists.
type GroupStore struct {
	db  DBTX
	now func() time.Time
}

// NewGroupStore binds a group store to a connection or transaction.
func NewGroupStore(db DBTX) *GroupStore {
	return &GroupStore{db: db, now: time.Now}
}

// Get returns one group with its members.
// Returns ErrGroupNotFound if id does not exist.
func (s *GroupStore) Get(ctx context.Context, id string) (*GroupRecord, error) {
	groups, err := s.GetMany(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, ErrGroupNotFound
	}
	return &groups[0], nil
}

// GetMany returns the groups that exist among ids, ordered by id.
// Unknown ids are skipped.
func (s *GroupStore) GetMany(ctx context.Context, ids []string) ([]GroupRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return s.query(ctx, `WHERE id IN (`+placeholders(len(ids))+`)`, args...)
}

// List returns every group for part, or every group when part is empty.
func (s *GroupStore) List(ctx context.Context, part PartType) ([]GroupRecord, error) {
	if part == "" {
		return s.query(ctx, "")
	}
	if !part.Valid() {
		return nil, ErrInvalidPartType
	}
	return s.query(ctx, `WHERE part_type = ?`, string(part))
}

// Create inserts an empty group for part with a fresh id.
func (s *GroupStore) Create(ctx context.Context, part PartType) (*GroupRecord, error) {
	if !part.Valid() {
		return nil, ErrInvalidPartType
	}

	now := s.now().UTC()
	g := &GroupRecord{
		ID:        uuid.NewString(),
		PartType:  part,
		Members:   []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO compat_groups (id, part_type, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		g.ID, string(part), now.Format(timeFormat), now.Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("inserting group: %w", err)
	}
	return g, nil
}

// SetMembers replaces the member list of id and re-asserts its part type.
// Members are stored in the order given.
func (s *GroupStore) SetMembers(ctx context.Context, id string, part PartType, members []string) error {
	if !part.Valid() {
		return ErrInvalidPartType
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE compat_groups SET part_type = ?, updated_at = ? WHERE id = ?`,
		string(part), s.now().UTC().Format(timeFormat), id)
	if err != nil {
		return fmt.Errorf("updating group: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	} else if n == 0 {
		return ErrGroupNotFound
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM compat_group_members WHERE group_id = ?`, id); err != nil {
		return fmt.Errorf("clearing group members: %w", err)
	}
	if len(members) == 0 {
		return nil
	}

	stmt, err := s.db.PrepareContext(ctx,
		`INSERT INTO compat_group_members (group_id, model_id, position) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing member insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range members {
		if _, err := stmt.ExecContext(ctx, id, m, i); err != nil {
			return fmt.Errorf("inserting member %q: %w", m, err)
		}
	}
	return nil
}

// RemoveMember drops modelID from group id, matching case-insensitively, and
// returns how many members remain. Other members and their positions are
// left alone.
func (s *GroupStore) RemoveMember(ctx context.Context, id, modelID string) (int, error) {
	g, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}

	key := FoldKey(modelID)
	for _, m := range g.Members {
		if FoldKey(m) != key {
			continue
		}
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM compat_group_members WHERE group_id = ? AND model_id = ?`, id, m,
		); err != nil {
			return 0, fmt.Errorf("removing member: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE compat_groups SET updated_at = ? WHERE id = ?`,
		s.now().UTC().Format(timeFormat), id,
	); err != nil {
		return 0, fmt.Errorf("touching group: %w", err)
	}

	var remaining int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM compat_group_members WHERE group_id = ?`, id,
	).Scan(&remaining); err != nil {
		return 0, fmt.Errorf("counting members: %w", err)
	}
	return remaining, nil
}

// DeleteMany removes the groups in ids. Unknown ids are ignored.
func (s *GroupStore) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	in := placeholders(len(ids))

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM compat_group_members WHERE group_id IN (`+in+`)`, args...); err != nil {
		return fmt.Errorf("deleting group members: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM compat_groups WHERE id IN (`+in+`)`, args...); err != nil {
		return fmt.Errorf("deleting groups: %w", err)
	}
	return nil
}

// query loads groups matching where (may be empty) together with their members.
func (s *GroupStore) query(ctx context.Context, where string, args ...any) ([]GroupRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, part_type, created_at, updated_at FROM compat_groups `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying groups: %w", err)
	}

	var groups []GroupRecord
	index := make(map[string]int)
	for rows.Next() {
		var (
			g                  GroupRecord
			part               string
			createdAt, updated string
		)
		if err := rows.Scan(&g.ID, &part, &createdAt, &updated); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning group: %w", err)
		}
		g.PartType = PartType(part)
		g.Members = []string{}
		g.CreatedAt = parseTime(createdAt)
		g.UpdatedAt = parseTime(updated)
		index[g.ID] = len(groups)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating groups: %w", err)
	}
	rows.Close()

	if len(groups) == 0 {
		return groups, nil
	}

	// Single connection: the group cursor must be closed before this query.
	mrows, err := s.db.QueryContext(ctx,
		`SELECT group_id, model_id FROM compat_group_members
		WHERE group_id IN (SELECT id FROM compat_groups `+where+`)
		ORDER BY group_id, position`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying group members: %w", err)
	}
	defer mrows.Close()

	for mrows.Next() {
		var groupID, modelID string
		if err := mrows.Scan(&groupID, &modelID); err != nil {
			return nil, fmt.Errorf("scanning group member: %w", err)
		}
		if i, ok := index[groupID]; ok {
			groups[i].Members = append(groups[i].Members, modelID)
		}
	}
	if err := mrows.Err(); err != nil {
		return nil, fmt.Errorf("iterating group members: %w", err)
	}
	return groups, nil
}
