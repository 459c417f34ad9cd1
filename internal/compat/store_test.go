package compat

import (
	"context"
	"errors"
	"testing"
)

func TestPhoneRegistryUpsert(t *testing.T) {
	db := setupTestDB(t)
	r := NewPhoneRegistry(db)
	ctx := context.Background()

	if err := r.Upsert(ctx, "Galaxy A12", PartDisplay, "g-display"); err != nil {
		t.Fatalf("Upsert(display) error = %v", err)
	}
	// Second category, different spelling: must keep the display reference
	// and the original model id.
	if err := r.Upsert(ctx, "GALAXY a12", PartGlass, "g-glass"); err != nil {
		t.Fatalf("Upsert(glass) error = %v", err)
	}

	p, err := r.Find(ctx, "galaxy A12")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if p.ModelID != "Galaxy A12" || p.SearchKey != "galaxy a12" {
		t.Errorf("identity = %q/%q, want Galaxy A12/galaxy a12", p.ModelID, p.SearchKey)
	}
	if id, _ := p.GroupID(PartDisplay); id != "g-display" {
		t.Errorf("display group = %q, want g-display", id)
	}
	if id, _ := p.GroupID(PartGlass); id != "g-glass" {
		t.Errorf("glass group = %q, want g-glass", id)
	}
	if p.CreatedAt.IsZero() || p.UpdatedAt.Before(p.CreatedAt) {
		t.Errorf("timestamps = %v / %v", p.CreatedAt, p.UpdatedAt)
	}

	if err := r.Upsert(ctx, "X", PartType("battery"), "g"); !errors.Is(err, ErrInvalidPartType) {
		t.Errorf("Upsert(bad part) error = %v, want ErrInvalidPartType", err)
	}
	if err := r.Upsert(ctx, "   ", PartGlass, "g"); !errors.Is(err, ErrInvalidModelName) {
		t.Errorf("Upsert(blank) error = %v, want ErrInvalidModelName", err)
	}
}

func TestPhoneRegistryFindManyAndRemove(t *testing.T) {
	db := setupTestDB(t)
	r := NewPhoneRegistry(db)
	ctx := context.Background()

	if err := r.UpsertMany(ctx, []string{"A", "b", "C"}, PartDisplay, "g1"); err != nil {
		t.Fatalf("UpsertMany() error = %v", err)
	}

	found, err := r.FindMany(ctx, []string{"a", "B", "missing", ""})
	if err != nil {
		t.Fatalf("FindMany() error = %v", err)
	}
	if len(found) != 2 || found["a"] == nil || found["b"] == nil {
		t.Errorf("FindMany() = %v, want keys a and b", found)
	}

	if err := r.Remove(ctx, "c"); err != nil {
		t.Errorf("Remove(c) error = %v", err)
	}
	if err := r.Remove(ctx, "c"); !errors.Is(err, ErrPhoneNotFound) {
		t.Errorf("Remove(c) again error = %v, want ErrPhoneNotFound", err)
	}
	if _, err := r.Find(ctx, "C"); !errors.Is(err, ErrPhoneNotFound) {
		t.Errorf("Find(removed) error = %v, want ErrPhoneNotFound", err)
	}

	models, err := r.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if !equalStrings(models, []string{"A", "b"}) {
		t.Errorf("ListAll() = %v, want [A b]", models)
	}
}

func TestGroupStoreLifecycle(t *testing.T) {
	db := setupTestDB(t)
	s := NewGroupStore(db)
	ctx := context.Background()

	g, err := s.Create(ctx, PartGlass)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if g.ID == "" || g.PartType != PartGlass || len(g.Members) != 0 {
		t.Fatalf("Create() = %+v", g)
	}

	if err := s.SetMembers(ctx, g.ID, PartGlass, []string{"B", "a", "C"}); err != nil {
		t.Fatalf("SetMembers() error = %v", err)
	}
	got, err := s.Get(ctx, g.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !equalStrings(got.Members, []string{"B", "a", "C"}) {
		t.Errorf("Members = %v, want stored order [B a C]", got.Members)
	}

	// Full replacement.
	if err := s.SetMembers(ctx, g.ID, PartGlass, []string{"a", "C"}); err != nil {
		t.Fatalf("SetMembers() error = %v", err)
	}
	remaining, err := s.RemoveMember(ctx, g.ID, "a")
	if err != nil {
		t.Fatalf("RemoveMember() error = %v", err)
	}
	if remaining != 1 {
		t.Errorf("remaining = %d, want 1", remaining)
	}

	if err := s.SetMembers(ctx, "nope", PartGlass, []string{"x"}); !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("SetMembers(missing) error = %v, want ErrGroupNotFound", err)
	}
	if _, err := s.RemoveMember(ctx, "nope", "x"); !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("RemoveMember(missing) error = %v, want ErrGroupNotFound", err)
	}

	if err := s.DeleteMany(ctx, []string{g.ID, "nope"}); err != nil {
		t.Fatalf("DeleteMany() error = %v", err)
	}
	if _, err := s.Get(ctx, g.ID); !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("Get(deleted) error = %v, want ErrGroupNotFound", err)
	}
	if err := s.DeleteMany(ctx, nil); err != nil {
		t.Errorf("DeleteMany(nil) error = %v", err)
	}
}

func TestGroupStoreRemoveMemberFoldsCase(t *testing.T) {
	db := setupTestDB(t)
	s := NewGroupStore(db)
	ctx := context.Background()

	g, err := s.Create(ctx, PartDisplay)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := s.SetMembers(ctx, g.ID, PartDisplay, []string{"iPhone 12", "iPhone 12 Pro"}); err != nil {
		t.Fatalf("SetMembers() error = %v", err)
	}

	remaining, err := s.RemoveMember(ctx, g.ID, "IPHONE 12")
	if err != nil {
		t.Fatalf("RemoveMember() error = %v", err)
	}
	if remaining != 1 {
		t.Errorf("remaining = %d, want 1", remaining)
	}
	got, err := s.Get(ctx, g.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !equalStrings(got.Members, []string{"iPhone 12 Pro"}) {
		t.Errorf("Members = %v, want [iPhone 12 Pro]", got.Members)
	}
}

func TestGroupStoreGetManyAndList(t *testing.T) {
	db := setupTestDB(t)
	s := NewGroupStore(db)
	ctx := context.Background()

	var ids []string
	for _, part := range []PartType{PartDisplay, PartDisplay, PartGlass} {
		g, err := s.Create(ctx, part)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := s.SetMembers(ctx, g.ID, part, []string{"m-" + g.ID[:4]}); err != nil {
			t.Fatalf("SetMembers() error = %v", err)
		}
		ids = append(ids, g.ID)
	}

	many, err := s.GetMany(ctx, []string{ids[2], "unknown", ids[0]})
	if err != nil {
		t.Fatalf("GetMany() error = %v", err)
	}
	if len(many) != 2 {
		t.Fatalf("GetMany() = %d groups, want 2", len(many))
	}
	if many[0].ID > many[1].ID {
		t.Error("GetMany() not ordered by id")
	}
	for _, g := range many {
		if len(g.Members) != 1 {
			t.Errorf("group %s members = %v", g.ID, g.Members)
		}
	}

	tests := []struct {
		part PartType
		want int
	}{
		{PartDisplay, 2},
		{PartGlass, 1},
		{"", 3},
	}
	for _, tt := range tests {
		groups, err := s.List(ctx, tt.part)
		if err != nil {
			t.Fatalf("List(%q) error = %v", tt.part, err)
		}
		if len(groups) != tt.want {
			t.Errorf("List(%q) = %d groups, want %d", tt.part, len(groups), tt.want)
		}
	}
	if _, err := s.List(ctx, PartType("battery")); !errors.Is(err, ErrInvalidPartType) {
		t.Errorf("List(bad) error = %v, want ErrInvalidPartType", err)
	}
}
