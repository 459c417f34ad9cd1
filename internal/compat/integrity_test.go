package compat

import (
	"context"
	"testing"
)

func TestCheckIntegrityCleanStore(t *testing.T) {
	e := newTestEngine(t)

	mustLink(t, e, PartDisplay, "A", "B")
	mustLink(t, e, PartGlass, "B", "C")
	mustLink(t, e, PartDisplay, "B", "D")

	report, err := e.CheckIntegrity(context.Background())
	if err != nil {
		t.Fatalf("CheckIntegrity() error = %v", err)
	}
	if !report.OK() {
		t.Errorf("issues = %+v, want none", report.Issues)
	}
	if report.Phones != 4 || report.Groups != 2 {
		t.Errorf("counts = %d phones / %d groups, want 4 / 2", report.Phones, report.Groups)
	}
}

func TestCheckIntegrityFindsViolations(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	phones := NewPhoneRegistry(e.db)
	groups := NewGroupStore(e.db)

	// Dangling reference.
	if err := phones.Upsert(ctx, "Dangling", PartDisplay, "gone"); err != nil {
		t.Fatal(err)
	}

	// Empty group.
	if _, err := groups.Create(ctx, PartGlass); err != nil {
		t.Fatal(err)
	}

	// Group listing a model with no phone, and a phone that is not listed.
	g, err := groups.Create(ctx, PartDisplay)
	if err != nil {
		t.Fatal(err)
	}
	if err := groups.SetMembers(ctx, g.ID, PartDisplay, []string{"Ghost"}); err != nil {
		t.Fatal(err)
	}
	if err := phones.Upsert(ctx, "Unlisted", PartDisplay, g.ID); err != nil {
		t.Fatal(err)
	}

	// Glass reference to a display group.
	if err := phones.Upsert(ctx, "Ghost", PartGlass, g.ID); err != nil {
		t.Fatal(err)
	}

	report, err := e.CheckIntegrity(ctx)
	if err != nil {
		t.Fatalf("CheckIntegrity() error = %v", err)
	}

	kinds := make(map[string]int)
	for _, issue := range report.Issues {
		kinds[issue.Kind]++
	}
	want := map[string]int{
		IssueDanglingReference: 1,
		IssueEmptyGroup:        1,
		IssueMissingMember:     1,
		IssuePartMismatch:      1,
		IssueReferenceMismatch: 1,
	}
	for kind, n := range want {
		if kinds[kind] != n {
			t.Errorf("%s issues = %d, want %d (all: %+v)", kind, kinds[kind], n, report.Issues)
		}
	}
	if kinds[IssueOrphanMember] != 0 {
		t.Errorf("orphan_member reported although Ghost has a phone record")
	}
}

func TestRelinkRepairsDanglingReference(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if err := NewPhoneRegistry(e.db).Upsert(ctx, "Dangling", PartDisplay, "gone"); err != nil {
		t.Fatal(err)
	}

	res := mustLink(t, e, PartDisplay, "Dangling", "Fresh")
	if !res.Created {
		t.Error("expected a new group when the referenced one is missing")
	}
	assertIntegrity(t, e)
}
