package compat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestLinkPartsCreatesGroup(t *testing.T) {
	e := newTestEngine(t)

	res := mustLink(t, e, PartGlass, "Oppo F21 Pro", "Oppo F21")
	if !res.Created {
		t.Error("Created = false, want true for first link")
	}
	if want := []string{"Oppo F21", "Oppo F21 Pro"}; !equalStrings(res.Members, want) {
		t.Errorf("Members = %v, want %v", res.Members, want)
	}
	if len(res.MergedGroupIDs) != 0 {
		t.Errorf("MergedGroupIDs = %v, want none", res.MergedGroupIDs)
	}

	p, err := e.Find(context.Background(), "oppo f21")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if id, ok := p.GroupID(PartGlass); !ok || id != res.GroupID {
		t.Errorf("glass group = %q, want %q", id, res.GroupID)
	}
	if _, ok := p.GroupID(PartDisplay); ok {
		t.Error("display group set by a glass link")
	}
	assertIntegrity(t, e)
}

func TestLinkPartsScenario(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	mustLink(t, e, PartGlass, "Oppo F21 Pro", "Oppo F21")
	res := mustLink(t, e, PartGlass, "Vivo Y20", "Oppo F21")

	if want := []string{"Oppo F21", "Oppo F21 Pro", "Vivo Y20"}; !equalStrings(res.Members, want) {
		t.Errorf("Members = %v, want %v", res.Members, want)
	}
	if res.Created {
		t.Error("second link should reuse the existing group")
	}
	if got := mustGroups(t, e, PartGlass); len(got) != 1 {
		t.Fatalf("glass groups = %d, want 1", len(got))
	}

	got := mustCompatible(t, e, "Vivo Y20", PartGlass)
	if want := []string{"Oppo F21", "Oppo F21 Pro"}; !equalStrings(got, want) {
		t.Errorf("GetCompatibleModels(Vivo Y20) = %v, want %v", got, want)
	}

	ok, err := e.DeletePhone(ctx, "Oppo F21")
	if err != nil || !ok {
		t.Fatalf("DeletePhone() = %v, %v; want true, nil", ok, err)
	}
	groups := mustGroups(t, e, PartGlass)
	if len(groups) != 1 {
		t.Fatalf("glass groups = %d, want 1", len(groups))
	}
	if want := []string{"Oppo F21 Pro", "Vivo Y20"}; !equalStrings(groups[0].Members, want) {
		t.Errorf("members after delete = %v, want %v", groups[0].Members, want)
	}
	if _, err := e.Find(ctx, "Oppo F21"); !errors.Is(err, ErrPhoneNotFound) {
		t.Errorf("Find(deleted) error = %v, want ErrPhoneNotFound", err)
	}
	assertIntegrity(t, e)
}

func TestLinkPartsIdempotent(t *testing.T) {
	e := newTestEngine(t)

	first := mustLink(t, e, PartDisplay, "A", "B")
	second := mustLink(t, e, PartDisplay, "A", "B")

	if first.GroupID != second.GroupID {
		t.Errorf("group id changed: %q -> %q", first.GroupID, second.GroupID)
	}
	if !equalStrings(first.Members, second.Members) {
		t.Errorf("members changed: %v -> %v", first.Members, second.Members)
	}
	if got := mustGroups(t, e, PartDisplay); len(got) != 1 {
		t.Errorf("display groups = %d, want 1", len(got))
	}
	assertIntegrity(t, e)
}

func TestLinkPartsAssociative(t *testing.T) {
	stepwise := newTestEngine(t)
	mustLink(t, stepwise, PartDisplay, "A", "B")
	mustLink(t, stepwise, PartDisplay, "B", "C")

	direct := newTestEngine(t)
	mustLink(t, direct, PartDisplay, "A", "B", "C")

	a := mustGroups(t, stepwise, PartDisplay)
	b := mustGroups(t, direct, PartDisplay)
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("groups = %d and %d, want 1 and 1", len(a), len(b))
	}
	if !equalStrings(a[0].Members, b[0].Members) {
		t.Errorf("stepwise %v != direct %v", a[0].Members, b[0].Members)
	}
	assertIntegrity(t, stepwise)
}

func TestLinkPartsMergesGroups(t *testing.T) {
	e := newTestEngine(t)

	g1 := mustLink(t, e, PartDisplay, "A", "B")
	g2 := mustLink(t, e, PartDisplay, "C", "D")
	res := mustLink(t, e, PartDisplay, "B", "C")

	primary, merged := g1.GroupID, g2.GroupID
	if merged < primary {
		primary, merged = merged, primary
	}
	if res.GroupID != primary {
		t.Errorf("GroupID = %q, want smallest id %q", res.GroupID, primary)
	}
	if len(res.MergedGroupIDs) != 1 || res.MergedGroupIDs[0] != merged {
		t.Errorf("MergedGroupIDs = %v, want [%s]", res.MergedGroupIDs, merged)
	}
	if want := []string{"A", "B", "C", "D"}; !equalStrings(res.Members, want) {
		t.Errorf("Members = %v, want %v", res.Members, want)
	}

	groups := mustGroups(t, e, PartDisplay)
	if len(groups) != 1 || groups[0].ID != primary {
		t.Fatalf("groups = %+v, want only %s", groups, primary)
	}
	if got := mustCompatible(t, e, "D", PartDisplay); !equalStrings(got, []string{"A", "B", "C"}) {
		t.Errorf("GetCompatibleModels(D) = %v", got)
	}
	assertIntegrity(t, e)
}

func TestLinkPartsCaseInsensitive(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	mustLink(t, e, PartDisplay, "Vivo Y20", "Redmi 9")
	res := mustLink(t, e, PartGlass, "VIVO Y20", "redmi 9", "vivo y20")

	if want := []string{"Redmi 9", "Vivo Y20"}; !equalStrings(res.Members, want) {
		t.Errorf("Members = %v, want existing spellings %v", res.Members, want)
	}

	lower, err := e.Find(ctx, "vivo y20")
	if err != nil {
		t.Fatalf("Find(lower) error = %v", err)
	}
	upper, err := e.Find(ctx, "  Vivo Y20 ")
	if err != nil {
		t.Fatalf("Find(padded) error = %v", err)
	}
	if lower.ModelID != "Vivo Y20" || upper.ModelID != lower.ModelID {
		t.Errorf("ModelID = %q / %q, want Vivo Y20", lower.ModelID, upper.ModelID)
	}

	models, err := e.ListAllModels(ctx)
	if err != nil {
		t.Fatalf("ListAllModels() error = %v", err)
	}
	if len(models) != 2 {
		t.Errorf("ListAllModels() = %v, want 2 phones", models)
	}
	assertIntegrity(t, e)
}

func TestLinkPartsInvalidInput(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		models  []string
		part    PartType
		wantErr error
	}{
		{"empty list", nil, PartDisplay, ErrNothingToLink},
		{"only blanks", []string{"", "   ", "\t"}, PartDisplay, ErrNothingToLink},
		{"bad part", []string{"A"}, PartType("battery"), ErrInvalidPartType},
		{"name too long", []string{string(make([]byte, maxModelNameLength+1))}, PartGlass, ErrInvalidModelName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.LinkParts(ctx, tt.models, tt.part); !errors.Is(err, tt.wantErr) {
				t.Errorf("LinkParts() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	models, err := e.ListAllModels(ctx)
	if err != nil {
		t.Fatalf("ListAllModels() error = %v", err)
	}
	if len(models) != 0 {
		t.Errorf("rejected links wrote phones: %v", models)
	}
}

func TestLinkPartsDropsBlankNames(t *testing.T) {
	e := newTestEngine(t)

	res := mustLink(t, e, PartDisplay, " A ", "", "B", "  ")
	if want := []string{"A", "B"}; !equalStrings(res.Members, want) {
		t.Errorf("Members = %v, want %v", res.Members, want)
	}
}

func TestGetCompatibleModels(t *testing.T) {
	e := newTestEngine(t)

	mustLink(t, e, PartDisplay, "c phone", "A phone", "B phone")
	mustLink(t, e, PartGlass, "Solo")
	mustLink(t, e, PartGlass, "Loner", "Peer")

	tests := []struct {
		name  string
		model string
		part  PartType
		want  []string
	}{
		{"self excluded and sorted", "a PHONE", PartDisplay, []string{"B phone", "c phone"}},
		{"unknown phone", "Nokia 3310", PartDisplay, []string{}},
		{"no group for part", "A phone", PartGlass, []string{"A phone"}},
		{"grouped alone", "Solo", PartGlass, []string{}},
		{"other category untouched", "Loner", PartDisplay, []string{"Loner"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustCompatible(t, e, tt.model, tt.part)
			if got == nil {
				t.Fatal("GetCompatibleModels() returned nil slice")
			}
			if !equalStrings(got, tt.want) {
				t.Errorf("GetCompatibleModels(%q, %s) = %v, want %v", tt.model, tt.part, got, tt.want)
			}
		})
	}

	if _, err := e.GetCompatibleModels(context.Background(), "A phone", PartType("x")); !errors.Is(err, ErrInvalidPartType) {
		t.Errorf("invalid part error = %v, want ErrInvalidPartType", err)
	}
}

func TestDeletePhoneShrinksBothCategories(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	mustLink(t, e, PartDisplay, "A", "B", "C")
	mustLink(t, e, PartGlass, "B", "D", "E")

	res, err := e.DeletePhoneDetailed(ctx, "b")
	if err != nil {
		t.Fatalf("DeletePhoneDetailed() error = %v", err)
	}
	if res == nil || res.ModelID != "B" {
		t.Fatalf("result = %+v, want model B", res)
	}
	if len(res.Groups) != 2 || len(res.EmptiedGroupIDs) != 0 {
		t.Errorf("result = %+v, want two groups and none emptied", res)
	}

	if got := mustCompatible(t, e, "A", PartDisplay); !equalStrings(got, []string{"C"}) {
		t.Errorf("display peers of A = %v, want [C]", got)
	}
	if got := mustCompatible(t, e, "D", PartGlass); !equalStrings(got, []string{"E"}) {
		t.Errorf("glass peers of D = %v, want [E]", got)
	}
	assertIntegrity(t, e)
}

func TestDeletePhoneRemovesEmptyGroup(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	solo := mustLink(t, e, PartDisplay, "Solo")
	mustLink(t, e, PartGlass, "Solo", "Other")

	res, err := e.DeletePhoneDetailed(ctx, "Solo")
	if err != nil {
		t.Fatalf("DeletePhoneDetailed() error = %v", err)
	}
	if len(res.EmptiedGroupIDs) != 1 || res.EmptiedGroupIDs[0] != solo.GroupID {
		t.Errorf("EmptiedGroupIDs = %v, want [%s]", res.EmptiedGroupIDs, solo.GroupID)
	}
	if got := mustGroups(t, e, PartDisplay); len(got) != 0 {
		t.Errorf("display groups = %+v, want none", got)
	}
	if got := mustGroups(t, e, PartGlass); len(got) != 1 {
		t.Errorf("glass groups = %d, want 1", len(got))
	}
	if _, err := NewGroupStore(e.db).Get(ctx, solo.GroupID); !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("Get(emptied group) error = %v, want ErrGroupNotFound", err)
	}
	assertIntegrity(t, e)
}

func TestDeletePhoneUnknown(t *testing.T) {
	e := newTestEngine(t)

	for _, name := range []string{"Ghost", "", "   "} {
		ok, err := e.DeletePhone(context.Background(), name)
		if err != nil || ok {
			t.Errorf("DeletePhone(%q) = %v, %v; want false, nil", name, ok, err)
		}
	}
}

func TestListAllModelsCaseSensitiveOrder(t *testing.T) {
	e := newTestEngine(t)

	mustLink(t, e, PartDisplay, "redmi 9", "Samsung A10", "apple 11", "Zte")

	got, err := e.ListAllModels(context.Background())
	if err != nil {
		t.Fatalf("ListAllModels() error = %v", err)
	}
	want := []string{"Samsung A10", "Zte", "apple 11", "redmi 9"}
	if !equalStrings(got, want) {
		t.Errorf("ListAllModels() = %v, want %v", got, want)
	}
}

func TestFindCacheInvalidatedByWrites(t *testing.T) {
	e := newTestEngine(t)
	obs := &recordingObserver{}
	e.AddObserver(obs)
	ctx := context.Background()

	mustLink(t, e, PartDisplay, "A", "B")
	if _, err := e.Find(ctx, "A"); err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if _, err := e.Find(ctx, "a"); err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if obs.hits != 1 || obs.misses != 1 {
		t.Errorf("cache hits/misses = %d/%d, want 1/1", obs.hits, obs.misses)
	}

	glass := mustLink(t, e, PartGlass, "A", "C")
	p, err := e.Find(ctx, "A")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if id, ok := p.GroupID(PartGlass); !ok || id != glass.GroupID {
		t.Errorf("cached glass group = %q, want %q", id, glass.GroupID)
	}

	// Mutating a returned record must not leak into the cache.
	*p.DisplayGroupID = "tampered"
	again, err := e.Find(ctx, "A")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if *again.DisplayGroupID == "tampered" {
		t.Error("cache returned a shared record")
	}

	if _, err := e.DeletePhone(ctx, "A"); err != nil {
		t.Fatalf("DeletePhone() error = %v", err)
	}
	if _, err := e.Find(ctx, "A"); !errors.Is(err, ErrPhoneNotFound) {
		t.Errorf("Find(deleted) error = %v, want ErrPhoneNotFound", err)
	}
}

func TestEnginePublishesChanges(t *testing.T) {
	e := newTestEngine(t)
	pub := &recordingPublisher{}
	e.SetPublisher(pub)
	ctx := context.Background()

	link := mustLink(t, e, PartGlass, "A", "B")
	if _, err := e.DeletePhone(ctx, "A"); err != nil {
		t.Fatalf("DeletePhone() error = %v", err)
	}
	// Rejected calls publish nothing.
	_, _ = e.LinkParts(ctx, []string{" "}, PartGlass) //nolint:errcheck // asserted below
	if _, err := e.DeletePhone(ctx, "ghost"); err != nil {
		t.Fatalf("DeletePhone(ghost) error = %v", err)
	}

	if len(pub.events) != 2 {
		t.Fatalf("events = %d, want 2", len(pub.events))
	}
	linked, deleted := pub.events[0], pub.events[1]
	if linked.Type != EventLinked || linked.GroupID != link.GroupID || !equalStrings(linked.Models, []string{"A", "B"}) {
		t.Errorf("linked event = %+v", linked)
	}
	if deleted.Type != EventDeleted || !equalStrings(deleted.Models, []string{"A"}) {
		t.Errorf("deleted event = %+v", deleted)
	}
}

func TestEnginePublishFailureDoesNotFailOperation(t *testing.T) {
	e := newTestEngine(t)
	e.SetPublisher(&recordingPublisher{err: errors.New("broker down")})

	if _, err := e.LinkParts(context.Background(), []string{"A", "B"}, PartDisplay); err != nil {
		t.Fatalf("LinkParts() error = %v, want nil despite publish failure", err)
	}
	if got := mustCompatible(t, e, "A", PartDisplay); !equalStrings(got, []string{"B"}) {
		t.Errorf("link not committed: %v", got)
	}
}

func TestEngineObservesOperations(t *testing.T) {
	e := newTestEngine(t)
	obs := &recordingObserver{}
	e.AddObserver(obs)
	ctx := context.Background()

	mustLink(t, e, PartDisplay, "A", "B")
	mustLink(t, e, PartDisplay, "C", "D")
	mustLink(t, e, PartDisplay, "A", "D")
	_, _ = e.LinkParts(ctx, nil, PartDisplay) //nolint:errcheck // asserted below

	var links []OperationEvent
	for _, ev := range obs.ops {
		if ev.Op == OpLink {
			links = append(links, ev)
		}
	}
	if len(links) != 4 {
		t.Fatalf("link events = %d, want 4", len(links))
	}
	if links[2].Merged != 1 || links[2].Models != 4 {
		t.Errorf("merge event = %+v, want Merged=1 Models=4", links[2])
	}
	if !errors.Is(links[3].Err, ErrNothingToLink) {
		t.Errorf("rejected link Err = %v, want ErrNothingToLink", links[3].Err)
	}
}

func TestLinkPartsConcurrentOverlap(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	const workers = 12
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			models := []string{"Hub", fmt.Sprintf("Spoke %02d", i)}
			if _, err := e.LinkParts(ctx, models, PartDisplay); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("LinkParts() error = %v", err)
	}

	groups := mustGroups(t, e, PartDisplay)
	if len(groups) != 1 {
		t.Fatalf("display groups = %d, want 1", len(groups))
	}
	if len(groups[0].Members) != workers+1 {
		t.Errorf("members = %d, want %d", len(groups[0].Members), workers+1)
	}
	assertIntegrity(t, e)
}

func TestLinkPartsAcrossEngines(t *testing.T) {
	path := tempDBPath(t)
	first, err := NewEngine(openMigrated(t, path), 0)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	second, err := NewEngine(openMigrated(t, path), 0)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := first
			if i%2 == 1 {
				e = second
			}
			models := []string{fmt.Sprintf("P%d", i), fmt.Sprintf("P%d", i+1)}
			if _, err := e.LinkParts(ctx, models, PartGlass); err != nil {
				t.Errorf("LinkParts(%v) error = %v", models, err)
			}
		}(i)
	}
	wg.Wait()

	groups := mustGroups(t, first, PartGlass)
	if len(groups) != 1 || len(groups[0].Members) != 9 {
		t.Fatalf("groups = %+v, want one group of 9", groups)
	}
	assertIntegrity(t, second)
}

func TestGetCompatibleModelsRefreshesStaleCache(t *testing.T) {
	path := tempDBPath(t)
	reader, err := NewEngine(openMigrated(t, path), 8)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	writer, err := NewEngine(openMigrated(t, path), 0)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	mustLink(t, writer, PartDisplay, "A", "B")
	mustLink(t, writer, PartDisplay, "C", "D")
	if got := mustCompatible(t, reader, "A", PartDisplay); !equalStrings(got, []string{"B"}) {
		t.Fatalf("peers of A = %v, want [B]", got)
	}

	// Merging from another engine may move A to a different group id.
	mustLink(t, writer, PartDisplay, "B", "C")
	if got := mustCompatible(t, reader, "A", PartDisplay); !equalStrings(got, []string{"B", "C", "D"}) {
		t.Errorf("peers of A after remote merge = %v, want [B C D]", got)
	}
}

func TestCachedReaderSeesRemoteWrites(t *testing.T) {
	path := tempDBPath(t)
	reader, err := NewEngine(openMigrated(t, path), 8)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	writer, err := NewEngine(openMigrated(t, path), 0)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	ctx := context.Background()

	mustLink(t, writer, PartGlass, "A", "Q")
	mustLink(t, writer, PartGlass, "X", "Y")

	// Warm the reader's cache with A (no display group) and X.
	if got := mustCompatible(t, reader, "A", PartDisplay); !equalStrings(got, []string{"A"}) {
		t.Fatalf("peers of A display = %v, want [A]", got)
	}
	if _, err := reader.Find(ctx, "X"); err != nil {
		t.Fatalf("Find(X) error = %v", err)
	}

	mustLink(t, writer, PartDisplay, "A", "B")
	if ok, err := writer.DeletePhone(ctx, "X"); err != nil || !ok {
		t.Fatalf("DeletePhone(X) = %v, %v; want true, nil", ok, err)
	}

	if got := mustCompatible(t, reader, "A", PartDisplay); !equalStrings(got, []string{"B"}) {
		t.Errorf("peers of A display after remote link = %v, want [B]", got)
	}
	if got := mustCompatible(t, reader, "X", PartDisplay); len(got) != 0 {
		t.Errorf("compatible X after remote delete = %v, want []", got)
	}
	if _, err := reader.Find(ctx, "X"); !errors.Is(err, ErrPhoneNotFound) {
		t.Errorf("Find(X) after remote delete error = %v, want ErrPhoneNotFound", err)
	}
}

func TestFindCacheHitsWithoutWrites(t *testing.T) {
	path := tempDBPath(t)
	reader, err := NewEngine(openMigrated(t, path), 8)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	writer, err := NewEngine(openMigrated(t, path), 0)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	obs := &recordingObserver{}
	reader.AddObserver(obs)
	ctx := context.Background()

	mustLink(t, writer, PartDisplay, "A", "B")
	for range 3 {
		if _, err := reader.Find(ctx, "A"); err != nil {
			t.Fatalf("Find() error = %v", err)
		}
	}
	if obs.hits != 2 || obs.misses != 1 {
		t.Errorf("cache hits/misses = %d/%d, want 2/1", obs.hits, obs.misses)
	}

	mustLink(t, writer, PartGlass, "C", "D")
	if _, err := reader.Find(ctx, "A"); err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if obs.misses != 2 {
		t.Errorf("misses after remote write = %d, want 2", obs.misses)
	}
}

func TestGetCompatibleModelsGroupReplacedBetweenReads(t *testing.T) {
	tests := []struct {
		name      string
		cacheSize int
		change    func(t *testing.T, w *Engine)
		want      []string
	}{
		{
			name: "group deleted and phone relinked",
			change: func(t *testing.T, w *Engine) {
				ctx := context.Background()
				for _, m := range []string{"B", "A"} {
					if _, err := w.DeletePhone(ctx, m); err != nil {
						t.Errorf("DeletePhone(%s) error = %v", m, err)
					}
				}
				mustLink(t, w, PartDisplay, "A", "C")
			},
			want: []string{"C"},
		},
		{
			name:      "phone moved out of a surviving group",
			cacheSize: 8,
			change: func(t *testing.T, w *Engine) {
				if _, err := w.DeletePhone(context.Background(), "A"); err != nil {
					t.Errorf("DeletePhone(A) error = %v", err)
				}
				mustLink(t, w, PartDisplay, "A", "D")
			},
			want: []string{"D"},
		},
		{
			name: "phone deleted",
			change: func(t *testing.T, w *Engine) {
				if _, err := w.DeletePhone(context.Background(), "A"); err != nil {
					t.Errorf("DeletePhone(A) error = %v", err)
				}
			},
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tempDBPath(t)
			reader, err := NewEngine(openMigrated(t, path), tt.cacheSize)
			if err != nil {
				t.Fatalf("NewEngine() error = %v", err)
			}
			writer, err := NewEngine(openMigrated(t, path), 0)
			if err != nil {
				t.Fatalf("NewEngine() error = %v", err)
			}
			mustLink(t, writer, PartDisplay, "A", "B")

			var once sync.Once
			reader.afterPhoneRead = func() {
				once.Do(func() { tt.change(t, writer) })
			}

			got := mustCompatible(t, reader, "A", PartDisplay)
			if !equalStrings(got, tt.want) {
				t.Errorf("GetCompatibleModels(A) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeletePhoneRemovesMemberSpelledDifferently(t *testing.T) {
	db := setupTestDB(t)
	e, err := NewEngine(db, 0)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	ctx := context.Background()

	res := mustLink(t, e, PartDisplay, "Redmi 9", "Redmi 9A")
	if err := NewGroupStore(db).SetMembers(ctx, res.GroupID, PartDisplay, []string{"REDMI 9", "Redmi 9A"}); err != nil {
		t.Fatalf("SetMembers() error = %v", err)
	}

	if ok, err := e.DeletePhone(ctx, "redmi 9"); err != nil || !ok {
		t.Fatalf("DeletePhone() = %v, %v; want true, nil", ok, err)
	}
	groups := mustGroups(t, e, PartDisplay)
	if len(groups) != 1 || !equalStrings(groups[0].Members, []string{"Redmi 9A"}) {
		t.Errorf("groups after delete = %+v, want one group [Redmi 9A]", groups)
	}
}
