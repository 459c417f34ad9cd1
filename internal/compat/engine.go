package compat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/nerrad567/partcompat/internal/infrastructure/database"
)

// Engine maintains compatibility groups over a PhoneRegistry and GroupStore.
//
// Every write runs in one IMMEDIATE transaction, so concurrent links touching
// overlapping models (from this or another process) serialise on the SQLite
// write lock and never leave two groups claiming one model. The mutex only
// keeps the in-process phone cache coherent with committed state; cached
// phones are tagged with the store version they were read at and miss once
// any process commits a newer write.
type Engine struct {
	db *sql.DB

	mu     sync.RWMutex
	cache  *lru.Cache[string, cachedPhone] // nil when disabled
	flight singleflight.Group

	logger    Logger
	publisher EventPublisher
	observers []Observer
	now       func() time.Time

	// afterPhoneRead runs between the phone and group reads of
	// GetCompatibleModels. Tests only.
	afterPhoneRead func()
}

type cachedPhone struct {
	phone   *PhoneRecord
	version int64
}

// compatibleReads bounds how often GetCompatibleModels re-reads a phone
// whose group moved underneath it.
const compatibleReads = 3

// NewEngine creates an engine on db. cacheSize bounds the phone lookup
// cache; zero disables it.
func NewEngine(db *sql.DB, cacheSize int) (*Engine, error) {
	if db == nil {
		return nil, errors.New("compat: nil database")
	}

	e := &Engine{
		db:     db,
		logger: noopLogger{},
		now:    time.Now,
	}
	if cacheSize > 0 {
		c, err := lru.New[string, cachedPhone](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("creating phone cache: %w", err)
		}
		e.cache = c
	}
	return e, nil
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// SetPublisher sets where committed changes are announced.
func (e *Engine) SetPublisher(p EventPublisher) {
	e.publisher = p
}

// AddObserver registers an operation observer (metrics, history).
func (e *Engine) AddObserver(o Observer) {
	e.observers = append(e.observers, o)
}

// LinkParts declares every model in models mutually compatible for part,
// merging whatever groups they already belong to.
//
// Blank names are dropped; if nothing remains ErrNothingToLink is returned
// before any write. Names that match an existing phone case-insensitively
// take that phone's spelling. The surviving group is the smallest existing
// id, or a new group when none of the models has one yet.
func (e *Engine) LinkParts(ctx context.Context, models []string, part PartType) (res *LinkResult, err error) {
	start := time.Now()
	defer func() {
		ev := OperationEvent{Op: OpLink, PartType: part, Elapsed: time.Since(start), Err: err}
		if res != nil {
			ev.Models = len(res.Members)
			ev.Merged = len(res.MergedGroupIDs)
		}
		e.observe(ev)
	}()

	if !part.Valid() {
		return nil, ErrInvalidPartType
	}
	names, err := cleanNames(models)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, ErrNothingToLink
	}

	e.mu.Lock()
	err = database.RunInTx(ctx, e.db, func(tx *sql.Tx) error {
		var txErr error
		res, txErr = e.link(ctx, tx, names, part)
		return txErr
	})
	if err == nil {
		e.invalidate(res.Members...)
	}
	e.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("linking %s parts: %w", part, storeErr(err))
	}

	e.logger.Info("parts linked",
		"part_type", string(part),
		"group_id", res.GroupID,
		"members", len(res.Members),
		"merged", len(res.MergedGroupIDs),
	)
	e.publish(ctx, ChangeEvent{
		Type:           EventLinked,
		PartType:       part,
		GroupID:        res.GroupID,
		Models:         res.Members,
		MergedGroupIDs: res.MergedGroupIDs,
		Timestamp:      e.now().UTC(),
	})
	return res, nil
}

// link is the union step, run inside tx.
func (e *Engine) link(ctx context.Context, tx *sql.Tx, names []string, part PartType) (*LinkResult, error) {
	phones := NewPhoneRegistry(tx)
	groups := NewGroupStore(tx)

	if err := bumpVersion(ctx, tx); err != nil {
		return nil, err
	}
	found, err := phones.FindMany(ctx, names)
	if err != nil {
		return nil, err
	}

	members := newMemberSet()
	var referenced []string
	for _, n := range names {
		p, ok := found[FoldKey(n)]
		if !ok {
			members.add(n)
			continue
		}
		members.add(p.ModelID)
		if id, ok := p.GroupID(part); ok && !slices.Contains(referenced, id) {
			referenced = append(referenced, id)
		}
	}

	existing, err := groups.GetMany(ctx, referenced)
	if err != nil {
		return nil, err
	}
	if len(existing) != len(referenced) {
		e.logger.Warn("phones reference missing groups; relinking",
			"part_type", string(part), "referenced", len(referenced), "found", len(existing))
	}

	// Group members first, so a merged group keeps its stored spellings.
	union := newMemberSet()
	for _, g := range existing {
		if g.PartType != part {
			e.logger.Warn("group part type mismatch", "group_id", g.ID, "want", string(part), "got", string(g.PartType))
		}
		for _, m := range g.Members {
			union.add(m)
		}
	}
	for _, n := range members.sorted() {
		union.add(n)
	}
	final := union.sorted()

	res := &LinkResult{PartType: part, Members: final}
	if len(existing) > 0 {
		// GetMany returns groups ordered by id.
		res.GroupID = existing[0].ID
		for _, g := range existing[1:] {
			res.MergedGroupIDs = append(res.MergedGroupIDs, g.ID)
		}
	} else {
		g, err := groups.Create(ctx, part)
		if err != nil {
			return nil, err
		}
		res.GroupID = g.ID
		res.Created = true
	}

	if err := groups.SetMembers(ctx, res.GroupID, part, final); err != nil {
		return nil, err
	}
	if err := phones.UpsertMany(ctx, final, part, res.GroupID); err != nil {
		return nil, err
	}
	if err := groups.DeleteMany(ctx, res.MergedGroupIDs); err != nil {
		return nil, err
	}
	return res, nil
}

// Find looks a phone up by name, case-insensitively.
// Returns ErrPhoneNotFound when the model is unknown.
func (e *Engine) Find(ctx context.Context, name string) (p *PhoneRecord, err error) {
	start := time.Now()
	defer func() {
		if errors.Is(err, ErrPhoneNotFound) {
			e.observe(OperationEvent{Op: OpFind, Elapsed: time.Since(start)})
			return
		}
		e.observe(OperationEvent{Op: OpFind, Elapsed: time.Since(start), Err: err})
	}()

	e.mu.RLock()
	defer e.mu.RUnlock()

	p, err = e.find(ctx, name)
	if err != nil {
		return nil, storeErr(err)
	}
	return p, nil
}

// find must be called with e.mu held.
func (e *Engine) find(ctx context.Context, name string) (*PhoneRecord, error) {
	key := FoldKey(name)
	if key == "" {
		return nil, ErrPhoneNotFound
	}

	if e.cache == nil {
		return NewPhoneRegistry(e.db).Find(ctx, key)
	}

	version, err := storeVersion(ctx, e.db)
	if err != nil {
		return nil, err
	}
	cached, ok := e.cache.Get(key)
	ok = ok && cached.version == version
	e.observeCache(ok)
	if ok {
		return cached.phone.DeepCopy(), nil
	}

	// The version is read before the phone, so a commit landing in between
	// leaves the entry tagged old and the next lookup misses.
	v, err, _ := e.flight.Do(key, func() (any, error) {
		p, err := NewPhoneRegistry(e.db).Find(ctx, key)
		if errors.Is(err, ErrPhoneNotFound) {
			e.cache.Remove(key)
		}
		if err != nil {
			return nil, err
		}
		e.cache.Add(key, cachedPhone{phone: p.DeepCopy(), version: version})
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*PhoneRecord).DeepCopy(), nil
}

// GetCompatibleModels returns the models sharing model's part, sorted
// case-insensitively and excluding model itself.
//
// An unknown model yields an empty list. A known model with no group for
// part yields just its own name, which callers use to tell "never
// categorised" apart from "categorised, no peers".
func (e *Engine) GetCompatibleModels(ctx context.Context, model string, part PartType) (out []string, err error) {
	start := time.Now()
	defer func() {
		e.observe(OperationEvent{Op: OpCompatible, PartType: part, Models: len(out), Elapsed: time.Since(start), Err: err})
	}()

	if !part.Valid() {
		return nil, ErrInvalidPartType
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	// The phone and its group are separate reads; another process may
	// commit between them. Re-read until they agree.
	var (
		p *PhoneRecord
		g *GroupRecord
	)
	for attempt := 1; ; attempt++ {
		p, err = e.find(ctx, model)
		if errors.Is(err, ErrPhoneNotFound) {
			return []string{}, nil
		}
		if err != nil {
			return nil, storeErr(err)
		}
		if e.afterPhoneRead != nil {
			e.afterPhoneRead()
		}

		g, err = e.groupOf(ctx, p, part)
		if err != nil {
			return nil, storeErr(err)
		}
		if !disagrees(p, g, part) {
			break
		}
		if attempt == compatibleReads {
			id, _ := p.GroupID(part)
			e.logger.Warn("phone and group disagree", "model", p.ModelID, "group_id", id)
			break
		}
		e.invalidate(model)
	}
	if g == nil {
		return []string{p.ModelID}, nil
	}

	self := FoldKey(p.ModelID)
	out = make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		if FoldKey(m) != self {
			out = append(out, m)
		}
	}
	sortFold(out)
	return out, nil
}

// groupOf loads p's group for part. A nil group means the phone has none,
// or references one that no longer exists.
func (e *Engine) groupOf(ctx context.Context, p *PhoneRecord, part PartType) (*GroupRecord, error) {
	id, ok := p.GroupID(part)
	if !ok {
		return nil, nil
	}
	g, err := NewGroupStore(e.db).Get(ctx, id)
	if errors.Is(err, ErrGroupNotFound) {
		return nil, nil
	}
	return g, err
}

// disagrees reports whether p references a group for part that is missing
// or does not list p.
func disagrees(p *PhoneRecord, g *GroupRecord, part PartType) bool {
	if _, ok := p.GroupID(part); !ok {
		return false
	}
	return g == nil || !containsFold(g.Members, p.ModelID)
}

// DeletePhone removes model and drops it from each group it belongs to.
// Groups left empty are deleted. Returns false if model is unknown.
func (e *Engine) DeletePhone(ctx context.Context, model string) (bool, error) {
	res, err := e.DeletePhoneDetailed(ctx, model)
	if err != nil {
		return false, err
	}
	return res != nil, nil
}

// DeletePhoneDetailed is DeletePhone reporting what was removed. It returns
// a nil result and nil error when model is unknown.
func (e *Engine) DeletePhoneDetailed(ctx context.Context, model string) (res *DeleteResult, err error) {
	start := time.Now()
	defer func() {
		ev := OperationEvent{Op: OpDelete, Elapsed: time.Since(start), Err: err}
		if res != nil {
			ev.Models = 1
		}
		e.observe(ev)
	}()

	if FoldKey(model) == "" {
		return nil, nil
	}

	e.mu.Lock()
	err = database.RunInTx(ctx, e.db, func(tx *sql.Tx) error {
		var txErr error
		res, txErr = e.remove(ctx, tx, model)
		return txErr
	})
	if err == nil {
		e.invalidate(model)
	}
	e.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("deleting phone: %w", storeErr(err))
	}
	if res == nil {
		return nil, nil
	}

	e.logger.Info("phone deleted", "model", res.ModelID, "emptied_groups", len(res.EmptiedGroupIDs))
	e.publish(ctx, ChangeEvent{
		Type:            EventDeleted,
		Models:          []string{res.ModelID},
		EmptiedGroupIDs: res.EmptiedGroupIDs,
		Timestamp:       e.now().UTC(),
	})
	return res, nil
}

// remove runs inside tx. A nil result means the phone did not exist.
func (e *Engine) remove(ctx context.Context, tx *sql.Tx, model string) (*DeleteResult, error) {
	phones := NewPhoneRegistry(tx)
	groups := NewGroupStore(tx)

	p, err := phones.Find(ctx, model)
	if errors.Is(err, ErrPhoneNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := bumpVersion(ctx, tx); err != nil {
		return nil, err
	}

	res := &DeleteResult{ModelID: p.ModelID, Groups: map[PartType]string{}}
	for _, part := range PartTypes {
		id, ok := p.GroupID(part)
		if !ok {
			continue
		}
		res.Groups[part] = id

		remaining, err := groups.RemoveMember(ctx, id, p.ModelID)
		if errors.Is(err, ErrGroupNotFound) {
			e.logger.Warn("phone references missing group", "model", p.ModelID, "group_id", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if remaining == 0 {
			if err := groups.DeleteMany(ctx, []string{id}); err != nil {
				return nil, err
			}
			res.EmptiedGroupIDs = append(res.EmptiedGroupIDs, id)
		}
	}

	if err := phones.Remove(ctx, p.ModelID); err != nil {
		return nil, err
	}
	return res, nil
}

// ListAllModels returns every known model in case-sensitive order.
func (e *Engine) ListAllModels(ctx context.Context) (models []string, err error) {
	start := time.Now()
	defer func() {
		e.observe(OperationEvent{Op: OpList, Models: len(models), Elapsed: time.Since(start), Err: err})
	}()

	e.mu.RLock()
	defer e.mu.RUnlock()

	models, err = NewPhoneRegistry(e.db).ListAll(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	return models, nil
}

// ListGroups returns the groups for part, or all groups if part is empty.
func (e *Engine) ListGroups(ctx context.Context, part PartType) ([]GroupRecord, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	groups, err := NewGroupStore(e.db).List(ctx, part)
	if err != nil {
		return nil, storeErr(err)
	}
	if groups == nil {
		groups = []GroupRecord{}
	}
	return groups, nil
}

// invalidate drops cached phones for names. The cache is safe for
// concurrent use, so readers may call it under e.mu's read lock.
func (e *Engine) invalidate(names ...string) {
	if e.cache == nil {
		return
	}
	for _, n := range names {
		e.cache.Remove(FoldKey(n))
	}
}

func (e *Engine) publish(ctx context.Context, ev ChangeEvent) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishChange(ctx, ev); err != nil {
		e.logger.Warn("publishing change event failed", "type", ev.Type, "error", err)
	}
}

func (e *Engine) observe(ev OperationEvent) {
	for _, o := range e.observers {
		o.ObserveOperation(ev)
	}
}

func (e *Engine) observeCache(hit bool) {
	for _, o := range e.observers {
		if co, ok := o.(CacheObserver); ok {
			co.ObserveCacheLookup(hit)
		}
	}
}
