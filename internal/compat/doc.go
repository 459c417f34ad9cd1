// Package compat implements the phone part-compatibility store.
//
// Phones are grouped, per part category, into compatibility groups: every
// model in a display group takes the same replacement display, every model
// in a glass group takes the same screen guard. The two categories are
// tracked independently.
//
// # Architecture
//
//	┌───────────────────────────────────────────────────────────────┐
//	│                          Engine                               │
//	│  • LinkParts / DeletePhone (one IMMEDIATE transaction each)   │
//	│  • Find / GetCompatibleModels / ListAllModels                 │
//	│  • LRU phone cache + singleflight, RWMutex                    │
//	└──────────────┬──────────────────────────────┬─────────────────┘
//	               │                              │
//	               ▼                              ▼
//	┌──────────────────────────┐   ┌──────────────────────────────┐
//	│      PhoneRegistry       │   │          GroupStore          │
//	│  phones table            │   │  compat_groups               │
//	│  search_key = folded name│   │  compat_group_members        │
//	└──────────────────────────┘   └──────────────────────────────┘
//
// The groups form a disjoint-set persisted in SQLite. "Find" follows the
// phone's stored group reference; "union" is LinkParts, which merges every
// group touched by the named models into the group with the smallest id.
//
// # Invariants
//
//   - A phone's group reference, when set, names a group containing the phone.
//   - Every member of a group has a phone record pointing back at that group.
//   - No empty group persists.
//
// CheckIntegrity reports any violations found in an existing database.
//
// # Usage
//
//	engine, err := compat.NewEngine(db.DB, cfg.Cache.Size)
//	if err != nil {
//	    return err
//	}
//	engine.SetLogger(log)
//
//	res, err := engine.LinkParts(ctx, []string{"Oppo F21 Pro", "Oppo F21"}, compat.PartGlass)
//	peers, err := engine.GetCompatibleModels(ctx, "oppo f21", compat.PartGlass)
//
// # Thread Safety
//
// Engine is safe for concurrent use. PhoneRegistry and GroupStore are thin
// query helpers bound to a single connection or transaction.
package compat
