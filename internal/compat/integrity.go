package compat

import (
	"context"
	"fmt"
)

// Integrity issue kinds.
const (
	IssueDanglingReference = "dangling_reference" // phone points at a missing group
	IssuePartMismatch      = "part_mismatch"      // phone's display ref points at a glass group, or vice versa
	IssueMissingMember     = "missing_member"     // phone points at a group that does not list it
	IssueOrphanMember      = "orphan_member"      // group lists a model with no phone record
	IssueReferenceMismatch = "reference_mismatch" // group lists a phone that points elsewhere
	IssueEmptyGroup        = "empty_group"
)

// IntegrityIssue is one invariant violation found by CheckIntegrity.
type IntegrityIssue struct {
	Kind     string   `json:"kind"`
	ModelID  string   `json:"model_id,omitempty"`
	GroupID  string   `json:"group_id,omitempty"`
	PartType PartType `json:"part_type,omitempty"`
	Detail   string   `json:"detail"`
}

// IntegrityReport summarises a CheckIntegrity scan.
type IntegrityReport struct {
	Phones int              `json:"phones"`
	Groups int              `json:"groups"`
	Issues []IntegrityIssue `json:"issues"`
}

// OK reports whether the scan found no issues.
func (r *IntegrityReport) OK() bool {
	return len(r.Issues) == 0
}

// CheckIntegrity scans every phone and group and reports references that
// disagree with group membership, members without phones, and empty groups.
// It never modifies the store; affected models can be repaired by relinking
// or deleting them.
func (e *Engine) CheckIntegrity(ctx context.Context) (*IntegrityReport, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	phones, err := NewPhoneRegistry(e.db).List(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	groups, err := NewGroupStore(e.db).List(ctx, "")
	if err != nil {
		return nil, storeErr(err)
	}

	report := &IntegrityReport{Phones: len(phones), Groups: len(groups), Issues: []IntegrityIssue{}}

	byID := make(map[string]*GroupRecord, len(groups))
	for i := range groups {
		byID[groups[i].ID] = &groups[i]
	}
	byKey := make(map[string]*PhoneRecord, len(phones))
	for i := range phones {
		byKey[phones[i].SearchKey] = &phones[i]
	}

	for i := range phones {
		p := &phones[i]
		for _, part := range PartTypes {
			id, ok := p.GroupID(part)
			if !ok {
				continue
			}
			g, exists := byID[id]
			switch {
			case !exists:
				report.add(IssueDanglingReference, p.ModelID, id, part, "group does not exist")
			case g.PartType != part:
				report.add(IssuePartMismatch, p.ModelID, id, part,
					fmt.Sprintf("group is a %s group", g.PartType))
			case !containsFold(g.Members, p.ModelID):
				report.add(IssueMissingMember, p.ModelID, id, part, "group does not list this phone")
			}
		}
	}

	for _, g := range groups {
		if len(g.Members) == 0 {
			report.add(IssueEmptyGroup, "", g.ID, g.PartType, "group has no members")
			continue
		}
		for _, m := range g.Members {
			p, ok := byKey[FoldKey(m)]
			if !ok {
				report.add(IssueOrphanMember, m, g.ID, g.PartType, "no phone record")
				continue
			}
			if id, _ := p.GroupID(g.PartType); id != g.ID {
				report.add(IssueReferenceMismatch, p.ModelID, g.ID, g.PartType,
					fmt.Sprintf("phone references %q", id))
			}
		}
	}

	if !report.OK() {
		e.logger.Warn("integrity check found issues", "count", len(report.Issues))
	}
	return report, nil
}

func (r *IntegrityReport) add(kind, model, group string, part PartType, detail string) {
	r.Issues = append(r.Issues, IntegrityIssue{
		Kind:     kind,
		ModelID:  model,
		GroupID:  group,
		PartType: part,
		Detail:   detail,
	})
}

func containsFold(names []string, name string) bool {
	key := FoldKey(name)
	for _, n := range names {
		if FoldKey(n) == key {
			return true
		}
	}
	return false
}
