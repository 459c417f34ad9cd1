package compat

import (
	"fmt"
	"strings"
	"time"
)

// PartType is a replacement-part category. Compatibility is tracked
// independently for each one.
type PartType string

const (
	// PartDisplay is the display (screen assembly) category.
	PartDisplay PartType = "display"
	// PartGlass is the screen guard / tempered glass category.
	PartGlass PartType = "glass"
)

// PartTypes lists every supported category in a stable order.
var PartTypes = []PartType{PartDisplay, PartGlass}

// Valid reports whether p is a known category.
func (p PartType) Valid() bool {
	return p == PartDisplay || p == PartGlass
}

// Label is the human name of the category.
func (p PartType) Label() string {
	switch p {
	case PartDisplay:
		return "Display"
	case PartGlass:
		return "Screen Guard"
	default:
		return string(p)
	}
}

// column is the phones table column holding the group reference for p.
// Only called after Valid, so the result is always one of two fixed names.
func (p PartType) column() string {
	if p == PartGlass {
		return "glass_group_id"
	}
	return "display_group_id"
}

// ParsePartType accepts the canonical names plus the spellings used by the
// chat front end ("link_display", "find_glass", "screen guard").
func ParsePartType(s string) (PartType, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, prefix := range []string{"link_", "find_"} {
		v = strings.TrimPrefix(v, prefix)
	}
	switch v {
	case "display", "screen", "lcd":
		return PartDisplay, nil
	case "glass", "screen guard", "screen_guard", "screenguard", "tempered glass":
		return PartGlass, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPartType, s)
	}
}

// PhoneRecord is one phone model and its group reference per category.
type PhoneRecord struct {
	ModelID        string    `json:"model_id"`
	SearchKey      string    `json:"search_key"`
	DisplayGroupID *string   `json:"display_group_id,omitempty"`
	GlassGroupID   *string   `json:"glass_group_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// GroupID returns the phone's group for part, if any.
func (p *PhoneRecord) GroupID(part PartType) (string, bool) {
	var id *string
	switch part {
	case PartDisplay:
		id = p.DisplayGroupID
	case PartGlass:
		id = p.GlassGroupID
	}
	if id == nil || *id == "" {
		return "", false
	}
	return *id, true
}

// DeepCopy returns a copy that shares no pointers with p.
func (p *PhoneRecord) DeepCopy() *PhoneRecord {
	if p == nil {
		return nil
	}
	c := *p
	if p.DisplayGroupID != nil {
		v := *p.DisplayGroupID
		c.DisplayGroupID = &v
	}
	if p.GlassGroupID != nil {
		v := *p.GlassGroupID
		c.GlassGroupID = &v
	}
	return &c
}

// GroupRecord is one compatibility group.
type GroupRecord struct {
	ID        string    `json:"id"`
	PartType  PartType  `json:"part_type"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LinkResult describes the group produced by LinkParts.
type LinkResult struct {
	GroupID        string   `json:"group_id"`
	PartType       PartType `json:"part_type"`
	Members        []string `json:"members"`
	Created        bool     `json:"created"`
	MergedGroupIDs []string `json:"merged_group_ids,omitempty"`
}

// DeleteResult describes what DeletePhone removed.
type DeleteResult struct {
	ModelID         string              `json:"model_id"`
	Groups          map[PartType]string `json:"groups,omitempty"`
	EmptiedGroupIDs []string            `json:"emptied_group_ids,omitempty"`
}
