package compat

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// maxModelNameLength bounds a model name, in characters, after trimming.
const maxModelNameLength = 128

// FoldKey is the case-insensitive identity of a model name. Every lookup and
// every stored search_key goes through it.
func FoldKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CleanModelName trims name and rejects blank or oversized names.
func CleanModelName(name string) (string, error) {
	n := strings.TrimSpace(name)
	if n == "" || utf8.RuneCountInString(n) > maxModelNameLength {
		return "", ErrInvalidModelName
	}
	return n, nil
}

// cleanNames trims every name and drops blanks and case-insensitive
// duplicates. The first spelling seen wins.
func cleanNames(names []string) ([]string, error) {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, raw := range names {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		n, err := CleanModelName(raw)
		if err != nil {
			return nil, err
		}
		key := FoldKey(n)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}

// memberSet collects model names keyed by folded name, keeping the first
// spelling added.
type memberSet struct {
	names map[string]string
}

func newMemberSet() *memberSet {
	return &memberSet{names: make(map[string]string)}
}

func (s *memberSet) add(name string) {
	key := FoldKey(name)
	if key == "" {
		return
	}
	if _, ok := s.names[key]; !ok {
		s.names[key] = strings.TrimSpace(name)
	}
}

// sorted returns the members ordered case-insensitively.
func (s *memberSet) sorted() []string {
	out := make([]string, 0, len(s.names))
	for _, n := range s.names {
		out = append(out, n)
	}
	sortFold(out)
	return out
}

// sortFold sorts names case-insensitively, breaking ties by byte order so the
// result does not depend on input order.
func sortFold(names []string) {
	slices.SortFunc(names, func(a, b string) int {
		if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
}
