package api

import (
	"net/http"

	"github.com/nerrad567/partcompat/internal/compat"
)

// handleListGroups lists compatibility groups, optionally for one part type.
func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	var part compat.PartType
	if v := r.URL.Query().Get("part_type"); v != "" {
		p, err := compat.ParsePartType(v)
		if err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		part = p
	}

	groups, err := s.engine.ListGroups(r.Context(), part)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"groups": groups,
		"count":  len(groups),
	})
}

// handleIntegrity scans the store for reference and membership mismatches.
func (s *Server) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.CheckIntegrity(r.Context())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     report.OK(),
		"report": report,
	})
}
