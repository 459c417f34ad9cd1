package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/partcompat/internal/audit"
	"github.com/nerrad567/partcompat/internal/compat"
)

// modelParam returns the decoded {model} path segment. chi matches on
// RawPath when the request has one, leaving the segment escaped; otherwise
// it is already decoded.
func modelParam(r *http.Request) string {
	raw := chi.URLParam(r, "model")
	if r.URL.RawPath == "" {
		return raw
	}
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// handleListPhones returns every known model in byte order.
func (s *Server) handleListPhones(w http.ResponseWriter, r *http.Request) {
	models, err := s.engine.ListAllModels(r.Context())
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"models": models,
		"count":  len(models),
	})
}

// handleGetPhone looks a phone up case-insensitively.
func (s *Server) handleGetPhone(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.Find(r.Context(), modelParam(r))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleCompatibleModels returns the models sharing a part with {model}.
//
// An unknown model yields an empty list and a model with no group yields
// the model itself, so the response is always 200.
func (s *Server) handleCompatibleModels(w http.ResponseWriter, r *http.Request) {
	part, err := compat.ParsePartType(chi.URLParam(r, "part"))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	model := modelParam(r)

	models, err := s.engine.GetCompatibleModels(r.Context(), model, part)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"model":     model,
		"part_type": part,
		"models":    models,
	})
}

// handleDeletePhone removes a phone from the store and from its groups.
func (s *Server) handleDeletePhone(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.DeletePhoneDetailed(r.Context(), modelParam(r))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	if res == nil {
		writeNotFound(w, "phone not found")
		return
	}

	details := map[string]any{}
	for part, id := range res.Groups {
		details[string(part)+"_group_id"] = id
	}
	if len(res.EmptiedGroupIDs) > 0 {
		details["emptied_group_ids"] = res.EmptiedGroupIDs
	}
	s.auditLog(audit.ActionDelete, audit.EntityPhone, res.ModelID, callerID(r.Context()), details)

	writeJSON(w, http.StatusOK, map[string]any{
		"deleted": true,
		"result":  res,
	})
}
