package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/partcompat/internal/audit"
	"github.com/nerrad567/partcompat/internal/compat"
)

// linkRequest is the body of POST /links.
type linkRequest struct {
	PartType string   `json:"part_type" validate:"required"`
	Models   []string `json:"models" validate:"required,min=1,max=500"`
}

// handleLinkParts merges the given models into one compatibility group.
func (s *Server) handleLinkParts(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, validationMessage(err))
		return
	}

	part, err := compat.ParsePartType(req.PartType)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	res, err := s.engine.LinkParts(r.Context(), req.Models, part)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	details := map[string]any{
		"part_type": string(res.PartType),
		"members":   res.Members,
	}
	if len(res.MergedGroupIDs) > 0 {
		details["merged_group_ids"] = res.MergedGroupIDs
	}
	s.auditLog(audit.ActionLink, audit.EntityGroup, res.GroupID, callerID(r.Context()), details)

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}
