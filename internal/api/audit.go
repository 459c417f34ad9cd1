package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/nerrad567/partcompat/internal/audit"
)

// auditLog queues an audit entry for asynchronous write (best-effort).
func (s *Server) auditLog(action, entityType, entityID, caller string, details map[string]any) {
	if s.audit == nil {
		return
	}

	err := s.audit.Record(&audit.AuditLog{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		CallerID:   caller,
		Source:     "api",
		Details:    details,
	})
	if err != nil && !errors.Is(err, audit.ErrQueueFull) {
		s.logger.Warn("audit entry not queued", "action", action, "error", err)
	}
}

// handleListAuditLogs returns paginated audit log entries with optional filters.
//
// Query parameters:
//   - action: link or delete
//   - entity_type: group or phone
//   - entity_id: a group id or model
//   - caller_id: the admin who made the change
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeInternalError(w, "audit logging not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		CallerID:   q.Get("caller_id"),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit logs", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
