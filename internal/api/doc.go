// Package api implements the HTTP REST API for the part-compatibility store.
//
// This package provides:
//   - Read endpoints for phones, compatible models and groups
//   - Admin endpoints for linking parts, deleting phones, integrity checks
//     and the audit trail
//   - Prometheus metrics at /api/v1/metrics
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The API is stateless. Front ends (the chat bot, an admin page) keep their
// own conversation state and call one endpoint per completed action. Every
// request maps onto a single compat.Engine call.
//
// # Security
//
// Callers are authenticated upstream. Mutating endpoints read the caller's
// identity from the X-Caller-ID header and require it to be listed in
// admin.user_ids. Reads are open.
package api
