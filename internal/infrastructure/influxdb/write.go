package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// measurementOperations holds one point per engine operation.
const measurementOperations = "compat_operations"

// Operation is one completed engine call.
type Operation struct {
	Op       string
	PartType string
	Models   int
	Merged   int
	Elapsed  time.Duration
	Failed   bool
	At       time.Time
}

// WriteOperation queues op for the next batch. Dropped silently when the
// client is closed.
//
// Example:
//
//	client.WriteOperation(influxdb.Operation{Op: "delete", Models: 1, Elapsed: 3 * time.Millisecond})
func (c *Client) WriteOperation(op Operation) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(operationPoint(op))
}

// operationPoint tags by low-cardinality labels only; model names stay out
// of the tag set.
func operationPoint(op Operation) *write.Point {
	at := op.At
	if at.IsZero() {
		at = time.Now()
	}

	outcome := "ok"
	if op.Failed {
		outcome = "error"
	}
	tags := map[string]string{
		"op":      op.Op,
		"outcome": outcome,
	}
	if op.PartType != "" {
		tags["part_type"] = op.PartType
	}

	return write.NewPoint(measurementOperations, tags, map[string]any{
		"models":      op.Models,
		"merged":      op.Merged,
		"duration_ms": float64(op.Elapsed) / float64(time.Millisecond),
	}, at)
}
