package main

import (
	"context"

	"github.com/nerrad567/partcompat/internal/compat"
	"github.com/nerrad567/partcompat/internal/infrastructure/influxdb"
	"github.com/nerrad567/partcompat/internal/infrastructure/metrics"
	"github.com/nerrad567/partcompat/internal/infrastructure/mqtt"
)

// eventPublisher adapts the MQTT client to compat.EventPublisher.
// Events go to {prefix}/events/{type} at the configured QoS, not retained.
type eventPublisher struct {
	client *mqtt.Client
}

// PublishChange implements compat.EventPublisher.
func (p *eventPublisher) PublishChange(_ context.Context, ev compat.ChangeEvent) error {
	err := p.client.PublishJSON(p.client.Topics().Event(ev.Type), ev)
	metrics.RecordEventPublished(ev.Type, err != nil)
	return err
}

// metricsObserver feeds engine operations into Prometheus.
type metricsObserver struct{}

// ObserveOperation implements compat.Observer.
func (metricsObserver) ObserveOperation(ev compat.OperationEvent) {
	metrics.RecordOperation(ev.Op, string(ev.PartType), ev.Elapsed, ev.Merged, ev.Err != nil)
}

// ObserveCacheLookup implements compat.CacheObserver.
func (metricsObserver) ObserveCacheLookup(hit bool) {
	metrics.RecordCacheLookup(hit)
}

// influxObserver writes mutating engine operations to InfluxDB as history.
type influxObserver struct {
	client *influxdb.Client
}

// ObserveOperation implements compat.Observer. Only link and delete are written.
func (o influxObserver) ObserveOperation(ev compat.OperationEvent) {
	if ev.Op != compat.OpLink && ev.Op != compat.OpDelete {
		return
	}
	o.client.WriteOperation(influxdb.Operation{
		Op:       ev.Op,
		PartType: string(ev.PartType),
		Models:   ev.Models,
		Merged:   ev.Merged,
		Elapsed:  ev.Elapsed,
		Failed:   ev.Err != nil,
	})
}
