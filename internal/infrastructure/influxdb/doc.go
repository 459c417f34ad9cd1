// Package influxdb records partcompat operation history in InfluxDB.
//
// Every engine operation (link, delete, lookup) becomes one point in the
// "compat_operations" measurement, tagged by operation, part type and
// outcome, so catalogue activity and latency can be charted over time.
// Prometheus (/metrics) covers live counters; InfluxDB keeps the history.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteOperation(influxdb.Operation{Op: "link", PartType: "glass", Models: 3})
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking and
// batched per batch_size and flush_interval; async write failures are
// delivered to the SetOnError callback.
package influxdb
