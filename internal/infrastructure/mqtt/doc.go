// Package mqtt connects partcompat to an MQTT broker.
//
// The broker is an optional side channel: after a link or delete commits,
// the service publishes a JSON change event so chat front ends and other
// consumers can refresh without polling the API.
//
// This package manages:
//   - Connection with auto-reconnect and Last Will and Testament
//   - Publishing with QoS and payload-size checks
//   - Subscriptions restored on reconnect (used by "partcompat watch")
//
// # Topics
//
//	{prefix}/system/status        retained online/offline status
//	{prefix}/events/linked        LinkParts committed
//	{prefix}/events/deleted       DeletePhone committed
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := client.Topics().Event("linked")
//	err = client.PublishJSON(topic, event)
package mqtt
