package mqtt

import "strings"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "partcompat"

// Topics builds partcompat topic names under a prefix.
//
//	topics := mqtt.Topics{Prefix: "shop1/partcompat"}
//	topics.Event("linked") // "shop1/partcompat/events/linked"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	p := strings.Trim(t.Prefix, "/")
	if p == "" {
		return DefaultTopicPrefix
	}
	return p
}

// SystemStatus is the retained online/offline status topic.
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}

// Event is the topic for one change event type.
func (t Topics) Event(eventType string) string {
	return t.prefix() + "/events/" + eventType
}

// AllEvents matches every change event.
func (t Topics) AllEvents() string {
	return t.prefix() + "/events/+"
}
