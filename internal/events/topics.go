package events

import "fmt"

// Topic prefixes for the Cync event publisher.
//
// All topics use the flat scheme: cync/{category}/{id}. This mirrors how
// the underlying Session reports state internally, so a host that prefers
// MQTT over the Go Subscribe callback sees the same events either way.
const (
	TopicPrefixState  = "cync/state"
	TopicPrefixAck    = "cync/ack"
	TopicPrefixSystem = "cync/system"
)

// Topics provides builders for Cync MQTT topics.
type Topics struct{}

// EntityState returns the topic a Room or Device's rolled-up state is
// published to.
//
// Example: cync/state/room-42
func (Topics) EntityState(entityID string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixState, entityID)
}

// CommandAck returns the topic a command's outcome is published to.
//
// Example: cync/ack/7f000101-...
func (Topics) CommandAck(commandID string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixAck, commandID)
}

// SystemStatus returns the topic the publisher's own online/offline status
// is published to (LWT target).
//
// Example: cync/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllEntityStates returns a pattern matching every entity state topic.
//
// Pattern: cync/state/+
func (Topics) AllEntityStates() string {
	return fmt.Sprintf("%s/+", TopicPrefixState)
}
