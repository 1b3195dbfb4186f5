package stesse

import "fmt"

// BaseTopic is the default MQTT topic prefix for published player state.
const BaseTopic = "stesse/v1"

// TopicState builds the retained state topic for a node.
func TopicState(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/state", topicBase, nodeID)
}

// TopicEvents builds the events topic for a node.
func TopicEvents(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/evt", topicBase, nodeID)
}
