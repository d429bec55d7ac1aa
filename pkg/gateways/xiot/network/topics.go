package network

import (
	"fmt"
	"strings"
)

const (
	TopicSensors        = "xiot/+/sensors"
	TopicStatus         = "xiot/+/status"
	TopicLCD            = "lcd/display"
	topicPrefix         = "xiot"
	suffixSensors       = "sensors"
	suffixStatus        = "status"
	suffixActuators     = "actuators"
	suffixDiscover      = "discover"
	singleLevelWildcard = "+"
	multiLevelWildcard  = "#"
)

func boardTopic(board, suffix string) string {
	return fmt.Sprintf("%s/%s/%s", topicPrefix, board, suffix)
}

func SensorsTopic(board string) string   { return boardTopic(board, suffixSensors) }
func StatusTopic(board string) string    { return boardTopic(board, suffixStatus) }
func ActuatorsTopic(board string) string { return boardTopic(board, suffixActuators) }
func DiscoverTopic(board string) string  { return boardTopic(board, suffixDiscover) }

// MatchTopic reports whether topic matches an MQTT subscription pattern.
func MatchTopic(pattern, topic string) bool {
	patternLevels := strings.Split(pattern, "/")
	topicLevels := strings.Split(topic, "/")
	for i, level := range patternLevels {
		if level == multiLevelWildcard {
			return i == len(patternLevels)-1
		}
		if i >= len(topicLevels) {
			return false
		}
		if level != singleLevelWildcard && level != topicLevels[i] {
			return false
		}
	}
	return len(patternLevels) == len(topicLevels)
}

// BoardFromTopic extracts the board identifier from xiot/<board>/<suffix>.
func BoardFromTopic(topic string) (string, bool) {
	levels := strings.Split(topic, "/")
	if len(levels) != 3 || levels[0] != topicPrefix || levels[1] == "" {
		return "", false
	}
	return levels[1], true
}

// routingKey maps an MQTT topic or pattern onto the dotted form used by the
// amq.topic exchange, the same mapping the RabbitMQ MQTT plugin applies.
func routingKey(topic string) string {
	key := strings.ReplaceAll(topic, "/", ".")
	return strings.ReplaceAll(key, singleLevelWildcard, "*")
}

func topicFromRoutingKey(key string) string {
	return strings.ReplaceAll(key, ".", "/")
}
