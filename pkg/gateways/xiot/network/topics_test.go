package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchTopic(t *testing.T) {
	cases := []struct {
		pattern, topic string
		match          bool
	}{
		{TopicSensors, "xiot/PI-001/sensors", true},
		{TopicSensors, "xiot/PI-001/status", false},
		{TopicSensors, "xiot/sensors", false},
		{TopicSensors, "xiot/PI-001/sensors/extra", false},
		{"xiot/#", "xiot/PI-001/sensors", true},
		{"#", "lcd/display", true},
		{"xiot/PI-001/discover", "xiot/PI-001/discover", true},
		{"xiot/PI-001/discover", "xiot/PI-002/discover", false},
		{"xiot/#/sensors", "xiot/PI-001/sensors", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.match, MatchTopic(c.pattern, c.topic), "%s ~ %s", c.pattern, c.topic)
	}
}

func TestBoardTopicsMatchSubscriptionPatterns(t *testing.T) {
	assert.Equal(t, "xiot/PI-001/sensors", SensorsTopic("PI-001"))
	assert.True(t, MatchTopic(TopicSensors, SensorsTopic("PI-001")))
	assert.True(t, MatchTopic(TopicStatus, StatusTopic("PI-001")))
	assert.False(t, MatchTopic(TopicSensors, TopicLCD))
}

func TestBoardFromTopic(t *testing.T) {
	board, ok := BoardFromTopic("xiot/PI-001/status")
	assert.True(t, ok)
	assert.Equal(t, "PI-001", board)

	_, ok = BoardFromTopic("xiot//status")
	assert.False(t, ok)
	_, ok = BoardFromTopic("lcd/display")
	assert.False(t, ok)
}

func TestRoutingKeyRoundTripsBoardTopics(t *testing.T) {
	assert.Equal(t, "xiot.*.sensors", routingKey(TopicSensors))
	assert.Equal(t, "xiot.PI-001.actuators", routingKey(ActuatorsTopic("PI-001")))
	assert.Equal(t, "xiot/PI-001/actuators", topicFromRoutingKey("xiot.PI-001.actuators"))
}
