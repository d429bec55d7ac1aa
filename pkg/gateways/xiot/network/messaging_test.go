package network

import (
	"testing"
	"time"

	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/logging"
	"github.com/stretchr/testify/assert"
)

func TestGivenSamePatternThenHandlerIsReplaced(t *testing.T) {
	var subs subscriptions
	var first, second int
	assert.NoError(t, subs.add(TopicSensors, func(InMsg) { first++ }))
	assert.NoError(t, subs.add(TopicSensors, func(InMsg) { second++ }))

	assert.Len(t, subs.snapshot(), 1)
	assert.True(t, subs.dispatch(InMsg{Topic: "xiot/PI-001/sensors"}))
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
}

func TestGivenNilHandlerThenAddFails(t *testing.T) {
	var subs subscriptions
	assert.Error(t, subs.add(TopicStatus, nil))
	assert.Empty(t, subs.snapshot())
}

func TestGivenUnmatchedTopicThenDispatchReportsFalse(t *testing.T) {
	var subs subscriptions
	assert.NoError(t, subs.add(TopicStatus, func(InMsg) { t.Fatal("unexpected delivery") }))
	assert.False(t, subs.dispatch(InMsg{Topic: "xiot/PI-001/sensors"}))
}

func TestConnectionStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
}

func TestGivenReconnectBackOffThenDelaysDoubleUpToMaximum(t *testing.T) {
	policy := reconnectBackOff(entities.BrokerConfig{MinReconnectDelay: time.Second, MaxReconnectDelay: 30 * time.Second})
	expected := []time.Duration{1, 2, 4, 8, 16, 30, 30, 30}
	for _, seconds := range expected {
		assert.Equal(t, seconds*time.Second, policy.NextBackOff())
	}
}

func TestGivenBothTransportsThenReconnectDelaysStayInBounds(t *testing.T) {
	conf := entities.BrokerConfig{MinReconnectDelay: time.Second, MaxReconnectDelay: 30 * time.Second}
	policies := map[string]interface{ NextBackOff() time.Duration }{
		"mqtt": NewMQTT(conf, logging.Discard()).newBackOff(),
		"amqp": newAMQP(conf, logging.Discard(), nil).newBackOff(),
	}
	for name, policy := range policies {
		for i := 0; i < 50; i++ {
			delay := policy.NextBackOff()
			assert.GreaterOrEqual(t, delay, time.Second, name)
			assert.LessOrEqual(t, delay, 30*time.Second, name)
		}
	}
}
