package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecordOnOwnRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.MessageReceived("sensor_update")
	m.MessageReceived("sensor_update")
	m.MessageDiscarded("decode")
	m.ReadingAppended()
	m.SetObservers(3)
	m.ObserverDropped()
	m.CommandDispatched("set", 0.002)
	m.DevicesDiscovered(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.messagesReceived.WithLabelValues("sensor_update")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messagesDiscarded.WithLabelValues("decode")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.readingsAppended))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.observers))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.observersDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsDispatched.WithLabelValues("set")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.commandLatency))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.devicesDiscovered))

	count, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	assert.Equal(t, 8, count)
}

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.MessageReceived("baseboard_status")
		m.SetObservers(1)
		m.CommandDispatched("on", 0)
	})
}
