package broadcast

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/logging"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/metrics"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 1, 2, 7, 45, 4, 0, time.UTC)

type recordingObserver struct {
	mu       sync.Mutex
	messages []entities.ObserverMessage
	fail     bool
	block    chan struct{}
	closed   atomic.Bool
}

func (o *recordingObserver) Close() error {
	o.closed.Store(true)
	return nil
}

func (o *recordingObserver) Send(message entities.ObserverMessage) error {
	if o.block != nil {
		<-o.block
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail {
		return errors.New("broken pipe")
	}
	o.messages = append(o.messages, message)
	return nil
}

func (o *recordingObserver) received() []entities.ObserverMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	messages := make([]entities.ObserverMessage, len(o.messages))
	copy(messages, o.messages)
	return messages
}

func (o *recordingObserver) waitFor(t *testing.T, n int) []entities.ObserverMessage {
	require.Eventually(t, func() bool { return len(o.received()) >= n }, time.Second, time.Millisecond)
	return o.received()
}

func newTestBridge(opts ...Option) *Bridge {
	opts = append([]Option{WithClock(clockwork.NewFakeClockAt(testNow))}, opts...)
	return NewBridge(GroupSensorUpdates, logging.Discard(), opts...)
}

func payload(i int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"seq":%d}`, i))
}

func TestGivenJoinThenConfirmationIsSentFirst(t *testing.T) {
	bridge := newTestBridge()
	defer bridge.Close()
	observer := new(recordingObserver)

	bridge.Join(observer)

	messages := observer.waitFor(t, 1)
	assert.Equal(t, entities.KindConnectionEstablished, messages[0].Type)
	assert.Equal(t, "Connected to XIOT sensor stream", messages[0].Message)
	assert.Equal(t, 1, bridge.Count())
}

func TestGivenNObserversThenEachReceivesEveryMessageInOrder(t *testing.T) {
	bridge := newTestBridge()
	defer bridge.Close()
	observers := []*recordingObserver{new(recordingObserver), new(recordingObserver), new(recordingObserver)}
	for _, observer := range observers {
		bridge.Join(observer)
	}

	for i := 0; i < 10; i++ {
		bridge.Publish(entities.KindSensorUpdate, payload(i))
	}

	for _, observer := range observers {
		messages := observer.waitFor(t, 11)
		require.Len(t, messages, 11)
		for i, message := range messages[1:] {
			assert.Equal(t, entities.KindSensorUpdate, message.Type)
			assert.JSONEq(t, string(payload(i)), string(message.Data))
		}
	}
}

func TestGivenLeaveThenNoFurtherMessages(t *testing.T) {
	bridge := newTestBridge()
	defer bridge.Close()
	stays, leaves := new(recordingObserver), new(recordingObserver)
	bridge.Join(stays)
	bridge.Join(leaves)
	leaves.waitFor(t, 1)

	bridge.Leave(leaves)
	bridge.Leave(leaves)
	bridge.Publish(entities.KindBoardStatus, payload(1))

	stays.waitFor(t, 2)
	assert.Len(t, leaves.received(), 1)
	assert.Equal(t, 1, bridge.Count())
}

func TestGivenFailingObserverThenOthersStillReceive(t *testing.T) {
	registry := prometheus.NewRegistry()
	bridge := newTestBridge(WithMetrics(metrics.New(registry)))
	defer bridge.Close()
	healthy, broken := new(recordingObserver), &recordingObserver{fail: true}
	bridge.Join(healthy)
	bridge.Join(broken)

	bridge.Publish(entities.KindSensorUpdate, payload(1))
	bridge.Publish(entities.KindSensorUpdate, payload(2))

	healthy.waitFor(t, 3)
	assert.Eventually(t, func() bool { return bridge.Count() == 1 }, time.Second, time.Millisecond)
	assert.Empty(t, broken.received())
	assert.Eventually(t, broken.closed.Load, time.Second, time.Millisecond)
}

func TestGivenSlowObserverThenItIsDroppedWithoutBlockingPublish(t *testing.T) {
	bridge := newTestBridge(WithQueueSize(2))
	fast, slow := new(recordingObserver), &recordingObserver{block: make(chan struct{})}
	bridge.Join(fast)
	bridge.Join(slow)

	for i := 0; i < 5; i++ {
		bridge.Publish(entities.KindSensorUpdate, payload(i))
		fast.waitFor(t, i+2)
	}

	assert.Equal(t, 1, bridge.Count())
	assert.Eventually(t, slow.closed.Load, time.Second, time.Millisecond)
	assert.False(t, fast.closed.Load())
	close(slow.block)
	bridge.Close()
	assert.LessOrEqual(t, len(slow.received()), 1)
}

func TestGivenPingThenPongCarriesTimestamp(t *testing.T) {
	bridge := newTestBridge()
	defer bridge.Close()
	observer := new(recordingObserver)
	bridge.Join(observer)

	bridge.Pong(observer)

	messages := observer.waitFor(t, 2)
	assert.Equal(t, entities.KindPong, messages[1].Type)
	assert.Equal(t, "2026-01-02T07:45:04Z", messages[1].Timestamp)
}

func TestGivenConcurrentJoinLeavePublishThenNoRace(t *testing.T) {
	bridge := newTestBridge()
	defer bridge.Close()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			observer := new(recordingObserver)
			bridge.Join(observer)
			bridge.Leave(observer)
		}()
		go func(i int) {
			defer wg.Done()
			bridge.Publish(entities.KindSensorUpdate, payload(i))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, bridge.Count())
}
