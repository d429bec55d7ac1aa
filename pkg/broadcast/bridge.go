// Package broadcast fans routed broker messages out to live observers.
package broadcast

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/metrics"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

const (
	GroupSensorUpdates      = "sensor_updates"
	defaultQueueSize        = 64
	connectionConfirmedText = "Connected to XIOT sensor stream"
)

// Observer is one live client. Send is only ever called from the observer's
// own writer goroutine.
type Observer interface {
	Send(message entities.ObserverMessage) error
}

// closer is implemented by observers that hold a connection the bridge
// should shut when it drops them, so the client learns it was evicted.
type closer interface {
	Close() error
}

type member struct {
	observer Observer
	queue    chan entities.ObserverMessage
	done     chan struct{}
	left     atomic.Bool
	once     sync.Once
}

func (m *member) leave() {
	m.once.Do(func() {
		m.left.Store(true)
		close(m.done)
	})
}

// Bridge holds the membership of one fan-out group. Every member has its own
// bounded queue and writer goroutine, so a slow observer never holds up the
// others; when its queue is full or a send fails it is dropped from the group.
type Bridge struct {
	group     string
	log       *logrus.Entry
	clock     clockwork.Clock
	metrics   *metrics.Metrics
	queueSize int

	mu      sync.Mutex
	members map[Observer]*member
	wg      sync.WaitGroup
}

type Option func(*Bridge)

func WithClock(clock clockwork.Clock) Option {
	return func(b *Bridge) { b.clock = clock }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

func WithQueueSize(size int) Option {
	return func(b *Bridge) { b.queueSize = size }
}

func NewBridge(group string, log *logrus.Entry, opts ...Option) *Bridge {
	b := &Bridge{
		group:     group,
		log:       log,
		clock:     clockwork.NewRealClock(),
		queueSize: defaultQueueSize,
		members:   map[Observer]*member{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Join adds observer to the group and sends it the connection confirmation.
func (b *Bridge) Join(observer Observer) {
	m := &member{
		observer: observer,
		queue:    make(chan entities.ObserverMessage, b.queueSize),
		done:     make(chan struct{}),
	}
	m.queue <- entities.ObserverMessage{
		Type:    entities.KindConnectionEstablished,
		Message: connectionConfirmedText,
	}

	b.mu.Lock()
	if previous, ok := b.members[observer]; ok {
		previous.leave()
	}
	b.members[observer] = m
	count := len(b.members)
	b.wg.Add(1)
	b.mu.Unlock()

	b.metrics.SetObservers(count)
	b.log.Debugf("observer joined %s (%d members)", b.group, count)
	go b.write(m)
}

// Leave removes observer. Leaving twice is harmless.
func (b *Bridge) Leave(observer Observer) {
	b.mu.Lock()
	m, ok := b.members[observer]
	if ok {
		delete(b.members, observer)
	}
	count := len(b.members)
	b.mu.Unlock()
	if !ok {
		return
	}
	m.leave()
	b.metrics.SetObservers(count)
	b.log.Debugf("observer left %s (%d members)", b.group, count)
}

// Publish delivers {kind, payload} to every member joined at call time.
func (b *Bridge) Publish(kind string, payload json.RawMessage) {
	message := entities.ObserverMessage{Type: kind, Data: payload}
	for _, m := range b.snapshot() {
		b.enqueue(m, message)
	}
}

// SendTo delivers message to observer only, behind anything already queued.
func (b *Bridge) SendTo(observer Observer, message entities.ObserverMessage) {
	b.mu.Lock()
	m, ok := b.members[observer]
	b.mu.Unlock()
	if ok {
		b.enqueue(m, message)
	}
}

// Pong answers a heartbeat.
func (b *Bridge) Pong(observer Observer) {
	b.SendTo(observer, entities.ObserverMessage{
		Type:      entities.KindPong,
		Timestamp: b.clock.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (b *Bridge) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.members)
}

// Close drops every member and waits for their writers to finish.
func (b *Bridge) Close() {
	for _, m := range b.snapshot() {
		b.Leave(m.observer)
	}
	b.wg.Wait()
}

func (b *Bridge) snapshot() []*member {
	b.mu.Lock()
	defer b.mu.Unlock()
	members := make([]*member, 0, len(b.members))
	for _, m := range b.members {
		members = append(members, m)
	}
	return members
}

func (b *Bridge) enqueue(m *member, message entities.ObserverMessage) {
	if m.left.Load() {
		return
	}
	select {
	case m.queue <- message:
	default:
		b.log.Warnf("observer queue full, dropping it from %s", b.group)
		b.drop(m)
	}
}

func (b *Bridge) drop(m *member) {
	b.metrics.ObserverDropped()
	b.mu.Lock()
	if b.members[m.observer] == m {
		delete(b.members, m.observer)
	}
	count := len(b.members)
	b.mu.Unlock()
	m.leave()
	b.metrics.SetObservers(count)
	if c, ok := m.observer.(closer); ok {
		go func() {
			if err := c.Close(); err != nil {
				b.log.Debugf("close dropped observer: %v", err)
			}
		}()
	}
}

func (b *Bridge) write(m *member) {
	defer b.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case message := <-m.queue:
			if m.left.Load() {
				return
			}
			if err := m.observer.Send(message); err != nil {
				b.log.Debugf("observer send failed: %v", err)
				b.drop(m)
				return
			}
		}
	}
}
