package network

import (
	"fmt"
	"sync"

	"github.com/cenkalti/backoff"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/entities"
)

// ConnectionState follows disconnected -> connecting -> connected -> disconnected.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// InMsg is one message delivered by the broker.
type InMsg struct {
	Topic string
	Body  []byte
}

// Handler receives messages for one subscription. Handlers of a single
// connection run one at a time, in delivery order.
type Handler func(InMsg)

// Messaging is the broker transport shared by the ingestion service, the
// dispatcher and the board agent.
type Messaging interface {
	Start() error
	Stop()
	State() ConnectionState
	// OnMessage registers a subscription. It is applied immediately when
	// connected and re-applied after every reconnect.
	OnMessage(pattern string, handler Handler) error
	Publish(topic string, data interface{}) error
}

type subscription struct {
	pattern string
	handler Handler
}

// subscriptions is the registry both transports replay on (re)connect.
type subscriptions struct {
	mu    sync.Mutex
	items []subscription
}

func (s *subscriptions) add(pattern string, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("nil handler for %s", pattern)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range s.items {
		if item.pattern == pattern {
			s.items[i].handler = handler
			return nil
		}
	}
	s.items = append(s.items, subscription{pattern, handler})
	return nil
}

func (s *subscriptions) snapshot() []subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]subscription, len(s.items))
	copy(items, s.items)
	return items
}

// dispatch hands msg to the handler of the first matching pattern.
func (s *subscriptions) dispatch(msg InMsg) bool {
	for _, item := range s.snapshot() {
		if MatchTopic(item.pattern, msg.Topic) {
			item.handler(msg)
			return true
		}
	}
	return false
}

// reconnectBackOff doubles from MinReconnectDelay up to MaxReconnectDelay.
// Delays are not jittered so they never leave that range.
func reconnectBackOff(conf entities.BrokerConfig) *backoff.ExponentialBackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = conf.MinReconnectDelay
	policy.MaxInterval = conf.MaxReconnectDelay
	policy.RandomizationFactor = 0
	policy.Multiplier = 2
	policy.MaxElapsedTime = 0
	policy.Reset()
	return policy
}
