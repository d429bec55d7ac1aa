package network

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/entities"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// AMQP is the Messaging transport for RabbitMQ deployments. Boards keep
// publishing MQTT topics through the broker's MQTT plugin; this side reads
// them from amq.topic with the dotted routing keys the plugin produces.
type AMQP struct {
	conf     entities.BrokerConfig
	log      *logrus.Entry
	conn     connection
	consumer string

	mu    sync.Mutex
	state atomic.Int32
	subs  subscriptions

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAMQP(conf entities.BrokerConfig, log *logrus.Entry) *AMQP {
	return newAMQP(conf, log, NewAmqpConnection(conf.URL))
}

func newAMQP(conf entities.BrokerConfig, log *logrus.Entry, conn connection) *AMQP {
	ctx, cancel := context.WithCancel(context.Background())
	return &AMQP{
		conf:     conf,
		log:      log,
		conn:     conn,
		consumer: fmt.Sprintf("%s-%s", conf.ClientPrefix, uuid.New().String()[:8]),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (a *AMQP) State() ConnectionState {
	return ConnectionState(a.state.Load())
}

func (a *AMQP) Start() error {
	policy := a.newBackOff()
	policy.MaxElapsedTime = a.conf.InitialConnectTimeout
	err := backoff.RetryNotify(a.connect, backoff.WithContext(policy, a.ctx), func(err error, next time.Duration) {
		a.log.Warnf("cannot connect to broker: %v, will retry after %s", err, next)
	})
	if err != nil {
		return errors.Wrap(err, "initial broker connection")
	}
	a.wg.Add(1)
	go a.notifyWhenClosed()
	return nil
}

func (a *AMQP) Stop() {
	a.cancel()
	a.mu.Lock()
	if a.conn.isOpen() {
		if err := a.conn.close(); err != nil {
			a.log.Warnf("close broker connection: %v", err)
		}
	}
	a.mu.Unlock()
	a.wg.Wait()
	a.state.Store(int32(StateDisconnected))
}

func (a *AMQP) OnMessage(pattern string, handler Handler) error {
	if err := a.subs.add(pattern, handler); err != nil {
		return err
	}
	if a.State() != StateConnected {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn.queueBind(a.consumer, routingKey(pattern), exchangeTopic)
}

func (a *AMQP) Publish(topic string, data interface{}) error {
	if a.State() != StateConnected {
		return fmt.Errorf("publish %s: broker %s", topic, a.State())
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn.publish(exchangeTopic, routingKey(topic), data)
}

func (a *AMQP) newBackOff() *backoff.ExponentialBackOff {
	return reconnectBackOff(a.conf)
}

// connect opens the connection and channel, then replays every subscription
// as a binding on a fresh private queue.
func (a *AMQP) connect() error {
	if a.ctx.Err() != nil {
		return a.ctx.Err()
	}
	a.state.Store(int32(StateConnecting))
	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.setup()
	if err != nil {
		a.state.Store(int32(StateDisconnected))
		return err
	}
	a.state.Store(int32(StateConnected))
	a.log.Printf("connected to broker at %s", a.conf.URL)
	return nil
}

func (a *AMQP) setup() error {
	if err := a.conn.connect(); err != nil {
		return err
	}
	if err := a.conn.createChannel(); err != nil {
		return err
	}
	if err := a.conn.exchangeDeclare(exchangeTopic, exchangeTypeTopic); err != nil {
		return errors.Wrap(err, "declare exchange")
	}
	if err := a.conn.queueDeclare(a.consumer); err != nil {
		return errors.Wrap(err, "declare queue")
	}
	for _, sub := range a.subs.snapshot() {
		if err := a.conn.queueBind(a.consumer, routingKey(sub.pattern), exchangeTopic); err != nil {
			return errors.Wrapf(err, "bind %s", sub.pattern)
		}
		a.log.Printf("subscribed to %s", sub.pattern)
	}
	deliveries, err := a.conn.consume(a.consumer, a.consumer)
	if err != nil {
		return errors.Wrap(err, "consume")
	}
	a.wg.Add(1)
	go a.deliver(deliveries)
	return nil
}

// deliver runs handlers one at a time for the lifetime of one channel.
func (a *AMQP) deliver(deliveries <-chan amqp.Delivery) {
	defer a.wg.Done()
	for d := range deliveries {
		msg := InMsg{Topic: topicFromRoutingKey(d.RoutingKey), Body: d.Body}
		if !a.subs.dispatch(msg) {
			a.log.Debugf("no handler for %s", msg.Topic)
		}
	}
}

func (a *AMQP) notifyWhenClosed() {
	defer a.wg.Done()
	a.mu.Lock()
	closed := a.conn.notifyClose(make(chan *amqp.Error, 1))
	a.mu.Unlock()

	errReason, ok := <-closed
	a.state.Store(int32(StateDisconnected))
	if !ok || errReason == nil || a.ctx.Err() != nil {
		a.log.Println("disconnected cleanly")
		return
	}

	a.log.Warnf("unexpected disconnect (%v), will reconnect", errReason)
	err := backoff.RetryNotify(a.connect, backoff.WithContext(a.newBackOff(), a.ctx), func(err error, next time.Duration) {
		a.log.Warnf("reconnection failed: %v, will retry after %s", err, next)
	})
	if err != nil {
		return
	}
	a.log.Println("reconnection to broker was successful")
	a.wg.Add(1)
	go a.notifyWhenClosed()
}

var _ Messaging = (*AMQP)(nil)
