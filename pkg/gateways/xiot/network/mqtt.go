package network

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/entities"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	mqttProtocolVersion = 4
	mqttKeepAlive       = 60 * time.Second
	mqttTokenTimeout    = 10 * time.Second
	mqttQuiesce         = 250
)

var errTokenTimeout = errors.New("timed out waiting for broker")

// clientFactory exists so tests can swap paho for a fake client.
type clientFactory func(*mqtt.ClientOptions) mqtt.Client

// MQTT is the Messaging transport over an MQTT 3.1.1 broker. Reconnection is
// driven here with an exponential backoff rather than by paho itself, so every
// successful connect goes through the same subscribe path.
type MQTT struct {
	conf      entities.BrokerConfig
	clientID  string
	log       *logrus.Entry
	newClient clientFactory

	mu     sync.Mutex
	client mqtt.Client
	state  atomic.Int32
	subs   subscriptions

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewMQTT(conf entities.BrokerConfig, log *logrus.Entry) *MQTT {
	ctx, cancel := context.WithCancel(context.Background())
	return &MQTT{
		conf:      conf,
		clientID:  fmt.Sprintf("%s-%s", conf.ClientPrefix, uuid.New().String()[:8]),
		log:       log,
		newClient: mqtt.NewClient,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (m *MQTT) ClientID() string {
	return m.clientID
}

func (m *MQTT) State() ConnectionState {
	return ConnectionState(m.state.Load())
}

func (m *MQTT) setState(state ConnectionState) {
	previous := ConnectionState(m.state.Swap(int32(state)))
	if previous != state {
		m.log.Debugf("broker connection %s -> %s", previous, state)
	}
}

// Start connects, retrying with backoff for at most InitialConnectTimeout.
// The returned error means the broker was never reached.
func (m *MQTT) Start() error {
	m.log.Printf("connecting to %s as %s", m.conf.URL, m.clientID)
	initial := m.newBackOff()
	initial.MaxElapsedTime = m.conf.InitialConnectTimeout
	err := backoff.RetryNotify(m.connect, backoff.WithContext(initial, m.ctx), func(err error, next time.Duration) {
		m.log.Warnf("cannot connect to broker: %v, will retry after %s", err, next)
	})
	if err != nil {
		m.setState(StateDisconnected)
		return errors.Wrap(err, "initial broker connection")
	}
	return nil
}

// Stop disconnects and cancels any pending reconnect.
func (m *MQTT) Stop() {
	m.cancel()
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	if client != nil && client.IsConnected() {
		client.Disconnect(mqttQuiesce)
	}
	m.wg.Wait()
	m.setState(StateDisconnected)
	m.log.Println("disconnected cleanly")
}

func (m *MQTT) OnMessage(pattern string, handler Handler) error {
	if err := m.subs.add(pattern, handler); err != nil {
		return err
	}
	if m.State() != StateConnected {
		return nil
	}
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	return m.subscribe(client, subscription{pattern, handler})
}

func (m *MQTT) Publish(topic string, data interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("error enconding JSON message: %w", err)
	}
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	if client == nil || m.State() != StateConnected {
		return fmt.Errorf("publish %s: broker %s", topic, m.State())
	}
	return waitToken(client.Publish(topic, m.conf.QoS, false, body))
}

func (m *MQTT) newBackOff() *backoff.ExponentialBackOff {
	return reconnectBackOff(m.conf)
}

func (m *MQTT) options() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.conf.URL)
	opts.SetClientID(m.clientID)
	opts.SetCleanSession(true)
	opts.SetProtocolVersion(mqttProtocolVersion)
	opts.SetKeepAlive(mqttKeepAlive)
	opts.SetAutoReconnect(false)
	opts.SetOrderMatters(true)
	if m.conf.Username != "" {
		opts.SetUsername(m.conf.Username)
		opts.SetPassword(m.conf.Password)
	}
	opts.SetOnConnectHandler(m.onConnect)
	opts.SetConnectionLostHandler(m.onConnectionLost)
	return opts
}

func (m *MQTT) connect() error {
	if m.ctx.Err() != nil {
		return m.ctx.Err()
	}
	m.setState(StateConnecting)
	client := m.newClient(m.options())
	if err := waitToken(client.Connect()); err != nil {
		m.setState(StateDisconnected)
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// Stop may have run while Connect was in flight and missed this client.
	if err := m.ctx.Err(); err != nil {
		client.Disconnect(mqttQuiesce)
		m.setState(StateDisconnected)
		return err
	}
	m.client = client
	return nil
}

func (m *MQTT) onConnect(client mqtt.Client) {
	if m.ctx.Err() != nil {
		return
	}
	m.setState(StateConnected)
	m.log.Printf("connected to broker at %s", m.conf.URL)
	for _, sub := range m.subs.snapshot() {
		if err := m.subscribe(client, sub); err != nil {
			m.log.Errorf("subscribe %s: %v", sub.pattern, err)
		}
	}
}

func (m *MQTT) subscribe(client mqtt.Client, sub subscription) error {
	handler := sub.handler
	err := waitToken(client.Subscribe(sub.pattern, m.conf.QoS, func(_ mqtt.Client, message mqtt.Message) {
		handler(InMsg{Topic: message.Topic(), Body: message.Payload()})
	}))
	if err == nil {
		m.log.Printf("subscribed to %s", sub.pattern)
	}
	return err
}

func (m *MQTT) onConnectionLost(_ mqtt.Client, reason error) {
	m.setState(StateDisconnected)
	if m.ctx.Err() != nil {
		return
	}
	m.log.Warnf("unexpected disconnect (%v), will reconnect", reason)
	m.wg.Add(1)
	go m.reconnect()
}

func (m *MQTT) reconnect() {
	defer m.wg.Done()
	err := backoff.RetryNotify(m.connect, backoff.WithContext(m.newBackOff(), m.ctx), func(err error, next time.Duration) {
		m.log.Warnf("reconnection failed: %v, will retry after %s", err, next)
	})
	if err != nil {
		m.log.Println("reconnection abandoned: transport stopped")
		return
	}
	m.log.Println("reconnection to broker was successful")
}

func waitToken(token mqtt.Token) error {
	if !token.WaitTimeout(mqttTokenTimeout) {
		return errTokenTimeout
	}
	return token.Error()
}

var _ Messaging = (*MQTT)(nil)
