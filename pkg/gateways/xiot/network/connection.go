package network

import (
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	exchangeTopic     = "amq.topic"
	exchangeTypeTopic = "topic"
	durable           = true
	deleteWhenUnused  = true
	exclusive         = true
	internal          = false
	noWait            = false
	autoAck           = true
	noLocal           = false
)

type connection interface {
	connect() error
	createChannel() error
	queueDeclare(name string) error
	exchangeDeclare(name, exchangeType string) error
	queueBind(queueName, key, exchangeName string) error
	consume(queue, consumer string) (<-chan amqp.Delivery, error)
	publish(exchange, key string, data interface{}) error
	isOpen() bool
	close() error
	notifyClose(channel chan *amqp.Error) chan *amqp.Error
}

type AmqpConnection struct {
	url     string
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   *amqp.Queue
}

func NewAmqpConnection(url string) *AmqpConnection {
	return &AmqpConnection{url: url}
}

func (a *AmqpConnection) connect() error {
	conn, err := amqp.Dial(a.url)
	if err == nil {
		a.conn = conn
	}
	return err
}

func (a *AmqpConnection) createChannel() error {
	channel, err := a.conn.Channel()
	if err == nil {
		a.channel = channel
	}
	return err
}

// queueDeclare declares a private queue that disappears with the connection,
// the AMQP counterpart of an MQTT clean session.
func (a *AmqpConnection) queueDeclare(name string) error {
	queue, err := a.channel.QueueDeclare(
		name,
		!durable,
		deleteWhenUnused,
		exclusive,
		noWait,
		nil, // arguments
	)
	if err == nil {
		a.queue = &queue
	}
	return err
}

func (a *AmqpConnection) exchangeDeclare(name, exchangeType string) error {
	return a.channel.ExchangeDeclare(
		name,
		exchangeType,
		durable,
		!deleteWhenUnused,
		internal,
		noWait,
		nil, // arguments
	)
}

func (a *AmqpConnection) queueBind(queueName, key, exchangeName string) error {
	return a.channel.QueueBind(queueName, key, exchangeName, noWait, nil)
}

func (a *AmqpConnection) consume(queue, consumer string) (<-chan amqp.Delivery, error) {
	return a.channel.Consume(queue, consumer, autoAck, exclusive, noLocal, noWait, nil)
}

func (a *AmqpConnection) publish(exchange, key string, data interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("error enconding JSON message: %w", err)
	}

	return a.channel.Publish(
		exchange,
		key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Transient,
			Body:         body,
		},
	)
}

func (a *AmqpConnection) isOpen() bool {
	return a.conn != nil && !a.conn.IsClosed()
}

func (a *AmqpConnection) close() error {
	if a.conn == nil {
		return nil
	}
	return a.conn.Close()
}

func (a *AmqpConnection) notifyClose(channel chan *amqp.Error) chan *amqp.Error {
	return a.conn.NotifyClose(channel)
}
