package cxamqp

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connection is the subset of the amqp.Connection api this library needs. A
// Connection is produced by a Dialer and owned by the connection registry
// until the Client is closed.
type Connection interface {
	Channel() (Channel, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	NotifyBlocked(receiver chan amqp.Blocking) chan amqp.Blocking
	IsClosed() bool
	Close() error
}

// A Channel can operate exchanges and queues. This is a subset of the
// amqp.Channel api.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Close() error
}

// ConnectOptions carry the per-endpoint dial policy. The zero value leaves
// every decision to the underlying transport.
type ConnectOptions struct {
	ConnectTimeout time.Duration
	Heartbeat      time.Duration
	ReconnectDelay time.Duration
}

// A Dialer opens a single connection to a broker. The registry calls it again
// after every disconnect, indefinitely.
type Dialer func(url string, opts ConnectOptions) (Connection, error)

// amqpConnection is defined to make it easy for passing a mocked connection.
type amqpConnection struct {
	*amqp.Connection
}

// Channel returns the underlying channel.
func (a *amqpConnection) Channel() (Channel, error) {
	return a.Connection.Channel()
}

// amqpDial is the default Dialer, mapping the options onto an amqp.Config.
func amqpDial(url string, opts ConnectOptions) (Connection, error) {
	cfg := amqp.Config{
		Heartbeat:  opts.Heartbeat,
		Properties: amqp.NewConnectionProperties(),
	}
	if opts.ConnectTimeout > 0 {
		cfg.Dial = amqp.DefaultDial(opts.ConnectTimeout)
	}
	conn, err := amqp.DialConfig(url, cfg)
	if err != nil {
		return nil, err
	}
	return &amqpConnection{conn}, nil
}

// A HandlerFunc receives every message arriving on a consumed queue. The
// content is the decoded payload: a JSON-looking body is unmarshalled into
// maps and slices, anything else arrives as the raw string. The msg value
// gives access to the delivery metadata; do not ack or nack it yourself. A
// nil return acknowledges the message, a non-nil return rejects it without
// requeueing.
type HandlerFunc func(content any, msg *amqp.Delivery) error
