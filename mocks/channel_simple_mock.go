package mocks

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ChannelSimple is a simple mock type for the Channel.
type ChannelSimple struct {
	ExchangeDeclareFunc    func(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContextFunc func(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	QueueBindFunc          func(name, key, exchange string, noWait bool, args amqp.Table) error
	ConsumeFunc            func(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	QosFunc                func(prefetchCount, prefetchSize int, global bool) error
	CloseFunc              func() error
}

// ExchangeDeclare mocks the Channel.ExchangeDeclare() method.
func (c *ChannelSimple) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	if c.ExchangeDeclareFunc != nil {
		return c.ExchangeDeclareFunc(name, kind, durable, autoDelete, internal, noWait, args)
	}
	return nil
}

// PublishWithContext mocks the Channel.PublishWithContext() method.
// nolint:gocritic // this is a mock.
func (c *ChannelSimple) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if c.PublishWithContextFunc != nil {
		return c.PublishWithContextFunc(ctx, exchange, key, mandatory, immediate, msg)
	}
	return nil
}

// QueueBind mocks the Channel.QueueBind() method.
func (c *ChannelSimple) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	if c.QueueBindFunc != nil {
		return c.QueueBindFunc(name, key, exchange, noWait, args)
	}
	return nil
}

// Consume mocks the Channel.Consume() method. By default it returns an open
// channel with no deliveries.
func (c *ChannelSimple) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	if c.ConsumeFunc != nil {
		return c.ConsumeFunc(queue, consumer, autoAck, exclusive, noLocal, noWait, args)
	}
	return make(chan amqp.Delivery), nil
}

// Qos mocks the Channel.Qos() method.
func (c *ChannelSimple) Qos(prefetchCount, prefetchSize int, global bool) error {
	if c.QosFunc != nil {
		return c.QosFunc(prefetchCount, prefetchSize, global)
	}
	return nil
}

// Close mocks the Channel.Close() method.
func (c *ChannelSimple) Close() error {
	if c.CloseFunc != nil {
		return c.CloseFunc()
	}
	return nil
}
