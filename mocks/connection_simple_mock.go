package mocks

import (
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/connexcs/cxamqp"
)

// ConnectionSimple is a simple mock type for the Connection.
type ConnectionSimple struct {
	ChannelFunc       func() (cxamqp.Channel, error)
	NotifyCloseFunc   func(receiver chan *amqp.Error) chan *amqp.Error
	NotifyBlockedFunc func(receiver chan amqp.Blocking) chan amqp.Blocking
	IsClosedFunc      func() bool
	CloseFunc         func() error
}

// Channel mocks the Connection.Channel() method.
func (c *ConnectionSimple) Channel() (cxamqp.Channel, error) {
	if c.ChannelFunc != nil {
		return c.ChannelFunc()
	}
	return &ChannelSimple{}, nil
}

// NotifyClose mocks the Connection.NotifyClose() method. By default the
// receiver never fires, keeping the mocked connection alive.
func (c *ConnectionSimple) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	if c.NotifyCloseFunc != nil {
		return c.NotifyCloseFunc(receiver)
	}
	return receiver
}

// NotifyBlocked mocks the Connection.NotifyBlocked() method.
func (c *ConnectionSimple) NotifyBlocked(receiver chan amqp.Blocking) chan amqp.Blocking {
	if c.NotifyBlockedFunc != nil {
		return c.NotifyBlockedFunc(receiver)
	}
	return receiver
}

// IsClosed mocks the Connection.IsClosed() method.
func (c *ConnectionSimple) IsClosed() bool {
	if c.IsClosedFunc != nil {
		return c.IsClosedFunc()
	}
	return false
}

// Close mocks the Connection.Close() method.
func (c *ConnectionSimple) Close() error {
	if c.CloseFunc != nil {
		return c.CloseFunc()
	}
	return nil
}
