package cxamqp

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Config describes the messaging topology: which brokers to connect to and
// which exchanges every queue should be bound to. The Client deep-copies the
// value it is given, later mutations by the caller have no effect.
type Config struct {
	// URLs are complete connection strings, each opening one connection keyed
	// by the URL itself.
	URLs []string

	// Hosts open one connection each, keyed by the host name, with the host
	// substituted into DefaultURL.
	Hosts []string

	// DefaultURL is a connection string template containing the "{host}"
	// placeholder.
	DefaultURL string

	// Bindings are applied in order whenever a consumer attaches to a queue.
	Bindings []Binding
}

// Binding routes a queue to an exchange. A rule with Topics resolves to a
// topic exchange, otherwise a rule with Headers resolves to a headers
// exchange. When Exchange is empty the built-in exchange of the resolved type
// is used.
type Binding struct {
	Queue    string
	Exchange string
	Topics   []string
	Headers  amqp.Table
}

// Type returns the exchange type this rule resolves to, or false when the
// rule maps to no known type.
func (b Binding) Type() (ExchangeType, bool) {
	switch {
	case len(b.Topics) > 0:
		return ExchangeTypeTopic, true
	case len(b.Headers) > 0:
		return ExchangeTypeHeaders, true
	}
	return _invalidExchangeType, false
}

// ExchangeName returns the exchange the rule binds to, falling back to the
// built-in exchange of the given type.
func (b Binding) ExchangeName(t ExchangeType) string {
	if b.Exchange != "" {
		return b.Exchange
	}
	return t.DefaultExchange()
}

func (c Config) validate() error {
	if len(c.URLs) == 0 && len(c.Hosts) == 0 {
		return fmt.Errorf("no urls or hosts: %w", ErrMissingConfig)
	}
	if len(c.Hosts) > 0 && !strings.Contains(c.DefaultURL, hostPlaceholder) {
		return fmt.Errorf("default url %q without a %s placeholder: %w",
			RedactURL(c.DefaultURL), hostPlaceholder, ErrMissingConfig)
	}
	return nil
}

// clone deep-copies the configuration so the Client is immune to the caller
// mutating slices or header tables afterwards.
func (c Config) clone() Config {
	cp := c
	cp.URLs = append([]string(nil), c.URLs...)
	cp.Hosts = append([]string(nil), c.Hosts...)
	cp.Bindings = make([]Binding, len(c.Bindings))
	for i, b := range c.Bindings {
		bc := b
		bc.Topics = append([]string(nil), b.Topics...)
		if b.Headers != nil {
			bc.Headers = make(amqp.Table, len(b.Headers))
			for k, v := range b.Headers {
				bc.Headers[k] = v
			}
		}
		cp.Bindings[i] = bc
	}
	return cp
}

// ConfigFunc is a function for setting up the Client. A config function
// returns an error if the client is already started.
type ConfigFunc func(*Client) error

// WithLogger sets the logger. The default logger prints colored level-tagged
// lines to the console.
func WithLogger(l logr.Logger) ConfigFunc {
	return func(c *Client) error {
		if c.started {
			return ErrAlreadyConfigured
		}
		c.logger = l
		return nil
	}
}

// WithDialer replaces the transport dialer. Useful for passing a mocked
// connection.
func WithDialer(d Dialer) ConfigFunc {
	return func(c *Client) error {
		if c.started {
			return ErrAlreadyConfigured
		}
		if d == nil {
			return fmt.Errorf("nil dialer: %w", ErrInput)
		}
		c.dialer = d
		return nil
	}
}

// WithPrefetchCount sets how many items should be prefetched on consume
// channels. With a prefetch count greater than zero, the server will deliver
// that many messages to consumers before acknowledgments are received.
func WithPrefetchCount(i int) ConfigFunc {
	return func(c *Client) error {
		if c.started {
			return ErrAlreadyConfigured
		}
		if i < 0 {
			return fmt.Errorf("not enough prefetch count: %d: %w", i, ErrInput)
		}
		c.prefetchCount = i
		return nil
	}
}

// WithConnectTimeout overrides the dial timeout of host-derived connections.
func WithConnectTimeout(d time.Duration) ConfigFunc {
	return func(c *Client) error {
		if c.started {
			return ErrAlreadyConfigured
		}
		c.hostOpts.ConnectTimeout = d
		return nil
	}
}

// WithHeartbeat overrides the heartbeat interval of host-derived connections.
func WithHeartbeat(d time.Duration) ConfigFunc {
	return func(c *Client) error {
		if c.started {
			return ErrAlreadyConfigured
		}
		c.hostOpts.Heartbeat = d
		return nil
	}
}

// WithReconnectDelay overrides the delay between reconnection attempts of
// host-derived connections.
func WithReconnectDelay(d time.Duration) ConfigFunc {
	return func(c *Client) error {
		if c.started {
			return ErrAlreadyConfigured
		}
		c.hostOpts.ReconnectDelay = d
		return nil
	}
}
