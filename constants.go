package cxamqp

import "time"

// ExchangeType is the kind of exchange a binding rule resolves to.
type ExchangeType int

const (
	// ExchangeTypeTopic defines a topic exchange.
	ExchangeTypeTopic ExchangeType = iota

	// ExchangeTypeHeaders defines a headers exchange.
	ExchangeTypeHeaders

	_invalidExchangeType
)

// IsValid returns true if the object is within the valid boundries.
func (e ExchangeType) IsValid() bool {
	return e < _invalidExchangeType && e >= 0
}

func (e ExchangeType) String() string {
	switch e {
	case ExchangeTypeTopic:
		return "topic"
	case ExchangeTypeHeaders:
		return "headers"
	}
	return ""
}

// DefaultExchange returns the built-in exchange used when a binding rule does
// not name one.
func (e ExchangeType) DefaultExchange() string {
	switch e {
	case ExchangeTypeTopic:
		return "amq.topic"
	case ExchangeTypeHeaders:
		return "amq.headers"
	}
	return ""
}

// ConnState is the lifecycle state of a managed connection.
type ConnState int32

const (
	// ConnStateConnecting means the dialer has not (re)established the
	// connection yet.
	ConnStateConnecting ConnState = iota

	// ConnStateConnected means the connection is live.
	ConnStateConnected

	// ConnStateBlocked means the broker has paused publishers, usually due to
	// a resource alarm.
	ConnStateBlocked

	// ConnStateDisconnected means the connection dropped and a reconnect is
	// pending.
	ConnStateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case ConnStateConnecting:
		return "connecting"
	case ConnStateConnected:
		return "connected"
	case ConnStateBlocked:
		return "blocked"
	case ConnStateDisconnected:
		return "disconnected"
	}
	return ""
}

// Dial policy for connections derived from the Hosts list.
const (
	hostConnectTimeout = 5 * time.Second
	hostHeartbeat      = 60 * time.Second
	hostReconnectDelay = 60 * time.Second
)

// Dial policy for connections given as raw URLs, matching the transport's own
// defaults.
const (
	urlHeartbeat      = 10 * time.Second
	urlReconnectDelay = 5 * time.Second
)

// hostPlaceholder is substituted with each host name in the DefaultURL
// template.
const hostPlaceholder = "{host}"

// exchangeMarker prefixes a queue name in Send to address an exchange
// instead.
const exchangeMarker = "#"
