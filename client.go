package cxamqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bombsimon/logrusr/v4"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Client manages one resilient connection per configured broker and exposes
// simplified send and consume semantics on top of them. Messages are pulled
// from all configured brokers independently, and pushed to one. Zero value is
// not usable, construct it with New.
type Client struct {
	conf          Config
	logger        logr.Logger
	dialer        Dialer
	hostOpts      ConnectOptions
	urlOpts       ConnectOptions
	prefetchCount int
	started       bool

	mu       sync.RWMutex
	order    []string
	conns    map[string]*managedConn
	channels map[string]Channel

	ready  chan struct{}
	closed chan struct{}
}

// New returns a Client and starts connecting to every configured broker in
// the background. A missing or unusable configuration fails immediately;
// unreachable brokers do not, their connections are retried indefinitely. Use
// WaitReady to block until every broker has a usable channel.
func New(conf Config, opts ...ConfigFunc) (*Client, error) {
	c := &Client{
		conf:   conf.clone(),
		logger: defaultLogger(),
		dialer: amqpDial,
		hostOpts: ConnectOptions{
			ConnectTimeout: hostConnectTimeout,
			Heartbeat:      hostHeartbeat,
			ReconnectDelay: hostReconnectDelay,
		},
		urlOpts: ConnectOptions{
			Heartbeat:      urlHeartbeat,
			ReconnectDelay: urlReconnectDelay,
		},
		conns:    make(map[string]*managedConn),
		channels: make(map[string]Channel),
		ready:    make(chan struct{}),
		closed:   make(chan struct{}),
	}
	for _, fn := range opts {
		err := fn(c)
		if err != nil {
			return nil, fmt.Errorf("configuring client: %w", err)
		}
	}
	err := c.conf.validate()
	if err != nil {
		return nil, err
	}
	c.logger = c.logger.WithName("cxamqp")

	var wg sync.WaitGroup
	for _, u := range c.conf.URLs {
		c.addConnection(&wg, u, u, c.urlOpts)
	}
	for _, h := range c.conf.Hosts {
		url := strings.ReplaceAll(c.conf.DefaultURL, hostPlaceholder, h)
		c.addConnection(&wg, h, url, c.hostOpts)
	}
	for _, name := range c.order {
		go c.conns[name].supervise()
	}
	go func() {
		wg.Wait()
		close(c.ready)
	}()
	c.started = true
	return c, nil
}

// addConnection registers a managed connection under the given key together
// with its send-channel setup. The first completion of that setup counts the
// connection towards the startup gate.
func (c *Client) addConnection(wg *sync.WaitGroup, name, url string, opts ConnectOptions) {
	if _, ok := c.conns[name]; ok {
		return
	}
	m := newManagedConn(name, url, opts, c.dialer, c.logger)
	c.order = append(c.order, name)
	c.conns[name] = m
	wg.Add(1)
	var once sync.Once
	// the setup returns no error and the connection is not live yet, so the
	// registration can not fail here.
	_ = m.addSetup(func(ch Channel) error {
		c.mu.Lock()
		c.channels[name] = ch
		c.mu.Unlock()
		once.Do(wg.Done)
		return nil
	})
}

// WaitReady blocks until every configured broker has completed its channel
// setup at least once, the context is done, or the Client is closed. Send
// calls wait on the same gate internally.
func (c *Client) WaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		if c.isClosed() {
			return ErrClosed
		}
		return nil
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

type sendOptions struct {
	connection string
	routingKey string
	publishing func(*amqp.Publishing)
}

// SendOption modifies a single Send call.
type SendOption func(*sendOptions)

// OnConnection sends the message through the named connection's channel when
// it is ready, falling back to the first available channel otherwise.
func OnConnection(name string) SendOption {
	return func(o *sendOptions) {
		o.connection = name
	}
}

// WithRoutingKey sets the routing key for messages published to an exchange.
// It has no effect when sending directly to a queue.
func WithRoutingKey(key string) SendOption {
	return func(o *sendOptions) {
		o.routingKey = key
	}
}

// WithPublishing exposes the remaining publish options of the underlying
// transport, for example headers or an expiration.
func WithPublishing(fn func(*amqp.Publishing)) SendOption {
	return func(o *sendOptions) {
		o.publishing = fn
	}
}

// Send JSON-encodes data and delivers it to the named queue. A queue name
// starting with "#" addresses an exchange instead: the message is published
// to the exchange named by the remainder of the string, with the routing key
// from WithRoutingKey. Send blocks until every broker's channel is ready, so
// early calls queue up behind the startup gate.
func (c *Client) Send(ctx context.Context, queue string, data any, opts ...SendOption) error {
	select {
	case <-c.ready:
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	// both gates may be open at this point, the closed one wins.
	if c.isClosed() {
		return ErrClosed
	}
	var o sendOptions
	for _, fn := range opts {
		fn(&o)
	}
	ch, err := c.pickChannel(o.connection)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	msg := amqp.Publishing{
		ContentType: "application/json",
		Body:        payload,
	}
	if o.publishing != nil {
		o.publishing(&msg)
	}
	exchange, key := "", queue
	if strings.HasPrefix(queue, exchangeMarker) {
		exchange, key = strings.TrimPrefix(queue, exchangeMarker), o.routingKey
	}
	err = ch.PublishWithContext(ctx, exchange, key, false, false, msg)
	if err != nil {
		return fmt.Errorf("publishing message: %w", err)
	}
	return nil
}

// ConnectionStates reports the lifecycle state of every managed connection,
// keyed the same way as the configuration: by url or by host name.
func (c *Client) ConnectionStates() map[string]ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]ConnState, len(c.order))
	for _, name := range c.order {
		out[name] = c.conns[name].State()
	}
	return out
}

// pickChannel returns the named connection's channel when ready, otherwise
// the first ready channel in registration order.
func (c *Client) pickChannel(name string) (Channel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if name != "" {
		if ch, ok := c.channels[name]; ok {
			return ch, nil
		}
	}
	for _, key := range c.order {
		if ch, ok := c.channels[key]; ok {
			return ch, nil
		}
	}
	return nil, ErrNoChannel
}

// Consume attaches a consumer for the queue on every configured broker, each
// on its own dedicated channel, and declares the queue's configured bindings
// on that channel. Messages are handled with at-least-once semantics: the
// message is acknowledged when the handler returns nil and rejected without
// requeueing when it returns an error or panics. One message's failure never
// stops the consumer. Consumers survive reconnections and stop when the
// context is done or the Client is closed.
func (c *Client) Consume(ctx context.Context, queue string, handler HandlerFunc) error {
	if queue == "" {
		return fmt.Errorf("empty queue name: %w", ErrInput)
	}
	if handler == nil {
		return ErrNilHandler
	}
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	c.mu.RLock()
	conns := make([]*managedConn, 0, len(c.order))
	for _, name := range c.order {
		conns = append(conns, c.conns[name])
	}
	c.mu.RUnlock()
	var errs error
	for _, m := range conns {
		err := m.addSetup(c.consumeSetup(ctx, m.name, queue, handler))
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("consuming on %q: %w", m.name, err))
		}
	}
	return errs
}

func (c *Client) consumeSetup(ctx context.Context, connection, queue string, handler HandlerFunc) channelSetup {
	logger := c.logger.WithName("consume").WithValues("queue", queue, "connection", connection)
	return func(ch Channel) error {
		if ctx.Err() != nil || c.isClosed() {
			return nil
		}
		if c.prefetchCount > 0 {
			err := ch.Qos(c.prefetchCount, 0, false)
			if err != nil {
				return fmt.Errorf("setting Qos: %w", err)
			}
		}
		tag := "cxamqp-" + uuid.NewString()
		msgs, err := ch.Consume(queue, tag, false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("registering consumer: %w", err)
		}
		err = c.setupBindings(ch, queue)
		if err != nil {
			return fmt.Errorf("setting up bindings: %w", err)
		}
		go c.deliveryLoop(ctx, ch, msgs, handler, logger)
		return nil
	}
}

// deliveryLoop drains one consumer's deliveries until the source channel is
// closed by the transport or the consumer is stopped. A closed source is not
// an error, the connection supervisor starts a replacement after
// reconnecting.
func (c *Client) deliveryLoop(ctx context.Context, ch Channel, msgs <-chan amqp.Delivery, handler HandlerFunc, logger logr.Logger) {
	for {
		select {
		case <-ctx.Done():
			c.logErr(ch.Close(), logger, "Closing consumer channel")
			return
		case <-c.closed:
			c.logErr(ch.Close(), logger, "Closing consumer channel")
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			c.handleDelivery(&msg, handler, logger)
		}
	}
}

func (c *Client) handleDelivery(msg *amqp.Delivery, handler HandlerFunc, logger logr.Logger) {
	content := decodePayload(msg.Body, logger)
	err := invokeHandler(handler, content, msg)
	if err != nil {
		logger.Error(err, "Handler failed, rejecting message")
		err = msg.Nack(false, false)
		if err != nil {
			logger.Error(err, "Rejecting message")
		}
		return
	}
	err = msg.Ack(false)
	if err != nil {
		logger.Error(err, "Acknowledging message")
	}
}

// invokeHandler isolates the handler so a panic is contained to the message
// being processed.
func invokeHandler(handler HandlerFunc, content any, msg *amqp.Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(content, msg)
}

// decodePayload turns the raw body into the handler's content value. A body
// that looks like a JSON object or array is unmarshalled; when that fails the
// raw text is passed through unchanged.
func decodePayload(body []byte, logger logr.Logger) any {
	text := string(body)
	if !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "[") {
		return text
	}
	var v any
	err := json.Unmarshal(body, &v)
	if err != nil {
		logger.Info("Message body is not valid JSON, passing through as text", "err", err.Error())
		return text
	}
	return v
}

// Close shuts down every connection supervisor and closes the underlying
// connections. A closed Client is not usable.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	close(c.closed)
	var err error
	for _, name := range c.order {
		er := c.conns[name].close()
		if er != nil && !errors.Is(er, ErrClosed) {
			err = errors.Join(err, er)
		}
	}
	c.channels = make(map[string]Channel)
	return err
}

func (c *Client) logErr(err error, logger logr.Logger, msg string) {
	if err != nil {
		logger.Error(err, msg)
	}
}

func (c *Client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// defaultLogger prints colored level-tagged lines to the console.
func defaultLogger() logr.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{ForceColors: true})
	return logrusr.New(l)
}
