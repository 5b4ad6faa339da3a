package cxamqp

import (
	"fmt"
	"math"
	"sync"

	"github.com/arsham/retry/v2"
	"github.com/go-logr/logr"
	amqp "github.com/rabbitmq/amqp091-go"
)

// channelSetup prepares a channel on a freshly connected broker. The
// supervisor runs every registered setup again after each reconnect, so the
// channels a setup produces are recreated transparently.
type channelSetup func(Channel) error

// managedConn owns one resilient connection to a single broker. It is created
// by the Client during construction and lives until the Client is closed.
type managedConn struct {
	name   string
	url    string
	opts   ConnectOptions
	dialer Dialer
	logger logr.Logger

	mu     sync.Mutex
	conn   Connection
	state  ConnState
	setups []channelSetup

	done chan struct{}
}

func newManagedConn(name, url string, opts ConnectOptions, dialer Dialer, logger logr.Logger) *managedConn {
	return &managedConn{
		name:   name,
		url:    url,
		opts:   opts,
		dialer: dialer,
		logger: logger.WithName("connection").WithValues("name", name, "url", RedactURL(url)),
		done:   make(chan struct{}),
	}
}

// State reports the current lifecycle state of the connection.
func (m *managedConn) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *managedConn) setState(s ConnState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// addSetup registers a channel setup. When the connection is already live the
// setup runs immediately, otherwise the supervisor runs it after connecting.
func (m *managedConn) addSetup(s channelSetup) error {
	m.mu.Lock()
	m.setups = append(m.setups, s)
	conn := m.conn
	live := m.state == ConnStateConnected || m.state == ConnStateBlocked
	m.mu.Unlock()
	if conn == nil || !live {
		return nil
	}
	return m.runSetup(conn, s)
}

func (m *managedConn) runSetup(conn Connection, s channelSetup) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("creating channel: %w", err)
	}
	err = s(ch)
	if err != nil {
		return fmt.Errorf("setting up channel: %w", err)
	}
	return nil
}

// supervise keeps the connection alive until close is called. Each cycle
// dials, replays the registered channel setups, and then waits for the
// connection to drop. Connectivity failures never escape this loop.
func (m *managedConn) supervise() {
	for {
		select {
		case <-m.done:
			return
		default:
		}
		m.setState(ConnStateConnecting)
		conn, err := m.connect()
		if err != nil {
			return
		}
		m.mu.Lock()
		m.conn = conn
		m.state = ConnStateConnected
		setups := append([]channelSetup(nil), m.setups...)
		m.mu.Unlock()
		m.logger.Info("Connected")
		for _, s := range setups {
			err := m.runSetup(conn, s)
			if err != nil {
				m.logger.Error(err, "Setting up channel")
			}
		}
		m.watch(conn)
	}
}

// connect dials until it succeeds or the managed connection is closed.
func (m *managedConn) connect() (Connection, error) {
	r := retry.Retry{
		Attempts: math.MaxInt32,
		Delay:    m.opts.ReconnectDelay,
	}
	var conn Connection
	err := r.Do(func() error {
		select {
		case <-m.done:
			return &retry.StopError{Err: ErrClosed}
		default:
		}
		var err error
		conn, err = m.dialer(m.url, m.opts)
		if err != nil {
			m.logger.Error(err, "Connection failed")
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// watch blocks until the connection drops or the managed connection is
// closed, logging blocked and unblocked transitions in between.
func (m *managedConn) watch(conn Connection) {
	closeCh := conn.NotifyClose(make(chan *amqp.Error, 1))
	blockCh := conn.NotifyBlocked(make(chan amqp.Blocking, 1))
	for {
		select {
		case <-m.done:
			return
		case b := <-blockCh:
			if b.Active {
				m.setState(ConnStateBlocked)
				m.logger.Info("Blocked", "reason", b.Reason)
				continue
			}
			m.setState(ConnStateConnected)
			m.logger.Info("Unblocked")
		case err := <-closeCh:
			m.setState(ConnStateDisconnected)
			if err != nil {
				m.logger.Info("Disconnected", "err", err.Error())
			} else {
				m.logger.Info("Disconnected")
			}
			m.mu.Lock()
			m.conn = nil
			m.mu.Unlock()
			return
		}
	}
}

// close shuts the supervisor down and closes the underlying connection. A
// closed managed connection never reconnects.
func (m *managedConn) close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.done:
		return ErrClosed
	default:
	}
	close(m.done)
	m.state = ConnStateDisconnected
	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	if err != nil {
		return fmt.Errorf("closing connection: %w", err)
	}
	return nil
}
