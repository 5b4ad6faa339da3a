package cxamqp_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	"github.com/connexcs/cxamqp"
	"github.com/connexcs/cxamqp/internal"
	"github.com/connexcs/cxamqp/mocks"
)

// fakeBroker hands out mocked connections and remembers them so tests can
// drop connections and inspect dial counts.
type fakeBroker struct {
	mu       sync.Mutex
	dials    int
	dialErrs []error // consumed first, one per dial
	newConn  func() *mocks.ConnectionSimple
	closeChs []chan *amqp.Error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{}
}

func (f *fakeBroker) dialer() cxamqp.Dialer {
	return func(string, cxamqp.ConnectOptions) (cxamqp.Connection, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.dials++
		if len(f.dialErrs) > 0 {
			err := f.dialErrs[0]
			f.dialErrs = f.dialErrs[1:]
			if err != nil {
				return nil, err
			}
		}
		var conn *mocks.ConnectionSimple
		if f.newConn != nil {
			conn = f.newConn()
		} else {
			conn = &mocks.ConnectionSimple{}
		}
		closeCh := make(chan *amqp.Error, 1)
		userFn := conn.NotifyCloseFunc
		conn.NotifyCloseFunc = func(receiver chan *amqp.Error) chan *amqp.Error {
			if userFn != nil {
				receiver = userFn(receiver)
			}
			go func() {
				err, ok := <-closeCh
				if ok {
					receiver <- err
				}
			}()
			return receiver
		}
		f.closeChs = append(f.closeChs, closeCh)
		return conn, nil
	}
}

// channelFor makes every dialed connection hand out the given channels in
// order, repeating the last one.
func (f *fakeBroker) channelFor(chs ...cxamqp.Channel) {
	f.newConn = func() *mocks.ConnectionSimple {
		var mu sync.Mutex
		var n int
		return &mocks.ConnectionSimple{
			ChannelFunc: func() (cxamqp.Channel, error) {
				mu.Lock()
				defer mu.Unlock()
				i := n
				if i >= len(chs) {
					i = len(chs) - 1
				}
				n++
				return chs[i], nil
			},
		}
	}
}

func (f *fakeBroker) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials
}

// dropConnection simulates the broker closing the n-th connection.
func (f *fakeBroker) dropConnection(t *testing.T, n int) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Less(t, n, len(f.closeChs))
	f.closeChs[n] <- &amqp.Error{Code: amqp.ConnectionForced, Reason: "test drop"}
}

// recordingChannel returns a ChannelSimple that records every publish.
type publishRecord struct {
	Exchange string
	Key      string
	Msg      amqp.Publishing
}

type recordingChannel struct {
	*mocks.ChannelSimple
	mu        sync.Mutex
	published []publishRecord
}

func newRecordingChannel() *recordingChannel {
	r := &recordingChannel{ChannelSimple: &mocks.ChannelSimple{}}
	r.PublishWithContextFunc = func(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.published = append(r.published, publishRecord{Exchange: exchange, Key: key, Msg: msg})
		return nil
	}
	return r
}

func (r *recordingChannel) records() []publishRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]publishRecord(nil), r.published...)
}

// waitReady fails the test if the client does not become ready in time.
func waitReady(t *testing.T, client *cxamqp.Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, client.WaitReady(ctx))
}

// brokerURL returns the url of the broker the integration tests run against,
// preferring an externally provided RABBITMQ_ADDR over a fresh container.
func brokerURL(t *testing.T) string {
	t.Helper()
	env, err := internal.GetEnv()
	require.NoError(t, err)
	if os.Getenv("RABBITMQ_ADDR") != "" {
		return fmt.Sprintf("amqp://%s:%s@%s/", env.RabbitMQUser, env.RabbitMQPass, env.RabbitMQAddr)
	}
	_, url := getContainer(t)
	return url
}

// getContainer returns a new container running rabbitmq that is ready for
// accepting connections, and its amqp url.
func getContainer(t *testing.T) (container testcontainers.Container, url string) {
	t.Helper()
	ctx := context.Background()
	rmq, err := tcrabbitmq.Run(ctx, "rabbitmq:3.12-management-alpine")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = rmq.Terminate(ctx)
	})

	url, err = rmq.AmqpURL(ctx)
	require.NoError(t, err)
	return rmq, url
}

// restartRabbitMQ restarts the rabbitmq server inside the container.
func restartRabbitMQ(t *testing.T, container testcontainers.Container) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	_, _, err := container.Exec(ctx, []string{
		"rabbitmqctl",
		"stop_app",
	})
	require.NoError(t, err)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		//nolint:errcheck // the test will time out if this fails.
		container.Exec(ctx, []string{
			"rabbitmqctl",
			"start_app",
		})
	}()
}
