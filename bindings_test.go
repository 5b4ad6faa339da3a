package cxamqp_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/blokur/testament"
	"github.com/google/go-cmp/cmp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connexcs/cxamqp"
	"github.com/connexcs/cxamqp/mocks"
)

type declareRecord struct {
	Name    string
	Kind    string
	Durable bool
}

type bindRecord struct {
	Queue    string
	Key      string
	Exchange string
	Args     amqp.Table
}

// topologyRecorder records exchange declarations and queue bindings.
type topologyRecorder struct {
	*mocks.ChannelSimple
	mu       sync.Mutex
	declares []declareRecord
	binds    []bindRecord
}

func newTopologyRecorder() *topologyRecorder {
	r := &topologyRecorder{ChannelSimple: &mocks.ChannelSimple{}}
	r.ExchangeDeclareFunc = func(name, kind string, durable, _, _, _ bool, _ amqp.Table) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.declares = append(r.declares, declareRecord{Name: name, Kind: kind, Durable: durable})
		return nil
	}
	r.QueueBindFunc = func(name, key, exchange string, _ bool, args amqp.Table) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.binds = append(r.binds, bindRecord{Queue: name, Key: key, Exchange: exchange, Args: args})
		return nil
	}
	return r
}

func (r *topologyRecorder) recorded() ([]declareRecord, []bindRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]declareRecord(nil), r.declares...), append([]bindRecord(nil), r.binds...)
}

// consumeWithBindings spins up a client against a mocked broker, attaches a
// consumer to the queue, and returns what got declared and bound.
func consumeWithBindings(t *testing.T, queue string, bindings []cxamqp.Binding, times int) ([]declareRecord, []bindRecord) {
	t.Helper()
	broker := newFakeBroker()
	recorder := newTopologyRecorder()
	broker.channelFor(recorder)

	client, err := cxamqp.New(cxamqp.Config{
		URLs:     []string{"amqp://localhost:5672"},
		Bindings: bindings,
	}, cxamqp.WithDialer(broker.dialer()))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	waitReady(t, client)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := 0; i < times; i++ {
		err = client.Consume(ctx, queue, func(any, *amqp.Delivery) error { return nil })
		require.NoError(t, err)
	}
	declares, binds := recorder.recorded()
	return declares, binds
}

func TestSetupBindings(t *testing.T) {
	t.Parallel()
	t.Run("Topic", testSetupBindingsTopic)
	t.Run("Headers", testSetupBindingsHeaders)
	t.Run("TopicThenHeaders", testSetupBindingsTopicThenHeaders)
	t.Run("HeadersEarlyReturn", testSetupBindingsHeadersEarlyReturn)
	t.Run("Unsupported", testSetupBindingsUnsupported)
	t.Run("OtherQueues", testSetupBindingsOtherQueues)
	t.Run("Idempotence", testSetupBindingsIdempotence)
}

func testSetupBindingsTopic(t *testing.T) {
	t.Parallel()
	queue := "test." + testament.RandomLowerString(10)

	declares, binds := consumeWithBindings(t, queue, []cxamqp.Binding{
		{Queue: queue, Topics: []string{"a.*", "b.#"}},
		{Queue: queue, Exchange: "custom.topic", Topics: []string{"c"}},
	}, 1)

	wantDeclares := []declareRecord{
		{Name: "amq.topic", Kind: "topic", Durable: true},
		{Name: "custom.topic", Kind: "topic", Durable: true},
	}
	if diff := cmp.Diff(wantDeclares, declares); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	wantBinds := []bindRecord{
		{Queue: queue, Key: "a.*", Exchange: "amq.topic"},
		{Queue: queue, Key: "b.#", Exchange: "amq.topic"},
		{Queue: queue, Key: "c", Exchange: "custom.topic"},
	}
	if diff := cmp.Diff(wantBinds, binds); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func testSetupBindingsHeaders(t *testing.T) {
	t.Parallel()
	queue := "test." + testament.RandomLowerString(10)
	headers := amqp.Table{"x-match": "all", "format": "pdf"}

	declares, binds := consumeWithBindings(t, queue, []cxamqp.Binding{
		{Queue: queue, Headers: headers},
	}, 1)

	require.Len(t, declares, 1)
	assert.Equal(t, declareRecord{Name: "amq.headers", Kind: "headers", Durable: true}, declares[0])

	require.Len(t, binds, 1)
	assert.Equal(t, queue, binds[0].Queue)
	assert.Empty(t, binds[0].Key)
	assert.Equal(t, "amq.headers", binds[0].Exchange)
	if diff := cmp.Diff(headers, binds[0].Args); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

// a topic rule followed by a headers rule: both bindings are established,
// because the early return only triggers once the headers branch runs.
func testSetupBindingsTopicThenHeaders(t *testing.T) {
	t.Parallel()
	queue := "test." + testament.RandomLowerString(10)

	declares, binds := consumeWithBindings(t, queue, []cxamqp.Binding{
		{Queue: queue, Topics: []string{"a.*"}},
		{Queue: queue, Headers: amqp.Table{"k": "v"}},
	}, 1)

	require.Len(t, declares, 2)
	require.Len(t, binds, 2)
	assert.Equal(t, "amq.topic", binds[0].Exchange)
	assert.Equal(t, "amq.headers", binds[1].Exchange)
}

// only the first matching headers rule is honoured, anything after it is
// ignored, including topic rules.
func testSetupBindingsHeadersEarlyReturn(t *testing.T) {
	t.Parallel()
	queue := "test." + testament.RandomLowerString(10)

	declares, binds := consumeWithBindings(t, queue, []cxamqp.Binding{
		{Queue: queue, Headers: amqp.Table{"first": "rule"}},
		{Queue: queue, Headers: amqp.Table{"second": "rule"}},
		{Queue: queue, Topics: []string{"never.bound"}},
	}, 1)

	require.Len(t, declares, 1)
	require.Len(t, binds, 1)
	if diff := cmp.Diff(amqp.Table{"first": "rule"}, binds[0].Args); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func testSetupBindingsUnsupported(t *testing.T) {
	t.Parallel()
	queue := "test." + testament.RandomLowerString(10)

	declares, binds := consumeWithBindings(t, queue, []cxamqp.Binding{
		{Queue: queue, Exchange: "no.type"},
		{Queue: queue, Topics: []string{"still.bound"}},
	}, 1)

	require.Len(t, declares, 1)
	require.Len(t, binds, 1)
	assert.Equal(t, "amq.topic", binds[0].Exchange)
	assert.Equal(t, "still.bound", binds[0].Key)
}

func testSetupBindingsOtherQueues(t *testing.T) {
	t.Parallel()
	queue := "test." + testament.RandomLowerString(10)

	declares, binds := consumeWithBindings(t, queue, []cxamqp.Binding{
		{Queue: "another.queue", Topics: []string{"a.*"}},
		{Queue: "another.queue", Headers: amqp.Table{"k": "v"}},
	}, 1)

	assert.Empty(t, declares)
	assert.Empty(t, binds)
}

// attaching twice issues the same declarations twice; they are idempotent on
// the broker side.
func testSetupBindingsIdempotence(t *testing.T) {
	t.Parallel()
	queue := "test." + testament.RandomLowerString(10)

	declares, binds := consumeWithBindings(t, queue, []cxamqp.Binding{
		{Queue: queue, Topics: []string{"a.*"}},
	}, 2)

	require.Len(t, declares, 2)
	assert.Equal(t, declares[0], declares[1])
	require.Len(t, binds, 2)
	assert.Equal(t, binds[0], binds[1])
}
