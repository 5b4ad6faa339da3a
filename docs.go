// Package cxamqp contains an opinionated messaging-topology manager for
// RabbitMQ, spanning multiple independent brokers.
//
// # Client
//
// Client opens one resilient connection per configured URL or host and one
// channel per connection for sending. Connections are established in the
// background and retried indefinitely, a broker being down never fails
// construction. Send calls queue up behind a startup gate that opens once
// every broker has a usable channel.
//
//	client, err := cxamqp.New(cxamqp.Config{
//		Hosts:      []string{"rabbit1", "rabbit2"},
//		DefaultURL: "amqp://guest:guest@{host}:5672",
//		Bindings: []cxamqp.Binding{
//			{Queue: "orders", Topics: []string{"order.*"}},
//		},
//	})
//	// handle error
//
// # Send
//
// Send JSON-encodes the payload and delivers it to a queue on one broker. A
// "#" prefix addresses an exchange instead of a queue:
//
//	err = client.Send(ctx, "orders", order)
//	err = client.Send(ctx, "#orders.exchange", order, cxamqp.WithRoutingKey("order.created"))
//
// # Consume
//
// Consume attaches a consumer for the queue on every broker, declares the
// queue's configured bindings, and feeds each message to the handler with
// at-least-once semantics: a nil return acknowledges, an error rejects
// without requeueing. The topology is deliberately asymmetric: pull from all
// brokers, push to one.
//
// # Close
//
// Close tears down the supervisors and connections. The Client is useless
// after close.
package cxamqp
