package cxamqp

import "errors"

var (
	// ErrMissingConfig is returned when the Client is constructed without a
	// usable configuration.
	ErrMissingConfig = errors.New("missing configuration")

	// ErrInput is returned when an input is invalid.
	ErrInput = errors.New("invalid input")

	// ErrNilHandler is returned when the handler is nil.
	ErrNilHandler = errors.New("handler can not be nil")

	// ErrNoChannel is returned when a message is sent before any channel has
	// been established.
	ErrNoChannel = errors.New("no channel available")

	// ErrClosed is returned when the Client is closed and is being reused.
	ErrClosed = errors.New("client is already closed")

	// ErrAlreadyConfigured is returned when an already started client is
	// about to be configured.
	ErrAlreadyConfigured = errors.New("client is already started")

	// ErrUnsupportedBinding is logged when a binding rule matches a queue but
	// maps to no known exchange type.
	ErrUnsupportedBinding = errors.New("unsupported binding type")
)
