// Package internal provides some internal functionalities for the library.
package internal

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"
)

type logger interface {
	Errorf(format string, args ...any)
	Info(args ...any)
}

// Sink adapts a printf-style logger to the logr.Logger machinery.
type Sink struct {
	logger logger
}

// NewSink returns a Sink for using as the logr.Logger's sink.
func NewSink(l logger) *Sink {
	return &Sink{logger: l}
}

// Init receives optional information about the logr library for LogSink
// implementations that need it.
func (s *Sink) Init(logr.RuntimeInfo) {}

// Enabled tests whether this LogSink is enabled at the specified V-level.
func (s *Sink) Enabled(int) bool { return true }

// Info logs a non-error message with the given key/value pairs as context.
func (s *Sink) Info(_ int, msg string, kvs ...any) {
	s.logger.Info(fmt.Sprintf("%s %s", msg, strings.Join(fields(kvs...), " ")))
}

// Error logs an error, with the given message and key/value pairs as context.
func (s *Sink) Error(err error, msg string, kvs ...any) {
	s.logger.Errorf("%v: %s %s", err, msg, strings.Join(fields(kvs...), " "))
}

// WithValues returns a new LogSink with additional key/value pairs.
//
//nolint:ireturn // Sink implements logr.LogSink.
func (s *Sink) WithValues(kvs ...any) logr.LogSink {
	return &prefixedSink{Sink: s, prefix: strings.Join(fields(kvs...), " ")}
}

// WithName returns a new LogSink with the specified name appended.
//
//nolint:ireturn // Sink implements logr.LogSink.
func (s *Sink) WithName(string) logr.LogSink { return s }

type prefixedSink struct {
	*Sink
	prefix string
}

func (p *prefixedSink) Info(level int, msg string, kvs ...any) {
	p.Sink.Info(level, fmt.Sprintf("%s %s", p.prefix, msg), kvs...)
}

func (p *prefixedSink) Error(err error, msg string, kvs ...any) {
	p.Sink.Error(err, fmt.Sprintf("%s %s", p.prefix, msg), kvs...)
}

//nolint:ireturn // prefixedSink implements logr.LogSink.
func (p *prefixedSink) WithValues(kvs ...any) logr.LogSink {
	joined := strings.TrimSpace(p.prefix + " " + strings.Join(fields(kvs...), " "))
	return &prefixedSink{Sink: p.Sink, prefix: joined}
}

//nolint:ireturn // prefixedSink implements logr.LogSink.
func (p *prefixedSink) WithName(string) logr.LogSink { return p }

func fields(kvs ...any) []string {
	out := make([]string, 0, len(kvs)/2)
	var key any
	for idx, keyOrValue := range kvs {
		if idx%2 == 0 {
			key = keyOrValue
			continue
		}
		out = append(out, fmt.Sprintf("%v=%v", key, keyOrValue))
	}
	return out
}
