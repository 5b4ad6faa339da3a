package mocks

import "sync"

// Acknowledger records the acknowledgment calls made against a delivery. It
// satisfies the amqp.Acknowledger interface.
type Acknowledger struct {
	mu      sync.Mutex
	acks    []uint64
	nacks   []NackCall
	rejects []RejectCall
}

// NackCall records one Nack invocation.
type NackCall struct {
	Tag      uint64
	Multiple bool
	Requeue  bool
}

// RejectCall records one Reject invocation.
type RejectCall struct {
	Tag     uint64
	Requeue bool
}

// Ack records a positive acknowledgment.
func (a *Acknowledger) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, tag)
	return nil
}

// Nack records a negative acknowledgment.
func (a *Acknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks = append(a.nacks, NackCall{Tag: tag, Multiple: multiple, Requeue: requeue})
	return nil
}

// Reject records a rejection.
func (a *Acknowledger) Reject(tag uint64, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rejects = append(a.rejects, RejectCall{Tag: tag, Requeue: requeue})
	return nil
}

// Acks returns the recorded Ack tags.
func (a *Acknowledger) Acks() []uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]uint64(nil), a.acks...)
}

// Nacks returns the recorded Nack calls.
func (a *Acknowledger) Nacks() []NackCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]NackCall(nil), a.nacks...)
}

// Rejects returns the recorded Reject calls.
func (a *Acknowledger) Rejects() []RejectCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]RejectCall(nil), a.rejects...)
}
