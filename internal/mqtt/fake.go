package mqtt

import "sync"

// Message is one recorded telemetry publication.
type Message struct {
	Subtopic string
	Value    any
}

// FakePublisher records published telemetry for test assertions.
// Safe for concurrent use: the timer loop publishes from its own goroutine.
type FakePublisher struct {
	mu sync.Mutex

	// Messages contains every published (subtopic, value) pair in order.
	Messages []Message

	// PublishError, if set, is returned by Publish.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a connected FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{Connected: true}
}

// Publish records the telemetry pair.
func (f *FakePublisher) Publish(subtopic string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Messages = append(f.Messages, Message{Subtopic: subtopic, Value: value})
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Last returns the most recent value published under subtopic, if any.
func (f *FakePublisher) Last(subtopic string) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.Messages) - 1; i >= 0; i-- {
		if f.Messages[i].Subtopic == subtopic {
			return f.Messages[i].Value, true
		}
	}
	return nil, false
}

// Count returns how many messages were published under subtopic.
func (f *FakePublisher) Count(subtopic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.Messages {
		if m.Subtopic == subtopic {
			n++
		}
	}
	return n
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Messages = nil
}
