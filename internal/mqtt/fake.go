package mqtt

import (
	"github.com/sweeney/keypad-sensor/internal/logic"
)

// FakePublisher is an in-memory Publisher. Successful publishes are kept
// with the payload the real publisher would have sent.
type FakePublisher struct {
	Events   []logic.Event
	Payloads [][]byte

	SystemEvents   []SystemEvent
	SystemPayloads [][]byte

	// PublishError and PublishSystemError simulate a broker outage: the
	// matching method returns them and records nothing.
	PublishError       error
	PublishSystemError error

	// Refused counts publishes rejected by the errors above.
	Refused int

	Closed    bool
	Connected bool
}

// NewFakePublisher returns an empty, disconnected FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// record formats a payload and appends it, unless fail is set.
func record[E any](fail error, refused *int, events *[]E, payloads *[][]byte, e E, format func(E) ([]byte, error)) error {
	if fail != nil {
		*refused++
		return fail
	}
	payload, err := format(e)
	if err != nil {
		return err
	}
	*events = append(*events, e)
	*payloads = append(*payloads, payload)
	return nil
}

func (f *FakePublisher) Publish(event logic.Event) error {
	return record(f.PublishError, &f.Refused, &f.Events, &f.Payloads, event, FormatPayload)
}

func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	return record(f.PublishSystemError, &f.Refused, &f.SystemEvents, &f.SystemPayloads, event, FormatSystemPayload)
}

// Types lists the type of every published input event, in order.
func (f *FakePublisher) Types() []logic.EventType {
	out := make([]logic.EventType, len(f.Events))
	for i, e := range f.Events {
		out[i] = e.Type
	}
	return out
}

func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

func (f *FakePublisher) IsConnected() bool { return f.Connected }

// Reset returns the fake to its freshly constructed state.
func (f *FakePublisher) Reset() {
	*f = FakePublisher{}
}
