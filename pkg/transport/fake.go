package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// EmitRecord is one outbound event captured by the Fake.
type EmitRecord struct {
	Event   string
	Payload any
}

// Fake is an in-memory Transport for tests. Fire delivers inbound events to
// the registered handlers; Emits records everything sent outbound.
type Fake struct {
	// ConnectFn, when set, replaces the default connect behavior.
	ConnectFn func(ctx context.Context) error
	// ConnectErr makes every Connect fail when ConnectFn is unset.
	ConnectErr error

	mu        sync.Mutex
	connected bool
	connects  int
	handlers  map[string]Handler
	emits     []EmitRecord
}

func NewFake() *Fake {
	return &Fake{handlers: make(map[string]Handler)}
}

func (f *Fake) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connects++
	f.mu.Unlock()
	if f.ConnectFn != nil {
		if err := f.ConnectFn(ctx); err != nil {
			return err
		}
	} else if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *Fake) Emit(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return fmt.Errorf("emit %s: not connected", event)
	}
	f.emits = append(f.emits, EmitRecord{Event: event, Payload: payload})
	return nil
}

func (f *Fake) On(event string, h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = h
}

func (f *Fake) Off(event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, event)
}

func (f *Fake) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func (f *Fake) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Fire delivers one inbound event, as the gateway would.
func (f *Fake) Fire(event string, payload []byte) {
	f.mu.Lock()
	h := f.handlers[event]
	f.mu.Unlock()
	if h != nil {
		h(payload)
	}
}

// FireJSON marshals v and delivers it.
func (f *Fake) FireJSON(event string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	f.Fire(event, b)
}

// Emits returns the captured outbound events.
func (f *Fake) Emits() []EmitRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]EmitRecord, len(f.emits))
	copy(out, f.emits)
	return out
}

// Connects reports how many Connect calls were made.
func (f *Fake) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

// DropConnection simulates a server-side close: the link goes down and the
// disconnect event is delivered with the given reason.
func (f *Fake) DropConnection(reason string) {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	f.Fire(EventDisconnect, []byte(reason))
}
