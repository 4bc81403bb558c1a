package events

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"cdfichain/core/types"
)

// Event represents a structured state change emitted by the chain.
type Event interface {
	EventType() string
}

// Typed is implemented by events that can render themselves for receipts,
// the RPC stream and the indexer.
type Typed interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer collects events in emission order. The executor hands one to the
// engines of each transaction and only forwards the contents on commit.
type Buffer struct {
	mu     sync.Mutex
	events []Event
}

func (b *Buffer) Emit(evt Event) {
	if evt == nil {
		return
	}
	b.mu.Lock()
	b.events = append(b.events, evt)
	b.mu.Unlock()
}

// Events returns the collected events.
func (b *Buffer) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// Render converts the collected events to their wire form, skipping any that
// cannot render themselves.
func (b *Buffer) Render() []types.Event {
	evts := b.Events()
	out := make([]types.Event, 0, len(evts))
	for _, evt := range evts {
		typed, ok := evt.(Typed)
		if !ok {
			continue
		}
		if rendered := typed.Event(); rendered != nil {
			out = append(out, *rendered)
		}
	}
	return out
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func addressString(addr common.Address) string {
	return addr.Hex()
}
