// Package bridge connects the interpreter to the external input and audio
// subsystems: the shared event buffer they write and the outbound command
// channel they read.
package bridge

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Slot indexes the shared event buffer.
type Slot int

const (
	SlotKey   Slot = 0 // last remote key code
	SlotMod   Slot = 1 // modifier bits of the last key
	SlotSound Slot = 2 // last audio status flag, -1 when none
	SlotIndex Slot = 3 // index of the sound the status refers to

	// NumSlots is the fixed length of the buffer.
	NumSlots = 4
)

// Audio status flags written to SND by the audio subsystem.
const (
	SoundNone     int32 = -1
	SoundStarted  int32 = 0
	SoundFinished int32 = 1
	SoundFailed   int32 = 2
	SoundStopped  int32 = 3
)

func (s Slot) String() string {
	switch s {
	case SlotKey:
		return "KEY"
	case SlotMod:
		return "MOD"
	case SlotSound:
		return "SND"
	case SlotIndex:
		return "IDX"
	default:
		return fmt.Sprintf("Slot(%d)", int(s))
	}
}

// EventBuffer is the process-wide state written by a single producer goroutine
// (the input or audio subsystem) and read by any number of message ports.
// It is created once at start-up and injected into every port; it is never
// reallocated. Slots are independent: a reader may observe a new KEY together
// with a MOD from an earlier write only if the producer wrote them out of order,
// which PublishKey and PublishSound avoid.
type EventBuffer struct {
	slots [NumSlots]atomic.Int32

	mu      sync.Mutex
	changed chan struct{}
}

// NewEventBuffer returns a zeroed buffer with SND set to -1 (no sound event).
func NewEventBuffer() *EventBuffer {
	b := &EventBuffer{changed: make(chan struct{})}
	b.slots[SlotSound].Store(SoundNone)
	return b
}

// Load reads one slot.
func (b *EventBuffer) Load(slot Slot) int32 {
	return b.slots[slot].Load()
}

// Store writes one slot and wakes every waiter. Producer side only.
func (b *EventBuffer) Store(slot Slot, v int32) {
	b.slots[slot].Store(v)
	b.notify()
}

// PublishKey writes a key event. MOD is stored before KEY so a reader that
// sees the new key also sees its modifiers.
func (b *EventBuffer) PublishKey(key, mod int32) {
	b.slots[SlotMod].Store(mod)
	b.slots[SlotKey].Store(key)
	b.notify()
}

// PublishSound writes an audio status. IDX is stored before SND.
func (b *EventBuffer) PublishSound(flag, index int32) {
	b.slots[SlotIndex].Store(index)
	b.slots[SlotSound].Store(flag)
	b.notify()
}

// Snapshot returns all slots, in slot order.
func (b *EventBuffer) Snapshot() [NumSlots]int32 {
	var out [NumSlots]int32
	for i := range out {
		out[i] = b.slots[i].Load()
	}
	return out
}

// Changed returns a channel that is closed at the next write. Grab it before
// inspecting the slots to avoid missing a write that lands in between.
func (b *EventBuffer) Changed() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.changed
}

func (b *EventBuffer) notify() {
	b.mu.Lock()
	close(b.changed)
	b.changed = make(chan struct{})
	b.mu.Unlock()
}
