// Package native implements the native components scripts reach through
// CreateObject: the message port that bridges the interpreter to external
// input and audio events, the audio resource, and the event objects they hand
// back to scripts.
package native

import (
	"log/slog"
	"sync"
	"time"

	"github.com/zurustar/brsrt/pkg/bridge"
	"github.com/zurustar/brsrt/pkg/logger"
	"github.com/zurustar/brsrt/pkg/value"
)

// RemoteID is the device tag carried by every synthesized control event.
const RemoteID = "WD:0"

// MessagePort queues messages and deferred callbacks for one script consumer
// and, in watch mode, turns shared event buffer changes into event objects.
//
// Producers (Push, RegisterCallback) may run on any goroutine. Wait, Get and
// Peek belong to the single interpreter goroutine.
type MessagePort struct {
	value.Base

	buf    *bridge.EventBuffer
	poster bridge.Poster
	log    *slog.Logger

	mu         sync.Mutex
	queue      []value.Value
	callbacks  []func() value.Value
	watchKeys  bool
	watchAudio bool
	lastKey    int32
	lastSound  int32
	changed    chan struct{}
}

// PortOption configures a MessagePort.
type PortOption func(*MessagePort)

// WithPortLogger sets the logger used for diagnostics.
func WithPortLogger(log *slog.Logger) PortOption {
	return func(p *MessagePort) {
		p.log = log
	}
}

// NewMessagePort creates a port reading buf. Diagnostics are posted to poster,
// which may be nil.
func NewMessagePort(buf *bridge.EventBuffer, poster bridge.Poster, opts ...PortOption) *MessagePort {
	if buf == nil {
		buf = bridge.NewEventBuffer()
	}
	p := &MessagePort{
		Base:      value.NewBase("roMessagePort", "ifMessagePort"),
		buf:       buf,
		poster:    poster,
		log:       logger.GetLogger(),
		lastKey:   0,
		lastSound: bridge.SoundNone,
		changed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EnableKeys switches key-watch mode.
func (p *MessagePort) EnableKeys(enable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.watchKeys = enable
}

// EnableAudio switches audio-watch mode.
func (p *MessagePort) EnableAudio(enable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.watchAudio = enable
}

// Push appends a message to the queue.
func (p *MessagePort) Push(msg value.Value) {
	if msg == nil {
		msg = value.Invalid
	}
	p.mu.Lock()
	p.queue = append(p.queue, msg)
	p.notifyLocked()
	p.mu.Unlock()
}

// RegisterCallback appends a deferred callback. It runs only when the queue is
// empty and no watch mode is active.
func (p *MessagePort) RegisterCallback(cb func() value.Value) {
	p.mu.Lock()
	p.callbacks = append(p.callbacks, cb)
	p.notifyLocked()
	p.mu.Unlock()
}

// AsyncCancel discards callbacks not yet invoked. Queued messages stay.
func (p *MessagePort) AsyncCancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callbacks = nil
}

// Pending returns the number of queued messages and callbacks.
func (p *MessagePort) Pending() (messages, callbacks int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue), len(p.callbacks)
}

// LastKey returns the key id of the last consumed control event.
func (p *MessagePort) LastKey() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastKey
}

// LastSound returns the last observed audio status flag.
func (p *MessagePort) LastSound() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSound
}

// Get returns the next event or message, or Invalid when nothing is ready.
func (p *MessagePort) Get(ctx value.Context) value.Value {
	if v, ok := p.poll(ctx, true); ok {
		return v
	}
	return value.Invalid
}

// Peek is Get without consuming anything or advancing the key/sound cursors.
// On the callback path the head callback runs but stays queued.
func (p *MessagePort) Peek(ctx value.Context) value.Value {
	if v, ok := p.poll(ctx, false); ok {
		return v
	}
	return value.Invalid
}

// Wait blocks until Get would return something, then returns it.
// With timeoutMs > 0 it gives up at the deadline and returns Invalid. With
// timeoutMs == 0 it waits forever: if no source ever qualifies the call never
// returns, and nothing can cancel it. A negative timeout checks once.
func (p *MessagePort) Wait(ctx value.Context, timeoutMs int32) value.Value {
	if timeoutMs < 0 {
		return p.Get(ctx)
	}

	var deadline <-chan time.Time
	if timeoutMs > 0 {
		timer := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
		defer timer.Stop()
		deadline = timer.C
	}

	warned := false
	for {
		// Subscribe before polling so a write between the poll and the
		// select still wakes us.
		bufChanged := p.buf.Changed()
		portChanged := p.subscribe()

		if v, ok := p.poll(ctx, true); ok {
			return v
		}
		if !warned {
			warned = true
			p.warnEmpty(timeoutMs)
		}

		select {
		case <-bufChanged:
		case <-portChanged:
		case <-deadline:
			return value.Invalid
		}
	}
}

// poll runs the precedence chain once: key-watch, then audio-watch, then the
// queue, then callbacks. Only one source is consulted per call.
func (p *MessagePort) poll(ctx value.Context, consume bool) (value.Value, bool) {
	p.mu.Lock()

	switch {
	case p.watchKeys:
		key := p.buf.Load(bridge.SlotKey)
		if key == p.lastKey {
			p.mu.Unlock()
			return nil, false
		}
		mod := p.buf.Load(bridge.SlotMod)
		if consume {
			p.lastKey = key
		}
		p.mu.Unlock()
		if consume && ctx != nil {
			ctx.RecordKeyEvent(time.Now())
		}
		return NewControlEvent(RemoteID, key, mod), true

	case p.watchAudio:
		flag := p.buf.Load(bridge.SlotSound)
		if flag == p.lastSound {
			p.mu.Unlock()
			return nil, false
		}
		if consume {
			p.lastSound = flag
		}
		p.mu.Unlock()
		if flag < 0 {
			return nil, false
		}
		return NewAudioPlayerEvent(flag, p.buf.Load(bridge.SlotIndex)), true

	case len(p.queue) > 0:
		msg := p.queue[0]
		if consume {
			p.queue[0] = nil
			p.queue = p.queue[1:]
		}
		p.mu.Unlock()
		return msg, true

	case len(p.callbacks) > 0:
		cb := p.callbacks[0]
		if consume {
			p.callbacks = p.callbacks[1:]
		}
		p.mu.Unlock()
		// Run outside the lock: callbacks may push to this port.
		result := cb()
		if result == nil {
			result = value.Invalid
		}
		return result, true
	}

	p.mu.Unlock()
	return nil, false
}

func (p *MessagePort) warnEmpty(timeoutMs int32) {
	p.mu.Lock()
	plain := !p.watchKeys && !p.watchAudio
	p.mu.Unlock()
	if !plain {
		return
	}

	text := "[roMessagePort] No message in the queue!"
	if timeoutMs == 0 {
		text = "[roMessagePort] No message in the queue, waiting without a timeout!"
	}
	p.log.Warn("Waiting on empty message port", "timeout_ms", timeoutMs)
	if p.poster != nil {
		p.poster.PostMessage(bridge.WarningCommand(text))
	}
}

func (p *MessagePort) subscribe() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.changed
}

func (p *MessagePort) notifyLocked() {
	close(p.changed)
	p.changed = make(chan struct{})
}

var portMethods = value.NewMethodTable[*MessagePort]("roMessagePort",
	&value.Method[*MessagePort]{
		Name:      "waitMessage",
		Interface: "ifMessagePort",
		Signature: value.MustSignature(value.KindDynamic, value.Arg("timeout", value.KindInt32)),
		Impl: func(ctx value.Context, p *MessagePort, args []value.Value) value.Value {
			timeout, _ := value.ToInt32(args[0])
			return p.Wait(ctx, timeout)
		},
	},
	&value.Method[*MessagePort]{
		Name:      "getMessage",
		Interface: "ifMessagePort",
		Signature: value.MustSignature(value.KindDynamic),
		Impl: func(ctx value.Context, p *MessagePort, _ []value.Value) value.Value {
			return p.Get(ctx)
		},
	},
	&value.Method[*MessagePort]{
		Name:      "peekMessage",
		Interface: "ifMessagePort",
		Signature: value.MustSignature(value.KindDynamic),
		Impl: func(ctx value.Context, p *MessagePort, _ []value.Value) value.Value {
			return p.Peek(ctx)
		},
	},
)

func (p *MessagePort) HasMethod(name string) bool {
	_, ok := portMethods.Lookup(name)
	return ok
}

func (p *MessagePort) CallMethod(ctx value.Context, name string, args []value.Value) (value.Value, error) {
	return portMethods.Call(ctx, p, name, args)
}
