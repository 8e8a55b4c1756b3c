package input

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/term"

	"github.com/zurustar/brsrt/pkg/bridge"
	"github.com/zurustar/brsrt/pkg/logger"
)

// DefaultReleaseDelay is how long a key stays pressed before its release is
// published.
const DefaultReleaseDelay = 100 * time.Millisecond

// DefaultEscapeTimeout is how long a lone ESC waits for the rest of an escape
// sequence before it counts as Back.
const DefaultEscapeTimeout = 50 * time.Millisecond

// ErrInterrupted is returned by Run when Ctrl-C is typed.
var ErrInterrupted = errors.New("interrupted from keyboard")

// Options configures a Keyboard.
type Options struct {
	// Input is the source of raw bytes (required).
	Input io.Reader

	// ManageTerminal puts Input in raw mode when it is a terminal.
	ManageTerminal bool

	// ReleaseDelay defaults to DefaultReleaseDelay.
	ReleaseDelay time.Duration

	// EscapeTimeout defaults to DefaultEscapeTimeout.
	EscapeTimeout time.Duration

	Logger *slog.Logger
}

// Keyboard is the single writer of the KEY and MOD slots.
type Keyboard struct {
	input        io.Reader
	buf          *bridge.EventBuffer
	releaseDelay time.Duration
	escTimeout   time.Duration
	log          *slog.Logger

	terminalFd      int
	managesTerminal bool

	decoder Decoder
}

// NewKeyboard creates a keyboard writing to buf.
func NewKeyboard(buf *bridge.EventBuffer, opts Options) *Keyboard {
	k := &Keyboard{
		input:        opts.Input,
		buf:          buf,
		releaseDelay: opts.ReleaseDelay,
		escTimeout:   opts.EscapeTimeout,
		log:          opts.Logger,
		terminalFd:   -1,
	}
	if k.releaseDelay <= 0 {
		k.releaseDelay = DefaultReleaseDelay
	}
	if k.escTimeout <= 0 {
		k.escTimeout = DefaultEscapeTimeout
	}
	if k.log == nil {
		k.log = logger.GetLogger()
	}
	if opts.ManageTerminal {
		if f, ok := opts.Input.(interface{ Fd() uintptr }); ok {
			fd := int(f.Fd())
			if term.IsTerminal(fd) {
				k.terminalFd = fd
				k.managesTerminal = true
			}
		}
	}
	return k
}

// Run reads keys until ctx is done, the input ends or Ctrl-C is typed. The
// terminal mode is restored before it returns.
func (k *Keyboard) Run(ctx context.Context) error {
	if k.managesTerminal {
		state, err := term.MakeRaw(k.terminalFd)
		if err != nil {
			return fmt.Errorf("failed to enable raw mode: %w", err)
		}
		defer func() {
			if err := term.Restore(k.terminalFd, state); err != nil {
				k.log.Error("Failed to restore terminal", "error", err)
			}
		}()
		k.log.Debug("Terminal set to raw mode")
	}

	chunks := make(chan readResult, 16)
	done := make(chan struct{})
	defer close(done)
	go k.readLoop(chunks, done)

	var (
		pending *Key
		release <-chan time.Time
		timer   *time.Timer

		escape   <-chan time.Time
		escTimer *time.Timer
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		if escTimer != nil {
			escTimer.Stop()
		}
	}()

	publishRelease := func() {
		if pending != nil {
			k.buf.PublishKey(pending.Code+ReleaseOffset, pending.Modifiers)
			pending = nil
		}
		release = nil
	}

	// press publishes keys in order; it reports false on Ctrl-C
	press := func(keys []Key) bool {
		for _, key := range keys {
			if key == Interrupt {
				publishRelease()
				return false
			}
			// a new press releases the previous key first
			publishRelease()
			k.log.Debug("Key pressed", "code", key.Code, "modifiers", key.Modifiers)
			k.buf.PublishKey(key.Code, key.Modifiers)
			key := key
			pending = &key
			if timer == nil {
				timer = time.NewTimer(k.releaseDelay)
			} else {
				timer.Reset(k.releaseDelay)
			}
			release = timer.C
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			publishRelease()
			return ctx.Err()

		case <-release:
			publishRelease()

		case <-escape:
			escape = nil
			press(k.decoder.Flush())

		case chunk := <-chunks:
			if chunk.err != nil {
				press(k.decoder.Flush())
				publishRelease()
				if errors.Is(chunk.err, io.EOF) {
					return nil
				}
				return chunk.err
			}
			if !press(k.decoder.Feed(chunk.data)) {
				return ErrInterrupted
			}
			// a trailing ESC may be the start of a sequence still in flight
			escape = nil
			if k.decoder.Pending() {
				if escTimer == nil {
					escTimer = time.NewTimer(k.escTimeout)
				} else {
					escTimer.Reset(k.escTimeout)
				}
				escape = escTimer.C
			}
		}
	}
}

type readResult struct {
	data []byte
	err  error
}

// readLoop forwards reads in order, the final error included. A blocked Read
// cannot be interrupted, so after Run returns the loop exits on its next send.
func (k *Keyboard) readLoop(chunks chan<- readResult, done <-chan struct{}) {
	buf := make([]byte, 64)
	for {
		n, err := k.input.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case chunks <- readResult{data: data}:
			case <-done:
				return
			}
		}
		if err != nil {
			select {
			case chunks <- readResult{err: err}:
			case <-done:
			}
			return
		}
	}
}
