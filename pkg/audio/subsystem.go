package audio

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/zurustar/brsrt/pkg/bridge"
	"github.com/zurustar/brsrt/pkg/logger"
	"github.com/zurustar/brsrt/pkg/native"
)

// DefaultPollInterval is how often finished voices are detected.
const DefaultPollInterval = 20 * time.Millisecond

type voice struct {
	name  string
	index int32
	v     Voice
}

// Subsystem is the single writer of the SND and IDX slots. It runs on its
// own goroutine; only Run touches its voices.
type Subsystem struct {
	commands <-chan string
	buf      *bridge.EventBuffer
	loader   *Loader
	backend  Backend

	voices       []*voice
	maxStreams   int
	pollInterval time.Duration

	log *slog.Logger
}

// Option configures a Subsystem.
type Option func(*Subsystem)

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Subsystem) {
		s.log = log
	}
}

// WithMaxStreams caps concurrent voices. Defaults to the platform limit.
func WithMaxStreams(n int) Option {
	return func(s *Subsystem) {
		if n > 0 {
			s.maxStreams = n
		}
	}
}

// WithPollInterval sets how often finished voices are detected.
func WithPollInterval(d time.Duration) Option {
	return func(s *Subsystem) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// NewSubsystem creates a subsystem reading commands and writing buf.
func NewSubsystem(commands <-chan string, buf *bridge.EventBuffer, loader *Loader, backend Backend, opts ...Option) *Subsystem {
	s := &Subsystem{
		commands:     commands,
		buf:          buf,
		loader:       loader,
		backend:      backend,
		maxStreams:   native.MaxSimulStreams,
		pollInterval: DefaultPollInterval,
		log:          logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run handles commands until ctx is done or the command channel closes.
// Voices still playing are stopped on return.
func (s *Subsystem) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	defer s.stopAll()

	s.log.Info("Audio subsystem started", "max_streams", s.maxStreams)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-s.commands:
			if !ok {
				s.log.Info("Audio command channel closed")
				return nil
			}
			s.Handle(msg)
		case <-ticker.C:
			s.Update()
		}
	}
}

// Handle executes one command string.
func (s *Subsystem) Handle(msg string) {
	cmd, err := bridge.ParseCommand(msg)
	if err != nil {
		s.log.Warn("Ignoring audio command", "command", msg, "error", err)
		return
	}
	switch cmd.Kind {
	case bridge.CommandTrigger:
		s.trigger(cmd.Name, cmd.Volume, cmd.Index)
	case bridge.CommandStop:
		s.stop(cmd.Name)
	case bridge.CommandWarning:
		s.log.Warn("Script warning", "text", cmd.Text)
	}
}

func (s *Subsystem) trigger(name string, vol, index int32) {
	clip, err := s.loader.Load(name)
	if err != nil {
		s.log.Error("Failed to load sound", "name", name, "error", err)
		s.buf.PublishSound(bridge.SoundFailed, index)
		return
	}

	for len(s.voices) >= s.maxStreams {
		oldest := s.voices[0]
		oldest.v.Stop()
		s.voices = s.voices[1:]
		s.log.Debug("Voice evicted", "name", oldest.name, "index", oldest.index)
	}

	v, err := s.backend.Play(clip, volumeScale(vol))
	if err != nil {
		s.log.Error("Failed to play sound", "name", name, "error", err)
		s.buf.PublishSound(bridge.SoundFailed, index)
		return
	}
	s.voices = append(s.voices, &voice{name: name, index: index, v: v})
	s.log.Debug("Voice started", "name", name, "volume", vol, "index", index)
	s.buf.PublishSound(bridge.SoundStarted, index)
}

// stop stops every voice playing name. Stopped is published once, for the
// last voice stopped.
func (s *Subsystem) stop(name string) {
	kept := s.voices[:0]
	var stopped *voice
	for _, v := range s.voices {
		if strings.EqualFold(v.name, name) {
			v.v.Stop()
			stopped = v
			continue
		}
		kept = append(kept, v)
	}
	clear(s.voices[len(kept):])
	s.voices = kept
	if stopped != nil {
		s.buf.PublishSound(bridge.SoundStopped, stopped.index)
	}
}

// Update retires voices that finished on their own and publishes Finished
// for each, in start order.
func (s *Subsystem) Update() {
	kept := s.voices[:0]
	var finished []*voice
	for _, v := range s.voices {
		if v.v.IsPlaying() {
			kept = append(kept, v)
			continue
		}
		finished = append(finished, v)
	}
	clear(s.voices[len(kept):])
	s.voices = kept
	for _, v := range finished {
		s.log.Debug("Voice finished", "name", v.name, "index", v.index)
		s.buf.PublishSound(bridge.SoundFinished, v.index)
	}
}

// Active returns the number of voices playing.
func (s *Subsystem) Active() int {
	return len(s.voices)
}

func (s *Subsystem) stopAll() {
	for _, v := range s.voices {
		v.v.Stop()
	}
	s.voices = nil
}

func volumeScale(vol int32) float64 {
	switch {
	case vol <= 0:
		return 0
	case vol >= 100:
		return 1
	default:
		return float64(vol) / 100
	}
}
