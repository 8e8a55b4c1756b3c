package audio

import (
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
)

// Voice is one playing clip.
type Voice interface {
	IsPlaying() bool
	Stop()
}

// Backend plays clips. volume is in [0, 1].
type Backend interface {
	Play(clip *Clip, volume float64) (Voice, error)
}

// EbitenBackend plays through an Ebitengine audio context, which mixes all
// voices into one output.
type EbitenBackend struct {
	ctx *audio.Context
}

// NewEbitenBackend wraps ctx. A nil ctx creates the process-wide context;
// Ebitengine allows only one per process.
func NewEbitenBackend(ctx *audio.Context) *EbitenBackend {
	if ctx == nil {
		ctx = audio.CurrentContext()
	}
	if ctx == nil {
		ctx = audio.NewContext(SampleRate)
	}
	return &EbitenBackend{ctx: ctx}
}

func (b *EbitenBackend) Play(clip *Clip, volume float64) (Voice, error) {
	player := b.ctx.NewPlayerFromBytes(clip.PCM)
	player.SetVolume(volume)
	player.Play()
	return &ebitenVoice{player: player}, nil
}

type ebitenVoice struct {
	mu     sync.Mutex
	player *audio.Player
}

func (v *ebitenVoice) IsPlaying() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.player != nil && v.player.IsPlaying()
}

func (v *ebitenVoice) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.player == nil {
		return
	}
	v.player.Pause()
	v.player.Close()
	v.player = nil
}

// SilentBackend plays nothing: each voice simply lasts as long as its clip.
// Used in headless mode.
type SilentBackend struct {
	// Now defaults to time.Now.
	Now func() time.Time
}

func (b *SilentBackend) Play(clip *Clip, _ float64) (Voice, error) {
	now := b.now
	return &silentVoice{now: now, end: now().Add(clip.Duration())}, nil
}

func (b *SilentBackend) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

type silentVoice struct {
	mu      sync.Mutex
	now     func() time.Time
	end     time.Time
	stopped bool
}

func (v *silentVoice) IsPlaying() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.stopped && v.now().Before(v.end)
}

func (v *silentVoice) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopped = true
}
