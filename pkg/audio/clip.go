// Package audio is the external audio subsystem. It consumes trigger and
// stop commands from the interpreter, plays the named sounds and reports
// their status through the shared event buffer.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio/wav"
	"github.com/sinshu/go-meltysynth/meltysynth"
	"github.com/zurustar/brsrt/pkg/native"
	"github.com/zurustar/brsrt/pkg/volume"
)

// SampleRate is the rate of every decoded clip.
const SampleRate = 44100

// bytesPerFrame is 16-bit little-endian stereo.
const bytesPerFrame = 4

var (
	// ErrUnsupportedFormat is returned for files that are neither WAV nor MIDI.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrNoSoundFont is returned when a MIDI file is played without a SoundFont.
	ErrNoSoundFont = errors.New("SoundFont file is required for MIDI playback")

	// ErrInvalidWAV is returned when a WAV file cannot be decoded.
	ErrInvalidWAV = errors.New("invalid WAV file format")

	// ErrInvalidMIDI is returned when a MIDI file cannot be parsed.
	ErrInvalidMIDI = errors.New("invalid MIDI file format")
)

// Clip is a decoded sound: 16-bit stereo PCM at SampleRate.
type Clip struct {
	Name string
	PCM  []byte
}

// Duration is the playing time of the clip.
func (c *Clip) Duration() time.Duration {
	frames := len(c.PCM) / bytesPerFrame
	return time.Duration(frames) * time.Second / SampleRate
}

// Loader turns sound names into clips. Decoded clips are cached by name.
type Loader struct {
	resolver  *volume.Resolver
	soundFont *meltysynth.SoundFont

	mu    sync.Mutex
	cache map[string]*Clip
}

// NewLoader creates a loader. resolver may be nil when only system sounds are
// played; soundFont may be nil, in which case MIDI files fail to load.
func NewLoader(resolver *volume.Resolver, soundFont *meltysynth.SoundFont) *Loader {
	return &Loader{
		resolver:  resolver,
		soundFont: soundFont,
		cache:     make(map[string]*Clip),
	}
}

// LoadSoundFont parses SoundFont data.
func LoadSoundFont(data []byte) (*meltysynth.SoundFont, error) {
	sf, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SoundFont: %w", err)
	}
	return sf, nil
}

// Load returns the clip for name: a synthesized tone for system sounds,
// otherwise the decoded file the resolver finds.
func (l *Loader) Load(name string) (*Clip, error) {
	key := strings.ToLower(name)

	l.mu.Lock()
	defer l.mu.Unlock()
	if clip, ok := l.cache[key]; ok {
		return clip, nil
	}

	clip, err := l.load(name)
	if err != nil {
		return nil, err
	}
	l.cache[key] = clip
	return clip, nil
}

func (l *Loader) load(name string) (*Clip, error) {
	if native.IsSystemSound(name) {
		return SystemTone(name), nil
	}
	if l.resolver == nil {
		return nil, fmt.Errorf("%w: %s", volume.ErrUnknownVolume, name)
	}
	data, err := l.resolver.ReadFile(name)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(path.Ext(name)) {
	case ".wav":
		pcm, err := DecodeWAV(data)
		if err != nil {
			return nil, err
		}
		return &Clip{Name: name, PCM: pcm}, nil
	case ".mid", ".midi":
		if l.soundFont == nil {
			return nil, ErrNoSoundFont
		}
		pcm, err := RenderMIDI(l.soundFont, data)
		if err != nil {
			return nil, err
		}
		return &Clip{Name: name, PCM: pcm}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// DecodeWAV decodes PCM WAV data and resamples it to SampleRate.
func DecodeWAV(data []byte) ([]byte, error) {
	stream, err := wav.DecodeWithSampleRate(SampleRate, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	pcm, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	return pcm, nil
}

// midiTail is rendered past the last MIDI event so releases can ring out.
const midiTail = 500 * time.Millisecond

// RenderMIDI synthesizes a Standard MIDI File with soundFont.
func RenderMIDI(soundFont *meltysynth.SoundFont, data []byte) ([]byte, error) {
	midi, err := meltysynth.NewMidiFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMIDI, err)
	}
	synth, err := meltysynth.NewSynthesizer(soundFont, meltysynth.NewSynthesizerSettings(SampleRate))
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}
	sequencer := meltysynth.NewMidiFileSequencer(synth)
	sequencer.Play(midi, false)

	total := int((midi.GetLength() + midiTail).Seconds() * SampleRate)
	left := make([]float32, total)
	right := make([]float32, total)
	sequencer.Render(left, right)
	return interleave(left, right), nil
}

// interleave converts float samples to 16-bit stereo PCM.
func interleave(left, right []float32) []byte {
	out := make([]byte, len(left)*bytesPerFrame)
	for i := range left {
		l := int16(clamp(left[i], -1, 1) * 32767)
		r := int16(clamp(right[i], -1, 1) * 32767)
		binary.LittleEndian.PutUint16(out[i*4:], uint16(l))
		binary.LittleEndian.PutUint16(out[i*4+2:], uint16(r))
	}
	return out
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type tone struct {
	freqs    []float64 // played one after another
	duration time.Duration
}

var systemTones = map[string]tone{
	"select":    {freqs: []float64{880}, duration: 80 * time.Millisecond},
	"navsingle": {freqs: []float64{660}, duration: 50 * time.Millisecond},
	"navmulti":  {freqs: []float64{660, 880}, duration: 100 * time.Millisecond},
	"deadend":   {freqs: []float64{220}, duration: 200 * time.Millisecond},
}

// SystemTone synthesizes the reserved sound name. Unknown names give a short
// click.
func SystemTone(name string) *Clip {
	t, ok := systemTones[strings.ToLower(name)]
	if !ok {
		t = tone{freqs: []float64{1000}, duration: 10 * time.Millisecond}
	}

	frames := int(t.duration.Seconds() * SampleRate)
	segment := frames / len(t.freqs)
	samples := make([]float32, frames)
	for i := range samples {
		freq := t.freqs[min(i/segment, len(t.freqs)-1)]
		// linear fade-out avoids a click at the end
		env := 1 - float64(i)/float64(frames)
		samples[i] = float32(0.4 * env * math.Sin(2*math.Pi*freq*float64(i)/SampleRate))
	}
	return &Clip{Name: name, PCM: interleave(samples, samples)}
}
