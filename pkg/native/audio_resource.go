package native

import (
	"log/slog"
	"strings"

	"github.com/zurustar/brsrt/pkg/bridge"
	"github.com/zurustar/brsrt/pkg/logger"
	"github.com/zurustar/brsrt/pkg/value"
	"github.com/zurustar/brsrt/pkg/volume"
)

// MaxSimulStreams is the number of sounds the platform mixes at once.
const MaxSimulStreams = 2

// SystemSounds are the reserved names that need no file.
var SystemSounds = []string{"select", "navsingle", "navmulti", "deadend"}

// IsSystemSound reports whether name is a reserved system sound (any case).
func IsSystemSound(name string) bool {
	for _, s := range SystemSounds {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// AudioResource is a sound effect. Play and stop requests go out as commands;
// the playing flag is this object's own optimistic view and is never corrected
// by feedback. Completion is observed through an audio-watching port.
type AudioResource struct {
	value.Base

	name    string
	valid   bool
	playing bool
	port    *MessagePort

	poster bridge.Poster
	log    *slog.Logger
}

// NewAudioResource validates name and returns the resource even when invalid;
// use Valid or CreateAudioResource to branch on the result.
func NewAudioResource(name string, resolver *volume.Resolver, poster bridge.Poster, log *slog.Logger) *AudioResource {
	if log == nil {
		log = logger.GetLogger()
	}
	a := &AudioResource{
		Base:   value.NewBase("roAudioResource", "ifAudioResource", "ifSetMessagePort"),
		name:   name,
		valid:  true,
		poster: poster,
		log:    log,
	}
	if IsSystemSound(name) {
		return a
	}
	if resolver == nil {
		a.log.Warn("No volumes mounted for audio resource", "name", name)
		a.valid = false
		return a
	}
	if err := resolver.Exists(name); err != nil {
		a.log.Warn("Invalid audio resource", "name", name, "error", err)
		a.valid = false
	}
	return a
}

// CreateAudioResource returns an audio resource, or value.Invalid when the
// name does not resolve. It never fails otherwise.
func CreateAudioResource(name string, resolver *volume.Resolver, poster bridge.Poster, log *slog.Logger) value.Value {
	a := NewAudioResource(name, resolver, poster, log)
	if !a.Valid() {
		return value.Invalid
	}
	return a
}

func (a *AudioResource) Name() string    { return a.name }
func (a *AudioResource) Valid() bool     { return a.valid }
func (a *AudioResource) IsPlaying() bool { return a.playing }

// Trigger asks the audio subsystem to play the sound and marks it playing.
func (a *AudioResource) Trigger(volume, index int32) {
	a.post(bridge.TriggerCommand(a.name, volume, index))
	a.playing = true
}

// Stop asks the audio subsystem to stop the sound and marks it stopped.
func (a *AudioResource) Stop() {
	a.post(bridge.StopCommand(a.name))
	a.playing = false
}

// SetMessagePort makes port watch audio status events.
func (a *AudioResource) SetMessagePort(port *MessagePort) {
	a.port = port
	if port != nil {
		port.EnableAudio(true)
	}
}

func (a *AudioResource) post(msg string) {
	if a.poster == nil {
		a.log.Debug("Audio command dropped, no subsystem attached", "command", msg)
		return
	}
	a.poster.PostMessage(msg)
}

var audioResourceMethods = value.NewMethodTable[*AudioResource]("roAudioResource",
	&value.Method[*AudioResource]{
		Name:      "trigger",
		Interface: "ifAudioResource",
		Signature: value.MustSignature(value.KindVoid,
			value.Arg("volume", value.KindInt32),
			value.OptionalArg("index", value.KindInt32, value.Int32(0)),
		),
		Impl: func(_ value.Context, a *AudioResource, args []value.Value) value.Value {
			volume, _ := value.ToInt32(args[0])
			index, _ := value.ToInt32(args[1])
			a.Trigger(volume, index)
			return value.Invalid
		},
	},
	&value.Method[*AudioResource]{
		Name:      "isPlaying",
		Interface: "ifAudioResource",
		Signature: value.MustSignature(value.KindBoolean),
		Impl: func(_ value.Context, a *AudioResource, _ []value.Value) value.Value {
			return value.Bool(a.playing)
		},
	},
	&value.Method[*AudioResource]{
		Name:      "stop",
		Interface: "ifAudioResource",
		Signature: value.MustSignature(value.KindVoid),
		Impl: func(_ value.Context, a *AudioResource, _ []value.Value) value.Value {
			a.Stop()
			return value.Invalid
		},
	},
	&value.Method[*AudioResource]{
		Name:      "maxSimulStreams",
		Interface: "ifAudioResource",
		Signature: value.MustSignature(value.KindInt32),
		Impl: func(_ value.Context, _ *AudioResource, _ []value.Value) value.Value {
			return value.Int32(MaxSimulStreams)
		},
	},
	&value.Method[*AudioResource]{
		Name:      "setMessagePort",
		Interface: "ifSetMessagePort",
		Signature: value.MustSignature(value.KindVoid, value.Arg("port", value.KindObject)),
		Impl: func(ctx value.Context, a *AudioResource, args []value.Value) value.Value {
			a.SetMessagePort(portArg(ctx, args[0]))
			return value.Invalid
		},
	},
)

func (a *AudioResource) HasMethod(name string) bool {
	_, ok := audioResourceMethods.Lookup(name)
	return ok
}

func (a *AudioResource) CallMethod(ctx value.Context, name string, args []value.Value) (value.Value, error) {
	return audioResourceMethods.Call(ctx, a, name, args)
}

// portArg unwraps a message port argument; anything else is logged and
// treated as no port.
func portArg(ctx value.Context, v value.Value) *MessagePort {
	if port, ok := v.(*MessagePort); ok {
		return port
	}
	if ctx != nil {
		ctx.Logger().Warn("setMessagePort expects an roMessagePort", "got", v.String())
	}
	return nil
}
