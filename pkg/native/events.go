package native

import (
	"github.com/zurustar/brsrt/pkg/bridge"
	"github.com/zurustar/brsrt/pkg/value"
)

// ControlEvent is the roUniversalControlEvent a port synthesizes from a KEY
// change. Codes below 100 are presses; the matching release is code+100.
type ControlEvent struct {
	value.Base
	remoteID  string
	key       int32
	modifiers int32
}

// NewControlEvent builds a control event.
func NewControlEvent(remoteID string, key, modifiers int32) *ControlEvent {
	return &ControlEvent{
		Base:      value.NewBase("roUniversalControlEvent", "ifUniversalControlEvent"),
		remoteID:  remoteID,
		key:       key,
		modifiers: modifiers,
	}
}

func (e *ControlEvent) Key() int32       { return e.key }
func (e *ControlEvent) Modifiers() int32 { return e.modifiers }
func (e *ControlEvent) RemoteID() string { return e.remoteID }

var controlEventMethods = value.NewMethodTable[*ControlEvent]("roUniversalControlEvent",
	&value.Method[*ControlEvent]{
		Name:      "getInt",
		Interface: "ifUniversalControlEvent",
		Signature: value.MustSignature(value.KindInt32),
		Impl: func(_ value.Context, e *ControlEvent, _ []value.Value) value.Value {
			return value.Int32(e.key)
		},
	},
	&value.Method[*ControlEvent]{
		Name:      "getChar",
		Interface: "ifUniversalControlEvent",
		Signature: value.MustSignature(value.KindInt32),
		Impl: func(_ value.Context, e *ControlEvent, _ []value.Value) value.Value {
			return value.Int32(e.key)
		},
	},
	&value.Method[*ControlEvent]{
		Name:      "getModifiers",
		Interface: "ifUniversalControlEvent",
		Signature: value.MustSignature(value.KindInt32),
		Impl: func(_ value.Context, e *ControlEvent, _ []value.Value) value.Value {
			return value.Int32(e.modifiers)
		},
	},
	&value.Method[*ControlEvent]{
		Name:      "getRemoteID",
		Interface: "ifUniversalControlEvent",
		Signature: value.MustSignature(value.KindString),
		Impl: func(_ value.Context, e *ControlEvent, _ []value.Value) value.Value {
			return value.String(e.remoteID)
		},
	},
	&value.Method[*ControlEvent]{
		Name:      "isPress",
		Interface: "ifUniversalControlEvent",
		Signature: value.MustSignature(value.KindBoolean),
		Impl: func(_ value.Context, e *ControlEvent, _ []value.Value) value.Value {
			return value.Bool(e.key >= 0 && e.key < 100)
		},
	},
)

func (e *ControlEvent) HasMethod(name string) bool {
	_, ok := controlEventMethods.Lookup(name)
	return ok
}

func (e *ControlEvent) CallMethod(ctx value.Context, name string, args []value.Value) (value.Value, error) {
	return controlEventMethods.Call(ctx, e, name, args)
}

// AudioPlayerEvent is the roAudioPlayerEvent a port synthesizes from an SND
// change. Flag values are the bridge.Sound* constants.
type AudioPlayerEvent struct {
	value.Base
	flag  int32
	index int32
}

// NewAudioPlayerEvent builds an audio event.
func NewAudioPlayerEvent(flag, index int32) *AudioPlayerEvent {
	return &AudioPlayerEvent{
		Base:  value.NewBase("roAudioPlayerEvent", "ifAudioPlayerEvent"),
		flag:  flag,
		index: index,
	}
}

func (e *AudioPlayerEvent) Flag() int32  { return e.flag }
func (e *AudioPlayerEvent) Index() int32 { return e.index }

func (e *AudioPlayerEvent) message() string {
	switch e.flag {
	case bridge.SoundStarted:
		return "start of play"
	case bridge.SoundFinished:
		return "end of playlist"
	case bridge.SoundFailed:
		return "playback failed"
	case bridge.SoundStopped:
		return "playback stopped"
	default:
		return ""
	}
}

func audioFlagIs(flag int32) func(value.Context, *AudioPlayerEvent, []value.Value) value.Value {
	return func(_ value.Context, e *AudioPlayerEvent, _ []value.Value) value.Value {
		return value.Bool(e.flag == flag)
	}
}

var audioEventMethods = value.NewMethodTable[*AudioPlayerEvent]("roAudioPlayerEvent",
	&value.Method[*AudioPlayerEvent]{
		Name:      "getIndex",
		Interface: "ifAudioPlayerEvent",
		Signature: value.MustSignature(value.KindInt32),
		Impl: func(_ value.Context, e *AudioPlayerEvent, _ []value.Value) value.Value {
			return value.Int32(e.index)
		},
	},
	&value.Method[*AudioPlayerEvent]{
		Name:      "getMessage",
		Interface: "ifAudioPlayerEvent",
		Signature: value.MustSignature(value.KindString),
		Impl: func(_ value.Context, e *AudioPlayerEvent, _ []value.Value) value.Value {
			return value.String(e.message())
		},
	},
	&value.Method[*AudioPlayerEvent]{
		Name:      "isStatusMessage",
		Interface: "ifAudioPlayerEvent",
		Signature: value.MustSignature(value.KindBoolean),
		Impl:      audioFlagIs(bridge.SoundStarted),
	},
	&value.Method[*AudioPlayerEvent]{
		Name:      "isRequestSucceeded",
		Interface: "ifAudioPlayerEvent",
		Signature: value.MustSignature(value.KindBoolean),
		Impl:      audioFlagIs(bridge.SoundFinished),
	},
	&value.Method[*AudioPlayerEvent]{
		Name:      "isRequestFailed",
		Interface: "ifAudioPlayerEvent",
		Signature: value.MustSignature(value.KindBoolean),
		Impl:      audioFlagIs(bridge.SoundFailed),
	},
	&value.Method[*AudioPlayerEvent]{
		Name:      "isPlaybackStopped",
		Interface: "ifAudioPlayerEvent",
		Signature: value.MustSignature(value.KindBoolean),
		Impl:      audioFlagIs(bridge.SoundStopped),
	},
)

func (e *AudioPlayerEvent) HasMethod(name string) bool {
	_, ok := audioEventMethods.Lookup(name)
	return ok
}

func (e *AudioPlayerEvent) CallMethod(ctx value.Context, name string, args []value.Value) (value.Value, error) {
	return audioEventMethods.Call(ctx, e, name, args)
}
