package native

import (
	"github.com/zurustar/brsrt/pkg/value"
)

// Screen is the input side of roScreen: attaching a port makes it watch key
// events. Drawing belongs to the renderer and is not part of this runtime.
type Screen struct {
	value.Base
	port *MessagePort
}

// NewScreen creates a screen with no port attached.
func NewScreen() *Screen {
	return &Screen{Base: value.NewBase("roScreen", "ifSetMessagePort", "ifGetMessagePort")}
}

// SetMessagePort attaches port and enables its key-watch mode.
// The previously attached port stops watching keys.
func (s *Screen) SetMessagePort(port *MessagePort) {
	if s.port != nil && s.port != port {
		s.port.EnableKeys(false)
	}
	s.port = port
	if port != nil {
		port.EnableKeys(true)
	}
}

// Port returns the attached port, or nil.
func (s *Screen) Port() *MessagePort {
	return s.port
}

var screenMethods = value.NewMethodTable[*Screen]("roScreen",
	&value.Method[*Screen]{
		Name:      "setMessagePort",
		Interface: "ifSetMessagePort",
		Signature: value.MustSignature(value.KindVoid, value.Arg("port", value.KindObject)),
		Impl: func(ctx value.Context, s *Screen, args []value.Value) value.Value {
			s.SetMessagePort(portArg(ctx, args[0]))
			return value.Invalid
		},
	},
	&value.Method[*Screen]{
		Name:      "getMessagePort",
		Interface: "ifGetMessagePort",
		Signature: value.MustSignature(value.KindDynamic),
		Impl: func(_ value.Context, s *Screen, _ []value.Value) value.Value {
			if s.port == nil {
				return value.Invalid
			}
			return s.port
		},
	},
)

func (s *Screen) HasMethod(name string) bool {
	_, ok := screenMethods.Lookup(name)
	return ok
}

func (s *Screen) CallMethod(ctx value.Context, name string, args []value.Value) (value.Value, error) {
	return screenMethods.Call(ctx, s, name, args)
}
