package native

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/zurustar/brsrt/pkg/bridge"
	"github.com/zurustar/brsrt/pkg/logger"
	"github.com/zurustar/brsrt/pkg/value"
	"github.com/zurustar/brsrt/pkg/volume"
)

// Factory builds native components for CreateObject. It holds the
// collaborators components are wired to: the shared event buffer, the
// outbound command channel and the volume resolver.
type Factory struct {
	buf      *bridge.EventBuffer
	poster   bridge.Poster
	resolver *volume.Resolver
	log      *slog.Logger
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithFactoryLogger sets the logger handed to every component.
func WithFactoryLogger(log *slog.Logger) FactoryOption {
	return func(f *Factory) {
		f.log = log
	}
}

// NewFactory creates a factory. resolver may be nil, in which case only
// system sounds are valid audio resources.
func NewFactory(buf *bridge.EventBuffer, poster bridge.Poster, resolver *volume.Resolver, opts ...FactoryOption) *Factory {
	f := &Factory{
		buf:      buf,
		poster:   poster,
		resolver: resolver,
		log:      logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type constructor struct {
	typeName  string
	signature value.Signature
	build     func(f *Factory, args []value.Value) value.Value
}

var constructors = map[string]constructor{}

func register(c constructor) {
	constructors[value.Normalize(c.typeName)] = c
}

func init() {
	register(constructor{
		typeName:  "roMessagePort",
		signature: value.MustSignature(value.KindObject),
		build: func(f *Factory, _ []value.Value) value.Value {
			return NewMessagePort(f.buf, f.poster, WithPortLogger(f.log))
		},
	})
	register(constructor{
		typeName:  "roAudioResource",
		signature: value.MustSignature(value.KindDynamic, value.Arg("name", value.KindString)),
		build: func(f *Factory, args []value.Value) value.Value {
			return CreateAudioResource(args[0].String(), f.resolver, f.poster, f.log)
		},
	})
	register(constructor{
		typeName:  "roScreen",
		signature: value.MustSignature(value.KindObject),
		build: func(*Factory, []value.Value) value.Value {
			return NewScreen()
		},
	})
}

// Types lists the component types the factory can build.
func Types() []string {
	out := make([]string, 0, len(constructors))
	for _, c := range constructors {
		out = append(out, c.typeName)
	}
	sort.Strings(out)
	return out
}

// Create builds the component typeName. Unknown types yield Invalid with a
// warning, as do resources that fail validation; a bad argument list is an
// error.
func (f *Factory) Create(typeName string, args []value.Value) (value.Value, error) {
	c, ok := constructors[value.Normalize(typeName)]
	if !ok {
		f.log.Warn("CreateObject: unknown component type", "type", typeName)
		return value.Invalid, nil
	}
	bound, err := c.signature.Bind("CreateObject("+c.typeName+")", args)
	if err != nil {
		return nil, fmt.Errorf("cannot create %s: %w", c.typeName, err)
	}
	return c.build(f, bound), nil
}
