package native

import (
	"testing"
	"testing/fstest"

	"github.com/zurustar/brsrt/pkg/bridge"
	"github.com/zurustar/brsrt/pkg/value"
	"github.com/zurustar/brsrt/pkg/volume"
)

func testResolver() *volume.Resolver {
	r := volume.NewResolver()
	r.Mount("pkg:", volume.NewFSVolume(fstest.MapFS{
		"sounds/click.wav": {Data: []byte("RIFF")},
	}))
	return r
}

func TestCreateAudioResource(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		resolver *volume.Resolver
		valid    bool
	}{
		{"system sound without volumes", "select", nil, true},
		{"system sound any case", "NavSingle", volume.NewResolver(), true},
		{"existing file", "pkg:/sounds/CLICK.wav", testResolver(), true},
		{"missing file", "pkg:/sounds/boom.wav", testResolver(), false},
		{"unknown volume", "ext1:/click.wav", testResolver(), false},
		{"no scheme", "click.wav", testResolver(), false},
		{"file without resolver", "pkg:/sounds/click.wav", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CreateAudioResource(tt.uri, tt.resolver, nil, quietLogger())
			if tt.valid {
				if _, ok := got.(*AudioResource); !ok {
					t.Errorf("CreateAudioResource(%q) = %v, want a component", tt.uri, got)
				}
				return
			}
			if !value.IsInvalid(got) {
				t.Errorf("CreateAudioResource(%q) = %v, want invalid sentinel", tt.uri, got)
			}
		})
	}
}

func TestAudioResourcePlayback(t *testing.T) {
	rec := &bridge.Recorder{}
	a := NewAudioResource("deadend", nil, rec, quietLogger())

	if a.IsPlaying() {
		t.Fatal("new resource should not be playing")
	}

	if _, err := a.CallMethod(nil, "trigger", []value.Value{value.Int32(80)}); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	playing, _ := a.CallMethod(nil, "isPlaying", nil)
	if !playing.Equal(value.Bool(true)) {
		t.Error("isPlaying should be true right after trigger")
	}

	if _, err := a.CallMethod(nil, "Trigger", []value.Value{value.Int32(50), value.Int32(2)}); err != nil {
		t.Fatalf("trigger with index: %v", err)
	}

	if _, err := a.CallMethod(nil, "stop", nil); err != nil {
		t.Fatalf("stop: %v", err)
	}
	playing, _ = a.CallMethod(nil, "isPlaying", nil)
	if !playing.Equal(value.Bool(false)) {
		t.Error("isPlaying should be false right after stop")
	}

	want := []string{"trigger,deadend,80,0", "trigger,deadend,50,2", "stop,deadend"}
	got := rec.Messages()
	if len(got) != len(want) {
		t.Fatalf("posted %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d = %q, want %q", i, got[i], want[i])
		}
	}

	streams, _ := a.CallMethod(nil, "maxSimulStreams", nil)
	if !streams.Equal(value.Int32(MaxSimulStreams)) {
		t.Errorf("maxSimulStreams = %v", streams)
	}

	if _, err := a.CallMethod(nil, "trigger", nil); err == nil {
		t.Error("trigger without volume should fail")
	}
}

func TestAudioResourceSetMessagePort(t *testing.T) {
	buf := bridge.NewEventBuffer()
	port := newTestPort(buf, nil)
	a := NewAudioResource("select", nil, nil, quietLogger())

	if _, err := a.CallMethod(&testContext{}, "setMessagePort", []value.Value{port}); err != nil {
		t.Fatalf("setMessagePort: %v", err)
	}
	buf.PublishSound(bridge.SoundFinished, 0)
	ev, ok := port.Get(nil).(*AudioPlayerEvent)
	if !ok {
		t.Fatal("port should watch audio after setMessagePort")
	}
	done, _ := ev.CallMethod(nil, "isRequestSucceeded", nil)
	if !done.Equal(value.Bool(true)) {
		t.Error("finished flag should read as request succeeded")
	}
}

func TestScreenSetMessagePort(t *testing.T) {
	buf := bridge.NewEventBuffer()
	first := newTestPort(buf, nil)
	second := newTestPort(buf, nil)
	s := NewScreen()

	s.SetMessagePort(first)
	s.SetMessagePort(second)
	buf.PublishKey(3, 0)

	if !value.IsInvalid(first.Get(nil)) {
		t.Error("replaced port should stop watching keys")
	}
	if _, ok := second.Get(nil).(*ControlEvent); !ok {
		t.Error("attached port should watch keys")
	}
	got, _ := s.CallMethod(nil, "getMessagePort", nil)
	if got != value.Value(second) {
		t.Errorf("getMessagePort = %v", got)
	}
}

func TestControlEventMethods(t *testing.T) {
	ev := NewControlEvent(RemoteID, 106, 1)
	tests := []struct {
		method string
		want   value.Value
	}{
		{"getInt", value.Int32(106)},
		{"GETCHAR", value.Int32(106)},
		{"getModifiers", value.Int32(1)},
		{"getRemoteID", value.String("WD:0")},
		{"isPress", value.Bool(false)},
	}
	for _, tt := range tests {
		got, err := ev.CallMethod(nil, tt.method, nil)
		if err != nil {
			t.Fatalf("%s: %v", tt.method, err)
		}
		if !got.Equal(tt.want) {
			t.Errorf("%s = %v, want %v", tt.method, got, tt.want)
		}
	}
}

func TestFactory(t *testing.T) {
	f := NewFactory(bridge.NewEventBuffer(), nil, testResolver(), WithFactoryLogger(quietLogger()))

	port, err := f.Create("ROMESSAGEPORT", nil)
	if err != nil {
		t.Fatalf("Create port: %v", err)
	}
	if !value.Implements(port, "ifMessagePort") {
		t.Errorf("port = %v", port)
	}

	res, err := f.Create("roAudioResource", []value.Value{value.String("pkg:/sounds/click.wav")})
	if err != nil {
		t.Fatalf("Create audio: %v", err)
	}
	if _, ok := res.(*AudioResource); !ok {
		t.Errorf("audio resource = %v", res)
	}

	res, err = f.Create("roAudioResource", []value.Value{value.String("tmp:/nope.wav")})
	if err != nil || !value.IsInvalid(res) {
		t.Errorf("invalid resource = %v, %v", res, err)
	}

	if _, err := f.Create("roAudioResource", nil); err == nil {
		t.Error("missing name should be an error")
	}

	unknown, err := f.Create("roTeleporter", nil)
	if err != nil || !value.IsInvalid(unknown) {
		t.Errorf("unknown type = %v, %v", unknown, err)
	}

	types := Types()
	if len(types) != 3 {
		t.Errorf("Types() = %v", types)
	}
}
