package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/zurustar/brsrt/pkg/ast"
	"github.com/zurustar/brsrt/pkg/audio"
	"github.com/zurustar/brsrt/pkg/bridge"
	"github.com/zurustar/brsrt/pkg/cli"
	"github.com/zurustar/brsrt/pkg/config"
	"github.com/zurustar/brsrt/pkg/input"
	"github.com/zurustar/brsrt/pkg/logger"
	"github.com/zurustar/brsrt/pkg/native"
	"github.com/zurustar/brsrt/pkg/program"
	"github.com/zurustar/brsrt/pkg/vm"
	"github.com/zurustar/brsrt/pkg/volume"
)

// DefaultProgram is the program file run when only a directory is given.
const DefaultProgram = "main.yaml"

// Application wires the interpreter to its producers and runs one program.
type Application struct {
	config *cli.Config
	file   *config.Config
	log    *slog.Logger

	embedFS fs.FS
	stdin   io.Reader
	stdout  io.Writer
	backend audio.Backend
}

// Option configures an Application.
type Option func(*Application)

// WithStdio replaces the process stdin and stdout.
func WithStdio(stdin io.Reader, stdout io.Writer) Option {
	return func(app *Application) {
		app.stdin = stdin
		app.stdout = stdout
	}
}

// WithBackend forces an audio backend regardless of headless mode.
func WithBackend(b audio.Backend) Option {
	return func(app *Application) {
		app.backend = b
	}
}

// New creates an Application. embedFS holds the built-in application run
// when no app path is given; it may be nil.
func New(embedFS fs.FS, opts ...Option) *Application {
	app := &Application{
		embedFS: embedFS,
		stdin:   os.Stdin,
		stdout:  os.Stdout,
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// Run runs the application described by args.
func (app *Application) Run(args []string) error {
	// 1. command line
	if err := app.parseArgs(args); err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}

	if app.config.ShowHelp {
		cli.PrintHelp(app.stdout)
		return nil
	}

	// 2. configuration file
	if err := app.loadConfig(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 3. logger
	if err := app.initLogger(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.log.Info("Application started")

	// 4. volumes
	resolver, cleanup, err := app.mountVolumes()
	if err != nil {
		return fmt.Errorf("failed to mount volumes: %w", err)
	}
	defer cleanup()

	// 5. program
	prog, err := app.loadProgram(resolver)
	if err != nil {
		return fmt.Errorf("failed to load program: %w", err)
	}

	app.log.Info("Program loaded", "functions", len(prog.Functions))
	app.log.Debug("Program tree", "program", prog.String())

	// 6. run
	if err := app.runProgram(prog, resolver); err != nil {
		return err
	}

	app.log.Info("Application terminated normally")
	return nil
}

func (app *Application) parseArgs(args []string) error {
	config, err := cli.ParseArgs(args)
	if err != nil {
		return err
	}
	app.config = config
	return nil
}

// loadConfig reads the explicit configuration file, or brsrt.toml/brsrt.yaml
// in the app directory. Having neither is not an error.
func (app *Application) loadConfig() error {
	path := app.config.ConfigPath
	if path == "" && app.config.AppDir != "" {
		path = config.Find(app.config.AppDir)
	}
	if path == "" {
		app.file = &config.Config{}
		return nil
	}
	file, err := config.Load(path)
	if err != nil {
		return err
	}
	app.file = file
	return nil
}

// initLogger uses the command line level, then the file level, then info.
func (app *Application) initLogger() error {
	level := app.config.LogLevel
	if level == "" {
		level = app.file.LogLevel
	}
	if level == "" {
		level = "info"
	}
	if err := logger.InitLogger(level); err != nil {
		return err
	}
	app.log = logger.GetLogger()
	return nil
}

func (app *Application) headless() bool {
	return app.config.Headless || app.file.Headless
}

func (app *Application) keysEnabled() bool {
	return app.config.Keys || app.file.Keys.Enabled
}

func (app *Application) entry() string {
	if app.config.Entry != "" {
		return app.config.Entry
	}
	return app.file.Entry
}

// mountVolumes mounts pkg: (the app directory or the built-in app), a fresh
// tmp: directory, and the volumes of the configuration file, which win.
func (app *Application) mountVolumes() (*volume.Resolver, func(), error) {
	resolver := volume.NewResolver()

	switch {
	case app.config.AppDir != "":
		info, err := os.Stat(app.config.AppDir)
		if err != nil {
			return nil, nil, err
		}
		if !info.IsDir() {
			return nil, nil, fmt.Errorf("%s is not a directory", app.config.AppDir)
		}
		resolver.Mount("pkg:", volume.NewDirVolume(app.config.AppDir))
	case app.embedFS != nil:
		resolver.Mount("pkg:", volume.NewFSVolume(app.embedFS))
	}

	tmpDir, err := os.MkdirTemp("", "brsrt-tmp-")
	if err != nil {
		return nil, nil, err
	}
	resolver.Mount("tmp:", volume.NewDirVolume(tmpDir))
	cleanup := func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			app.log.Warn("Failed to remove tmp volume", "dir", tmpDir, "error", err)
		}
	}

	for _, scheme := range app.file.Schemes() {
		dir := app.file.Volumes[scheme]
		resolver.Mount(scheme, volume.NewDirVolume(dir))
		app.log.Debug("Volume mounted", "scheme", scheme, "dir", dir)
	}

	app.log.Info("Volumes mounted", "schemes", resolver.Schemes())
	return resolver, cleanup, nil
}

// loadProgram picks, in order: the program file given on the command line,
// the one named in the configuration file, then main.yaml on pkg:.
func (app *Application) loadProgram(resolver *volume.Resolver) (*ast.Program, error) {
	if app.config.ProgramFile != "" {
		return program.Load(filepath.Join(app.config.AppDir, app.config.ProgramFile))
	}
	if app.file.Program != "" {
		return program.Load(app.file.Program)
	}

	uri := "pkg:/" + DefaultProgram
	data, err := resolver.ReadFile(uri)
	if err != nil {
		if errors.Is(err, volume.ErrUnknownVolume) {
			return nil, errors.New("no application given")
		}
		return nil, err
	}
	prog, err := program.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", uri, err)
	}
	return prog, nil
}

// newAudio builds the sound loader and the playback backend.
func (app *Application) newAudio(resolver *volume.Resolver) (*audio.Loader, audio.Backend) {
	loc := findSoundFont(app.file.SoundFont, resolver)
	var loader *audio.Loader
	if loc == nil {
		app.log.Debug("No SoundFont found, MIDI sounds will fail to load")
		loader = audio.NewLoader(resolver, nil)
	} else {
		sf, err := loadSoundFont(loc, resolver)
		if err != nil {
			app.log.Warn("SoundFont unavailable", "error", err)
		} else {
			app.log.Info("SoundFont loaded", "path", loc.Path)
		}
		loader = audio.NewLoader(resolver, sf)
	}

	switch {
	case app.backend != nil:
		return loader, app.backend
	case app.headless():
		app.log.Info("Headless mode: audio is silent")
		return loader, &audio.SilentBackend{}
	default:
		return loader, audio.NewEbitenBackend(nil)
	}
}

// runProgram starts the producers, runs the interpreter and stops everything
// when the program ends, the timeout fires or Ctrl-C is typed. An interpreter
// blocked in a wait cannot be cancelled, so on timeout it is abandoned.
func (app *Application) runProgram(prog *ast.Program, resolver *volume.Resolver) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if app.config.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, app.config.Timeout)
		defer cancelTimeout()
	}

	buf := bridge.NewEventBuffer()
	commands := bridge.NewChannel(bridge.DefaultChannelSize)
	var wg sync.WaitGroup

	loader, backend := app.newAudio(resolver)
	subsystem := audio.NewSubsystem(commands.Messages(), buf, loader, backend,
		audio.WithLogger(app.log),
		audio.WithMaxStreams(app.file.Audio.MaxStreams),
		audio.WithPollInterval(app.file.Audio.PollInterval()),
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := subsystem.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			app.log.Error("Audio subsystem failed", "error", err)
		}
	}()

	interrupted := make(chan struct{})
	if app.keysEnabled() {
		keyboard := input.NewKeyboard(buf, input.Options{
			Input:          app.stdin,
			ManageTerminal: true,
			ReleaseDelay:   app.file.Keys.ReleaseDelay(),
			Logger:         app.log,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := keyboard.Run(ctx)
			switch {
			case errors.Is(err, input.ErrInterrupted):
				close(interrupted)
			case err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded):
				app.log.Error("Keyboard input failed", "error", err)
			}
		}()
		app.log.Info("Keyboard input enabled")
	}

	factory := native.NewFactory(buf, commands, resolver, native.WithFactoryLogger(app.log))
	interp := vm.New(
		vm.WithLogger(app.log),
		vm.WithOutput(app.stdout),
		vm.WithFactory(factory),
	)

	done := make(chan error, 1)
	go func() {
		done <- interp.Run(ctx, prog, app.entry())
	}()

	var runErr error
	select {
	case err := <-done:
		if err != nil {
			runErr = fmt.Errorf("script failed: %w", err)
		}
	case <-ctx.Done():
		app.log.Info("Timeout reached, terminating", "timeout", app.config.Timeout)
	case <-interrupted:
		app.log.Info("Interrupted from keyboard, terminating")
	}

	// close first so the subsystem drains any post still in flight
	commands.Close()
	cancel()
	wg.Wait()
	return runErr
}
