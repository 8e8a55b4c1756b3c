package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the settings parsed from the command line and environment.
type Config struct {
	AppDir      string        // application directory, mounted as pkg:
	ProgramFile string        // program file inside AppDir (when a .yaml file was given)
	ConfigPath  string        // explicit configuration file
	Entry       string        // entry function name
	Timeout     time.Duration // 0 means unlimited
	LogLevel    string        // debug, info, warn, error; empty when not given
	Headless    bool          // silent audio backend
	Keys        bool          // read remote keys from the terminal
	ShowHelp    bool
}

// boolFlags take no value, so reorderArgs must not consume the next argument.
var boolFlags = map[string]bool{
	"-h": true, "--h": true, "-help": true, "--help": true,
	"-headless": true, "--headless": true,
	"-keys": true, "--keys": true,
}

// ParseArgs parses args, falling back to HEADLESS, TIMEOUT, LOG_LEVEL and
// BRSRT_CONFIG for values the command line leaves unset.
func ParseArgs(args []string) (*Config, error) {
	reorderedArgs := reorderArgs(args)

	fs := flag.NewFlagSet("brsrt", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	config := &Config{}

	var timeoutSec int
	fs.IntVar(&timeoutSec, "timeout", 0, "timeout in seconds")
	fs.IntVar(&timeoutSec, "t", 0, "timeout in seconds (shorthand)")
	fs.StringVar(&config.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&config.LogLevel, "l", "", "log level (shorthand)")
	fs.StringVar(&config.ConfigPath, "config", "", "configuration file")
	fs.StringVar(&config.ConfigPath, "c", "", "configuration file (shorthand)")
	fs.StringVar(&config.Entry, "entry", "", "entry function")
	fs.BoolVar(&config.Headless, "headless", false, "headless mode")
	fs.BoolVar(&config.Keys, "keys", false, "read keys from the terminal")
	fs.BoolVar(&config.ShowHelp, "help", false, "show help")
	fs.BoolVar(&config.ShowHelp, "h", false, "show help (shorthand)")

	if err := fs.Parse(reorderedArgs); err != nil {
		return nil, err
	}

	// command line flags take precedence over the environment
	if !config.Headless {
		if headlessEnv := os.Getenv("HEADLESS"); headlessEnv != "" {
			config.Headless = headlessEnv == "1" || strings.ToLower(headlessEnv) == "true"
		}
	}

	if timeoutSec == 0 {
		if timeoutEnv := os.Getenv("TIMEOUT"); timeoutEnv != "" {
			if t, err := strconv.Atoi(timeoutEnv); err == nil && t > 0 {
				timeoutSec = t
			}
		}
	}

	if config.LogLevel == "" {
		config.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	}

	if config.ConfigPath == "" {
		config.ConfigPath = os.Getenv("BRSRT_CONFIG")
	}

	if timeoutSec < 0 {
		return nil, fmt.Errorf("timeout must be non-negative, got %d", timeoutSec)
	}
	config.Timeout = time.Duration(timeoutSec) * time.Second

	config.LogLevel = strings.ToLower(config.LogLevel)
	if err := ValidateLogLevel(config.LogLevel); err != nil {
		return nil, err
	}

	if fs.NArg() > 1 {
		return nil, fmt.Errorf("too many arguments: %s", strings.Join(fs.Args(), " "))
	}
	if fs.NArg() == 1 {
		path := fs.Arg(0)

		// a program file is split into its directory and file name
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			config.AppDir = filepath.Dir(path)
			config.ProgramFile = filepath.Base(path)
		} else {
			config.AppDir = path
		}
	}

	return config, nil
}

// ValidateLogLevel accepts debug, info, warn, error and the empty string.
func ValidateLogLevel(level string) error {
	switch level {
	case "", "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", level)
}

// reorderArgs moves flags before positional arguments so they may appear in
// any order.
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if len(arg) > 0 && arg[0] == '-' {
			flags = append(flags, arg)

			// -t 5: the next argument is the value
			if strings.Contains(arg, "=") || boolFlags[arg] {
				continue
			}
			if i+1 < len(args) && len(args[i+1]) > 0 && args[i+1][0] != '-' {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, arg)
		}
	}

	return append(flags, positional...)
}

// PrintHelp writes the usage message to w.
func PrintHelp(w io.Writer) {
	fmt.Fprintf(w, `brsrt - script runtime with a native event bridge

Usage:
  brsrt [options] [app-path]

Arguments:
  app-path    application directory, or a program file (.yaml) inside it.
              The directory is mounted as pkg: and searched for brsrt.toml.
              When a directory is given the program defaults to main.yaml.
              Without app-path the built-in demo runs.

Options:
  -c, --config <file>         configuration file (.toml or .yaml)
  -t, --timeout <seconds>     stop after the given number of seconds (default: unlimited)
  -l, --log-level <level>     log level: debug, info, warn, error (default: info)
  --entry <name>              entry function (default: main, then RunUserInterface)
  --headless                  play no sound; voices finish after their duration
  --keys                      read remote keys from the terminal
  -h, --help                  show this help

Keys (with --keys):
  arrows / hjkl   up, down, left, right
  enter           OK
  esc, backspace  back
  space, p        play
  r               replay
  , .             rewind, fast forward
  i, *            info
  Ctrl-C          quit

Environment Variables:
  HEADLESS=1                  enable headless mode
  TIMEOUT=<seconds>           timeout in seconds
  LOG_LEVEL=<level>           log level
  BRSRT_CONFIG=<file>         configuration file

Examples:
  brsrt ./myapp                   run ./myapp/main.yaml
  brsrt ./myapp/menu.yaml --keys  run a program with keyboard input
  brsrt --timeout 10              stop the demo after 10 seconds
  HEADLESS=1 brsrt ./myapp        headless mode from the environment
`)
}
