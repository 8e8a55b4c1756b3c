package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

// clearEnv isolates a test from the caller's environment.
func clearEnv(t *testing.T) {
	for _, name := range []string{"HEADLESS", "TIMEOUT", "LOG_LEVEL", "BRSRT_CONFIG"} {
		t.Setenv(name, "")
	}
}

func TestParseArgs_ValidArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected Config
	}{
		{
			name:     "defaults",
			args:     []string{},
			expected: Config{},
		},
		{
			name:     "app directory",
			args:     []string{"/path/to/app"},
			expected: Config{AppDir: "/path/to/app"},
		},
		{
			name:     "timeout",
			args:     []string{"--timeout", "10"},
			expected: Config{Timeout: 10 * time.Second},
		},
		{
			name:     "timeout shorthand",
			args:     []string{"-t", "5"},
			expected: Config{Timeout: 5 * time.Second},
		},
		{
			name:     "log level",
			args:     []string{"--log-level", "debug"},
			expected: Config{LogLevel: "debug"},
		},
		{
			name:     "log level shorthand upper case",
			args:     []string{"-l", "ERROR"},
			expected: Config{LogLevel: "error"},
		},
		{
			name:     "config file",
			args:     []string{"-c", "brsrt.toml"},
			expected: Config{ConfigPath: "brsrt.toml"},
		},
		{
			name:     "entry with equals",
			args:     []string{"--entry=RunUserInterface"},
			expected: Config{Entry: "RunUserInterface"},
		},
		{
			name:     "headless and keys",
			args:     []string{"--headless", "--keys"},
			expected: Config{Headless: true, Keys: true},
		},
		{
			name:     "help",
			args:     []string{"--help"},
			expected: Config{ShowHelp: true},
		},
		{
			name:     "help shorthand",
			args:     []string{"-h"},
			expected: Config{ShowHelp: true},
		},
		{
			name: "several options",
			args: []string{"--timeout", "30", "--log-level", "warn", "--headless", "/path/to/app"},
			expected: Config{
				AppDir:   "/path/to/app",
				Timeout:  30 * time.Second,
				LogLevel: "warn",
				Headless: true,
			},
		},
		{
			name: "flags after the positional argument",
			args: []string{"-log-level", "debug", "./samples/menu", "--timeout", "5"},
			expected: Config{
				AppDir:   "./samples/menu",
				Timeout:  5 * time.Second,
				LogLevel: "debug",
			},
		},
		{
			name: "bool flag before the positional argument",
			args: []string{"--keys", "./samples/menu"},
			expected: Config{
				AppDir: "./samples/menu",
				Keys:   true,
			},
		},
		{
			name: "program file",
			args: []string{"/path/to/app/Menu.YAML"},
			expected: Config{
				AppDir:      "/path/to/app",
				ProgramFile: "Menu.YAML",
			},
		},
		{
			name: "program file with options",
			args: []string{"--headless", "samples/player/player.yml", "--timeout", "5"},
			expected: Config{
				AppDir:      "samples/player",
				ProgramFile: "player.yml",
				Timeout:     5 * time.Second,
				Headless:    true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			config, err := ParseArgs(tt.args)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if *config != tt.expected {
				t.Errorf("config = %+v, want %+v", *config, tt.expected)
			}
		})
	}
}

func TestParseArgs_InvalidArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"negative timeout", []string{"--timeout", "-10"}},
		{"invalid log level", []string{"--log-level", "invalid"}},
		{"invalid log level shorthand", []string{"-l", "trace"}},
		{"unknown flag", []string{"--fullscreen"}},
		{"two positional arguments", []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := ParseArgs(tt.args)
			if err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestParseArgs_Environment(t *testing.T) {
	t.Run("fills unset values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("HEADLESS", "true")
		t.Setenv("TIMEOUT", "7")
		t.Setenv("LOG_LEVEL", "WARN")
		t.Setenv("BRSRT_CONFIG", "/etc/brsrt.toml")

		config, err := ParseArgs(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := Config{
			ConfigPath: "/etc/brsrt.toml",
			Timeout:    7 * time.Second,
			LogLevel:   "warn",
			Headless:   true,
		}
		if *config != want {
			t.Errorf("config = %+v, want %+v", *config, want)
		}
	})

	t.Run("flags win", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TIMEOUT", "7")
		t.Setenv("LOG_LEVEL", "warn")
		t.Setenv("BRSRT_CONFIG", "/etc/brsrt.toml")

		config, err := ParseArgs([]string{"-t", "2", "-l", "debug", "-c", "local.yaml"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.Timeout != 2*time.Second || config.LogLevel != "debug" || config.ConfigPath != "local.yaml" {
			t.Errorf("config = %+v", *config)
		}
	})

	t.Run("bad values ignored or rejected", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TIMEOUT", "soon")
		t.Setenv("HEADLESS", "0")
		config, err := ParseArgs(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.Timeout != 0 || config.Headless {
			t.Errorf("config = %+v", *config)
		}

		t.Setenv("LOG_LEVEL", "verbose")
		if _, err := ParseArgs(nil); err == nil {
			t.Error("invalid LOG_LEVEL should be rejected")
		}
	})
}

func TestPrintHelp(t *testing.T) {
	var buf bytes.Buffer
	PrintHelp(&buf)
	out := buf.String()
	for _, want := range []string{"Usage:", "--config", "--keys", "BRSRT_CONFIG"} {
		if !strings.Contains(out, want) {
			t.Errorf("help does not mention %q", want)
		}
	}
}
