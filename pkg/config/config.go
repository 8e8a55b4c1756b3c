// Package config handles the brsrt.toml (or brsrt.yaml) runtime configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileNames are the configuration files Find looks for, in order.
var FileNames = []string{"brsrt.toml", "brsrt.yaml", "brsrt.yml"}

// Config is the runtime configuration.
type Config struct {
	// Program is the YAML statement tree to run.
	Program string `toml:"program" yaml:"program"`
	Entry   string `toml:"entry" yaml:"entry"`

	LogLevel  string `toml:"log_level" yaml:"log_level"`
	Headless  bool   `toml:"headless" yaml:"headless"`
	SoundFont string `toml:"sound_font" yaml:"sound_font"`

	// Volumes maps a scheme such as "pkg:" or "ext1:" to a host directory.
	Volumes map[string]string `toml:"volumes" yaml:"volumes"`

	Keys  Keys  `toml:"keys" yaml:"keys"`
	Audio Audio `toml:"audio" yaml:"audio"`

	// Dir is the directory holding the configuration file (set at load time).
	Dir string `toml:"-" yaml:"-"`
}

// Keys configures the keyboard producer.
type Keys struct {
	Enabled        bool `toml:"enabled" yaml:"enabled"`
	ReleaseDelayMs int  `toml:"release_delay_ms" yaml:"release_delay_ms"`
}

// Audio configures the audio subsystem.
type Audio struct {
	MaxStreams     int `toml:"max_streams" yaml:"max_streams"`
	PollIntervalMs int `toml:"poll_interval_ms" yaml:"poll_interval_ms"`
}

// ReleaseDelay returns the key release delay, zero meaning the default.
func (k Keys) ReleaseDelay() time.Duration {
	return time.Duration(k.ReleaseDelayMs) * time.Millisecond
}

// PollInterval returns the voice poll interval, zero meaning the default.
func (a Audio) PollInterval() time.Duration {
	return time.Duration(a.PollIntervalMs) * time.Millisecond
}

// Load parses the configuration file at path. The format follows the
// extension; relative paths inside the file are resolved against its
// directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		c, err = ParseTOML(data)
	case ".yaml", ".yml":
		c, err = ParseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported configuration format: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	c.resolvePaths()
	return c, nil
}

// ParseTOML decodes a TOML document. Unknown keys are rejected.
func ParseTOML(data []byte) (*Config, error) {
	var c Config
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return c.normalize()
}

// ParseYAML decodes a YAML document. Unknown keys are rejected.
func ParseYAML(data []byte) (*Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return c.normalize()
}

// Find returns the first configuration file present in dir, or "".
func Find(dir string) string {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func (c *Config) normalize() (*Config, error) {
	if c.Volumes != nil {
		volumes := make(map[string]string, len(c.Volumes))
		for scheme, dir := range c.Volumes {
			key := strings.ToLower(strings.TrimSuffix(scheme, ":")) + ":"
			if key == ":" {
				return nil, fmt.Errorf("volume with an empty scheme")
			}
			if _, dup := volumes[key]; dup {
				return nil, fmt.Errorf("volume %s declared twice", key)
			}
			volumes[key] = dir
		}
		c.Volumes = volumes
	}
	if c.Keys.ReleaseDelayMs < 0 {
		return nil, fmt.Errorf("keys.release_delay_ms must be non-negative, got %d", c.Keys.ReleaseDelayMs)
	}
	if c.Audio.MaxStreams < 0 {
		return nil, fmt.Errorf("audio.max_streams must be non-negative, got %d", c.Audio.MaxStreams)
	}
	if c.Audio.PollIntervalMs < 0 {
		return nil, fmt.Errorf("audio.poll_interval_ms must be non-negative, got %d", c.Audio.PollIntervalMs)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	return c, nil
}

func (c *Config) resolvePaths() {
	c.Program = c.abs(c.Program)
	c.SoundFont = c.abs(c.SoundFont)
	for scheme, dir := range c.Volumes {
		c.Volumes[scheme] = c.abs(dir)
	}
}

func (c *Config) abs(path string) string {
	if path == "" || filepath.IsAbs(path) || isURI(path) {
		return path
	}
	return filepath.Join(c.Dir, path)
}

// isURI reports whether path names a file on a volume, such as pkg:/gm.sf2.
// One-letter schemes are drive letters.
func isURI(path string) bool {
	return strings.IndexByte(path, ':') > 1
}

// Schemes lists the configured volume schemes, sorted.
func (c *Config) Schemes() []string {
	out := make([]string, 0, len(c.Volumes))
	for s := range c.Volumes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
