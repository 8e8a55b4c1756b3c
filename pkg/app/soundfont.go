package app

import (
	"fmt"
	"os"

	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/zurustar/brsrt/pkg/audio"
	"github.com/zurustar/brsrt/pkg/volume"
)

// SoundFontLocation represents the location of a SoundFont file.
type SoundFontLocation struct {
	// Path is a host path, or a volume URI when OnVolume is set
	Path string
	// OnVolume indicates the file is read through the volume resolver
	OnVolume bool
}

// DefaultSoundFontName is the default SoundFont filename to search for.
const DefaultSoundFontName = "GeneralUser-GS.sf2"

// findSoundFont searches for a SoundFont file in the following order:
// 1. The configured path
// 2. The application volume (pkg:)
// 3. Current directory
//
// Returns nil if none is found.
func findSoundFont(configured string, resolver *volume.Resolver) *SoundFontLocation {
	if configured != "" {
		if _, _, ok := volume.Split(configured); ok {
			return &SoundFontLocation{Path: configured, OnVolume: true}
		}
		return &SoundFontLocation{Path: configured}
	}

	uri := "pkg:/" + DefaultSoundFontName
	if resolver != nil && resolver.Exists(uri) == nil {
		return &SoundFontLocation{Path: uri, OnVolume: true}
	}

	if _, err := os.Stat(DefaultSoundFontName); err == nil {
		return &SoundFontLocation{Path: DefaultSoundFontName}
	}

	return nil
}

// loadSoundFont reads and parses the SoundFont at loc.
func loadSoundFont(loc *SoundFontLocation, resolver *volume.Resolver) (*meltysynth.SoundFont, error) {
	var (
		data []byte
		err  error
	)
	if loc.OnVolume {
		data, err = resolver.ReadFile(loc.Path)
	} else {
		data, err = os.ReadFile(loc.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read SoundFont %s: %w", loc.Path, err)
	}
	sf, err := audio.LoadSoundFont(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SoundFont %s: %w", loc.Path, err)
	}
	return sf, nil
}
