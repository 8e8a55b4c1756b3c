// Package volume resolves script URIs such as "pkg:/sounds/click.wav" to files.
// A URI's scheme selects a volume; the path is looked up inside it without
// regard to letter case, the way the device file system behaves.
package volume

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
)

var (
	// ErrUnknownVolume is returned for a scheme no volume is mounted on.
	ErrUnknownVolume = errors.New("unknown volume")

	// ErrNotFound is returned when the path does not exist in the volume.
	ErrNotFound = errors.New("file not found")
)

// Volume is one mounted file tree.
type Volume interface {
	// Exists reports whether the file exists (case-insensitive).
	Exists(name string) bool
	// ReadFile returns the contents of the file (case-insensitive).
	ReadFile(name string) ([]byte, error)
}

// FSVolume is a Volume over any fs.FS: a host directory, an embed.FS or a
// testing/fstest.MapFS.
type FSVolume struct {
	fsys fs.FS
}

// NewFSVolume mounts fsys.
func NewFSVolume(fsys fs.FS) *FSVolume {
	return &FSVolume{fsys: fsys}
}

// NewDirVolume mounts a host directory.
func NewDirVolume(dir string) *FSVolume {
	return &FSVolume{fsys: os.DirFS(dir)}
}

func (v *FSVolume) Exists(name string) bool {
	_, err := v.find(name)
	return err == nil
}

func (v *FSVolume) ReadFile(name string) ([]byte, error) {
	actual, err := v.find(name)
	if err != nil {
		return nil, err
	}
	return fs.ReadFile(v.fsys, actual)
}

// find resolves name to the real path inside the volume, matching each
// segment case-insensitively when the exact spelling does not exist.
func (v *FSVolume) find(name string) (string, error) {
	clean := cleanPath(name)
	if clean == "." {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if info, err := fs.Stat(v.fsys, clean); err == nil && !info.IsDir() {
		return clean, nil
	}

	dir := "."
	segments := strings.Split(clean, "/")
	for i, seg := range segments {
		entries, err := fs.ReadDir(v.fsys, dir)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		last := i == len(segments)-1
		match := ""
		for _, e := range entries {
			if e.IsDir() == last {
				continue
			}
			if strings.EqualFold(e.Name(), seg) {
				match = e.Name()
				break
			}
		}
		if match == "" {
			return "", fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		dir = path.Join(dir, match)
	}
	return dir, nil
}

// cleanPath turns a URI path ("/a/b.wav", "\a\b.wav") into an fs.FS path.
func cleanPath(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimLeft(name, "/")
	if name == "" {
		return "."
	}
	return path.Clean(name)
}

// Split separates a URI into its lower-cased scheme (with the trailing colon,
// e.g. "pkg:") and its path. ok is false when the URI has no scheme.
func Split(uri string) (scheme, name string, ok bool) {
	i := strings.IndexByte(uri, ':')
	if i <= 0 {
		return "", uri, false
	}
	return strings.ToLower(uri[:i+1]), uri[i+1:], true
}
