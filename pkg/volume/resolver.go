package volume

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Resolver maps schemes to mounted volumes. It is safe for concurrent use: the
// interpreter validates paths while the audio subsystem reads files.
type Resolver struct {
	mu      sync.RWMutex
	volumes map[string]Volume
}

// NewResolver returns a resolver with no volumes mounted.
func NewResolver() *Resolver {
	return &Resolver{volumes: make(map[string]Volume)}
}

// Mount attaches v under scheme. "pkg", "pkg:" and "PKG:" name the same volume.
func (r *Resolver) Mount(scheme string, v Volume) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.volumes[normalizeScheme(scheme)] = v
}

// Get returns the volume mounted under scheme.
func (r *Resolver) Get(scheme string) (Volume, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.volumes[normalizeScheme(scheme)]
	return v, ok
}

// Schemes lists the mounted schemes, sorted.
func (r *Resolver) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.volumes))
	for s := range r.volumes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the volume and in-volume path of uri.
func (r *Resolver) Resolve(uri string) (Volume, string, error) {
	scheme, name, ok := Split(uri)
	if !ok {
		return nil, "", fmt.Errorf("%w: %q has no scheme", ErrUnknownVolume, uri)
	}
	v, found := r.Get(scheme)
	if !found {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownVolume, scheme)
	}
	return v, name, nil
}

// Exists checks that uri names an existing file on a mounted volume.
func (r *Resolver) Exists(uri string) error {
	v, name, err := r.Resolve(uri)
	if err != nil {
		return err
	}
	if !v.Exists(name) {
		return fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	return nil
}

// ReadFile reads the file uri names.
func (r *Resolver) ReadFile(uri string) ([]byte, error) {
	v, name, err := r.Resolve(uri)
	if err != nil {
		return nil, err
	}
	data, err := v.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", uri, err)
	}
	return data, nil
}

func normalizeScheme(scheme string) string {
	scheme = strings.ToLower(scheme)
	if !strings.HasSuffix(scheme, ":") {
		scheme += ":"
	}
	return scheme
}
