package index

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Manifest is the persisted index cache: the graph cache key plus every
// file's content fingerprint. It lets a later run skip reconstruction
// when the tree is unchanged.
type Manifest struct {
	Key         string            `toml:"key"`
	GeneratedAt time.Time         `toml:"generated_at"`
	Files       map[string]string `toml:"files"`
}

// NewManifest builds a manifest from an index result and its cache key.
func NewManifest(key string, fingerprints map[string]string) *Manifest {
	files := make(map[string]string, len(fingerprints))
	for p, fp := range fingerprints {
		files[p] = fp
	}
	return &Manifest{
		Key:         key,
		GeneratedAt: time.Now().UTC(),
		Files:       files,
	}
}

// Save writes the manifest as TOML, creating parent directories as needed.
func (m *Manifest) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("index: create manifest dir: %w", err)
	}
	data, err := toml.Marshal(m)
	if err != nil {
		return fmt.Errorf("index: marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("index: write manifest: %w", err)
	}
	return nil
}

// LoadManifest reads a previously saved manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("index: read manifest: %w", err)
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("index: parse manifest: %w", err)
	}
	return &m, nil
}
