package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sha1n/mot-search/internal/dataset"
)

const (
	// ManifestVersion is bumped when the snapshot layout changes.
	ManifestVersion = 1

	// ManifestFilename is the manifest's name inside the data directory.
	ManifestFilename = "manifest.json"
)

// Manifest describes the snapshot in the data directory and the CSV files
// it was built from.
type Manifest struct {
	Version        int              `json:"version"`
	BuiltAt        time.Time        `json:"built_at"`
	MaxRowsPerFile int              `json:"max_rows_per_file"`
	Sources        []dataset.Source `json:"sources"`
	Vehicles       int              `json:"vehicles"`
	Tests          int              `json:"tests"`
}

// LoadManifest reads the manifest at path. A missing file yields nil
// without error.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// Save writes the manifest through a temp file and rename so readers never
// see a partial file.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename manifest file: %w", err)
	}
	return nil
}

// Matches reports whether the snapshot was built from exactly sources with
// the same row cap.
func (m *Manifest) Matches(sources []dataset.Source, maxRowsPerFile int) bool {
	if m == nil || m.Version != ManifestVersion || m.MaxRowsPerFile != maxRowsPerFile {
		return false
	}
	if len(m.Sources) != len(sources) {
		return false
	}
	for i, s := range sources {
		r := m.Sources[i]
		if r.RelPath != s.RelPath || r.Size != s.Size || !r.ModTime.Equal(s.ModTime) {
			return false
		}
	}
	return true
}
