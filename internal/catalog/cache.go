package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

type cacheFile struct {
	Version   string     `json:"version"`
	Champions []Champion `json:"champions"`
	Items     []Item     `json:"items"`
}

// Save writes the catalog to path so offline runs can reuse it
func (idx *Index) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create catalog cache dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(cacheFile{
		Version:   idx.version,
		Champions: idx.Champions(),
		Items:     idx.Items(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write catalog cache: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadFile reads a catalog written by Save
func LoadFile(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog cache: %w", err)
	}

	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to decode catalog cache: %w", err)
	}
	return New(cf.Version, cf.Champions, cf.Items), nil
}
