package visual

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// BaselineStore manages reference images keyed by comparison name. Baselines
// are create-only from the pipeline's perspective: once written, a baseline
// is ground truth until an operator resets it. Concurrent workers create
// distinct names, so atomic file creation is the only coordination needed.
type BaselineStore struct {
	dir string
}

// NewBaselineStore creates a store rooted at dir.
func NewBaselineStore(dir string) *BaselineStore {
	return &BaselineStore{dir: dir}
}

// Path returns the baseline file path for name.
func (s *BaselineStore) Path(name string) string {
	return filepath.Join(s.dir, name+".png")
}

// Load returns the baseline image for name, or ok=false when none exists.
func (s *BaselineStore) Load(name string) (image.Image, bool, error) {
	f, err := os.Open(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("open baseline %s: %w", name, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, false, fmt.Errorf("decode baseline %s: %w", name, err)
	}
	return img, true, nil
}

// Create writes a new baseline. It never overwrites: creating an existing
// name is an error, since silent baseline replacement would invalidate every
// comparison made against it.
func (s *BaselineStore) Create(name string, img image.Image) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create baseline dir: %w", err)
	}

	f, err := os.OpenFile(s.Path(name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("baseline %s already exists", name)
		}
		return fmt.Errorf("create baseline %s: %w", name, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode baseline %s: %w", name, err)
	}
	return nil
}

// Reset removes the baseline for name so the next comparison recreates it.
// Operator action only.
func (s *BaselineStore) Reset(name string) (bool, error) {
	err := os.Remove(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reset baseline %s: %w", name, err)
	}
	return true, nil
}

// ResetAll removes every baseline, returning how many were deleted.
func (s *BaselineStore) ResetAll() (int, error) {
	names, err := s.List()
	if err != nil {
		return 0, err
	}
	for _, name := range names {
		if _, err := s.Reset(name); err != nil {
			return 0, err
		}
	}
	return len(names), nil
}

// List returns the names of all stored baselines, sorted.
func (s *BaselineStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list baselines: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".png") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".png"))
	}
	sort.Strings(names)
	return names, nil
}
