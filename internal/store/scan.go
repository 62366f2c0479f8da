package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"wheel-trader/internal/errors"
	"wheel-trader/internal/models"
)

const (
	scanPrefix = "scan_"
	scanSuffix = ".json"
)

// ScanStore reads scan_*.json documents from a directory.
type ScanStore struct {
	dir string
}

// NewScanStore creates a new scan store rooted at dir.
func NewScanStore(dir string) *ScanStore {
	return &ScanStore{dir: dir}
}

// Dir returns the scan directory.
func (s *ScanStore) Dir() string {
	return s.dir
}

// List returns the scan files in the directory, newest first. File names
// embed a sortable timestamp, so newest is the lexically greatest name.
func (s *ScanStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.NewScanError(s.dir, err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, scanPrefix) || !strings.HasSuffix(name, scanSuffix) {
			continue
		}
		files = append(files, name)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(files)))

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = filepath.Join(s.dir, f)
	}
	return paths, nil
}

// Latest returns the newest scan document.
func (s *ScanStore) Latest(ctx context.Context) (*models.ScanDocument, string, error) {
	paths, err := s.List()
	if err != nil {
		return nil, "", err
	}
	if len(paths) == 0 {
		return nil, "", errors.NewScanError(s.dir, errors.ErrScanNotFound)
	}

	doc, err := s.Load(ctx, paths[0])
	if err != nil {
		return nil, "", err
	}
	return doc, paths[0], nil
}

// Load reads and decodes the scan document at path. Unreadable or malformed
// documents yield a ScanError.
func (s *ScanStore) Load(ctx context.Context, path string) (*models.ScanDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewScanError(path, err)
	}

	var doc models.ScanDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewScanError(path, fmt.Errorf("malformed JSON: %w", err))
	}
	return &doc, nil
}

var _ ScanSource = (*ScanStore)(nil)
