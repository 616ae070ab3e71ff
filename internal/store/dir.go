package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/politpatrick/icf-api/internal/export"
	"github.com/politpatrick/icf-api/internal/record"
)

// Dir reads records from an export root on disk.
type Dir struct {
	root  string
	index map[string]string
}

func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Index loads index.json on first use and caches it. The export is
// read-only after production, so the cache never invalidates.
func (d *Dir) Index(ctx context.Context) (map[string]string, error) {
	if d.index != nil {
		return d.index, nil
	}
	data, err := os.ReadFile(filepath.Join(d.root, export.IndexFile))
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	var index map[string]string
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	d.index = index
	return index, nil
}

// Get reads the record for a code. An unindexed code is ErrNotFound.
// When the indexed path is missing on disk, the tree is scanned for
// <code>.json before the record is reported unreadable; this recovers
// exports whose directory shape drifted from the index.
func (d *Dir) Get(ctx context.Context, code string) (*record.Record, error) {
	index, err := d.Index(ctx)
	if err != nil {
		return nil, err
	}
	rel, ok := index[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
	}

	rec, err := d.GetPath(ctx, rel)
	if err == nil {
		return rec, nil
	}
	if alt := d.findByCode(code); alt != "" {
		return readRecord(alt)
	}
	return nil, err
}

// GetPath reads a record by its index-relative path.
func (d *Dir) GetPath(ctx context.Context, relPath string) (*record.Record, error) {
	return readRecord(filepath.Join(d.root, filepath.FromSlash(relPath)))
}

// findByCode walks the export tree looking for <code>.json.
func (d *Dir) findByCode(code string) string {
	want := code + ".json"
	var found string
	filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return nil
		}
		if entry.Name() == want {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

func readRecord(path string) (*record.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	var rec record.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", path, err)
	}
	return &rec, nil
}
