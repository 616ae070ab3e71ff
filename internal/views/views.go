// Package views builds the derived, recomputable views over an
// exported record set: the flattened single-file export, aggregate
// statistics, bounded-depth child enumeration and substring search.
// All operations are read-only and work over any store.Source, disk or
// remote.
package views

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/politpatrick/icf-api/internal/export"
	"github.com/politpatrick/icf-api/internal/record"
	"github.com/politpatrick/icf-api/internal/store"
)

// FlatFile is the name of the flattened single-document artifact.
const FlatFile = "icf_flat.json"

// DefaultSearchFields are the annotation fields consulted when a search
// request names none.
var DefaultSearchFields = []string{"preferred", "definitions", "coding-hints"}

// Builder computes derived views over one read source.
type Builder struct {
	src store.Source
	log *slog.Logger
}

func NewBuilder(src store.Source, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{src: src, log: log}
}

// Flatten reads every indexed record into a single combined mapping.
// Records that cannot be read are skipped with a warning; the view is
// best-effort and reports the skipped codes.
func (b *Builder) Flatten(ctx context.Context) (map[string]*record.Record, []string, error) {
	index, err := b.src.Index(ctx)
	if err != nil {
		return nil, nil, err
	}

	flat := make(map[string]*record.Record, len(index))
	var missing []string
	for _, code := range sortedCodes(index) {
		rec, err := b.src.Get(ctx, code)
		if err != nil {
			b.log.Warn("record unreadable, skipped from flat view", "code", code, "error", err)
			missing = append(missing, code)
			continue
		}
		flat[code] = rec
	}
	return flat, missing, nil
}

// WriteFlat materializes the flattened view as icf_flat.json under
// destDir and returns the count of records it holds.
func (b *Builder) WriteFlat(ctx context.Context, destDir string) (int, error) {
	flat, _, err := b.Flatten(ctx)
	if err != nil {
		return 0, err
	}
	path := filepath.Join(destDir, FlatFile)
	if err := export.WriteJSON(path, flat); err != nil {
		return 0, fmt.Errorf("write flat view: %w", err)
	}
	return len(flat), nil
}

// Stats is the aggregate summary over one export.
type Stats struct {
	TotalClasses int     `json:"total_classes"`
	MaxDepth     int     `json:"max_depth"`
	AvgChildren  float64 `json:"avg_children"`
}

// Stats computes record count, maximum path depth and mean direct-child
// count (rounded to two decimals). Unreadable records are excluded from
// all three with a warning, so the totals are effective, not nominal.
func (b *Builder) Stats(ctx context.Context) (Stats, error) {
	index, err := b.src.Index(ctx)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	var childSum int
	for _, code := range sortedCodes(index) {
		rec, err := b.src.Get(ctx, code)
		if err != nil {
			b.log.Warn("record unreadable, excluded from stats", "code", code, "error", err)
			continue
		}
		stats.TotalClasses++
		childSum += len(rec.Children)
		if depth := strings.Count(index[code], "/"); depth > stats.MaxDepth {
			stats.MaxDepth = depth
		}
	}
	if stats.TotalClasses > 0 {
		mean := float64(childSum) / float64(stats.TotalClasses)
		stats.AvgChildren = math.Round(mean*100) / 100
	}
	return stats, nil
}

// Children returns every descendant code of root reachable within
// depth hierarchy levels, in declared child order (depth 1 = direct
// children only). An unknown root code is store.ErrNotFound; declared
// children absent from the index are skipped with a warning, as are
// subtrees whose record cannot be read.
func (b *Builder) Children(ctx context.Context, root string, depth int) ([]string, error) {
	if depth < 1 {
		return nil, fmt.Errorf("depth must be at least 1, got %d", depth)
	}
	index, err := b.src.Index(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := b.src.Get(ctx, root)
	if err != nil {
		return nil, err
	}

	var collected []string
	var collect func(codes []string, budget int)
	collect = func(codes []string, budget int) {
		if budget <= 0 {
			return
		}
		for _, code := range codes {
			if _, ok := index[code]; !ok {
				b.log.Warn("declared child not in index, skipped", "code", code)
				continue
			}
			collected = append(collected, code)
			if budget == 1 {
				continue
			}
			child, err := b.src.Get(ctx, code)
			if err != nil {
				b.log.Warn("child record unreadable, subtree skipped", "code", code, "error", err)
				continue
			}
			collect(child.Children, budget-1)
		}
	}
	collect(rec.Children, depth)
	return collected, nil
}

// Search tests every indexed record's requested fields for the query,
/// case-insensitively: direct containment for scalar fields,
// containment in any element for list fields. Records are visited in
// sorted code order; a positive limit stops the scan once reached.
func (b *Builder) Search(ctx context.Context, query string, fields []string, limit int) ([]*record.Record, error) {
	index, err := b.src.Index(ctx)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		fields = DefaultSearchFields
	}
	needle := strings.ToLower(query)

	var results []*record.Record
	for _, code := range sortedCodes(index) {
		rec, err := b.src.Get(ctx, code)
		if err != nil {
			b.log.Warn("record unreadable, excluded from search", "code", code, "error", err)
			continue
		}
		if matches(rec, fields, needle) {
			results = append(results, rec)
			if limit > 0 && len(results) >= limit {
				break
			}
		}
	}
	return results, nil
}

func matches(rec *record.Record, fields []string, needle string) bool {
	for _, field := range fields {
		scalar, list, ok := rec.Field(field)
		if !ok {
			continue
		}
		if scalar != "" && strings.Contains(strings.ToLower(scalar), needle) {
			return true
		}
		for _, v := range list {
			if strings.Contains(strings.ToLower(v), needle) {
				return true
			}
		}
	}
	return false
}

// sortedCodes gives map iteration a stable order so view output and
// search limits are deterministic across runs.
func sortedCodes(index map[string]string) []string {
	codes := make([]string, 0, len(index))
	for code := range index {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
