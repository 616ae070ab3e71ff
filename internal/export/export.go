// Package export walks a parsed classification document and
// materializes one JSON record per reachable class, mirroring the
// hierarchy as nested directories, plus a global code→path index.
package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/politpatrick/icf-api/internal/claml"
	"github.com/politpatrick/icf-api/internal/record"
)

// IndexFile is the name of the global index artifact.
const IndexFile = "index.json"

// Report summarizes one export run. Warnings are recoverable; the run
// as a whole still succeeded.
type Report struct {
	Written         int
	MissingChildren []string
}

// Exporter writes the record tree for one document and language.
type Exporter struct {
	doc  *claml.Document
	lang string
	log  *slog.Logger
}

func New(doc *claml.Document, lang string, log *slog.Logger) *Exporter {
	if log == nil {
		log = slog.Default()
	}
	return &Exporter{doc: doc, lang: lang, log: log}
}

// Run exports every component subtree under destDir and writes the
// accumulated index as the final artifact. Per-record writes are
// independent: records written for earlier roots survive a failure on a
// later one. The returned index maps each visited code to the
// forward-slash relative path of its record file.
func (e *Exporter) Run(destDir string) (map[string]string, *Report, error) {
	index := make(map[string]string)
	report := &Report{}

	for _, root := range e.doc.Roots() {
		if err := e.walk(root, destDir, destDir, index, report); err != nil {
			return nil, nil, err
		}
	}

	if err := WriteJSON(filepath.Join(destDir, IndexFile), index); err != nil {
		return nil, nil, fmt.Errorf("write index: %w", err)
	}
	return index, report, nil
}

// walk visits one class pre-order. A code already present in the index
// is never re-written or re-descended, so malformed cyclic input
// terminates.
func (e *Exporter) walk(cls *claml.Class, destDir, clsParent string, index map[string]string, report *Report) error {
	if _, seen := index[cls.Code]; seen {
		return nil
	}

	clsDir := filepath.Join(clsParent, cls.Code)
	if err := os.MkdirAll(clsDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", clsDir, err)
	}

	rec, err := record.Normalize(cls, e.lang)
	if err != nil {
		return err
	}

	jsonPath := filepath.Join(clsDir, cls.Code+".json")
	if err := WriteJSON(jsonPath, rec); err != nil {
		return fmt.Errorf("write record %s: %w", cls.Code, err)
	}

	rel, err := filepath.Rel(destDir, jsonPath)
	if err != nil {
		return fmt.Errorf("relativize %s: %w", jsonPath, err)
	}
	index[cls.Code] = filepath.ToSlash(rel)
	report.Written++

	for _, childCode := range rec.Children {
		child := e.doc.Get(childCode)
		if child == nil {
			e.log.Warn("declared child not found in source", "parent", cls.Code, "child", childCode)
			report.MissingChildren = append(report.MissingChildren, childCode)
			continue
		}
		if err := e.walk(child, destDir, clsDir, index, report); err != nil {
			return err
		}
	}
	return nil
}

// WriteJSON writes v as indented UTF-8 JSON with HTML escaping off, so
// non-Latin rubric text stays literal.
func WriteJSON(path string, v any) error {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
