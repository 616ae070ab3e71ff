package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/politpatrick/icf-api/internal/record"
	"github.com/politpatrick/icf-api/internal/store"
	"github.com/yuin/goldmark"
)

// handleBrowse renders a record as an HTML page for quick inspection.
func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	rec, err := s.src.Get(r.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "unknown code: "+code, http.StatusNotFound)
			return
		}
		http.Error(w, "failed to read record: "+err.Error(), http.StatusInternalServerError)
		return
	}

	var html bytes.Buffer
	if err := goldmark.Convert([]byte(recordMarkdown(rec)), &html); err != nil {
		http.Error(w, "failed to render record: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>%s</title></head>\n<body>\n", rec.Code)
	w.Write(html.Bytes())
	w.Write([]byte("</body>\n</html>\n"))
}

// recordMarkdown lays a record out as Markdown: heading, metadata,
// one section per populated annotation field, child links last.
func recordMarkdown(rec *record.Record) string {
	var b strings.Builder

	if rec.Preferred != "" {
		fmt.Fprintf(&b, "# %s — %s\n\n", rec.Code, rec.Preferred)
	} else {
		fmt.Fprintf(&b, "# %s\n\n", rec.Code)
	}
	if rec.Kind != "" {
		fmt.Fprintf(&b, "**Kind:** %s\n\n", rec.Kind)
	}
	if rec.Missing {
		b.WriteString("*This record is a placeholder: the entry could not be retrieved.*\n\n")
	}

	sections := []struct {
		title string
		items []string
	}{
		{"Preferred labels", rec.PreferredFull},
		{"Definitions", rec.Definitions},
		{"Coding hints", rec.CodingHints},
		{"Inclusions", rec.Inclusions},
		{"Exclusions", rec.Exclusions},
		{"Notes", rec.Texts},
	}
	for _, sec := range sections {
		if len(sec.items) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", sec.title)
		for _, item := range sec.items {
			fmt.Fprintf(&b, "- %s\n", item)
		}
		b.WriteString("\n")
	}

	if len(rec.Children) > 0 {
		b.WriteString("## Children\n\n")
		for _, child := range rec.Children {
			fmt.Fprintf(&b, "- [%s](/browse/%s)\n", child, child)
		}
		b.WriteString("\n")
	}

	return b.String()
}
