package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/politpatrick/icf-api/internal/store"
)

// handleIndex returns the full code→path index.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	index, err := s.src.Index(r.Context())
	if err != nil {
		jsonError(w, "failed to load index: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, index)
}

// handleCode returns one record by code.
func (s *Server) handleCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	rec, err := s.src.Get(r.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, "unknown code: "+code, http.StatusNotFound)
			return
		}
		jsonError(w, "failed to read record: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, rec)
}

// handleChildren enumerates descendant codes up to ?depth= levels.
func (s *Server) handleChildren(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	depth := 1
	if v := r.URL.Query().Get("depth"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			jsonError(w, "depth must be a positive integer", http.StatusBadRequest)
			return
		}
		depth = n
	}

	children, err := s.builder.Children(r.Context(), code, depth)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, "unknown code: "+code, http.StatusNotFound)
			return
		}
		jsonError(w, "failed to enumerate children: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if children == nil {
		children = []string{}
	}
	writeJSON(w, map[string]any{
		"code":     code,
		"depth":    depth,
		"children": children,
	})
}

// handleSearch runs a substring search over selected record fields.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		jsonError(w, "q query parameter is required", http.StatusBadRequest)
		return
	}

	var fields []string
	if v := r.URL.Query().Get("fields"); v != "" {
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, f)
			}
		}
	}

	// limit=0 disables the cap entirely.
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			limit = n
		}
	}

	results, err := s.builder.Search(r.Context(), query, fields, limit)
	if err != nil {
		jsonError(w, "search failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"query":   query,
		"count":   len(results),
		"results": results,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
