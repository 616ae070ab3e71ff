package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/politpatrick/icf-api/internal/claml"
	"github.com/politpatrick/icf-api/internal/config"
	"github.com/politpatrick/icf-api/internal/export"
	"github.com/politpatrick/icf-api/internal/store"
)

const sampleDoc = `<ClaML>
  <Class code="b" kind="component">
    <Rubric kind="preferred"><Label xml:lang="de">Körperfunktionen</Label></Rubric>
    <SubClass code="b1"/>
    <SubClass code="b2"/>
  </Class>
  <Class code="b1" kind="block">
    <Rubric kind="definition"><Label xml:lang="de">Mentale Funktionen</Label></Rubric>
    <SubClass code="b110"/>
  </Class>
  <Class code="b2" kind="block"/>
  <Class code="b110" kind="category">
    <Rubric kind="definition"><Label xml:lang="de">Bewusstseinsfunktionen und Mobilität</Label></Rubric>
  </Class>
</ClaML>`

func testServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	doc, err := claml.Parse(strings.NewReader(sampleDoc))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	dest := t.TempDir()
	if _, _, err := export.New(doc, "de", nil).Run(dest); err != nil {
		t.Fatalf("export fixture: %v", err)
	}
	return NewServer(store.NewDir(dest), nil, nil, cfg)
}

func doRequest(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	rr := doRequest(t, testServer(t, config.Config{}), http.MethodGet, "/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestGetCode(t *testing.T) {
	s := testServer(t, config.Config{})

	rr := doRequest(t, s, http.MethodGet, "/api/codes/b1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body)
	}
	var rec map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if rec["code"] != "b1" {
		t.Errorf("expected code b1, got %v", rec["code"])
	}

	rr = doRequest(t, s, http.MethodGet, "/api/codes/zz9")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown code, got %d", rr.Code)
	}
}

func TestGetIndex(t *testing.T) {
	rr := doRequest(t, testServer(t, config.Config{}), http.MethodGet, "/api/index")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var index map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &index); err != nil {
		t.Fatalf("decode index: %v", err)
	}
	if index["b110"] != "b/b1/b110/b110.json" {
		t.Errorf("unexpected index entry for b110: %q", index["b110"])
	}
}

func TestChildrenEndpoint(t *testing.T) {
	s := testServer(t, config.Config{})

	rr := doRequest(t, s, http.MethodGet, "/api/codes/b/children")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body)
	}
	var resp struct {
		Depth    int      `json:"depth"`
		Children []string `json:"children"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Depth != 1 || len(resp.Children) != 2 {
		t.Errorf("expected direct children [b1 b2], got %+v", resp)
	}

	rr = doRequest(t, s, http.MethodGet, "/api/codes/b/children?depth=2")
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Children) != 3 {
		t.Errorf("expected b1, b2 and b110 at depth 2, got %v", resp.Children)
	}

	rr = doRequest(t, s, http.MethodGet, "/api/codes/b/children?depth=0")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for depth=0, got %d", rr.Code)
	}

	rr = doRequest(t, s, http.MethodGet, "/api/codes/zz9/children")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown code, got %d", rr.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	s := testServer(t, config.Config{})

	rr := doRequest(t, s, http.MethodGet, "/api/search?q=MOBILIT%C3%84T")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body)
	}
	var resp struct {
		Count   int `json:"count"`
		Results []struct {
			Code string `json:"code"`
		} `json:"results"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 || resp.Results[0].Code != "b110" {
		t.Errorf("expected case-insensitive match on b110, got %+v", resp)
	}

	rr = doRequest(t, s, http.MethodGet, "/api/search")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without q, got %d", rr.Code)
	}
}

func TestSearchLimit(t *testing.T) {
	s := testServer(t, config.Config{})

	// "funktionen" hits b, b1 and b110 on the default fields.
	count := func(target string) int {
		t.Helper()
		rr := doRequest(t, s, http.MethodGet, target)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d: %s", target, rr.Code, rr.Body)
		}
		var resp struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		return resp.Count
	}

	if n := count("/api/search?q=funktionen&limit=2"); n != 2 {
		t.Errorf("expected limit=2 to truncate to 2 results, got %d", n)
	}
	if n := count("/api/search?q=funktionen&limit=0"); n != 3 {
		t.Errorf("expected limit=0 to lift the cap, got %d results", n)
	}
	if n := count("/api/search?q=funktionen"); n != 3 {
		t.Errorf("expected all matches under the default limit, got %d", n)
	}
}

func TestStatsEndpoint(t *testing.T) {
	rr := doRequest(t, testServer(t, config.Config{}), http.MethodGet, "/api/stats")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var stats struct {
		TotalClasses int `json:"total_classes"`
		MaxDepth     int `json:"max_depth"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalClasses != 4 || stats.MaxDepth != 3 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestFetchStatsUnavailableForLocalSource(t *testing.T) {
	rr := doRequest(t, testServer(t, config.Config{}), http.MethodGet, "/api/stats/fetch")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for disk-backed server, got %d", rr.Code)
	}
}

func TestBrowse(t *testing.T) {
	rr := doRequest(t, testServer(t, config.Config{}), http.MethodGet, "/browse/b")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "<h1>") || !strings.Contains(body, "Körperfunktionen") {
		t.Errorf("expected rendered HTML with the preferred label, got %s", body)
	}
	if !strings.Contains(body, `/browse/b1`) {
		t.Errorf("expected child links, got %s", body)
	}
}

func TestAuth(t *testing.T) {
	s := testServer(t, config.Config{APIKey: "sekrit"})

	rr := doRequest(t, s, http.MethodGet, "/api/codes/b")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/codes/b", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/codes/b", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", rec.Code)
	}

	// Health stays public.
	if rr := doRequest(t, s, http.MethodGet, "/health"); rr.Code != http.StatusOK {
		t.Errorf("expected public health endpoint, got %d", rr.Code)
	}
}
