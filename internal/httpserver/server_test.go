package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/errtop/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeReader struct {
	snap  model.Snapshot
	stats model.Stats
	err   error
	lastK int
}

func (f *fakeReader) TopK(k int) (model.Snapshot, error) {
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	if k < len(f.snap) {
		return f.snap[:k], nil
	}
	return f.snap, nil
}

func (f *fakeReader) Stats() (model.Stats, error) { return f.stats, f.err }

func newTestServer(reader *fakeReader) *gin.Engine {
	return NewServer("", reader).routes()
}

func get(t *testing.T, r *gin.Engine, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal %s: %v (body %q)", path, err, w.Body.String())
	}
	return w, body
}

func TestHealthEndpoint(t *testing.T) {
	reader := &fakeReader{stats: model.Stats{Ranker: model.RankerStats{Distinct: 2, Recorded: 4}}}
	w, body := get(t, newTestServer(reader), "/api/health")

	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if body["status"] != "ok" {
		t.Errorf("health status = %v, want ok", body["status"])
	}
	if body["distinct"] != float64(2) || body["recorded"] != float64(4) {
		t.Errorf("health body = %v", body)
	}
}

func TestHealthEndpoint_WrongMethod(t *testing.T) {
	r := newTestServer(&fakeReader{})

	req := httptest.NewRequest(http.MethodPost, "/api/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// Gin returns 404 unless HandleMethodNotAllowed is set.
	if w.Code != http.StatusMethodNotAllowed && w.Code != http.StatusNotFound {
		t.Errorf("health POST status = %d, want 405 or 404", w.Code)
	}
}

func TestTopKEndpoint(t *testing.T) {
	reader := &fakeReader{snap: model.Snapshot{
		{Message: "DB connection failed", Count: 3},
		{Message: "Timeout while reading data", Count: 1},
	}}
	r := newTestServer(reader)

	tests := []struct {
		path        string
		wantCode    int
		wantK       int
		wantEntries int
	}{
		{"/api/topk", http.StatusOK, model.DefaultTopK, 2},
		{"/api/topk?k=1", http.StatusOK, 1, 1},
		{"/api/topk?k=0", http.StatusOK, 0, 0},
		{"/api/topk?k=-1", http.StatusBadRequest, 0, 0},
		{"/api/topk?k=abc", http.StatusBadRequest, 0, 0},
		{fmt.Sprintf("/api/topk?k=%d", MaxTopK+1), http.StatusBadRequest, 0, 0},
	}
	for _, tt := range tests {
		w, body := get(t, r, tt.path)
		if w.Code != tt.wantCode {
			t.Errorf("%s: status = %d, want %d", tt.path, w.Code, tt.wantCode)
			continue
		}
		if tt.wantCode != http.StatusOK {
			if _, ok := body["error"]; !ok {
				t.Errorf("%s: missing error field: %v", tt.path, body)
			}
			continue
		}
		if body["k"] != float64(tt.wantK) {
			t.Errorf("%s: k = %v, want %d", tt.path, body["k"], tt.wantK)
		}
		entries, ok := body["entries"].([]any)
		if !ok || len(entries) != tt.wantEntries {
			t.Errorf("%s: entries = %v, want %d", tt.path, body["entries"], tt.wantEntries)
		}
	}

	_, body := get(t, r, "/api/topk?k=1")
	first := body["entries"].([]any)[0].(map[string]any)
	if first["message"] != "DB connection failed" || first["count"] != float64(3) {
		t.Errorf("first entry = %v", first)
	}
}

func TestStatsEndpoint(t *testing.T) {
	reader := &fakeReader{stats: model.Stats{
		Ranker: model.RankerStats{Distinct: 5, Strategy: "lowest-count", MaxKeys: 100},
		Ingest: model.IngestStats{Lines: 42, Running: true},
	}}
	w, body := get(t, newTestServer(reader), "/api/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d", w.Code)
	}
	ranker := body["ranker"].(map[string]any)
	ingest := body["ingest"].(map[string]any)
	if ranker["strategy"] != "lowest-count" || ingest["lines"] != float64(42) || ingest["running"] != true {
		t.Errorf("stats body = %v", body)
	}
}

func TestEndpoints_ReaderError(t *testing.T) {
	r := newTestServer(&fakeReader{err: errors.New("boom")})
	for _, path := range []string{"/api/health", "/api/topk", "/api/stats"} {
		w, _ := get(t, r, path)
		if w.Code != http.StatusInternalServerError {
			t.Errorf("%s: status = %d, want 500", path, w.Code)
		}
	}
}
