package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/safecheck/safecheck/internal/history"
	"github.com/safecheck/safecheck/internal/safecheck"
	"github.com/safecheck/safecheck/internal/scanner"
	"github.com/safecheck/safecheck/internal/scoring"
	"github.com/safecheck/safecheck/internal/target"
	"go.uber.org/zap"
)

type staticPipeline struct{ delta int }

func (p *staticPipeline) Scan(_ context.Context, t target.Target) (*scoring.ScanResult, error) {
	return scoring.NewScanResult(
		target.Normalize(t),
		[]scoring.Reason{scoring.MustReason("TEST_SIGNAL", "test signal", p.delta)},
		map[string]string{},
	)
}

func (p *staticPipeline) Info() scanner.Info {
	return scanner.Info{Name: "static", Version: "test"}
}

func newTestRouter(t *testing.T) (*gin.Engine, *history.MemoryRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := history.NewMemoryRepository()
	pipelines := map[target.Kind]scanner.Scanner{
		target.KindURL:   &staticPipeline{},
		target.KindEmail: &staticPipeline{delta: -60},
	}
	svc := safecheck.New(pipelines, repo, nil, safecheck.Config{}, zap.NewNop())
	return New(svc, repo, zap.NewNop()).Router(Config{}), repo
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleScan(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/scan", `{"input":"https://example.com/"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp safecheck.ScanResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ScanResult == nil || resp.ScanResult.Status != scoring.StatusSafe {
		t.Errorf("response = %+v, want SAFE result", resp)
	}
}

func TestHandleScan_badRequests(t *testing.T) {
	router, _ := newTestRouter(t)

	if w := doJSON(router, http.MethodPost, "/api/v1/scan", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing input: status = %d, want 400", w.Code)
	}
	if w := doJSON(router, http.MethodPost, "/api/v1/scan", `{"input":"not scannable at all"}`); w.Code != http.StatusBadRequest {
		t.Errorf("unclassifiable input: status = %d, want 400", w.Code)
	}
}

func TestHandleGetScan(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/scan", `{"input":"https://example.com/"}`)
	var resp safecheck.ScanResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	w = doJSON(router, http.MethodGet, "/api/v1/scans/"+resp.ScanResult.ScanID, "")
	if w.Code != http.StatusOK {
		t.Errorf("get by id: status = %d", w.Code)
	}

	if w := doJSON(router, http.MethodGet, "/api/v1/scans/does-not-exist", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing id: status = %d, want 404", w.Code)
	}
}

func TestHandleListScans_filters(t *testing.T) {
	router, _ := newTestRouter(t)
	_ = doJSON(router, http.MethodPost, "/api/v1/scan", `{"input":"https://example.com/"}`)
	_ = doJSON(router, http.MethodPost, "/api/v1/scan", `{"input":"user@example.com"}`)

	w := doJSON(router, http.MethodGet, "/api/v1/scans?status=RISK", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list by status: %d", w.Code)
	}
	var body struct {
		Scans []*scoring.ScanResult `json:"scans"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Scans) != 1 || body.Scans[0].Target.Kind != target.KindEmail {
		t.Errorf("RISK filter returned %d scans", len(body.Scans))
	}

	if w := doJSON(router, http.MethodGet, "/api/v1/scans?status=WILD", ""); w.Code != http.StatusBadRequest {
		t.Errorf("unknown status: %d, want 400", w.Code)
	}
}

func TestHandleDeleteScans(t *testing.T) {
	router, repo := newTestRouter(t)
	_ = doJSON(router, http.MethodPost, "/api/v1/scan", `{"input":"https://example.com/"}`)

	w := doJSON(router, http.MethodDelete, "/api/v1/scans", "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete all: %d", w.Code)
	}
	if n, _ := repo.GetScanResultCount(context.Background()); n != 0 {
		t.Errorf("repository holds %d results after delete", n)
	}
}

func TestHandleHealthAndPipelines(t *testing.T) {
	router, _ := newTestRouter(t)

	if w := doJSON(router, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Errorf("healthz: %d", w.Code)
	}
	if w := doJSON(router, http.MethodGet, "/api/v1/pipelines", ""); w.Code != http.StatusOK {
		t.Errorf("pipelines: %d", w.Code)
	}
}
