package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/rfdstore/internal/metrics"
	"github.com/hitoshi/rfdstore/internal/middleware"
	"github.com/hitoshi/rfdstore/internal/model"
)

// mockPinger はDB疎通確認のモック。
type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(_ context.Context) error {
	return m.err
}

func newTestRouterDeps(t *testing.T) (*RouterDeps, *mockPinger) {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	pinger := &mockPinger{}

	repo := &mockRFDRepository{
		ListFn: func(_ context.Context, _ model.RFDFilter, _, _ int) ([]*model.RFD, error) {
			return []*model.RFD{sampleRFD(1)}, nil
		},
		GetByNumberFn: func(_ context.Context, number int) (*model.RFD, error) {
			return sampleRFD(number), nil
		},
	}

	return &RouterDeps{
		Logger:            slog.New(slog.NewJSONHandler(io.Discard, nil)),
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		Collector:         collector,
		RFDRepo:           repo,
		SyncService:       &mockSyncService{},
		Pinger:            pinger,
		Gatherer:          reg,
	}, pinger
}

// ヘルスチェックがDB疎通に応じて200/503を返すことを検証
func TestRouter_Health(t *testing.T) {
	deps, pinger := newTestRouterDeps(t)
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	pinger.err = errors.New("connection refused")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

// /metricsでPrometheusメトリクスが公開されることを検証
func TestRouter_Metrics(t *testing.T) {
	deps, _ := newTestRouterDeps(t)
	router := NewRouter(deps)

	// APIを1回呼んでステータスメトリクスを記録させる
	apiReq := httptest.NewRequest(http.MethodGet, "/api/rfds", nil)
	apiReq.RemoteAddr = "203.0.113.1:50000"
	router.ServeHTTP(httptest.NewRecorder(), apiReq)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "rfdstore_http_status_total") {
		t.Error("rfdstore_http_status_totalメトリクスがありません")
	}
}

// APIルートの疎通とレスポンスヘッダーを検証
func TestRouter_APIRoutes(t *testing.T) {
	deps, _ := newTestRouterDeps(t)
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/rfds/42", nil)
	req.RemoteAddr = "203.0.113.1:50000"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d\nbody: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-IDヘッダーがありません")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("セキュリティヘッダーがありません")
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Error("CORSヘッダーがありません")
	}
}

// 未定義ルートで404が返ることを検証
func TestRouter_UnknownRoute(t *testing.T) {
	deps, _ := newTestRouterDeps(t)
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	req.RemoteAddr = "203.0.113.1:50000"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
