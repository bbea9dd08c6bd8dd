package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vulnflow/vulnflow/pkg/learning"
)

func staticCheck(status Status) CheckFunc {
	return func(ctx context.Context) CheckResult {
		return CheckResult{Status: status}
	}
}

func TestHandler_CheckAggregatesWorstStatus(t *testing.T) {
	cases := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"degraded wins over healthy", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins over degraded", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
		{"no checks", nil, StatusHealthy},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler()
			for i, s := range tc.statuses {
				h.Register(string(rune('a'+i)), staticCheck(s))
			}
			resp := h.Check(context.Background())
			if resp.Status != tc.want {
				t.Errorf("status = %q, want %q", resp.Status, tc.want)
			}
			if len(resp.Checks) != len(tc.statuses) {
				t.Errorf("checks = %d, want %d", len(resp.Checks), len(tc.statuses))
			}
		})
	}
}

func TestHandler_Unregister(t *testing.T) {
	h := NewHandler()
	h.Register("gone", staticCheck(StatusUnhealthy))
	h.Unregister("gone")

	if resp := h.Check(context.Background()); resp.Status != StatusHealthy {
		t.Errorf("status = %q after unregister", resp.Status)
	}
}

func TestHandler_CheckRunsConcurrently(t *testing.T) {
	h := NewHandler(WithTimeout(2 * time.Second))
	slow := func(ctx context.Context) CheckResult {
		time.Sleep(50 * time.Millisecond)
		return CheckResult{Status: StatusHealthy}
	}
	for _, name := range []string{"a", "b", "c", "d"} {
		h.RegisterFunc(name, slow)
	}

	start := time.Now()
	h.Check(context.Background())
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("checks appear serialized, took %v", elapsed)
	}
}

func TestLivenessHandler(t *testing.T) {
	h := NewHandler()
	// A failing dependency must not affect liveness.
	h.Register("dep", staticCheck(StatusUnhealthy))

	rec := httptest.NewRecorder()
	h.LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestReadinessHandler(t *testing.T) {
	h := NewHandler()
	h.Register("dep", staticCheck(StatusHealthy))

	rec := httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("ready status = %d", rec.Code)
	}

	h.SetReady(false)
	rec = httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("not-ready status = %d", rec.Code)
	}

	h.SetReady(true)
	h.Register("dep", staticCheck(StatusUnhealthy))
	rec = httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy-dep status = %d", rec.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	h := NewHandler(WithVersion("0.3.0"))
	h.Register("ping", &PingCheck{})
	h.Register("degraded", staticCheck(StatusDegraded))

	rec := httptest.NewRecorder()
	h.HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != StatusDegraded {
		t.Errorf("overall = %q", resp.Status)
	}
	if resp.Version != "0.3.0" {
		t.Errorf("version = %q", resp.Version)
	}
	if _, ok := resp.Checks["ping"]; !ok {
		t.Error("ping check missing from response")
	}
}

func TestRegisterRoutes(t *testing.T) {
	h := NewHandler()
	mux := http.NewServeMux()
	RegisterRoutes(mux, h)

	for _, path := range []string{"/healthz", "/readyz", "/health"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
		}
	}
}

func TestLearningStoreCheck(t *testing.T) {
	check := &LearningStoreCheck{Store: learning.NewMemoryStore()}
	if result := check.Check(context.Background()); result.Status != StatusHealthy {
		t.Errorf("status = %q: %s", result.Status, result.Error)
	}

	empty := &LearningStoreCheck{}
	if result := empty.Check(context.Background()); result.Status != StatusUnknown {
		t.Errorf("nil store status = %q", result.Status)
	}
}

func TestSnapshotDirCheck(t *testing.T) {
	check := &SnapshotDirCheck{Path: t.TempDir(), MinFreeBytes: 1}
	result := check.Check(context.Background())
	if result.Status != StatusHealthy {
		t.Errorf("status = %q: %s", result.Status, result.Error)
	}
	if result.Metadata["free_bytes"] == nil {
		t.Error("free_bytes metadata missing")
	}

	// An impossible free-percent threshold must fail.
	strict := &SnapshotDirCheck{Path: t.TempDir(), MinFreePercent: 101}
	if result := strict.Check(context.Background()); result.Status != StatusUnhealthy {
		t.Errorf("status = %q, want unhealthy", result.Status)
	}
}

func TestMemoryCheck(t *testing.T) {
	if result := (&MemoryCheck{}).Check(context.Background()); result.Status != StatusHealthy {
		t.Errorf("status = %q", result.Status)
	}

	// One byte of allowed heap is always exceeded.
	tight := &MemoryCheck{MaxHeapBytes: 1}
	if result := tight.Check(context.Background()); result.Status != StatusUnhealthy {
		t.Errorf("status = %q, want unhealthy", result.Status)
	}
}
