package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubChecker struct {
	err error
}

func (s stubChecker) CheckHealth(ctx context.Context) error {
	return s.err
}

func TestHealthHandlerReturnsHealthyStatus(t *testing.T) {
	manager := NewHealthManager("1.2.3")
	manager.RegisterChecker("admission_sweeper", stubChecker{err: nil})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	manager.HealthHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Status != "healthy" {
		t.Fatalf("expected healthy status, got %s", resp.Status)
	}
	if resp.Version != "1.2.3" {
		t.Fatalf("expected version 1.2.3, got %s", resp.Version)
	}
	if resp.Checks["admission_sweeper"] != "healthy" {
		t.Fatalf("expected admission_sweeper check to be healthy, got %s", resp.Checks["admission_sweeper"])
	}
}

func TestReadinessReturnsServiceUnavailableWhenUnhealthy(t *testing.T) {
	manager := NewHealthManager("1.2.3")
	manager.RegisterChecker("dnsbl_lists", CheckerFunc(func(context.Context) error {
		return errors.New("no lists configured")
	}))

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()

	manager.ReadinessHandler(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}

	var resp struct {
		Error   string                 `json:"error"`
		Code    string                 `json:"code"`
		Details map[string]interface{} `json:"details"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Code != "SERVICE_UNAVAILABLE" {
		t.Fatalf("expected SERVICE_UNAVAILABLE error code, got %s", resp.Code)
	}
	if resp.Error != "ready probe failed" {
		t.Fatalf("unexpected message %q", resp.Error)
	}

	checks, ok := resp.Details["checks"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected checks in error details")
	}
	if status, ok := checks["dnsbl_lists"].(string); !ok || status != "unhealthy" {
		t.Fatalf("expected dnsbl_lists check to be unhealthy, got %v", checks["dnsbl_lists"])
	}
}

func TestLivenessIgnoresChecks(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("broken", stubChecker{err: errors.New("down")})

	rec := httptest.NewRecorder()
	manager.LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

func TestRunHealthChecksMarksTimeoutWhenContextDone(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("a", stubChecker{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	checks := manager.runHealthChecks(ctx)
	if checks["a"] != "timeout" {
		t.Fatalf("expected timeout, got %s", checks["a"])
	}
	if status := determineOverallStatus(checks); status != "degraded" {
		t.Fatalf("expected degraded status, got %s", status)
	}
}
