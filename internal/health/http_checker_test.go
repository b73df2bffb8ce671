package health

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPCheckerHealthyEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewHTTPChecker(server.URL)
	result := checker.Check(context.Background())

	if !result.Healthy {
		t.Errorf("expected healthy, got unhealthy: %s", result.Message)
	}
	if result.Duration <= 0 {
		t.Error("expected positive duration")
	}
}

func TestHTTPCheckerUnhealthyEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	result := NewHTTPChecker(server.URL).Check(context.Background())
	if result.Healthy {
		t.Errorf("expected unhealthy, got healthy: %s", result.Message)
	}
}

func TestHTTPCheckerCustomStatusRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	checker := NewHTTPChecker(server.URL).WithStatusRange(200, 299)
	result := checker.Check(context.Background())
	if !result.Healthy {
		t.Errorf("expected healthy for 201, got unhealthy: %s", result.Message)
	}
}

func TestHTTPCheckerCustomHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Probe") != "txstream" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewHTTPChecker(server.URL).WithHeader("X-Probe", "txstream")
	result := checker.Check(context.Background())
	if !result.Healthy {
		t.Errorf("expected healthy with custom header, got unhealthy: %s", result.Message)
	}
}

func TestHTTPCheckerTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewHTTPChecker(server.URL).WithTimeout(50 * time.Millisecond)
	result := checker.Check(context.Background())
	if result.Healthy {
		t.Errorf("expected unhealthy due to timeout, got healthy: %s", result.Message)
	}
}

func TestHTTPCheckerContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := NewHTTPChecker(server.URL).Check(ctx)
	if result.Healthy {
		t.Errorf("expected unhealthy due to cancelled context, got healthy: %s", result.Message)
	}
}

func TestHTTPCheckerType(t *testing.T) {
	if NewHTTPChecker("http://example.com").Type() != CheckTypeHTTP {
		t.Error("expected CheckTypeHTTP")
	}
}

func TestTCPCheckerRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	checker := NewTCPChecker(ln.Addr().String())
	result := checker.Check(context.Background())
	if !result.Healthy {
		t.Errorf("expected healthy TCP check, got: %s", result.Message)
	}
	if checker.Type() != CheckTypeTCP {
		t.Error("expected CheckTypeTCP")
	}
}

func TestTCPCheckerUnreachable(t *testing.T) {
	checker := NewTCPChecker("127.0.0.1:1").WithTimeout(100 * time.Millisecond)
	result := checker.Check(context.Background())
	if result.Healthy {
		t.Error("expected unhealthy for unreachable address")
	}
}

func TestStatusUpdateRequiresConsecutiveFailures(t *testing.T) {
	s := NewStatus()
	cfg := Config{Retries: 3}

	s.Update(Result{Healthy: false}, cfg)
	if !s.Healthy {
		t.Error("one failure should not flip healthy status yet")
	}
	s.Update(Result{Healthy: false}, cfg)
	s.Update(Result{Healthy: false}, cfg)
	if s.Healthy {
		t.Error("three consecutive failures should mark unhealthy")
	}

	s.Update(Result{Healthy: true}, cfg)
	if !s.Healthy {
		t.Error("a success should immediately restore healthy status")
	}
}
