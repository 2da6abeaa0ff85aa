package resilience

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	stateChanges := make([]gobreaker.State, 0)
	cfg := DefaultBreakerConfig("test")
	cfg.MinRequests = 3
	cfg.FailureThreshold = 3
	cfg.OnStateChange = func(_ string, _, to gobreaker.State) {
		stateChanges = append(stateChanges, to)
	}

	breaker := NewCircuitBreaker(cfg)

	for i := 0; i < 5; i++ {
		breaker.Execute(func() (any, error) { return nil, errors.New("fail") })
	}

	if breaker.State() != gobreaker.StateOpen {
		t.Errorf("expected StateOpen, got %v", breaker.State())
	}

	if len(stateChanges) == 0 || stateChanges[len(stateChanges)-1] != gobreaker.StateOpen {
		t.Errorf("expected state change to Open, got %v", stateChanges)
	}
}

func TestCircuitBreakerStaysClosedOnSuccess(t *testing.T) {
	cfg := DefaultBreakerConfig("test-success")
	cfg.MinRequests = 3
	cfg.FailureThreshold = 5

	breaker := NewCircuitBreaker(cfg)

	for i := 0; i < 10; i++ {
		breaker.Execute(func() (any, error) { return "ok", nil })
	}

	if breaker.State() != gobreaker.StateClosed {
		t.Errorf("expected StateClosed, got %v", breaker.State())
	}
}

func TestCircuitBreakerHalfOpenAfterTimeout(t *testing.T) {
	cfg := DefaultBreakerConfig("test-timeout")
	cfg.MinRequests = 2
	cfg.FailureThreshold = 2
	cfg.Timeout = 50 * time.Millisecond

	breaker := NewCircuitBreaker(cfg)

	for i := 0; i < 3; i++ {
		breaker.Execute(func() (any, error) { return nil, errors.New("fail") })
	}

	if breaker.State() != gobreaker.StateOpen {
		t.Fatalf("expected StateOpen, got %v", breaker.State())
	}

	time.Sleep(60 * time.Millisecond)

	if breaker.State() != gobreaker.StateHalfOpen {
		t.Errorf("expected StateHalfOpen after timeout, got %v", breaker.State())
	}
}

func TestCircuitBreakerReturnsCountsCorrectly(t *testing.T) {
	cfg := DefaultBreakerConfig("test-counts")
	breaker := NewCircuitBreaker(cfg)

	breaker.Execute(func() (any, error) { return "ok", nil })
	breaker.Execute(func() (any, error) { return nil, errors.New("fail") })
	breaker.Execute(func() (any, error) { return "ok", nil })

	counts := breaker.Counts()
	if counts.Requests != 3 {
		t.Errorf("expected 3 requests, got %d", counts.Requests)
	}
	if counts.TotalSuccesses != 2 {
		t.Errorf("expected 2 successes, got %d", counts.TotalSuccesses)
	}
	if counts.TotalFailures != 1 {
		t.Errorf("expected 1 failure, got %d", counts.TotalFailures)
	}
}

func TestCircuitBreakerName(t *testing.T) {
	cfg := DefaultBreakerConfig("my-breaker")
	breaker := NewCircuitBreaker(cfg)

	if breaker.Name() != "my-breaker" {
		t.Errorf("expected name 'my-breaker', got %s", breaker.Name())
	}
}

// TestExecutorRetriesUntilSuccess drives the exact Executor[*http.Response]
// composition internal/memory.HTTPClient builds: a flaky upstream that fails
// twice before succeeding should resolve without the caller seeing an error.
func TestExecutorRetriesUntilSuccess(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	retryCfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	breakerCfg := DefaultBreakerConfig("retry-test")
	exec := NewExecutor[*http.Response](retryCfg, &breakerCfg)

	resp, err := exec.Execute(context.Background(), func() (*http.Response, error) {
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		r, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		if r.StatusCode >= 500 {
			r.Body.Close()
			return nil, errors.New("upstream unavailable")
		}
		return r, nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	defer resp.Body.Close()
	if attempts.Load() != 3 {
		t.Fatalf("expected 3 attempts (2 failures + 1 success), got %d", attempts.Load())
	}
}

// TestExecutorBreakerOpensAfterRepeatedFailures verifies that once the
// wrapped breaker trips, Execute fails fast instead of hitting the server
// again, matching how internal/memory.HTTPClient degrades when the memory
// service is down for good.
func TestExecutorBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	retryCfg := RetryConfig{MaxRetries: 0, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	breakerCfg := DefaultBreakerConfig("breaker-test")
	breakerCfg.MinRequests = 2
	breakerCfg.FailureThreshold = 2
	exec := NewExecutor[*http.Response](retryCfg, &breakerCfg)

	call := func() error {
		_, err := exec.Execute(context.Background(), func() (*http.Response, error) {
			req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
			r, err := http.DefaultClient.Do(req)
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= 500 {
				r.Body.Close()
				return nil, errors.New("server error")
			}
			return r, nil
		})
		return err
	}

	for i := 0; i < 3; i++ {
		if err := call(); err == nil {
			t.Fatalf("expected failure on warm-up call %d", i)
		}
	}

	seenBeforeOpen := requests.Load()
	if err := call(); err == nil {
		t.Fatal("expected breaker to report failure once open")
	}
	if requests.Load() != seenBeforeOpen {
		t.Fatalf("expected breaker to short-circuit without hitting server: before=%d after=%d", seenBeforeOpen, requests.Load())
	}
}
