package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func testConfig(timeout time.Duration) Config {
	return Config{
		Name:             "test-circuit",
		MaxRequests:      1,
		Interval:         10 * time.Second,
		Timeout:          timeout,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

func TestNew(t *testing.T) {
	cb := New(testConfig(time.Second))

	if cb.Name() != "test-circuit" {
		t.Errorf("expected name='test-circuit', got %q", cb.Name())
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected initial state=Closed, got %v", cb.State())
	}
}

func TestCircuitBreaker_Execute(t *testing.T) {
	cb := New(testConfig(time.Second))

	result, err := cb.Execute(func() (interface{}, error) { return "page", nil })
	if err != nil || result != "page" {
		t.Fatalf("Execute = %v, %v", result, err)
	}

	fetchErr := errors.New("connection reset")
	result, err = cb.Execute(func() (interface{}, error) { return nil, fetchErr })
	if !errors.Is(err, fetchErr) || result != nil {
		t.Fatalf("Execute = %v, %v; want %v", result, err, fetchErr)
	}
}

func TestCircuitBreaker_TripsAndRecovers(t *testing.T) {
	cb := New(testConfig(100 * time.Millisecond))
	fetchErr := errors.New("HTTP 503")

	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, fetchErr })
	}
	if !cb.IsOpen() {
		t.Fatalf("expected open after 5 failures, got %v", cb.State())
	}

	_, err := cb.Execute(func() (interface{}, error) {
		t.Error("function must not run while open")
		return nil, nil
	})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected ErrOpenState, got %v", err)
	}

	time.Sleep(150 * time.Millisecond)

	if _, err := cb.Execute(func() (interface{}, error) { return "ok", nil }); err != nil {
		t.Fatalf("half-open probe failed: %v", err)
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected Closed after successful probe, got %v", cb.State())
	}
}

func TestCircuitBreaker_MinRequests(t *testing.T) {
	cb := New(testConfig(time.Second))

	for i := 0; i < 4; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, errors.New("fail") })
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected Closed below MinRequests, got %v", cb.State())
	}
}

func TestNamedConfigs(t *testing.T) {
	tests := []struct {
		cfg  Config
		name string
	}{
		{DefaultConfig("x"), "x"},
		{DisruptionPageConfig(), "disruption-page"},
		{LinkPreviewConfig(), "link-preview"},
		{ImageSearchConfig(), "image-search"},
		{ClaudeAPIConfig(), "claude-api"},
		{OpenAIAPIConfig(), "openai-api"},
	}

	for _, tt := range tests {
		if tt.cfg.Name != tt.name {
			t.Errorf("Name = %q, want %q", tt.cfg.Name, tt.name)
		}
		if tt.cfg.MaxRequests == 0 || tt.cfg.Timeout <= 0 || tt.cfg.MinRequests == 0 {
			t.Errorf("%s: incomplete config %+v", tt.name, tt.cfg)
		}
		if tt.cfg.FailureThreshold <= 0 || tt.cfg.FailureThreshold > 1 {
			t.Errorf("%s: FailureThreshold out of range: %v", tt.name, tt.cfg.FailureThreshold)
		}
	}

	if DisruptionPageConfig().Timeout < 20*time.Minute {
		t.Error("disruption page breaker should stay open for at least one cycle")
	}
}
