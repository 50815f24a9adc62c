package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
)

type observerFake struct {
	retries int
	states  []string
}

func (o *observerFake) ObserveRetry(string) { o.retries++ }

func (o *observerFake) ObserveBreakerState(_ string, state string) {
	o.states = append(o.states, state)
}

func fastConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
	}
}

func TestExecuteRetriesTemporaryFailure(t *testing.T) {
	observer := &observerFake{}
	exec := NewExecutor(fastConfig(), observer)

	attempts := 0
	err := exec.Execute(context.Background(), "ollama_embed", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return domain.WrapError(domain.ErrTemporary, "embed", errors.New("503"))
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 || observer.retries != 2 {
		t.Fatalf("attempts=%d retries=%d", attempts, observer.retries)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(fastConfig(), nil)

	attempts := 0
	errPermanent := errors.New("model not found")
	err := exec.Execute(context.Background(), "ollama_generate", func(context.Context) error {
		attempts++
		return errPermanent
	}, nil)
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteStopsOnCanceledContext(t *testing.T) {
	exec := NewExecutor(fastConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := exec.Execute(ctx, "op", func(context.Context) error {
		called = true
		return nil
	}, nil)
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("expected cancellation before first attempt, err=%v called=%v", err, called)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAttempts = 1
	cfg.BreakerEnabled = true
	cfg.BreakerMinRequests = 2
	cfg.BreakerFailureRatio = 0.5
	cfg.BreakerOpenTimeout = 50 * time.Millisecond
	observer := &observerFake{}
	exec := NewExecutor(cfg, observer)

	errDown := errors.New("qdrant down")
	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "qdrant_search", func(context.Context) error {
			return errDown
		}, nil)
		if !errors.Is(err, errDown) {
			t.Fatalf("iteration %d: expected underlying error, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "qdrant_search", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, nil)
	if !errors.Is(err, gobreaker.ErrOpenState) || !IsCircuitOpen(err) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if len(observer.states) != 1 || observer.states[0] != "open" {
		t.Fatalf("unexpected state transitions: %v", observer.states)
	}
}

func TestCallReturnsValue(t *testing.T) {
	exec := NewExecutor(fastConfig(), nil)

	got, err := Call(context.Background(), exec, "count", func(context.Context) (int, error) {
		return 42, nil
	}, nil)
	if err != nil || got != 42 {
		t.Fatalf("Call() = %d, %v", got, err)
	}
}

func TestNilExecutorRunsOnce(t *testing.T) {
	var exec *Executor
	attempts := 0
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return domain.WrapError(domain.ErrTemporary, "op", errors.New("flaky"))
	}, nil)
	if err == nil || attempts != 1 {
		t.Fatalf("expected single failing attempt, got %d, %v", attempts, err)
	}
}

func TestClassifyTransient(t *testing.T) {
	cases := []struct {
		err   error
		retry bool
		count bool
	}{
		{err: context.Canceled},
		{err: fmt.Errorf("wrapped: %w", context.DeadlineExceeded)},
		{err: domain.WrapError(domain.ErrTemporary, "op", errors.New("x")), retry: true, count: true},
		{err: errors.New("bad request"), count: true},
	}
	for _, tc := range cases {
		got := ClassifyTransient(tc.err)
		if got.Retry != tc.retry || got.CountsAsFailure != tc.count {
			t.Fatalf("ClassifyTransient(%v) = %+v", tc.err, got)
		}
	}
}

func TestBackoffIsCapped(t *testing.T) {
	cfg := Config{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond, Multiplier: 2}.withDefaults()
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	for i, w := range want {
		if got := cfg.backoffAfter(i + 1); got != w {
			t.Fatalf("backoffAfter(%d) = %s, want %s", i+1, got, w)
		}
	}
}
