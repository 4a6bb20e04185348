package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/domain"
	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/resilience"
)

var fastCfg = resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond}

func TestRetryWithBackoff_RetriesOnFailure(t *testing.T) {
	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), resilience.Config{MaxRetries: 3, InitialBackoff: 10 * time.Millisecond}, func() error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), fastCfg, func() error {
		callCount++
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if callCount != 3 {
		t.Errorf("expected 3 attempts, got %d", callCount)
	}
}

func TestRetryWithBackoff_PermanentErrorNotRetried(t *testing.T) {
	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), fastCfg, func() error {
		callCount++
		return &domain.ErrNotFound{Resource: "profile", ID: "u-1"}
	})

	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected a single attempt, got %d", callCount)
	}
}

func TestRetryWithBackoff_ZeroBackoff(t *testing.T) {
	err := resilience.RetryWithBackoff(context.Background(), resilience.Config{MaxRetries: 1}, func() error {
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRetryWithBackoff_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := resilience.RetryWithBackoff(ctx, resilience.Config{MaxRetries: 5, InitialBackoff: time.Second}, func() error {
		return errors.New("error")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestExecute_Success(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test")

	got, err := resilience.Execute(context.Background(), cb, fastCfg, "store", func(context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
}

func TestExecute_WrapsExternalFailure(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test")

	_, err := resilience.Execute(context.Background(), cb, fastCfg, "store", func(context.Context) (string, error) {
		return "", errors.New("connection refused")
	})

	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if ext.Service != "store" {
		t.Errorf("expected service 'store', got %s", ext.Service)
	}
}

func TestExecute_PassesPermanentThrough(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test")

	for i := 0; i < 10; i++ {
		_, err := resilience.Execute(context.Background(), cb, fastCfg, "store", func(context.Context) (string, error) {
			return "", &domain.ErrNotFound{Resource: "profile", ID: "u-1"}
		})
		var nf *domain.ErrNotFound
		if !errors.As(err, &nf) {
			t.Fatalf("call %d: expected ErrNotFound, got %v", i, err)
		}
	}
}

func TestExecute_OpensCircuit(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test")
	cfg := resilience.Config{MaxRetries: 0}

	for i := 0; i < 5; i++ {
		_, _ = resilience.Execute(context.Background(), cb, cfg, "advisor", func(context.Context) (int, error) {
			return 0, errors.New("down")
		})
	}

	_, err := resilience.Execute(context.Background(), cb, cfg, "advisor", func(context.Context) (int, error) {
		return 1, nil
	})
	var open *domain.ErrCircuitOpen
	if !errors.As(err, &open) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestExecute_Timeout(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := resilience.Execute(ctx, cb, resilience.Config{}, "advisor", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	var timeout *domain.ErrTimeout
	if !errors.As(err, &timeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestBulkhead_AcquireRelease(t *testing.T) {
	bh := resilience.NewBulkhead(2)

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}
	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := bh.Acquire(ctx); err == nil {
		t.Fatal("expected timeout on third acquire")
	}

	bh.Release()

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire after release, got %v", err)
	}
}
