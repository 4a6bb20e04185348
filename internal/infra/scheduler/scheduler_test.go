package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/pocketadvisor-bfa-go/internal/infra/scheduler"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAdd_InvalidSpec(t *testing.T) {
	s := scheduler.New(zap.NewNop(), 0)

	if err := s.Add("reconcile", "every tuesday", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected error for invalid spec")
	}
	if s.Len() != 0 {
		t.Errorf("expected no jobs, got %d", s.Len())
	}
}

func TestRunAll(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := scheduler.New(zap.New(core), time.Second)

	var runs int32
	if err := s.Add("ok", "0 3 * * *", func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected run deadline")
		}
		atomic.AddInt32(&runs, 1)
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Add("failing", "*/5 * * * *", func(context.Context) error {
		return errors.New("store unavailable")
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.RunAll()

	if atomic.LoadInt32(&runs) != 1 {
		t.Errorf("expected one run, got %d", runs)
	}
	if logs.FilterMessage("job failed").Len() != 1 {
		t.Error("expected failure to be logged")
	}
	if logs.FilterMessage("job completed").Len() != 1 {
		t.Error("expected completion to be logged")
	}
}

func TestRunAll_RecoversPanic(t *testing.T) {
	s := scheduler.New(zap.NewNop(), 0)
	_ = s.Add("boom", "@hourly", func(context.Context) error { panic("boom") })

	s.RunAll()
}

func TestStop_CancelsJobs(t *testing.T) {
	s := scheduler.New(zap.NewNop(), 0)
	s.Start()

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cancelled := make(chan struct{})
	_ = s.Add("late", "@daily", func(ctx context.Context) error {
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})
	s.RunAll()

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("expected job context to be cancelled after Stop")
	}
}
