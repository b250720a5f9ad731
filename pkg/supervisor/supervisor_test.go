// Copyright 2025 CL8Y Bridge Contributors

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRun_ShutdownStopsTasks(t *testing.T) {
	s := New()

	var stopped atomic.Bool
	s.Add("loop", func(ctx context.Context) error {
		<-ctx.Done()
		stopped.Store(true)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !stopped.Load() {
		t.Error("task never saw the shutdown broadcast")
	}
}

func TestRun_RestartsFailingTask(t *testing.T) {
	old := restartCooldown
	restartCooldown = 5 * time.Millisecond
	defer func() { restartCooldown = old }()

	s := New()

	var runs atomic.Int32
	s.Add("flaky", func(ctx context.Context) error {
		if runs.Add(1) < 2 {
			return errors.New("transient store failure")
		}
		<-ctx.Done()
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if runs.Load() != 2 {
		t.Errorf("task ran %d times, want 2 (one restart)", runs.Load())
	}
}

func TestRun_FatalAfterRestartBudget(t *testing.T) {
	old := restartCooldown
	restartCooldown = time.Millisecond
	defer func() { restartCooldown = old }()

	s := New()

	boom := errors.New("store gone")
	s.Add("doomed", func(ctx context.Context) error {
		return boom
	})

	err := s.Run(context.Background())
	if err == nil {
		t.Fatal("expected fatal error after restart budget spent")
	}
	if !errors.Is(err, boom) {
		t.Errorf("Run returned %v, want the task's error", err)
	}
}

func TestRun_CleanExitIsNotRestarted(t *testing.T) {
	s := New()

	var runs atomic.Int32
	s.Add("oneshot", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if runs.Load() != 1 {
		t.Errorf("clean-exiting task ran %d times, want 1", runs.Load())
	}
}
