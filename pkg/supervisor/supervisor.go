// Copyright 2025 CL8Y Bridge Contributors
//
// Package supervisor wires the coordination plane's long-lived tasks to one
// shutdown broadcast. Each task is a goroutine; a task error is restarted
// after a cooldown, and a task that keeps dying takes the whole process
// down so the deployment's restart policy can intervene.
package supervisor

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"
)

// restartCooldown is the pause before a failed task is restarted.
var restartCooldown = 5 * time.Second

const (
	// maxTaskRestarts is how many consecutive failures a task gets
	// before its error becomes fatal for the process.
	maxTaskRestarts = 3

	// shutdownGrace bounds how long tasks get to finish their in-flight
	// store transaction after the shutdown broadcast.
	shutdownGrace = 15 * time.Second
)

// Task is one long-lived goroutine under supervision. Run must return nil
// promptly when ctx is cancelled.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Supervisor runs tasks until shutdown or a fatal task failure.
type Supervisor struct {
	tasks   []Task
	servers []*http.Server
	logger  *log.Logger
}

// New creates an empty supervisor.
func New() *Supervisor {
	return &Supervisor{
		logger: log.New(log.Writer(), "[Supervisor] ", log.LstdFlags),
	}
}

// Add registers a task.
func (s *Supervisor) Add(name string, run func(ctx context.Context) error) {
	s.tasks = append(s.tasks, Task{Name: name, Run: run})
}

// AddServer registers an HTTP server (health, metrics) to be started with
// the tasks and shut down with them.
func (s *Supervisor) AddServer(srv *http.Server) {
	s.servers = append(s.servers, srv)
}

// Run blocks until ctx is cancelled (external shutdown) or a task fails
// fatally. Either way every task receives the shutdown broadcast and gets
// the grace period to finish its in-flight work.
func (s *Supervisor) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var wg sync.WaitGroup

	for _, srv := range s.servers {
		srv := srv
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.logger.Printf("serving on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Printf("server %s failed: %v", srv.Addr, err)
				cancel(err)
			}
		}()
	}

	for _, task := range s.tasks {
		task := task
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runTask(runCtx, cancel, task)
		}()
	}

	<-runCtx.Done()
	s.logger.Println("shutdown broadcast, waiting for tasks")

	// Stop the HTTP servers and bound the drain.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	for _, srv := range s.servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Printf("server %s shutdown: %v", srv.Addr, err)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Println("all tasks stopped")
	case <-time.After(shutdownGrace):
		s.logger.Println("grace period elapsed with tasks still running")
	}

	if ctx.Err() != nil {
		return nil // external shutdown, not a task failure
	}
	if err := context.Cause(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runTask restarts a failing task with a cooldown, escalating to a process
// shutdown once the restart budget is spent.
func (s *Supervisor) runTask(ctx context.Context, cancel context.CancelCauseFunc, task Task) {
	failures := 0
	for {
		err := task.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			s.logger.Printf("task %s exited cleanly", task.Name)
			return
		}

		failures++
		s.logger.Printf("task %s failed (%d/%d): %v", task.Name, failures, maxTaskRestarts, err)
		if failures >= maxTaskRestarts {
			cancel(err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(restartCooldown):
		}
	}
}
