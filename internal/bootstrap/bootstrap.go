// Package bootstrap provides process lifecycle helpers shared by the binaries.
package bootstrap

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ErrShutdownTimeout is joined into the Run result when run does not return
// within the shutdown timeout after cancellation.
var ErrShutdownTimeout = errors.New("run did not stop before the shutdown timeout")

// App runs a blocking function and tears down registered resources on exit.
type App struct {
	mu              sync.Mutex
	hooks           []func(ctx context.Context) error
	shutdownTimeout time.Duration
}

// New creates an App whose shutdown hooks share a deadline of shutdownTimeout.
// A zero timeout means hooks run without a deadline.
func New(shutdownTimeout time.Duration) *App {
	return &App{shutdownTimeout: shutdownTimeout}
}

// AddShutdownHook registers fn to run on shutdown. Hooks run in reverse
// registration order. Safe to call from inside the run function.
func (a *App) AddShutdownHook(fn func(ctx context.Context) error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = append(a.hooks, fn)
}

// Run executes run with a context cancelled on SIGINT/SIGTERM. After a signal
// run gets up to the shutdown timeout to return, so in-flight work can still
// use the resources the hooks release. The hooks are called once run has
// returned or that wait expired. The result joins the run error with any hook
// errors.
func (a *App) Run(ctx context.Context, run func(ctx context.Context) error) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		runErr = a.wait(errCh)
	case runErr = <-errCh:
	}

	shutdownCtx := context.Background()
	if a.shutdownTimeout > 0 {
		var cancelShutdown context.CancelFunc
		shutdownCtx, cancelShutdown = context.WithTimeout(shutdownCtx, a.shutdownTimeout)
		defer cancelShutdown()
	}
	return errors.Join(runErr, a.shutdown(shutdownCtx))
}

// wait blocks until run returns. A zero shutdown timeout waits indefinitely.
func (a *App) wait(errCh <-chan error) error {
	if a.shutdownTimeout <= 0 {
		return <-errCh
	}
	timer := time.NewTimer(a.shutdownTimeout)
	defer timer.Stop()
	select {
	case err := <-errCh:
		return err
	case <-timer.C:
		return ErrShutdownTimeout
	}
}

func (a *App) shutdown(ctx context.Context) error {
	a.mu.Lock()
	hooks := make([]func(ctx context.Context) error, len(a.hooks))
	copy(hooks, a.hooks)
	a.hooks = nil
	a.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
