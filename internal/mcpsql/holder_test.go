package mcpsql

import (
	"context"
	"errors"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestHolderRecordsStartupError(t *testing.T) {
	boom := errors.New("subprocess refused to start")
	h := newHolder(Config{Command: "x"}, func(ctx context.Context, cfg Config) (*Client, error) {
		return nil, boom
	})

	waitFor(t, func() bool { return h.StartupError() != "" })

	if h.Ready() {
		t.Fatal("holder should not be ready after startup failure")
	}
	if _, err := h.Session(); !errors.Is(err, boom) {
		t.Fatalf("Session() error = %v, want startup error", err)
	}
	if h.StartupError() != boom.Error() {
		t.Fatalf("StartupError() = %q", h.StartupError())
	}
}

func TestHolderNotReadyBeforeConnect(t *testing.T) {
	release := make(chan struct{})
	h := newHolder(Config{Command: "x"}, func(ctx context.Context, cfg Config) (*Client, error) {
		<-release
		return &Client{}, nil
	})
	defer close(release)

	if _, err := h.Session(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Session() error = %v, want ErrNotReady", err)
	}
	if h.StartupError() != "" {
		t.Fatalf("unexpected startup error: %q", h.StartupError())
	}
}

func TestHolderServesSessionAfterConnect(t *testing.T) {
	h := newHolder(Config{Command: "x"}, func(ctx context.Context, cfg Config) (*Client, error) {
		return &Client{}, nil
	})

	waitFor(t, h.Ready)

	if _, err := h.Session(); err != nil {
		t.Fatalf("Session() after connect: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestShutdownCancelsPendingConnect(t *testing.T) {
	h := newHolder(Config{Command: "x"}, func(ctx context.Context, cfg Config) (*Client, error) {
		// Simulate a connect that only resolves on cancellation.
		<-ctx.Done()
		return nil, ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown while connecting: %v", err)
	}
}
