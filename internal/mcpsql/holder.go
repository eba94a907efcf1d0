package mcpsql

import (
	"context"
	"errors"
	"sync"

	"github.com/kayz/sqlpal/internal/logger"
)

// ErrNotReady means the shared session has not finished connecting and no
// startup error has been recorded yet.
var ErrNotReady = errors.New("tool session not ready")

// Holder owns the long-lived shared session used by serve mode. It is
// written once by the background connector and read by every request;
// only Shutdown may tear it down.
type Holder struct {
	mu         sync.RWMutex
	client     *Client
	startupErr error

	cancel context.CancelFunc
	done   chan struct{}

	connect func(ctx context.Context, cfg Config) (*Client, error)
}

// NewHolder starts connecting to the tool server in the background and
// returns immediately. A failed connect is recorded as the startup error
// rather than aborting the process.
func NewHolder(cfg Config) *Holder {
	return newHolder(cfg, Connect)
}

func newHolder(cfg Config, connect func(ctx context.Context, cfg Config) (*Client, error)) *Holder {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Holder{
		cancel:  cancel,
		done:    make(chan struct{}),
		connect: connect,
	}

	go h.run(ctx, cfg)
	return h
}

func (h *Holder) run(ctx context.Context, cfg Config) {
	defer close(h.done)

	client, err := h.connect(ctx, cfg)
	if err != nil {
		logger.Error("tool session startup failed: %v", err)
		h.mu.Lock()
		h.startupErr = err
		h.mu.Unlock()
		return
	}

	logger.Info("tool session ready")
	h.mu.Lock()
	h.client = client
	h.mu.Unlock()

	// Hold the session open until shutdown.
	<-ctx.Done()

	if err := client.Close(); err != nil {
		logger.Warn("tool session close: %v", err)
	}
}

// Session returns the shared session, ErrNotReady while connecting, or the
// recorded startup error after a failed connect.
func (h *Holder) Session() (*Client, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.client != nil {
		return h.client, nil
	}
	if h.startupErr != nil {
		return nil, h.startupErr
	}
	return nil, ErrNotReady
}

// Ready reports whether the shared session is connected.
func (h *Holder) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.client != nil
}

// StartupError returns the recorded startup error message, or "" if none.
func (h *Holder) StartupError() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.startupErr == nil {
		return ""
	}
	return h.startupErr.Error()
}

// Shutdown cancels the background connector and waits for it to finish.
// It never returns an error from the session itself, only the context's.
func (h *Holder) Shutdown(ctx context.Context) error {
	h.cancel()
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
