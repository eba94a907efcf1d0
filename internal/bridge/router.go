// Package bridge routes questions from chat platforms into the query
// pipeline and replies with the answers.
package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/kayz/sqlpal/internal/logger"
)

// Message is an incoming chat message, normalized across platforms.
type Message struct {
	ID        string
	Platform  string
	ChannelID string
	UserID    string
	Username  string
	Text      string
	ThreadID  string
	Metadata  map[string]string
}

// Response is an outgoing chat message.
type Response struct {
	Text     string
	ThreadID string
	Metadata map[string]string
}

// Platform is one connected chat platform.
type Platform interface {
	Name() string
	SetMessageHandler(handler func(msg Message))
	Start(ctx context.Context) error
	Stop() error
	Send(ctx context.Context, channelID string, resp Response) error
}

// Handler answers one incoming message.
type Handler func(ctx context.Context, msg Message) (Response, error)

// Router dispatches messages from registered platforms to the handler and
// sends the replies back.
type Router struct {
	handler   Handler
	mu        sync.RWMutex
	platforms map[string]Platform
	ctx       context.Context
	cancel    context.CancelFunc
}

func New(handler Handler) *Router {
	return &Router{
		handler:   handler,
		platforms: make(map[string]Platform),
	}
}

// Register adds a platform. Must be called before Start.
func (r *Router) Register(p Platform) {
	r.mu.Lock()
	r.platforms[p.Name()] = p
	r.mu.Unlock()
}

// Start connects every registered platform.
func (r *Router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.platforms {
		platform := p
		platform.SetMessageHandler(func(msg Message) {
			go r.dispatch(platform, msg)
		})
		if err := platform.Start(r.ctx); err != nil {
			return fmt.Errorf("failed to start %s: %w", platform.Name(), err)
		}
	}
	return nil
}

// Stop disconnects all platforms.
func (r *Router) Stop() {
	if r.cancel != nil {
		r.cancel()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.platforms {
		if err := p.Stop(); err != nil {
			logger.Warn("failed to stop %s: %v", p.Name(), err)
		}
	}
}

// Notify sends text to a channel on a named platform. It implements the
// scheduler's notifier contract.
func (r *Router) Notify(ctx context.Context, platform, channelID, text string) error {
	r.mu.RLock()
	p, ok := r.platforms[platform]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("platform not registered: %s", platform)
	}
	return p.Send(ctx, channelID, Response{Text: text})
}

func (r *Router) dispatch(p Platform, msg Message) {
	resp, err := r.handler(r.ctx, msg)
	if err != nil {
		logger.Error("handler failed for %s message: %v", msg.Platform, err)
		resp = Response{Text: "Error: " + err.Error(), ThreadID: msg.ID}
	}
	if resp.Text == "" {
		return
	}
	if err := p.Send(r.ctx, msg.ChannelID, resp); err != nil {
		logger.Error("failed to send %s reply: %v", p.Name(), err)
	}
}
