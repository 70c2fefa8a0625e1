package gallery

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/vidgallery/backend/internal/metrics"
	"github.com/vidgallery/backend/internal/models"
)

// ErrHubClosed is returned when subscribing to a hub that has shut down.
var ErrHubClosed = errors.New("gallery hub closed")

// SnapshotLoader loads the full, ordered gallery of a user.
type SnapshotLoader interface {
	Snapshot(ctx context.Context, userID string) ([]models.Video, error)
}

// Listener delivers change notifications published by any process.
type Listener interface {
	Listen(ctx context.Context, handler func(userID string)) error
}

// Hub fans gallery changes out to live subscriptions. Each subscription
// receives a full snapshot when it opens and again after every change to its
// user's gallery.
type Hub struct {
	loader  SnapshotLoader
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	closed bool
}

// NewHub constructs a Hub that reloads snapshots through loader.
func NewHub(loader SnapshotLoader, logger *slog.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		loader:  loader,
		logger:  logger,
		metrics: m,
		subs:    make(map[string]map[*Subscription]struct{}),
	}
}

// Subscription is a live view of one user's gallery. Snapshots arrive on C,
// which is closed once the subscription ends.
type Subscription struct {
	UserID    string
	SessionID string
	C         <-chan []models.Video

	out    chan []models.Video
	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	hub    *Hub
}

// Subscribe opens a live view of userID's gallery bound to sessionID. It ends
// when ctx is cancelled, Close is called, or the session is closed.
func (h *Hub) Subscribe(ctx context.Context, userID, sessionID string) (*Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	out := make(chan []models.Video)
	sub := &Subscription{
		UserID:    userID,
		SessionID: sessionID,
		C:         out,
		out:       out,
		wake:      make(chan struct{}, 1),
		ctx:       subCtx,
		cancel:    cancel,
		done:      make(chan struct{}),
		hub:       h,
	}
	sub.wake <- struct{}{}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		cancel()
		return nil, ErrHubClosed
	}
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*Subscription]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	h.mu.Unlock()

	h.metrics.SubscriptionOpened()
	go sub.run()

	return sub, nil
}

// Publish marks userID's gallery as changed for subscribers in this process.
func (h *Hub) Publish(_ context.Context, userID string) error {
	h.Notify(userID)
	return nil
}

// Relay publishes a change to this process's hub first and then to Remote,
// so local subscribers are woken even when the remote bus is down. The echo
// that later arrives from Remote collapses into the pending wake.
type Relay struct {
	Local  *Hub
	Remote Publisher
}

// Publish wakes local subscribers and forwards the change to Remote.
func (r Relay) Publish(ctx context.Context, userID string) error {
	r.Local.Notify(userID)
	if r.Remote == nil {
		return nil
	}
	return r.Remote.Publish(ctx, userID)
}

// Notify wakes every subscription of userID. Bursts of notifications
// collapse into a single reload.
func (h *Hub) Notify(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[userID] {
		select {
		case sub.wake <- struct{}{}:
		default:
		}
	}
}

// CloseSession ends every subscription opened under sessionID.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, subs := range h.subs {
		for sub := range subs {
			if sub.SessionID == sessionID {
				sub.cancel()
			}
		}
	}
}

// Run forwards notifications from l until ctx is cancelled.
func (h *Hub) Run(ctx context.Context, l Listener) error {
	return l.Listen(ctx, h.Notify)
}

// Close ends all subscriptions and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, subs := range h.subs {
		for sub := range subs {
			sub.cancel()
		}
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subs[sub.UserID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subs, sub.UserID)
		}
	}
}

// Close ends the subscription and waits for its goroutine to exit.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}

// Done is closed once the subscription has ended.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) run() {
	defer func() {
		s.hub.remove(s)
		s.hub.metrics.SubscriptionClosed()
		close(s.out)
		close(s.done)
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		}

		videos, err := s.hub.loader.Snapshot(s.ctx, s.UserID)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			// keep the subscription open; the next change retries the load
			s.hub.logger.Warn("gallery snapshot failed", "userId", s.UserID, "error", err)
			continue
		}

		select {
		case s.out <- videos:
			s.hub.metrics.SnapshotDelivered()
		case <-s.ctx.Done():
			return
		}
	}
}
