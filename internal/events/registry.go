// internal/events/registry.go
package events

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultHeartbeat   = 2 * time.Second
	DefaultSendTimeout = 5 * time.Second
)

// listener binds one channel to one player. remove runs at most once per listener.
type listener struct {
	playerID uuid.UUID
	ch       Channel
	once     sync.Once
}

// Registry maps each connected player to a single active channel and fans events out
// to them. Create one per process, call Run to start the heartbeat and Close on shutdown.
type Registry struct {
	mu        sync.Mutex
	listeners map[uuid.UUID]*listener

	nextID      atomic.Uint64
	heartbeat   time.Duration
	sendTimeout time.Duration
	log         *logrus.Entry
}

// NewRegistry builds an empty registry. A non-positive heartbeat uses DefaultHeartbeat.
func NewRegistry(logger *logrus.Logger, heartbeat time.Duration) *Registry {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Registry{
		listeners:   make(map[uuid.UUID]*listener),
		heartbeat:   heartbeat,
		sendTimeout: DefaultSendTimeout,
		log:         logger.WithField("component", "events"),
	}
}

// Register makes ch the player's listener, replacing any previous one. The channel
// deregisters itself when it closes.
func (r *Registry) Register(playerID uuid.UUID, ch Channel) {
	l := &listener{playerID: playerID, ch: ch}

	r.mu.Lock()
	old := r.listeners[playerID]
	r.listeners[playerID] = l
	r.mu.Unlock()

	if old != nil && old.ch != ch {
		r.log.WithField("player", playerID).Debug("replacing existing listener")
		r.drop(old, nil)
	}
	ch.OnClose(func(err error) { r.drop(l, err) })
	r.log.WithField("player", playerID).Debug("listener registered")
}

// Unregister removes the listener bound to ch. Unknown channels are ignored.
func (r *Registry) Unregister(ch Channel) {
	r.mu.Lock()
	var found *listener
	for _, l := range r.listeners {
		if l.ch == ch {
			found = l
			break
		}
	}
	r.mu.Unlock()
	if found != nil {
		r.drop(found, nil)
	}
}

// drop removes l from the map if it is still the player's current listener.
func (r *Registry) drop(l *listener, reason error) {
	l.once.Do(func() {
		r.mu.Lock()
		if cur, ok := r.listeners[l.playerID]; ok && cur == l {
			delete(r.listeners, l.playerID)
		}
		r.mu.Unlock()

		entry := r.log.WithField("player", l.playerID)
		if reason != nil {
			entry.WithError(reason).Debug("listener removed")
		} else {
			entry.Debug("listener removed")
		}
	})
}

// Registered reports whether the player currently has a listener.
func (r *Registry) Registered(playerID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.listeners[playerID]
	return ok
}

// Len returns the number of registered listeners.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

// EmitToPlayer delivers ev to one player, if connected.
func (r *Registry) EmitToPlayer(playerID uuid.UUID, ev Event) {
	r.EmitToPlayers([]uuid.UUID{playerID}, ev)
}

// EmitToPlayers delivers ev to every connected player in ids.
func (r *Registry) EmitToPlayers(ids []uuid.UUID, ev Event) {
	ev = r.stamp(ev)
	r.mu.Lock()
	targets := make([]*listener, 0, len(ids))
	for _, id := range ids {
		if l, ok := r.listeners[id]; ok {
			targets = append(targets, l)
		}
	}
	r.mu.Unlock()
	r.deliverAll(targets, ev)
}

// Broadcast delivers ev to every registered listener.
func (r *Registry) Broadcast(ev Event) {
	r.deliverAll(r.snapshot(), r.stamp(ev))
}

func (r *Registry) snapshot() []*listener {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*listener, 0, len(r.listeners))
	for _, l := range r.listeners {
		out = append(out, l)
	}
	return out
}

func (r *Registry) stamp(ev Event) Event {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if ev.Kind == "" {
		ev.Kind = KindMessage
	}
	if ev.Kind == KindMessage && ev.ID == 0 {
		ev.ID = r.nextID.Add(1)
	}
	return ev
}

func (r *Registry) deliverAll(targets []*listener, ev Event) {
	for _, l := range targets {
		if err := r.deliver(l, ev); err != nil {
			r.log.WithFields(logrus.Fields{
				"player": l.playerID,
				"type":   ev.Type,
				"kind":   ev.Kind,
			}).WithError(err).Warn("event delivery failed")
			r.drop(l, err)
		}
	}
}

// deliver isolates one listener: its errors and panics never reach the caller.
func (r *Registry) deliver(l *listener, ev Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("listener panicked: %v", p)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), r.sendTimeout)
	defer cancel()
	return l.ch.Send(ctx, ev)
}

// Run sends a keep-alive to every listener each heartbeat period until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.beat(now)
		}
	}
}

// beat never propagates failures; broken listeners are dropped.
func (r *Registry) beat(now time.Time) {
	ev := KeepAlive(now)
	for _, l := range r.snapshot() {
		if err := r.deliver(l, ev); err != nil {
			r.drop(l, err)
		}
	}
}

// Close drops every listener and closes channels that support it.
func (r *Registry) Close() {
	for _, l := range r.snapshot() {
		r.drop(l, nil)
		if c, ok := l.ch.(io.Closer); ok {
			_ = c.Close()
		}
	}
}
