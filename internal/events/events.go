// Package events implements the synchronous publish/subscribe notifier that
// tells independent consumers about content changes.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Kind names an event.
type Kind string

// Event kinds emitted by the content store.
const (
	NewsAdded           Kind = "newsAdded"
	NewsUpdated         Kind = "newsUpdated"
	NewsDeleted         Kind = "newsDeleted"
	NewsPhotoUpdated    Kind = "newsPhotoUpdated"
	ProjectAdded        Kind = "projectAdded"
	ProjectUpdated      Kind = "projectUpdated"
	ProjectDeleted      Kind = "projectDeleted"
	ProjectPhotoUpdated Kind = "projectPhotoUpdated"
	DataSaved           Kind = "dataSaved"
	DataRefreshed       Kind = "dataRefreshed"
	DataForceReloaded   Kind = "dataForceReloaded"
	DataImported        Kind = "dataImported"
)

// Kinds lists every known kind.
var Kinds = []Kind{
	NewsAdded, NewsUpdated, NewsDeleted, NewsPhotoUpdated,
	ProjectAdded, ProjectUpdated, ProjectDeleted, ProjectPhotoUpdated,
	DataSaved, DataRefreshed, DataForceReloaded, DataImported,
}

// Event is a single notification.
//
// Before is the state prior to the change when there was one; After is the
// resulting state or payload.
type Event struct {
	Kind   Kind      `json:"type"`
	Time   time.Time `json:"timestamp"`
	Before any       `json:"before,omitempty"`
	After  any       `json:"data,omitempty"`
}

// Handler receives events. A returned error is logged and otherwise ignored.
type Handler func(ctx context.Context, e Event) error

type subscription struct {
	id   uint64
	kind Kind // empty means every kind
	fn   Handler
}

// Notifier fans events out to subscribers.
//
// Delivery is synchronous and in subscription order. There is no replay: a
// subscriber only sees events notified after it subscribed.
type Notifier struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

// New returns a Notifier with no subscribers.
func New() *Notifier {
	return &Notifier{}
}

// Subscribe registers fn for kind and returns a function that removes it.
func (n *Notifier) Subscribe(kind Kind, fn Handler) (unsubscribe func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	id := n.nextID
	n.subs = append(n.subs, subscription{id: id, kind: kind, fn: fn})
	return func() { n.remove(id) }
}

// SubscribeAll registers fn for every kind.
func (n *Notifier) SubscribeAll(fn Handler) (unsubscribe func()) {
	return n.Subscribe("", fn)
}

func (n *Notifier) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, s := range n.subs {
		if s.id == id {
			n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
			return
		}
	}
}

// Len returns the number of subscriptions.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}

// Notify delivers e to every matching subscriber.
//
// A subscriber that fails or panics is logged and does not prevent delivery
// to the others. Subscribers may call Subscribe or Notify reentrantly.
func (n *Notifier) Notify(ctx context.Context, e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	n.mu.RLock()
	subs := make([]subscription, 0, len(n.subs))
	for _, s := range n.subs {
		if s.kind == "" || s.kind == e.Kind {
			subs = append(subs, s)
		}
	}
	n.mu.RUnlock()
	for _, s := range subs {
		if err := deliver(ctx, s.fn, e); err != nil {
			slog.ErrorContext(ctx, "Event subscriber failed", "event", e.Kind, "err", err)
		}
	}
}

func deliver(ctx context.Context, fn Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, e)
}
