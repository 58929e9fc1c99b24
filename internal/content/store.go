package content

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/impa/website/internal/events"
	"github.com/impa/website/internal/kv"
)

// Store holds the news and project collections.
//
// All reads return copies. Mutations are serialized, persisted to the
// underlying kv.Store before they become visible, and rolled back on failure.
// Events are delivered after the store lock is released, so subscribers may
// call back into the store.
type Store struct {
	kv       kv.Store
	notifier *events.Notifier
	now      func() time.Time

	mu             sync.RWMutex
	news           []NewsItem
	projects       []ProjectItem
	lastNewsID     int64
	lastProjectNum int
	lastSaved      time.Time
	readOnly       bool
	// persisted caches the bytes last written per key, used to undo a
	// partially applied save.
	persisted map[string][]byte
}

// Option configures a Store.
type Option func(*Store)

// WithNotifier sets the event notifier. By default the store creates its own.
func WithNotifier(n *events.Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithReadOnly opens the store without writing to the kv.Store. A version
// mismatch shows the seed collections without clearing storage, and every
// mutation returns ErrReadOnly.
func WithReadOnly() Option {
	return func(s *Store) { s.readOnly = true }
}

// New loads the collections from store.
//
// When the stored version marker differs from Version, every stored key is
// deleted first and the seed collections are used. Load problems are logged
// and replaced by the seed; a failure to write the initial state is logged and
// does not prevent the store from serving.
func New(ctx context.Context, store kv.Store, opts ...Option) (*Store, error) {
	if store == nil {
		return nil, errors.New("content: kv store is required")
	}
	s := &Store{
		kv:        store,
		now:       time.Now,
		persisted: make(map[string][]byte),
	}
	for _, o := range opts {
		o(s)
	}
	if s.notifier == nil {
		s.notifier = events.New()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initLocked(ctx)
	return s, nil
}

// Notifier returns the notifier events are published on.
func (s *Store) Notifier() *events.Notifier {
	return s.notifier
}

// Backend returns the name of the underlying kv backend.
func (s *Store) Backend() string {
	return s.kv.Name()
}

func (s *Store) today() string {
	return Today(s.now())
}

type snapshot struct {
	news           []NewsItem
	projects       []ProjectItem
	lastNewsID     int64
	lastProjectNum int
}

func (s *Store) snapshotLocked() snapshot {
	return snapshot{
		news:           slices.Clone(s.news),
		projects:       slices.Clone(s.projects),
		lastNewsID:     s.lastNewsID,
		lastProjectNum: s.lastProjectNum,
	}
}

func (s *Store) restoreLocked(snap snapshot) {
	s.news = snap.news
	s.projects = snap.projects
	s.lastNewsID = snap.lastNewsID
	s.lastProjectNum = snap.lastProjectNum
}

func (s *Store) countsLocked() Counts {
	return Counts{News: len(s.news), Projects: len(s.projects)}
}

// mutate runs fn as a transaction.
//
// The collections are snapshotted, fn mutates them and returns the events to
// publish, then the result is validated and saved. Any failure restores the
// snapshot. On success dataSaved is published, followed by fn's events.
func (s *Store) mutate(ctx context.Context, op string, fn func() ([]events.Event, error)) error {
	if s.readOnly {
		return ErrReadOnly
	}
	s.mu.Lock()
	snap := s.snapshotLocked()
	evs, err := fn()
	if err == nil {
		err = s.saveLocked(ctx)
	}
	if err != nil {
		s.restoreLocked(snap)
		s.mu.Unlock()
		slog.ErrorContext(ctx, "Content mutation failed", "op", op, "err", err)
		return err
	}
	counts := s.countsLocked()
	s.mu.Unlock()

	s.notifier.Notify(ctx, events.Event{Kind: events.DataSaved, After: counts})
	for _, e := range evs {
		s.notifier.Notify(ctx, e)
	}
	return nil
}
