package readstate

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/anonto42/yellowcard/backend/internal/models"
)

// ErrEndOfFeed is returned by a SnapshotIterator whose upstream closed cleanly.
var ErrEndOfFeed = errors.New("end of feed")

// SnapshotIterator yields complete, ordered snapshots of one collection.
// Next blocks until the upstream changes; Stop releases the connection and
// must not be called concurrently with Next.
type SnapshotIterator interface {
	Next() ([]models.ContentItem, error)
	Stop()
}

// Source is the document database the feeds are read from.
type Source interface {
	Subscribe(ctx context.Context, c Category) (SnapshotIterator, error)
	Fetch(ctx context.Context, c Category) ([]models.ContentItem, error)
}

// Feed turns a Source into live subscriptions and one-shot reads.
type Feed struct {
	source Source
	logger *slog.Logger
}

func NewFeed(source Source, logger *slog.Logger) *Feed {
	return &Feed{source: source, logger: logger.With("component", "feed")}
}

// Fetch reads the current contents of a category once.
func (f *Feed) Fetch(ctx context.Context, c Category) ([]models.ContentItem, error) {
	items, err := f.source.Fetch(ctx, c)
	if err != nil {
		f.logger.Error("fetching feed failed", "category", c, "error", err)
		return nil, err
	}
	sortItems(items)
	return items, nil
}

// Subscribe opens a live subscription. Every value received from
// Subscription.Snapshots is a full replacement of the previous one.
func (f *Feed) Subscribe(ctx context.Context, c Category) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	it, err := f.source.Subscribe(ctx, c)
	if err != nil {
		cancel()
		return nil, err
	}
	sub := &Subscription{
		category:  c,
		iter:      it,
		cancel:    cancel,
		snapshots: make(chan []models.ContentItem),
		done:      make(chan struct{}),
		logger:    f.logger,
	}
	go sub.pump(ctx)
	return sub, nil
}

// Subscription is one live connection to a category feed.
type Subscription struct {
	category  Category
	iter      SnapshotIterator
	cancel    context.CancelFunc
	snapshots chan []models.ContentItem
	done      chan struct{}
	logger    *slog.Logger

	mu  sync.Mutex
	err error
}

// Snapshots delivers snapshots in upstream order. It is closed when the
// subscription ends.
func (s *Subscription) Snapshots() <-chan []models.ContentItem { return s.snapshots }

// Done is closed once the subscription has ended for any reason.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err reports the upstream failure that ended the subscription, if any.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Unsubscribe ends the subscription. No snapshot is delivered after it returns.
func (s *Subscription) Unsubscribe() {
	s.cancel()
	<-s.done
}

func (s *Subscription) pump(ctx context.Context) {
	defer close(s.done)
	defer close(s.snapshots)
	defer s.iter.Stop()

	for {
		items, err := s.iter.Next()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, ErrEndOfFeed) {
				s.logger.Error("feed subscription failed", "category", s.category, "error", err)
				s.mu.Lock()
				s.err = err
				s.mu.Unlock()
			}
			return
		}
		sortItems(items)
		select {
		case s.snapshots <- items:
		case <-ctx.Done():
			return
		}
	}
}

// sortItems orders newest first, breaking ties by ID.
func sortItems(items []models.ContentItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
}
