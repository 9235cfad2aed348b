package readstate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/anonto42/yellowcard/backend/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memKV struct {
	mu     sync.Mutex
	data   map[string]string
	sets   int
	getErr error
	setErr error
}

func newMemKV() *memKV { return &memKV{data: make(map[string]string)} }

func (m *memKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.sets++
	m.data[key] = value
	return nil
}

func (m *memKV) writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

// chanIterator yields whatever is pushed onto its channels and honors ctx.
type chanIterator struct {
	ctx     context.Context
	updates chan []models.ContentItem
	errs    chan error
	stopped chan struct{}
	once    sync.Once
}

func (it *chanIterator) Next() ([]models.ContentItem, error) {
	select {
	case items := <-it.updates:
		return items, nil
	case err := <-it.errs:
		return nil, err
	case <-it.ctx.Done():
		return nil, it.ctx.Err()
	}
}

func (it *chanIterator) Stop() { it.once.Do(func() { close(it.stopped) }) }

type fakeSource struct {
	// gate, when set, holds Subscribe until it is closed; subscribing is
	// signalled first.
	gate        chan struct{}
	subscribing chan struct{}

	mu       sync.Mutex
	iters    map[Category][]*chanIterator
	fetched  map[Category][]models.ContentItem
	fetchErr error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		iters:   make(map[Category][]*chanIterator),
		fetched: make(map[Category][]models.ContentItem),
	}
}

func (f *fakeSource) Subscribe(ctx context.Context, c Category) (SnapshotIterator, error) {
	if f.gate != nil {
		f.subscribing <- struct{}{}
		<-f.gate
	}
	it := &chanIterator{
		ctx:     ctx,
		updates: make(chan []models.ContentItem),
		errs:    make(chan error, 1),
		stopped: make(chan struct{}),
	}
	f.mu.Lock()
	f.iters[c] = append(f.iters[c], it)
	f.mu.Unlock()
	return it, nil
}

func (f *fakeSource) Fetch(_ context.Context, c Category) ([]models.ContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]models.ContentItem(nil), f.fetched[c]...), nil
}

func (f *fakeSource) iter(c Category, i int) *chanIterator {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.iters[c][i]
}

func (f *fakeSource) subscriptions(c Category) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.iters[c])
}

var errUpstream = errors.New("upstream unavailable")

var base = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

// items builds content items whose CreatedAt descends in argument order.
func items(ids ...string) []models.ContentItem {
	out := make([]models.ContentItem, len(ids))
	for i, id := range ids {
		out[i] = models.ContentItem{ID: id, Title: "title " + id, CreatedAt: base.Add(-time.Duration(i) * time.Minute)}
	}
	return out
}

type recordingSink struct {
	mu     sync.Mutex
	badges []Badge
	ctxErr error
	// hold, when set, blocks every publish until it is closed
	hold    chan struct{}
	entered chan struct{}
}

func (r *recordingSink) PublishBadge(ctx context.Context, b Badge) error {
	if r.hold != nil {
		select {
		case r.entered <- struct{}{}:
		default:
		}
		<-r.hold
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.badges = append(r.badges, b)
	r.ctxErr = ctx.Err()
	return nil
}

func (r *recordingSink) lastCtxErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ctxErr
}

func (r *recordingSink) published() []Badge {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Badge(nil), r.badges...)
}
