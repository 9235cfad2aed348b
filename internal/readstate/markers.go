package readstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrEmptyID is returned when a blank content ID is marked read.
var ErrEmptyID = errors.New("content id is empty")

var errCorruptMarkers = errors.New("corrupt read markers")

// KV is the durable key-value store read markers are persisted to.
type KV interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Markers is the read-marker store. Writes are serialized per key and merged
// with whatever is already persisted, so concurrent owners never drop marks.
type Markers struct {
	kv     KV
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMarkers(kv KV, logger *slog.Logger) *Markers {
	return &Markers{
		kv:     kv,
		logger: logger.With("component", "read_markers"),
		locks:  make(map[string]*sync.Mutex),
	}
}

// MarkerKey is the durable key for one member's markers in one category.
func MarkerKey(owner string, c Category) string {
	return owner + "/" + c.StorageKey()
}

// Load returns the persisted read set. It never fails: a missing, unreadable or
// corrupt value yields an empty set.
func (m *Markers) Load(ctx context.Context, owner string, c Category) ReadSet {
	key := MarkerKey(owner, c)
	set, err := m.read(ctx, key)
	if err != nil {
		m.logger.Warn("loading read markers failed, starting empty", "key", key, "error", err)
		return NewReadSet()
	}
	return set
}

// MarkRead adds id to the persisted set and returns the set as stored.
// Marking an id that is already present does not write.
func (m *Markers) MarkRead(ctx context.Context, owner string, c Category, id string) (ReadSet, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	key := MarkerKey(owner, c)

	lock := m.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	set, err := m.read(ctx, key)
	if errors.Is(err, errCorruptMarkers) {
		m.logger.Warn("overwriting corrupt read markers", "key", key, "error", err)
		set = NewReadSet()
	} else if err != nil {
		return nil, fmt.Errorf("load read markers: %w", err)
	}

	if !set.Add(id) {
		return set, nil
	}

	raw, err := json.Marshal(set.IDs())
	if err != nil {
		return nil, fmt.Errorf("encode read markers: %w", err)
	}
	if err := m.kv.Set(ctx, key, string(raw)); err != nil {
		return nil, fmt.Errorf("persist read markers: %w", err)
	}

	m.logger.Debug("marked read", "key", key, "id", id, "total", len(set))
	return set, nil
}

func (m *Markers) read(ctx context.Context, key string) (ReadSet, error) {
	raw, found, err := m.kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found || raw == "" {
		return NewReadSet(), nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptMarkers, err)
	}
	return NewReadSet(ids...), nil
}

func (m *Markers) lockFor(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}
