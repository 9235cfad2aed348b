package readstate

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
)

const badgeLimit = 99

// Present maps an unread count to the badge text. ok is false when no badge
// should be shown.
func Present(count int) (value string, ok bool) {
	switch {
	case count <= 0:
		return "", false
	case count > badgeLimit:
		return strconv.Itoa(badgeLimit) + "+", true
	default:
		return strconv.Itoa(count), true
	}
}

// Badge is one unread indicator for one member's category tab.
type Badge struct {
	Owner    string   `json:"owner"`
	Category Category `json:"category"`
	Count    int      `json:"count"`
	Value    string   `json:"value,omitempty"`
	Visible  bool     `json:"visible"`
}

// NewBadge builds the badge for a count.
func NewBadge(owner string, c Category, count int) Badge {
	value, ok := Present(count)
	return Badge{Owner: owner, Category: c, Count: count, Value: value, Visible: ok}
}

// BadgeSink receives badge changes, e.g. a push gateway setting the app-icon badge.
type BadgeSink interface {
	PublishBadge(ctx context.Context, badge Badge) error
}

// Emitter forwards badge changes to its sinks, suppressing repeats. Sinks are
// called from a single worker in emit order, so a slow sink never blocks the
// caller of Emit.
type Emitter struct {
	sinks  []BadgeSink
	logger *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	last   map[string]int
	queue  []pendingBadge
	closed bool
	done   chan struct{}
}

type pendingBadge struct {
	ctx   context.Context
	badge Badge
}

func NewEmitter(logger *slog.Logger, sinks ...BadgeSink) *Emitter {
	e := &Emitter{
		sinks:  sinks,
		logger: logger.With("component", "badge_emitter"),
		last:   make(map[string]int),
		done:   make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	go e.loop()
	return e
}

// Emit queues the badge for count if it differs from the last one emitted
// for the same owner and category.
func (e *Emitter) Emit(ctx context.Context, owner string, c Category, count int) Badge {
	badge := NewBadge(owner, c, count)
	key := MarkerKey(owner, c)

	e.mu.Lock()
	defer e.mu.Unlock()
	prev, seen := e.last[key]
	e.last[key] = count
	if seen && prev == count {
		return badge
	}
	if e.closed {
		e.logger.Debug("badge dropped after close", "owner", owner, "category", c)
		return badge
	}
	e.queue = append(e.queue, pendingBadge{ctx: context.WithoutCancel(ctx), badge: badge})
	e.cond.Signal()
	return badge
}

// Forget drops the remembered count so the next Emit always publishes.
func (e *Emitter) Forget(owner string, c Category) {
	e.mu.Lock()
	delete(e.last, MarkerKey(owner, c))
	e.mu.Unlock()
}

// Close publishes whatever is still queued and stops the worker.
func (e *Emitter) Close() {
	e.mu.Lock()
	e.closed = true
	e.cond.Broadcast()
	e.mu.Unlock()
	<-e.done
}

func (e *Emitter) loop() {
	defer close(e.done)
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.queue) == 0 {
			e.mu.Unlock()
			return
		}
		next := e.queue[0]
		e.queue[0] = pendingBadge{}
		e.queue = e.queue[1:]
		e.mu.Unlock()

		e.publish(next)
	}
}

func (e *Emitter) publish(p pendingBadge) {
	for _, sink := range e.sinks {
		if err := sink.PublishBadge(p.ctx, p.badge); err != nil {
			e.logger.Error("publishing badge failed", "owner", p.badge.Owner, "category", p.badge.Category, "error", err)
		}
	}
}
