package readstate

import (
	"context"
	"log/slog"
	"sync"
)

// Hub is the single owner of every live Session. Screens that show the same
// member's category share one session, so there is only ever one in-memory
// read set per (member, category).
type Hub struct {
	feed    *Feed
	markers *Markers
	emitter *Emitter
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*hubEntry
	closed   bool
}

type hubEntry struct {
	session *Session
	refs    int
	ready   chan struct{}
	err     error
}

func NewHub(feed *Feed, markers *Markers, emitter *Emitter, logger *slog.Logger) *Hub {
	return &Hub{
		feed:     feed,
		markers:  markers,
		emitter:  emitter,
		logger:   logger.With("component", "read_state_hub"),
		sessions: make(map[string]*hubEntry),
	}
}

// Acquire mounts (or joins) the session for owner's category. Every successful
// Acquire must be paired with Release.
func (h *Hub) Acquire(ctx context.Context, owner string, c Category) (*Session, error) {
	key := MarkerKey(owner, c)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, context.Canceled
	}
	entry, ok := h.sessions[key]
	if ok {
		entry.refs++
		h.mu.Unlock()
		select {
		case <-entry.ready:
		case <-ctx.Done():
			h.Release(entry.session)
			return nil, ctx.Err()
		}
		if entry.err != nil {
			h.Release(entry.session)
			return nil, entry.err
		}
		return entry.session, nil
	}

	s := newSession(owner, c, h.feed, h.markers, h.emitter, h.logger)
	entry = &hubEntry{session: s, refs: 1, ready: make(chan struct{})}
	s.onEnd = h.forget
	h.sessions[key] = entry
	h.mu.Unlock()

	entry.err = s.start(ctx)
	close(entry.ready)
	if entry.err != nil {
		h.forget(s)
		return nil, entry.err
	}
	h.logger.Debug("session mounted", "key", key)
	return s, nil
}

// Release drops one reference; the last one unmounts the session.
func (h *Hub) Release(s *Session) {
	key := MarkerKey(s.owner, s.category)

	h.mu.Lock()
	entry, ok := h.sessions[key]
	if !ok || entry.session != s {
		h.mu.Unlock()
		return
	}
	entry.refs--
	if entry.refs > 0 {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, key)
	h.mu.Unlock()

	s.unmount()
}

// forget removes an ended session so the next Acquire starts a fresh one.
func (h *Hub) forget(s *Session) {
	key := MarkerKey(s.owner, s.category)
	h.mu.Lock()
	defer h.mu.Unlock()
	if entry, ok := h.sessions[key]; ok && entry.session == s {
		delete(h.sessions, key)
	}
}

// MarkRead records id as read. If a session is mounted the change goes through
// it, so every watcher sees the new unread count immediately.
// A session that is still loading is waited for, so the mark lands in its
// read set rather than only in storage.
func (h *Hub) MarkRead(ctx context.Context, owner string, c Category, id string) (ReadSet, error) {
	h.mu.Lock()
	entry, ok := h.sessions[MarkerKey(owner, c)]
	h.mu.Unlock()
	if ok {
		select {
		case <-entry.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if entry.err == nil {
			return entry.session.MarkRead(ctx, id)
		}
	}
	return h.markers.MarkRead(ctx, owner, c, id)
}

// Snapshot returns the current view, from the mounted session when there is
// one and from a one-shot fetch otherwise.
func (h *Hub) Snapshot(ctx context.Context, owner string, c Category) (View, error) {
	if s := h.live(owner, c); s != nil {
		if v, ok := s.View(); ok {
			return v, nil
		}
	}
	items, err := h.feed.Fetch(ctx, c)
	if err != nil {
		return View{}, err
	}
	read := h.markers.Load(ctx, owner, c)
	return newView(c, items, read), nil
}

// Badges returns the badge of every category for owner.
func (h *Hub) Badges(ctx context.Context, owner string) ([]Badge, error) {
	badges := make([]Badge, 0, len(categories))
	for _, c := range Categories() {
		v, err := h.Snapshot(ctx, owner, c)
		if err != nil {
			return nil, err
		}
		badges = append(badges, NewBadge(owner, c, v.UnreadCount))
	}
	return badges, nil
}

// Close unmounts every session and flushes pending badges. Acquire fails
// afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	entries := make([]*hubEntry, 0, len(h.sessions))
	for key, entry := range h.sessions {
		entries = append(entries, entry)
		delete(h.sessions, key)
	}
	h.mu.Unlock()

	for _, entry := range entries {
		<-entry.ready
		entry.session.unmount()
	}
	h.emitter.Close()
	h.logger.Info("read state hub closed", "sessions", len(entries))
}

func (h *Hub) live(owner string, c Category) *Session {
	h.mu.Lock()
	entry, ok := h.sessions[MarkerKey(owner, c)]
	h.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-entry.ready:
	default:
		return nil
	}
	if entry.err != nil {
		return nil
	}
	return entry.session
}
