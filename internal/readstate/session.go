package readstate

import (
	"context"
	"log/slog"
	"sync"

	"github.com/anonto42/yellowcard/backend/internal/models"
)

// State is the lifecycle of a Session.
type State int

const (
	StateUnmounted State = iota
	StateLoading
	StateLive
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLive:
		return "live"
	default:
		return "unmounted"
	}
}

// View is what a client renders for one category: the current snapshot, its
// read flags and the badge.
type View struct {
	Category Category             `json:"category"`
	Items    []models.ContentItem `json:"items"`
	UnreadState
	Badge string `json:"badge,omitempty"`
}

func newView(c Category, items []models.ContentItem, read ReadSet) View {
	state := Reconcile(items, read)
	badge, _ := Present(state.UnreadCount)
	if items == nil {
		items = []models.ContentItem{}
	}
	return View{Category: c, Items: items, UnreadState: state, Badge: badge}
}

// Session keeps one member's view of one category live: it owns the read set
// and the feed subscription and recomputes the view on every event.
type Session struct {
	owner    string
	category Category
	feed     *Feed
	markers  *Markers
	emitter  *Emitter
	logger   *slog.Logger
	onEnd    func(*Session)

	mu        sync.Mutex
	state     State
	items     []models.ContentItem
	read      ReadSet
	view      View
	watchers  map[int]chan View
	nextWatch int
	ended     bool
	err       error

	sub  *Subscription
	stop context.CancelFunc
	done chan struct{}
}

func newSession(owner string, c Category, feed *Feed, markers *Markers, emitter *Emitter, logger *slog.Logger) *Session {
	return &Session{
		owner:    owner,
		category: c,
		feed:     feed,
		markers:  markers,
		emitter:  emitter,
		logger:   logger.With("owner", owner, "category", c),
		watchers: make(map[int]chan View),
		done:     make(chan struct{}),
	}
}

// start loads the read set and subscribes. The session outlives ctx; only
// unmount stops it.
func (s *Session) start(ctx context.Context) error {
	s.mu.Lock()
	s.state = StateLoading
	s.mu.Unlock()

	read := s.markers.Load(ctx, s.owner, s.category)

	runCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	sub, err := s.feed.Subscribe(runCtx, s.category)
	if err != nil {
		stop()
		s.mu.Lock()
		s.state = StateUnmounted
		s.ended = true
		s.err = err
		s.mu.Unlock()
		close(s.done)
		return err
	}

	// marks written while the subscription was opening
	read.Union(s.markers.Load(ctx, s.owner, s.category))

	s.mu.Lock()
	if s.read != nil {
		read.Union(s.read)
	}
	s.read = read
	s.sub = sub
	s.stop = stop
	s.mu.Unlock()

	go s.run(runCtx, sub)
	return nil
}

func (s *Session) run(ctx context.Context, sub *Subscription) {
	defer close(s.done)
	for {
		select {
		case items, ok := <-sub.Snapshots():
			if !ok {
				s.end(sub.Err())
				return
			}
			s.applySnapshot(ctx, items)
		case <-ctx.Done():
			s.end(nil)
			return
		}
	}
}

func (s *Session) applySnapshot(ctx context.Context, items []models.ContentItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateLoading {
		s.logger.Debug("session live", "items", len(items))
	}
	s.state = StateLive
	s.items = items
	s.publishLocked(ctx)
}

// MarkRead persists id as read and recomputes the view.
func (s *Session) MarkRead(ctx context.Context, id string) (ReadSet, error) {
	stored, err := s.markers.MarkRead(ctx, s.owner, s.category, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.read == nil {
		s.read = NewReadSet()
	}
	s.read.Union(stored)
	if s.state == StateLive {
		s.publishLocked(ctx)
	}
	return s.read.Clone(), nil
}

func (s *Session) publishLocked(ctx context.Context) {
	s.view = newView(s.category, s.items, s.read)
	s.emitter.Emit(ctx, s.owner, s.category, s.view.UnreadCount)
	for _, ch := range s.watchers {
		offer(ch, s.view)
	}
}

// offer replaces any undelivered view with v so slow watchers only see the latest.
func offer(ch chan View, v View) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- v
}

// Watch registers for view updates. The channel is primed with the current
// view when the session is live and is closed when the session ends.
func (s *Session) Watch() (<-chan View, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan View, 1)
	if s.ended {
		close(ch)
		return ch, func() {}
	}
	id := s.nextWatch
	s.nextWatch++
	s.watchers[id] = ch
	if s.state == StateLive {
		ch <- s.view
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if w, ok := s.watchers[id]; ok {
				delete(s.watchers, id)
				close(w)
			}
		})
	}
}

// View returns the latest view and whether the session has received a snapshot.
func (s *Session) View() (View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view, s.state == StateLive
}

// State reports where the session is in its lifecycle.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err reports the upstream failure that ended the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed once the session has unmounted.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) end(err error) {
	s.mu.Lock()
	s.state = StateUnmounted
	s.ended = true
	s.err = err
	for id, ch := range s.watchers {
		delete(s.watchers, id)
		close(ch)
	}
	onEnd := s.onEnd
	s.mu.Unlock()

	s.emitter.Forget(s.owner, s.category)
	if err != nil {
		s.logger.Error("session ended", "error", err)
	} else {
		s.logger.Debug("session unmounted")
	}
	if onEnd != nil {
		onEnd(s)
	}
}

// unmount stops the subscription and waits for the session to finish.
func (s *Session) unmount() {
	s.mu.Lock()
	sub, stop := s.sub, s.stop
	s.mu.Unlock()
	if stop == nil {
		return
	}
	stop()
	sub.Unsubscribe()
	<-s.done
}
