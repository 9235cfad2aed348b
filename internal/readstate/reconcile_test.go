package readstate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile(t *testing.T) {
	tests := []struct {
		name   string
		ids    []string
		read   ReadSet
		unread int
	}{
		{name: "nothing read", ids: []string{"n1", "n2"}, read: NewReadSet(), unread: 2},
		{name: "one read", ids: []string{"n1", "n2"}, read: NewReadSet("n1"), unread: 1},
		{name: "new item arrives", ids: []string{"n3", "n1", "n2"}, read: NewReadSet("n1"), unread: 2},
		{name: "marker for vanished item", ids: []string{"n2"}, read: NewReadSet("n1", "n2"), unread: 0},
		{name: "empty feed", ids: nil, read: NewReadSet("n1"), unread: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := Reconcile(items(tt.ids...), tt.read)
			assert.Equal(t, tt.unread, state.UnreadCount)
			assert.Len(t, state.Read, len(tt.ids))
			for _, id := range tt.ids {
				assert.Equal(t, tt.read.Has(id), state.Read[id], id)
			}
		})
	}
}

func TestReconcileLargeFeed(t *testing.T) {
	ids := make([]string, 150)
	for i := range ids {
		ids[i] = "n" + string(rune('a'+i%26)) + string(rune('a'+i/26))
	}
	state := Reconcile(items(ids...), NewReadSet())
	require.Equal(t, 150, state.UnreadCount)

	badge, ok := Present(state.UnreadCount)
	assert.True(t, ok)
	assert.Equal(t, "99+", badge)
}

func TestPresent(t *testing.T) {
	tests := []struct {
		count int
		want  string
		ok    bool
	}{
		{count: -1, want: "", ok: false},
		{count: 0, want: "", ok: false},
		{count: 1, want: "1", ok: true},
		{count: 5, want: "5", ok: true},
		{count: 99, want: "99", ok: true},
		{count: 100, want: "99+", ok: true},
		{count: 150, want: "99+", ok: true},
	}
	for _, tt := range tests {
		got, ok := Present(tt.count)
		assert.Equal(t, tt.want, got, "count %d", tt.count)
		assert.Equal(t, tt.ok, ok, "count %d", tt.count)
	}
}

func TestEmitterSuppressesRepeats(t *testing.T) {
	sink := &recordingSink{}
	e := NewEmitter(testLogger(), sink)
	ctx := context.Background()

	e.Emit(ctx, "u1", Notifications, 2)
	e.Emit(ctx, "u1", Notifications, 2)
	e.Emit(ctx, "u1", Notifications, 1)
	e.Emit(ctx, "u2", Notifications, 1)
	e.Forget("u1", Notifications)
	e.Emit(ctx, "u1", Notifications, 1)
	e.Close()

	got := sink.published()
	require.Len(t, got, 4)
	assert.Equal(t, "2", got[0].Value)
	assert.Equal(t, "1", got[1].Value)
	assert.Equal(t, "u2", got[2].Owner)
	assert.Equal(t, "u1", got[3].Owner)

	// nothing is published once closed
	e.Emit(ctx, "u3", Benefits, 5)
	assert.Len(t, sink.published(), 4)
}

func TestEmitterPublishesWithLiveContext(t *testing.T) {
	sink := &recordingSink{}
	e := NewEmitter(testLogger(), sink)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e.Emit(ctx, "u1", Announcements, 3)
	e.Close()

	require.Len(t, sink.published(), 1)
	assert.NoError(t, sink.lastCtxErr())
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("benefits")
	require.NoError(t, err)
	assert.Equal(t, Benefits, c)
	assert.Equal(t, "readBenefits", c.StorageKey())
	assert.Equal(t, "timestamp", c.OrderBy())

	assert.Equal(t, "readNotifs", Notifications.StorageKey())
	assert.Equal(t, "createdAt", Notifications.OrderBy())
	assert.Equal(t, "readPosts", Announcements.StorageKey())

	_, err = ParseCategory("stories")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}
