package readstate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/yellowcard/backend/internal/models"
)

const waitFor = 2 * time.Second

func receive(t *testing.T, ch <-chan []models.ContentItem) []models.ContentItem {
	t.Helper()
	select {
	case got, ok := <-ch:
		require.True(t, ok, "snapshot channel closed")
		return got
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestFeedSubscribeDeliversFullSnapshots(t *testing.T) {
	src := newFakeSource()
	feed := NewFeed(src, testLogger())

	sub, err := feed.Subscribe(context.Background(), Notifications)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	it := src.iter(Notifications, 0)
	it.updates <- items("n1", "n2")
	assert.Equal(t, []string{"n1", "n2"}, ids(receive(t, sub.Snapshots())))

	it.updates <- items("n3", "n1", "n2")
	assert.Equal(t, []string{"n3", "n1", "n2"}, ids(receive(t, sub.Snapshots())))
}

func TestFeedOrdersNewestFirstWithIDTieBreak(t *testing.T) {
	src := newFakeSource()
	same := base
	src.fetched[Benefits] = []models.ContentItem{
		{ID: "b", CreatedAt: same},
		{ID: "old", CreatedAt: base.Add(-time.Hour)},
		{ID: "a", CreatedAt: same},
		{ID: "new", CreatedAt: base.Add(time.Hour)},
	}

	got, err := NewFeed(src, testLogger()).Fetch(context.Background(), Benefits)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "a", "b", "old"}, ids(got))
}

func TestFeedUnsubscribeStopsEmissions(t *testing.T) {
	src := newFakeSource()
	sub, err := NewFeed(src, testLogger()).Subscribe(context.Background(), Announcements)
	require.NoError(t, err)

	sub.Unsubscribe()
	sub.Unsubscribe()

	_, ok := <-sub.Snapshots()
	assert.False(t, ok)
	assert.NoError(t, sub.Err())

	select {
	case <-src.iter(Announcements, 0).stopped:
	case <-time.After(waitFor):
		t.Fatal("iterator was not stopped")
	}
}

func TestFeedUpstreamErrorIsTerminal(t *testing.T) {
	src := newFakeSource()
	sub, err := NewFeed(src, testLogger()).Subscribe(context.Background(), Notifications)
	require.NoError(t, err)

	src.iter(Notifications, 0).errs <- errUpstream

	select {
	case <-sub.Done():
	case <-time.After(waitFor):
		t.Fatal("subscription did not end")
	}
	assert.ErrorIs(t, sub.Err(), errUpstream)
	_, ok := <-sub.Snapshots()
	assert.False(t, ok)
}

func TestFeedEndOfFeedIsClean(t *testing.T) {
	src := newFakeSource()
	sub, err := NewFeed(src, testLogger()).Subscribe(context.Background(), Notifications)
	require.NoError(t, err)

	src.iter(Notifications, 0).errs <- ErrEndOfFeed
	<-sub.Done()
	assert.NoError(t, sub.Err())
}

func TestFeedFetchError(t *testing.T) {
	src := newFakeSource()
	src.fetchErr = errUpstream
	_, err := NewFeed(src, testLogger()).Fetch(context.Background(), Notifications)
	assert.ErrorIs(t, err, errUpstream)
}

func ids(items []models.ContentItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}
