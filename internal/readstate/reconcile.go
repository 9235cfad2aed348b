package readstate

import "github.com/anonto42/yellowcard/backend/internal/models"

// UnreadState is derived from a snapshot and a read set; it is never persisted.
type UnreadState struct {
	UnreadCount int             `json:"unreadCount"`
	Read        map[string]bool `json:"read"`
}

// Reconcile flags each item as read or unread and counts the unread ones.
// It has no side effects, so calling it with inputs that are one event apart
// simply converges on the next call.
func Reconcile(items []models.ContentItem, read ReadSet) UnreadState {
	state := UnreadState{Read: make(map[string]bool, len(items))}
	for _, item := range items {
		isRead := read.Has(item.ID)
		state.Read[item.ID] = isRead
		if !isRead {
			state.UnreadCount++
		}
	}
	return state
}
