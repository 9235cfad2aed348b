// Package readstate keeps per-member read markers for the content feeds and
// derives unread counts and badges from live snapshots of those feeds.
package readstate

import (
	"errors"
	"fmt"
)

// ErrUnknownCategory is returned when a category name is not one of the content feeds.
var ErrUnknownCategory = errors.New("unknown content category")

// Category names one content feed.
type Category string

const (
	Notifications Category = "notifications"
	Announcements Category = "announcements"
	Benefits      Category = "benefits"
)

type categoryInfo struct {
	storageKey string
	collection string
	orderBy    string
}

var categories = map[Category]categoryInfo{
	Notifications: {storageKey: "readNotifs", collection: "notifications", orderBy: "createdAt"},
	Announcements: {storageKey: "readPosts", collection: "announcements", orderBy: "timestamp"},
	Benefits:      {storageKey: "readBenefits", collection: "benefits", orderBy: "timestamp"},
}

// Categories lists every content feed in a fixed order.
func Categories() []Category {
	return []Category{Notifications, Announcements, Benefits}
}

// ParseCategory validates a category name.
func ParseCategory(name string) (Category, error) {
	c := Category(name)
	if _, ok := categories[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, name)
	}
	return c, nil
}

// StorageKey is the durable key under which the category's read markers are kept.
func (c Category) StorageKey() string { return categories[c].storageKey }

// Collection is the upstream document collection backing the feed.
func (c Category) Collection() string { return categories[c].collection }

// OrderBy is the timestamp field the feed is sorted on, newest first.
func (c Category) OrderBy() string { return categories[c].orderBy }

func (c Category) String() string { return string(c) }
