package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrMalformedRecord marks a document that does not match its category schema.
var ErrMalformedRecord = errors.New("malformed content record")

var recordValidator = validator.New()

// ContentItem is a notification, benefit or announcement as served to clients.
// Items are replaced wholesale on every feed update and never patched in place.
type ContentItem struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Section    string    `json:"category,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	Attachment string    `json:"attachment,omitempty"`
}

// NotificationRecord is the Firestore shape of the notifications collection.
type NotificationRecord struct {
	Title     string    `firestore:"title" validate:"max=200"`
	Body      string    `firestore:"body" validate:"max=5000"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// Item validates the record and converts it to a ContentItem.
func (r NotificationRecord) Item(id string) (ContentItem, error) {
	if err := checkRecord(id, r, r.CreatedAt); err != nil {
		return ContentItem{}, err
	}
	return ContentItem{
		ID:        id,
		Title:     r.Title,
		Body:      r.Body,
		CreatedAt: r.CreatedAt,
	}, nil
}

// PostRecord is the Firestore shape shared by the announcements and benefits collections.
type PostRecord struct {
	Title      string    `firestore:"title" validate:"max=200"`
	Content    string    `firestore:"content"`
	Category   string    `firestore:"category,omitempty" validate:"max=100"`
	Timestamp  time.Time `firestore:"timestamp"`
	Attachment string    `firestore:"attachment,omitempty" validate:"omitempty,url"`
}

// Item validates the record and converts it to a ContentItem.
func (r PostRecord) Item(id string) (ContentItem, error) {
	if err := checkRecord(id, r, r.Timestamp); err != nil {
		return ContentItem{}, err
	}
	title := r.Title
	if title == "" {
		title = "Untitled Post"
	}
	return ContentItem{
		ID:         id,
		Title:      title,
		Body:       r.Content,
		Section:    r.Category,
		CreatedAt:  r.Timestamp,
		Attachment: r.Attachment,
	}, nil
}

func checkRecord(id string, record any, orderedBy time.Time) error {
	if id == "" {
		return fmt.Errorf("%w: missing document id", ErrMalformedRecord)
	}
	if orderedBy.IsZero() {
		return fmt.Errorf("%w: %s has no timestamp", ErrMalformedRecord, id)
	}
	if err := recordValidator.Struct(record); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedRecord, id, err)
	}
	return nil
}

// CreateNotificationRequest defines the request body for publishing a notification
type CreateNotificationRequest struct {
	Title string `json:"title" validate:"required,min=1,max=200"`
	Body  string `json:"body" validate:"required,min=1,max=5000"`
}
