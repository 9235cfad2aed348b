package repositories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/anonto42/yellowcard/backend/internal/models"
	"github.com/anonto42/yellowcard/backend/internal/readstate"
)

// ContentRepository reads the content collections from Firestore and serves
// them as readstate feeds.
type ContentRepository interface {
	readstate.Source
	CreateNotification(ctx context.Context, title, body string) (*models.ContentItem, error)
}

var _ ContentRepository = (*FirestoreContentRepository)(nil)

// FirestoreContentRepository implements ContentRepository for Firestore
type FirestoreContentRepository struct {
	client *firestore.Client
	logger *slog.Logger
}

// NewFirestoreContentRepository creates a new FirestoreContentRepository
func NewFirestoreContentRepository(client *firestore.Client, logger *slog.Logger) *FirestoreContentRepository {
	return &FirestoreContentRepository{client: client, logger: logger.With("repository", "content")}
}

func (r *FirestoreContentRepository) query(c readstate.Category) firestore.Query {
	return r.client.Collection(c.Collection()).OrderBy(c.OrderBy(), firestore.Desc)
}

// Subscribe opens a live query on the category's collection.
func (r *FirestoreContentRepository) Subscribe(ctx context.Context, c readstate.Category) (readstate.SnapshotIterator, error) {
	return &snapshotIterator{
		it:       r.query(c).Snapshots(ctx),
		category: c,
		repo:     r,
	}, nil
}

// Fetch reads the category's collection once.
func (r *FirestoreContentRepository) Fetch(ctx context.Context, c readstate.Category) ([]models.ContentItem, error) {
	docs, err := r.query(c).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", c.Collection(), err)
	}
	return r.decode(c, docs), nil
}

// CreateNotification stores a new notification; createdAt is set by the server.
func (r *FirestoreContentRepository) CreateNotification(ctx context.Context, title, body string) (*models.ContentItem, error) {
	ref, _, err := r.client.Collection(readstate.Notifications.Collection()).Add(ctx, map[string]interface{}{
		"title":     title,
		"body":      body,
		"createdAt": firestore.ServerTimestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("read back notification: %w", err)
	}
	var rec models.NotificationRecord
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	item, err := rec.Item(ref.ID)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// decode converts documents to items, skipping records that fail validation.
func (r *FirestoreContentRepository) decode(c readstate.Category, docs []*firestore.DocumentSnapshot) []models.ContentItem {
	items := make([]models.ContentItem, 0, len(docs))
	for _, doc := range docs {
		item, err := decodeDocument(c, doc)
		if err != nil {
			r.logger.Warn("quarantined malformed record", "collection", c.Collection(), "id", doc.Ref.ID, "error", err)
			continue
		}
		items = append(items, item)
	}
	return items
}

func decodeDocument(c readstate.Category, doc *firestore.DocumentSnapshot) (models.ContentItem, error) {
	if c == readstate.Notifications {
		var rec models.NotificationRecord
		if err := doc.DataTo(&rec); err != nil {
			return models.ContentItem{}, fmt.Errorf("%w: %v", models.ErrMalformedRecord, err)
		}
		return rec.Item(doc.Ref.ID)
	}
	var rec models.PostRecord
	if err := doc.DataTo(&rec); err != nil {
		return models.ContentItem{}, fmt.Errorf("%w: %v", models.ErrMalformedRecord, err)
	}
	return rec.Item(doc.Ref.ID)
}

type snapshotIterator struct {
	it       *firestore.QuerySnapshotIterator
	category readstate.Category
	repo     *FirestoreContentRepository
}

func (s *snapshotIterator) Next() ([]models.ContentItem, error) {
	snap, err := s.it.Next()
	if errors.Is(err, iterator.Done) {
		return nil, readstate.ErrEndOfFeed
	}
	if err != nil {
		return nil, err
	}
	docs, err := snap.Documents.GetAll()
	if err != nil {
		return nil, fmt.Errorf("read %s snapshot: %w", s.category.Collection(), err)
	}
	return s.repo.decode(s.category, docs), nil
}

func (s *snapshotIterator) Stop() { s.it.Stop() }
