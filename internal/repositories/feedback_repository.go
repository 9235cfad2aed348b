package repositories

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/anonto42/yellowcard/backend/internal/models"
)

// FeedbackRepository defines the interface for member feedback
type FeedbackRepository interface {
	CreateFeedback(ctx context.Context, feedback *models.Feedback) (string, error)
}

// FirestoreFeedbackRepository implements FeedbackRepository for Firestore
type FirestoreFeedbackRepository struct {
	collection *firestore.CollectionRef
}

// NewFirestoreFeedbackRepository creates a new FirestoreFeedbackRepository
func NewFirestoreFeedbackRepository(client *firestore.Client) *FirestoreFeedbackRepository {
	return &FirestoreFeedbackRepository{collection: client.Collection("feedbacks")}
}

// CreateFeedback adds a feedback document and returns its ID
func (r *FirestoreFeedbackRepository) CreateFeedback(ctx context.Context, feedback *models.Feedback) (string, error) {
	ref, _, err := r.collection.Add(ctx, feedback)
	if err != nil {
		return "", fmt.Errorf("create feedback: %w", err)
	}
	return ref.ID, nil
}
