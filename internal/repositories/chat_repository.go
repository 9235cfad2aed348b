package repositories

import (
	"context"
	"fmt"

	"github.com/anonto42/yellowcard/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ChatRepository defines the interface for chatbot transcript operations
type ChatRepository interface {
	SaveMessages(ctx context.Context, messages ...models.ChatMessage) error
	GetConversation(ctx context.Context, uid string, limit int64) ([]models.ChatMessage, error)
}

// MongoChatRepository implements ChatRepository for MongoDB
type MongoChatRepository struct {
	collection *mongo.Collection
}

// NewMongoChatRepository creates a new MongoChatRepository
func NewMongoChatRepository(db *mongo.Database) *MongoChatRepository {
	return &MongoChatRepository{collection: db.Collection("chat_messages")}
}

// SaveMessages appends messages to the member's transcript
func (r *MongoChatRepository) SaveMessages(ctx context.Context, messages ...models.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	docs := make([]interface{}, len(messages))
	for i, m := range messages {
		docs[i] = m
	}
	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("save chat messages: %w", err)
	}
	return nil
}

// GetConversation returns the member's most recent messages, oldest first
func (r *MongoChatRepository) GetConversation(ctx context.Context, uid string, limit int64) ([]models.ChatMessage, error) {
	findOptions := options.Find().SetLimit(limit).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"uid": uid}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []models.ChatMessage
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// NopChatRepository discards transcripts when MongoDB is not configured
type NopChatRepository struct{}

func (NopChatRepository) SaveMessages(context.Context, ...models.ChatMessage) error { return nil }

func (NopChatRepository) GetConversation(context.Context, string, int64) ([]models.ChatMessage, error) {
	return nil, nil
}
