package handlers

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"github.com/anonto42/yellowcard/backend/internal/models"
	"github.com/anonto42/yellowcard/backend/internal/readstate"
)

// IdentityProvider is the slice of the Firebase auth client the handlers use.
type IdentityProvider interface {
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	UpdateUser(ctx context.Context, uid string, user *auth.UserToUpdate) (*auth.UserRecord, error)
	DeleteUser(ctx context.Context, uid string) error
}

type MemberStore interface {
	CreateMember(ctx context.Context, member *models.Member) error
	GetMember(ctx context.Context, uid string) (*models.Member, error)
}

type FeedbackStore interface {
	CreateFeedback(ctx context.Context, feedback *models.Feedback) (string, error)
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, title, body string) (*models.ContentItem, error)
}

// ReadState is implemented by *readstate.Hub.
type ReadState interface {
	Acquire(ctx context.Context, owner string, c readstate.Category) (*readstate.Session, error)
	Release(s *readstate.Session)
	MarkRead(ctx context.Context, owner string, c readstate.Category, id string) (readstate.ReadSet, error)
	Snapshot(ctx context.Context, owner string, c readstate.Category) (readstate.View, error)
	Badges(ctx context.Context, owner string) ([]readstate.Badge, error)
}

type Pusher interface {
	RegisterDevice(ctx context.Context, uid string, req models.RegisterDeviceRequest) (*models.DeviceToken, error)
	ListDevices(ctx context.Context, uid string) ([]models.DeviceToken, error)
	Broadcast(ctx context.Context, item *models.ContentItem) error
}

type Chatbot interface {
	Greeting() models.ChatResponse
	Respond(ctx context.Context, uid, text string) models.ChatResponse
	History(ctx context.Context, uid string, limit int64) ([]models.ChatMessage, error)
}
