package repositories

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/anonto42/yellowcard/backend/internal/models"
)

// ErrMemberNotFound is returned when users/{uid} does not exist.
var ErrMemberNotFound = errors.New("member profile not found")

// MemberRepository defines the interface for member profile operations
type MemberRepository interface {
	CreateMember(ctx context.Context, member *models.Member) error
	GetMember(ctx context.Context, uid string) (*models.Member, error)
}

// FirestoreMemberRepository implements MemberRepository for Firestore
type FirestoreMemberRepository struct {
	collection *firestore.CollectionRef
}

// NewFirestoreMemberRepository creates a new FirestoreMemberRepository
func NewFirestoreMemberRepository(client *firestore.Client) *FirestoreMemberRepository {
	return &FirestoreMemberRepository{collection: client.Collection("users")}
}

// CreateMember writes users/{uid}
func (r *FirestoreMemberRepository) CreateMember(ctx context.Context, member *models.Member) error {
	if member.UID == "" {
		return fmt.Errorf("member uid is empty")
	}
	if _, err := r.collection.Doc(member.UID).Set(ctx, member); err != nil {
		return fmt.Errorf("create member %s: %w", member.UID, err)
	}
	return nil
}

// GetMember reads users/{uid}
func (r *FirestoreMemberRepository) GetMember(ctx context.Context, uid string) (*models.Member, error) {
	snap, err := r.collection.Doc(uid).Get(ctx)
	if snap != nil && !snap.Exists() {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get member %s: %w", uid, err)
	}

	var member models.Member
	if err := snap.DataTo(&member); err != nil {
		return nil, fmt.Errorf("decode member %s: %w", uid, err)
	}
	member.UID = uid
	return &member, nil
}
