// Package push registers device tokens and broadcasts notifications through
// Firebase Cloud Messaging.
package push

import (
	"context"
	"fmt"
	"log/slog"

	"firebase.google.com/go/v4/messaging"

	"github.com/anonto42/yellowcard/backend/internal/models"
	"github.com/anonto42/yellowcard/backend/internal/repositories"
)

// Messenger is the subset of the FCM client used here.
type Messenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
	SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error)
}

// Service persists push tokens, subscribes them to the announcement topic and
// sends notifications to that topic.
type Service struct {
	messenger Messenger
	devices   repositories.DeviceRepository
	topic     string
	logger    *slog.Logger
}

func NewService(messenger Messenger, devices repositories.DeviceRepository, topic string, logger *slog.Logger) *Service {
	return &Service{
		messenger: messenger,
		devices:   devices,
		topic:     topic,
		logger:    logger.With("component", "push"),
	}
}

// RegisterDevice stores the token for uid and subscribes it to the topic.
func (s *Service) RegisterDevice(ctx context.Context, uid string, req models.RegisterDeviceRequest) (*models.DeviceToken, error) {
	device := &models.DeviceToken{UID: uid, Token: req.Token, Platform: req.Platform}
	if err := s.devices.UpsertDevice(device); err != nil {
		return nil, fmt.Errorf("store device token: %w", err)
	}

	resp, err := s.messenger.SubscribeToTopic(ctx, []string{req.Token}, s.topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", s.topic, err)
	}
	if resp != nil && resp.FailureCount > 0 {
		reason := "unknown"
		if len(resp.Errors) > 0 && resp.Errors[0] != nil {
			reason = resp.Errors[0].Reason
		}
		s.logger.Warn("topic subscription rejected token", "uid", uid, "reason", reason)
		if err := s.devices.DeleteDevice(req.Token); err != nil {
			s.logger.Error("removing rejected token failed", "uid", uid, "error", err)
		}
		return nil, fmt.Errorf("%w: %s", ErrTokenRejected, reason)
	}

	s.logger.Info("device registered", "uid", uid, "platform", req.Platform)
	return device, nil
}

// ListDevices returns the tokens registered for uid, most recent first.
func (s *Service) ListDevices(_ context.Context, uid string) ([]models.DeviceToken, error) {
	devices, err := s.devices.GetByUID(uid)
	if err != nil {
		return nil, fmt.Errorf("list devices of %s: %w", uid, err)
	}
	if devices == nil {
		devices = []models.DeviceToken{}
	}
	return devices, nil
}

// Broadcast sends a notification to every subscribed device.
func (s *Service) Broadcast(ctx context.Context, item *models.ContentItem) error {
	id, err := s.messenger.Send(ctx, &messaging.Message{
		Topic: s.topic,
		Notification: &messaging.Notification{
			Title: item.Title,
			Body:  item.Body,
		},
		Data: map[string]string{
			"category": "notifications",
			"id":       item.ID,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "default",
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send to topic %s: %w", s.topic, err)
	}
	s.logger.Info("notification broadcast", "id", item.ID, "message_id", id)
	return nil
}
