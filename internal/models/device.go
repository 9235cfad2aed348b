package models

import "time"

// DeviceToken is a push delivery token registered by a member's device (PostgreSQL)
type DeviceToken struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UID       string    `json:"uid" gorm:"size:128;index"`
	Token     string    `json:"token" gorm:"size:512;uniqueIndex"`
	Platform  string    `json:"platform" gorm:"size:20"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RegisterDeviceRequest defines the request body for registering a push token
type RegisterDeviceRequest struct {
	Token    string `json:"token" validate:"required,max=512"`
	Platform string `json:"platform" validate:"omitempty,oneof=ios android web"`
}

// ReadMarker is one durable key-value row holding a JSON array of read content IDs (PostgreSQL)
type ReadMarker struct {
	Key       string `gorm:"primaryKey;size:191"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}
