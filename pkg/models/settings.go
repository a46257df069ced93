package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationPrefs holds per-user notification switches
type NotificationPrefs struct {
	EmailEnabled    bool `json:"email_enabled" bson:"email_enabled"`
	ReminderEnabled bool `json:"reminder_enabled" bson:"reminder_enabled"`
}

// Settings is the single per-user settings document. GET creates it on
// demand with defaults; POST and PUT both upsert.
type Settings struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID        primitive.ObjectID `json:"user_id" bson:"user_id"`
	DisplayName   string             `json:"display_name,omitempty" bson:"display_name,omitempty"`
	Email         string             `json:"email,omitempty" bson:"email,omitempty"`
	AvatarURL     string             `json:"avatar_url,omitempty" bson:"avatar_url,omitempty"`
	Sectors       []string           `json:"sectors" bson:"sectors"`
	ActivityTypes []string           `json:"activity_types" bson:"activity_types"`
	Currency      string             `json:"currency" bson:"currency"`
	Timezone      string             `json:"timezone" bson:"timezone"`
	Notifications NotificationPrefs  `json:"notifications" bson:"notifications"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" bson:"updated_at"`
}

// DefaultSectors seeds a new settings document
var DefaultSectors = []string{
	"technology", "manufacturing", "healthcare", "finance", "retail", "services",
}

// DefaultActivityTypes seeds a new settings document
var DefaultActivityTypes = []string{
	"call", "email", "meeting", "demo", "proposal", "follow_up", "task", "note", "visit",
}

// UpsertSettingsRequest represents a settings write (POST and PUT)
type UpsertSettingsRequest struct {
	DisplayName   *string            `json:"display_name,omitempty" validate:"omitempty,max=100"`
	Email         *string            `json:"email,omitempty" validate:"omitempty,email"`
	AvatarURL     *string            `json:"avatar_url,omitempty" validate:"omitempty,url"`
	Sectors       *[]string          `json:"sectors,omitempty" validate:"omitempty,dive,min=1,max=100"`
	ActivityTypes *[]string          `json:"activity_types,omitempty" validate:"omitempty,dive,min=1,max=100"`
	Currency      *string            `json:"currency,omitempty" validate:"omitempty,len=3"`
	Timezone      *string            `json:"timezone,omitempty" validate:"omitempty,max=64"`
	Notifications *NotificationPrefs `json:"notifications,omitempty"`
}
