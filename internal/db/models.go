package db

import (
	"time"

	"github.com/google/uuid"
)

// DeviceToken is a push registration for one device of one user. A user can
// hold several rows (phone, tablet, web). Local-only registrations are stored
// with Active=false so the fan-out worker never targets them.
type DeviceToken struct {
	ID          uuid.UUID `json:"id"`
	UserID      string    `json:"user_id"`
	Token       string    `json:"token"`
	DeviceType  string    `json:"device_type"`
	EndpointARN *string   `json:"endpoint_arn,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Device type constants
const (
	DeviceIOS     = "ios"
	DeviceAndroid = "android"
	DeviceWeb     = "web"
)
