// Package platform abstracts the device notification capability API:
// permission checks, delivery channels, push token issuance, and local
// scheduling. The registrar and scheduler depend on this interface; Engine is
// the in-process implementation and Memory is a deterministic fake.
package platform

import (
	"context"
	"errors"
	"time"

	"github.com/Spacey6849/palliative-care-app/internal/notify"
)

// PermissionStatus is the notification permission state reported by the
// platform.
type PermissionStatus string

const (
	PermissionGranted      PermissionStatus = "granted"
	PermissionDenied       PermissionStatus = "denied"
	PermissionUndetermined PermissionStatus = "undetermined"
)

// Granted reports whether notifications may be delivered.
func (p PermissionStatus) Granted() bool {
	return p == PermissionGranted
}

// ErrNotConfigured indicates the platform has no remote push service
// configured. Callers degrade to local-only delivery rather than failing.
var ErrNotConfigured = errors.New("platform: remote push service not configured")

// Profile describes the execution environment. A non-physical device or a
// sandboxed development client lacks native push capability entirely.
type Profile struct {
	PhysicalDevice bool
	Sandboxed      bool
	OS             string
}

// Request is a local scheduling request.
type Request struct {
	Owner    string
	Title    string
	Body     string
	Data     map[string]any
	Channel  string
	Priority notify.Priority
	Trigger  notify.Trigger
}

// Pending is a snapshot entry of the platform's pending queue.
type Pending struct {
	ID       string         `json:"id"`
	Owner    string         `json:"owner"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Data     map[string]any `json:"data,omitempty"`
	Channel  string         `json:"channel"`
	Trigger  notify.Trigger `json:"trigger"`
	NextFire time.Time      `json:"next_fire,omitempty"`
}

// Delivery is a notification fired by the platform, handed to the delivery
// callback wired at construction time.
type Delivery struct {
	ID      string
	Owner   string
	Title   string
	Body    string
	Data    map[string]any
	Channel string
}

// Platform is the injected notification capability surface.
type Platform interface {
	Profile() Profile
	PermissionStatus(ctx context.Context) (PermissionStatus, error)
	RequestPermission(ctx context.Context) (PermissionStatus, error)
	CreateChannel(ctx context.Context, ch notify.Channel) error
	PushToken(ctx context.Context, projectID string) (string, error)
	ScheduleLocal(ctx context.Context, req Request) (string, error)
	CancelLocal(ctx context.Context, id string) error
	ListPending(ctx context.Context) ([]Pending, error)
}
