// Package route maps a notification's category to the in-app destination the
// app should open when the user taps the notification.
package route

import (
	"context"

	"go.uber.org/zap"

	"github.com/Spacey6849/palliative-care-app/internal/history"
	"github.com/Spacey6849/palliative-care-app/internal/notify"
)

// Destination identifies an in-app navigation target.
type Destination string

const (
	DestinationChat        Destination = "chat"
	DestinationMedications Destination = "medications"
	DestinationHome        Destination = "home"
	DestinationMaps        Destination = "maps"
	DestinationNone        Destination = ""
)

// DestinationFor returns the destination for a category. Unrecognized
// categories map to DestinationNone; tapping such a notification does not
// navigate.
func DestinationFor(c notify.Category) Destination {
	switch c {
	case notify.CategoryChat:
		return DestinationChat
	case notify.CategoryMedication, notify.CategoryPrescription:
		return DestinationMedications
	case notify.CategoryAppointment:
		return DestinationHome
	case notify.CategoryEmergency:
		return DestinationMaps
	default:
		return DestinationNone
	}
}

// HistoryMarker is the slice of the history store the router needs.
type HistoryMarker interface {
	MarkRead(ctx context.Context, userID, recordID string) bool
}

// Router resolves where to navigate when a notification record is opened.
type Router struct {
	history HistoryMarker
	logger  *zap.Logger
}

// NewRouter creates a router that marks records read through the given store.
func NewRouter(history HistoryMarker, logger *zap.Logger) *Router {
	return &Router{history: history, logger: logger}
}

// Open marks the record read and returns the destination for its category.
// The read mark lands before the destination is yielded, so a history view
// reloaded right after the tap already shows the record as read even while
// navigation is still pending.
func (r *Router) Open(ctx context.Context, userID string, rec history.Record) Destination {
	if !r.history.MarkRead(ctx, userID, rec.ID) {
		r.logger.Debug("opened notification not found in history",
			zap.String("user_id", userID),
			zap.String("record_id", rec.ID))
	}

	dest := DestinationFor(rec.Category)
	r.logger.Debug("notification routed",
		zap.String("user_id", userID),
		zap.String("category", string(rec.Category)),
		zap.String("destination", string(dest)))
	return dest
}
