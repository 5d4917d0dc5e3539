// Package schedule translates semantic notification requests into platform
// deliveries. Scheduling is best-effort: failures are logged and reported as
// an empty identifier, never as an error, so care flows (medication intake,
// appointment booking, emergency capture) are not blocked by a notification
// fault.
package schedule

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Spacey6849/palliative-care-app/internal/metrics"
	"github.com/Spacey6849/palliative-care-app/internal/notify"
	"github.com/Spacey6849/palliative-care-app/internal/platform"
)

// defaultLeadMinutes is how far ahead of an appointment the reminder fires
// when the caller does not say otherwise.
const defaultLeadMinutes = 15

// Scheduler schedules local notifications for a user through the platform
// capability.
type Scheduler struct {
	platform platform.Platform
	logger   *zap.Logger
}

// NewScheduler creates a scheduler over the given platform.
func NewScheduler(p platform.Platform, logger *zap.Logger) *Scheduler {
	return &Scheduler{platform: p, logger: logger}
}

// Schedule places a notification with the platform. The category picks the
// delivery channel and priority (emergency gets maximum priority, everything
// else high) and is stamped into the payload so the history store can resolve
// it on delivery. Returns the platform identifier, or "" when scheduling
// failed.
func (s *Scheduler) Schedule(ctx context.Context, owner string, n notify.Notification, trigger notify.Trigger) string {
	data := make(map[string]any, len(n.Data)+1)
	for k, v := range n.Data {
		data[k] = v
	}
	if notify.StringField(data, "category") == "" {
		data["category"] = string(n.Category)
	}

	id, err := s.platform.ScheduleLocal(ctx, platform.Request{
		Owner:    owner,
		Title:    n.Title,
		Body:     n.Body,
		Data:     data,
		Channel:  notify.ChannelFor(n.Category),
		Priority: n.Category.Priority(),
		Trigger:  trigger,
	})
	if err != nil {
		s.logger.Error("scheduling notification failed",
			zap.String("owner", owner),
			zap.String("category", string(n.Category)),
			zap.String("trigger", trigger.String()),
			zap.Error(err))
		return ""
	}

	metrics.RecordNotificationScheduled(string(n.Category), string(trigger.Kind))
	s.logger.Debug("notification scheduled",
		zap.String("id", id),
		zap.String("owner", owner),
		zap.String("category", string(n.Category)),
		zap.String("trigger", trigger.String()))
	return id
}

// SendChat fires an immediate chat notification. The conversation identifier
// rides in the payload; the history store uses it to collapse rapid messages
// from one conversation.
func (s *Scheduler) SendChat(ctx context.Context, owner, senderName, message, conversationID string) string {
	return s.Schedule(ctx, owner, notify.Notification{
		Category: notify.CategoryChat,
		Title:    senderName,
		Body:     message,
		Data:     map[string]any{"conversationId": conversationID},
	}, notify.Immediate())
}

// SendAppointment schedules a reminder ahead of the appointment. A
// non-positive lead falls back to 15 minutes; a fire time already in the past
// fires in one second instead of erroring.
func (s *Scheduler) SendAppointment(ctx context.Context, owner, title string, at time.Time, minutesBefore int) string {
	if minutesBefore <= 0 {
		minutesBefore = defaultLeadMinutes
	}
	fireAt := at.Add(-time.Duration(minutesBefore) * time.Minute)

	return s.Schedule(ctx, owner, notify.Notification{
		Category: notify.CategoryAppointment,
		Title:    "Appointment Reminder",
		Body:     fmt.Sprintf("%s in %d minutes", title, minutesBefore),
		Data:     map[string]any{"appointmentTime": at.UnixMilli()},
	}, notify.AfterDelay(time.Until(fireAt)))
}

// SendMedication schedules a one-shot medication reminder for the given
// intake time, firing in one second if that time has already passed.
func (s *Scheduler) SendMedication(ctx context.Context, owner, name, dosage string, at time.Time) string {
	return s.Schedule(ctx, owner, notify.Notification{
		Category: notify.CategoryMedication,
		Title:    "Medication Reminder",
		Body:     fmt.Sprintf("Time to take %s (%s)", name, dosage),
		Data:     map[string]any{"medication": name},
	}, notify.AfterDelay(time.Until(at)))
}

// ScheduleDailyMedication schedules a recurring daily reminder at the given
// wall-clock time; it fires every day until cancelled.
func (s *Scheduler) ScheduleDailyMedication(ctx context.Context, owner, name, dosage string, hour, minute int) string {
	return s.Schedule(ctx, owner, notify.Notification{
		Category: notify.CategoryMedication,
		Title:    "Medication Reminder",
		Body:     fmt.Sprintf("Time to take %s (%s)", name, dosage),
		Data:     map[string]any{"medication": name, "dosage": dosage},
	}, notify.DailyAt(hour, minute))
}

// SendEmergency fires an immediate maximum-priority alert. The capture time
// rides in the payload so responders can see when the alert was raised even
// if delivery lags.
func (s *Scheduler) SendEmergency(ctx context.Context, owner, patientName, alertType string) string {
	return s.Schedule(ctx, owner, notify.Notification{
		Category: notify.CategoryEmergency,
		Title:    "Emergency Alert",
		Body:     fmt.Sprintf("%s reported for %s", alertType, patientName),
		Data: map[string]any{
			"patientName": patientName,
			"alertType":   alertType,
			"capturedAt":  time.Now().UnixMilli(),
		},
	}, notify.Immediate())
}

// Cancel cancels a scheduled notification. Cancelling an unknown or already
// fired notification is a no-op.
func (s *Scheduler) Cancel(ctx context.Context, id string) {
	if err := s.platform.CancelLocal(ctx, id); err != nil {
		s.logger.Warn("cancelling notification failed",
			zap.String("id", id),
			zap.Error(err))
	}
}

// CancelAll cancels every pending notification belonging to the owner.
func (s *Scheduler) CancelAll(ctx context.Context, owner string) {
	pending, err := s.platform.ListPending(ctx)
	if err != nil {
		s.logger.Warn("listing pending notifications failed",
			zap.String("owner", owner),
			zap.Error(err))
		return
	}

	cancelled := 0
	for _, p := range pending {
		if p.Owner != owner {
			continue
		}
		s.Cancel(ctx, p.ID)
		cancelled++
	}
	s.logger.Info("cancelled pending notifications",
		zap.String("owner", owner),
		zap.Int("count", cancelled))
}

// Pending returns the owner's scheduled notifications still waiting to fire,
// or an empty list when the platform cannot be read.
func (s *Scheduler) Pending(ctx context.Context, owner string) []platform.Pending {
	pending, err := s.platform.ListPending(ctx)
	if err != nil {
		s.logger.Warn("listing pending notifications failed",
			zap.String("owner", owner),
			zap.Error(err))
		return nil
	}

	out := make([]platform.Pending, 0, len(pending))
	for _, p := range pending {
		if p.Owner == owner {
			out = append(out, p)
		}
	}
	return out
}
