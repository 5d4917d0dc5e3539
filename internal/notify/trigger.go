package notify

import (
	"fmt"
	"time"
)

// TriggerKind identifies the timing rule of a scheduled notification.
type TriggerKind string

const (
	TriggerImmediate TriggerKind = "immediate"
	TriggerAfter     TriggerKind = "after"
	TriggerDaily     TriggerKind = "daily"
)

// Trigger is the timing rule for a scheduled notification: fire now, fire
// after a delay, or recur daily at a wall-clock time until cancelled.
type Trigger struct {
	Kind    TriggerKind `json:"type"`
	Seconds int64       `json:"seconds,omitempty"`
	Hour    int         `json:"hour,omitempty"`
	Minute  int         `json:"minute,omitempty"`
}

// Immediate returns a trigger that fires as soon as it is scheduled.
func Immediate() Trigger {
	return Trigger{Kind: TriggerImmediate}
}

// AfterSeconds returns a delayed trigger. The delay is floored to one second;
// zero or negative delays are a platform error on the device APIs this models.
func AfterSeconds(n int64) Trigger {
	if n < 1 {
		n = 1
	}
	return Trigger{Kind: TriggerAfter, Seconds: n}
}

// AfterDelay is AfterSeconds for callers holding a time.Duration.
func AfterDelay(d time.Duration) Trigger {
	return AfterSeconds(int64(d / time.Second))
}

// DailyAt returns a trigger recurring every day at hour:minute local time,
// indefinitely, until explicitly cancelled.
func DailyAt(hour, minute int) Trigger {
	return Trigger{Kind: TriggerDaily, Hour: hour, Minute: minute}
}

// Delay returns the delay for an after trigger.
func (t Trigger) Delay() time.Duration {
	return time.Duration(t.Seconds) * time.Second
}

// Validate checks the trigger's fields are within range.
func (t Trigger) Validate() error {
	switch t.Kind {
	case TriggerImmediate:
		return nil
	case TriggerAfter:
		if t.Seconds < 1 {
			return fmt.Errorf("after trigger: seconds must be >= 1, got %d", t.Seconds)
		}
		return nil
	case TriggerDaily:
		if t.Hour < 0 || t.Hour > 23 {
			return fmt.Errorf("daily trigger: hour out of range: %d", t.Hour)
		}
		if t.Minute < 0 || t.Minute > 59 {
			return fmt.Errorf("daily trigger: minute out of range: %d", t.Minute)
		}
		return nil
	default:
		return fmt.Errorf("unknown trigger kind: %q", t.Kind)
	}
}

func (t Trigger) String() string {
	switch t.Kind {
	case TriggerAfter:
		return fmt.Sprintf("after %ds", t.Seconds)
	case TriggerDaily:
		return fmt.Sprintf("daily at %02d:%02d", t.Hour, t.Minute)
	default:
		return "immediate"
	}
}
