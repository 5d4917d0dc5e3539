package history

import (
	"fmt"
	"time"
)

// RelativeTime renders how long ago a notification arrived for display next
// to a history record. Buckets are half-open on their lower bound, so exactly
// one minute is "1m ago" rather than "Just now". Anything a week old or more
// shows an absolute date.
func RelativeTime(now time.Time, epochMillis int64) string {
	delta := now.Sub(time.UnixMilli(epochMillis))
	switch {
	case delta < time.Minute:
		return "Just now"
	case delta < time.Hour:
		return fmt.Sprintf("%dm ago", int(delta.Minutes()))
	case delta < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(delta.Hours()))
	case delta < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(delta.Hours()/24))
	default:
		return time.UnixMilli(epochMillis).Format("Jan 2, 2006")
	}
}
