package platform

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Spacey6849/palliative-care-app/internal/notify"
)

func newTestEngine(t *testing.T) (*Engine, chan Delivery) {
	t.Helper()
	delivered := make(chan Delivery, 4)
	eng := NewEngine(zap.NewNop(), func(d Delivery) { delivered <- d })
	t.Cleanup(eng.Close)
	return eng, delivered
}

func TestEngineImmediateDelivery(t *testing.T) {
	eng, delivered := newTestEngine(t)
	ctx := context.Background()

	id, err := eng.ScheduleLocal(ctx, Request{
		Owner:   "user-1",
		Title:   "New message",
		Body:    "hello",
		Data:    map[string]any{"category": "chat"},
		Channel: notify.ChannelChat,
		Trigger: notify.Immediate(),
	})
	if err != nil {
		t.Fatalf("ScheduleLocal failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty id")
	}

	select {
	case d := <-delivered:
		if d.ID != id {
			t.Errorf("delivery id = %s, want %s", d.ID, id)
		}
		if d.Owner != "user-1" {
			t.Errorf("delivery owner = %s, want user-1", d.Owner)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("immediate notification was not delivered")
	}

	// Immediate requests never enter the pending queue.
	pending, err := eng.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected empty pending queue, got %d entries", len(pending))
	}
}

func TestEngineDelayedDelivery(t *testing.T) {
	eng, delivered := newTestEngine(t)
	ctx := context.Background()

	before := time.Now()
	id, err := eng.ScheduleLocal(ctx, Request{
		Owner:   "user-1",
		Title:   "Medication Reminder",
		Trigger: notify.AfterSeconds(1),
	})
	if err != nil {
		t.Fatalf("ScheduleLocal failed: %v", err)
	}

	pending, err := eng.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending entry, got %d", len(pending))
	}
	if pending[0].ID != id {
		t.Errorf("pending id = %s, want %s", pending[0].ID, id)
	}
	if pending[0].NextFire.Before(before) || pending[0].NextFire.After(before.Add(2*time.Second)) {
		t.Errorf("next fire %v outside expected window", pending[0].NextFire)
	}

	select {
	case d := <-delivered:
		if d.ID != id {
			t.Errorf("delivery id = %s, want %s", d.ID, id)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("delayed notification was not delivered")
	}

	pending, _ = eng.ListPending(ctx)
	if len(pending) != 0 {
		t.Errorf("entry should leave the pending queue after firing, got %d", len(pending))
	}
}

func TestEngineDailyPendingSnapshot(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.ScheduleLocal(ctx, Request{
		Owner:   "user-1",
		Title:   "Medication Reminder",
		Body:    "Time to take Aspirin (100mg)",
		Trigger: notify.DailyAt(9, 0),
	})
	if err != nil {
		t.Fatalf("ScheduleLocal failed: %v", err)
	}

	pending, err := eng.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending entry, got %d", len(pending))
	}

	trig := pending[0].Trigger
	if trig.Kind != notify.TriggerDaily || trig.Hour != 9 || trig.Minute != 0 {
		t.Errorf("pending trigger = %+v, want daily at 09:00", trig)
	}

	now := time.Now()
	if !pending[0].NextFire.After(now) || pending[0].NextFire.After(now.Add(24*time.Hour)) {
		t.Errorf("next fire %v should fall within the coming day", pending[0].NextFire)
	}
}

func TestEngineDailyRearmsAfterFire(t *testing.T) {
	eng, delivered := newTestEngine(t)
	ctx := context.Background()

	id, err := eng.ScheduleLocal(ctx, Request{
		Owner:   "user-1",
		Trigger: notify.DailyAt(9, 0),
	})
	if err != nil {
		t.Fatalf("ScheduleLocal failed: %v", err)
	}

	// Drive the timer callback directly instead of waiting a day.
	eng.fire(id)

	select {
	case d := <-delivered:
		if d.ID != id {
			t.Errorf("delivery id = %s, want %s", d.ID, id)
		}
	case <-time.After(time.Second):
		t.Fatal("daily notification was not delivered")
	}

	pending, err := eng.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("daily entry should remain pending after firing, got %d entries", len(pending))
	}
	if !pending[0].NextFire.After(time.Now()) {
		t.Errorf("re-armed next fire %v should be in the future", pending[0].NextFire)
	}
}

func TestEngineCancelIsIdempotent(t *testing.T) {
	eng, delivered := newTestEngine(t)
	ctx := context.Background()

	id, err := eng.ScheduleLocal(ctx, Request{
		Owner:   "user-1",
		Trigger: notify.AfterSeconds(30),
	})
	if err != nil {
		t.Fatalf("ScheduleLocal failed: %v", err)
	}

	if err := eng.CancelLocal(ctx, id); err != nil {
		t.Fatalf("CancelLocal failed: %v", err)
	}
	if err := eng.CancelLocal(ctx, id); err != nil {
		t.Errorf("second cancel should be a no-op, got %v", err)
	}
	if err := eng.CancelLocal(ctx, "never-existed"); err != nil {
		t.Errorf("cancelling an unknown id should not error, got %v", err)
	}

	pending, _ := eng.ListPending(ctx)
	if len(pending) != 0 {
		t.Errorf("expected empty pending queue after cancel, got %d", len(pending))
	}

	select {
	case <-delivered:
		t.Fatal("cancelled notification must not be delivered")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEngineRejectsInvalidTrigger(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.ScheduleLocal(context.Background(), Request{
		Trigger: notify.Trigger{Kind: notify.TriggerDaily, Hour: 25},
	})
	if err == nil {
		t.Fatal("expected error for out-of-range daily trigger")
	}
}

func TestEngineClosedRefusesWork(t *testing.T) {
	eng, _ := newTestEngine(t)
	eng.Close()

	_, err := eng.ScheduleLocal(context.Background(), Request{Trigger: notify.Immediate()})
	if err == nil {
		t.Fatal("expected error scheduling on a closed engine")
	}
}

func TestNextDailyFire(t *testing.T) {
	loc := time.UTC
	base := time.Date(2026, 3, 10, 8, 30, 0, 0, loc)

	tests := []struct {
		name   string
		now    time.Time
		hour   int
		minute int
		want   time.Time
	}{
		{"later today", base, 9, 0, time.Date(2026, 3, 10, 9, 0, 0, 0, loc)},
		{"already passed", base, 8, 0, time.Date(2026, 3, 11, 8, 0, 0, 0, loc)},
		{"exactly now rolls over", base, 8, 30, time.Date(2026, 3, 11, 8, 30, 0, 0, loc)},
		{"midnight", base, 0, 0, time.Date(2026, 3, 11, 0, 0, 0, 0, loc)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextDailyFire(tt.now, tt.hour, tt.minute)
			if !got.Equal(tt.want) {
				t.Errorf("nextDailyFire(%v, %d, %d) = %v, want %v", tt.now, tt.hour, tt.minute, got, tt.want)
			}
		})
	}
}
