package dispatch

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Spacey6849/palliative-care-app/internal/history"
	"github.com/Spacey6849/palliative-care-app/internal/notify"
	"github.com/Spacey6849/palliative-care-app/internal/platform"
	"github.com/Spacey6849/palliative-care-app/internal/route"
)

type fakeHistory struct {
	userID string
	adds   []history.Incoming
}

func (f *fakeHistory) Add(ctx context.Context, userID string, in history.Incoming) history.Record {
	f.userID = userID
	f.adds = append(f.adds, in)
	return history.Record{
		ID:         in.ID,
		Title:      in.Title,
		Body:       in.Body,
		Category:   notify.ParseCategory(notify.StringField(in.Data, "category")),
		Data:       in.Data,
		ReceivedAt: time.Now().UnixMilli(),
	}
}

type fakeOpener struct {
	opened []string
	dest   route.Destination
}

func (f *fakeOpener) Open(ctx context.Context, userID string, rec history.Record) route.Destination {
	f.opened = append(f.opened, rec.ID)
	return f.dest
}

func newTestDispatcher() (*Dispatcher, *fakeHistory, *fakeOpener) {
	hist := &fakeHistory{}
	opener := &fakeOpener{dest: route.DestinationChat}
	return NewDispatcher(hist, opener, zap.NewNop()), hist, opener
}

func TestReceivedStoresAndNotifies(t *testing.T) {
	d, hist, _ := newTestDispatcher()

	var gotUser string
	var gotRec history.Record
	d.OnReceived(func(userID string, rec history.Record) {
		gotUser = userID
		gotRec = rec
	})

	rec := d.Received(context.Background(), "u1", history.Incoming{
		ID:    "n1",
		Title: "Dr. Adams",
		Body:  "hello",
		Data:  map[string]any{"category": "chat", "conversationId": "c1"},
	})

	if len(hist.adds) != 1 || hist.userID != "u1" {
		t.Fatalf("history.Add not called as expected: %+v", hist)
	}
	if rec.Category != notify.CategoryChat {
		t.Errorf("category = %s, want chat", rec.Category)
	}
	if gotUser != "u1" || gotRec.ID != "n1" {
		t.Errorf("subscriber saw (%s, %s), want (u1, n1)", gotUser, gotRec.ID)
	}
}

func TestTappedRoutesAndNotifies(t *testing.T) {
	d, _, opener := newTestDispatcher()
	opener.dest = route.DestinationMedications

	var gotDest route.Destination
	d.OnTapped(func(userID string, rec history.Record, dest route.Destination) {
		gotDest = dest
	})

	dest := d.Tapped(context.Background(), "u1", history.Record{
		ID:       "n1",
		Category: notify.CategoryMedication,
	})

	if len(opener.opened) != 1 || opener.opened[0] != "n1" {
		t.Fatalf("router.Open not called as expected: %v", opener.opened)
	}
	if dest != route.DestinationMedications || gotDest != dest {
		t.Errorf("destination = %q, subscriber saw %q", dest, gotDest)
	}
}

func TestCancelledSubscriberStopsReceiving(t *testing.T) {
	d, _, _ := newTestDispatcher()

	var first, second int
	cancel := d.OnReceived(func(string, history.Record) { first++ })
	d.OnReceived(func(string, history.Record) { second++ })

	ctx := context.Background()
	d.Received(ctx, "u1", history.Incoming{ID: "n1"})

	cancel()
	cancel() // safe to call again

	d.Received(ctx, "u1", history.Incoming{ID: "n2"})

	if first != 1 {
		t.Errorf("cancelled subscriber fired %d times, want 1", first)
	}
	if second != 2 {
		t.Errorf("remaining subscriber fired %d times, want 2", second)
	}
}

func TestDeliveryHandlerFeedsHistory(t *testing.T) {
	d, hist, _ := newTestDispatcher()

	handle := d.DeliveryHandler()
	handle(platform.Delivery{
		ID:    "n1",
		Owner: "u1",
		Title: "Medication Reminder",
		Data:  map[string]any{"category": "medication"},
	})

	if len(hist.adds) != 1 || hist.adds[0].ID != "n1" || hist.userID != "u1" {
		t.Errorf("delivery did not reach history: %+v", hist)
	}
}
