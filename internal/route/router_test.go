package route

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/Spacey6849/palliative-care-app/internal/history"
	"github.com/Spacey6849/palliative-care-app/internal/notify"
)

type fakeMarker struct {
	userID   string
	recordID string
	calls    int
	found    bool
}

func (f *fakeMarker) MarkRead(ctx context.Context, userID, recordID string) bool {
	f.userID = userID
	f.recordID = recordID
	f.calls++
	return f.found
}

func TestDestinationFor(t *testing.T) {
	tests := []struct {
		category notify.Category
		want     Destination
	}{
		{notify.CategoryChat, DestinationChat},
		{notify.CategoryMedication, DestinationMedications},
		{notify.CategoryPrescription, DestinationMedications},
		{notify.CategoryAppointment, DestinationHome},
		{notify.CategoryEmergency, DestinationMaps},
		{notify.CategoryOther, DestinationNone},
		{notify.Category("bogus"), DestinationNone},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			if got := DestinationFor(tt.category); got != tt.want {
				t.Errorf("DestinationFor(%s) = %q, want %q", tt.category, got, tt.want)
			}
		})
	}
}

func TestOpenMarksReadThenRoutes(t *testing.T) {
	marker := &fakeMarker{found: true}
	router := NewRouter(marker, zap.NewNop())

	dest := router.Open(context.Background(), "u1", history.Record{
		ID:       "n1",
		Category: notify.CategoryMedication,
	})

	if marker.calls != 1 {
		t.Fatalf("MarkRead calls = %d, want 1", marker.calls)
	}
	if marker.userID != "u1" || marker.recordID != "n1" {
		t.Errorf("MarkRead(%s, %s), want (u1, n1)", marker.userID, marker.recordID)
	}
	if dest != DestinationMedications {
		t.Errorf("destination = %q, want medications", dest)
	}
}

func TestOpenUnknownRecordStillRoutes(t *testing.T) {
	marker := &fakeMarker{found: false}
	router := NewRouter(marker, zap.NewNop())

	dest := router.Open(context.Background(), "u1", history.Record{
		ID:       "gone",
		Category: notify.CategoryEmergency,
	})
	if dest != DestinationMaps {
		t.Errorf("destination = %q, want maps", dest)
	}
}

func TestOpenUnroutedCategorySkipsNavigation(t *testing.T) {
	marker := &fakeMarker{found: true}
	router := NewRouter(marker, zap.NewNop())

	dest := router.Open(context.Background(), "u1", history.Record{
		ID:       "n1",
		Category: notify.CategoryOther,
	})
	if dest != DestinationNone {
		t.Errorf("destination = %q, want none", dest)
	}
	if marker.calls != 1 {
		t.Error("record must still be marked read when no navigation happens")
	}
}
