package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Spacey6849/palliative-care-app/internal/history"
	"github.com/Spacey6849/palliative-care-app/internal/notify"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	client := &Client{rdb: rdb, logger: zap.NewNop()}

	return client, mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func TestHistoryStorage_SaveLoadRoundTrip(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	storage := NewHistoryStorage(client, zap.NewNop())
	ctx := context.Background()

	records := []history.Record{
		{
			ID:         "n2",
			Title:      "Dr. Adams",
			Body:       "See you at 3pm",
			Category:   notify.CategoryChat,
			Data:       map[string]any{"category": "chat", "conversationId": "c1"},
			ReceivedAt: 1700000060000,
		},
		{
			ID:         "n1",
			Title:      "Medication Reminder",
			Category:   notify.CategoryMedication,
			ReceivedAt: 1700000000000,
			Read:       true,
		},
	}

	if err := storage.Save(ctx, "u1", records); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := storage.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 records, got %d", len(loaded))
	}
	if loaded[0].ID != "n2" || loaded[0].Category != notify.CategoryChat {
		t.Errorf("first record = %+v", loaded[0])
	}
	if got := notify.StringField(loaded[0].Data, "conversationId"); got != "c1" {
		t.Errorf("conversationId = %q, want c1", got)
	}
	if !loaded[1].Read {
		t.Error("read flag lost in round trip")
	}
}

func TestHistoryStorage_LoadMissingUser(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	storage := NewHistoryStorage(client, zap.NewNop())

	records, err := storage.Load(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("missing history must not error, got: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestHistoryStorage_Clear(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	storage := NewHistoryStorage(client, zap.NewNop())
	ctx := context.Background()

	if err := storage.Save(ctx, "u1", []history.Record{{ID: "n1"}}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := storage.Clear(ctx, "u1"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	records, err := storage.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty history after clear, got %d records", len(records))
	}
}

func TestHistoryStorage_CorruptData(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	mr.Set(historyKey("u1"), "not-json")

	storage := NewHistoryStorage(client, zap.NewNop())
	if _, err := storage.Load(context.Background(), "u1"); err == nil {
		t.Fatal("expected error for corrupt stored history")
	}
}

// The history store and the Redis backend working together: dedup, read
// marks, and eviction all survive the round trip through real storage.
func TestHistoryStoreOverRedis(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	store := history.NewStore(
		NewHistoryStorage(client, zap.NewNop()),
		history.Options{Limit: 3, DedupWindow: time.Minute},
		zap.NewNop(),
	)
	ctx := context.Background()

	store.Add(ctx, "u1", history.Incoming{
		ID:   "a",
		Body: "first",
		Data: map[string]any{"category": "chat", "conversationId": "c1"},
	})
	store.Add(ctx, "u1", history.Incoming{
		ID:   "b",
		Body: "second",
		Data: map[string]any{"category": "chat", "conversationId": "c1"},
	})

	records := store.Load(ctx, "u1")
	if len(records) != 1 {
		t.Fatalf("expected chat dedup through redis, got %d records", len(records))
	}
	if records[0].Body != "second" {
		t.Errorf("body = %q, want second", records[0].Body)
	}

	if !store.MarkRead(ctx, "u1", "a") {
		t.Fatal("expected record a to exist")
	}
	if records = store.Load(ctx, "u1"); !records[0].Read {
		t.Error("read mark lost through redis")
	}

	for _, id := range []string{"x", "y", "z"} {
		store.Add(ctx, "u1", history.Incoming{ID: id, Data: map[string]any{"category": "appointment"}})
	}
	if records = store.Load(ctx, "u1"); len(records) != 3 {
		t.Errorf("expected retention cap of 3 through redis, got %d", len(records))
	}
}
