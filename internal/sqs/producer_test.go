package sqs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/Spacey6849/palliative-care-app/internal/db"
)

func TestMessage_Marshal(t *testing.T) {
	arn := "arn:aws:sns:us-east-1:123:endpoint/APNS/care/abc"
	msg := Message{
		UserID:      "user-42",
		TokenID:     uuid.New().String(),
		DeviceType:  db.DeviceIOS,
		EndpointARN: arn,
		Category:    "medication",
		Title:       "Medication Reminder",
		Body:        "Time to take Aspirin (100mg)",
		Data:        map[string]any{"medication": "Aspirin"},
		EnqueuedAt:  1234567890,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var decoded Message
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if decoded.UserID != msg.UserID {
		t.Errorf("user id mismatch: got %s, want %s", decoded.UserID, msg.UserID)
	}
	if decoded.EndpointARN != arn {
		t.Errorf("endpoint arn mismatch: got %s, want %s", decoded.EndpointARN, arn)
	}
	if decoded.Category != msg.Category {
		t.Errorf("category mismatch: got %s, want %s", decoded.Category, msg.Category)
	}
	if decoded.Data["medication"] != "Aspirin" {
		t.Errorf("data mismatch: got %v", decoded.Data)
	}
}

func TestMessage_OmitsEmptyEndpoint(t *testing.T) {
	msg := Message{
		UserID:     "user-42",
		TokenID:    uuid.New().String(),
		DeviceType: db.DeviceAndroid,
		Category:   "chat",
		Title:      "Nurse Kim",
		Body:       "How are you feeling today?",
		EnqueuedAt: 1234567890,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if _, ok := decoded["endpoint_arn"]; ok {
		t.Error("endpoint_arn should be omitted when empty")
	}
	if _, ok := decoded["data"]; ok {
		t.Error("data should be omitted when nil")
	}
}

func TestEnqueueForTokensEmpty(t *testing.T) {
	ctx := context.Background()

	producer := &Producer{
		client:   nil,
		queueURL: "https://sqs.us-east-1.amazonaws.com/123456789/test",
		logger:   nil,
	}

	result, err := producer.EnqueueForTokens(ctx, []*db.DeviceToken{}, "chat", "t", "b", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result) != 0 {
		t.Errorf("expected empty result, got %d items", len(result))
	}
}
