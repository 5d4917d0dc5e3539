package sns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

func TestBuildMessage_Envelope(t *testing.T) {
	payload := Payload{
		Title:    "Dr. Patel",
		Body:     "See you at 3pm",
		Category: "chat",
		Data:     map[string]any{"conversationId": "conv-12"},
	}

	msg, err := buildMessage(payload)
	if err != nil {
		t.Fatalf("failed to build message: %v", err)
	}

	var wrapper map[string]string
	if err := json.Unmarshal([]byte(msg), &wrapper); err != nil {
		t.Fatalf("failed to unmarshal wrapper: %v", err)
	}

	for _, key := range []string{"default", "APNS", "APNS_SANDBOX", "GCM"} {
		if _, ok := wrapper[key]; !ok {
			t.Errorf("wrapper missing %q key", key)
		}
	}

	if wrapper["default"] != "See you at 3pm" {
		t.Errorf("default message: got %q, want %q", wrapper["default"], "See you at 3pm")
	}
}

func TestBuildMessage_APNSPayload(t *testing.T) {
	msg, err := buildMessage(Payload{
		Title:    "Emergency Alert",
		Body:     "Fall detected for Maria",
		Category: "emergency",
	})
	if err != nil {
		t.Fatalf("failed to build message: %v", err)
	}

	var wrapper map[string]string
	if err := json.Unmarshal([]byte(msg), &wrapper); err != nil {
		t.Fatalf("failed to unmarshal wrapper: %v", err)
	}

	var apns apnsMessage
	if err := json.Unmarshal([]byte(wrapper["APNS"]), &apns); err != nil {
		t.Fatalf("embedded APNS message is not valid JSON: %v", err)
	}

	if apns.APS.Alert.Title != "Emergency Alert" {
		t.Errorf("APNS title: got %q, want %q", apns.APS.Alert.Title, "Emergency Alert")
	}
	if apns.APS.Sound != "default" {
		t.Errorf("APNS sound: got %q, want %q", apns.APS.Sound, "default")
	}
	if apns.APS.Category != "emergency" {
		t.Errorf("APNS category: got %q, want %q", apns.APS.Category, "emergency")
	}
}

func TestBuildMessage_GCMCarriesData(t *testing.T) {
	msg, err := buildMessage(Payload{
		Title:    "Medication Reminder",
		Body:     "Time to take Aspirin (100mg)",
		Category: "medication",
		Data:     map[string]any{"medication": "Aspirin"},
	})
	if err != nil {
		t.Fatalf("failed to build message: %v", err)
	}

	var wrapper map[string]string
	if err := json.Unmarshal([]byte(msg), &wrapper); err != nil {
		t.Fatalf("failed to unmarshal wrapper: %v", err)
	}

	var gcm gcmMessage
	if err := json.Unmarshal([]byte(wrapper["GCM"]), &gcm); err != nil {
		t.Fatalf("embedded GCM message is not valid JSON: %v", err)
	}

	if gcm.Notification.Body != "Time to take Aspirin (100mg)" {
		t.Errorf("GCM body: got %q, want %q", gcm.Notification.Body, "Time to take Aspirin (100mg)")
	}
	if gcm.Data["medication"] != "Aspirin" {
		t.Errorf("GCM data: got %v, want %q", gcm.Data["medication"], "Aspirin")
	}
}

func TestCreateEndpoint_UnknownDeviceType(t *testing.T) {
	p := &Publisher{platformARNs: map[string]string{"ios": "arn:aws:sns:us-east-1:123:app/APNS/care"}}

	_, err := p.CreateEndpoint(context.Background(), "web", "token-1")
	if !errors.Is(err, ErrNoPlatformApp) {
		t.Fatalf("expected ErrNoPlatformApp, got %v", err)
	}
}

func TestIsEndpointDisabled(t *testing.T) {
	wrapped := fmt.Errorf("failed to publish to endpoint: %w", &types.EndpointDisabledException{})
	if !IsEndpointDisabled(wrapped) {
		t.Error("expected wrapped EndpointDisabledException to be detected")
	}

	if IsEndpointDisabled(errors.New("connection refused")) {
		t.Error("unrelated error should not be treated as disabled endpoint")
	}
}
