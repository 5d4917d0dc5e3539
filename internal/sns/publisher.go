package sns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// ErrNoPlatformApp is returned when no platform application is configured
// for a device type, e.g. web clients that receive pushes another way.
var ErrNoPlatformApp = errors.New("no platform application for device type")

// Publisher manages SNS platform endpoints for mobile push delivery. Each
// device token is bound to an endpoint under the platform application that
// matches its device type (APNS for ios, GCM for android).
type Publisher struct {
	client       *sns.Client
	platformARNs map[string]string
}

// Payload is the push content delivered to a device endpoint
type Payload struct {
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Category string         `json:"category"`
	Data     map[string]any `json:"data,omitempty"`
}

// NewPublisher creates an SNS publisher for the given platform applications,
// keyed by device type
func NewPublisher(ctx context.Context, platformARNs map[string]string, optFns ...func(*config.LoadOptions) error) (*Publisher, error) {
	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Publisher{
		client:       sns.NewFromConfig(cfg),
		platformARNs: platformARNs,
	}, nil
}

// NewPublisherWithEndpoint creates a publisher with custom endpoint (for LocalStack)
func NewPublisherWithEndpoint(ctx context.Context, platformARNs map[string]string, endpoint, region string) (*Publisher, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := sns.NewFromConfig(cfg, func(o *sns.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	return &Publisher{
		client:       client,
		platformARNs: platformARNs,
	}, nil
}

// CreateEndpoint registers a device token under its platform application and
// returns the endpoint ARN. Calling it again with the same token is safe; SNS
// returns the existing endpoint.
func (p *Publisher) CreateEndpoint(ctx context.Context, deviceType, token string) (string, error) {
	appARN, ok := p.platformARNs[deviceType]
	if !ok || appARN == "" {
		return "", fmt.Errorf("%w: %s", ErrNoPlatformApp, deviceType)
	}

	result, err := p.client.CreatePlatformEndpoint(ctx, &sns.CreatePlatformEndpointInput{
		PlatformApplicationArn: aws.String(appARN),
		Token:                  aws.String(token),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create platform endpoint: %w", err)
	}

	return *result.EndpointArn, nil
}

// Push delivers a payload to a single device endpoint
func (p *Publisher) Push(ctx context.Context, endpointARN string, payload Payload) (string, error) {
	msg, err := buildMessage(payload)
	if err != nil {
		return "", fmt.Errorf("failed to build push message: %w", err)
	}

	input := &sns.PublishInput{
		TargetArn:        aws.String(endpointARN),
		Message:          aws.String(msg),
		MessageStructure: aws.String("json"),
	}

	result, err := p.client.Publish(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to publish to endpoint: %w", err)
	}

	return *result.MessageId, nil
}

// IsEndpointDisabled reports whether err means the platform endpoint was
// disabled, which happens when the underlying device token went stale.
func IsEndpointDisabled(err error) bool {
	var disabled *types.EndpointDisabledException
	return errors.As(err, &disabled)
}

type apnsAlert struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type apnsAPS struct {
	Alert    apnsAlert `json:"alert"`
	Sound    string    `json:"sound"`
	Category string    `json:"category,omitempty"`
}

type apnsMessage struct {
	APS  apnsAPS        `json:"aps"`
	Data map[string]any `json:"data,omitempty"`
}

type gcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type gcmMessage struct {
	Notification gcmNotification `json:"notification"`
	Data         map[string]any  `json:"data,omitempty"`
}

// buildMessage wraps the payload in the per-protocol envelope SNS expects
// when MessageStructure is "json". The inner messages are embedded as strings.
func buildMessage(p Payload) (string, error) {
	apns, err := json.Marshal(apnsMessage{
		APS: apnsAPS{
			Alert:    apnsAlert{Title: p.Title, Body: p.Body},
			Sound:    "default",
			Category: p.Category,
		},
		Data: p.Data,
	})
	if err != nil {
		return "", fmt.Errorf("marshal apns message: %w", err)
	}

	gcm, err := json.Marshal(gcmMessage{
		Notification: gcmNotification{Title: p.Title, Body: p.Body},
		Data:         p.Data,
	})
	if err != nil {
		return "", fmt.Errorf("marshal gcm message: %w", err)
	}

	wrapper := map[string]string{
		"default":      p.Body,
		"APNS":         string(apns),
		"APNS_SANDBOX": string(apns),
		"GCM":          string(gcm),
	}

	msg, err := json.Marshal(wrapper)
	if err != nil {
		return "", fmt.Errorf("marshal message wrapper: %w", err)
	}

	return string(msg), nil
}
