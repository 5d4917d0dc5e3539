package worker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Spacey6849/palliative-care-app/internal/db"
	"github.com/Spacey6849/palliative-care-app/internal/sns"
	"github.com/Spacey6849/palliative-care-app/internal/sqs"
)

// PlatformPublisher is the subset of the SNS publisher the pusher needs.
type PlatformPublisher interface {
	CreateEndpoint(ctx context.Context, deviceType, token string) (string, error)
	Push(ctx context.Context, endpointARN string, payload sns.Payload) (string, error)
}

// EndpointStore resolves device tokens and records their platform endpoints.
type EndpointStore interface {
	Get(ctx context.Context, id uuid.UUID) (*db.DeviceToken, error)
	SetEndpointARN(ctx context.Context, id uuid.UUID, arn string) error
}

// SNSPusher delivers push jobs through SNS platform endpoints. Endpoints are
// created lazily on the first push to a token and recorded so later jobs
// carry the ARN with them.
type SNSPusher struct {
	publisher PlatformPublisher
	store     EndpointStore
	logger    *zap.Logger
}

func NewSNSPusher(publisher PlatformPublisher, store EndpointStore, logger *zap.Logger) *SNSPusher {
	return &SNSPusher{
		publisher: publisher,
		store:     store,
		logger:    logger,
	}
}

func (p *SNSPusher) Push(ctx context.Context, msg *sqs.Message) error {
	endpointARN := msg.EndpointARN
	if endpointARN == "" {
		arn, err := p.resolveEndpoint(ctx, msg)
		if err != nil {
			return err
		}
		endpointARN = arn
	}

	messageID, err := p.publisher.Push(ctx, endpointARN, sns.Payload{
		Title:    msg.Title,
		Body:     msg.Body,
		Category: msg.Category,
		Data:     msg.Data,
	})
	if err != nil {
		return err
	}

	p.logger.Info("push sent via sns",
		zap.String("token_id", msg.TokenID),
		zap.String("message_id", messageID),
	)

	return nil
}

func (p *SNSPusher) resolveEndpoint(ctx context.Context, msg *sqs.Message) (string, error) {
	tokenID, err := uuid.Parse(msg.TokenID)
	if err != nil {
		return "", fmt.Errorf("invalid token id %q: %w", msg.TokenID, err)
	}

	dt, err := p.store.Get(ctx, tokenID)
	if err != nil {
		return "", fmt.Errorf("resolve token: %w", err)
	}

	if dt.EndpointARN != nil && *dt.EndpointARN != "" {
		return *dt.EndpointARN, nil
	}

	arn, err := p.publisher.CreateEndpoint(ctx, dt.DeviceType, dt.Token)
	if err != nil {
		return "", fmt.Errorf("create endpoint: %w", err)
	}

	// Best effort; the push still goes out if the write fails, the next job
	// just resolves the endpoint again.
	if err := p.store.SetEndpointARN(ctx, tokenID, arn); err != nil {
		p.logger.Warn("failed to record endpoint arn",
			zap.Error(err),
			zap.String("token_id", msg.TokenID),
		)
	}

	return arn, nil
}
