package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/Spacey6849/palliative-care-app/internal/circuitbreaker"
	"github.com/Spacey6849/palliative-care-app/internal/sns"
	"github.com/Spacey6849/palliative-care-app/internal/sqs"
)

// Pusher delivers one push job to the device it targets.
type Pusher interface {
	Push(ctx context.Context, msg *sqs.Message) error
}

// LogPusher logs push jobs instead of delivering them (for development)
type LogPusher struct {
	logger *zap.Logger
}

func NewLogPusher(logger *zap.Logger) *LogPusher {
	return &LogPusher{logger: logger}
}

func (p *LogPusher) Push(ctx context.Context, msg *sqs.Message) error {
	p.logger.Info("logging push (development mode)",
		zap.String("user_id", msg.UserID),
		zap.String("token_id", msg.TokenID),
		zap.String("device_type", msg.DeviceType),
		zap.String("category", msg.Category),
		zap.String("title", msg.Title),
		zap.String("body", msg.Body),
	)
	return nil
}

// ProtectedPusher wraps a Pusher with a circuit breaker so a struggling push
// provider sheds load instead of backing up the queue.
type ProtectedPusher struct {
	inner   Pusher
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewProtectedPusher(inner Pusher, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *ProtectedPusher {
	return &ProtectedPusher{
		inner:   inner,
		breaker: breaker,
		logger:  logger,
	}
}

func (p *ProtectedPusher) Push(ctx context.Context, msg *sqs.Message) error {
	if !p.breaker.Allow() {
		return circuitbreaker.ErrCircuitOpen
	}

	err := p.inner.Push(ctx, msg)
	if err != nil {
		// Stale endpoints and unknown tokens are per-device conditions, not
		// provider failures. They must not trip the breaker.
		if unrecoverable(err) || sns.IsEndpointDisabled(err) {
			return err
		}
		p.breaker.RecordFailure()
		return err
	}

	p.breaker.RecordSuccess()
	return nil
}
