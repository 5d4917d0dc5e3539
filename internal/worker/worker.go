package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Spacey6849/palliative-care-app/internal/circuitbreaker"
	"github.com/Spacey6849/palliative-care-app/internal/db"
	"github.com/Spacey6849/palliative-care-app/internal/metrics"
	"github.com/Spacey6849/palliative-care-app/internal/sns"
	"github.com/Spacey6849/palliative-care-app/internal/sqs"
)

// Queue is the subset of the SQS consumer the worker needs.
type Queue interface {
	ReceiveMessage(ctx context.Context) (*sqs.Message, string, error)
	DeleteMessage(ctx context.Context, receiptHandle string) error
}

// TokenDeactivator retires device tokens whose platform endpoint went stale.
type TokenDeactivator interface {
	DeactivateByEndpoint(ctx context.Context, arn string) (int64, error)
}

type Worker struct {
	queue    Queue
	pusher   Pusher
	tokens   TokenDeactivator
	config   Config
	logger   *zap.Logger
	inFlight atomic.Int64
}

type Config struct {
	Concurrency  int
	ErrorBackoff time.Duration
}

func New(queue Queue, pusher Pusher, tokens TokenDeactivator, cfg Config, logger *zap.Logger) *Worker {
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 1
	}
	if cfg.ErrorBackoff == 0 {
		cfg.ErrorBackoff = 2 * time.Second
	}

	return &Worker{
		queue:  queue,
		pusher: pusher,
		tokens: tokens,
		config: cfg,
		logger: logger,
	}
}

// Start runs the consumer loops until ctx is cancelled. Receive uses long
// polling, so the loops block in SQS rather than spinning.
func (w *Worker) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.consume(ctx)
		}()
	}
	wg.Wait()
	w.logger.Info("worker stopped")
}

func (w *Worker) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, handle, err := w.queue.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive message", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.config.ErrorBackoff):
			}
			continue
		}
		if msg == nil {
			continue
		}

		w.process(ctx, msg, handle)
	}
}

func (w *Worker) process(ctx context.Context, msg *sqs.Message, handle string) {
	metrics.SetQueueMessagesInFlight(int(w.inFlight.Add(1)))
	defer func() {
		metrics.SetQueueMessagesInFlight(int(w.inFlight.Add(-1)))
	}()

	err := w.pusher.Push(ctx, msg)

	switch {
	case err == nil:
		metrics.RecordRemotePush("ok")
		w.logger.Info("push delivered",
			zap.String("user_id", msg.UserID),
			zap.String("token_id", msg.TokenID),
			zap.String("category", msg.Category),
		)
		w.deleteMessage(ctx, handle)

	case sns.IsEndpointDisabled(err):
		// The device token went stale. Retire it and drop the job; SNS will
		// refuse the endpoint on every retry.
		metrics.RecordRemotePush("endpoint_disabled")
		w.logger.Warn("endpoint disabled, deactivating device tokens",
			zap.String("user_id", msg.UserID),
			zap.String("endpoint_arn", msg.EndpointARN),
		)
		if msg.EndpointARN != "" {
			if _, derr := w.tokens.DeactivateByEndpoint(ctx, msg.EndpointARN); derr != nil {
				w.logger.Error("failed to deactivate tokens", zap.Error(derr))
			}
		}
		w.deleteMessage(ctx, handle)

	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		// Leave the message for redelivery after the visibility timeout.
		metrics.RecordRemotePush("circuit_open")
		w.logger.Warn("push rejected by open circuit",
			zap.String("token_id", msg.TokenID),
		)

	case unrecoverable(err):
		metrics.RecordRemotePush("skipped")
		w.logger.Warn("dropping undeliverable push job",
			zap.Error(err),
			zap.String("user_id", msg.UserID),
			zap.String("token_id", msg.TokenID),
		)
		w.deleteMessage(ctx, handle)

	default:
		// Transient failure. Leave the message for redelivery.
		metrics.RecordRemotePush("failed")
		w.logger.Error("failed to deliver push",
			zap.Error(err),
			zap.String("user_id", msg.UserID),
			zap.String("token_id", msg.TokenID),
		)
	}
}

func (w *Worker) deleteMessage(ctx context.Context, handle string) {
	if err := w.queue.DeleteMessage(ctx, handle); err != nil {
		w.logger.Error("failed to delete message", zap.Error(err))
	}
}

// unrecoverable reports whether retrying the job can never succeed.
func unrecoverable(err error) bool {
	return errors.Is(err, sns.ErrNoPlatformApp) || errors.Is(err, db.ErrTokenNotFound)
}
