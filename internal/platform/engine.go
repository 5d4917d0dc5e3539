package platform

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Spacey6849/palliative-care-app/internal/notify"
)

// DeliverFunc receives notifications fired by the engine.
type DeliverFunc func(Delivery)

// Engine is the in-process implementation of Platform. Delayed and daily
// triggers are armed with timers; immediate requests are delivered right away.
// Daily entries re-arm themselves after each fire until cancelled.
//
// The engine has no device push identity, so PushToken always degrades with
// ErrNotConfigured and a gateway deployment runs in local-only mode.
type Engine struct {
	logger  *zap.Logger
	deliver DeliverFunc

	mu       sync.Mutex
	pending  map[string]*entry
	channels map[string]notify.Channel
	closed   bool
}

type entry struct {
	req      Request
	timer    *time.Timer
	nextFire time.Time
}

// NewEngine creates a local scheduling engine. deliver is invoked from timer
// goroutines whenever a notification fires; nil disables delivery.
func NewEngine(logger *zap.Logger, deliver DeliverFunc) *Engine {
	if deliver == nil {
		deliver = func(Delivery) {}
	}
	return &Engine{
		logger:   logger,
		deliver:  deliver,
		pending:  make(map[string]*entry),
		channels: make(map[string]notify.Channel),
	}
}

func (e *Engine) Profile() Profile {
	return Profile{PhysicalDevice: true, Sandboxed: false, OS: runtime.GOOS}
}

// PermissionStatus always reports granted: the in-process engine has no
// permission gate.
func (e *Engine) PermissionStatus(ctx context.Context) (PermissionStatus, error) {
	return PermissionGranted, nil
}

func (e *Engine) RequestPermission(ctx context.Context) (PermissionStatus, error) {
	return PermissionGranted, nil
}

func (e *Engine) CreateChannel(ctx context.Context, ch notify.Channel) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.channels[ch.ID] = ch
	e.logger.Debug("notification channel registered",
		zap.String("channel", ch.ID),
		zap.String("importance", string(ch.Importance)),
	)
	return nil
}

func (e *Engine) PushToken(ctx context.Context, projectID string) (string, error) {
	return "", ErrNotConfigured
}

// ScheduleLocal arms the request's trigger and returns the scheduled id.
// Immediate requests are delivered asynchronously and never enter the
// pending queue.
func (e *Engine) ScheduleLocal(ctx context.Context, req Request) (string, error) {
	if err := req.Trigger.Validate(); err != nil {
		return "", fmt.Errorf("schedule local: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return "", fmt.Errorf("schedule local: engine closed")
	}

	id := uuid.NewString()

	switch req.Trigger.Kind {
	case notify.TriggerImmediate:
		go e.deliver(deliveryFor(id, req))

	case notify.TriggerAfter:
		delay := req.Trigger.Delay()
		ent := &entry{req: req, nextFire: time.Now().Add(delay)}
		ent.timer = time.AfterFunc(delay, func() { e.fire(id) })
		e.pending[id] = ent

	case notify.TriggerDaily:
		next := nextDailyFire(time.Now(), req.Trigger.Hour, req.Trigger.Minute)
		ent := &entry{req: req, nextFire: next}
		ent.timer = time.AfterFunc(time.Until(next), func() { e.fire(id) })
		e.pending[id] = ent
	}

	e.logger.Debug("local notification scheduled",
		zap.String("id", id),
		zap.String("owner", req.Owner),
		zap.String("trigger", req.Trigger.String()),
	)

	return id, nil
}

// fire delivers a pending entry. Daily entries re-arm for the next day;
// one-shot entries are removed.
func (e *Engine) fire(id string) {
	e.mu.Lock()
	ent, ok := e.pending[id]
	if !ok || e.closed {
		e.mu.Unlock()
		return
	}

	d := deliveryFor(id, ent.req)

	if ent.req.Trigger.Kind == notify.TriggerDaily {
		next := nextDailyFire(time.Now(), ent.req.Trigger.Hour, ent.req.Trigger.Minute)
		ent.nextFire = next
		ent.timer = time.AfterFunc(time.Until(next), func() { e.fire(id) })
	} else {
		delete(e.pending, id)
	}
	e.mu.Unlock()

	e.deliver(d)
}

// CancelLocal removes a pending entry. Unknown or already-fired ids are not
// an error.
func (e *Engine) CancelLocal(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.pending[id]
	if !ok {
		return nil
	}
	ent.timer.Stop()
	delete(e.pending, id)
	return nil
}

// ListPending returns a snapshot of the pending queue ordered by next fire
// time.
func (e *Engine) ListPending(ctx context.Context) ([]Pending, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Pending, 0, len(e.pending))
	for id, ent := range e.pending {
		out = append(out, Pending{
			ID:       id,
			Owner:    ent.req.Owner,
			Title:    ent.req.Title,
			Body:     ent.req.Body,
			Data:     ent.req.Data,
			Channel:  ent.req.Channel,
			Trigger:  ent.req.Trigger,
			NextFire: ent.nextFire,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextFire.Before(out[j].NextFire) })
	return out, nil
}

// Close stops all timers. Pending entries are discarded.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	for id, ent := range e.pending {
		ent.timer.Stop()
		delete(e.pending, id)
	}
	e.logger.Debug("local notification engine stopped")
}

func deliveryFor(id string, req Request) Delivery {
	return Delivery{
		ID:      id,
		Owner:   req.Owner,
		Title:   req.Title,
		Body:    req.Body,
		Data:    req.Data,
		Channel: req.Channel,
	}
}

// nextDailyFire returns the next wall-clock occurrence of hour:minute after
// now, rolling to tomorrow when today's slot has already passed.
func nextDailyFire(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
