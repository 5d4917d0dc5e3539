// Package dispatch connects platform delivery callbacks to the history store
// and the router, and fans both kinds of event (received, tapped) out to
// subscribers. Subscriptions return an explicit cancel handle; there is no
// module-level listener state.
package dispatch

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Spacey6849/palliative-care-app/internal/history"
	"github.com/Spacey6849/palliative-care-app/internal/metrics"
	"github.com/Spacey6849/palliative-care-app/internal/platform"
	"github.com/Spacey6849/palliative-care-app/internal/route"
)

// History is the slice of the history store the dispatcher needs.
type History interface {
	Add(ctx context.Context, userID string, in history.Incoming) history.Record
}

// Opener resolves a tapped record to a destination.
type Opener interface {
	Open(ctx context.Context, userID string, rec history.Record) route.Destination
}

// ReceivedFunc observes notifications received while the app is alive.
type ReceivedFunc func(userID string, rec history.Record)

// TappedFunc observes notification taps and the destination they resolved to.
type TappedFunc func(userID string, rec history.Record, dest route.Destination)

// Dispatcher processes inbound notification events.
type Dispatcher struct {
	history History
	router  Opener
	logger  *zap.Logger

	mu       sync.Mutex
	next     int
	received map[int]ReceivedFunc
	tapped   map[int]TappedFunc
}

// NewDispatcher creates a dispatcher over the given history store and router.
func NewDispatcher(hist History, router Opener, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		history:  hist,
		router:   router,
		logger:   logger,
		received: make(map[int]ReceivedFunc),
		tapped:   make(map[int]TappedFunc),
	}
}

// OnReceived subscribes to received notifications. The returned cancel
// removes the subscription and is safe to call more than once.
func (d *Dispatcher) OnReceived(fn ReceivedFunc) (cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.next
	d.next++
	d.received[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.received, id)
	}
}

// OnTapped subscribes to notification taps.
func (d *Dispatcher) OnTapped(fn TappedFunc) (cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.next
	d.next++
	d.tapped[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.tapped, id)
	}
}

// Received records a notification in the user's history and notifies
// subscribers. The stored record is returned.
func (d *Dispatcher) Received(ctx context.Context, userID string, in history.Incoming) history.Record {
	rec := d.history.Add(ctx, userID, in)
	metrics.RecordNotificationDelivered(string(rec.Category))
	d.logger.Debug("notification received",
		zap.String("user_id", userID),
		zap.String("record_id", rec.ID),
		zap.String("category", string(rec.Category)))

	for _, fn := range d.receivedSnapshot() {
		fn(userID, rec)
	}
	return rec
}

// Tapped handles the user opening a notification: the record is marked read,
// the destination resolved, and subscribers notified.
func (d *Dispatcher) Tapped(ctx context.Context, userID string, rec history.Record) route.Destination {
	dest := d.router.Open(ctx, userID, rec)

	for _, fn := range d.tappedSnapshot() {
		fn(userID, rec, dest)
	}
	return dest
}

// DeliveryHandler adapts the dispatcher to the platform delivery callback.
func (d *Dispatcher) DeliveryHandler() platform.DeliverFunc {
	return func(del platform.Delivery) {
		d.Received(context.Background(), del.Owner, history.Incoming{
			ID:    del.ID,
			Title: del.Title,
			Body:  del.Body,
			Data:  del.Data,
		})
	}
}

func (d *Dispatcher) receivedSnapshot() []ReceivedFunc {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]ReceivedFunc, 0, len(d.received))
	for _, fn := range d.received {
		out = append(out, fn)
	}
	return out
}

func (d *Dispatcher) tappedSnapshot() []TappedFunc {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]TappedFunc, 0, len(d.tapped))
	for _, fn := range d.tapped {
		out = append(out, fn)
	}
	return out
}
