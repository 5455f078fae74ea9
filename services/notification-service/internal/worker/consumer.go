package worker

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Geordiekingsbeer/stripe-serverless/pkg/events"
	"github.com/Geordiekingsbeer/stripe-serverless/services/notification-service/internal/notifier"
)

// errPoison marks a delivery that can never succeed; it goes to the
// dead-letter queue instead of being requeued.
var errPoison = errors.New("undeliverable message")

type Worker struct {
	notifier   notifier.Notifier
	adminEmail string
	log        *zap.Logger
}

// NewWorker builds a worker. adminEmail receives notices that name no staff
// recipient.
func NewWorker(n notifier.Notifier, adminEmail string, log *zap.Logger) *Worker {
	return &Worker{notifier: n, adminEmail: adminEmail, log: log}
}

// Run drains msgs until ctx ends or the channel closes.
func (w *Worker) Run(ctx context.Context, msgs <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			w.handle(ctx, d)
		}
	}
}

func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	err := w.process(ctx, d.RoutingKey, d.Body)
	switch {
	case errors.Is(err, errPoison):
		w.log.Error("dead-lettering message", zap.String("key", d.RoutingKey), zap.Error(err))
		_ = d.Nack(false, false)
	case err != nil:
		w.log.Warn("notify failed; requeue", zap.String("key", d.RoutingKey), zap.Error(err))
		_ = d.Nack(false, true)
	default:
		_ = d.Ack(false)
	}
}

func (w *Worker) process(ctx context.Context, key string, body []byte) error {
	switch key {
	case events.RKBookingFulfilled, events.RKBookingCreated:
	default:
		w.log.Info("skip unknown key", zap.String("key", key))
		return nil
	}

	n, err := events.MustUnmarshal[events.BookingNotice](body)
	if err != nil {
		return fmt.Errorf("%w: %v", errPoison, err)
	}
	if len(n.Slots) == 0 {
		return fmt.Errorf("%w: notice %s has no slots", errPoison, n.BookingRef)
	}

	to := n.StaffEmail
	if to == "" {
		to = w.adminEmail
	}
	if to == "" {
		w.log.Warn("no staff recipient; notice dropped", zap.String("booking_ref", n.BookingRef))
		return nil
	}

	msg, err := notifier.Render(n, to)
	if err != nil {
		return fmt.Errorf("%w: %v", errPoison, err)
	}
	if err := w.notifier.Notify(ctx, msg); err != nil {
		if errors.Is(err, notifier.ErrRejected) {
			return fmt.Errorf("%w: %v", errPoison, err)
		}
		return err
	}
	w.log.Info("staff notified", zap.String("booking_ref", n.BookingRef), zap.String("to", to),
		zap.String("source", n.Source))
	return nil
}
