package fulfillment

import (
	"context"

	"github.com/Geordiekingsbeer/stripe-serverless/pkg/events"
)

// JSONPublisher is the slice of mq.Publisher the bus notifier needs.
type JSONPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// BusNotifier forwards booking notices to the booking exchange, where the
// notification service picks them up.
type BusNotifier struct {
	pub JSONPublisher
}

func NewBusNotifier(pub JSONPublisher) *BusNotifier {
	return &BusNotifier{pub: pub}
}

func (b *BusNotifier) Notify(ctx context.Context, n events.BookingNotice) error {
	return b.pub.PublishJSON(ctx, n.RoutingKey(), n)
}
