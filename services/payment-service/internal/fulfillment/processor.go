// Package fulfillment turns verified payment-completion events into booked
// premium slots, at most once per booking reference.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Geordiekingsbeer/stripe-serverless/pkg/booking"
	"github.com/Geordiekingsbeer/stripe-serverless/pkg/events"
	"github.com/Geordiekingsbeer/stripe-serverless/pkg/store"
)

var (
	ErrInvalidSignature  = errors.New("invalid webhook signature")
	ErrInvalidMetadata   = errors.New("invalid booking metadata")
	ErrFulfillmentFailed = errors.New("booking fulfillment failed")
)

// Provider event types the processor acts on.
const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

const paymentStatusUnpaid = "unpaid"

// PaymentEvent is a verified provider event reduced to what fulfillment reads.
type PaymentEvent struct {
	EventID       string
	Type          string
	SessionID     string
	OrderID       string
	PaymentStatus string
	Metadata      map[string]string
}

// Verifier authenticates a raw webhook body against its signature header.
// It must see the body exactly as received.
type Verifier interface {
	Verify(payload []byte, signature string) (PaymentEvent, error)
}

// Notifier receives a summary of each fresh fulfillment.
type Notifier interface {
	Notify(ctx context.Context, n events.BookingNotice) error
}

type Outcome string

const (
	OutcomeFulfilled       Outcome = "fulfilled"
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomeIgnored         Outcome = "ignored"
	OutcomeAwaitingPayment Outcome = "awaiting_payment"
)

type Result struct {
	Outcome         Outcome
	EventType       string
	BookingRef      string
	SlotsWritten    int
	TrackingUpdated bool
}

type Config struct {
	BookingDuration time.Duration
	NotifyTimeout   time.Duration
}

type Processor struct {
	cfg      Config
	verifier Verifier
	slots    store.SlotStore
	tracking store.TrackingStore
	notifier Notifier
	log      *zap.Logger
	tracer   trace.Tracer
}

// NewProcessor wires a processor. notifier may be nil.
func NewProcessor(cfg Config, v Verifier, slots store.SlotStore, tracking store.TrackingStore, n Notifier, log *zap.Logger) *Processor {
	if cfg.BookingDuration == 0 {
		cfg.BookingDuration = 2 * time.Hour
	}
	if cfg.NotifyTimeout == 0 {
		cfg.NotifyTimeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{
		cfg:      cfg,
		verifier: v,
		slots:    slots,
		tracking: tracking,
		notifier: n,
		log:      log,
		tracer:   otel.Tracer("payment-service/fulfillment"),
	}
}

// Handle runs one webhook delivery: verify, dedupe, derive, write slots,
// then mark conversion tracking. Only the slot write can fail the delivery
// once the input is valid.
func (p *Processor) Handle(ctx context.Context, payload []byte, signature string) (Result, error) {
	ctx, span := p.tracer.Start(ctx, "webhook.handle")
	defer span.End()

	ev, err := p.verifier.Verify(payload, signature)
	if err != nil {
		p.log.Warn("webhook signature verification failed", zap.Error(err))
		span.SetStatus(codes.Error, "invalid signature")
		if !errors.Is(err, ErrInvalidSignature) {
			err = fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return Result{}, err
	}
	span.SetAttributes(attribute.String("event.type", ev.Type), attribute.String("event.id", ev.EventID))
	log := p.log.With(zap.String("event_id", ev.EventID), zap.String("event_type", ev.Type))

	res := Result{EventType: ev.Type}
	switch ev.Type {
	case EventCheckoutCompleted:
		if ev.PaymentStatus == paymentStatusUnpaid {
			log.Info("checkout completed without payment yet; waiting for async payment event",
				zap.String("session_id", ev.SessionID))
			res.Outcome = OutcomeAwaitingPayment
			return res, nil
		}
	case EventAsyncPaymentSucceeded:
	default:
		log.Debug("ignoring event type")
		res.Outcome = OutcomeIgnored
		return res, nil
	}

	intent, err := booking.ParseIntent(ev.Metadata, ev.SessionID, ev.OrderID)
	if err != nil {
		log.Error("cannot fulfill paid session: metadata invalid",
			zap.String("session_id", ev.SessionID), zap.Error(err))
		span.SetStatus(codes.Error, "invalid metadata")
		return res, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}
	res.BookingRef = intent.BookingRef
	span.SetAttributes(attribute.String("booking.ref", intent.BookingRef), attribute.String("tenant.id", intent.TenantID))
	log = log.With(zap.String("booking_ref", intent.BookingRef), zap.String("tenant_id", intent.TenantID))

	// a provider hang-up must not abort a write half way
	ctx = context.WithoutCancel(ctx)

	res, err = p.fulfill(ctx, log, intent, res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fulfillment failed")
		return res, err
	}

	res.TrackingUpdated = p.markTracking(ctx, log, intent)
	span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
	return res, nil
}

// fulfill derives the slot rows and writes them unless the booking
// reference already has some.
func (p *Processor) fulfill(ctx context.Context, log *zap.Logger, in booking.Intent, res Result) (Result, error) {
	end, err := booking.EndTime(in.StartTime, p.cfg.BookingDuration)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}
	rows := booking.ExpandSlots(in, end)

	exists, err := p.hasBookingRef(ctx, in.BookingRef)
	if err != nil {
		// the unique index still guards the insert below
		log.Warn("duplicate pre-check failed; relying on unique constraint", zap.Error(err))
	}
	if exists {
		log.Info("duplicate delivery; slots already booked")
		res.Outcome = OutcomeDuplicate
		return res, nil
	}

	created, err := p.insertSlots(ctx, rows)
	switch {
	case errors.Is(err, store.ErrDuplicateBookingRef):
		log.Info("duplicate delivery detected by unique constraint")
		res.Outcome = OutcomeDuplicate
		return res, nil
	case err != nil:
		log.Error("slot insert failed; provider will retry", zap.Error(err), zap.Int("tables", len(rows)))
		return res, fmt.Errorf("%w: %w", ErrFulfillmentFailed, err)
	}

	res.Outcome = OutcomeFulfilled
	res.SlotsWritten = len(created)
	log.Info("booking fulfilled", zap.Int("tables", len(created)), zap.String("date", in.Date),
		zap.String("start", rows[0].StartTime), zap.String("end", end))

	p.notify(ctx, log, in, created)
	return res, nil
}

func (p *Processor) hasBookingRef(ctx context.Context, ref string) (bool, error) {
	ctx, span := p.tracer.Start(ctx, "store.has_booking_ref")
	defer span.End()
	found, err := p.slots.HasBookingRef(ctx, ref)
	if err != nil {
		span.RecordError(err)
	}
	return found, err
}

func (p *Processor) insertSlots(ctx context.Context, rows []booking.Slot) ([]booking.Slot, error) {
	ctx, span := p.tracer.Start(ctx, "store.insert_slots")
	defer span.End()
	span.SetAttributes(attribute.Int("rows", len(rows)))
	created, err := p.slots.InsertSlots(ctx, rows)
	if err != nil && !errors.Is(err, store.ErrDuplicateBookingRef) {
		span.RecordError(err)
	}
	return created, err
}

// markTracking flips payment_successful. Failure is logged only: the slots
// are already booked and a retry would not change that.
func (p *Processor) markTracking(ctx context.Context, log *zap.Logger, in booking.Intent) bool {
	ctx, span := p.tracer.Start(ctx, "store.mark_payment_successful")
	defer span.End()

	err := p.tracking.MarkPaymentSuccessful(ctx, in.TenantID, in.BookingRef)
	switch {
	case errors.Is(err, store.ErrTrackingNotFound):
		log.Warn("no conversion tracking row to update")
		return false
	case err != nil:
		span.RecordError(err)
		log.Error("conversion tracking update failed", zap.Error(err))
		return false
	}
	return true
}

func (p *Processor) notify(ctx context.Context, log *zap.Logger, in booking.Intent, slots []booking.Slot) {
	if p.notifier == nil {
		return
	}
	notice := events.BookingNotice{
		Source:        "webhook",
		TenantID:      in.TenantID,
		BookingRef:    in.BookingRef,
		CustomerName:  in.CustomerName,
		CustomerEmail: in.CustomerEmail,
		PartySize:     in.PartySize,
		Slots:         slots,
	}
	Detach(ctx, log, "booking notification", p.cfg.NotifyTimeout, func(ctx context.Context) error {
		return p.notifier.Notify(ctx, notice)
	})
}
