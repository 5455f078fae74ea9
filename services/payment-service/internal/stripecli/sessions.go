package stripecli

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"

	"github.com/Geordiekingsbeer/stripe-serverless/pkg/booking"
)

const productName = "Premium Table Slot Booking"

type CheckoutRequest struct {
	Intent     booking.Intent
	TotalPence int64
}

type CheckoutSession struct {
	ID  string
	URL string
}

type SessionsConfig struct {
	SecretKey      string
	SuccessBaseURL string
	CancelURL      string
}

type Sessions struct {
	cfg    SessionsConfig
	create func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

func NewSessions(cfg SessionsConfig) *Sessions {
	c := &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: cfg.SecretKey}
	return &Sessions{cfg: cfg, create: c.New}
}

// Create opens a hosted checkout for the intent. A double-submitted form
// yields the same session; see idempotencyKey.
func (s *Sessions) Create(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	if req.TotalPence <= 0 {
		return CheckoutSession{}, errors.New("checkout total must be positive")
	}
	params := s.params(req)
	params.Context = ctx

	cs, err := s.create(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("create checkout session: %w", err)
	}
	return CheckoutSession{ID: cs.ID, URL: cs.URL}, nil
}

func (s *Sessions) params(req CheckoutRequest) *stripe.CheckoutSessionParams {
	in := req.Intent
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(string(stripe.CurrencyGBP)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(productName),
					Description: stripe.String(description(in)),
				},
				UnitAmount: stripe.Int64(req.TotalPence),
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(s.successURL(in)),
		CancelURL:  stripe.String(s.cfg.CancelURL),
	}
	if in.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(in.CustomerEmail)
	}
	for k, v := range booking.Metadata(in) {
		params.AddMetadata(k, v)
	}
	params.SetIdempotencyKey(s.idempotencyKey(req))
	return params
}

func description(in booking.Intent) string {
	return fmt.Sprintf("Reservation for %s (Party of %d) on %s at %s. Total tables: %d.",
		in.CustomerName, in.PartySize, in.Date, in.StartTime, len(in.TableIDs))
}

// idempotencyKey is the booking reference plus a digest of everything that
// shapes the request. The provider rejects a reused key whose parameters
// differ, so an edited resubmission under the same reference gets a fresh
// session instead of an error.
func (s *Sessions) idempotencyKey(req CheckoutRequest) string {
	in := req.Intent
	ids := make([]string, len(in.TableIDs))
	for i, id := range in.TableIDs {
		ids[i] = strconv.Itoa(id)
	}
	h := sha256.New()
	for _, part := range []string{
		in.TenantID, strings.Join(ids, ","), in.Date, in.StartTime,
		strconv.Itoa(in.PartySize), in.CustomerName, in.CustomerEmail,
		strconv.FormatInt(req.TotalPence, 10), s.cfg.SuccessBaseURL, s.cfg.CancelURL,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return in.BookingRef + "-" + hex.EncodeToString(h.Sum(nil))[:16]
}

// successURL keeps the {CHECKOUT_SESSION_ID} placeholder unescaped; the
// provider substitutes it on redirect.
func (s *Sessions) successURL(in booking.Intent) string {
	q := url.Values{}
	q.Set("tenant_id", in.TenantID)
	q.Set("booking_ref", in.BookingRef)
	return strings.TrimSuffix(s.cfg.SuccessBaseURL, "/") + "/success-page.html?" +
		q.Encode() + "&session_id={CHECKOUT_SESSION_ID}"
}
