// Package stripecli adapts stripe-go to the payment service: webhook
// signature verification and checkout session creation.
package stripecli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/Geordiekingsbeer/stripe-serverless/services/payment-service/internal/fulfillment"
)

type Verifier struct {
	secret    string
	tolerance time.Duration
}

// NewVerifier checks signatures made with the endpoint's signing secret.
// A zero tolerance uses stripe-go's default of five minutes.
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &Verifier{secret: secret, tolerance: tolerance}
}

func (v *Verifier) Verify(payload []byte, signature string) (fulfillment.PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return fulfillment.PaymentEvent{}, fmt.Errorf("%w: %v", fulfillment.ErrInvalidSignature, err)
	}

	ev := fulfillment.PaymentEvent{EventID: event.ID, Type: string(event.Type)}
	if !strings.HasPrefix(ev.Type, "checkout.session.") || event.Data == nil {
		return ev, nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		// signed by the provider but not a session; let metadata validation reject it
		return ev, nil
	}
	ev.SessionID = cs.ID
	ev.PaymentStatus = string(cs.PaymentStatus)
	ev.Metadata = cs.Metadata
	if cs.PaymentIntent != nil {
		ev.OrderID = cs.PaymentIntent.ID
	}
	return ev, nil
}
