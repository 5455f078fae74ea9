package stripecli

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/Geordiekingsbeer/stripe-serverless/pkg/booking"
	"github.com/Geordiekingsbeer/stripe-serverless/services/payment-service/internal/fulfillment"
)

const testSecret = "whsec_test_secret"

const sessionEvent = `{
  "id": "evt_123",
  "object": "event",
  "type": "checkout.session.completed",
  "data": {"object": {
    "id": "cs_test_abc",
    "object": "checkout.session",
    "payment_status": "paid",
    "payment_intent": "pi_777",
    "metadata": {"booking_ref": "BR-001", "table_ids": "[5,12]"}
  }}
}`

func sign(t *testing.T, body string) string {
	t.Helper()
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(body),
		Secret:  testSecret,
	}).Header
}

func TestVerifyDecodesCheckoutSession(t *testing.T) {
	v := NewVerifier(testSecret, 0)

	ev, err := v.Verify([]byte(sessionEvent), sign(t, sessionEvent))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ev.EventID != "evt_123" || ev.Type != "checkout.session.completed" {
		t.Fatalf("event = %+v", ev)
	}
	if ev.SessionID != "cs_test_abc" || ev.OrderID != "pi_777" || ev.PaymentStatus != "paid" {
		t.Fatalf("session fields = %+v", ev)
	}
	if ev.Metadata["booking_ref"] != "BR-001" {
		t.Fatalf("metadata = %v", ev.Metadata)
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	v := NewVerifier(testSecret, 0)
	sig := sign(t, sessionEvent)
	tampered := strings.Replace(sessionEvent, "BR-001", "BR-002", 1)

	_, err := v.Verify([]byte(tampered), sig)
	if !errors.Is(err, fulfillment.ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v := NewVerifier("whsec_other", 0)
	if _, err := v.Verify([]byte(sessionEvent), sign(t, sessionEvent)); !errors.Is(err, fulfillment.ErrInvalidSignature) {
		t.Fatalf("err = %v", err)
	}
	if _, err := v.Verify([]byte(sessionEvent), ""); !errors.Is(err, fulfillment.ErrInvalidSignature) {
		t.Fatalf("missing header err = %v", err)
	}
}

func TestVerifyNonSessionEvent(t *testing.T) {
	body := `{"id":"evt_9","object":"event","type":"payment_intent.created","data":{"object":{"id":"pi_1"}}}`
	ev, err := NewVerifier(testSecret, 0).Verify([]byte(body), sign(t, body))
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != "payment_intent.created" || ev.SessionID != "" {
		t.Fatalf("event = %+v", ev)
	}
}

func testIntent() booking.Intent {
	return booking.Intent{
		TenantID:      "t1",
		TableIDs:      []int{5, 12},
		Date:          "2025-06-01",
		StartTime:     "19:00",
		PartySize:     4,
		CustomerName:  "Ann",
		CustomerEmail: "ann@example.com",
		BookingRef:    "BR-001",
	}
}

func TestSessionParams(t *testing.T) {
	s := &Sessions{cfg: SessionsConfig{SuccessBaseURL: "https://book.example.com/", CancelURL: "https://book.example.com/cancel"}}
	p := s.params(CheckoutRequest{Intent: testIntent(), TotalPence: 2500})

	if *p.Mode != "payment" || *p.CancelURL != "https://book.example.com/cancel" {
		t.Fatalf("mode/cancel = %s %s", *p.Mode, *p.CancelURL)
	}
	li := p.LineItems[0]
	if *li.PriceData.UnitAmount != 2500 || *li.PriceData.Currency != "gbp" || *li.PriceData.ProductData.Name != productName {
		t.Fatalf("line item = %+v", li.PriceData)
	}
	wantDesc := "Reservation for Ann (Party of 4) on 2025-06-01 at 19:00. Total tables: 2."
	if d := li.PriceData.ProductData.Description; d == nil || *d != wantDesc {
		t.Fatalf("description = %v, want %q", d, wantDesc)
	}
	if p.IdempotencyKey == nil || !strings.HasPrefix(*p.IdempotencyKey, "BR-001-") {
		t.Fatalf("idempotency key = %v", p.IdempotencyKey)
	}

	succ := *p.SuccessURL
	if !strings.HasPrefix(succ, "https://book.example.com/success-page.html?") ||
		!strings.HasSuffix(succ, "&session_id={CHECKOUT_SESSION_ID}") {
		t.Fatalf("success url = %s", succ)
	}
	u, err := url.Parse(strings.TrimSuffix(succ, "&session_id={CHECKOUT_SESSION_ID}"))
	if err != nil {
		t.Fatal(err)
	}
	if u.Query().Get("booking_ref") != "BR-001" || u.Query().Get("tenant_id") != "t1" {
		t.Fatalf("success query = %v", u.Query())
	}
}

func TestSessionIdempotencyKeyTracksParams(t *testing.T) {
	s := &Sessions{cfg: SessionsConfig{SuccessBaseURL: "https://x", CancelURL: "https://x/cancel"}}
	req := CheckoutRequest{Intent: testIntent(), TotalPence: 2500}
	key := func(r CheckoutRequest) string { return *s.params(r).IdempotencyKey }

	base := key(req)
	if again := key(CheckoutRequest{Intent: testIntent(), TotalPence: 2500}); again != base {
		t.Fatalf("same request, different keys: %s %s", base, again)
	}

	changed := map[string]CheckoutRequest{}
	r := req
	r.TotalPence = 3000
	changed["total"] = r
	r = CheckoutRequest{Intent: testIntent(), TotalPence: 2500}
	r.Intent.TableIDs = []int{5}
	changed["tables"] = r
	r = CheckoutRequest{Intent: testIntent(), TotalPence: 2500}
	r.Intent.StartTime = "20:00"
	changed["time"] = r
	r = CheckoutRequest{Intent: testIntent(), TotalPence: 2500}
	r.Intent.CustomerEmail = "bob@example.com"
	changed["email"] = r

	for name, r := range changed {
		k := key(r)
		if k == base {
			t.Errorf("%s change kept key %s", name, k)
		}
		if !strings.HasPrefix(k, "BR-001-") {
			t.Errorf("%s key = %s", name, k)
		}
	}
}

func TestSessionMetadataRoundTrips(t *testing.T) {
	s := &Sessions{cfg: SessionsConfig{SuccessBaseURL: "https://x"}}
	in := testIntent()
	p := s.params(CheckoutRequest{Intent: in, TotalPence: 100})

	got, err := booking.ParseIntent(p.Metadata, "cs_1", "pi_1")
	if err != nil {
		t.Fatalf("parse metadata written at checkout: %v", err)
	}
	if got.BookingRef != in.BookingRef || got.StartTime != in.StartTime || len(got.TableIDs) != 2 || got.PartySize != 4 {
		t.Fatalf("round trip = %+v", got)
	}
}

func TestSessionsCreate(t *testing.T) {
	var seen *stripe.CheckoutSessionParams
	s := &Sessions{
		cfg: SessionsConfig{SuccessBaseURL: "https://x"},
		create: func(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			seen = p
			return &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/pay/cs_1"}, nil
		},
	}
	cs, err := s.Create(context.Background(), CheckoutRequest{Intent: testIntent(), TotalPence: 2500})
	if err != nil {
		t.Fatal(err)
	}
	if cs.ID != "cs_1" || cs.URL == "" || seen == nil || seen.Context == nil {
		t.Fatalf("session = %+v", cs)
	}

	s.create = func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return nil, errors.New("card_declined")
	}
	if _, err := s.Create(context.Background(), CheckoutRequest{Intent: testIntent(), TotalPence: 2500}); err == nil {
		t.Fatal("provider error swallowed")
	}
	if _, err := s.Create(context.Background(), CheckoutRequest{Intent: testIntent()}); err == nil {
		t.Fatal("zero total accepted")
	}
}
