package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// Message is one outbound staff email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Notifier delivers a message. Implementations may be swapped for other
// channels (SMS, chat).
type Notifier interface {
	Notify(ctx context.Context, m Message) error
}

// ConsoleNotifier writes messages to the log; used when no email provider
// is configured.
type ConsoleNotifier struct {
	log *zap.Logger
}

func NewConsole(log *zap.Logger) *ConsoleNotifier {
	return &ConsoleNotifier{log: log}
}

func (c *ConsoleNotifier) Notify(_ context.Context, m Message) error {
	c.log.Info("notify", zap.String("to", m.To), zap.String("subject", m.Subject), zap.String("text", m.Text))
	return nil
}

// ErrRejected marks a message the provider refused outright. Sending it
// again unchanged gets the same answer.
var ErrRejected = errors.New("notifier: message rejected")

type statusKey struct{}

// statusTransport records the response status on the request context so
// Notify can tell a refusal from an outage.
type statusTransport struct {
	next http.RoundTripper
}

func (t statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if resp != nil {
		if p, ok := req.Context().Value(statusKey{}).(*int); ok {
			*p = resp.StatusCode
		}
	}
	return resp, err
}

type ResendNotifier struct {
	client *resend.Client
	from   string
}

func NewResend(apiKey, from string) *ResendNotifier {
	hc := &http.Client{
		Timeout:   15 * time.Second,
		Transport: statusTransport{next: http.DefaultTransport},
	}
	return &ResendNotifier{client: resend.NewCustomClient(hc, apiKey), from: from}
}

// Notify sends m. A 4xx answer other than 408 or 429 wraps ErrRejected.
func (r *ResendNotifier) Notify(ctx context.Context, m Message) error {
	status := new(int)
	ctx = context.WithValue(ctx, statusKey{}, status)
	_, err := r.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{m.To},
		Subject: m.Subject,
		Html:    m.HTML,
		Text:    m.Text,
	})
	if err != nil {
		if rejected(*status) {
			return fmt.Errorf("%w: resend status %d: %v", ErrRejected, *status, err)
		}
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}

func rejected(status int) bool {
	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests {
		return false
	}
	return status >= 400 && status < 500
}
