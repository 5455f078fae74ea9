package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Geordiekingsbeer/stripe-serverless/services/payment-service/internal/fulfillment"
)

const (
	signatureHeader = "Stripe-Signature"
	maxWebhookBody  = 1 << 20
)

// WebhookProcessor is implemented by *fulfillment.Processor.
type WebhookProcessor interface {
	Handle(ctx context.Context, payload []byte, signature string) (fulfillment.Result, error)
}

type webhookResponse struct {
	Received bool   `json:"received"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

type WebhookHandler struct {
	proc WebhookProcessor
	log  *zap.Logger
}

func NewWebhookHandler(proc WebhookProcessor, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{proc: proc, log: log}
}

// Handle passes the body through untouched; the signature covers the exact
// bytes the provider sent.
func (h *WebhookHandler) Handle(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	payload, err := c.GetRawData()
	if err != nil {
		h.log.Warn("read webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, webhookResponse{Error: "unreadable body", Detail: err.Error()})
		return
	}

	res, err := h.proc.Handle(c.Request.Context(), payload, c.GetHeader(signatureHeader))
	switch {
	case errors.Is(err, fulfillment.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, webhookResponse{Error: "invalid signature"})
	case errors.Is(err, fulfillment.ErrInvalidMetadata):
		c.JSON(http.StatusBadRequest, webhookResponse{Error: "invalid metadata", Detail: err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, webhookResponse{Error: "fulfillment failed", Detail: err.Error()})
	default:
		c.JSON(http.StatusOK, webhookResponse{Received: true, Message: outcomeMessage(res)})
	}
}

func outcomeMessage(res fulfillment.Result) string {
	switch res.Outcome {
	case fulfillment.OutcomeFulfilled:
		return "Booking fulfilled."
	case fulfillment.OutcomeDuplicate:
		return "Booking already fulfilled."
	case fulfillment.OutcomeAwaitingPayment:
		return "Awaiting payment confirmation."
	default:
		return "Event type ignored."
	}
}
