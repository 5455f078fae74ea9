package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Geordiekingsbeer/stripe-serverless/pkg/booking"
	"github.com/Geordiekingsbeer/stripe-serverless/services/payment-service/internal/stripecli"
)

// SessionCreator is implemented by *stripecli.Sessions.
type SessionCreator interface {
	Create(ctx context.Context, req stripecli.CheckoutRequest) (stripecli.CheckoutSession, error)
}

type checkoutBody struct {
	TableIDs      []int  `json:"table_ids"`
	BookingDate   string `json:"booking_date"`
	BookingTime   string `json:"booking_time"`
	CustomerEmail string `json:"customer_email"`
	CustomerName  string `json:"customer_name"`
	PartySize     int    `json:"party_size"`
	TotalPence    int64  `json:"total_pence"`
	TenantID      string `json:"tenant_id"`
	BookingRef    string `json:"booking_ref"`
}

type CheckoutHandler struct {
	sessions SessionCreator
	log      *zap.Logger
}

func NewCheckoutHandler(s SessionCreator, log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{sessions: s, log: log}
}

func (h *CheckoutHandler) Create(c *gin.Context) {
	var body checkoutBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "detail": err.Error()})
		return
	}

	// the intent must survive the webhook's parser, so validate with it
	in := booking.Intent{
		TenantID:      strings.TrimSpace(body.TenantID),
		TableIDs:      body.TableIDs,
		Date:          strings.TrimSpace(body.BookingDate),
		StartTime:     strings.TrimSpace(body.BookingTime),
		PartySize:     body.PartySize,
		CustomerName:  strings.TrimSpace(body.CustomerName),
		CustomerEmail: strings.TrimSpace(body.CustomerEmail),
		BookingRef:    strings.TrimSpace(body.BookingRef),
	}
	if len(in.TableIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "table_ids must not be empty"})
		return
	}
	if body.TotalPence <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "total_pence must be positive"})
		return
	}
	parsed, err := booking.ParseIntent(booking.Metadata(in), "", "")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking", "detail": err.Error()})
		return
	}
	in.StartTime = parsed.StartTime

	cs, err := h.sessions.Create(c.Request.Context(), stripecli.CheckoutRequest{Intent: in, TotalPence: body.TotalPence})
	if err != nil {
		h.log.Error("checkout session creation failed", zap.String("booking_ref", in.BookingRef), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not create checkout session"})
		return
	}

	h.log.Info("checkout session created", zap.String("booking_ref", in.BookingRef),
		zap.String("tenant_id", in.TenantID), zap.String("session_id", cs.ID))
	c.JSON(http.StatusOK, gin.H{"sessionId": cs.ID, "url": cs.URL})
}
