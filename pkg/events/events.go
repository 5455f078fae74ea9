// Package events defines the booking notices exchanged over the message bus.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/Geordiekingsbeer/stripe-serverless/pkg/booking"
)

// Routing keys on the booking exchange.
const (
	RKBookingFulfilled = "booking.fulfilled"
	RKBookingCreated   = "booking.created"
)

// BookingNotice carries enough for a staff notification.
type BookingNotice struct {
	Source        string         `json:"source"` // "webhook" or "admin"
	TenantID      string         `json:"tenant_id"`
	BookingRef    string         `json:"booking_ref"`
	CustomerName  string         `json:"customer_name,omitempty"`
	CustomerEmail string         `json:"customer_email,omitempty"`
	PartySize     int            `json:"party_size,omitempty"`
	StaffEmail    string         `json:"staff_email,omitempty"`
	Slots         []booking.Slot `json:"slots"`
}

// RoutingKey picks the exchange key for the notice source.
func (n BookingNotice) RoutingKey() string {
	if n.Source == "admin" {
		return RKBookingCreated
	}
	return RKBookingFulfilled
}

func MustUnmarshal[T any](b []byte) (T, error) {
	var t T
	if err := json.Unmarshal(b, &t); err != nil {
		var zero T
		return zero, fmt.Errorf("decode payload failed: %w", err)
	}
	return t, nil
}
