// Package booking holds the premium-slot domain types and the pure
// derivations shared by the checkout producer, the webhook processor and the
// admin endpoints.
package booking

// Intent is the booking a customer paid for, as carried in the payment
// provider's session metadata.
type Intent struct {
	TenantID      string
	TableIDs      []int
	Date          string // YYYY-MM-DD
	StartTime     string // HH:MM
	PartySize     int
	CustomerName  string
	CustomerEmail string
	BookingRef    string
	SessionID     string
	OrderID       string
}

// Slot is one table reserved for one date and time range (a premium_slots row).
type Slot struct {
	ID             int64  `json:"id,omitempty"`
	TenantID       string `json:"tenant_id"`
	TableID        int    `json:"table_id"`
	Date           string `json:"date"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	HostNotes      string `json:"host_notes"`
	BookingRef     string `json:"booking_ref"`
	PaymentOrderID string `json:"payment_order_id,omitempty"`
}

// TablePosition is a table placement on a tenant's floor plan.
type TablePosition struct {
	ID       int     `json:"id"`
	TenantID string  `json:"tenant_id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
}
