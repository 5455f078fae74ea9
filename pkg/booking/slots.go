package booking

import (
	"fmt"
	"sort"
	"strings"
)

// HostNotes is the free-text description staff see on each slot. It carries
// the provider order id so support can trace a slot back to its payment.
func HostNotes(in Intent) string {
	var parts []string
	if in.CustomerName != "" {
		who := in.CustomerName
		if in.PartySize > 0 {
			who = fmt.Sprintf("%s (party of %d)", who, in.PartySize)
		}
		parts = append(parts, who)
	} else if in.PartySize > 0 {
		parts = append(parts, fmt.Sprintf("Party of %d", in.PartySize))
	}
	if in.CustomerEmail != "" {
		parts = append(parts, "Email: "+in.CustomerEmail)
	}
	if in.OrderID != "" {
		parts = append(parts, "Order: "+in.OrderID)
	}
	return strings.Join(parts, ". ")
}

// ExpandSlots emits one slot per table in the intent. endTime must already
// be in HH:MM:SS form.
func ExpandSlots(in Intent, endTime string) []Slot {
	start := in.StartTime
	if len(start) == 5 {
		start += ":00"
	}
	notes := HostNotes(in)

	slots := make([]Slot, 0, len(in.TableIDs))
	for _, id := range in.TableIDs {
		slots = append(slots, Slot{
			TenantID:       in.TenantID,
			TableID:        id,
			Date:           in.Date,
			StartTime:      start,
			EndTime:        endTime,
			HostNotes:      notes,
			BookingRef:     in.BookingRef,
			PaymentOrderID: in.OrderID,
		})
	}
	return slots
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
