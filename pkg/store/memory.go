package store

import (
	"context"
	"sync"

	"github.com/Geordiekingsbeer/stripe-serverless/pkg/booking"
)

type trackingKey struct{ tenant, ref string }

type slotKey struct {
	ref   string
	table int
}

// Memory is a process-local Backend. Its check-and-insert runs under one
// lock, so it enforces the same (booking_ref, table_id) uniqueness as the
// database backends.
type Memory struct {
	mu       sync.Mutex
	nextID   int64
	slots    []booking.Slot
	index    map[slotKey]struct{}
	tracking map[trackingKey]bool
	tables   map[int]booking.TablePosition
}

func NewMemory() *Memory {
	return &Memory{
		index:    map[slotKey]struct{}{},
		tracking: map[trackingKey]bool{},
		tables:   map[int]booking.TablePosition{},
	}
}

func (m *Memory) HasBookingRef(_ context.Context, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		if s.BookingRef == ref {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) InsertSlots(_ context.Context, slots []booking.Slot) ([]booking.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := map[slotKey]struct{}{}
	for _, s := range slots {
		k := slotKey{s.BookingRef, s.TableID}
		if _, dup := m.index[k]; dup {
			return nil, ErrDuplicateBookingRef
		}
		if _, dup := batch[k]; dup {
			return nil, ErrDuplicateBookingRef
		}
		batch[k] = struct{}{}
	}

	out := make([]booking.Slot, 0, len(slots))
	for _, s := range slots {
		m.nextID++
		s.ID = m.nextID
		m.slots = append(m.slots, s)
		m.index[slotKey{s.BookingRef, s.TableID}] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

// SlotsFor returns the stored slots carrying ref.
func (m *Memory) SlotsFor(ref string) []booking.Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []booking.Slot
	for _, s := range m.slots {
		if s.BookingRef == ref {
			out = append(out, s)
		}
	}
	return out
}

// SeedTracking creates the conversion tracking row an earlier funnel step
// would have written.
func (m *Memory) SeedTracking(tenantID, ref string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracking[trackingKey{tenantID, ref}] = false
}

// PaymentSuccessful reports the tracking flag and whether the row exists.
func (m *Memory) PaymentSuccessful(tenantID, ref string) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.tracking[trackingKey{tenantID, ref}]
	return v, ok
}

func (m *Memory) MarkPaymentSuccessful(_ context.Context, tenantID, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := trackingKey{tenantID, ref}
	if _, ok := m.tracking[k]; !ok {
		return ErrTrackingNotFound
	}
	m.tracking[k] = true
	return nil
}

func (m *Memory) UpsertTables(_ context.Context, tables []booking.TablePosition) ([]booking.TablePosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range tables {
		m.tables[t.ID] = t
	}
	return append([]booking.TablePosition(nil), tables...), nil
}

func (m *Memory) Close() error { return nil }
