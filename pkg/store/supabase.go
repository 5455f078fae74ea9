package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	supa "github.com/supabase-community/supabase-go"

	"github.com/Geordiekingsbeer/stripe-serverless/pkg/booking"
)

// restError is PostgREST's error body.
type restError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

func (e *restError) Error() string {
	return fmt.Sprintf("(%s) %s %s", e.Code, e.Message, e.Details)
}

// execute normalises PostgREST failures: some client versions hand back the
// error body as data with a nil error.
func execute(data []byte, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	if len(data) > 0 && data[0] == '{' {
		var re restError
		if json.Unmarshal(data, &re) == nil && re.Code != "" {
			return nil, &re
		}
	}
	return data, nil
}

// Supabase talks to the hosted database through its PostgREST API using the
// service-role key, so row level security does not apply.
type Supabase struct {
	client        *supa.Client
	slotsTable    string
	trackingTable string
	layoutTable   string
}

func NewSupabaseClient(url, serviceKey string) (*supa.Client, error) {
	client, err := supa.NewClient(url, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return client, nil
}

func NewSupabase(client *supa.Client, slotsTable, trackingTable, layoutTable string) *Supabase {
	return &Supabase{client: client, slotsTable: slotsTable, trackingTable: trackingTable, layoutTable: layoutTable}
}

func (s *Supabase) HasBookingRef(_ context.Context, ref string) (bool, error) {
	data, _, err := s.client.From(s.slotsTable).
		Select("id", "", false).
		Eq("booking_ref", ref).
		Limit(1, "").
		Execute()
	data, err = execute(data, err)
	if err != nil {
		return false, fmt.Errorf("query %s: %w", s.slotsTable, err)
	}
	var rows []struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return false, fmt.Errorf("decode %s: %w", s.slotsTable, err)
	}
	return len(rows) > 0, nil
}

// InsertSlots posts the whole batch in one request; PostgREST runs it as a
// single statement.
func (s *Supabase) InsertSlots(_ context.Context, slots []booking.Slot) ([]booking.Slot, error) {
	data, _, err := s.client.From(s.slotsTable).
		Insert(slots, false, "", "representation", "").
		Execute()
	data, err = execute(data, err)
	if isBookingRefConflict(err) {
		return nil, ErrDuplicateBookingRef
	}
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", s.slotsTable, err)
	}

	var created []booking.Slot
	if err := json.Unmarshal(data, &created); err != nil || len(created) != len(slots) {
		// the write succeeded; echo the input rather than fail a paid booking
		return append([]booking.Slot(nil), slots...), nil
	}
	return created, nil
}

func (s *Supabase) MarkPaymentSuccessful(_ context.Context, tenantID, ref string) error {
	patch := map[string]any{
		"payment_successful": true,
		"updated_at":         time.Now().UTC().Format(time.RFC3339),
	}
	data, _, err := s.client.From(s.trackingTable).
		Update(patch, "representation", "").
		Eq("tenant_id", tenantID).
		Eq("booking_ref", ref).
		Execute()
	data, err = execute(data, err)
	if err != nil {
		return fmt.Errorf("update %s: %w", s.trackingTable, err)
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("decode %s: %w", s.trackingTable, err)
	}
	if len(rows) == 0 {
		return ErrTrackingNotFound
	}
	return nil
}

func (s *Supabase) UpsertTables(_ context.Context, tables []booking.TablePosition) ([]booking.TablePosition, error) {
	data, _, err := s.client.From(s.layoutTable).
		Upsert(tables, "id", "representation", "").
		Execute()
	data, err = execute(data, err)
	if err != nil {
		return nil, fmt.Errorf("upsert %s: %w", s.layoutTable, err)
	}
	var saved []booking.TablePosition
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.layoutTable, err)
	}
	return saved, nil
}

func (s *Supabase) Close() error { return nil }
