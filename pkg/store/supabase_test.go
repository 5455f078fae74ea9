package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/Geordiekingsbeer/stripe-serverless/pkg/booking"
)

// fakePostgREST is a minimal stand-in for the Supabase REST endpoint. It
// enforces the (booking_ref, table_id) unique index like the real schema.
type fakePostgREST struct {
	mu       sync.Mutex
	slots    []booking.Slot
	tracking map[string]bool
	requests []string

	// slotTimeUnique adds a unique index on (table_id, date, start_time).
	slotTimeUnique bool
	// trackingBody replaces the tracking PATCH response when set.
	trackingBody string
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
	eq := func(col string) string { return strings.TrimPrefix(r.URL.Query().Get(col), "eq.") }
	w.Header().Set("Content-Type", "application/json")

	switch {
	case table == "premium_slots" && r.Method == http.MethodGet:
		var out []map[string]any
		for i, s := range f.slots {
			if s.BookingRef == eq("booking_ref") {
				out = append(out, map[string]any{"id": i + 1})
			}
		}
		if out == nil {
			out = []map[string]any{}
		}
		_ = json.NewEncoder(w).Encode(out)

	case table == "premium_slots" && r.Method == http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		var rows []booking.Slot
		if err := json.Unmarshal(body, &rows); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":"PGRST102","message":"bad body"}`))
			return
		}
		for _, row := range rows {
			for _, s := range f.slots {
				if s.BookingRef == row.BookingRef && s.TableID == row.TableID {
					w.WriteHeader(http.StatusConflict)
					_, _ = w.Write([]byte(`{"code":"23505","details":"Key (booking_ref, table_id)=(` + row.BookingRef + `, ` + strconv.Itoa(row.TableID) + `) already exists.","hint":null,"message":"duplicate key value violates unique constraint \"idx_slots_booking_ref_table\""}`))
					return
				}
				if f.slotTimeUnique && s.TableID == row.TableID && s.Date == row.Date && s.StartTime == row.StartTime {
					w.WriteHeader(http.StatusConflict)
					_, _ = w.Write([]byte(`{"code":"23505","details":"Key (table_id, date, start_time) already exists.","hint":null,"message":"duplicate key value violates unique constraint \"idx_premium_slots_table_time\""}`))
					return
				}
			}
		}
		for i := range rows {
			rows[i].ID = int64(len(f.slots) + 1)
			f.slots = append(f.slots, rows[i])
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(rows)

	case table == "conversion_tracking" && r.Method == http.MethodPatch:
		if f.trackingBody != "" {
			_, _ = w.Write([]byte(f.trackingBody))
			return
		}
		key := eq("tenant_id") + "/" + eq("booking_ref")
		if _, ok := f.tracking[key]; !ok {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		f.tracking[key] = true
		_, _ = w.Write([]byte(`[{"payment_successful":true}]`))

	case table == "tables" && r.Method == http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)

	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"PGRST205","message":"not found"}`))
	}
}

func newSupabaseStore(t *testing.T) (*Supabase, *fakePostgREST) {
	t.Helper()
	fake := &fakePostgREST{tracking: map[string]bool{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := NewSupabaseClient(srv.URL, "service-role-key")
	if err != nil {
		t.Fatalf("NewSupabaseClient: %v", err)
	}
	return NewSupabase(client, "premium_slots", "conversion_tracking", "tables"), fake
}

func TestSupabaseSlotContract(t *testing.T) {
	s, _ := newSupabaseStore(t)
	testSlotContract(t, s)
}

func TestSupabaseTracking(t *testing.T) {
	s, fake := newSupabaseStore(t)
	ctx := context.Background()

	if err := s.MarkPaymentSuccessful(ctx, "tenant-1", "BR-001"); !errors.Is(err, ErrTrackingNotFound) {
		t.Fatalf("expected ErrTrackingNotFound, got %v", err)
	}

	fake.mu.Lock()
	fake.tracking["tenant-1/BR-001"] = false
	fake.mu.Unlock()

	if err := s.MarkPaymentSuccessful(ctx, "tenant-1", "BR-001"); err != nil {
		t.Fatalf("MarkPaymentSuccessful: %v", err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if !fake.tracking["tenant-1/BR-001"] {
		t.Error("tracking flag not set")
	}
}

func TestSupabaseOtherUniqueIndexIsNotDuplicate(t *testing.T) {
	s, fake := newSupabaseStore(t)
	fake.slotTimeUnique = true
	ctx := context.Background()

	if _, err := s.InsertSlots(ctx, sampleSlots("BR-1", 5)); err != nil {
		t.Fatalf("insert BR-1: %v", err)
	}
	_, err := s.InsertSlots(ctx, sampleSlots("BR-2", 5))
	if err == nil || errors.Is(err, ErrDuplicateBookingRef) {
		t.Fatalf("BR-2 insert = %v, want a plain failure", err)
	}
	if _, err := s.InsertSlots(ctx, sampleSlots("BR-1", 5)); !errors.Is(err, ErrDuplicateBookingRef) {
		t.Fatalf("redelivery of BR-1 = %v, want ErrDuplicateBookingRef", err)
	}
}

func TestSupabaseTrackingUndecodableResponse(t *testing.T) {
	for _, body := range []string{`not json`, `{"payment_successful":true}`} {
		s, fake := newSupabaseStore(t)
		fake.trackingBody = body
		err := s.MarkPaymentSuccessful(context.Background(), "tenant-1", "BR-001")
		if err == nil || errors.Is(err, ErrTrackingNotFound) {
			t.Errorf("body %q: err = %v, want a decode error", body, err)
		}
	}
}

func TestSupabaseUpsertTables(t *testing.T) {
	s, _ := newSupabaseStore(t)
	in := []booking.TablePosition{{ID: 4, TenantID: "tenant-1", X: 1.5, Y: 2.5, Rotation: 45}}
	got, err := s.UpsertTables(context.Background(), in)
	if err != nil {
		t.Fatalf("UpsertTables: %v", err)
	}
	if len(got) != 1 || got[0] != in[0] {
		t.Errorf("UpsertTables = %+v", got)
	}
}

func TestExecuteSurfacesErrorBodies(t *testing.T) {
	_, err := execute([]byte(`{"code":"23505","message":"duplicate key value violates unique constraint \"idx_slots_booking_ref_table\""}`), nil)
	if !isBookingRefConflict(err) {
		t.Errorf("expected booking ref conflict, got %v", err)
	}
	data, err := execute([]byte(`[]`), nil)
	if err != nil || string(data) != "[]" {
		t.Errorf("execute([]) = %q, %v", data, err)
	}
}
