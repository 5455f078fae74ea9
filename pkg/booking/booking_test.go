package booking

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestEndTime(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		duration time.Duration
		want     string
	}{
		{"wraps past midnight", "23:30", time.Hour, "00:30:00"},
		{"two hour slot", "09:00", 2 * time.Hour, "11:00:00"},
		{"evening slot", "19:00", 2 * time.Hour, "21:00:00"},
		{"lands on midnight", "22:00", 2 * time.Hour, "00:00:00"},
		{"accepts seconds", "18:15:00", 90 * time.Minute, "19:45:00"},
		{"single digit hour", "9:05", time.Hour, "10:05:00"},
		{"zero duration", "12:00", 0, "12:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EndTime(tt.start, tt.duration)
			if err != nil {
				t.Fatalf("EndTime(%q, %s) error: %v", tt.start, tt.duration, err)
			}
			if got != tt.want {
				t.Errorf("EndTime(%q, %s) = %q, want %q", tt.start, tt.duration, got, tt.want)
			}
		})
	}
}

func TestEndTimeDeterministic(t *testing.T) {
	a, _ := EndTime("23:30", time.Hour)
	b, _ := EndTime("23:30", time.Hour)
	if a != b {
		t.Errorf("EndTime not deterministic: %q vs %q", a, b)
	}
}

func TestEndTimeRejects(t *testing.T) {
	cases := []struct {
		start string
		d     time.Duration
	}{
		{"24:00", time.Hour},
		{"12:60", time.Hour},
		{"noon", time.Hour},
		{"12:5", time.Hour},
		{"12:00", -time.Hour},
		{"12:00", 30 * time.Second},
	}
	for _, c := range cases {
		if _, err := EndTime(c.start, c.d); err == nil {
			t.Errorf("EndTime(%q, %s) expected error", c.start, c.d)
		}
	}
}

func TestNormalizeClock(t *testing.T) {
	got, err := NormalizeClock("07:45")
	if err != nil || got != "07:45:00" {
		t.Errorf("NormalizeClock(07:45) = %q, %v", got, err)
	}
	got, err = NormalizeClock("07:45:30")
	if err != nil || got != "07:45:00" {
		t.Errorf("NormalizeClock(07:45:30) = %q, %v", got, err)
	}
}

func TestParseTableIDs(t *testing.T) {
	tests := []struct {
		raw  string
		want []int
	}{
		{"[5,12,7]", []int{5, 12, 7}},
		{`["5","12"]`, []int{5, 12}},
		{"5,12,7", []int{5, 12, 7}},
		{" 3 , 4 ", []int{3, 4}},
		{"9", []int{9}},
		{"5,5", []int{5}},
		{"[5,5,12]", []int{5, 12}},
		{`[12,"5",12,5]`, []int{12, 5}},
	}
	for _, tt := range tests {
		got, err := ParseTableIDs(tt.raw)
		if err != nil {
			t.Errorf("ParseTableIDs(%q) error: %v", tt.raw, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseTableIDs(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}

	for _, bad := range []string{"", "[]", "a,b", "[1,", ",", `[{"id":1}]`} {
		if _, err := ParseTableIDs(bad); err == nil {
			t.Errorf("ParseTableIDs(%q) expected error", bad)
		}
	}
}

func validMeta() map[string]string {
	return map[string]string{
		MetaTableIDs:      "[5,12,7]",
		MetaBookingDate:   "2025-11-02",
		MetaBookingTime:   "19:00",
		MetaCustomerEmail: "ann@example.com",
		MetaCustomerName:  "Ann",
		MetaPartySize:     "4",
		MetaTenantID:      "tenant-1",
		MetaBookingRef:    "BR-001",
	}
}

func TestParseIntent(t *testing.T) {
	in, err := ParseIntent(validMeta(), "cs_test_1", "pi_1")
	if err != nil {
		t.Fatalf("ParseIntent error: %v", err)
	}
	want := Intent{
		TenantID:      "tenant-1",
		TableIDs:      []int{5, 12, 7},
		Date:          "2025-11-02",
		StartTime:     "19:00",
		PartySize:     4,
		CustomerName:  "Ann",
		CustomerEmail: "ann@example.com",
		BookingRef:    "BR-001",
		SessionID:     "cs_test_1",
		OrderID:       "pi_1",
	}
	if !reflect.DeepEqual(in, want) {
		t.Errorf("ParseIntent = %+v\nwant %+v", in, want)
	}
}

func TestParseIntentLegacyTableList(t *testing.T) {
	meta := validMeta()
	delete(meta, MetaTableIDs)
	meta[MetaTableIDsLegacy] = "1,2"

	in, err := ParseIntent(meta, "cs_1", "")
	if err != nil {
		t.Fatalf("ParseIntent error: %v", err)
	}
	if !reflect.DeepEqual(in.TableIDs, []int{1, 2}) {
		t.Errorf("TableIDs = %v", in.TableIDs)
	}
	if in.OrderID != "cs_1" {
		t.Errorf("OrderID should fall back to session id, got %q", in.OrderID)
	}
}

func TestParseIntentMissingFields(t *testing.T) {
	meta := validMeta()
	delete(meta, MetaTableIDs)
	delete(meta, MetaBookingRef)
	meta[MetaBookingDate] = "02/11/2025"

	_, err := ParseIntent(meta, "cs_1", "")
	if !errors.Is(err, ErrInvalidIntent) {
		t.Fatalf("expected ErrInvalidIntent, got %v", err)
	}
	var ierr *IntentError
	if !errors.As(err, &ierr) {
		t.Fatalf("expected *IntentError, got %T", err)
	}
	if !reflect.DeepEqual(ierr.Missing, []string{MetaTableIDs, MetaBookingRef}) {
		t.Errorf("Missing = %v", ierr.Missing)
	}
	if _, ok := ierr.Malformed[MetaBookingDate]; !ok {
		t.Errorf("expected malformed booking_date, got %v", ierr.Malformed)
	}
	if !strings.Contains(err.Error(), "booking_ref") {
		t.Errorf("error text should name the missing key: %s", err)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	in := Intent{
		TenantID:      "tenant-9",
		TableIDs:      []int{3, 8},
		Date:          "2025-12-24",
		StartTime:     "20:30",
		PartySize:     6,
		CustomerName:  "Bo",
		CustomerEmail: "bo@example.com",
		BookingRef:    "BR-XYZ",
		SessionID:     "cs_9",
		OrderID:       "pi_9",
	}
	got, err := ParseIntent(Metadata(in), "cs_9", "pi_9")
	if err != nil {
		t.Fatalf("ParseIntent(Metadata) error: %v", err)
	}
	if !reflect.DeepEqual(got, in) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, in)
	}
}

func TestExpandSlots(t *testing.T) {
	in, err := ParseIntent(validMeta(), "cs_1", "pi_1")
	if err != nil {
		t.Fatal(err)
	}
	slots := ExpandSlots(in, "21:00:00")
	if len(slots) != 3 {
		t.Fatalf("got %d slots, want 3", len(slots))
	}
	for i, s := range slots {
		if s.TableID != in.TableIDs[i] {
			t.Errorf("slot %d table = %d, want %d", i, s.TableID, in.TableIDs[i])
		}
		other := s
		other.TableID = slots[0].TableID
		if other != slots[0] {
			t.Errorf("slot %d differs beyond table id: %+v vs %+v", i, s, slots[0])
		}
	}
	s := slots[0]
	if s.StartTime != "19:00:00" || s.EndTime != "21:00:00" || s.Date != "2025-11-02" {
		t.Errorf("unexpected times: %+v", s)
	}
	if s.BookingRef != "BR-001" || s.TenantID != "tenant-1" || s.PaymentOrderID != "pi_1" {
		t.Errorf("unexpected keys: %+v", s)
	}
	if s.HostNotes != "Ann (party of 4). Email: ann@example.com. Order: pi_1" {
		t.Errorf("HostNotes = %q", s.HostNotes)
	}
}
