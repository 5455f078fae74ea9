package booking

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Session metadata keys. Checkout creation writes them with Metadata and the
// webhook reads them back with ParseIntent.
const (
	MetaTableIDs       = "table_ids"
	MetaTableIDsLegacy = "table_ids_list"
	MetaBookingDate    = "booking_date"
	MetaBookingTime    = "booking_time"
	MetaCustomerEmail  = "customer_email"
	MetaCustomerName   = "customer_name"
	MetaPartySize      = "party_size"
	MetaTenantID       = "tenant_id"
	MetaBookingRef     = "booking_ref"
)

const dateLayout = "2006-01-02"

var ErrInvalidIntent = errors.New("invalid booking intent")

// IntentError lists every problem found in a metadata map.
type IntentError struct {
	Missing   []string
	Malformed map[string]string
}

func (e *IntentError) Error() string {
	var b strings.Builder
	b.WriteString("booking metadata")
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, " missing [%s]", strings.Join(e.Missing, ", "))
	}
	for _, k := range sortedKeys(e.Malformed) {
		fmt.Fprintf(&b, " %s: %s;", k, e.Malformed[k])
	}
	return strings.TrimSuffix(b.String(), ";")
}

func (e *IntentError) Is(target error) bool { return target == ErrInvalidIntent }

func (e *IntentError) empty() bool { return len(e.Missing) == 0 && len(e.Malformed) == 0 }

func (e *IntentError) malformed(key string, err error) {
	if e.Malformed == nil {
		e.Malformed = map[string]string{}
	}
	e.Malformed[key] = err.Error()
}

// ParseTableIDs accepts either a JSON array ("[5,12]" or "[\"5\",\"12\"]")
// or a comma separated list ("5, 12"). A repeated id is kept once, at its
// first position.
func ParseTableIDs(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("no table ids")
	}

	var parts []string
	if strings.HasPrefix(raw, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, fmt.Errorf("table ids: %w", err)
		}
		for _, it := range items {
			var s string
			if err := json.Unmarshal(it, &s); err == nil {
				parts = append(parts, s)
				continue
			}
			parts = append(parts, string(it))
		}
	} else {
		parts = strings.Split(raw, ",")
	}

	ids := make([]int, 0, len(parts))
	seen := make(map[int]struct{}, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("table id %q is not an integer", p)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errors.New("no table ids")
	}
	return ids, nil
}

// ParseIntent validates provider metadata. It fails closed: any missing or
// malformed required field rejects the whole intent.
func ParseIntent(meta map[string]string, sessionID, orderID string) (Intent, error) {
	get := func(k string) string { return strings.TrimSpace(meta[k]) }
	ierr := &IntentError{}

	in := Intent{
		TenantID:      get(MetaTenantID),
		Date:          get(MetaBookingDate),
		CustomerName:  get(MetaCustomerName),
		CustomerEmail: get(MetaCustomerEmail),
		BookingRef:    get(MetaBookingRef),
		SessionID:     sessionID,
		OrderID:       orderID,
	}
	if in.OrderID == "" {
		in.OrderID = sessionID
	}

	rawTables := get(MetaTableIDs)
	if rawTables == "" {
		rawTables = get(MetaTableIDsLegacy)
	}
	if rawTables == "" {
		ierr.Missing = append(ierr.Missing, MetaTableIDs)
	} else if ids, err := ParseTableIDs(rawTables); err != nil {
		ierr.malformed(MetaTableIDs, err)
	} else {
		in.TableIDs = ids
	}

	if in.Date == "" {
		ierr.Missing = append(ierr.Missing, MetaBookingDate)
	} else if _, err := time.Parse(dateLayout, in.Date); err != nil {
		ierr.malformed(MetaBookingDate, errors.New("want YYYY-MM-DD"))
	}

	if start := get(MetaBookingTime); start == "" {
		ierr.Missing = append(ierr.Missing, MetaBookingTime)
	} else if m, err := parseClock(start); err != nil {
		ierr.malformed(MetaBookingTime, err)
	} else {
		in.StartTime = formatClock(m)[:5]
	}

	if in.TenantID == "" {
		ierr.Missing = append(ierr.Missing, MetaTenantID)
	}
	if in.BookingRef == "" {
		ierr.Missing = append(ierr.Missing, MetaBookingRef)
	}

	if ps := get(MetaPartySize); ps != "" {
		n, err := strconv.Atoi(ps)
		if err != nil || n < 0 {
			ierr.malformed(MetaPartySize, fmt.Errorf("%q is not a party size", ps))
		} else {
			in.PartySize = n
		}
	}

	if !ierr.empty() {
		return Intent{}, ierr
	}
	return in, nil
}

// Metadata encodes an intent the way ParseIntent expects to read it.
func Metadata(in Intent) map[string]string {
	ids, _ := json.Marshal(in.TableIDs)
	m := map[string]string{
		MetaTableIDs:    string(ids),
		MetaBookingDate: in.Date,
		MetaBookingTime: in.StartTime,
		MetaTenantID:    in.TenantID,
		MetaBookingRef:  in.BookingRef,
		MetaPartySize:   strconv.Itoa(in.PartySize),
	}
	if in.CustomerEmail != "" {
		m[MetaCustomerEmail] = in.CustomerEmail
	}
	if in.CustomerName != "" {
		m[MetaCustomerName] = in.CustomerName
	}
	return m
}
