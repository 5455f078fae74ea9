package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Geordiekingsbeer/stripe-serverless/pkg/booking"
	"github.com/Geordiekingsbeer/stripe-serverless/pkg/events"
	"github.com/Geordiekingsbeer/stripe-serverless/pkg/store"
)

const defaultNotes = "Admin Manual Booking"

var ErrInvalidRequest = errors.New("invalid request")

// Publisher is the slice of mq.Publisher the service needs.
type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type Config struct {
	DefaultTenantID string
	BookingDuration time.Duration
	PublishTimeout  time.Duration
}

type NewBooking struct {
	TenantID   string
	TableIDs   []int
	Date       string
	StartTime  string
	EndTime    string
	Notes      string
	StaffEmail string
}

type AdminSvc struct {
	cfg    Config
	slots  store.SlotStore
	layout store.LayoutStore
	pub    Publisher
	log    *zap.Logger
}

// NewAdminSvc builds the service. pub may be nil, in which case no booking
// notices are sent.
func NewAdminSvc(cfg Config, slots store.SlotStore, layout store.LayoutStore, pub Publisher, log *zap.Logger) *AdminSvc {
	if cfg.BookingDuration == 0 {
		cfg.BookingDuration = 2 * time.Hour
	}
	if cfg.PublishTimeout == 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	return &AdminSvc{cfg: cfg, slots: slots, layout: layout, pub: pub, log: log}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// CreateBooking writes a manual booking, one row per table, under a fresh
// admin booking reference. The returned flag reports whether a staff notice
// was queued.
func (s *AdminSvc) CreateBooking(ctx context.Context, nb NewBooking) ([]booking.Slot, bool, error) {
	if len(nb.TableIDs) == 0 {
		return nil, false, invalid("no table_id or table_ids provided")
	}
	tenant := strings.TrimSpace(nb.TenantID)
	if tenant == "" {
		tenant = s.cfg.DefaultTenantID
	}
	if tenant == "" {
		return nil, false, invalid("tenant_id is required")
	}
	if _, err := time.Parse("2006-01-02", nb.Date); err != nil {
		return nil, false, invalid("date must be YYYY-MM-DD")
	}
	start, err := booking.NormalizeClock(nb.StartTime)
	if err != nil {
		return nil, false, invalid("start_time: %v", err)
	}
	var end string
	if strings.TrimSpace(nb.EndTime) == "" {
		end, err = booking.EndTime(start, s.cfg.BookingDuration)
	} else {
		end, err = booking.NormalizeClock(nb.EndTime)
	}
	if err != nil {
		return nil, false, invalid("end_time: %v", err)
	}

	notes := strings.TrimSpace(nb.Notes)
	if notes == "" {
		notes = defaultNotes
	}
	ref := "admin-" + uuid.NewString()

	rows := make([]booking.Slot, 0, len(nb.TableIDs))
	for _, id := range nb.TableIDs {
		rows = append(rows, booking.Slot{
			TenantID:   tenant,
			TableID:    id,
			Date:       nb.Date,
			StartTime:  start,
			EndTime:    end,
			HostNotes:  notes,
			BookingRef: ref,
		})
	}

	created, err := s.slots.InsertSlots(ctx, rows)
	if errors.Is(err, store.ErrDuplicateBookingRef) {
		return nil, false, invalid("table listed twice")
	}
	if err != nil {
		return nil, false, fmt.Errorf("insert admin booking: %w", err)
	}
	s.log.Info("admin booking created", zap.String("booking_ref", ref),
		zap.String("tenant_id", tenant), zap.Int("tables", len(created)))

	return created, s.publish(ctx, ref, tenant, nb.StaffEmail, created), nil
}

// publish is bounded by its own timeout and never fails the booking.
func (s *AdminSvc) publish(ctx context.Context, ref, tenant, staff string, slots []booking.Slot) bool {
	if s.pub == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PublishTimeout)
	defer cancel()

	n := events.BookingNotice{
		Source:     "admin",
		TenantID:   tenant,
		BookingRef: ref,
		StaffEmail: strings.TrimSpace(staff),
		Slots:      slots,
	}
	if err := s.pub.PublishJSON(ctx, n.RoutingKey(), n); err != nil {
		s.log.Warn("publish booking.created failed", zap.String("booking_ref", ref), zap.Error(err))
		return false
	}
	return true
}

func (s *AdminSvc) SaveLayout(ctx context.Context, updates []booking.TablePosition) ([]booking.TablePosition, error) {
	if len(updates) == 0 {
		return nil, invalid("no updates provided")
	}
	saved, err := s.layout.UpsertTables(ctx, updates)
	if err != nil {
		return nil, fmt.Errorf("save layout: %w", err)
	}
	s.log.Info("layout saved", zap.Int("tables", len(saved)))
	return saved, nil
}
