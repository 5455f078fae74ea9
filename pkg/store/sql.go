package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Geordiekingsbeer/stripe-serverless/pkg/booking"
)

type slotRecord struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	TenantID       string `gorm:"index;not null"`
	TableID        int    `gorm:"not null;uniqueIndex:idx_slots_booking_ref_table,priority:2"`
	Date           string `gorm:"type:date;not null"`
	StartTime      string `gorm:"type:time;not null"`
	EndTime        string `gorm:"type:time;not null"`
	HostNotes      string
	BookingRef     string `gorm:"not null;uniqueIndex:idx_slots_booking_ref_table,priority:1"`
	PaymentOrderID string
	CreatedAt      time.Time
}

type trackingRecord struct {
	TenantID          string `gorm:"primaryKey"`
	BookingRef        string `gorm:"primaryKey"`
	PaymentSuccessful bool   `gorm:"not null;default:false"`
	UpdatedAt         time.Time
}

type tableRecord struct {
	ID       int    `gorm:"primaryKey;autoIncrement:false"`
	TenantID string `gorm:"index"`
	X        float64
	Y        float64
	Rotation float64
}

// SQL is the Postgres backend. Table names are configurable so the same
// schema serves a Supabase database reached directly.
type SQL struct {
	db            *gorm.DB
	slotsTable    string
	trackingTable string
	layoutTable   string
}

func NewSQL(db *gorm.DB, slotsTable, trackingTable, layoutTable string) *SQL {
	return &SQL{db: db, slotsTable: slotsTable, trackingTable: trackingTable, layoutTable: layoutTable}
}

// Migrate creates the tables, including the (booking_ref, table_id) unique
// index fulfillment relies on.
func (s *SQL) Migrate() error {
	if err := s.db.Table(s.slotsTable).AutoMigrate(&slotRecord{}); err != nil {
		return fmt.Errorf("migrate %s: %w", s.slotsTable, err)
	}
	if err := s.db.Table(s.trackingTable).AutoMigrate(&trackingRecord{}); err != nil {
		return fmt.Errorf("migrate %s: %w", s.trackingTable, err)
	}
	if err := s.db.Table(s.layoutTable).AutoMigrate(&tableRecord{}); err != nil {
		return fmt.Errorf("migrate %s: %w", s.layoutTable, err)
	}
	return nil
}

func (s *SQL) HasBookingRef(ctx context.Context, ref string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Table(s.slotsTable).
		Where("booking_ref = ?", ref).
		Limit(1).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("query %s: %w", s.slotsTable, err)
	}
	return n > 0, nil
}

func (s *SQL) InsertSlots(ctx context.Context, slots []booking.Slot) ([]booking.Slot, error) {
	recs := make([]slotRecord, len(slots))
	for i, sl := range slots {
		recs[i] = slotRecord{
			TenantID:       sl.TenantID,
			TableID:        sl.TableID,
			Date:           sl.Date,
			StartTime:      sl.StartTime,
			EndTime:        sl.EndTime,
			HostNotes:      sl.HostNotes,
			BookingRef:     sl.BookingRef,
			PaymentOrderID: sl.PaymentOrderID,
		}
	}

	// a single multi-row INSERT is atomic on its own
	err := s.db.WithContext(ctx).Table(s.slotsTable).Create(&recs).Error
	if isBookingRefConflict(err) {
		return nil, ErrDuplicateBookingRef
	}
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", s.slotsTable, err)
	}

	out := make([]booking.Slot, len(slots))
	for i, sl := range slots {
		sl.ID = recs[i].ID
		out[i] = sl
	}
	return out, nil
}

func (s *SQL) MarkPaymentSuccessful(ctx context.Context, tenantID, ref string) error {
	res := s.db.WithContext(ctx).Table(s.trackingTable).
		Where("tenant_id = ? AND booking_ref = ?", tenantID, ref).
		Updates(map[string]any{"payment_successful": true, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return fmt.Errorf("update %s: %w", s.trackingTable, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTrackingNotFound
	}
	return nil
}

func (s *SQL) UpsertTables(ctx context.Context, tables []booking.TablePosition) ([]booking.TablePosition, error) {
	recs := make([]tableRecord, len(tables))
	for i, t := range tables {
		recs[i] = tableRecord{ID: t.ID, TenantID: t.TenantID, X: t.X, Y: t.Y, Rotation: t.Rotation}
	}
	err := s.db.WithContext(ctx).Table(s.layoutTable).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"tenant_id", "x", "y", "rotation"}),
		}).
		Create(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("upsert %s: %w", s.layoutTable, err)
	}
	return append([]booking.TablePosition(nil), tables...), nil
}

func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
