// Package store persists premium slots, conversion tracking flags and floor
// plan layouts. Three backends satisfy the same interfaces: Supabase's REST
// API, Postgres through gorm, and an in-memory store for tests and local runs.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/Geordiekingsbeer/stripe-serverless/pkg/booking"
)

var (
	// ErrDuplicateBookingRef reports a uniqueness violation on
	// (booking_ref, table_id): the booking reference was already fulfilled.
	ErrDuplicateBookingRef = errors.New("store: booking reference already fulfilled")
	// ErrTrackingNotFound means no conversion tracking row matched.
	ErrTrackingNotFound = errors.New("store: conversion tracking row not found")
)

type SlotStore interface {
	// HasBookingRef reports whether any slot row carries ref.
	HasBookingRef(ctx context.Context, ref string) (bool, error)
	// InsertSlots writes all rows in one batch; either every row is written
	// or none is.
	InsertSlots(ctx context.Context, slots []booking.Slot) ([]booking.Slot, error)
}

type TrackingStore interface {
	MarkPaymentSuccessful(ctx context.Context, tenantID, ref string) error
}

type LayoutStore interface {
	UpsertTables(ctx context.Context, tables []booking.TablePosition) ([]booking.TablePosition, error)
}

// Backend is everything a service may need from storage.
type Backend interface {
	SlotStore
	TrackingStore
	LayoutStore
	Close() error
}

// bookingRefIndex names the unique index on (booking_ref, table_id).
const bookingRefIndex = "idx_slots_booking_ref_table"

const sqliteUniqueFailed = "UNIQUE constraint failed: "

// isBookingRefConflict reports whether err is a unique violation on
// (booking_ref, table_id) and not on some other key. Postgres names the
// index in its message and PostgREST relays the key columns in details.
// SQLite lists the columns as table.column.
func isBookingRefConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if i := strings.Index(msg, sqliteUniqueFailed); i >= 0 {
		cols := strings.Split(msg[i+len(sqliteUniqueFailed):], ",")
		if len(cols) != 2 {
			return false
		}
		for j, want := range []string{"booking_ref", "table_id"} {
			col := strings.TrimSpace(cols[j])
			if k := strings.LastIndex(col, "."); k >= 0 {
				col = col[k+1:]
			}
			if col != want {
				return false
			}
		}
		return true
	}
	if !strings.Contains(msg, "23505") && !strings.Contains(msg, "duplicate key value") {
		return false
	}
	return strings.Contains(msg, `"`+bookingRefIndex+`"`) ||
		strings.Contains(msg, "Key (booking_ref, table_id)=")
}
