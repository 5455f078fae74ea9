package store

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Geordiekingsbeer/stripe-serverless/pkg/config"
	"github.com/Geordiekingsbeer/stripe-serverless/pkg/db"
)

// Open builds the backend selected by cfg.Backend. Clients are created once
// per process and shared by every request.
func Open(cfg config.Storage, log *zap.Logger) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case "supabase":
		client, err := NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseServiceKey)
		if err != nil {
			return nil, err
		}
		log.Info("storage ready", zap.String("backend", "supabase"), zap.String("url", cfg.SupabaseURL))
		return NewSupabase(client, cfg.SlotsTable, cfg.TrackingTable, cfg.LayoutTable), nil
	case "postgres":
		gdb, err := db.Open(cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		s := NewSQL(gdb, cfg.SlotsTable, cfg.TrackingTable, cfg.LayoutTable)
		if cfg.AutoMigrate {
			if err := s.Migrate(); err != nil {
				_ = s.Close()
				return nil, err
			}
		}
		log.Info("storage ready", zap.String("backend", "postgres"), zap.Bool("migrated", cfg.AutoMigrate))
		return s, nil
	case "memory":
		log.Warn("storage is in-memory; bookings are lost on restart")
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
}
