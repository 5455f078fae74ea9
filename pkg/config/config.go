// Package config holds the envconfig blocks shared by every service.
package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Storage selects and configures the slot/tracking/layout backend.
type Storage struct {
	Backend string `envconfig:"STORAGE_BACKEND" default:"supabase"` // supabase|postgres|memory

	SupabaseURL        string `envconfig:"SUPABASE_URL"`
	SupabaseServiceKey string `envconfig:"SUPABASE_SERVICE_ROLE_KEY"`

	PGDSN       string `envconfig:"PG_DSN"`
	AutoMigrate bool   `envconfig:"AUTO_MIGRATE" default:"false"`

	SlotsTable    string `envconfig:"SLOTS_TABLE" default:"premium_slots"`
	TrackingTable string `envconfig:"TRACKING_TABLE" default:"conversion_tracking"`
	LayoutTable   string `envconfig:"LAYOUT_TABLE" default:"tables"`
}

func (s Storage) Validate() error {
	switch s.Backend {
	case "supabase":
		if s.SupabaseURL == "" || s.SupabaseServiceKey == "" {
			return fmt.Errorf("storage: SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for the supabase backend")
		}
	case "postgres":
		if s.PGDSN == "" {
			return fmt.Errorf("storage: PG_DSN is required for the postgres backend")
		}
	case "memory":
	default:
		return fmt.Errorf("storage: unknown backend %q", s.Backend)
	}
	return nil
}

// Broker is the RabbitMQ connection used for booking notices. An empty URL
// disables publishing.
type Broker struct {
	RabbitURL       string `envconfig:"RABBIT_URL"`
	BookingExchange string `envconfig:"BOOKING_EXCHANGE" default:"booking.exchange"`
}

// Require fails when RABBIT_URL is empty, for services that only consume.
func (b Broker) Require() error {
	if b.RabbitURL == "" {
		return fmt.Errorf("broker: RABBIT_URL is required")
	}
	return nil
}

type Telemetry struct {
	Env          string `envconfig:"ENV" default:"dev"`
	OTelEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTelEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"otel-collector:4317"`
}

// Load reads an optional .env file and then processes cfg from the
// environment.
func Load(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found; using process environment")
	}
	return envconfig.Process("", cfg)
}
