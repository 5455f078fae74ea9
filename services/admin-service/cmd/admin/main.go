package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Geordiekingsbeer/stripe-serverless/pkg/config"
	"github.com/Geordiekingsbeer/stripe-serverless/pkg/logx"
	"github.com/Geordiekingsbeer/stripe-serverless/pkg/mq"
	"github.com/Geordiekingsbeer/stripe-serverless/pkg/obs"
	"github.com/Geordiekingsbeer/stripe-serverless/pkg/store"

	httpx "github.com/Geordiekingsbeer/stripe-serverless/services/admin-service/internal/http"
	"github.com/Geordiekingsbeer/stripe-serverless/services/admin-service/internal/service"
)

type Cfg struct {
	HTTPAddr        string        `envconfig:"ADMIN_HTTP_ADDR" default:":8082"`
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS" default:"https://geordiekingsbeer.github.io"`
	DefaultTenantID string        `envconfig:"DEFAULT_TENANT_ID"`
	BookingDuration time.Duration `envconfig:"BOOKING_DURATION" default:"2h"`
	NotifyTimeout   time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"5s"`

	config.Storage
	config.Broker
	config.Telemetry
}

func must[T any](v T, err error) T {
	if err != nil {
		log.Fatal(err)
	}
	return v
}

func main() {
	var cfg Cfg
	must(0, config.Load(&cfg))

	logger := must(logx.New("admin-service", cfg.Env))
	defer logger.Sync()

	shutdownTracer, err := obs.InitTracer("admin-service", cfg.Telemetry)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}

	backend, err := store.Open(cfg.Storage, logger)
	if err != nil {
		logger.Fatal("open storage", zap.Error(err))
	}
	defer backend.Close()

	var pub service.Publisher
	if cfg.RabbitURL != "" {
		p, err := mq.NewPublisher(cfg.RabbitURL, cfg.BookingExchange)
		if err != nil {
			logger.Fatal("connect rabbitmq", zap.Error(err))
		}
		defer p.Close()
		pub = p
	}

	svc := service.NewAdminSvc(service.Config{
		DefaultTenantID: cfg.DefaultTenantID,
		BookingDuration: cfg.BookingDuration,
		PublishTimeout:  cfg.NotifyTimeout,
	}, backend, backend, pub, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpx.NewRouter(httpx.NewHandlers(svc, logger), cfg.AllowedOrigins, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	go func() {
		logger.Info("admin http listening", zap.String("addr", cfg.HTTPAddr), zap.Strings("origins", cfg.AllowedOrigins))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	_ = shutdownTracer(ctx)
	logger.Info("admin stopped")
}
