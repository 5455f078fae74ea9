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

	"github.com/Geordiekingsbeer/stripe-serverless/services/payment-service/internal/fulfillment"
	httpx "github.com/Geordiekingsbeer/stripe-serverless/services/payment-service/internal/http"
	"github.com/Geordiekingsbeer/stripe-serverless/services/payment-service/internal/stripecli"
)

type Cfg struct {
	HTTPAddr string `envconfig:"PAYMENT_HTTP_ADDR" default:":8081"`

	StripeSecretKey     string        `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string        `envconfig:"STRIPE_WEBHOOK_SECRET" required:"true"`
	SignatureTolerance  time.Duration `envconfig:"STRIPE_SIGNATURE_TOLERANCE" default:"5m"`

	BookingDuration time.Duration `envconfig:"BOOKING_DURATION" default:"2h"`
	NotifyTimeout   time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"5s"`

	SuccessBaseURL string `envconfig:"CHECKOUT_SUCCESS_BASE_URL" default:"http://localhost:8080"`
	CancelURL      string `envconfig:"CHECKOUT_CANCEL_URL" default:"http://localhost:8080/index.html"`

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

	logger := must(logx.New("payment-service", cfg.Env))
	defer logger.Sync()

	shutdownTracer, err := obs.InitTracer("payment-service", cfg.Telemetry)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}

	backend, err := store.Open(cfg.Storage, logger)
	if err != nil {
		logger.Fatal("open storage", zap.Error(err))
	}
	defer backend.Close()

	// notices are optional; without a broker fulfillment still runs
	var notifier fulfillment.Notifier
	if cfg.RabbitURL != "" {
		pub, err := mq.NewPublisher(cfg.RabbitURL, cfg.BookingExchange)
		if err != nil {
			logger.Fatal("connect rabbitmq", zap.Error(err))
		}
		defer pub.Close()
		notifier = fulfillment.NewBusNotifier(pub)
	} else {
		logger.Warn("RABBIT_URL not set; booking notifications disabled")
	}

	proc := fulfillment.NewProcessor(fulfillment.Config{
		BookingDuration: cfg.BookingDuration,
		NotifyTimeout:   cfg.NotifyTimeout,
	}, stripecli.NewVerifier(cfg.StripeWebhookSecret, cfg.SignatureTolerance), backend, backend, notifier, logger)

	var checkout *httpx.CheckoutHandler
	if cfg.StripeSecretKey != "" {
		sessions := stripecli.NewSessions(stripecli.SessionsConfig{
			SecretKey:      cfg.StripeSecretKey,
			SuccessBaseURL: cfg.SuccessBaseURL,
			CancelURL:      cfg.CancelURL,
		})
		checkout = httpx.NewCheckoutHandler(sessions, logger)
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set; /checkout-session disabled")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpx.NewRouter(httpx.NewWebhookHandler(proc, logger), checkout, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("payment http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	// graceful
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	_ = shutdownTracer(ctx)
}
