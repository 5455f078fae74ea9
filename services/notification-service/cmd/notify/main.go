package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Geordiekingsbeer/stripe-serverless/pkg/config"
	"github.com/Geordiekingsbeer/stripe-serverless/pkg/logx"
	"github.com/Geordiekingsbeer/stripe-serverless/pkg/mq"
	"github.com/Geordiekingsbeer/stripe-serverless/services/notification-service/internal/notifier"
	"github.com/Geordiekingsbeer/stripe-serverless/services/notification-service/internal/worker"
)

type Cfg struct {
	Queue    string   `envconfig:"NOTIFY_QUEUE" default:"notification.q"`
	Bindings []string `envconfig:"NOTIFY_BINDINGS" default:"booking.*"`
	DLX      string   `envconfig:"NOTIFY_DLX" default:"notification.dlx"`
	DLQ      string   `envconfig:"NOTIFY_DLQ" default:"notification.q.dlq"`
	Prefetch int      `envconfig:"NOTIFY_PREFETCH" default:"16"`

	AdminEmail   string `envconfig:"ADMIN_EMAIL"`
	ResendAPIKey string `envconfig:"RESEND_API_KEY"`
	EmailFrom    string `envconfig:"EMAIL_FROM" default:"Bookings <bookings@yourdomain.com>"`

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
	must(0, cfg.Broker.Require())

	logger := must(logx.New("notification-service", cfg.Env))
	defer logger.Sync()

	var n notifier.Notifier = notifier.NewConsole(logger)
	if cfg.ResendAPIKey != "" {
		n = notifier.NewResend(cfg.ResendAPIKey, cfg.EmailFrom)
	} else {
		logger.Warn("RESEND_API_KEY not set; notices go to the log")
	}

	mqCfg := mq.ConsumerConfig{
		URL:      cfg.RabbitURL,
		Exchange: cfg.BookingExchange,
		Queue:    cfg.Queue,
		Bindings: cfg.Bindings,
		Prefetch: cfg.Prefetch,
		DLX:      cfg.DLX,
		DLQ:      cfg.DLQ,
		Tag:      "notification-service",
	}

	// the broker may come up after us
	var cons *mq.Consumer
	for {
		c, err := mq.NewConsumer(mqCfg)
		if err == nil {
			cons = c
			break
		}
		logger.Warn("rabbitmq connect failed; retry in 2s", zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	defer cons.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, err := cons.Deliveries(ctx)
	if err != nil {
		logger.Fatal("consume", zap.Error(err))
	}

	w := worker.NewWorker(n, cfg.AdminEmail, logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Run(ctx, msgs); err != nil {
			logger.Error("worker stopped", zap.Error(err))
		}
	}()
	logger.Info("notification worker started", zap.String("queue", cfg.Queue), zap.Strings("bindings", cfg.Bindings))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-done:
	}
	cancel()
	<-done
}
