package main

import (
	"context"
	"errors"

	"courtbook/internal/bookings/consumer"
	"courtbook/internal/bookings/handler"
	"courtbook/internal/bookings/repository"
	"courtbook/internal/bookings/service"
	"courtbook/internal/bookings/validator"
	courtsrepo "courtbook/internal/courts/repository"
	membershipsrepo "courtbook/internal/memberships/repository"
	"courtbook/internal/payments/gateway"
	paymentshandler "courtbook/internal/payments/handler"
	paymentsrepo "courtbook/internal/payments/repository"
	"courtbook/pkg/app"
	"courtbook/pkg/config"
	"courtbook/pkg/contracts"
	"courtbook/pkg/events"
	"courtbook/pkg/kafka"
	kafka_config "courtbook/pkg/kafka/config"
	kafka_middleware "courtbook/pkg/kafka/middleware"
	"courtbook/pkg/reference"
	"courtbook/pkg/telemetry"
)

const (
	ServiceName = "bookings"
	WebhookPath = "/api/v1/payments/webhook"
)

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.Log.Info("Starting Bookings service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.OtelEnabled,
		Endpoint:    cfg.OtelEndpoint,
		ServiceName: ServiceName,
	})
	if err != nil {
		cfg.Log.Fatal("Failed to initialize tracing", "error", err)
	}

	var kafkaCfg *kafka_config.Config
	if cfg.EventsBroker == config.EventsBrokerKafka {
		kafkaCfg, err = kafka_config.Load()
		if err != nil {
			cfg.Log.Fatal("Invalid kafka configuration", "error", err)
		}
	}

	publisher, err := events.New(cfg, kafkaCfg)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize events publisher", "error", err)
	}

	paymentGateway := initGateway(cfg)
	bookingService := initServices(cfg, paymentGateway, publisher)

	serverApp := app.NewApplication()
	serverApp.SetApp(cfg, []contracts.Handler{
		handler.NewBookingHandler(bookingService, cfg.Log),
		paymentshandler.NewPaymentHandler(bookingService, cfg.Log),
		paymentshandler.NewWebhookHandler(bookingService, paymentGateway, cfg.PaymentWebhookSecret, cfg.Log),
	}, WebhookPath)

	serverApp.OnShutdown(app.ShutdownHook(shutdownTracing))
	serverApp.OnShutdown(func(context.Context) error { return publisher.Close() })

	if kafkaCfg != nil && kafkaCfg.PaymentResultsTopic != "" {
		resultsConsumer := startPaymentResultsConsumer(ctx, cfg, kafkaCfg, bookingService)
		serverApp.OnShutdown(func(context.Context) error {
			cancel()
			return resultsConsumer.Close()
		})
	}

	serverApp.Run()
}

func initGateway(cfg *config.Config) gateway.Gateway {
	if cfg.OmiseSecretKey == "" {
		cfg.Log.Warn("No payment gateway keys configured, using the sandbox gateway")
		return gateway.NewSandbox(cfg.Log)
	}
	omiseGateway, err := gateway.NewOmiseGateway(cfg.OmisePublicKey, cfg.OmiseSecretKey, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize payment gateway", "error", err)
	}
	return omiseGateway
}

func initServices(cfg *config.Config, paymentGateway gateway.Gateway, publisher events.Publisher) service.BookingService {
	bookingService := service.NewBookingService(service.Dependencies{
		Bookings:    repository.NewMongoBookingRepository(cfg),
		Locks:       repository.NewBookingLockRepository(cfg),
		Courts:      courtsrepo.NewMongoCourtRepository(cfg),
		Payments:    paymentsrepo.NewMongoPaymentRepository(cfg),
		Memberships: membershipsrepo.NewMongoMembershipRepository(cfg),
		Gateway:     paymentGateway,
		Publisher:   publisher,
		Validator:   validator.NewBookingValidator(cfg.Log),
		References:  reference.NewGenerator(),
	}, cfg)

	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName)
	return bookingService
}

func startPaymentResultsConsumer(
	ctx context.Context,
	cfg *config.Config,
	kafkaCfg *kafka_config.Config,
	bookingService service.BookingService,
) *kafka.Consumer {
	resultsHandler := consumer.NewPaymentResultsHandler(bookingService, cfg.Log)
	resultsConsumer, err := kafka.NewConsumer(
		kafkaCfg,
		kafkaCfg.PaymentResultsTopic,
		kafkaCfg.PaymentResultsGroup,
		kafkaCfg.PaymentResultsDLQTopic,
		resultsHandler.Handle,
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create payment results consumer", "error", err)
	}
	resultsConsumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))

	go func() {
		if err := resultsConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, kafka.ErrConsumerClosed) {
			cfg.Log.Error("Payment results consumer stopped", "error", err)
		}
	}()
	cfg.Log.Info("Consuming payment results", "topic", kafkaCfg.PaymentResultsTopic)
	return resultsConsumer
}
