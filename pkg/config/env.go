package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort      = "PORT"
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"
	EnvRateLimitMaxKeys  = "RATE_LIMIT_MAX_KEYS"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvDefaultTimeZone    = "DEFAULT_TIME_ZONE"
	EnvDefaultCurrency    = "DEFAULT_CURRENCY"
	EnvDefaultPhoneRegion = "DEFAULT_PHONE_REGION"

	EnvBookingLockTTL  = "BOOKING_LOCK_TTL"
	EnvBookingLockWait = "BOOKING_LOCK_WAIT"

	EnvPaymentTimeout       = "PAYMENT_TIMEOUT"
	EnvPaymentWebhookSecret = "PAYMENT_WEBHOOK_SECRET"
	EnvPaymentReturnURI     = "PAYMENT_RETURN_URI"
	EnvOmisePublicKey       = "OMISE_PUBLIC_KEY"
	EnvOmiseSecretKey       = "OMISE_SECRET_KEY"

	EnvEventsBroker     = "EVENTS_BROKER"
	EnvRabbitMQURL      = "RABBITMQ_URL"
	EnvRabbitMQExchange = "RABBITMQ_EXCHANGE"

	EnvOtelEnabled  = "OTEL_ENABLED"
	EnvOtelEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
)
