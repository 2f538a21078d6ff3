package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"courtbook/pkg/client"
	"courtbook/pkg/locale"
	"courtbook/pkg/logger"

	"github.com/nyaruka/phonenumbers"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitMaxKeys  int

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	DefaultTimeZone    string
	DefaultCurrency    string
	DefaultPhoneRegion string

	BookingLockTTL  time.Duration
	BookingLockWait time.Duration

	PaymentTimeout       time.Duration
	PaymentWebhookSecret string
	PaymentReturnURI     string
	OmisePublicKey       string
	OmiseSecretKey       string

	EventsBroker     string
	RabbitMQURL      string
	RabbitMQExchange string

	OtelEnabled  bool
	OtelEndpoint string

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	timeZone := getEnvStr(EnvDefaultTimeZone, DefaultTimeZone)

	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),
		RateLimitMaxKeys:  getEnvNum(EnvRateLimitMaxKeys, DefaultRateLimitMaxKeys),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		DefaultTimeZone:    timeZone,
		DefaultCurrency:    strings.ToUpper(getEnvStr(EnvDefaultCurrency, locale.CurrencyFor(timeZone, DefaultCurrency))),
		DefaultPhoneRegion: strings.ToUpper(getEnvStr(EnvDefaultPhoneRegion, locale.PhoneRegionFor(timeZone, DefaultPhoneRegion))),

		BookingLockTTL:  getEnvDuration(EnvBookingLockTTL, DefaultBookingLockTTL),
		BookingLockWait: getEnvDuration(EnvBookingLockWait, DefaultBookingLockWait),

		PaymentTimeout:       getEnvDuration(EnvPaymentTimeout, DefaultPaymentTimeout),
		PaymentWebhookSecret: getEnvStr(EnvPaymentWebhookSecret, ""),
		PaymentReturnURI:     getEnvStr(EnvPaymentReturnURI, DefaultPaymentReturnURI),
		OmisePublicKey:       getEnvStr(EnvOmisePublicKey, ""),
		OmiseSecretKey:       getEnvStr(EnvOmiseSecretKey, ""),

		EventsBroker:     strings.ToLower(getEnvStr(EnvEventsBroker, DefaultEventsBroker)),
		RabbitMQURL:      getEnvStr(EnvRabbitMQURL, DefaultRabbitMQURL),
		RabbitMQExchange: getEnvStr(EnvRabbitMQExchange, DefaultRabbitMQExchange),

		OtelEnabled:  getEnvBool(EnvOtelEnabled, false),
		OtelEndpoint: getEnvStr(EnvOtelEndpoint, DefaultOtelEndpoint),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    getEnvStr(EnvLogFormat, DefaultLogFormat),
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
	}

	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	positiveDurations := []struct {
		name  string
		value time.Duration
	}{
		{"MongoConnTimeout", cfg.MongoConnTimeout},
		{"RateLimitWindow", cfg.RateLimitWindow},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
		{"BookingLockTTL", cfg.BookingLockTTL},
		{"BookingLockWait", cfg.BookingLockWait},
		{"PaymentTimeout", cfg.PaymentTimeout},
	}
	for _, d := range positiveDurations {
		if d.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", d.name, d.value))
		}
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.RateLimitMaxKeys <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitMaxKeys must be positive, got: %d", cfg.RateLimitMaxKeys))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if _, err := time.LoadLocation(cfg.DefaultTimeZone); err != nil || cfg.DefaultTimeZone == "" {
		errors = append(errors, fmt.Sprintf("DefaultTimeZone must be a valid IANA zone, got: %s", cfg.DefaultTimeZone))
	}
	if !regexp.MustCompile(`^[A-Z]{3}$`).MatchString(cfg.DefaultCurrency) {
		errors = append(errors, fmt.Sprintf("DefaultCurrency must be a three letter ISO-4217 code, got: %s", cfg.DefaultCurrency))
	}
	if phonenumbers.GetCountryCodeForRegion(cfg.DefaultPhoneRegion) == 0 {
		errors = append(errors, fmt.Sprintf("DefaultPhoneRegion must be a known region code, got: %s", cfg.DefaultPhoneRegion))
	}

	switch cfg.EventsBroker {
	case EventsBrokerKafka, EventsBrokerNone:
	case EventsBrokerRabbitMQ:
		if cfg.RabbitMQURL == "" {
			errors = append(errors, "RabbitMQURL cannot be empty when EventsBroker is rabbitmq")
		}
		if cfg.RabbitMQExchange == "" {
			errors = append(errors, "RabbitMQExchange cannot be empty when EventsBroker is rabbitmq")
		}
	default:
		errors = append(errors, fmt.Sprintf("EventsBroker must be one of [kafka, rabbitmq, none], got: %s", cfg.EventsBroker))
	}

	if (cfg.OmisePublicKey == "") != (cfg.OmiseSecretKey == "") {
		errors = append(errors, "OmisePublicKey and OmiseSecretKey must be set together")
	}

	if cfg.OtelEnabled && cfg.OtelEndpoint == "" {
		errors = append(errors, "OtelEndpoint cannot be empty when tracing is enabled")
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"rate_limit_max_keys", cfg.RateLimitMaxKeys,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"default_time_zone", cfg.DefaultTimeZone,
		"default_currency", cfg.DefaultCurrency,
		"default_phone_region", cfg.DefaultPhoneRegion,
		"booking_lock_ttl", cfg.BookingLockTTL,
		"booking_lock_wait", cfg.BookingLockWait,
		"payment_timeout", cfg.PaymentTimeout,
		"payment_return_uri", cfg.PaymentReturnURI,
		"payment_webhook_secret_set", cfg.PaymentWebhookSecret != "",
		"omise_keys_set", cfg.OmiseSecretKey != "",
		"events_broker", cfg.EventsBroker,
		"rabbitmq_url", redactAMQPURL(cfg.RabbitMQURL),
		"rabbitmq_exchange", cfg.RabbitMQExchange,
		"otel_enabled", cfg.OtelEnabled,
		"otel_endpoint", cfg.OtelEndpoint,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func redactAMQPURL(uri string) string {
	credentialRegex := regexp.MustCompile(`(amqps?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log, cfg.ShutdownTimeout)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = DefaultPaginationLimit
	} else if limit > MaxPaginationLimit {
		limit = MaxPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
