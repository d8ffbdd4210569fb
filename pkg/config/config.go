package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"coworking/pkg/client"
	"coworking/pkg/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisDialTimeout time.Duration

	Port     string
	Timezone string
	Location *time.Location

	WebhookSecret string
	AdminAPIKey   string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	DefaultCapacity   int
	LowSlotsThreshold int
	MinLeadDays       int

	LockStore             string
	LockUpdateMaxRetries  int
	LockExclusiveCapacity int
	LockLongHold          time.Duration
	LockShortHold         time.Duration
	LockStrictThreshold   time.Duration

	DraftGraceWindow    time.Duration
	MaintenanceSchedule string

	OrderSystemURL         string
	OrderSystemTimeout     time.Duration
	OrderSystemMaxFailures int
	OrderSystemOpenTimeout time.Duration
	ProductMapping         map[string]string
	RecordAnonymousSpans   bool

	KafkaEnabled       bool
	OrderEventsTopic   string
	BookingEventsTopic string
	KafkaConsumerGroup string

	Log    *logger.Logger
	Client *client.Client

	// collected while parsing, reported by Validate
	parseErrors []string
}

// Load reads an optional .env file, then the process environment. Invalid
// configuration is fatal.
func Load(serviceName string) *Config {
	_ = godotenv.Load()

	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		RedisAddr:        getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword:    getEnvStr(EnvRedisPassword, ""),
		RedisDB:          getEnvNum(EnvRedisDB, DefaultRedisDB),
		RedisDialTimeout: getEnvDuration(EnvRedisDialTimeout, DefaultRedisDialTimeout),

		Port:     getEnvStr(EnvPort, DefaultPort),
		Timezone: getEnvStr(EnvTimezone, DefaultTimezone),

		WebhookSecret: getEnvStr(EnvWebhookSecret, ""),
		AdminAPIKey:   getEnvStr(EnvAdminAPIKey, ""),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		DefaultCapacity:   getEnvNum(EnvDefaultCapacity, DefaultDefaultCapacity),
		LowSlotsThreshold: getEnvNum(EnvLowSlotsThreshold, DefaultLowSlotsThreshold),
		MinLeadDays:       getEnvNum(EnvMinLeadDays, DefaultMinLeadDays),

		LockStore:             strings.ToLower(getEnvStr(EnvLockStore, DefaultLockStore)),
		LockUpdateMaxRetries:  getEnvNum(EnvLockUpdateMaxRetries, DefaultLockUpdateMaxRetries),
		LockExclusiveCapacity: getEnvNum(EnvLockExclusiveCapacity, DefaultLockExclusiveCapacity),
		LockLongHold:          getEnvDuration(EnvLockLongHold, DefaultLockLongHold),
		LockShortHold:         getEnvDuration(EnvLockShortHold, DefaultLockShortHold),
		LockStrictThreshold:   getEnvDuration(EnvLockStrictThreshold, DefaultLockStrictThreshold),

		DraftGraceWindow:    getEnvDuration(EnvDraftGraceWindow, DefaultDraftGraceWindow),
		MaintenanceSchedule: getEnvStr(EnvMaintenanceSchedule, DefaultMaintenanceSchedule),

		OrderSystemURL:         strings.TrimRight(getEnvStr(EnvOrderSystemURL, DefaultOrderSystemURL), "/"),
		OrderSystemTimeout:     getEnvDuration(EnvOrderSystemTimeout, DefaultOrderSystemTimeout),
		OrderSystemMaxFailures: getEnvNum(EnvOrderSystemMaxFailures, DefaultOrderSystemMaxFailures),
		OrderSystemOpenTimeout: getEnvDuration(EnvOrderSystemOpenTimeout, DefaultOrderSystemOpenTimeout),
		RecordAnonymousSpans:   getEnvBool(EnvRecordAnonymousSpans, false),

		KafkaEnabled:       getEnvBool(EnvKafkaEnabled, DefaultKafkaEnabled),
		OrderEventsTopic:   getEnvStr(EnvOrderEventsTopic, DefaultOrderEventsTopic),
		BookingEventsTopic: getEnvStr(EnvBookingEventsTopic, DefaultBookingEventsTopic),
		KafkaConsumerGroup: getEnvStr(EnvKafkaConsumerGroup, DefaultKafkaConsumerGroup),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    getEnvStr(EnvLogFormat, DefaultLogFormat),
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if loc, err := time.LoadLocation(cfg.Timezone); err != nil {
		cfg.parseErrors = append(cfg.parseErrors, fmt.Sprintf("Timezone %q cannot be loaded: %v", cfg.Timezone, err))
	} else {
		cfg.Location = loc
	}

	mapping, err := ParseProductMapping(os.Getenv(EnvProductMapping))
	if err != nil {
		cfg.parseErrors = append(cfg.parseErrors, err.Error())
	}
	cfg.ProductMapping = mapping

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, client.RedisOptions{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: cfg.RedisDialTimeout,
	})
}

func (cfg *Config) Validate() error {
	errors := append([]string(nil), cfg.parseErrors...)

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
	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}

	switch cfg.LockStore {
	case LockStoreRedis:
		if cfg.RedisAddr == "" {
			errors = append(errors, "RedisAddr cannot be empty when LockStore is redis")
		}
		if cfg.RedisDB < 0 {
			errors = append(errors, fmt.Sprintf("RedisDB cannot be negative, got: %d", cfg.RedisDB))
		}
		if cfg.RedisDialTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("RedisDialTimeout must be positive, got: %s", cfg.RedisDialTimeout))
		}
	case LockStoreMemory:
	default:
		errors = append(errors, fmt.Sprintf("LockStore must be one of [redis, memory], got: %s", cfg.LockStore))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.DefaultCapacity < 1 {
		errors = append(errors, fmt.Sprintf("DefaultCapacity must be at least 1, got: %d", cfg.DefaultCapacity))
	}
	if cfg.LowSlotsThreshold < 0 {
		errors = append(errors, fmt.Sprintf("LowSlotsThreshold cannot be negative, got: %d", cfg.LowSlotsThreshold))
	}
	if cfg.MinLeadDays < 0 {
		errors = append(errors, fmt.Sprintf("MinLeadDays cannot be negative, got: %d", cfg.MinLeadDays))
	}

	if cfg.LockUpdateMaxRetries <= 0 {
		errors = append(errors, fmt.Sprintf("LockUpdateMaxRetries must be positive, got: %d", cfg.LockUpdateMaxRetries))
	}
	if cfg.LockExclusiveCapacity < 1 {
		errors = append(errors, fmt.Sprintf("LockExclusiveCapacity must be at least 1, got: %d", cfg.LockExclusiveCapacity))
	}
	if cfg.LockLongHold <= 0 {
		errors = append(errors, fmt.Sprintf("LockLongHold must be positive, got: %s", cfg.LockLongHold))
	}
	if cfg.LockShortHold <= 0 {
		errors = append(errors, fmt.Sprintf("LockShortHold must be positive, got: %s", cfg.LockShortHold))
	}
	if cfg.LockStrictThreshold <= 0 {
		errors = append(errors, fmt.Sprintf("LockStrictThreshold must be positive, got: %s", cfg.LockStrictThreshold))
	}

	if cfg.DraftGraceWindow < max(cfg.LockLongHold, cfg.LockShortHold) {
		errors = append(errors, fmt.Sprintf("DraftGraceWindow (%s) must not be shorter than the longest lock hold", cfg.DraftGraceWindow))
	}
	if strings.TrimSpace(cfg.MaintenanceSchedule) == "" {
		errors = append(errors, "MaintenanceSchedule cannot be empty")
	}

	if !regexp.MustCompile(`^https?://`).MatchString(cfg.OrderSystemURL) {
		errors = append(errors, fmt.Sprintf("OrderSystemURL must start with 'http://' or 'https://', got: %s", cfg.OrderSystemURL))
	}
	if cfg.OrderSystemTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("OrderSystemTimeout must be positive, got: %s", cfg.OrderSystemTimeout))
	}
	if cfg.OrderSystemMaxFailures <= 0 {
		errors = append(errors, fmt.Sprintf("OrderSystemMaxFailures must be positive, got: %d", cfg.OrderSystemMaxFailures))
	}
	if cfg.OrderSystemOpenTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("OrderSystemOpenTimeout must be positive, got: %s", cfg.OrderSystemOpenTimeout))
	}

	if cfg.KafkaEnabled {
		if cfg.OrderEventsTopic == "" {
			errors = append(errors, "OrderEventsTopic cannot be empty when Kafka is enabled")
		}
		if cfg.BookingEventsTopic == "" {
			errors = append(errors, "BookingEventsTopic cannot be empty when Kafka is enabled")
		}
		if cfg.KafkaConsumerGroup == "" {
			errors = append(errors, "KafkaConsumerGroup cannot be empty when Kafka is enabled")
		}
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
		"lock_store", cfg.LockStore,
		"redis_addr", cfg.RedisAddr,
		"redis_db", cfg.RedisDB,
		"redis_password_set", cfg.RedisPassword != "",
		"port", cfg.Port,
		"timezone", cfg.Timezone,
		"webhook_secret_set", cfg.WebhookSecret != "",
		"admin_api_key_set", cfg.AdminAPIKey != "",
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"default_capacity", cfg.DefaultCapacity,
		"low_slots_threshold", cfg.LowSlotsThreshold,
		"min_lead_days", cfg.MinLeadDays,
		"lock_exclusive_capacity", cfg.LockExclusiveCapacity,
		"lock_long_hold", cfg.LockLongHold,
		"lock_short_hold", cfg.LockShortHold,
		"lock_strict_threshold", cfg.LockStrictThreshold,
		"draft_grace_window", cfg.DraftGraceWindow,
		"maintenance_schedule", cfg.MaintenanceSchedule,
		"order_system_url", cfg.OrderSystemURL,
		"order_system_timeout", cfg.OrderSystemTimeout,
		"mapped_products", len(cfg.ProductMapping),
		"record_anonymous_spans", cfg.RecordAnonymousSpans,
		"kafka_enabled", cfg.KafkaEnabled,
		"order_events_topic", cfg.OrderEventsTopic,
		"booking_events_topic", cfg.BookingEventsTopic,
	)
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

// ParseProductMapping reads "resourceID=productID" pairs separated by commas.
func ParseProductMapping(raw string) (map[string]string, error) {
	mapping := make(map[string]string)
	if strings.TrimSpace(raw) == "" {
		return mapping, nil
	}

	var invalid []string
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		resourceID, productID, ok := strings.Cut(pair, "=")
		resourceID, productID = strings.TrimSpace(resourceID), strings.TrimSpace(productID)
		if !ok || resourceID == "" || productID == "" {
			invalid = append(invalid, pair)
			continue
		}
		mapping[resourceID] = productID
	}

	if len(invalid) > 0 {
		sort.Strings(invalid)
		return mapping, fmt.Errorf("ProductMapping entries must be resourceID=productID, invalid: %s", strings.Join(invalid, ", "))
	}
	return mapping, nil
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
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
