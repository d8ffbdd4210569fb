package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvRedisAddr        = "REDIS_ADDR"
	EnvRedisPassword    = "REDIS_PASSWORD"
	EnvRedisDB          = "REDIS_DB"
	EnvRedisDialTimeout = "REDIS_DIAL_TIMEOUT"

	EnvPort      = "PORT"
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"
	EnvTimezone  = "TIMEZONE"

	EnvWebhookSecret = "WEBHOOK_SECRET"
	EnvAdminAPIKey   = "ADMIN_API_KEY"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvDefaultCapacity   = "DEFAULT_CAPACITY"
	EnvLowSlotsThreshold = "LOW_SLOTS_THRESHOLD"
	EnvMinLeadDays       = "MIN_LEAD_DAYS"

	EnvLockStore             = "LOCK_STORE"
	EnvLockUpdateMaxRetries  = "LOCK_UPDATE_MAX_RETRIES"
	EnvLockExclusiveCapacity = "LOCK_EXCLUSIVE_CAPACITY"
	EnvLockLongHold          = "LOCK_LONG_HOLD"
	EnvLockShortHold         = "LOCK_SHORT_HOLD"
	EnvLockStrictThreshold   = "LOCK_STRICT_THRESHOLD"

	EnvDraftGraceWindow    = "DRAFT_GRACE_WINDOW"
	EnvMaintenanceSchedule = "MAINTENANCE_SCHEDULE"

	EnvOrderSystemURL         = "ORDER_SYSTEM_URL"
	EnvOrderSystemTimeout     = "ORDER_SYSTEM_TIMEOUT"
	EnvOrderSystemMaxFailures = "ORDER_SYSTEM_BREAKER_MAX_FAILURES"
	EnvOrderSystemOpenTimeout = "ORDER_SYSTEM_BREAKER_OPEN_TIMEOUT"
	EnvProductMapping         = "PRODUCT_MAPPING"
	EnvRecordAnonymousSpans   = "RECORD_ANONYMOUS_SPANS"

	EnvKafkaEnabled       = "KAFKA_ENABLED"
	EnvOrderEventsTopic   = "ORDER_EVENTS_TOPIC"
	EnvBookingEventsTopic = "BOOKING_EVENTS_TOPIC"
	EnvKafkaConsumerGroup = "KAFKA_CONSUMER_GROUP"
)
