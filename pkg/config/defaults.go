package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "coworking"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultRedisAddr        = "localhost:6379"
	DefaultRedisDB          = 0
	DefaultRedisDialTimeout = 5 * time.Second

	DefaultPort      = "8080"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	DefaultTimezone  = "UTC"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultDefaultCapacity   = 1
	DefaultLowSlotsThreshold = 2
	DefaultMinLeadDays       = 1

	LockStoreRedis  = "redis"
	LockStoreMemory = "memory"

	DefaultLockStore             = LockStoreRedis
	DefaultLockUpdateMaxRetries  = 16
	DefaultLockExclusiveCapacity = 1
	DefaultLockLongHold          = 20 * time.Minute
	DefaultLockShortHold         = 5 * time.Minute
	DefaultLockStrictThreshold   = 15 * time.Minute

	DefaultDraftGraceWindow    = 24 * time.Hour
	DefaultMaintenanceSchedule = "0 3 * * *"

	DefaultOrderSystemURL         = "http://localhost:8090"
	DefaultOrderSystemTimeout     = 10 * time.Second
	DefaultOrderSystemMaxFailures = 5
	DefaultOrderSystemOpenTimeout = 30 * time.Second

	DefaultKafkaEnabled       = false
	DefaultOrderEventsTopic   = "orders.events"
	DefaultBookingEventsTopic = "bookings.events"
	DefaultKafkaConsumerGroup = "coworking-bookings"
)
