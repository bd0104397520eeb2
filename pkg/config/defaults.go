package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "mediq"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort = "8080"

	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPlatformFeePercent = 10
	DefaultSlotLockTTL        = 10 * time.Second

	// Dev-only key; deployments override via SLOT_TOKEN_KEY.
	DefaultSlotTokenKey = "x5iFQMPmJcT2oqOJ1r9CZTweoSKwVAJnIF9U+AL+M60="

	DefaultAppointmentEventsTopic  = "appointments.events"
	DefaultCompletionTopic         = "consultations.completed"
	DefaultCompletionConsumerGroup = "mediq-completion-worker"

	DefaultPaginationLimit = 100
)
