// Package config provides configuration structures and validation for the
// ad-spend finance core. It handles environment-based configuration for the
// HTTP gateway, databases, Kafka, the reconciliation engine and the top-up
// fee policy.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds the complete application configuration. Each field covers a
// major subsystem and is validated during startup.
type Config struct {
	Application    ApplicationConfig
	Logging        LoggingConfig
	Server         ServerConfig
	Postgres       PostgresConfig
	MongoDB        MongoDBConfig
	Kafka          KafkaConfig
	Outbox         OutboxConfig
	WorkerPool     WorkerPoolConfig
	Topup          TopupConfig
	Reconciliation ReconciliationConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
}

// MongoDBConfig contains MongoDB configuration for the audit trail store
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// KafkaConfig contains Kafka configuration for the reconciliation job topic
type KafkaConfig struct {
	Brokers           string
	JobTopic          string
	NumPartitions     int
	ReplicationFactor int
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	DLQTopic          string // Topic for jobs that failed systemically
}

// OutboxConfig contains transition outbox polling configuration
type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int
}

// WorkerPoolConfig sizes the per-account diffing pool
type WorkerPoolConfig struct {
	Size int
}

// TopupConfig contains top-up workflow configuration
type TopupConfig struct {
	// FeePercent is the default fee policy: a flat percentage of the
	// top-up amount, charged at payment time.
	FeePercent float64
}

// ReconciliationConfig contains reconciliation engine configuration
type ReconciliationConfig struct {
	ToleranceAmount    float64 // Absolute tolerance for "matched"
	LowThresholdPct    float64 // Inclusive upper bound of the low severity band
	MediumThresholdPct float64 // Inclusive upper bound of the medium severity band
	SpendAPIURL        string  // Base URL of the platform billing API
	SpendAPITimeout    time.Duration
	SpendFileDir       string // Directory holding bill snapshot spreadsheets
}

// validate checks the configuration for invalid or inconsistent values
func (c *Config) validate() error {
	var problems []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server port must be between 1 and 65535")
	}
	if c.Postgres.URL == "" {
		problems = append(problems, "postgres URL cannot be empty")
	}
	if c.MongoDB.URI == "" {
		problems = append(problems, "mongo URI cannot be empty")
	}
	if c.Kafka.Brokers == "" {
		problems = append(problems, "kafka brokers cannot be empty")
	}
	if c.Kafka.JobTopic == "" {
		problems = append(problems, "kafka job topic cannot be empty")
	}
	if c.WorkerPool.Size <= 0 {
		problems = append(problems, "worker pool size must be positive")
	}
	if c.Outbox.PollingInterval <= 0 {
		problems = append(problems, "outbox polling interval must be positive")
	}
	if c.Outbox.BatchSize <= 0 {
		problems = append(problems, "outbox batch size must be positive")
	}
	if c.Topup.FeePercent < 0 {
		problems = append(problems, "top-up fee percent cannot be negative")
	}
	if c.Reconciliation.ToleranceAmount < 0 {
		problems = append(problems, "reconciliation tolerance cannot be negative")
	}
	if c.Reconciliation.LowThresholdPct <= 0 ||
		c.Reconciliation.MediumThresholdPct <= c.Reconciliation.LowThresholdPct {
		problems = append(problems, "severity thresholds must satisfy 0 < low < medium")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
