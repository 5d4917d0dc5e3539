package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port     int
	LogLevel string
	Env      string

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis config
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Push registration
	PushProjectID     string        // empty runs the app in local-only mode
	PushBackendURL    string        // backend that receives token reports
	PushReportTimeout time.Duration // timeout for token report requests

	// Notification history
	HistoryLimit    int
	ChatDedupWindow time.Duration

	// Rate limiting
	RateLimit       int
	RateLimitWindow time.Duration

	// AWS Services
	AWSRegion          string
	SNSPlatformIOS     string // platform application ARN for APNS
	SNSPlatformAndroid string // platform application ARN for FCM
	SQSRegion          string
	SQSQueueURL        string
	SQSDLQURL          string

	// Remote push worker
	RemotePushEnabled bool // derived from SQS_QUEUE_URL
	WorkerConcurrency int
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		Port:     8080,
		LogLevel: "info",
		Env:      "development",

		// Local postgres defaults
		DBHost:     "localhost",
		DBPort:     5432,
		DBUser:     "care",
		DBPassword: "",
		DBName:     "care",
		DBSSLMode:  "disable",

		// Redis defaults
		RedisHost:     "localhost",
		RedisPort:     6379,
		RedisPassword: "",
		RedisDB:       0,

		PushReportTimeout: 10 * time.Second,

		HistoryLimit:    100,
		ChatDedupWindow: 60 * time.Second,

		RateLimit:       60,
		RateLimitWindow: time.Minute,

		AWSRegion:         "us-east-1",
		WorkerConcurrency: 2,
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = p
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if env := os.Getenv("ENV"); env != "" {
		cfg.Env = env
	}

	// Database config
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DBHost = host
	}

	if port := os.Getenv("DB_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_PORT: %w", err)
		}
		cfg.DBPort = p
	}

	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DBUser = user
	}

	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DBPassword = password
	}

	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		cfg.DBName = dbname
	}

	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		cfg.DBSSLMode = sslmode
	}

	// Redis config
	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.RedisHost = host
	}

	if port := os.Getenv("REDIS_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
		}
		cfg.RedisPort = p
	}

	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.RedisPassword = password
	}

	if db := os.Getenv("REDIS_DB"); db != "" {
		d, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.RedisDB = d
	}

	// Push registration
	if id := os.Getenv("PUSH_PROJECT_ID"); id != "" {
		cfg.PushProjectID = id
	}

	if url := os.Getenv("PUSH_BACKEND_URL"); url != "" {
		cfg.PushBackendURL = url
	}

	if timeout := os.Getenv("PUSH_REPORT_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid PUSH_REPORT_TIMEOUT: %w", err)
		}
		cfg.PushReportTimeout = d
	}

	// History config
	if limit := os.Getenv("HISTORY_LIMIT"); limit != "" {
		l, err := strconv.Atoi(limit)
		if err != nil {
			return nil, fmt.Errorf("invalid HISTORY_LIMIT: %w", err)
		}
		cfg.HistoryLimit = l
	}

	if window := os.Getenv("CHAT_DEDUP_WINDOW"); window != "" {
		d, err := time.ParseDuration(window)
		if err != nil {
			return nil, fmt.Errorf("invalid CHAT_DEDUP_WINDOW: %w", err)
		}
		cfg.ChatDedupWindow = d
	}

	// Rate limit config
	if limit := os.Getenv("RATE_LIMIT"); limit != "" {
		l, err := strconv.Atoi(limit)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT: %w", err)
		}
		cfg.RateLimit = l
	}

	if window := os.Getenv("RATE_LIMIT_WINDOW"); window != "" {
		d, err := time.ParseDuration(window)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW: %w", err)
		}
		cfg.RateLimitWindow = d
	}

	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.AWSRegion = region
	}

	// SNS platform applications
	if arn := os.Getenv("SNS_PLATFORM_APP_IOS"); arn != "" {
		cfg.SNSPlatformIOS = arn
	}

	if arn := os.Getenv("SNS_PLATFORM_APP_ANDROID"); arn != "" {
		cfg.SNSPlatformAndroid = arn
	}

	// SQS config
	if region := os.Getenv("SQS_REGION"); region != "" {
		cfg.SQSRegion = region
	} else {
		cfg.SQSRegion = cfg.AWSRegion
	}

	if url := os.Getenv("SQS_QUEUE_URL"); url != "" {
		cfg.SQSQueueURL = url
		cfg.RemotePushEnabled = true
	}

	if url := os.Getenv("SQS_DLQ_URL"); url != "" {
		cfg.SQSDLQURL = url
	}

	// Worker config
	if n := os.Getenv("WORKER_CONCURRENCY"); n != "" {
		c, err := strconv.Atoi(n)
		if err != nil {
			return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
		}
		cfg.WorkerConcurrency = c
	}

	return cfg, nil
}

// PlatformARNs maps device types to their SNS platform applications,
// skipping any that are not configured.
func (c *Config) PlatformARNs() map[string]string {
	arns := make(map[string]string)
	if c.SNSPlatformIOS != "" {
		arns["ios"] = c.SNSPlatformIOS
	}
	if c.SNSPlatformAndroid != "" {
		arns["android"] = c.SNSPlatformAndroid
	}
	return arns
}
