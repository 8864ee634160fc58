package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Trigger server
	ControlPort string

	// Remote collaborators
	AdviceURL      string
	BackendBaseURL string

	// Snapshot database
	SnapshotDBPath string

	// Capture
	CaptureMinBytes int

	// AMQP (optional, empty URL disables publishing)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Context provider
	ContextRefreshInterval time.Duration
	ContextCacheTTL        time.Duration

	// Window geometry (logical pixels)
	CollapsedWidth  int
	CollapsedHeight int
	ExpandedWidth   int
	ExpandedHeight  int
}

func Load() *Config {
	cfg := &Config{
		ControlPort: getEnv("CONTROL_PORT", "8090"),

		AdviceURL:      getEnv("ADVICE_URL", "http://localhost:5000/api/vision/advice"),
		BackendBaseURL: getEnv("BACKEND_BASE_URL", "http://localhost:5000"),

		SnapshotDBPath: getEnv("SNAPSHOT_DB_PATH", "./data/visiond.db"),

		CaptureMinBytes: getEnvInt("CAPTURE_MIN_BYTES", 1000),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "visiond"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "advice_events"),

		ContextRefreshInterval: getEnvDuration("CONTEXT_REFRESH_INTERVAL", 5*time.Minute),
		ContextCacheTTL:        getEnvDuration("CONTEXT_CACHE_TTL", 2*time.Minute),

		CollapsedWidth:  getEnvInt("COLLAPSED_WIDTH", 96),
		CollapsedHeight: getEnvInt("COLLAPSED_HEIGHT", 96),
		ExpandedWidth:   getEnvInt("EXPANDED_WIDTH", 420),
		ExpandedHeight:  getEnvInt("EXPANDED_HEIGHT", 640),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.ControlPort); err != nil {
		errors = append(errors, fmt.Sprintf("invalid control port '%s': must be a number", c.ControlPort))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid control port %d: must be between 1 and 65535", port))
	}

	for name, raw := range map[string]string{"advice URL": c.AdviceURL, "backend base URL": c.BackendBaseURL} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': must be an http(s) URL", name, raw))
		}
	}

	if c.SnapshotDBPath == "" {
		errors = append(errors, "snapshot database path cannot be empty")
	}

	if c.CaptureMinBytes < 1 {
		errors = append(errors, fmt.Sprintf("invalid capture minimum %d: must be at least 1 byte", c.CaptureMinBytes))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ContextRefreshInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid context refresh interval %v: must be at least 1 second", c.ContextRefreshInterval))
	}
	if c.ContextCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid context cache TTL %v: must be at least 1 second", c.ContextCacheTTL))
	}

	for name, v := range map[string]int{
		"collapsed width":  c.CollapsedWidth,
		"collapsed height": c.CollapsedHeight,
		"expanded width":   c.ExpandedWidth,
		"expanded height":  c.ExpandedHeight,
	} {
		if v < 1 {
			errors = append(errors, fmt.Sprintf("invalid %s %d: must be positive", name, v))
		}
	}
	if len(errors) == 0 {
		if c.ExpandedWidth < c.CollapsedWidth || c.ExpandedHeight < c.CollapsedHeight {
			errors = append(errors, "expanded geometry must not be smaller than the collapsed footprint")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
