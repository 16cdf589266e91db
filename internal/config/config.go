package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pmcharvest/pmcharvest/internal/apperr"
)

// defaultEmails is the built-in contact pool used when EMAILS is unset.
// NCBI asks for a contact address on every E-utilities request; rotating
// placeholder addresses keeps unconfigured runs polite without pinning
// all traffic to a single identity.
var defaultEmails = []string{
	"bk68g1gx@test.com",
	"wkv1h06c@sample.com",
	"m42touro@sample.com",
	"vy8u7tsx@test.com",
	"8xsqaxke@sample.com",
	"cilml02q@sample.com",
	"1s1ywssv@demo.com",
	"pfd4bf0y@demo.com",
	"hvjhnv7o@test.com",
	"vtirmn0j@sample.com",
}

type Config struct {
	Emails  []string      // round-robin contact pool attached to NCBI requests
	APIKey  string        // NCBI API key; raises the request budget to 10 req/s
	Timeout time.Duration // per-request HTTP timeout
	Retries int           // attempts per item, including the first
	Workers int           // default batch parallelism
}

func Load() *Config {
	return &Config{
		Emails:  getSliceEnv("EMAILS", defaultEmails),
		APIKey:  getEnv("API_KEY", ""),
		Timeout: getDurationEnv("TIMEOUT", 60*time.Second),
		Retries: getIntEnv("RETRIES", 3),
		Workers: getIntEnv("WORKERS", 10),
	}
}

// RateLimit returns the per-second request budget NCBI grants this
// configuration: 10 with an API key, 3 without.
func (c *Config) RateLimit() int {
	if c.APIKey != "" {
		return 10
	}
	return 3
}

func (c *Config) Validate() error {
	if len(c.Emails) == 0 {
		return apperr.New(apperr.ConfigError, "config", "email pool is empty")
	}
	for _, e := range c.Emails {
		if !strings.Contains(e, "@") {
			return apperr.New(apperr.ConfigError, "config", "invalid email %q in pool", e)
		}
	}
	if c.Timeout <= 0 {
		return apperr.New(apperr.ConfigError, "config", "timeout must be positive, got %s", c.Timeout)
	}
	if c.Retries < 1 {
		return apperr.New(apperr.ConfigError, "config", "retries must be at least 1, got %d", c.Retries)
	}
	if c.Workers < 1 {
		return apperr.New(apperr.ConfigError, "config", "workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
