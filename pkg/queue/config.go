package queue

import "time"

// Config holds worker and retry tuning, populated from the environment.
type Config struct {
	PollInterval    time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"1s"`
	LeaseTimeout    time.Duration `env:"QUEUE_LEASE_TIMEOUT" envDefault:"1m"`
	Concurrency     int           `env:"QUEUE_CONCURRENCY" envDefault:"10"`
	MaxRetries      int           `env:"QUEUE_MAX_RETRIES" envDefault:"3"`
	RetryBackoffMin time.Duration `env:"QUEUE_RETRY_BACKOFF_MIN" envDefault:"5s"`
	RetryBackoffMax time.Duration `env:"QUEUE_RETRY_BACKOFF_MAX" envDefault:"5m"`
}
