package loki

import "time"

type Config struct {

	// Url of the loki push endpoint, e.g. https://example-prod.grafana.net/loki/api/v1/push
	Url string `validate:"required,url"`

	// TenantKey and TenantValue set a tenant header for multi-tenant installations. Both are optional.
	TenantKey   string
	TenantValue string `validate:"required_with=TenantKey"`

	// BatchMaxSize is the maximum number of lines sent in one request.
	BatchMaxSize int `validate:"gte=1"`

	// BatchMaxWait is the longest a line waits in the buffer before a flush.
	BatchMaxWait time.Duration `validate:"gte=1"`

	// BufferSize bounds the number of entries queued between Push and the sender. Entries pushed
	// into a full buffer are dropped.
	BufferSize int `validate:"gte=1"`

	// Labels are added to every stream.
	Labels map[string]string

	// Username and Password enable basic authentication when both are set.
	Username string
	Password string
}

func (cfg *Config) setDefaults() {
	if cfg.BatchMaxSize == 0 {
		cfg.BatchMaxSize = 1000
	}
	if cfg.BatchMaxWait == 0 {
		cfg.BatchMaxWait = 5 * time.Second
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 4 * cfg.BatchMaxSize
	}
	if cfg.Labels == nil {
		cfg.Labels = map[string]string{}
	}
}
