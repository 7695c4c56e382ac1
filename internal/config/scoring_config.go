package config

import (
	"errors"
	"fmt"
	"github.com/spf13/viper"
	"time"
)

type ScoringConfig struct {
	AIKey                  string        `mapstructure:"ai_key"`
	Model                  string        `mapstructure:"model"`
	AiMaxRequestsPerMinute float32       `mapstructure:"ai_max_requests_per_minute"`
	AiMaxRequestsPerDay    float32       `mapstructure:"ai_max_requests_per_day"`
	Timeout                time.Duration `mapstructure:"timeout"`
	CacheTTL               time.Duration `mapstructure:"cache_ttl"`
}

// Enabled reports whether an AI key is configured. Without one the feed is served unscored.
func (config *ScoringConfig) Enabled() bool {
	return config.AIKey != ""
}

func (config *ScoringConfig) validate() error {
	var errs []error

	if config.Enabled() && config.Model == "" {
		errs = append(errs, fmt.Errorf("missing variable: model"))
	}
	if config.AiMaxRequestsPerMinute < 0 || config.AiMaxRequestsPerDay < 0 {
		errs = append(errs, fmt.Errorf("rate limits must be non-negative"))
	}
	if config.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}

	return nil
}

func (config *ScoringConfig) bindEnvironmentVariables(v *viper.Viper) error {
	return bindAll(v, [][2]string{
		{"scoring.ai_key", "AI_KEY"},
		{"scoring.model", "AI_MODEL"},
		{"scoring.ai_max_requests_per_minute", "AI_MAX_REQUESTS_PER_MINUTE"},
		{"scoring.ai_max_requests_per_day", "AI_MAX_REQUESTS_PER_DAY"},
		{"scoring.timeout", "AI_TIMEOUT"},
	})
}
