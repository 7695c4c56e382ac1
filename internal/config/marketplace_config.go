package config

import (
	"errors"
	"fmt"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"time"
)

type MarketplaceConfig struct {
	NodeID         int64         `mapstructure:"node_id"`
	OfferTTL       time.Duration `mapstructure:"offer_ttl"`
	ExpirySchedule string        `mapstructure:"expiry_schedule"`
	StackTTL       time.Duration `mapstructure:"stack_ttl"`
}

func (config *MarketplaceConfig) validate() error {
	var errs []error

	if config.NodeID < 0 || config.NodeID > 1023 {
		errs = append(errs, fmt.Errorf("node_id must be between 0 and 1023"))
	}
	if config.OfferTTL <= 0 {
		errs = append(errs, fmt.Errorf("offer_ttl must be positive"))
	}
	if config.StackTTL <= 0 {
		errs = append(errs, fmt.Errorf("stack_ttl must be positive"))
	}
	if _, err := cron.ParseStandard(config.ExpirySchedule); err != nil {
		errs = append(errs, fmt.Errorf("invalid expiry_schedule: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}

	return nil
}

func (config *MarketplaceConfig) bindEnvironmentVariables(v *viper.Viper) error {
	return bindAll(v, [][2]string{
		{"marketplace.node_id", "NODE_ID"},
		{"marketplace.offer_ttl", "OFFER_TTL"},
		{"marketplace.expiry_schedule", "EXPIRY_SCHEDULE"},
		{"marketplace.stack_ttl", "STACK_TTL"},
	})
}
