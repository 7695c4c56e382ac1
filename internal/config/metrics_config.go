package config

import (
	"fmt"
	"github.com/spf13/viper"
)

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

func (config *MetricsConfig) validate() error {
	if config.Address == "" {
		return fmt.Errorf("missing variable: address")
	}
	return nil
}

func (config *MetricsConfig) bindEnvironmentVariables(v *viper.Viper) error {
	return v.BindEnv("metrics.address", "METRICS_ADDRESS")
}
