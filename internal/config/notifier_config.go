package config

import (
	"fmt"
	"github.com/spf13/viper"
)

type NotifierConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
}

func (config *NotifierConfig) validate() error {
	if config.Enabled && config.Token == "" {
		return fmt.Errorf("missing variable: token (required when notifier is enabled)")
	}
	return nil
}

func (config *NotifierConfig) bindEnvironmentVariables(v *viper.Viper) error {
	return bindAll(v, [][2]string{
		{"notifier.enabled", "NOTIFIER_ENABLED"},
		{"notifier.token", "TG_TOKEN"},
	})
}
