package config

import (
	"errors"
	"fmt"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"os"
)

type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger"`
	DB          DBConfig          `mapstructure:"db"`
	Notifier    NotifierConfig    `mapstructure:"notifier"`
	Scoring     ScoringConfig     `mapstructure:"scoring"`
	Marketplace MarketplaceConfig `mapstructure:"marketplace"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

const defaultConfigFile = "./configs/config.yaml"

type section interface {
	validate() error
	bindEnvironmentVariables(v *viper.Viper) error
}

func Get() *Config {

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("can't load .env file: %v", err)
	}

	configFile := defaultConfigFile
	if value, ok := os.LookupEnv("CONFIG_PATH"); ok && value != "" {
		configFile = value
	}

	config, err := loadConfig(configFile)
	if err != nil {
		log.Fatal(err)
	}

	return config
}

func loadConfig(file string) (*Config, error) {

	v := viper.New()
	v.SetConfigFile(file)
	v.AutomaticEnv()

	setDefaults(v)

	config := Config{}
	if err := bindEnvironmentVariables(v, config.sections()); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", file, err)
	}

	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.driver", string(DriverSqlite))
	v.SetDefault("metrics.address", ":8080")
	v.SetDefault("marketplace.node_id", 1)
	v.SetDefault("marketplace.offer_ttl", "72h")
	v.SetDefault("marketplace.expiry_schedule", "*/5 * * * *")
	v.SetDefault("marketplace.stack_ttl", "30m")
	v.SetDefault("scoring.model", "gemini-1.5-flash")
	v.SetDefault("scoring.timeout", "10s")
	v.SetDefault("scoring.cache_ttl", "10m")
}

func (config *Config) sections() map[string]section {
	return map[string]section{
		"LoggerConfig":      &config.Logger,
		"DBConfig":          &config.DB,
		"NotifierConfig":    &config.Notifier,
		"ScoringConfig":     &config.Scoring,
		"MarketplaceConfig": &config.Marketplace,
		"MetricsConfig":     &config.Metrics,
	}
}

func bindEnvironmentVariables(v *viper.Viper, sections map[string]section) error {
	var errs []error

	for name, s := range sections {
		if err := s.bindEnvironmentVariables(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}

	return nil
}

func (config Config) validate() error {
	var errs []error

	for name, s := range config.sections() {
		if err := s.validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred: %w", errors.Join(errs...))
	}

	return nil
}

func bindAll(v *viper.Viper, pairs [][2]string) error {
	var errs []error
	for _, pair := range pairs {
		if err := v.BindEnv(pair[0], pair[1]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
