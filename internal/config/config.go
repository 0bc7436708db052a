// Package config loads service configuration, environment-first with an
// optional YAML file.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything the relay needs at startup.
type Config struct {
	Port        string `mapstructure:"port"`
	DatabaseURL string `mapstructure:"database_url"`
	RedisURL    string `mapstructure:"redis_url"`
	DBMigrate   bool   `mapstructure:"db_migrate"`
	LogLevel    string `mapstructure:"log_level"`
	AuthMode    string `mapstructure:"auth_mode"`
	AuthSecret  string `mapstructure:"auth_hmac_secret"`

	// Webhook verification for the commerce platform sender.
	ShopifyWebhookSecret string `mapstructure:"shopify_webhook_secret"`
	ShopifyAPIVersion    string `mapstructure:"shopify_api_version"`

	// Audit retention. RetentionInterval enables the background sweeper
	// when positive; the HTTP endpoint is always available.
	RetentionAge      time.Duration `mapstructure:"retention_age"`
	RetentionInterval time.Duration `mapstructure:"retention_interval"`
}

// Load reads config.yaml from the working directory when present, then
// overlays environment variables (SHIPRELAY_PORT, SHIPRELAY_DATABASE_URL, ...).
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("shiprelay")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", "8080")
	v.SetDefault("db_migrate", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("auth_mode", "dev")
	v.SetDefault("shopify_api_version", "2024-10")
	v.SetDefault("retention_age", 15*24*time.Hour)
	v.SetDefault("retention_interval", time.Duration(0))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
