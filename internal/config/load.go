package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and, when present,
// a config.yaml in the working directory. Environment variables take
// precedence over values from config files and use the CURATE_ prefix
// with underscores for nesting (e.g. CURATE_SERVER_PORT).
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; environment variables carry the settings.
	}

	v.SetEnvPrefix("CURATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers defaults for settings that have sensible
// out-of-the-box values. Credentials deliberately have no defaults.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	// Empty defaults register the credential keys with viper so
	// AutomaticEnv can bind them; validation rejects empty values.
	v.SetDefault("database.url", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.api_key_hash", "")
	v.SetDefault("doc_batch.base_url", "")
	v.SetDefault("doc_batch.token", "")
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("auth.token_lifetime_minutes", 60)
	v.SetDefault("doc_batch.poll_interval_seconds", 2)
	v.SetDefault("doc_batch.max_poll_attempts", 200)
	v.SetDefault("llm.default_model", "gemini-2.0-flash")
	v.SetDefault("llm.vision_models", []string{"gemini-2.0-flash", "gemini-1.5-pro"})
	v.SetDefault("llm.max_concurrency", 5)
	v.SetDefault("batch.default_limit", 5)
	v.SetDefault("batch.max_limit", 20)
	v.SetDefault("storage.data_dir", "./data")
}
