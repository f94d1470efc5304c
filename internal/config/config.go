// Package config defines the application configuration and its loading
// from environment variables and optional config files.
package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"    validate:"required"`
	Database DatabaseConfig `mapstructure:"database"  validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"      validate:"required"`
	DocBatch DocBatchConfig `mapstructure:"doc_batch" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"       validate:"required"`
	Batch    BatchConfig    `mapstructure:"batch"     validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage"   validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
// URL "memory://" selects the volatile in-memory task store; anything
// else is treated as a PostgreSQL connection string.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// IsMemory reports whether the in-memory task store is selected.
func (c DatabaseConfig) IsMemory() bool {
	return c.URL == "memory://"
}

// AuthConfig contains authentication and authorization settings.
// APIKeyHash is the bcrypt hash of the service API key exchanged for
// project-scoped access tokens.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
	APIKeyHash           string `mapstructure:"api_key_hash"           validate:"required"`
}

// DocBatchConfig configures the cloud batch conversion vendor.
type DocBatchConfig struct {
	BaseURL             string `mapstructure:"base_url"              validate:"required,url"`
	Token               string `mapstructure:"token"                 validate:"required"`
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds" validate:"required,gt=0"`
	MaxPollAttempts     int    `mapstructure:"max_poll_attempts"     validate:"required,gt=0"`
}

// LLMConfig contains vision-LLM integration settings. VisionModels is
// the allow-list of models accepted for the vision strategy.
type LLMConfig struct {
	GeminiAPIKey   string   `mapstructure:"gemini_api_key"  validate:"required"`
	DefaultModel   string   `mapstructure:"default_model"   validate:"required"`
	VisionModels   []string `mapstructure:"vision_models"   validate:"required,min=1"`
	MaxConcurrency int      `mapstructure:"max_concurrency" validate:"required,gt=0"`
}

// BatchConfig bounds the concurrency executor used by bulk operations.
type BatchConfig struct {
	DefaultLimit int `mapstructure:"default_limit" validate:"required,gt=0"`
	MaxLimit     int `mapstructure:"max_limit"     validate:"required,gt=0,gtefield=DefaultLimit"`
}

// StorageConfig locates the file area for converted artifacts.
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir" validate:"required"`
}
