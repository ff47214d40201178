// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration shared by registration-api and
// worker-manager.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Storage       StorageConfig           `mapstructure:"storage"`
	Registration  RegistrationConfig      `mapstructure:"registration"`
	Auth          AuthConfig              `mapstructure:"auth"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	Address         string   `mapstructure:"address"`
	OpsAddress      string   `mapstructure:"ops_address"`
	ReadTimeout     int      `mapstructure:"read_timeout"`     // milliseconds
	ShutdownTimeout int      `mapstructure:"shutdown_timeout"` // milliseconds
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
}

type CamundaConfig struct {
	BrokerAddress   string `mapstructure:"broker_address"`
	UsePlaintext    bool   `mapstructure:"use_plaintext"`
	ReviewProcessID string `mapstructure:"review_process_id"`
	StartReview     bool   `mapstructure:"start_review"`
	RequestTimeout  int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
}

// GetDSN returns the lib/pq connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses          []string `mapstructure:"addresses"`
	Username           string   `mapstructure:"username"`
	Password           string   `mapstructure:"password"`
	ApplicationIndex   string   `mapstructure:"application_index"`
	URL                string   `mapstructure:"url"`
	RequiredForStartup bool     `mapstructure:"required"`
}

// GetAddresses returns Addresses, falling back to the single URL.
func (e ElasticsearchConfig) GetAddresses() []string {
	if len(e.Addresses) > 0 {
		return e.Addresses
	}
	if e.URL != "" {
		return []string{e.URL}
	}
	return nil
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StorageConfig selects and configures the object store used for uploads.
type StorageConfig struct {
	Provider      string `mapstructure:"provider"` // "s3" or "local"
	Region        string `mapstructure:"region"`
	Endpoint      string `mapstructure:"endpoint"`
	UsePathStyle  bool   `mapstructure:"use_path_style"`
	DefaultBucket string `mapstructure:"default_bucket"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	SignedURLs    bool   `mapstructure:"signed_urls"`
	SignedURLTTL  int    `mapstructure:"signed_url_ttl"` // seconds
	LocalRoot     string `mapstructure:"local_root"`
}

// RegistrationConfig holds the wizard and submission settings.
type RegistrationConfig struct {
	DraftKeyPrefix  string `mapstructure:"draft_key_prefix"`
	DraftTTL        int    `mapstructure:"draft_ttl"` // hours
	MaxUploadBytes  int64  `mapstructure:"max_upload_bytes"`
	Table           string `mapstructure:"table"`
	ReferencePrefix string `mapstructure:"reference_prefix"`
	RequireIdentity bool   `mapstructure:"require_identity"`
	MinAge          int    `mapstructure:"min_age"`
	MaxAge          int    `mapstructure:"max_age"`
	MinWords        int    `mapstructure:"min_words"`
	SubmitTimeout   int    `mapstructure:"submit_timeout"` // milliseconds
}

// DraftExpiry returns DraftTTL as a duration.
func (r RegistrationConfig) DraftExpiry() time.Duration {
	return time.Duration(r.DraftTTL) * time.Hour
}

type AuthConfig struct {
	Keycloak KeycloakConfig `mapstructure:"keycloak"`
}

type KeycloakConfig struct {
	URL          string `mapstructure:"url"`
	Realm        string `mapstructure:"realm"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// Enabled reports whether token introspection is configured.
func (k KeycloakConfig) Enabled() bool {
	return k.URL != "" && k.Realm != ""
}

// NotificationConfig holds settings for the confirmation worker.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled  bool   `mapstructure:"enabled"`
		SenderID string `mapstructure:"sender_id"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	Breaker struct {
		FailureRatio float64 `mapstructure:"failure_ratio"`
		MinRequests  uint32  `mapstructure:"min_requests"`
		OpenTimeout  int     `mapstructure:"open_timeout"` // milliseconds
	} `mapstructure:"breaker"`
}

// WorkerConfig holds the settings applicable to every review worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
