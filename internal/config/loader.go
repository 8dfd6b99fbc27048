package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	OAuth     OAuthConfig     `mapstructure:"oauth"`
	Features  FeaturesConfig  `mapstructure:"features"`
	Providers []TokenProvider `mapstructure:"providers"`
}

type FeaturesConfig struct {
	RequestIDHeader      string `mapstructure:"request_id_header"`
	EnableRequestLogging bool   `mapstructure:"enable_request_logging"`
	// GenerateSSHIdentity creates a default ed25519 key pair at startup when
	// none exists, so ssh remotes work out of the box.
	GenerateSSHIdentity bool `mapstructure:"generate_ssh_identity"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type LoggerConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

type AuthConfig struct {
	AdminAPIKey    string   `mapstructure:"admin_api_key"`
	SessionCookie  string   `mapstructure:"session_cookie"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type JobsConfig struct {
	// WorkspaceRoot is the directory all repository working trees live under.
	WorkspaceRoot string `mapstructure:"workspace_root"`
	Workers       int    `mapstructure:"workers"`
	QueueSize     int    `mapstructure:"queue_size"`
	// TaskTTL governs when completed task records are reclaimed, not how long
	// a running job may take.
	TaskTTL        time.Duration `mapstructure:"task_ttl"`
	CommitterName  string        `mapstructure:"committer_name"`
	CommitterEmail string        `mapstructure:"committer_email"`
}

// OAuthConfig is consumed by the pull-request listing collaborator only.
type OAuthConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// TokenProvider points a repository host at an external token-exchange
// endpoint, offered as a remediation hint on push authorization failures.
type TokenProvider struct {
	Host    string `mapstructure:"host"`
	AuthURL string `mapstructure:"auth_url"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetEnvPrefix("CODEBAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()

	return &cfg, nil
}

// ApplyDefaults fills zero values with working defaults.
func (c *Config) ApplyDefaults() {
	if c.Jobs.Workers <= 0 {
		c.Jobs.Workers = 4
	}
	if c.Jobs.QueueSize <= 0 {
		c.Jobs.QueueSize = 64
	}
	if c.Jobs.TaskTTL <= 0 {
		c.Jobs.TaskTTL = 7 * 24 * time.Hour
	}
	if c.Jobs.WorkspaceRoot == "" {
		c.Jobs.WorkspaceRoot = "workspace"
	}
	if c.Jobs.CommitterName == "" {
		c.Jobs.CommitterName = "Codebay"
	}
	if c.Jobs.CommitterEmail == "" {
		c.Jobs.CommitterEmail = "noreply@codebay.local"
	}
	if c.Auth.SessionCookie == "" {
		c.Auth.SessionCookie = "codebay_session"
	}
}
