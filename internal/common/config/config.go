package config

import (
	"os"
	"regexp"
	"time"

	"github.com/fustanlabs/fustan-sync/internal/common/cnst"
	"github.com/fustanlabs/fustan-sync/pkg/helper"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type (
	// AgentConfig is the top-level configuration for the sync agent.
	AgentConfig struct {
		Logger        LoggerConfig       `yaml:"logger"`
		API           APIConfig          `yaml:"api"`
		Realtime      RealtimeConfig     `yaml:"realtime"`
		Storage       StorageConfig      `yaml:"storage"`
		Notifications NotificationConfig `yaml:"notifications"`
		Guard         GuardConfig        `yaml:"guard"`
		Metrics       MetricsConfig      `yaml:"metrics"`
	}

	// MockAPIConfig is the configuration for the mock API server.
	MockAPIConfig struct {
		Port   int          `yaml:"port"`
		JWT    JWTConfig    `yaml:"jwt"`
		Logger LoggerConfig `yaml:"logger"`
	}

	// JWTConfig configures token minting in the mock API server.
	JWTConfig struct {
		SecretKey string        `yaml:"secret_key"`
		Duration  time.Duration `yaml:"duration"`
	}

	// APIConfig configures the REST client.
	APIConfig struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	}

	// RealtimeConfig configures the realtime channel.
	RealtimeConfig struct {
		URL               string        `yaml:"url"`  // ws:// or wss:// origin; derived from api.base_url when empty
		Path              string        `yaml:"path"` // endpoint path, default /socket
		HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
		ReconnectMinDelay time.Duration `yaml:"reconnect_min_delay"`
		ReconnectMaxDelay time.Duration `yaml:"reconnect_max_delay"`
	}

	// StorageConfig selects the persistent key-value backend for the token
	// and session snapshot.
	StorageConfig struct {
		Type  string             `yaml:"type"` // "memory", "disk" or "redis"
		Dir   string             `yaml:"dir"`  // base directory for disk storage
		Redis StorageRedisConfig `yaml:"redis"`
	}

	// StorageRedisConfig is the Redis backend configuration.
	StorageRedisConfig struct {
		Addr     string        `yaml:"addr"`
		Username string        `yaml:"username"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Prefix   string        `yaml:"prefix"`
		TTL      time.Duration `yaml:"ttl"`
	}

	// NotificationConfig configures the aggregator.
	NotificationConfig struct {
		PollInterval time.Duration `yaml:"poll_interval"`
		Language     string        `yaml:"language"` // "ar" or "en"
		HistoryPath  string        `yaml:"history_path"`
	}

	// GuardConfig configures the redirect guard.
	GuardConfig struct {
		RedirectOnUnauthenticated bool   `yaml:"redirect_on_unauthenticated"`
		RedirectPath              string `yaml:"redirect_path"`
	}

	// MetricsConfig configures the prometheus endpoint.
	MetricsConfig struct {
		Enabled   bool      `yaml:"enabled"`
		Addr      string    `yaml:"addr"`
		Namespace string    `yaml:"namespace"`
		Buckets   []float64 `yaml:"buckets"`
	}

	// LoggerConfig represents the logger configuration.
	LoggerConfig struct {
		Level      string `yaml:"level"`       // debug, info, warn, error
		Format     string `yaml:"format"`      // json, console
		Output     string `yaml:"output"`      // stdout, file
		FilePath   string `yaml:"file_path"`   // path to log file when output is file
		MaxSize    int    `yaml:"max_size"`    // max size of log file in MB
		MaxBackups int    `yaml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age"`     // max age of backup files in days
		Compress   bool   `yaml:"compress"`    // whether to compress backup files
		Color      bool   `yaml:"color"`       // whether to use color in console output
		Stacktrace bool   `yaml:"stacktrace"`  // whether to include stacktrace in error logs
	}
)

type Type interface {
	AgentConfig | MockAPIConfig
}

// LoadConfig loads configuration from a YAML file with environment variable
// support.
func LoadConfig[T Type](filename string) (*T, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := helper.GetCfgPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	// Resolve environment variables
	data = resolveEnv(data)
	var cfg T
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cfgPath, err
	}

	if agentCfg, ok := any(&cfg).(*AgentConfig); ok {
		SetAgentDefaults(agentCfg)
		if err := ValidateAgent(agentCfg); err != nil {
			return nil, cfgPath, err
		}
	}

	return &cfg, cfgPath, nil
}

// SetAgentDefaults fills in defaults for fields the file left unset.
func SetAgentDefaults(cfg *AgentConfig) {
	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = 15 * time.Second
	}
	if cfg.Realtime.URL == "" {
		cfg.Realtime.URL = cfg.API.BaseURL
	}
	if cfg.Realtime.Path == "" {
		cfg.Realtime.Path = cnst.DefaultSocketPath
	}
	if cfg.Realtime.HandshakeTimeout <= 0 {
		cfg.Realtime.HandshakeTimeout = 10 * time.Second
	}
	if cfg.Realtime.ReconnectMinDelay <= 0 {
		cfg.Realtime.ReconnectMinDelay = time.Second
	}
	if cfg.Realtime.ReconnectMaxDelay <= 0 {
		cfg.Realtime.ReconnectMaxDelay = 30 * time.Second
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "disk"
	}
	if cfg.Notifications.PollInterval <= 0 {
		cfg.Notifications.PollInterval = cnst.DefaultPollInterval
	}
	if cfg.Notifications.Language == "" {
		cfg.Notifications.Language = cnst.LangEN
	}
	if cfg.Guard.RedirectPath == "" {
		cfg.Guard.RedirectPath = cnst.DefaultLoginPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "fustan_sync"
	}
}

// ValidateAgent rejects configurations the agent cannot run with.
func ValidateAgent(cfg *AgentConfig) error {
	if cfg.API.BaseURL == "" {
		return ErrMissingBaseURL
	}
	switch cfg.Storage.Type {
	case "memory", "disk", "redis":
	default:
		return ErrUnknownStorageType
	}
	switch cfg.Notifications.Language {
	case cnst.LangEN, cnst.LangAR:
	default:
		return ErrUnknownLanguage
	}
	return nil
}

// resolveEnv replaces environment variable placeholders in YAML content.
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
