package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv       = "STARTUPHUB_CONFIG"
	httpAddrEnv         = "HTTP_ADDR"
	databaseDriverEnv   = "DATABASE_DRIVER"
	databaseDSNEnv      = "DATABASE_DSN"
	logLevelEnv         = "LOG_LEVEL"
	logFormatEnv        = "LOG_FORMAT"
	chatAgentURLEnv     = "CHATBOT_AGENT_URL"
	describeAgentURLEnv = "DESCRIPTION_AGENT_URL"
	analysisAgentURLEnv = "AI_AGENT_URL"
	dispatchModeEnv     = "REPORT_DISPATCH_MODE"
	storageDirEnv       = "STORAGE_DIR"
	taskWorkersEnv      = "TASK_WORKERS"
)

// Dispatch modes for report generation.
const (
	DispatchInline = "inline"
	DispatchQueued = "queued"
)

// Config holds every setting the server needs. Nothing else in the module
// reads the environment.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Agents   AgentsConfig   `yaml:"agents"`
	Reports  ReportsConfig  `yaml:"reports"`
	Tasks    TasksConfig    `yaml:"tasks"`
	Storage  StorageConfig  `yaml:"storage"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// DatabaseConfig selects the gorm dialector. Driver is sqlite or mysql.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Debug  bool   `yaml:"debug"`
}

// LoggingConfig controls zerolog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// EndpointConfig points at one external AI agent.
type EndpointConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// AgentsConfig groups the three agent endpoints.
type AgentsConfig struct {
	Chat        EndpointConfig `yaml:"chat"`
	Description EndpointConfig `yaml:"description"`
	Analysis    EndpointConfig `yaml:"analysis"`
}

// RetryConfig is the queue retry policy of one task.
type RetryConfig struct {
	MaxRetries int           `yaml:"maxRetries"`
	Delay      time.Duration `yaml:"delay"`
}

// ReportsConfig configures analysis report generation.
type ReportsConfig struct {
	DispatchMode     string      `yaml:"dispatchMode"`
	Retry            RetryConfig `yaml:"retry"`
	DescriptionRetry RetryConfig `yaml:"descriptionRetry"`
	CompressPDF      bool        `yaml:"compressPdf"`
}

// TasksConfig sizes the background job queue.
type TasksConfig struct {
	Workers      int           `yaml:"workers"`
	PollInterval time.Duration `yaml:"pollInterval"`
	QueueSize    int           `yaml:"queueSize"`
}

// StorageConfig locates uploaded startup documents.
type StorageConfig struct {
	Dir            string `yaml:"dir"`
	MaxUploadBytes int64  `yaml:"maxUploadBytes"`
}

// Load reads the YAML file named by STARTUPHUB_CONFIG (if any), then applies
// environment overrides on top of the defaults.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults without touching the environment.
func Parse(raw []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	switch c.Reports.DispatchMode {
	case DispatchInline, DispatchQueued:
	default:
		return fmt.Errorf("config: unknown report dispatch mode %q", c.Reports.DispatchMode)
	}
	if c.Tasks.Workers < 1 {
		return fmt.Errorf("config: tasks.workers must be positive")
	}
	for name, ep := range map[string]EndpointConfig{
		"chat":        c.Agents.Chat,
		"description": c.Agents.Description,
		"analysis":    c.Agents.Analysis,
	} {
		if ep.Timeout <= 0 {
			return fmt.Errorf("config: agents.%s.timeout must be positive", name)
		}
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(httpAddrEnv); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = strings.ToLower(v)
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(logFormatEnv); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv(chatAgentURLEnv); v != "" {
		c.Agents.Chat.URL = v
	}
	if v := os.Getenv(describeAgentURLEnv); v != "" {
		c.Agents.Description.URL = v
	}
	if v := os.Getenv(analysisAgentURLEnv); v != "" {
		c.Agents.Analysis.URL = v
	}
	if v := os.Getenv(dispatchModeEnv); v != "" {
		c.Reports.DispatchMode = strings.ToLower(v)
	}
	if v := os.Getenv(storageDirEnv); v != "" {
		c.Storage.Dir = v
	}
	if v := os.Getenv(taskWorkersEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Tasks.Workers = n
		}
	}
}

// Default returns a configuration that runs locally against sqlite.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "data/startuphub.db"},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
		Agents: AgentsConfig{
			Chat:        EndpointConfig{URL: "http://localhost:8001/chat", Timeout: 60 * time.Second},
			Description: EndpointConfig{URL: "http://localhost:8001/describe", Timeout: 90 * time.Second},
			Analysis:    EndpointConfig{URL: "http://localhost:8001/analyze", Timeout: 300 * time.Second},
		},
		Reports: ReportsConfig{
			DispatchMode:     DispatchQueued,
			Retry:            RetryConfig{MaxRetries: 3, Delay: 180 * time.Second},
			DescriptionRetry: RetryConfig{MaxRetries: 3, Delay: 180 * time.Second},
			CompressPDF:      true,
		},
		Tasks:   TasksConfig{Workers: 4, PollInterval: time.Second, QueueSize: 256},
		Storage: StorageConfig{Dir: "data/documents", MaxUploadBytes: 20 << 20},
	}
}
