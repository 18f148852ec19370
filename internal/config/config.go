// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Provider names accepted by agent.llm.provider.
const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// Store backends accepted by store.type.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// EnvPrefix is the prefix viper uses when resolving environment overrides.
const EnvPrefix = "SEEKER"

// DefaultUserAgent mirrors a desktop Firefox build so that sites serve the
// same markup they would to a person.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

// DefaultInstruction is the instruction of the day handed to the model when none is configured.
const DefaultInstruction = "Find publicly reachable API schema documents (OpenAPI, Swagger, GraphQL introspection). " +
	"Crawl pages, estimate which links are most likely to lead to such a document, " +
	"and call the report tool with the URL of every schema document you find."

// Config holds the entire application configuration.
type Config struct {
	Logger      LoggerConfig                `mapstructure:"logger" yaml:"logger"`
	Browser     BrowserConfig               `mapstructure:"browser" yaml:"browser"`
	Frontier    FrontierConfig              `mapstructure:"frontier" yaml:"frontier"`
	Agent       AgentConfig                 `mapstructure:"agent" yaml:"agent"`
	Store       StoreConfig                 `mapstructure:"store" yaml:"store"`
	MCP         MCPConfig                   `mapstructure:"mcp" yaml:"mcp"`
	Credentials map[string]CredentialConfig `mapstructure:"credentials" yaml:"-"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names used for each log level on the console.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the single automated browser session.
type BrowserConfig struct {
	Headless          bool              `mapstructure:"headless" yaml:"headless"`
	UserAgent         string            `mapstructure:"user_agent" yaml:"user_agent"`
	UserDataDir       string            `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	IgnoreTLSErrors   bool              `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	DisableScripts    bool              `mapstructure:"disable_scripts" yaml:"disable_scripts"`
	NavigationTimeout time.Duration     `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	Headers           map[string]string `mapstructure:"headers" yaml:"headers"`
	Args              []string          `mapstructure:"args" yaml:"args"`
}

// FrontierConfig tunes URL selection, exploration and text extraction.
type FrontierConfig struct {
	PageSize          int           `mapstructure:"page_size" yaml:"page_size"`
	MaxPages          int           `mapstructure:"max_pages" yaml:"max_pages"`
	SettleMax         time.Duration `mapstructure:"settle_max" yaml:"settle_max"`
	SearchProbability float64       `mapstructure:"search_probability" yaml:"search_probability"`
	SearchURL         string        `mapstructure:"search_url" yaml:"search_url"`
	TLDs              []string      `mapstructure:"tlds" yaml:"tlds"`
	MaxEntries        int           `mapstructure:"max_entries" yaml:"max_entries"`
}

// AgentConfig configures the decision loop and its model.
type AgentConfig struct {
	Instruction        string        `mapstructure:"instruction" yaml:"instruction"`
	TranscriptCapacity int           `mapstructure:"transcript_capacity" yaml:"transcript_capacity"`
	PacingDelay        time.Duration `mapstructure:"pacing_delay" yaml:"pacing_delay"`
	TurnTimeout        time.Duration `mapstructure:"turn_timeout" yaml:"turn_timeout"`
	LLM                LLMConfig     `mapstructure:"llm" yaml:"llm"`
}

// LLMConfig describes the model endpoint. Model is used by the decision loop
// and FastModel by the delegate capability.
type LLMConfig struct {
	Provider          string        `mapstructure:"provider" yaml:"provider"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey            string        `mapstructure:"api_key" yaml:"-"`
	Model             string        `mapstructure:"model" yaml:"model"`
	FastModel         string        `mapstructure:"fast_model" yaml:"fast_model"`
	Temperature       float32       `mapstructure:"temperature" yaml:"temperature"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// StoreConfig selects where reported schema candidates are kept.
type StoreConfig struct {
	Type     string         `mapstructure:"type" yaml:"type"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// PostgresConfig holds the connection string for the report store.
type PostgresConfig struct {
	URL string `mapstructure:"url" yaml:"-"`
}

// MCPConfig names the capability server when it is exposed over MCP.
type MCPConfig struct {
	Name    string `mapstructure:"name" yaml:"name"`
	Version string `mapstructure:"version" yaml:"version"`
}

// CredentialConfig is one named login served through credentials://{name}.
type CredentialConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration section.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "seeker")
	v.SetDefault("logger.log_file", "seeker.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", DefaultUserAgent)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.disable_scripts", false)
	v.SetDefault("browser.navigation_timeout", "60s")

	// -- Frontier --
	v.SetDefault("frontier.page_size", 500)
	v.SetDefault("frontier.max_pages", 5)
	v.SetDefault("frontier.settle_max", "10s")
	v.SetDefault("frontier.search_probability", 0.1)
	v.SetDefault("frontier.search_url", "https://duckduckgo.com/html/?q=%s")
	v.SetDefault("frontier.tlds", []string{"com", "org", "net", "io", "dev", "app", "ai", "co", "info", "tech"})
	v.SetDefault("frontier.max_entries", 10000)

	// -- Agent --
	v.SetDefault("agent.instruction", DefaultInstruction)
	v.SetDefault("agent.transcript_capacity", 30)
	v.SetDefault("agent.pacing_delay", "5s")
	v.SetDefault("agent.turn_timeout", "2m")
	v.SetDefault("agent.llm.provider", ProviderOllama)
	v.SetDefault("agent.llm.endpoint", "http://127.0.0.1:11434")
	v.SetDefault("agent.llm.model", "deepseek-v2")
	v.SetDefault("agent.llm.fast_model", "deepseek-v2")
	v.SetDefault("agent.llm.temperature", 0.2)
	v.SetDefault("agent.llm.api_timeout", "2m")
	v.SetDefault("agent.llm.requests_per_minute", 0)

	// -- Store --
	v.SetDefault("store.type", StoreMemory)

	// -- MCP --
	v.SetDefault("mcp.name", "openapi-seeker")
	v.SetDefault("mcp.version", "1.0")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Secrets are bound explicitly so they resolve without appearing in a config file.
	_ = v.BindEnv("agent.llm.api_key", EnvPrefix+"_LLM_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("store.postgres.url", EnvPrefix+"_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) expandPaths() error {
	logFile, err := homedir.Expand(c.Logger.LogFile)
	if err != nil {
		return fmt.Errorf("logger.log_file: %w", err)
	}
	c.Logger.LogFile = logFile

	dataDir, err := homedir.Expand(c.Browser.UserDataDir)
	if err != nil {
		return fmt.Errorf("browser.user_data_dir: %w", err)
	}
	c.Browser.UserDataDir = dataDir
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be a positive duration")
	}
	if err := c.Frontier.Validate(); err != nil {
		return fmt.Errorf("frontier configuration invalid: %w", err)
	}
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent configuration invalid: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the frontier settings.
func (f *FrontierConfig) Validate() error {
	if f.PageSize <= 0 {
		return fmt.Errorf("page_size must be a positive integer")
	}
	if f.MaxPages <= 0 {
		return fmt.Errorf("max_pages must be a positive integer")
	}
	if f.SettleMax < 0 {
		return fmt.Errorf("settle_max must not be negative")
	}
	if f.SearchProbability < 0 || f.SearchProbability > 1 {
		return fmt.Errorf("search_probability must be between 0.0 and 1.0")
	}
	if len(f.TLDs) == 0 {
		return fmt.Errorf("tlds must list at least one top-level domain")
	}
	if f.MaxEntries < 0 {
		return fmt.Errorf("max_entries must not be negative")
	}
	return nil
}

// Validate checks the decision loop settings.
func (a *AgentConfig) Validate() error {
	if a.TranscriptCapacity < 0 {
		return fmt.Errorf("transcript_capacity must not be negative")
	}
	if a.PacingDelay < 0 {
		return fmt.Errorf("pacing_delay must not be negative")
	}
	if a.TurnTimeout <= 0 {
		return fmt.Errorf("turn_timeout must be a positive duration")
	}
	switch a.LLM.Provider {
	case ProviderOllama:
	case ProviderGemini:
		if a.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key is required for the gemini provider")
		}
	default:
		return fmt.Errorf("unsupported llm.provider '%s'", a.LLM.Provider)
	}
	if a.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if a.LLM.RequestsPerMinute < 0 {
		return fmt.Errorf("llm.requests_per_minute must not be negative")
	}
	return nil
}

// Validate checks the report store settings.
func (s *StoreConfig) Validate() error {
	switch s.Type {
	case StoreMemory:
		return nil
	case StorePostgres:
		if s.Postgres.URL == "" {
			return fmt.Errorf("postgres.url is required when type is postgres")
		}
		return nil
	default:
		return fmt.Errorf("unsupported type '%s'", s.Type)
	}
}
