package model

import "time"

// Config is the complete claimlens configuration.
// Field tags serve both yaml.v3 (config dump) and viper (mapstructure).
type Config struct {
	LogLevel  string `yaml:"log_level" mapstructure:"log_level"`
	LogFormat string `yaml:"log_format" mapstructure:"log_format"`

	Rules       RulesConfig       `yaml:"rules" mapstructure:"rules"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Auth        AuthConfig        `yaml:"auth" mapstructure:"auth"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Loader      LoaderConfig      `yaml:"loader" mapstructure:"loader"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// RulesConfig points at an optional rule table override
type RulesConfig struct {
	Path string `yaml:"path" mapstructure:"path"` // empty = embedded defaults
}

// CacheConfig configures the report cache
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL        time.Duration `yaml:"ttl" mapstructure:"ttl"`
	Dir        string        `yaml:"dir" mapstructure:"dir"`                 // empty = memory only
	MaxEntries int           `yaml:"max_entries" mapstructure:"max_entries"` // memory layer bound, 0 = unbounded
}

// ConcurrencyConfig bounds batch processing
type ConcurrencyConfig struct {
	Workers int           `yaml:"workers" mapstructure:"workers"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"` // per item
}

// ServerConfig configures the optional HTTP service
type ServerConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr"`
	MaxUploadMB     int           `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	MaxConnections  int           `yaml:"max_connections" mapstructure:"max_connections"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// AuthConfig lists API clients. No clients means authentication is off.
type AuthConfig struct {
	Clients []ClientConfig `yaml:"clients" mapstructure:"clients"`
}

// ClientConfig is one API client
type ClientConfig struct {
	Name              string   `yaml:"name" mapstructure:"name"`
	KeyEnv            string   `yaml:"key_env" mapstructure:"key_env"` // env var holding the key
	Key               string   `yaml:"key,omitempty" mapstructure:"key"`
	Permissions       []string `yaml:"permissions" mapstructure:"permissions"`
	RequestsPerMinute int      `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// LLMConfig configures the optional advisory provider
type LLMConfig struct {
	Enabled     bool          `yaml:"enabled" mapstructure:"enabled"`
	Provider    string        `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model       string        `yaml:"model" mapstructure:"model"`
	BaseURL     string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// StoreConfig configures the analysis history database
type StoreConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// LoaderConfig configures loading evidence from files and URLs
type LoaderConfig struct {
	MaxBytes  int64         `yaml:"max_bytes" mapstructure:"max_bytes"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent string        `yaml:"user_agent" mapstructure:"user_agent"`
	Proxy     string        `yaml:"proxy,omitempty" mapstructure:"proxy"`
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Format string `yaml:"format" mapstructure:"format"` // json, md, summary
	Dir    string `yaml:"dir" mapstructure:"dir"`
}

// Permission names checked by the API layer
const (
	PermAnalyzeClaim    = "analyze_claim"
	PermProcessDocument = "process_document"
	PermAnalyzeImage    = "analyze_image"
	PermBatchProcess    = "batch_process"
	PermAdmin           = "admin"
)

// DefaultConfig returns the built-in defaults
func DefaultConfig() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Cache: CacheConfig{
			Enabled:    true,
			TTL:        24 * time.Hour,
			MaxEntries: 10000,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
			Timeout: 60 * time.Second,
		},
		Server: ServerConfig{
			Addr:            ":8001",
			MaxUploadMB:     10,
			MaxConnections:  256,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			MaxTokens:   600,
			Temperature: 0.2,
			Timeout:     60 * time.Second,
		},
		Store: StoreConfig{
			Path: "claimlens.db",
		},
		Loader: LoaderConfig{
			MaxBytes:  10 << 20,
			Timeout:   30 * time.Second,
			UserAgent: "claimlens/0.3.0",
		},
		Output: OutputConfig{
			Format: "json",
			Dir:    "./reports",
		},
	}
}
