package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/pkg/errors"
)

// ErrConfiguration marks missing or unusable configuration (credentials, template, paths).
var ErrConfiguration = errors.New("configuration error")

const (
	// ProviderGemini selects the Google Gemini API.
	ProviderGemini = "gemini"
	// ProviderAnthropic selects the Anthropic Messages API.
	ProviderAnthropic = "anthropic"

	// DefaultGeminiModel is used when no generation model is configured for Gemini.
	DefaultGeminiModel = "gemini-2.0-flash"
	// DefaultClaudeModel is used when no generation model is configured for Anthropic.
	DefaultClaudeModel = "claude-sonnet-4-20250514"

	defaultListen          = ":8000"
	defaultTemplatePath    = "assets/template.tex"
	defaultTempDir         = "temp_files"
	defaultCompilerBinary  = "pdflatex"
	defaultCompileTimeout  = 30
	defaultLLMTimeout      = 120
	defaultShutdownTimeout = 15
)

// Config represents the application configuration.
type Config struct {
	Provider        string         `json:"provider" yaml:"provider"`
	GeminiAPIKey    string         `json:"gemini_api_key,omitempty" yaml:"gemini_api_key,omitempty"`
	AnthropicAPIKey string         `json:"anthropic_api_key,omitempty" yaml:"anthropic_api_key,omitempty"`
	Models          ModelsConfig   `json:"models,omitempty" yaml:"models,omitempty"`
	LLM             LLMConfig      `json:"llm" yaml:"llm"`
	TemplatePath    string         `json:"template_path" yaml:"template_path"`
	TempDir         string         `json:"temp_dir" yaml:"temp_dir"`
	Server          ServerConfig   `json:"server" yaml:"server"`
	Compiler        CompilerConfig `json:"compiler" yaml:"compiler"`
}

// ModelsConfig holds model selection for generation.
type ModelsConfig struct {
	Generation string `json:"generation,omitempty" yaml:"generation,omitempty"`
}

// LLMConfig holds settings for the text generation call.
type LLMConfig struct {
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Listen                 string `json:"listen" yaml:"listen"`
	StaticDir              string `json:"static_dir,omitempty" yaml:"static_dir,omitempty"`
	ShutdownTimeoutSeconds int    `json:"shutdown_timeout_seconds" yaml:"shutdown_timeout_seconds"`
}

// CompilerConfig holds LaTeX compiler settings.
type CompilerConfig struct {
	Binary         string `json:"binary" yaml:"binary"`
	Disabled       bool   `json:"disabled" yaml:"disabled"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// GetGenerationModel returns the generation model or the provider default if not specified.
func (c *Config) GetGenerationModel() (model string) {
	if c.Models.Generation != "" {
		model = c.Models.Generation
		return model
	}

	if c.Provider == ProviderAnthropic {
		model = DefaultClaudeModel
		return model
	}

	model = DefaultGeminiModel
	return model
}

// APIKey returns the credential for the selected provider.
func (c *Config) APIKey() (key string) {
	if c.Provider == ProviderAnthropic {
		key = c.AnthropicAPIKey
		return key
	}
	key = c.GeminiAPIKey
	return key
}

// LLMTimeout returns the bound on a single text generation call.
func (c *Config) LLMTimeout() (timeout time.Duration) {
	timeout = time.Duration(c.LLM.TimeoutSeconds) * time.Second
	return timeout
}

// CompileTimeout returns the bound on a single compiler run.
func (c *Config) CompileTimeout() (timeout time.Duration) {
	timeout = time.Duration(c.Compiler.TimeoutSeconds) * time.Second
	return timeout
}

// ShutdownTimeout returns how long in-flight requests may take to drain.
func (c *Config) ShutdownTimeout() (timeout time.Duration) {
	timeout = time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
	return timeout
}

// DefaultPath returns the default config file location.
func DefaultPath() (path string, err error) {
	var homeDir string
	homeDir, err = os.UserHomeDir()
	if err != nil {
		err = errors.Wrap(err, "failed to get user home directory")
		return path, err
	}
	path = filepath.Join(homeDir, ".cv-generator", "config.yaml")
	return path, err
}

// Load reads configuration from file with environment variable overrides.
// An empty configPath falls back to the default location; a missing file there is not an error.
func Load(configPath string) (cfg Config, err error) {
	path := configPath
	explicit := path != ""
	if !explicit {
		path, err = DefaultPath()
		if err != nil {
			return cfg, err
		}
	}

	var data []byte
	data, err = os.ReadFile(path)
	switch {
	case err == nil:
		err = yaml.Unmarshal(data, &cfg)
		if err != nil {
			err = errors.Wrapf(err, "failed to parse config file: %s", path)
			return cfg, err
		}
	case os.IsNotExist(err) && !explicit:
		err = nil
	case os.IsNotExist(err):
		err = errors.Wrapf(ErrConfiguration, "config file not found: %s (run 'cv-generator init' to create)", path)
		return cfg, err
	default:
		err = errors.Wrapf(err, "failed to read config file: %s", path)
		return cfg, err
	}

	// Override with environment variables if set
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		cfg.GeminiAPIKey = apiKey
	}
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		cfg.AnthropicAPIKey = apiKey
	}

	err = cfg.Validate()
	if err != nil {
		err = errors.Wrap(err, "config validation failed")
		return cfg, err
	}

	return cfg, err
}

// Validate checks that all required configuration is present and fills defaults.
func (c *Config) Validate() (err error) {
	if c.Provider == "" {
		c.Provider = ProviderGemini
	}

	switch c.Provider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			err = errors.Wrap(ErrConfiguration, "gemini_api_key is required (set in config or GEMINI_API_KEY env var)")
			return err
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			err = errors.Wrap(ErrConfiguration, "anthropic_api_key is required (set in config or ANTHROPIC_API_KEY env var)")
			return err
		}
	default:
		err = errors.Wrapf(ErrConfiguration, "unknown provider '%s': must be '%s' or '%s'", c.Provider, ProviderGemini, ProviderAnthropic)
		return err
	}

	if c.TemplatePath == "" {
		c.TemplatePath = defaultTemplatePath
	}
	if c.TempDir == "" {
		c.TempDir = defaultTempDir
	}
	if c.Server.Listen == "" {
		c.Server.Listen = defaultListen
	}
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		c.Server.ShutdownTimeoutSeconds = defaultShutdownTimeout
	}
	if c.Compiler.Binary == "" {
		c.Compiler.Binary = defaultCompilerBinary
	}
	if c.Compiler.TimeoutSeconds <= 0 {
		c.Compiler.TimeoutSeconds = defaultCompileTimeout
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeout
	}

	return err
}

// InitConfig creates a default configuration file.
func InitConfig(configPath string) (err error) {
	path := configPath
	if path == "" {
		path, err = DefaultPath()
		if err != nil {
			return err
		}
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	err = os.MkdirAll(dir, 0750)
	if err != nil {
		err = errors.Wrapf(err, "failed to create config directory: %s", dir)
		return err
	}

	// Check if file already exists
	_, err = os.Stat(path)
	if err == nil {
		err = errors.Errorf("config file already exists: %s", path)
		return err
	}

	defaultConfig := Config{
		Provider:     ProviderGemini,
		GeminiAPIKey: "your-gemini-api-key",
		LLM: LLMConfig{
			TimeoutSeconds: defaultLLMTimeout,
		},
		TemplatePath: defaultTemplatePath,
		TempDir:      defaultTempDir,
		Server: ServerConfig{
			Listen:                 defaultListen,
			ShutdownTimeoutSeconds: defaultShutdownTimeout,
		},
		Compiler: CompilerConfig{
			Binary:         defaultCompilerBinary,
			TimeoutSeconds: defaultCompileTimeout,
		},
	}

	var data []byte
	data, err = yaml.Marshal(defaultConfig)
	if err != nil {
		err = errors.Wrap(err, "failed to marshal default config")
		return err
	}

	err = os.WriteFile(path, data, 0600)
	if err != nil {
		err = errors.Wrapf(err, "failed to write config file: %s", path)
		return err
	}

	return err
}
