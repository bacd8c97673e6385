package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Render   RenderConfig   `yaml:"render" mapstructure:"render"`
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DatabaseConfig locates the embedded SQLite database.
type DatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// RenderConfig configures the external tile renderer.
type RenderConfig struct {
	Command     string `yaml:"command" mapstructure:"command"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	FuzzPixels  int    `yaml:"fuzz_pixels" mapstructure:"fuzz_pixels"`
	StylesPath  string `yaml:"styles_path" mapstructure:"styles_path"`
}

// IngestConfig throttles dataset uploads.
type IngestConfig struct {
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst      int     `yaml:"burst" mapstructure:"burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BRANDY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("database.path", "brandy.sqlite")
	v.SetDefault("server.port", 8080)
	v.SetDefault("render.command", "rendertile")
	v.SetDefault("render.timeout_secs", 5)
	v.SetDefault("render.fuzz_pixels", 6)
	v.SetDefault("ingest.rate_per_sec", 2)
	v.SetDefault("ingest.burst", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command depends on before it starts.
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Database.Path == "" {
		problems = append(problems, "database.path is required")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Render.Command == "" {
			problems = append(problems, "render.command is required")
		}
		if c.Render.TimeoutSecs <= 0 {
			problems = append(problems, "render.timeout_secs must be > 0")
		}
		if c.Render.FuzzPixels < 0 {
			problems = append(problems, "render.fuzz_pixels must be >= 0")
		}
		if c.Ingest.RatePerSec <= 0 || c.Ingest.Burst <= 0 {
			problems = append(problems, "ingest rate and burst must be > 0")
		}
	case "init-db", "add-user":
		// Only the database path matters.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
