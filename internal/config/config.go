package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. SURI_SERVICE_URL.
const EnvPrefix = "SURI"

// defaultConfigName is looked up in the working directory when --config is not given.
const defaultConfigName = "suri"

// Config holds the client configuration.
type Config struct {
	Service ServiceConfig `mapstructure:"service"`
	Image   ImageConfig   `mapstructure:"image"`
	Log     LogConfig     `mapstructure:"log"`
	Stub    StubConfig    `mapstructure:"stub"`
}

// ServiceConfig describes how to reach the face service.
type ServiceConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ImageConfig holds the image used when a command gets no path argument.
type ImageConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// StubConfig holds settings for the local fake service.
type StubConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads configuration from defaults, an optional file, .env, the environment
// and finally any flags bound under their config key (flag name -> key mapping in flagKeys).
func Load(configPath string, flags *pflag.FlagSet, flagKeys map[string]string) (*Config, error) {
	// .env is optional; the process environment still applies without it
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("Failed to load .env: %v", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		log.Debugf("Config loaded from %s", configPath)
	} else {
		v.SetConfigName(defaultConfigName)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else {
			log.Debugf("Config loaded from %s", v.ConfigFileUsed())
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.Service.URL = strings.TrimRight(cfg.Service.URL, "/")
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	return &cfg, nil
}

// setDefaults holds the values used when nothing else is configured.
func setDefaults(v *viper.Viper) {
	v.SetDefault("service.url", "http://localhost:8000")
	v.SetDefault("service.timeout", 30*time.Second)

	v.SetDefault("image.path", "face.jpg")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("stub.addr", ":8000")
}

func (c *Config) validate() error {
	if c.Service.URL == "" {
		return errors.New("service.url must not be empty")
	}
	if c.Service.Timeout <= 0 {
		return fmt.Errorf("service.timeout must be positive, got %s", c.Service.Timeout)
	}
	return nil
}
