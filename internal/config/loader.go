// Package config loads client settings from a config file and the
// environment.
//
// Precedence, lowest to highest: built-in defaults, the config file,
// then S3LITE_* environment variables. Credentials normally arrive via
// the environment (S3LITE_ACCESS_KEY, S3LITE_SECRET_KEY) so config
// files stay checked-in safe.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/skylatch/s3lite/pkg/s3lite"
)

// envPrefix namespaces environment variables: S3LITE_REGION,
// S3LITE_ACCESS_KEY, and so on. Nested keys use underscores
// (S3LITE_LOG_LEVEL for "log.level").
const envPrefix = "S3LITE"

// Settings is everything loadable from file and environment.
type Settings struct {
	// AccessKey and SecretKey are the signing credentials.
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`

	// Region is the signing region.
	Region string `mapstructure:"region"`

	// Endpoint is the service URL the bucket lives under.
	Endpoint string `mapstructure:"endpoint"`

	// MaxBodyBytes caps request body size. Zero means no ceiling.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`

	// RequestTimeout bounds each HTTP call. Accepts duration strings
	// like "30s". Zero means no deadline.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// Log holds logging settings.
	Log LogSettings `mapstructure:"log"`
}

// LogSettings configures the logger.
type LogSettings struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string `mapstructure:"level"`
}

// Load reads settings from the named config file (optional; empty path
// loads defaults and environment only) merged with S3LITE_* variables.
func Load(path string) (*Settings, error) {
	v := viper.New()

	v.SetDefault("region", "us-east-1")
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Viper only consults env vars it knows about, so bind each key
	// explicitly.
	for _, key := range []string{
		"access_key", "secret_key", "region", "endpoint",
		"max_body_bytes", "request_timeout", "log.level",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var s Settings
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := v.Unmarshal(&s, decodeHook); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return &s, nil
}

// ClientConfig converts the settings to an s3lite.Config.
func (s *Settings) ClientConfig() s3lite.Config {
	return s3lite.Config{
		AccessKey:    s.AccessKey,
		SecretKey:    s.SecretKey,
		Region:       s.Region,
		Endpoint:     s.Endpoint,
		MaxBodyBytes: s.MaxBodyBytes,
		AbortTimeout: s.RequestTimeout,
	}
}
