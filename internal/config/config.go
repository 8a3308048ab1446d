// Package config loads client configuration from a JSON config file,
// PIONEER_* environment variables and built-in defaults, in that order of
// increasing precedence for the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Auth0Config holds the identity provider coordinates.
type Auth0Config struct {
	Domain   string        `mapstructure:"domain"`
	ClientID string        `mapstructure:"client_id"`
	Audience string        `mapstructure:"audience"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Config is the full client configuration.
type Config struct {
	// APIBaseURL is the backend-of-record base URL.
	APIBaseURL string `mapstructure:"api_base_url"`
	// RequestTimeout bounds every backend round trip.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// StateDir is where the local cache lives.
	StateDir string `mapstructure:"state_dir"`

	// AbsorptionDelay suppresses background syncs after a profile write.
	AbsorptionDelay time.Duration `mapstructure:"absorption_delay"`
	// CompletionNoticeDelay postpones the onboarding completion notice.
	CompletionNoticeDelay time.Duration `mapstructure:"completion_notice_delay"`
	// SubmitSettleDelay pauses before submitting a drafted answer set.
	SubmitSettleDelay time.Duration `mapstructure:"submit_settle_delay"`

	Auth0 Auth0Config `mapstructure:"auth0"`
}

const configName = "pioneer-config"

// Load reads the configuration. An explicit path wins; otherwise
// pioneer-config.json is looked up in the working directory and $HOME. A
// missing file is not an error: defaults and environment still apply.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("json")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	v.SetEnvPrefix("PIONEER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_base_url", "http://localhost:8000/api")
	v.SetDefault("request_timeout", "30s")
	v.SetDefault("state_dir", "~/.pioneer")
	v.SetDefault("absorption_delay", "5s")
	v.SetDefault("completion_notice_delay", "200ms")
	v.SetDefault("submit_settle_delay", "500ms")
	v.SetDefault("auth0.timeout", "15s")
}

func (c Config) validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("api_base_url must not be empty")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.AbsorptionDelay < 0 || c.CompletionNoticeDelay < 0 || c.SubmitSettleDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	return nil
}
