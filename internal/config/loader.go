package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/DataDog/libdatadog/internal/upload"
)

// ReceiverRuntime is the configuration the receiver binary resolves for
// itself. The collector also forwards its own Config over the handoff
// channel; values received there win over the environment, because the
// parent knows where this particular report should go.
type ReceiverRuntime struct {
	Endpoint      string        `mapstructure:"endpoint"`
	APIKey        string        `mapstructure:"api_key"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ResolveFrames string        `mapstructure:"resolve_frames"`
	LogLevel      string        `mapstructure:"log_level"`
}

// Loader resolves receiver configuration from the environment.
type Loader struct {
	v         *viper.Viper
	envPrefix string
}

// NewLoader creates a loader with the CRASHTRACKER env prefix.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "CRASHTRACKER",
	}
}

// WithEnvPrefix overrides the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load resolves the receiver runtime configuration.
// Precedence (highest to lowest):
// 1. Environment variables (CRASHTRACKER_*)
// 2. Defaults
func (l *Loader) Load() (*ReceiverRuntime, error) {
	l.v.SetDefault("endpoint", "")
	l.v.SetDefault("api_key", "")
	l.v.SetDefault("timeout", DefaultTimeout)
	l.v.SetDefault("resolve_frames", "via_receiver")
	l.v.SetDefault("log_level", "info")

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	var rt ReceiverRuntime
	if err := l.v.Unmarshal(&rt); err != nil {
		return nil, fmt.Errorf("unmarshaling receiver config: %w", err)
	}
	if rt.Endpoint != "" {
		if _, err := upload.ParseEndpoint(rt.Endpoint); err != nil {
			return nil, fmt.Errorf("validating receiver endpoint: %w", err)
		}
	}
	if _, err := ParseResolvePolicy(rt.ResolveFrames); err != nil {
		return nil, err
	}
	return &rt, nil
}
