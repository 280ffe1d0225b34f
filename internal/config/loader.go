package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/maxdollinger/zapret.io/internal/provision"
	"github.com/maxdollinger/zapret.io/internal/strategy"
	"github.com/spf13/viper"
)

const (
	configName = ".zapret"
	configType = "yaml"
	envPrefix  = "ZAPRET"
)

const (
	DefaultTCPPorts = "80,443"
	DefaultUDPPorts = "1-65535"
)

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("root_dir", defaultRoot())
	v.SetDefault("ports.tcp", DefaultTCPPorts)
	v.SetDefault("ports.udp", DefaultUDPPorts)
	v.SetDefault("list_mode", string(strategy.ListModeIPSet))
	v.SetDefault("filters", defaultFilters())
	v.SetDefault("download.timeout", provision.DefaultTimeout)
	v.SetDefault("download.user_agent", provision.DefaultUserAgent)
	v.SetDefault("manifest_file", "")
	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("metrics.addr", "")
}

func defaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".zapret"
	}
	return filepath.Join(home, ".zapret")
}

func defaultFilters() []map[string]any {
	filters := strategy.DefaultFilters()
	out := make([]map[string]any, 0, len(filters))
	for _, f := range filters {
		out = append(out, map[string]any{
			"name":     f.Name,
			"filename": f.Filename,
			"active":   f.Active,
		})
	}
	return out
}
