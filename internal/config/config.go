package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/maxdollinger/zapret.io/internal/strategy"
)

var (
	ErrInvalidListMode = errors.New("invalid list mode")
	ErrInvalidPorts    = errors.New("invalid port specification")
	ErrInvalidTimeout  = errors.New("invalid download timeout")
	ErrInvalidLogLevel = errors.New("invalid log level")
)

// Config is the top-level configuration.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	RootDir      string            `mapstructure:"root_dir"`
	Ports        PortsConfig       `mapstructure:"ports"`
	ListMode     strategy.ListMode `mapstructure:"list_mode"`
	Filters      []strategy.Filter `mapstructure:"filters"`
	Download     DownloadConfig    `mapstructure:"download"`
	ManifestFile string            `mapstructure:"manifest_file"`
	Journal      JournalConfig     `mapstructure:"journal"`
	Logging      LoggingConfig     `mapstructure:"logging"`
	Metrics      MetricsConfig     `mapstructure:"metrics"`
}

// PortsConfig holds the worker port selection, see --wf-tcp and --wf-udp.
type PortsConfig struct {
	TCP string `mapstructure:"tcp"`
	UDP string `mapstructure:"udp"`
}

type DownloadConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// JournalPath defaults to sessions.db below the root.
func (c *Config) JournalPath() string {
	if c.Journal.Path != "" {
		return c.Journal.Path
	}
	return filepath.Join(c.RootDir, "sessions.db")
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if !c.ListMode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidListMode, c.ListMode)
	}
	if err := ValidatePorts(c.Ports.TCP); err != nil {
		return fmt.Errorf("ports.tcp: %w", err)
	}
	if err := ValidatePorts(c.Ports.UDP); err != nil {
		return fmt.Errorf("ports.udp: %w", err)
	}
	if c.Download.Timeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, c.Download.Timeout)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}
	return nil
}

// ValidatePorts accepts comma separated ports and ranges like "80,443,1000-2000".
func ValidatePorts(spec string) error {
	if spec == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPorts)
	}

	for _, part := range strings.Split(spec, ",") {
		lo, hi, isRange := strings.Cut(part, "-")
		from, err := port(lo)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidPorts, part)
		}
		if !isRange {
			continue
		}
		to, err := port(hi)
		if err != nil || to < from {
			return fmt.Errorf("%w: %q", ErrInvalidPorts, part)
		}
	}
	return nil
}

func port(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if p < 1 || p > 65535 {
		return 0, fmt.Errorf("port %d out of range", p)
	}
	return p, nil
}
