package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/doeshing/dexplorer/assets"
	"github.com/doeshing/dexplorer/internal/domain"
	"github.com/doeshing/dexplorer/internal/pkg/filesystem"
	"github.com/doeshing/dexplorer/internal/ports"
)

const (
	// EnvPrefix marks environment overrides. Nested keys use a double
	// underscore: DEXPLORER_BACKEND__URL sets backend.url.
	EnvPrefix = "DEXPLORER_"
	// EnvConfigPath overrides the config file location.
	EnvConfigPath = "DEXPLORER_CONFIG"
)

// flagKeys maps persistent CLI flags onto config keys.
var flagKeys = map[string]string{
	"url":      "backend.url",
	"database": "backend.database",
	"timeout":  "backend.timeout",
	"format":   "display.format",
}

// FileLoader loads YAML configuration from ~/.dexplorer/config.yaml (overridable via DEXPLORER_CONFIG).
type FileLoader struct {
	overridePath string
	flags        *pflag.FlagSet
	envFile      string
}

// NewFileLoader builds a new loader. flags may be nil.
func NewFileLoader(path string, flags *pflag.FlagSet) *FileLoader {
	return &FileLoader{overridePath: path, flags: flags, envFile: ".env"}
}

// WithEnvFile changes the dotenv file read before environment overrides.
func (l *FileLoader) WithEnvFile(path string) *FileLoader {
	l.envFile = path
	return l
}

// Path returns the config file the loader reads.
func (l *FileLoader) Path() string {
	return l.resolvePath()
}

// Load implements ports.ConfigProvider.
// Precedence (highest to lowest): flags > env vars > .env > config file > defaults
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.resolvePath()
	if err := ensureConfigDir(path); err != nil {
		return domain.Config{}, err
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := writeDefault(path); err != nil {
			return domain.Config{}, err
		}
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaultValues(), "."), nil); err != nil {
		return domain.Config{}, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return domain.Config{}, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	if l.envFile != "" {
		if err := godotenv.Load(l.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return domain.Config{}, fmt.Errorf("load %s: %w", l.envFile, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return domain.Config{}, fmt.Errorf("failed to load env vars: %w", err)
	}

	if l.flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(l.flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(l.flags, f)
		}), nil); err != nil {
			return domain.Config{}, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg domain.Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return domain.Config{}, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg = hydrateDefaults(cfg)
	if err := cfg.ValidateConsistency(); err != nil {
		return domain.Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

func (l *FileLoader) resolvePath() string {
	if l.overridePath != "" {
		return expandPath(l.overridePath)
	}
	if custom := os.Getenv(EnvConfigPath); custom != "" {
		return expandPath(custom)
	}
	return filepath.Join(filesystem.UserHomeDir(), ".dexplorer", "config.yaml")
}

func ensureConfigDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions)
}

func writeDefault(path string) error {
	return os.WriteFile(path, assets.DefaultConfigYAML, domain.SecureFilePermissions)
}

func defaultValues() map[string]interface{} {
	return map[string]interface{}{
		"config_format_version":  "1",
		"backend.url":            domain.DefaultBackendURL,
		"backend.database":       domain.DefaultDatabase,
		"backend.timeout":        int(domain.DefaultHTTPClientTimeout.Seconds()),
		"history.enabled":        true,
		"history.retention_days": domain.DefaultHistoryRetainDays,
		"display.format":         domain.FormatTable,
		"display.notify_seconds": int(domain.DefaultNotifyDuration.Seconds()),
		"display.color":          true,
		"guardrail.enabled":      true,
	}
}

func hydrateDefaults(cfg domain.Config) domain.Config {
	if cfg.History.Path == "" {
		cfg.History.Path = filepath.Join(filesystem.UserHomeDir(), ".dexplorer", "history", "history.db")
	}
	cfg.History.Path = expandPath(cfg.History.Path)
	if cfg.Backend.Database == "" {
		cfg.Backend.Database = domain.DefaultDatabase
	}
	if cfg.Guardrail.RulesPath == "" {
		cfg.Guardrail.RulesPath = filepath.Join(filesystem.UserHomeDir(), ".dexplorer", "guardrail.yaml")
	}
	cfg.Guardrail.RulesPath = expandPath(cfg.Guardrail.RulesPath)
	return cfg
}

func expandPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(filesystem.UserHomeDir(), path[2:])
	}
	return filepath.Clean(path)
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
