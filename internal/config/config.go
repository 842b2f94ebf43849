package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL         = "http://127.0.0.1:7474"
	DefaultBackend        = "json"
	DefaultLogLevel       = "debug"
	DefaultWatchDebounce  = 150
	DefaultRenameFallback = true

	configFileName           = ".linenotes.toml"
	configDirEnvKey          = "LINENOTES_CONFIG_DIR"
	trustProjectConfigEnvKey = "LINENOTES_TRUST_PROJECT_CONFIG"
)

// WatchConfig configures the filesystem watcher run by `srv --watch`.
type WatchConfig struct {
	DebounceMS int      `toml:"debounce_ms"`
	Ignore     []string `toml:"ignore"`
}

// Config defines runtime configuration for linenotes.
type Config struct {
	ProjectRoot              string      `toml:"project_root"`
	NotesDir                 string      `toml:"notes_dir"`
	Backend                  string      `toml:"backend"`
	APIURL                   string      `toml:"api_url"`
	Author                   string      `toml:"author"`
	LogLevel                 string      `toml:"log_level"`
	RenameFallback           bool        `toml:"rename_fallback"`
	APITokenHash             string      `toml:"api_token_hash"`
	Watch                    WatchConfig `toml:"watch"`
	TrustedProjectConfigPath string      `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		Backend:        DefaultBackend,
		APIURL:         DefaultAPIURL,
		LogLevel:       DefaultLogLevel,
		RenameFallback: DefaultRenameFallback,
		Watch: WatchConfig{
			DebounceMS: DefaultWatchDebounce,
		},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"project_root",
	"notes_dir",
	"backend",
	"api_url",
	"author",
	"log_level",
	"rename_fallback",
	"api_token_hash",
	"watch.debounce_ms",
	"watch.ignore",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "project_root":
		return c.ProjectRoot, nil
	case "notes_dir":
		return c.NotesDir, nil
	case "backend":
		return c.Backend, nil
	case "api_url":
		return c.APIURL, nil
	case "author":
		return c.Author, nil
	case "log_level":
		return c.LogLevel, nil
	case "rename_fallback":
		return strconv.FormatBool(c.RenameFallback), nil
	case "api_token_hash":
		return c.APITokenHash, nil
	case "watch.debounce_ms":
		return strconv.Itoa(c.Watch.DebounceMS), nil
	case "watch.ignore":
		return strings.Join(c.Watch.Ignore, ","), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	applyEnv(&cfg)

	if cfg.ProjectRoot == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.ProjectRoot = cwd
		}
	}
	cfg.normalize()

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if apiURL := os.Getenv("LINENOTES_API_URL"); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if root := os.Getenv("LINENOTES_PROJECT_ROOT"); root != "" {
		cfg.ProjectRoot = root
	}
	if backend := os.Getenv("LINENOTES_BACKEND"); backend != "" {
		cfg.Backend = backend
	}
	if author := os.Getenv("LINENOTES_AUTHOR"); author != "" {
		cfg.Author = author
	}
	if dir := os.Getenv("LINENOTES_NOTES_DIR"); dir != "" {
		cfg.NotesDir = dir
	}
	if raw := strings.TrimSpace(os.Getenv("LINENOTES_RENAME_FALLBACK")); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.RenameFallback = value
		}
	}
}

// Identity returns the author stamped on new annotations: the configured
// author, or the login name of the current user.
func (c *Config) Identity() string {
	if author := strings.TrimSpace(c.Author); author != "" {
		return author
	}
	for _, key := range []string{"USER", "USERNAME"} {
		if name := strings.TrimSpace(os.Getenv(key)); name != "" {
			return name
		}
	}
	return "unknown"
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "watch.debounce_ms":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return int64(parsed), nil
	case "rename_fallback":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "backend":
		switch value {
		case "json", "sqlite":
			return value, nil
		}
		return nil, fmt.Errorf("backend must be json or sqlite")
	case "watch.ignore":
		return splitCSV(value), nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func splitCSV(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func (c *Config) normalize() {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = DefaultBackend
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Watch.DebounceMS <= 0 {
		c.Watch.DebounceMS = DefaultWatchDebounce
	}
	if c.ProjectRoot != "" {
		if abs, err := filepath.Abs(c.ProjectRoot); err == nil {
			c.ProjectRoot = abs
		}
	}
}
