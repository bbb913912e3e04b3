// Package config loads pyllemi's repository configuration.
//
// Configuration lives at the repository root in one of .pyllemi.json,
// .pyllemi.toml or .pyllemi.yaml (checked in that order). A missing file
// yields the defaults. Values from a .env file next to it and from
// PYLLEMI_* environment variables override the file, the real environment
// taking precedence over .env.
package config

import (
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/pyllemi/pkg/deps"
	"github.com/matzehuels/pyllemi/pkg/errors"
	"github.com/matzehuels/pyllemi/pkg/target"
)

// File names searched at the repository root, in order.
var FileNames = []string{".pyllemi.json", ".pyllemi.toml", ".pyllemi.yaml", ".pyllemi.yml"}

// Cache backends.
const (
	CacheFile   = "file"
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Environment variables that override file values.
const (
	EnvCache    = "PYLLEMI_CACHE"
	EnvRedisURL = "PYLLEMI_REDIS_URL"
	EnvPlz      = "PYLLEMI_PLZ"
	EnvPython   = "PYLLEMI_PYTHON"
	EnvLogLevel = "PYLLEMI_LOG_LEVEL"
	EnvJobs     = "PYLLEMI_JOBS"
)

// KnownDependency pins a module to a target regardless of what the
// resolver would find.
type KnownDependency struct {
	Module    string `json:"module" toml:"module" yaml:"module"`
	PlzTarget string `json:"plzTarget" toml:"plzTarget" yaml:"plzTarget"`
}

// Config is the repository configuration.
type Config struct {
	KnownDependencies []KnownDependency `json:"knownDependencies" toml:"knownDependencies" yaml:"knownDependencies"`
	Kinds             []string          `json:"kinds" toml:"kinds" yaml:"kinds"`
	Cache             string            `json:"cache" toml:"cache" yaml:"cache"`
	RedisURL          string            `json:"redisUrl" toml:"redisUrl" yaml:"redisUrl"`
	Plz               string            `json:"plz" toml:"plz" yaml:"plz"`
	Python            string            `json:"python" toml:"python" yaml:"python"`
	LogLevel          string            `json:"logLevel" toml:"logLevel" yaml:"logLevel"`
	Jobs              int               `json:"jobs" toml:"jobs" yaml:"jobs"`

	// Source is the file the configuration was read from, if any.
	Source string `json:"-" toml:"-" yaml:"-"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Kinds:  []string{"python_library", "python_binary", "python_test"},
		Cache:  CacheFile,
		Plz:    "plz",
		Python: "python3",
	}
}

// Load reads the configuration of the repository at root.
func Load(root string) (*Config, error) {
	cfg := Default()

	for _, name := range FileNames {
		p := filepath.Join(root, name)
		data, err := os.ReadFile(p)
		if stderrors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read %s", name)
		}
		if err := decode(name, data, cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "could not read config file %s", name)
		}
		cfg.Source = p
		break
	}

	dotenv, err := godotenv.Read(filepath.Join(root, ".env"))
	if err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read .env")
	}
	if err := cfg.applyEnv(func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return dotenv[key]
	}); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(name string, data []byte, cfg *Config) error {
	switch filepath.Ext(name) {
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv(EnvCache); v != "" {
		c.Cache = v
	}
	if v := getenv(EnvRedisURL); v != "" {
		c.RedisURL = v
	}
	if v := getenv(EnvPlz); v != "" {
		c.Plz = v
	}
	if v := getenv(EnvPython); v != "" {
		c.Python = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := getenv(EnvJobs); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s", EnvJobs)
		}
		c.Jobs = n
	}
	return nil
}

// Validate checks the configuration for values no command could use.
func (c *Config) Validate() error {
	c.Cache = strings.ToLower(strings.TrimSpace(c.Cache))
	if !slices.Contains([]string{CacheFile, CacheMemory, CacheRedis, CacheNone}, c.Cache) {
		return errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend %q", c.Cache)
	}
	if c.Cache == CacheRedis && c.RedisURL == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "cache %q requires redisUrl or %s", CacheRedis, EnvRedisURL)
	}
	if c.Jobs < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "jobs must not be negative")
	}
	if len(c.Kinds) == 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "kinds must name at least one rule kind")
	}
	for _, kd := range c.KnownDependencies {
		if err := errors.ValidateModuleName(kd.Module); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "knownDependencies")
		}
	}
	return nil
}

// Known returns the known dependencies keyed by module. Entries for the
// same module accumulate. An unparsable plzTarget is a format error.
func (c *Config) Known() (deps.Known, error) {
	known := make(deps.Known, len(c.KnownDependencies))
	for _, kd := range c.KnownDependencies {
		t, err := target.Parse(kd.PlzTarget)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(known[kd.Module], t) {
			known[kd.Module] = append(known[kd.Module], t)
		}
	}
	return known, nil
}
