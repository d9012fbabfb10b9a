// Package config loads sightline.toml and SIGHTLINE_* environment overrides.
//
// Every field has a default in Default, so a missing config file is not an
// error. Precedence, lowest first: defaults, the config file, environment.
//
//	[server]
//	addr = ":8080"
//	request_timeout = "60s"
//
//	[cache]
//	backend = "redis"        # file | redis | none
//	redis_addr = "localhost:6379"
//
//	[store]
//	backend = "mongo"        # memory | file | mongo
//	mongo_uri = "mongodb://localhost:27017"
//
//	[query]
//	workers = 8
//	step_limit = 1000000
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/sightline/pkg/errors"
	"github.com/matzehuels/sightline/pkg/pipeline"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "sightline.toml"

// Backend names.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"

	StoreMemory = "memory"
	StoreFile   = "file"
	StoreMongo  = "mongo"
)

// Duration is a time.Duration written as a string such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the complete configuration of the CLI and the service.
type Config struct {
	Server ServerConfig `toml:"server"`
	Cache  CacheConfig  `toml:"cache"`
	Store  StoreConfig  `toml:"store"`
	Query  QueryConfig  `toml:"query"`
	Render RenderConfig `toml:"render"`
}

type ServerConfig struct {
	Addr           string   `toml:"addr"`
	RequestTimeout Duration `toml:"request_timeout"`
	MaxBodyBytes   int64    `toml:"max_body_bytes"`
}

type CacheConfig struct {
	Backend       string `toml:"backend"`
	Dir           string `toml:"dir"` // empty means the XDG cache directory
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	RedisPrefix   string `toml:"redis_prefix"`

	// Namespace is prepended to every cache key so that deployments
	// sharing one backend do not see each other's entries.
	Namespace string `toml:"namespace"`
}

type StoreConfig struct {
	Backend       string `toml:"backend"`
	Dir           string `toml:"dir"`
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

type QueryConfig struct {
	Workers    int  `toml:"workers"`
	StepLimit  int  `toml:"step_limit"`
	Regularize bool `toml:"regularize"`
}

type RenderConfig struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			RequestTimeout: Duration{60 * time.Second},
			MaxBodyBytes:   4 << 20,
		},
		Cache: CacheConfig{
			Backend:     CacheFile,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "sightline:",
		},
		Store: StoreConfig{
			Backend:       StoreMemory,
			MongoDatabase: "sightline",
		},
		Query: QueryConfig{
			Workers:   pipeline.DefaultWorkers,
			StepLimit: pipeline.DefaultStepLimit,
		},
		Render: RenderConfig{
			Width:  pipeline.DefaultWidth,
			Height: pipeline.DefaultHeight,
		},
	}
}

// Load reads the config file at path on top of the defaults, then applies
// the environment. An empty path tries DefaultFile and ignores its absence;
// an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return cfg, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse %s", path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return cfg, errors.New(errors.ErrCodeInvalidInput, "%s: unknown key %q", path, undecoded[0].String())
		}
	case os.IsNotExist(err) && !explicit:
	case os.IsNotExist(err):
		return cfg, errors.New(errors.ErrCodeFileNotFound, "config file not found: %s", path)
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from SIGHTLINE_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.New(errors.ErrCodeInvalidInput, "%s must be an integer, got %q", key, v)
		}
		*dst = n
		return nil
	}

	str("SIGHTLINE_ADDR", &c.Server.Addr)
	str("SIGHTLINE_CACHE", &c.Cache.Backend)
	str("SIGHTLINE_CACHE_DIR", &c.Cache.Dir)
	str("SIGHTLINE_REDIS_ADDR", &c.Cache.RedisAddr)
	str("SIGHTLINE_REDIS_PASSWORD", &c.Cache.RedisPassword)
	str("SIGHTLINE_CACHE_NAMESPACE", &c.Cache.Namespace)
	str("SIGHTLINE_STORE", &c.Store.Backend)
	str("SIGHTLINE_STORE_DIR", &c.Store.Dir)
	str("SIGHTLINE_MONGO_URI", &c.Store.MongoURI)
	str("SIGHTLINE_MONGO_DATABASE", &c.Store.MongoDatabase)
	if err := num("SIGHTLINE_REDIS_DB", &c.Cache.RedisDB); err != nil {
		return err
	}
	if err := num("SIGHTLINE_WORKERS", &c.Query.Workers); err != nil {
		return err
	}
	return num("SIGHTLINE_STEP_LIMIT", &c.Query.StepLimit)
}

// Validate checks backend names and limits.
func (c Config) Validate() error {
	switch c.Cache.Backend {
	case CacheFile, CacheRedis, CacheNone:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown cache backend %q (must be file, redis or none)", c.Cache.Backend)
	}
	switch c.Store.Backend {
	case StoreMemory, StoreFile, StoreMongo:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown store backend %q (must be memory, file or mongo)", c.Store.Backend)
	}
	if c.Store.Backend == StoreMongo && c.Store.MongoURI == "" {
		return errors.New(errors.ErrCodeInvalidInput, "store backend mongo needs mongo_uri")
	}
	if c.Query.Workers < 0 || c.Query.StepLimit < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "workers and step_limit must not be negative")
	}
	if c.Render.Width < 0 || c.Render.Height < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "render size must not be negative")
	}
	return nil
}

// PipelineOptions returns the query and render defaults as pipeline options.
func (c Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Workers:    c.Query.Workers,
		StepLimit:  c.Query.StepLimit,
		Regularize: c.Query.Regularize,
		Width:      c.Render.Width,
		Height:     c.Render.Height,
	}
}
