// Package config holds the small set of tunables the core accepts: buffer
// sizes, cache capacity, and the cache directory root. Loading a
// configuration *file* as a user-facing feature is out of scope for this
// module (see SPEC_FULL.md §1); Load only resolves the single environment
// variable the spec calls for and falls back to Default.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dcarrero/mboxshell-go/internal/logging"
)

// EnvVar is the single environment variable this module consults: if set,
// it names a YAML file to load on top of Default.
const EnvVar = "MBOXSHELL_CONFIG"

// Config controls buffering, size limits, and cache sizing for the parser
// and store packages.
type Config struct {
	// ReadBufferSize is the bufio.Reader capacity used by the streaming
	// parser. Default 1 MiB.
	ReadBufferSize int `yaml:"read_buffer_size"`
	// MaxMessageSize caps an individual message's materialized byte range.
	// Default 256 MiB.
	MaxMessageSize int64 `yaml:"max_message_size"`
	// CacheCapacity bounds the decoded-body LRU cache in store.Store.
	// Default 50.
	CacheCapacity int `yaml:"cache_capacity"`
	// CacheDir overrides the fallback index cache directory root. Empty
	// means "use the OS user cache directory".
	CacheDir string `yaml:"cache_dir"`
}

const (
	defaultReadBufferSize = 1 << 20        // 1 MiB
	defaultMaxMessageSize = 256 << 20      // 256 MiB
	defaultCacheCapacity  = 50
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ReadBufferSize: defaultReadBufferSize,
		MaxMessageSize: defaultMaxMessageSize,
		CacheCapacity:  defaultCacheCapacity,
		CacheDir:       "",
	}
}

// Load returns Default, overlaid with the YAML file named by EnvVar if that
// variable is set and the file can be read and parsed. Any failure to read
// or parse the override file is logged and ignored — this module never
// fails to start over a bad optional config file.
func Load() Config {
	cfg := Default()

	path := os.Getenv(EnvVar)
	if path == "" {
		return cfg
	}

	log := logging.WithComponent("config")

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("could not read config override, using defaults")
		return cfg
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("could not parse config override, using defaults")
		return Default()
	}

	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = defaultReadBufferSize
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}
	if cfg.CacheCapacity <= 0 {
		cfg.CacheCapacity = defaultCacheCapacity
	}

	return cfg
}
