package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/iplanwebsites/repomd/internal/media"
)

// DefaultFile is the config file looked for when none is given.
const DefaultFile = "repomd.yml"

// MediaConfig controls variant generation.
type MediaConfig struct {
	Format   string              `yaml:"format"`
	Quality  int                 `yaml:"quality"`
	Variants []media.VariantSpec `yaml:"variants"`
}

// EmbeddingConfig controls the embedding stage.
type EmbeddingConfig struct {
	// Provider selects the text embedder: "local" or "none".
	Provider  string `yaml:"provider"`
	BatchSize int    `yaml:"batchSize"`
	CacheSize int    `yaml:"cacheSize"`
}

// SimilarityConfig controls the similarity stage.
type SimilarityConfig struct {
	Enabled      bool `yaml:"enabled"`
	MaxNeighbors int  `yaml:"maxNeighbors"`
}

// Config is the full build configuration.
type Config struct {
	Vault   string `yaml:"vault"`
	Output  string `yaml:"output"`
	Workers int    `yaml:"workers"`
	Strict  bool   `yaml:"strict"`

	Media      MediaConfig      `yaml:"media"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Similarity SimilarityConfig `yaml:"similarity"`

	// Database toggles SQLite artifact assembly.
	Database bool `yaml:"database"`
}

// Default returns the configuration used when nothing else is specified.
func Default() Config {
	return Config{
		Vault:  ".",
		Output: "dist",
		Embedding: EmbeddingConfig{
			Provider: "none",
		},
		Database: true,
	}
}

// Load reads configuration from path, falling back to DefaultFile when path
// is empty, then applies environment overrides. A missing file is not an
// error; the defaults carry.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) || explicit {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if c.Vault == "" {
		return fmt.Errorf("vault root cannot be empty")
	}
	if c.Output == "" {
		return fmt.Errorf("output root cannot be empty")
	}
	switch c.Embedding.Provider {
	case "", "none", "local":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	// Similarity without an embedder is rejected by the plugin graph, which
	// reports which capability is missing.
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("REPOMD_VAULT"); v != "" {
		cfg.Vault = v
	}
	if v := os.Getenv("REPOMD_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv("REPOMD_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("REPOMD_STRICT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Strict = b
		}
	}
	if v := os.Getenv("REPOMD_EMBEDDER"); v != "" {
		cfg.Embedding.Provider = v
	}
}
