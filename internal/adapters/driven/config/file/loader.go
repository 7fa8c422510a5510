package file

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/core/domain"
)

// Environment variables overriding file and default values.
const (
	EnvAPIURL    = "PRISMA_API_URL"
	EnvAccessKey = "PRISMA_ACCESS_KEY"
	EnvSecretKey = "PRISMA_SECRET_KEY"
)

// fileConfig mirrors the TOML layout. Optional numerics are pointers so an
// absent key is distinguishable from an explicit zero.
type fileConfig struct {
	API struct {
		URL       string `toml:"url"`
		AccessKey string `toml:"access_key"`
		SecretKey string `toml:"secret_key"`
	} `toml:"api"`

	Pipeline struct {
		Workers       *int     `toml:"workers"`
		MaxInFlight   *int     `toml:"max_in_flight"`
		PageSize      *int     `toml:"page_size"`
		RefreshEvery  *int     `toml:"refresh_every"`
		GroupSize     *int     `toml:"group_size"`
		Categories    []string `toml:"categories"`
		RatePerSecond *float64 `toml:"rate_per_second"`
	} `toml:"pipeline"`

	Output struct {
		Path     string `toml:"path"`
		StateDir string `toml:"state_dir"`
		LogDir   string `toml:"log_dir"`
	} `toml:"output"`
}

// Load resolves the configuration. path selects the config file; empty falls
// back to ~/.pcs-code-export/config.toml, which may be absent. An explicit
// path that cannot be read is an error.
func Load(path string) (domain.Config, error) {
	cfg := domain.DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = defaultPath()
	}

	if path != "" {
		if err := applyFile(&cfg, path, explicit); err != nil {
			return domain.Config{}, err
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// defaultPath returns the conventional config location, or empty when the
// home directory is unknown.
func defaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".pcs-code-export", "config.toml")
}

func applyFile(cfg *domain.Config, path string, explicit bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if fc.API.URL != "" {
		cfg.APIURL = fc.API.URL
	}
	if fc.API.AccessKey != "" {
		cfg.AccessKey = fc.API.AccessKey
	}
	if fc.API.SecretKey != "" {
		cfg.SecretKey = fc.API.SecretKey
	}

	if fc.Pipeline.Workers != nil {
		cfg.Workers = *fc.Pipeline.Workers
	}
	if fc.Pipeline.MaxInFlight != nil {
		cfg.MaxInFlight = *fc.Pipeline.MaxInFlight
	}
	if fc.Pipeline.PageSize != nil {
		cfg.PageSize = *fc.Pipeline.PageSize
	}
	if fc.Pipeline.RefreshEvery != nil {
		cfg.RefreshEvery = *fc.Pipeline.RefreshEvery
	}
	if fc.Pipeline.GroupSize != nil {
		cfg.GroupSize = *fc.Pipeline.GroupSize
	}
	if len(fc.Pipeline.Categories) > 0 {
		cfg.Categories = fc.Pipeline.Categories
	}
	if fc.Pipeline.RatePerSecond != nil {
		cfg.RatePerSecond = *fc.Pipeline.RatePerSecond
	}

	if fc.Output.Path != "" {
		cfg.Output = fc.Output.Path
	}
	if fc.Output.StateDir != "" {
		cfg.StateDir = fc.Output.StateDir
	}
	if fc.Output.LogDir != "" {
		cfg.LogDir = fc.Output.LogDir
	}

	return nil
}

func applyEnv(cfg *domain.Config) {
	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv(EnvAccessKey); v != "" {
		cfg.AccessKey = v
	}
	if v := os.Getenv(EnvSecretKey); v != "" {
		cfg.SecretKey = v
	}
}
