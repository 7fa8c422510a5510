package domain

import "fmt"

// Code categories recognised by the branch-scan endpoints.
const (
	CategoryIacMisconfiguration = "IacMisconfiguration"
	CategoryVulnerabilities     = "Vulnerabilities"
	CategorySecrets             = "Secrets"
	CategoryLicenses            = "Licenses"
	CategoryWeaknesses          = "Weaknesses"
)

// AllCategories returns the default category filter: every category the
// platform reports. Returned as a fresh slice so callers may trim it.
func AllCategories() []string {
	return []string{
		CategoryIacMisconfiguration,
		CategoryVulnerabilities,
		CategorySecrets,
		CategoryLicenses,
		CategoryWeaknesses,
	}
}

// Pipeline defaults. All of these are overridable via config file, environment
// or flags; the values mirror the platform's documented sweet spots.
const (
	DefaultWorkers      = 10
	DefaultMaxInFlight  = 10
	DefaultPageSize     = 100
	DefaultRefreshEvery = 100
	DefaultGroupSize    = 1000
	DefaultRatePerSec   = 10.0
)

// Config is the resolved pipeline configuration after merging defaults,
// config file, environment and flags.
type Config struct {
	// APIURL is the platform base URL, e.g. https://api.prismacloud.io.
	APIURL string

	// AccessKey and SecretKey are exchanged for a bearer token at login.
	AccessKey string
	SecretKey string

	// Workers is the partition fan-out W: repository ids per branch are
	// split into ceil(count/W) sized contiguous groups.
	Workers int

	// MaxInFlight bounds concurrently executing fetch tasks across both
	// pipeline stages.
	MaxInFlight int

	// PageSize is the pagination limit for every paged endpoint.
	PageSize int

	// RefreshEvery re-authenticates after this many completed requests, and
	// after this many processed work units in the detail stage.
	RefreshEvery int

	// GroupSize caps the number of work units contributing to one finding
	// group.
	GroupSize int

	// Categories is the code-category filter. Empty means all categories.
	Categories []string

	// Output is the CSV destination: a file path, or a directory to receive
	// a timestamped file. Empty means the current directory.
	Output string

	// StateDir holds the run store database. Empty selects the default
	// under the user's home directory.
	StateDir string

	// LogDir receives the rotating JSON log file. Empty disables the file
	// sink.
	LogDir string

	// RatePerSecond throttles outbound requests. Zero or negative disables
	// proactive throttling.
	RatePerSecond float64

	// Verbose raises console logging to debug level.
	Verbose bool
}

// DefaultConfig returns a Config with every tunable at its default and no
// credentials.
func DefaultConfig() Config {
	return Config{
		Workers:       DefaultWorkers,
		MaxInFlight:   DefaultMaxInFlight,
		PageSize:      DefaultPageSize,
		RefreshEvery:  DefaultRefreshEvery,
		GroupSize:     DefaultGroupSize,
		Categories:    AllCategories(),
		RatePerSecond: DefaultRatePerSec,
	}
}

// Validate reports the first unusable setting. Credentials must be present
// and every bound positive; a Config that fails validation aborts startup.
func (c Config) Validate() error {
	switch {
	case c.APIURL == "":
		return fmt.Errorf("%w: api url is required", ErrInvalidConfig)
	case c.AccessKey == "":
		return fmt.Errorf("%w: access key is required", ErrInvalidConfig)
	case c.SecretKey == "":
		return fmt.Errorf("%w: secret key is required", ErrInvalidConfig)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	case c.MaxInFlight <= 0:
		return fmt.Errorf("%w: max in-flight must be positive, got %d", ErrInvalidConfig, c.MaxInFlight)
	case c.PageSize <= 0:
		return fmt.Errorf("%w: page size must be positive, got %d", ErrInvalidConfig, c.PageSize)
	case c.RefreshEvery <= 0:
		return fmt.Errorf("%w: refresh interval must be positive, got %d", ErrInvalidConfig, c.RefreshEvery)
	case c.GroupSize <= 0:
		return fmt.Errorf("%w: group size must be positive, got %d", ErrInvalidConfig, c.GroupSize)
	}
	return nil
}
