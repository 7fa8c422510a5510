package prismacloud

import "time"

// DefaultTimeout bounds any single HTTP request to the platform.
const DefaultTimeout = 30 * time.Second

// Config carries everything needed to construct a Client.
type Config struct {
	// BaseURL is the API root, e.g. https://api.prismacloud.io/code/api/v1.
	BaseURL string

	// AccessKey and SecretKey are exchanged for a bearer token at /login.
	AccessKey string
	SecretKey string

	// PageSize is the limit sent on paged requests.
	PageSize int

	// RefreshEvery re-runs the login exchange after this many completed
	// requests. Zero disables request-count refreshes.
	RefreshEvery int

	// RequestsPerSecond caps the sustained request rate. Zero disables
	// client-side throttling.
	RequestsPerSecond float64

	// Timeout bounds a single request. Defaults to DefaultTimeout.
	Timeout time.Duration
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}
