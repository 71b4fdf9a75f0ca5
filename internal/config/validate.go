package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

var validResolutions = map[string]bool{"500k": true, "5m": true, "20m": true}

// Validate checks the settings required by a command mode: "download",
// "load" or "serve". All problems are reported together.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "download":
	case "load":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
		if c.Store.Schema == "" {
			problems = append(problems, "store.schema is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Census.Concurrency < 1 || c.Census.Concurrency > 32 {
		problems = append(problems, "census.concurrency must be between 1 and 32")
	}
	if c.Census.MaxRetries < 1 {
		problems = append(problems, "census.max_retries must be >= 1")
	}
	if c.Census.RateLimit <= 0 {
		problems = append(problems, "census.rate_limit must be > 0")
	}
	if !validResolutions[c.Shapefile.Resolution] {
		problems = append(problems, "shapefile.resolution must be one of 500k, 5m, 20m")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
