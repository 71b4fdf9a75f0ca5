package main

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/censusdis/internal/data"
	"github.com/sells-group/censusdis/internal/fetcher"
	"github.com/sells-group/censusdis/internal/varcache"
	"github.com/sells-group/censusdis/internal/varsource"
	"github.com/sells-group/censusdis/internal/version"
)

// censusEnv is what every Census-facing command needs.
type censusEnv struct {
	Downloader *data.Downloader
	Cache      *varcache.SQLiteStore
}

// Close releases the metadata cache.
func (e *censusEnv) Close() {
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
}

func newFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  version.UserAgent(),
		Timeout:    time.Duration(cfg.Census.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Census.MaxRetries,
		CensusRate: cfg.Census.RateLimit,
		Breaker: fetcher.BreakerOptions{
			FailureThreshold: cfg.Census.BreakerThreshold,
			ResetTimeout:     time.Duration(cfg.Census.BreakerResetSecs) * time.Second,
		},
	})
}

// initCensus builds a Downloader from cfg. A cache that cannot be opened is
// logged and skipped.
func initCensus(ctx context.Context) (*censusEnv, error) {
	if cfg == nil {
		return nil, eris.New("config not loaded")
	}
	f := newFetcher()
	env := &censusEnv{}

	opts := []data.Option{
		data.WithAPIKey(cfg.Census.APIKey),
		data.WithBaseURL(cfg.Census.BaseURL),
		data.WithShapefileBaseURL(cfg.Census.ShapefileBaseURL),
		data.WithShapefilePath(cfg.Shapefile.Dir),
		data.WithResolution(cfg.Shapefile.Resolution),
		data.WithConcurrency(cfg.Census.Concurrency),
	}

	if cfg.Cache.Enabled && cfg.Cache.Path != "" {
		st, err := openCache(ctx)
		if err != nil {
			zap.L().Warn("variable cache disabled", zap.String("path", cfg.Cache.Path), zap.Error(err))
		} else {
			env.Cache = st
			ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
			src := varcache.New(varsource.NewAPISource(f, cfg.Census.BaseURL), varcache.WithStore(st, ttl))
			opts = append(opts, data.WithVariableSource(src))
		}
	}

	env.Downloader = data.New(f, opts...)
	return env, nil
}

func openCache(ctx context.Context) (*varcache.SQLiteStore, error) {
	st, err := varcache.NewSQLite(cfg.Cache.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate variable cache")
	}
	return st, nil
}

// parseGeo turns repeated key=value flags into geography filters. Values
// may be comma separated and keys may repeat.
func parseGeo(pairs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			return nil, eris.Errorf("invalid --geo %q, want key=value", p)
		}
		out[k] = append(out[k], strings.Split(v, ",")...)
	}
	return out, nil
}

var printer = message.NewPrinter(language.English)

// count formats n with thousands separators.
func count(n int) string {
	return printer.Sprintf("%d", n)
}

func requireFlag(name, value string) error {
	if value == "" {
		return eris.Errorf("--%s is required", name)
	}
	return nil
}
