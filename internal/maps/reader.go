// Package maps downloads and reads U.S. Census cartographic boundary
// shapefiles.
package maps

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/censusdis/internal/census"
	"github.com/sells-group/censusdis/internal/fetcher"
	"github.com/sells-group/censusdis/internal/frame"
)

// ShapeReader reads the cartographic boundary files of one year, caching
// downloads under a root directory.
type ShapeReader struct {
	fetcher    fetcher.Fetcher
	root       string
	year       int
	resolution string
	baseURL    string

	mu   sync.Mutex
	memo map[string]*frame.Frame
	sf   singleflight.Group
}

// NewShapeReader returns a reader for year. An empty resolution uses
// census.DefaultResolution and an empty baseURL the public TIGER tree.
func NewShapeReader(f fetcher.Fetcher, root string, year int, resolution, baseURL string) *ShapeReader {
	if root == "" {
		root = filepath.Join(os.TempDir(), "censusdis", "shapefiles")
	}
	if resolution == "" {
		resolution = census.DefaultResolution
	}
	return &ShapeReader{
		fetcher:    f,
		root:       root,
		year:       year,
		resolution: resolution,
		baseURL:    baseURL,
		memo:       make(map[string]*frame.Frame),
	}
}

// Year returns the vintage the reader serves.
func (r *ShapeReader) Year() int {
	return r.year
}

// ReadCB returns the cartographic boundaries of level within scope. scope
// is "us" or a two digit state FIPS code; level is e.g. "state", "county",
// "tract" or "bg".
func (r *ShapeReader) ReadCB(ctx context.Context, scope, level string) (*frame.Frame, error) {
	name := census.CartographicBoundaryName(r.year, scope, level, r.resolution)

	r.mu.Lock()
	f, ok := r.memo[name]
	r.mu.Unlock()
	if ok {
		return f, nil
	}

	res, err, _ := r.sf.Do(name, func() (any, error) {
		shpPath, err := r.ensure(ctx, scope, level, name)
		if err != nil {
			return nil, err
		}
		f, err := readShapefile(shpPath)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.memo[name] = f
		r.mu.Unlock()
		return f, nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "maps: read %s", name)
	}
	return res.(*frame.Frame), nil
}

// ensure makes sure the shapefile is on disk and returns the .shp path.
func (r *ShapeReader) ensure(ctx context.Context, scope, level, name string) (string, error) {
	log := zap.L().With(
		zap.String("component", "maps.reader"),
		zap.String("shapefile", name),
	)

	yearDir := filepath.Join(r.root, strconv.Itoa(r.year))
	extractDir := filepath.Join(yearDir, name)
	shpPath := filepath.Join(extractDir, name+".shp")

	if info, err := os.Stat(shpPath); err == nil && info.Size() > 0 {
		log.Debug("shapefile already extracted", zap.String("path", shpPath))
		return shpPath, nil
	}

	zipPath := filepath.Join(yearDir, name+".zip")
	if info, err := os.Stat(zipPath); err == nil && info.Size() > 0 {
		log.Debug("zip already exists, skipping download", zap.String("path", zipPath))
	} else {
		url := census.CartographicBoundaryURL(r.baseURL, r.year, scope, level, r.resolution)
		log.Info("downloading cartographic boundary file", zap.String("url", url))
		if _, err := r.fetcher.DownloadToFile(ctx, url, zipPath); err != nil {
			return "", eris.Wrap(err, "download")
		}
	}

	files, err := fetcher.ExtractZIP(zipPath, extractDir)
	if err != nil {
		return "", eris.Wrap(err, "extract")
	}

	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f), ".shp") {
			return f, nil
		}
	}
	return "", eris.Errorf("no .shp file in %s", zipPath)
}

// Readers hands out one ShapeReader per year, all sharing a root.
type Readers struct {
	fetcher    fetcher.Fetcher
	root       string
	resolution string
	baseURL    string

	mu      sync.Mutex
	readers map[int]*ShapeReader
}

// NewReaders returns an empty registry of readers.
func NewReaders(f fetcher.Fetcher, root, resolution, baseURL string) *Readers {
	return &Readers{
		fetcher:    f,
		root:       root,
		resolution: resolution,
		baseURL:    baseURL,
		readers:    make(map[int]*ShapeReader),
	}
}

// Root returns the directory shapefiles are cached in.
func (rs *Readers) Root() string {
	return rs.root
}

// For returns the reader for year, creating it on first use.
func (rs *Readers) For(year int) *ShapeReader {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	r, ok := rs.readers[year]
	if !ok {
		r = NewShapeReader(rs.fetcher, rs.root, year, rs.resolution, rs.baseURL)
		rs.readers[year] = r
	}
	return r
}
