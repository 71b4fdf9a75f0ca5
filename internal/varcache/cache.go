// Package varcache caches Census variable metadata in memory and, optionally,
// in a persistent store.
package varcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/censusdis/internal/varsource"
)

// Store is a persistent second level behind the in-memory cache.
type Store interface {
	Get(ctx context.Context, dataset string, year int, name string) (*varsource.Variable, error)
	Put(ctx context.Context, dataset string, year int, v *varsource.Variable, ttl time.Duration) error
}

type key struct {
	dataset string
	year    int
	name    string
}

type datasetKey struct {
	dataset string
	year    int
}

// Cache is a varsource.Source that remembers what it has fetched.
type Cache struct {
	source varsource.Source
	store  Store
	ttl    time.Duration

	mu       sync.RWMutex
	vars     map[key]*varsource.Variable
	groups   map[datasetKey]*varsource.GroupList
	catalogs map[int]*varsource.Catalog

	sf singleflight.Group
}

var _ varsource.Source = (*Cache)(nil)

// Option configures a Cache.
type Option func(*Cache)

// WithStore adds a persistent store whose entries live for ttl.
func WithStore(s Store, ttl time.Duration) Option {
	return func(c *Cache) {
		c.store = s
		c.ttl = ttl
	}
}

// New returns a Cache in front of source.
func New(source varsource.Source, opts ...Option) *Cache {
	c := &Cache{
		source:   source,
		vars:     make(map[key]*varsource.Variable),
		groups:   make(map[datasetKey]*varsource.GroupList),
		catalogs: make(map[int]*varsource.Catalog),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns a variable from memory, then the store, then the source.
func (c *Cache) Get(ctx context.Context, dataset string, year int, name string) (*varsource.Variable, error) {
	k := key{dataset, year, name}

	c.mu.RLock()
	v, ok := c.vars[k]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	res, err, _ := c.sf.Do(fmt.Sprintf("var|%s|%d|%s", dataset, year, name), func() (any, error) {
		c.mu.RLock()
		v, ok := c.vars[k]
		c.mu.RUnlock()
		if ok {
			return v, nil
		}

		if c.store != nil {
			sv, err := c.store.Get(ctx, dataset, year, name)
			if err != nil {
				zap.L().Warn("varcache: store read failed", zap.String("variable", name), zap.Error(err))
			} else if sv != nil {
				c.remember(k, sv)
				return sv, nil
			}
		}

		fv, err := c.source.Get(ctx, dataset, year, name)
		if err != nil {
			return nil, err
		}
		c.remember(k, fv)
		c.persist(ctx, dataset, year, fv)
		return fv, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "varcache: get")
	}
	return res.(*varsource.Variable), nil
}

// GetGroup fetches a group from the source and remembers every variable in it.
func (c *Cache) GetGroup(ctx context.Context, dataset string, year int, group string) (*varsource.Group, error) {
	res, err, _ := c.sf.Do(fmt.Sprintf("group|%s|%d|%s", dataset, year, group), func() (any, error) {
		return c.source.GetGroup(ctx, dataset, year, group)
	})
	if err != nil {
		return nil, eris.Wrap(err, "varcache: get group")
	}
	g := res.(*varsource.Group)

	for name, v := range g.Variables {
		c.remember(key{dataset, year, name}, &v)
		c.persist(ctx, dataset, year, &v)
	}
	return g, nil
}

// GetAllGroups lists the groups of a dataset, fetching once per dataset and year.
func (c *Cache) GetAllGroups(ctx context.Context, dataset string, year int) (*varsource.GroupList, error) {
	dk := datasetKey{dataset, year}

	c.mu.RLock()
	gl, ok := c.groups[dk]
	c.mu.RUnlock()
	if ok {
		return gl, nil
	}

	res, err, _ := c.sf.Do(fmt.Sprintf("groups|%s|%d", dataset, year), func() (any, error) {
		gl, err := c.source.GetAllGroups(ctx, dataset, year)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.groups[dk] = gl
		c.mu.Unlock()
		return gl, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "varcache: get all groups")
	}
	return res.(*varsource.GroupList), nil
}

// GetDatasets lists datasets, fetching once per year.
func (c *Cache) GetDatasets(ctx context.Context, year int) (*varsource.Catalog, error) {
	c.mu.RLock()
	cat, ok := c.catalogs[year]
	c.mu.RUnlock()
	if ok {
		return cat, nil
	}

	res, err, _ := c.sf.Do(fmt.Sprintf("datasets|%d", year), func() (any, error) {
		cat, err := c.source.GetDatasets(ctx, year)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.catalogs[year] = cat
		c.mu.Unlock()
		return cat, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "varcache: get datasets")
	}
	return res.(*varsource.Catalog), nil
}

// Len returns the number of variables held in memory.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vars)
}

// Clear drops everything held in memory. The persistent store is untouched.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vars = make(map[key]*varsource.Variable)
	c.groups = make(map[datasetKey]*varsource.GroupList)
	c.catalogs = make(map[int]*varsource.Catalog)
}

// Invalidate forgets a single variable held in memory.
func (c *Cache) Invalidate(dataset string, year int, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.vars, key{dataset, year, name})
}

func (c *Cache) remember(k key, v *varsource.Variable) {
	c.mu.Lock()
	c.vars[k] = v
	c.mu.Unlock()
}

func (c *Cache) persist(ctx context.Context, dataset string, year int, v *varsource.Variable) {
	if c.store == nil {
		return
	}
	if err := c.store.Put(ctx, dataset, year, v, c.ttl); err != nil {
		zap.L().Warn("varcache: store write failed", zap.String("variable", v.Name), zap.Error(err))
	}
}
