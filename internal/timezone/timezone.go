// Package timezone maps coordinates to IANA time zone names.
package timezone

import (
	"fmt"
	"sync"
	"time"

	"github.com/ringsaturn/tzf"
)

// Fallback is used when a position has no zone, e.g. open sea.
const Fallback = "UTC"

// Resolver returns the IANA zone name for a position.
type Resolver interface {
	Resolve(lat, lng float64) (string, error)
}

// ResolverFunc adapts a plain function to a Resolver.
type ResolverFunc func(lat, lng float64) (string, error)

func (f ResolverFunc) Resolve(lat, lng float64) (string, error) { return f(lat, lng) }

// Static always returns the same zone; used for overrides and tests.
type Static string

func (s Static) Resolve(float64, float64) (string, error) { return string(s), nil }

// PolygonResolver looks positions up in the tzf boundary data. The finder is
// built lazily because loading the polygons takes noticeable time on small
// boards.
type PolygonResolver struct {
	once   sync.Once
	finder tzf.F
	err    error
}

func NewPolygonResolver() *PolygonResolver {
	return &PolygonResolver{}
}

func (r *PolygonResolver) Resolve(lat, lng float64) (string, error) {
	r.once.Do(func() {
		r.finder, r.err = tzf.NewDefaultFinder()
	})
	if r.err != nil {
		return "", fmt.Errorf("loading timezone boundaries: %w", r.err)
	}
	name := r.finder.GetTimezoneName(lng, lat)
	if name == "" {
		return Fallback, nil
	}
	return name, nil
}

// Load resolves the zone for a position and loads it.
func Load(r Resolver, lat, lng float64) (string, *time.Location, error) {
	name, err := r.Resolve(lat, lng)
	if err != nil {
		return "", nil, err
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return "", nil, fmt.Errorf("loading zone %q: %w", name, err)
	}
	return name, loc, nil
}

type point struct{ lat, lng float64 }

// Cached memoizes another resolver. Settings updates rebuild the calculator,
// but the location rarely changes.
type Cached struct {
	next  Resolver
	mu    sync.Mutex
	names map[point]string
}

func NewCached(next Resolver) *Cached {
	return &Cached{next: next, names: make(map[point]string)}
}

func (c *Cached) Resolve(lat, lng float64) (string, error) {
	key := point{lat, lng}
	c.mu.Lock()
	defer c.mu.Unlock()
	if name, ok := c.names[key]; ok {
		return name, nil
	}
	name, err := c.next.Resolve(lat, lng)
	if err != nil {
		return "", err
	}
	c.names[key] = name
	return name, nil
}
