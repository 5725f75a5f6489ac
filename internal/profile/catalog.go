package profile

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultStep is the set point spacing of the built-in alloy profiles.
const DefaultStep = 15 * time.Second

var ErrUnknownProfile = errors.New("unknown profile")

// Built-in alloy profiles, one target every DefaultStep.
var builtin = map[string][]float64{
	"Sn42Bi57Ag1": {
		35, 35, 40, 50, 50, 60, 80, 95, 110, 117,
		125, 135, 145, 157, 180, 180, 180, 180, 0,
	},
	"Sn63Pb37": {
		35, 35, 40, 60, 95, 100, 110, 120, 130, 140,
		150, 165, 180, 200, 215, 230, 235, 230, 180, 50,
		0,
	},
}

// Catalog is a named set of profiles safe for concurrent reads.
type Catalog struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

func NewCatalog() *Catalog {
	return &Catalog{profiles: make(map[string]*Profile)}
}

// DefaultCatalog returns a catalog holding the built-in alloy profiles.
func DefaultCatalog(step time.Duration) (*Catalog, error) {
	if step == 0 {
		step = DefaultStep
	}
	c := NewCatalog()
	for name, sp := range builtin {
		if err := c.Define(name, step, sp); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Define builds a profile and adds it, replacing any profile with the same name.
func (c *Catalog) Define(name string, step time.Duration, setpoints []float64) error {
	p, err := New(name, step, setpoints)
	if err != nil {
		return err
	}
	c.Add(p)
	return nil
}

func (c *Catalog) Add(p *Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profiles[p.Name()] = p
}

func (c *Catalog) Get(name string) (*Profile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return p, nil
}

// Names returns the profile names in lexical order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.profiles))
	for n := range c.profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
