package scales

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/pointflow/pointflow/internal/models"
)

// DefaultScale is used when a session asks for a scale the catalog doesn't know.
const DefaultScale = "fibonacci"

// builtins keeps the order the scales are presented in.
var builtins = []models.Scale{
	{Name: "fibonacci", Values: []string{"0", "1", "2", "3", "5", "8", "13", "21", "?", "☕"}},
	{Name: "tshirt", Values: []string{"XS", "S", "M", "L", "XL", "XXL", "?", "☕"}},
	{Name: "powers", Values: []string{"0", "1", "2", "4", "8", "16", "32", "?", "☕"}},
}

// Catalog resolves scale names to their ordered values.
type Catalog struct {
	mu     sync.RWMutex
	scales map[string]models.Scale
	custom []string
}

// NewCatalog returns a catalog holding only the built-in scales.
func NewCatalog() *Catalog {
	c := &Catalog{scales: make(map[string]models.Scale)}
	for _, s := range builtins {
		c.scales[s.Name] = clone(s)
	}
	return c
}

// scaleFile is the on-disk layout of POINT_SCALES_PATH.
type scaleFile struct {
	Scales []models.Scale `yaml:"scales"`
}

// LoadFile reads custom scales from a YAML file and adds them to the
// catalog. A custom scale with a built-in name replaces the built-in.
func (c *Catalog) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read scales file %s: %w", path, err)
	}
	return c.Load(data)
}

// Load parses YAML scale definitions. Nothing is added if any entry is invalid.
func (c *Catalog) Load(data []byte) (int, error) {
	var f scaleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("parse yaml: %w", err)
	}

	for i, s := range f.Scales {
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			return 0, fmt.Errorf("scale %d: name is required", i)
		}
		if len(s.Values) == 0 {
			return 0, fmt.Errorf("scale %q: at least one value is required", s.Name)
		}
		for j, v := range s.Values {
			if strings.TrimSpace(v) == "" {
				return 0, fmt.Errorf("scale %q: value %d is empty", s.Name, j)
			}
		}
		f.Scales[i] = s
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range f.Scales {
		if _, exists := c.scales[s.Name]; !exists {
			c.custom = append(c.custom, s.Name)
		}
		c.scales[s.Name] = clone(s)
	}
	sort.Strings(c.custom)
	return len(f.Scales), nil
}

// Lookup returns the scale registered under name.
func (c *Catalog) Lookup(name string) (models.Scale, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.scales[name]
	if !ok {
		return models.Scale{}, false
	}
	return clone(s), true
}

// Resolve returns the named scale, falling back to DefaultScale.
// The bool reports whether name itself was found.
func (c *Catalog) Resolve(name string) (models.Scale, bool) {
	if s, ok := c.Lookup(name); ok {
		return s, true
	}
	s, _ := c.Lookup(DefaultScale)
	return s, false
}

// List returns built-in scales first, then custom scales by name.
func (c *Catalog) List() []models.Scale {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Scale, 0, len(c.scales))
	for _, b := range builtins {
		out = append(out, clone(c.scales[b.Name]))
	}
	for _, name := range c.custom {
		out = append(out, clone(c.scales[name]))
	}
	return out
}

func clone(s models.Scale) models.Scale {
	return models.Scale{Name: s.Name, Values: append([]string(nil), s.Values...)}
}
