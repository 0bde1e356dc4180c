package config

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	// ErrSectionExists is returned when a section name is registered twice.
	ErrSectionExists = errors.New("config section already registered")

	// ErrRegistryFrozen is returned when registering after Freeze.
	ErrRegistryFrozen = errors.New("config registry is frozen")
)

// Registry holds named configuration sections and resolves dotted paths
// such as "app.logger.level" against them. Lookups are case-insensitive.
type Registry struct {
	mu       sync.RWMutex
	v        *viper.Viper
	sections map[string]any
	frozen   bool
}

// NewRegistry creates an empty, unfrozen registry.
func NewRegistry() *Registry {
	v := viper.New()
	v.SetConfigType("yaml")

	return &Registry{
		v:        v,
		sections: make(map[string]any, 8),
	}
}

// Register adds a section under name. The section is serialized through its
// yaml tags, which become the keys of the dotted paths.
func (r *Registry) Register(name string, section any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("%w: cannot register %q", ErrRegistryFrozen, name)
	}

	if _, exists := r.sections[name]; exists {
		return fmt.Errorf("%w: %q", ErrSectionExists, name)
	}

	data, err := yaml.Marshal(map[string]any{name: section})
	if err != nil {
		return fmt.Errorf("encoding section %q: %w", name, err)
	}

	if err := r.v.MergeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("merging section %q: %w", name, err)
	}

	r.sections[name] = section

	return nil
}

// Freeze prevents any further registration.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frozen = true
}

// Get returns the value at path, or nil when nothing was registered there.
func (r *Registry) Get(path string) any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.v.IsSet(path) {
		return nil
	}

	return r.v.Get(path)
}

// IsSet reports whether path resolves to a registered value.
func (r *Registry) IsSet(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.v.IsSet(path)
}

// Sections returns the registered section names in sorted order.
func (r *Registry) Sections() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sections))
	for name := range r.sections {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Section returns the typed section registered under name.
func Section[T any](r *Registry, name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	section, ok := r.sections[name].(T)

	return section, ok
}

// newSectionRegistry registers every section of cfg and freezes the result.
func newSectionRegistry(cfg *Config) (*Registry, error) {
	r := NewRegistry()

	sections := []struct {
		name  string
		value any
	}{
		{SectionApp, cfg.App},
		{SectionSwagger, cfg.Swagger},
		{SectionThrottle, cfg.Throttle},
		{SectionHTTP, cfg.HTTP},
		{SectionMetrics, cfg.Metrics},
	}

	for _, s := range sections {
		if err := r.Register(s.name, s.value); err != nil {
			return nil, err
		}
	}

	r.Freeze()

	return r, nil
}
