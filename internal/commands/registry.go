package commands

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Registry maps command names and aliases to commands.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]Command
	aliases map[string]string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:  make(map[string]Command),
		aliases: make(map[string]string),
	}
}

// Register adds c. Names and aliases share one namespace.
func (r *Registry) Register(c Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := append([]string{c.Name()}, c.Aliases()...)
	for _, n := range names {
		if r.taken(n) {
			return fmt.Errorf("command already registered: %s", n)
		}
	}
	r.byName[c.Name()] = c
	for _, a := range c.Aliases() {
		r.aliases[a] = c.Name()
	}
	return nil
}

func (r *Registry) taken(n string) bool {
	_, isName := r.byName[n]
	_, isAlias := r.aliases[n]
	return isName || isAlias
}

// Find resolves a name or alias.
func (r *Registry) Find(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if primary, ok := r.aliases[name]; ok {
		name = primary
	}
	c, ok := r.byName[name]
	return c, ok
}

// All returns each command once, ordered by name.
func (r *Registry) All() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Command, 0, len(r.byName))
	for _, n := range slices.Sorted(maps.Keys(r.byName)) {
		out = append(out, r.byName[n])
	}
	return out
}

// DefaultRegistry holds the commands registered by this package.
var DefaultRegistry = NewRegistry()

// Register adds c to DefaultRegistry and panics on a clash.
func Register(c Command) {
	if err := DefaultRegistry.Register(c); err != nil {
		panic(err)
	}
}
