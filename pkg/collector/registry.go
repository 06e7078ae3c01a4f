package collector

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a collector from its settings.
type Factory func(s Settings) (Collector, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a collector kind available to New. Called from init of
// each collector package; registering a kind twice panics.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := factories[kind]; ok {
		panic(fmt.Sprintf("collector kind %q registered twice", kind))
	}
	factories[kind] = f
}

// New builds the collector registered for kind and hands it s.
func New(kind string, s Settings) (Collector, error) {
	mu.RLock()
	f, ok := factories[kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown collector kind %q (available: %v)", kind, Kinds())
	}
	c, err := f(s)
	if err != nil {
		return nil, fmt.Errorf("build %s collector: %w", kind, err)
	}
	return c, nil
}

// Kinds lists registered collector kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
