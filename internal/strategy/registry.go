package strategy

import (
	"fmt"
	"sort"
	"sync"
)

// registry is populated once at process start via init() and is
// effectively read-only afterwards; the lock only guards late Register
// calls from tests.
var (
	registry     = make(map[string]Plugin)
	registryLock sync.RWMutex
)

// Register adds a plugin to the registry.
// New strategies only need a Register call here; the orchestrator picks
// them up by id without changes.
func Register(p Plugin) {
	registryLock.Lock()
	defer registryLock.Unlock()
	registry[p.ID()] = p
}

// Get looks up a plugin by id
func Get(id string) (Plugin, error) {
	registryLock.RLock()
	p, ok := registry[id]
	registryLock.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown strategy: %s (available: %v)", id, List())
	}
	return p, nil
}

// List returns all registered plugin ids, sorted
func List() []string {
	registryLock.RLock()
	defer registryLock.RUnlock()

	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// All returns all registered plugins in id order
func All() []Plugin {
	registryLock.RLock()
	defer registryLock.RUnlock()

	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	plugins := make([]Plugin, 0, len(ids))
	for _, id := range ids {
		plugins = append(plugins, registry[id])
	}
	return plugins
}

func init() {
	Register(NewTrendPullback())
	Register(NewRangeFade())
	Register(NewBreakout())
}
