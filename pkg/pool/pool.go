// Package pool defines the pluggable pool-adapter extension point. An
// adapter rewrites a canonical descriptor into a pooled-datasource
// descriptor (for example, pointing it at a bouncer or folding pool
// sizing options into the DSN). The core never branches on vendor
// identity; concrete adapters register themselves by name and are
// selected by the descriptor's "pool" extra field or by explicit caller
// choice.
package pool

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ekaya-inc/dbconn/pkg/descriptor"
)

// ErrUnknownAdapter indicates that no adapter is registered under the
// requested name.
var ErrUnknownAdapter = errors.New("unknown pool adapter")

// Adapter transforms a canonical descriptor into a pooled-datasource
// descriptor. Implementations must not mutate the input and must not
// perform I/O.
type Adapter interface {
	Transform(d descriptor.Descriptor) (descriptor.Descriptor, error)
}

// Noop is the default adapter: it returns the descriptor unchanged.
type Noop struct{}

// Transform implements Adapter.
func (Noop) Transform(d descriptor.Descriptor) (descriptor.Descriptor, error) {
	return d, nil
}

var _ Adapter = Noop{}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Adapter)
)

// Register makes an adapter selectable by name. Vendor adapter packages
// call this from init().
func Register(name string, a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = a
}

// Resolve returns the adapter registered under name.
func Resolve(name string) (Adapter, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	a, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (not compiled in)", ErrUnknownAdapter, name)
	}
	return a, nil
}

// Registered returns the names of all registered adapters, sorted.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
