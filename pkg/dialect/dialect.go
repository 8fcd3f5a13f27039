// Package dialect maps canonical descriptors onto concrete database/sql
// drivers. Vendor subpackages register themselves from init() behind
// build tags, so binaries only link the drivers they compile in.
package dialect

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ekaya-inc/dbconn/pkg/descriptor"
)

// ErrUnknown indicates that no registered dialect matches the requested
// subprotocol or driver class.
var ErrUnknown = errors.New("unknown driver")

// Dialect describes one database flavor: how to name its database/sql
// driver, how to render a DSN from a canonical descriptor, and how to
// phrase session-level isolation configuration.
type Dialect struct {
	// Name is the subprotocol this dialect serves ("postgresql",
	// "sqlserver", ...). It is the registry key.
	Name string

	// DriverName is the database/sql driver registration to open.
	DriverName string

	DisplayName string
	Description string

	// DefaultPort is substituted when the descriptor leaves Port unset.
	DefaultPort int

	// DSN renders a driver-specific connection string.
	DSN func(d descriptor.Descriptor) (string, error)

	// IsolationStmt returns the vendor statement that pins the session
	// isolation level. It is never called with IsolationNone.
	IsolationStmt func(level descriptor.Isolation) (string, error)
}

// Info describes a registered dialect for discovery.
type Info struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Dialect)
)

// Register is called by each vendor subpackage's init() function.
// Thread-safe for concurrent init() calls.
func Register(d Dialect) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[d.Name] = d
}

// Resolve returns the dialect registered for a subprotocol.
func Resolve(subprotocol string) (Dialect, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	d, ok := registry[subprotocol]
	if !ok {
		return Dialect{}, fmt.Errorf("%w: subprotocol %q (not compiled in)", ErrUnknown, subprotocol)
	}
	return d, nil
}

// ResolveFor picks the dialect for a descriptor. An explicit DriverClass
// wins over subprotocol resolution.
func ResolveFor(desc descriptor.Descriptor) (Dialect, error) {
	if desc.DriverClass != "" {
		return resolveByDriver(desc.DriverClass)
	}
	return Resolve(desc.Subprotocol)
}

func resolveByDriver(driverName string) (Dialect, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, d := range registry {
		if d.DriverName == driverName {
			return d, nil
		}
	}
	return Dialect{}, fmt.Errorf("%w: driver class %q (not compiled in)", ErrUnknown, driverName)
}

// Registered returns info for all compiled-in dialects.
func Registered() []Info {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Info, 0, len(registry))
	for _, d := range registry {
		result = append(result, Info{
			Name:        d.Name,
			DisplayName: d.DisplayName,
			Description: d.Description,
		})
	}
	return result
}

// IsRegistered checks whether a subprotocol is available.
func IsRegistered(subprotocol string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[subprotocol]
	return ok
}
