package abode

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Driver opens sessions against the Abode cloud.
type Driver interface {
	Open(ctx context.Context, opts Options) (Client, error)
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Register makes a driver available by name. It panics if the name is
// already taken or the driver is nil.
func Register(name string, driver Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()

	if driver == nil {
		panic("abode: Register driver is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("abode: Register called twice for driver " + name)
	}
	drivers[name] = driver
}

// Unregister removes a driver. Used by tests.
func Unregister(name string) {
	driversMu.Lock()
	defer driversMu.Unlock()
	delete(drivers, name)
}

// Drivers returns the sorted names of the registered drivers.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Open opens a session with the named driver.
func Open(ctx context.Context, name string, opts Options) (Client, error) {
	driversMu.RLock()
	driver, ok := drivers[name]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w %q (registered: %v)", ErrUnknownDriver, name, Drivers())
	}
	return driver.Open(ctx, opts)
}
