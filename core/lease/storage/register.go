package storage

import "fmt"

// Factory creates a new LeaseStorage
type Factory func(args map[string][]string) (LeaseStorage, error)

var registeredFactories = map[string]Factory{}

// Register registers a new storage factory
func Register(name string, factory Factory) error {
	if _, ok := registeredFactories[name]; ok {
		return ErrDriverRegistered
	}

	registeredFactories[name] = factory
	return nil
}

// MustRegister registers a new storage factory and panics on error
func MustRegister(name string, factory Factory) {
	if err := Register(name, factory); err != nil {
		panic(err)
	}
}

// Open opens a LeaseStorage using driver name
func Open(name string, args map[string][]string) (LeaseStorage, error) {
	factory, ok := registeredFactories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}

	return factory(args)
}
