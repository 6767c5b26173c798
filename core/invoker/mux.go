package invoker

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

var (
	ErrNoFactory         = errors.New("no invoker factory for contract")
	ErrFactoryRegistered = errors.New("invoker factory already registered")
	ErrNilFactory        = errors.New("nil invoker factory")
)

// Mux picks the invoker factory for a contract type, so different parts of
// an API tree can ride different transports. Contracts without a dedicated
// factory go to the fallback.
type Mux struct {
	mu        sync.RWMutex
	factories map[reflect.Type]Factory
	fallback  Factory
}

// NewMux returns a mux with no routes and no fallback.
func NewMux() *Mux {
	return &Mux{factories: make(map[reflect.Type]Factory)}
}

// Register routes the contract struct type t to f.
func (m *Mux) Register(t reflect.Type, f Factory) error {
	if f == nil {
		return fmt.Errorf("%w: %s", ErrNilFactory, t)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.factories[t]; ok {
		return fmt.Errorf("%w: %s", ErrFactoryRegistered, t)
	}
	m.factories[t] = f

	return nil
}

// RegisterFor routes the contract struct type T to f.
func RegisterFor[T any](m *Mux, f Factory) error {
	return m.Register(reflect.TypeOf((*T)(nil)).Elem(), f)
}

// SetFallback installs the factory used when no dedicated route matches.
func (m *Mux) SetFallback(f Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fallback = f
}

// FactoryFor returns the factory responsible for the contract struct type t.
func (m *Mux) FactoryFor(t reflect.Type) (Factory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if f, ok := m.factories[t]; ok {
		return f, nil
	}
	if m.fallback != nil {
		return m.fallback, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrNoFactory, t)
}
