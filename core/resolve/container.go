// Package resolve holds the component container provided values are served
// from. Bindings are declared during assembly; resolution afterwards is
// safe for concurrent use.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
)

var (
	// ErrNotBound is the cause of a resolution that found no binding.
	ErrNotBound = errors.New("no binding")

	// ErrAlreadyBound is returned when a key is bound twice.
	ErrAlreadyBound = errors.New("key already bound")

	// ErrNilBinding is returned when a binding is registered without a
	// value, supplier or constructor.
	ErrNilBinding = errors.New("nil binding")
)

// Key identifies a bindable component by type and optional qualifier.
type Key struct {
	Type      reflect.Type
	Qualifier string
}

func (k Key) String() string {
	if k.Qualifier == "" {
		return fmt.Sprint(k.Type)
	}

	return fmt.Sprintf("%s[%s]", k.Type, k.Qualifier)
}

// KeyOf returns the key for type T with the given qualifier.
func KeyOf[T any](qualifier string) Key {
	return Key{
		Type:      reflect.TypeOf((*T)(nil)).Elem(),
		Qualifier: qualifier,
	}
}

// Supplier produces a component instance. It runs on every resolution;
// memoization is the supplier's business.
type Supplier func() (any, error)

// Constructor builds a component just in time. It runs at most once per
// key; the container caches the result, including a failure.
type Constructor func(ctx context.Context, c *Container) (any, error)

// ResolutionError reports a failed resolution. The cause is preserved so
// callers can recognize what went wrong underneath, authorization failures
// in particular.
type ResolutionError struct {
	Key Key
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %s: %v", e.Key, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

type ctorEntry struct {
	once sync.Once
	fn   Constructor
	val  any
	err  error
}

// Container holds component bindings keyed by (type, qualifier).
type Container struct {
	mu        sync.RWMutex
	values    map[Key]any
	suppliers map[Key]Supplier
	ctors     map[Key]*ctorEntry
}

// New returns an empty container.
func New() *Container {
	return &Container{
		values:    make(map[Key]any),
		suppliers: make(map[Key]Supplier),
		ctors:     make(map[Key]*ctorEntry),
	}
}

// Bind registers an existing value for key.
func (c *Container) Bind(key Key, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkFree(key); err != nil {
		return err
	}
	c.values[key] = value

	return nil
}

// BindSupplier registers a supplier invoked on every resolution of key.
func (c *Container) BindSupplier(key Key, s Supplier) error {
	if s == nil {
		return fmt.Errorf("%w: %s", ErrNilBinding, key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkFree(key); err != nil {
		return err
	}
	c.suppliers[key] = s

	return nil
}

// BindConstructor registers a just-in-time constructor for key. The first
// resolution builds the component; everyone after that sees the same
// instance.
func (c *Container) BindConstructor(key Key, fn Constructor) error {
	if fn == nil {
		return fmt.Errorf("%w: %s", ErrNilBinding, key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkFree(key); err != nil {
		return err
	}
	c.ctors[key] = &ctorEntry{fn: fn}

	return nil
}

func (c *Container) checkFree(key Key) error {
	if _, ok := c.values[key]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyBound, key)
	}
	if _, ok := c.suppliers[key]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyBound, key)
	}
	if _, ok := c.ctors[key]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyBound, key)
	}

	return nil
}

// Resolve looks key up: an existing value binding wins, then a bound
// supplier, then a just-in-time constructor. Anything else is a
// *ResolutionError with ErrNotBound as cause.
func (c *Container) Resolve(ctx context.Context, key Key) (any, error) {
	c.mu.RLock()
	value, hasValue := c.values[key]
	supplier, hasSupplier := c.suppliers[key]
	entry, hasCtor := c.ctors[key]
	c.mu.RUnlock()

	switch {
	case hasValue:
		return value, nil

	case hasSupplier:
		v, err := supplier()
		if err != nil {
			return nil, &ResolutionError{Key: key, Err: err}
		}
		return v, nil

	case hasCtor:
		entry.once.Do(func() {
			entry.val, entry.err = entry.fn(ctx, c)
		})
		if entry.err != nil {
			return nil, &ResolutionError{Key: key, Err: entry.err}
		}
		return entry.val, nil

	default:
		return nil, &ResolutionError{Key: key, Err: ErrNotBound}
	}
}

// Value resolves key and asserts the result to T.
func Value[T any](ctx context.Context, c *Container, qualifier string) (T, error) {
	var zero T

	key := KeyOf[T](qualifier)
	v, err := c.Resolve(ctx, key)
	if err != nil {
		return zero, err
	}

	typed, ok := v.(T)
	if !ok {
		return zero, &ResolutionError{
			Key: key,
			Err: fmt.Errorf("bound value is %T", v),
		}
	}

	return typed, nil
}
