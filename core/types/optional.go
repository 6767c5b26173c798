package types

// Optional carries a value that may be absent from the deployment the
// client is configured against. Fields are exported so facade binding can
// build instances reflectively; callers should treat them as read-only and
// go through the accessors.
type Optional[T any] struct {
	Value   T
	Present bool
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Present: true}
}

// None returns an absent Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Present
}

// Must returns the value and panics when it is absent.
func (o Optional[T]) Must() T {
	if !o.Present {
		panic("types: optional value is absent")
	}

	return o.Value
}

// Or returns the value when present and def otherwise.
func (o Optional[T]) Or(def T) T {
	if !o.Present {
		return def
	}

	return o.Value
}
