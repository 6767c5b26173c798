package contract

import "errors"

var (
	// ErrNotPointerToStruct is returned when a prototype is not a non-nil
	// pointer to a struct of func fields.
	ErrNotPointerToStruct = errors.New("contract prototype must be a pointer to a struct")

	// ErrNotFunc is returned when an exported contract field is not a func.
	ErrNotFunc = errors.New("contract field must be a func")

	// ErrVariadic is returned for variadic operation fields.
	ErrVariadic = errors.New("variadic operations are not supported")

	// ErrConflictingTags is returned when a field combines tags that select
	// different behaviors.
	ErrConflictingTags = errors.New("conflicting contract tags")

	// ErrIdentityTagged is returned when a field matching the universal
	// object contract carries dispatch tags.
	ErrIdentityTagged = errors.New("universal object operation cannot carry contract tags")

	// ErrUnknownErrorKind is returned when a throws tag names a kind missing
	// from the vocabulary.
	ErrUnknownErrorKind = errors.New("unknown declared failure kind")

	// ErrDuplicateWireName is returned when two operations of one contract
	// share a wire name.
	ErrDuplicateWireName = errors.New("duplicate wire name")

	// ErrBadReturn is returned when a field's return list is not one of
	// (), (error), (T), (T, error).
	ErrBadReturn = errors.New("unsupported return signature")

	// ErrAsyncReturn is returned when a non-blocking operation declares
	// returns besides the single outcome.
	ErrAsyncReturn = errors.New("non-blocking operation must return a single *future.Outcome")

	// ErrProvidesSignature is returned when a provides field takes business
	// parameters or returns no value.
	ErrProvidesSignature = errors.New("provides operation must take no parameters and return a value")

	// ErrDelegateTarget is returned when a delegation field does not return
	// a pointer to a contract struct.
	ErrDelegateTarget = errors.New("delegation target must be a pointer to a contract struct")

	// ErrNilOperation is returned when an invocation is built without an
	// operation.
	ErrNilOperation = errors.New("nil operation")

	// ErrArgumentCount is returned when an invocation's argument list does
	// not match the operation's parameter count.
	ErrArgumentCount = errors.New("argument count mismatch")
)
