package core

import "errors"

var (
	// ErrNoInvoker is returned when a network-bound operation runs on a
	// contract that was assembled without an invoker.
	ErrNoInvoker = errors.New("contract has no invoker")

	// ErrNoAsyncCounterpart is returned when a per-pair factory needs the
	// asynchronous side of a contract and none was registered.
	ErrNoAsyncCounterpart = errors.New("no async counterpart registered")

	// ErrUnknownOperation is returned by Client.Call for a name the root
	// contract does not declare.
	ErrUnknownOperation = errors.New("operation not found")

	// ErrUnknownContract is returned when a delegation target was never
	// described in the client's registry.
	ErrUnknownContract = errors.New("contract is not described")

	// ErrFacadeType is returned by FacadeOf when the root facade is not
	// of the requested type.
	ErrFacadeType = errors.New("facade type mismatch")
)
