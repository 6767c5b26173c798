// Package syncasync maps blocking contracts and their operations to
// non-blocking counterparts. The table is populated during assembly,
// validated eagerly, and read-only afterwards.
package syncasync

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/strataline/dispatch/core/contract"
)

var (
	// ErrNilContract is returned when a pair registration is missing a side.
	ErrNilContract = errors.New("nil contract")

	// ErrAlreadyRegistered is returned when a blocking contract is paired
	// twice.
	ErrAlreadyRegistered = errors.New("contract pair already registered")

	// ErrNoCounterpart is returned when the non-blocking contract declares
	// no operation matching a blocking one.
	ErrNoCounterpart = errors.New("no non-blocking counterpart")

	// ErrNotAsync is returned when a counterpart operation does not produce
	// an outcome.
	ErrNotAsync = errors.New("counterpart operation does not produce an outcome")

	// ErrSignatureMismatch is returned when paired operations disagree on
	// parameters.
	ErrSignatureMismatch = errors.New("operation signatures do not match")

	// ErrErrorSetMismatch is returned when paired operations declare
	// different failure sets.
	ErrErrorSetMismatch = errors.New("declared failure sets do not match")
)

// Table holds the contract pair map and the operation-level counterpart
// map. Lookups are safe for concurrent use.
type Table struct {
	mu          sync.RWMutex
	pairs       map[reflect.Type]reflect.Type
	asyncTypes  map[reflect.Type]bool
	counterpart map[*contract.Operation]*contract.Operation
	syncOf      map[*contract.Operation]*contract.Operation
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		pairs:       make(map[reflect.Type]reflect.Type),
		asyncTypes:  make(map[reflect.Type]bool),
		counterpart: make(map[*contract.Operation]*contract.Operation),
		syncOf:      make(map[*contract.Operation]*contract.Operation),
	}
}

// Register validates that asyncContract mirrors syncContract operation for
// operation and records the pair. Identity operations are skipped. Every
// remaining blocking operation must have a counterpart with the same name,
// identical business parameter types and an equal declared failure set;
// call operations must additionally be marked non-blocking on the async
// side. Any mismatch fails the whole registration with an error naming both
// signatures.
func (t *Table) Register(syncContract, asyncContract *contract.Contract) error {
	if syncContract == nil || asyncContract == nil {
		return ErrNilContract
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.pairs[syncContract.Type()]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, syncContract.Name())
	}

	found := make(map[*contract.Operation]*contract.Operation)
	for _, op := range syncContract.Operations() {
		if op.Kind == contract.KindIdentity {
			continue
		}

		counter, ok := asyncContract.Operation(op.Name)
		if !ok {
			return fmt.Errorf("%w: %s has no %s", ErrNoCounterpart, asyncContract.Name(), op)
		}

		if err := matchOperations(op, counter); err != nil {
			return err
		}

		found[op] = counter
	}

	t.pairs[syncContract.Type()] = asyncContract.Type()
	t.asyncTypes[asyncContract.Type()] = true
	for s, a := range found {
		t.counterpart[s] = a
		t.syncOf[a] = s
	}

	return nil
}

func matchOperations(syncOp, asyncOp *contract.Operation) error {
	if len(syncOp.Params) != len(asyncOp.Params) {
		return signatureMismatch(syncOp, asyncOp)
	}
	for i := range syncOp.Params {
		if syncOp.Params[i] != asyncOp.Params[i] {
			return signatureMismatch(syncOp, asyncOp)
		}
	}

	if syncOp.Kind == contract.KindCall && !asyncOp.Async {
		return fmt.Errorf("%w: %s", ErrNotAsync, asyncOp)
	}

	if !syncOp.Errors.Equal(asyncOp.Errors) {
		return fmt.Errorf("%w: %s declares %s, %s declares %s",
			ErrErrorSetMismatch, syncOp, syncOp.Errors, asyncOp, asyncOp.Errors)
	}

	return nil
}

func signatureMismatch(syncOp, asyncOp *contract.Operation) error {
	return fmt.Errorf("%w: %s has %s, %s has %s",
		ErrSignatureMismatch,
		syncOp.Contract.Name(), syncOp.Signature(),
		asyncOp.Contract.Name(), asyncOp.Signature())
}

// Counterpart returns the non-blocking counterpart of a blocking operation.
func (t *Table) Counterpart(op *contract.Operation) (*contract.Operation, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	counter, ok := t.counterpart[op]
	return counter, ok
}

// SyncCounterpart returns the blocking operation a non-blocking one mirrors.
// Invokers use it to recover the result type of an outcome.
func (t *Table) SyncCounterpart(op *contract.Operation) (*contract.Operation, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	syncOp, ok := t.syncOf[op]
	return syncOp, ok
}

// AsyncType returns the non-blocking contract type paired with the blocking
// type st.
func (t *Table) AsyncType(st reflect.Type) (reflect.Type, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	at, ok := t.pairs[st]
	return at, ok
}

// IsAsyncType reports whether at is a registered non-blocking contract
// type. A delegation target of such a type pairs with itself.
func (t *Table) IsAsyncType(at reflect.Type) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.asyncTypes[at]
}
