package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/strataline/dispatch/core/contract"
	"github.com/strataline/dispatch/core/future"
)

// Failure wraps an error the operation did not declare, naming the
// operation it escaped from.
type Failure struct {
	Op  string
	Err error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Op, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// translate screens an error leaving op. Declared failure kinds surface
// identity-preserved, cancellation and interruption pass through, and
// anything else is wrapped exactly once.
func translate(op *contract.Operation, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, future.ErrCancelled) || errors.Is(err, future.ErrInterrupted) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var failure *Failure
	if errors.As(err, &failure) {
		return err
	}

	if op.Errors.Matches(err) {
		return op.Errors.Extract(err)
	}

	return &Failure{Op: op.String(), Err: err}
}
