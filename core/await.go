package core

import (
	"context"
	"errors"

	"github.com/strataline/dispatch/core/contract"
	"github.com/strataline/dispatch/core/future"
)

// Await blocks on an asynchronous outcome under ctx and screens the
// result the way the synchronous form of op would.
func Await(ctx context.Context, out *future.Outcome, op *contract.Operation) (any, error) {
	if out == nil {
		return nil, &Failure{Op: op.String(), Err: errors.New("nil outcome")}
	}

	v, err := out.Wait(ctx)
	if err != nil {
		return nil, translate(op, err)
	}

	return v, nil
}
