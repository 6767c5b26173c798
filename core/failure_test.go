package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strataline/dispatch/core/contract"
	"github.com/strataline/dispatch/core/future"
	"github.com/strataline/dispatch/core/types"
)

func testDiskOps(t *testing.T) (attach, status *contract.Operation) {
	t.Helper()

	c, err := contract.Describe(&TestDiskAPI{}, contract.WithErrorKinds(contract.Kinds{"notfound": errTestNotFound}))
	require.NoError(t, err)

	a, ok := c.Operation("Attach")
	require.True(t, ok)
	s, ok := c.Operation("Status")
	require.True(t, ok)

	return a, s
}

func TestTranslateNil(t *testing.T) {
	attach, _ := testDiskOps(t)
	require.NoError(t, translate(attach, nil))
}

func TestTranslateDeclared(t *testing.T) {
	attach, _ := testDiskOps(t)

	require.Equal(t, errTestNotFound, translate(attach, errTestNotFound))
	require.Equal(t, errTestNotFound, translate(attach, fmt.Errorf("looking up: %w", errTestNotFound)))
}

func TestTranslateAuthorization(t *testing.T) {
	_, status := testDiskOps(t)

	denied := &types.AuthorizationError{Op: "Status", Reason: "expired token"}
	require.Same(t, denied, translate(status, fmt.Errorf("transport: %w", denied)))
}

func TestTranslateUndeclared(t *testing.T) {
	_, status := testDiskOps(t)

	cause := errors.New("connection reset")
	err := translate(status, cause)

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, "TestDiskAPI.Status", failure.Op)
	require.Same(t, cause, failure.Err)
	require.EqualError(t, err, "TestDiskAPI.Status: connection reset")
	require.ErrorIs(t, err, cause)
}

func TestTranslateFailureOnce(t *testing.T) {
	_, status := testDiskOps(t)

	inner := translate(status, errors.New("boom"))
	require.Same(t, inner, translate(status, inner))

	// A failure crossing another dispatcher is not wrapped again.
	wrapped := fmt.Errorf("retrying: %w", inner)
	require.Same(t, wrapped, translate(status, wrapped))
}

func TestTranslateCancellation(t *testing.T) {
	_, status := testDiskOps(t)

	for _, err := range []error{
		context.Canceled,
		fmt.Errorf("sending: %w", context.Canceled),
		context.DeadlineExceeded,
		future.ErrCancelled,
		&future.InterruptedError{Cause: context.DeadlineExceeded},
	} {
		got := translate(status, err)
		require.Equal(t, err, got)

		var failure *Failure
		require.False(t, errors.As(got, &failure))
	}
}
