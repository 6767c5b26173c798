package contract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func diskGetOp(t *testing.T) *Operation {
	t.Helper()

	c, err := Describe(&TestDiskAPI{}, WithErrorKinds(testKinds()))
	require.NoError(t, err)

	op, ok := c.Operation("Get")
	require.True(t, ok)

	return op
}

func TestNewInvocation(t *testing.T) {
	op := diskGetOp(t)

	inv, err := NewInvocation(op, "disk-1")
	require.NoError(t, err)
	require.Equal(t, op, inv.Operation())
	require.Equal(t, []any{"disk-1"}, inv.Args())
	require.NotEmpty(t, inv.ID())
	require.Equal(t, "TestDiskAPI.Get(disk-1)", inv.String())

	other, err := NewInvocation(op, "disk-2")
	require.NoError(t, err)
	require.NotEqual(t, inv.ID(), other.ID())
}

func TestNewInvocationArgumentCount(t *testing.T) {
	op := diskGetOp(t)

	_, err := NewInvocation(op)
	require.ErrorIs(t, err, ErrArgumentCount)

	_, err = NewInvocation(op, "disk-1", "extra")
	require.ErrorIs(t, err, ErrArgumentCount)

	_, err = NewInvocation(nil)
	require.ErrorIs(t, err, ErrNilOperation)
}

func TestInvocationImmutability(t *testing.T) {
	op := diskGetOp(t)

	args := []any{"disk-1"}
	inv, err := NewInvocation(op, args...)
	require.NoError(t, err)

	// Mutating the source slice after construction changes nothing.
	args[0] = "mutated"
	require.Equal(t, "disk-1", inv.Arg(0))

	// Mutating a returned copy changes nothing either.
	got := inv.Args()
	got[0] = "mutated"
	require.Equal(t, "disk-1", inv.Arg(0))
}

func TestInvocationContextNotRecorded(t *testing.T) {
	// The leading context parameter is transport plumbing, not a business
	// argument: the record is built from business arguments only.
	op := diskGetOp(t)
	require.True(t, op.HasContext)

	inv, err := NewInvocation(op, "disk-1")
	require.NoError(t, err)
	require.Len(t, inv.Args(), 1)
}
