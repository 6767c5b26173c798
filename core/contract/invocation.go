package contract

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Invocation is an immutable record of one call against a contract
// operation. The argument list is copied on construction and on read, so an
// invocation can be logged, retried by a caller, or handed between
// goroutines without aliasing surprises. Every invocation carries a UUID
// for log and trace correlation.
type Invocation struct {
	id   string
	op   *Operation
	args []any
}

// NewInvocation records a call of op with args. The argument list length
// must equal the operation's business parameter count.
func NewInvocation(op *Operation, args ...any) (*Invocation, error) {
	if op == nil {
		return nil, ErrNilOperation
	}

	if len(args) != len(op.Params) {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d",
			ErrArgumentCount, op, len(op.Params), len(args))
	}

	cp := make([]any, len(args))
	copy(cp, args)

	return &Invocation{
		id:   uuid.NewString(),
		op:   op,
		args: cp,
	}, nil
}

// ID returns the invocation's correlation ID.
func (inv *Invocation) ID() string {
	return inv.id
}

// Operation returns the invoked operation descriptor.
func (inv *Invocation) Operation() *Operation {
	return inv.op
}

// Args returns a copy of the business argument list.
func (inv *Invocation) Args() []any {
	cp := make([]any, len(inv.args))
	copy(cp, inv.args)

	return cp
}

// Arg returns the i-th business argument.
func (inv *Invocation) Arg(i int) any {
	return inv.args[i]
}

func (inv *Invocation) String() string {
	var b strings.Builder

	b.WriteString(inv.op.String())
	b.WriteByte('(')
	for i, a := range inv.args {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%v", a)
	}
	b.WriteByte(')')

	return b.String()
}
