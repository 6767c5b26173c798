package contract

import (
	"fmt"
	"reflect"
	"strings"
)

// Operation describes one declared func field of a contract. Instances are
// built by Describe and read-only afterwards.
type Operation struct {
	// Contract is the contract that declared the operation.
	Contract *Contract

	// Name is the struct field name, e.g. "ListNodes".
	Name string

	// WireName is the name used on the wire, the field name with its first
	// character lowered unless overridden by the call tag.
	WireName string

	// Kind tells the dispatcher which of the four behaviors the operation
	// selects.
	Kind Kind

	// Async marks operations whose result is delivered as *future.Outcome.
	Async bool

	// HasContext reports whether the field takes a leading context.Context.
	HasContext bool

	// Params holds the business parameter types, context stripped.
	Params []reflect.Type

	// Returns is the business return type, nil when the operation returns
	// nothing besides an optional error.
	Returns reflect.Type

	// ReturnsErr reports whether the field declares a trailing error return.
	ReturnsErr bool

	// Errors is the declared recognizable-failure set. Never nil; it always
	// contains at least the built-in authorization kind.
	Errors *ErrorSet

	// Qualifier disambiguates provided values of the same type.
	Qualifier string

	// Target is the contract struct type a delegation operation returns.
	Target reflect.Type

	// Optional marks delegation operations whose facade is wrapped in
	// types.Optional.
	Optional bool

	// Since is the API version that introduced the operation. The presence
	// policy consults it for optional delegation results.
	Since string

	field int // struct field index for the binder
}

// FieldIndex returns the struct field index the operation was declared at.
func (op *Operation) FieldIndex() int {
	return op.field
}

// String names the operation as Contract.Name.
func (op *Operation) String() string {
	if op.Contract == nil {
		return op.Name
	}

	return op.Contract.Name() + "." + op.Name
}

// Signature renders a readable form of the operation's business signature,
// used in configuration error messages.
func (op *Operation) Signature() string {
	var b strings.Builder

	b.WriteString(op.Name)
	b.WriteByte('(')
	for i, p := range op.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteByte(')')

	switch {
	case op.Returns != nil && op.ReturnsErr:
		fmt.Fprintf(&b, " (%s, error)", op.Returns)
	case op.Returns != nil:
		fmt.Fprintf(&b, " %s", op.Returns)
	case op.ReturnsErr:
		b.WriteString(" error")
	}

	return b.String()
}
