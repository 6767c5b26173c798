package contract

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/strataline/dispatch/core/future"
	"github.com/strataline/dispatch/core/stringsx"
)

const (
	tagCall     = "call"
	tagThrows   = "throws"
	tagProvide  = "provide"
	tagDelegate = "delegate"
	tagSince    = "since"
)

var (
	ctxType     = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType     = reflect.TypeOf((*error)(nil)).Elem()
	anyType     = reflect.TypeOf((*any)(nil)).Elem()
	stringType  = reflect.TypeOf("")
	boolType    = reflect.TypeOf(false)
	uint64Type  = reflect.TypeOf(uint64(0))
	outcomeType = reflect.TypeOf((*future.Outcome)(nil))
)

// Option configures Describe.
type Option func(opts *describeOptions) error

type describeOptions struct {
	registry *Registry
	kinds    Kinds
	name     string
}

// WithRegistry makes Describe record the contract and its delegation
// targets in reg instead of a fresh registry.
func WithRegistry(reg *Registry) Option {
	return func(opts *describeOptions) error {
		opts.registry = reg
		return nil
	}
}

// WithErrorKinds extends the failure-kind vocabulary available to throws
// tags. Built-in kinds stay available; same-name entries override them.
func WithErrorKinds(kinds Kinds) Option {
	return func(opts *describeOptions) error {
		if opts.kinds == nil {
			opts.kinds = make(Kinds, len(kinds))
		}
		for name, matcher := range kinds {
			opts.kinds[name] = matcher
		}
		return nil
	}
}

// WithName overrides the root contract's name, which defaults to the struct
// type name.
func WithName(name string) Option {
	return func(opts *describeOptions) error {
		opts.name = name
		return nil
	}
}

// Describe reflects over the prototype, a pointer to a struct of typed func
// fields, and produces its descriptor table. All classification and
// validation happens here, once; dispatch later is pure table lookup.
// Delegation targets are described recursively into the same registry.
//
// Fields matching the universal object contract (String func() string,
// Equal func(any) bool, Hash func() uint64) become identity operations.
// Fields tagged `provide` become provided values, fields tagged `delegate`
// become delegations, everything else is a call against the capability.
func Describe(prototype any, opts ...Option) (*Contract, error) {
	o := describeOptions{}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}

	kinds := builtinKinds()
	for name, matcher := range o.kinds {
		kinds[name] = matcher
	}

	t := reflect.TypeOf(prototype)
	if t == nil || t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w, got %T", ErrNotPointerToStruct, prototype)
	}

	s := &describeSession{registry: o.registry, kinds: kinds}

	c, err := s.describe(t.Elem(), o.name)
	if err != nil {
		s.rollback()
		return nil, err
	}

	return c, nil
}

// MustDescribe is Describe for static contracts; it panics on error.
func MustDescribe(prototype any, opts ...Option) *Contract {
	c, err := Describe(prototype, opts...)
	if err != nil {
		panic(err)
	}

	return c
}

// describeSession tracks the contracts added during one Describe call so a
// failure can roll them back and leave the registry untouched.
type describeSession struct {
	registry *Registry
	kinds    Kinds
	added    []reflect.Type
}

func (s *describeSession) rollback() {
	for _, t := range s.added {
		s.registry.remove(t)
	}
}

func (s *describeSession) describe(st reflect.Type, name string) (*Contract, error) {
	if c, ok := s.registry.Lookup(st); ok {
		return c, nil
	}

	if name == "" {
		name = st.Name()
	}

	c := &Contract{
		typ:    st,
		name:   name,
		byName: make(map[string]*Operation),
		byWire: make(map[string]*Operation),
	}

	// Register before descending so delegation cycles terminate.
	s.registry.add(c)
	s.added = append(s.added, st)

	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if f.PkgPath != "" { // unexported
			continue
		}

		if f.Type.Kind() != reflect.Func {
			return nil, fmt.Errorf("%w: field %s.%s is %s", ErrNotFunc, name, f.Name, f.Type)
		}

		op, err := s.describeField(c, f, i)
		if err != nil {
			return nil, err
		}

		if _, dup := c.byWire[op.WireName]; dup {
			return nil, fmt.Errorf("%w: %q in contract %s", ErrDuplicateWireName, op.WireName, name)
		}

		c.ops = append(c.ops, op)
		c.byName[op.Name] = op
		c.byWire[op.WireName] = op
	}

	return c, nil
}

func (s *describeSession) describeField(c *Contract, f reflect.StructField, index int) (*Operation, error) {
	fn := f.Type
	if fn.IsVariadic() {
		return nil, fmt.Errorf("%w: %s.%s", ErrVariadic, c.name, f.Name)
	}

	callTag, hasCall := f.Tag.Lookup(tagCall)
	provideTag, hasProvide := f.Tag.Lookup(tagProvide)
	_, hasDelegate := f.Tag.Lookup(tagDelegate)
	throwsTag, hasThrows := f.Tag.Lookup(tagThrows)
	sinceTag, hasSince := f.Tag.Lookup(tagSince)

	tagged := 0
	for _, has := range []bool{hasCall, hasProvide, hasDelegate} {
		if has {
			tagged++
		}
	}
	if tagged > 1 {
		return nil, fmt.Errorf("%w: %s.%s", ErrConflictingTags, c.name, f.Name)
	}

	if isIdentityField(f.Name, fn) {
		if tagged > 0 || hasThrows || hasSince {
			return nil, fmt.Errorf("%w: %s.%s", ErrIdentityTagged, c.name, f.Name)
		}

		return &Operation{
			Contract: c,
			Name:     f.Name,
			WireName: stringsx.LowerFirst(f.Name),
			Kind:     KindIdentity,
			Errors:   s.errorSet(),
			field:    index,
		}, nil
	}

	op := &Operation{
		Contract: c,
		Name:     f.Name,
		WireName: stringsx.LowerFirst(f.Name),
		field:    index,
	}
	if hasCall && callTag != "" {
		op.WireName = callTag
	}

	// Parameters: a leading context.Context is transport plumbing, the rest
	// is the business parameter list recorded in invocations.
	in := 0
	if fn.NumIn() > 0 && fn.In(0) == ctxType {
		op.HasContext = true
		in = 1
	}
	for ; in < fn.NumIn(); in++ {
		op.Params = append(op.Params, fn.In(in))
	}

	if err := describeReturns(op, fn); err != nil {
		return nil, fmt.Errorf("%w: %s.%s", err, c.name, f.Name)
	}

	switch {
	case hasProvide:
		if len(op.Params) != 0 || op.Returns == nil || op.Async {
			return nil, fmt.Errorf("%w: %s.%s %s", ErrProvidesSignature, c.name, f.Name, op.Signature())
		}
		if hasThrows || hasSince {
			return nil, fmt.Errorf("%w: %s.%s", ErrConflictingTags, c.name, f.Name)
		}
		op.Kind = KindProvides
		op.Qualifier = provideTag
		op.Errors = s.errorSet()

	case hasDelegate:
		if hasThrows {
			return nil, fmt.Errorf("%w: %s.%s", ErrConflictingTags, c.name, f.Name)
		}
		if err := s.describeDelegate(op, sinceTag, hasSince); err != nil {
			return nil, err
		}

	default:
		if hasSince {
			return nil, fmt.Errorf("%w: %s.%s", ErrConflictingTags, c.name, f.Name)
		}
		op.Kind = KindCall
		set, err := s.throwsSet(throwsTag, hasThrows)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s", err, c.name, f.Name)
		}
		op.Errors = set
	}

	return op, nil
}

// describeReturns fills Returns, ReturnsErr and Async from the func type's
// output list.
func describeReturns(op *Operation, fn reflect.Type) error {
	switch fn.NumOut() {
	case 0:
	case 1:
		out := fn.Out(0)
		if out == errType {
			op.ReturnsErr = true
		} else {
			op.Returns = out
		}
	case 2:
		if fn.Out(1) != errType {
			return ErrBadReturn
		}
		op.Returns = fn.Out(0)
		op.ReturnsErr = true
	default:
		return ErrBadReturn
	}

	if op.Returns == outcomeType {
		if op.ReturnsErr {
			return ErrAsyncReturn
		}
		op.Async = true
	}

	return nil
}

func (s *describeSession) describeDelegate(op *Operation, sinceTag string, hasSince bool) error {
	op.Kind = KindDelegate
	op.Errors = s.errorSet()

	target := op.Returns
	if target != nil && isOptionalType(target) {
		op.Optional = true
		target = optionalElem(target)
	}

	if target == nil || target.Kind() != reflect.Ptr || target.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: %s returns %s", ErrDelegateTarget, op, op.Returns)
	}
	op.Target = target.Elem()

	if hasSince {
		op.Since = sinceTag
	}

	_, err := s.describe(op.Target, "")
	return err
}

// throwsSet builds an operation's declared failure set from its throws tag.
// The built-in authorization kind is always included.
func (s *describeSession) throwsSet(tag string, present bool) (*ErrorSet, error) {
	set := s.errorSet()
	if !present {
		return set, nil
	}

	for _, raw := range strings.Split(tag, ",") {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}

		matcher, ok := s.kinds[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownErrorKind, name)
		}
		set.add(name, matcher)
	}

	return set, nil
}

func (s *describeSession) errorSet() *ErrorSet {
	set := newErrorSet()
	set.add(BuiltinAuthorizationKind, s.kinds[BuiltinAuthorizationKind])

	return set
}

// isIdentityField reports whether the field belongs to the universal object
// contract. The signature decides: a String field of another shape is an
// ordinary operation, a String func() string is intercepted even if the
// author meant otherwise.
func isIdentityField(name string, fn reflect.Type) bool {
	switch name {
	case "String":
		return fn.NumIn() == 0 && fn.NumOut() == 1 && fn.Out(0) == stringType
	case "Equal":
		return fn.NumIn() == 1 && fn.In(0) == anyType &&
			fn.NumOut() == 1 && fn.Out(0) == boolType
	case "Hash":
		return fn.NumIn() == 0 && fn.NumOut() == 1 && fn.Out(0) == uint64Type
	default:
		return false
	}
}

const optionalPkgPath = "github.com/strataline/dispatch/core/types"

func isOptionalType(t reflect.Type) bool {
	return t.Kind() == reflect.Struct &&
		t.PkgPath() == optionalPkgPath &&
		strings.HasPrefix(t.Name(), "Optional[")
}

func optionalElem(t reflect.Type) reflect.Type {
	f, ok := t.FieldByName("Value")
	if !ok {
		return nil
	}

	return f.Type
}
