package contract

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/strataline/dispatch/core/types"
)

// BuiltinAuthorizationKind is the failure kind every operation recognizes
// without declaring it. It matches *types.AuthorizationError.
const BuiltinAuthorizationKind = "authorization"

// Kinds is a named vocabulary of failure kinds usable in throws tags. A
// kind maps a name to a matcher: either a sentinel error recognized through
// errors.Is, or a typed exemplar recognized by dynamic type.
type Kinds map[string]error

func builtinKinds() Kinds {
	return Kinds{
		BuiltinAuthorizationKind: &types.AuthorizationError{},
	}
}

// ErrorSet is the declared recognizable-failure set of an operation.
// Failures matched by the set are returned to callers identity-preserved;
// everything else gets wrapped as an undeclared failure.
type ErrorSet struct {
	kinds map[string]error
}

func newErrorSet() *ErrorSet {
	return &ErrorSet{kinds: make(map[string]error)}
}

func (s *ErrorSet) add(name string, matcher error) {
	s.kinds[name] = matcher
}

// Names returns the kind names of the set, sorted.
func (s *ErrorSet) Names() []string {
	names := make([]string, 0, len(s.kinds))
	for name := range s.kinds {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Equal reports whether both sets name the same kinds. Order and matcher
// identity are irrelevant, the names carry the contract.
func (s *ErrorSet) Equal(other *ErrorSet) bool {
	if s == nil || other == nil {
		return s == other
	}

	if len(s.kinds) != len(other.kinds) {
		return false
	}

	for name := range s.kinds {
		if _, ok := other.kinds[name]; !ok {
			return false
		}
	}

	return true
}

// Matches reports whether some kind of the set recognizes err or anything
// in its unwrap chain.
func (s *ErrorSet) Matches(err error) bool {
	for e := err; e != nil; e = errors.Unwrap(e) {
		for _, matcher := range s.kinds {
			if matchError(e, matcher) {
				return true
			}
		}
	}

	return false
}

// Extract returns the element of err's unwrap chain that a kind of the set
// recognizes, preferring the deepest one so that wrapping applied on the
// way out is undone and the caller sees the original failure value. When
// nothing matches directly, err is returned unchanged.
func (s *ErrorSet) Extract(err error) error {
	var found error

	for e := err; e != nil; e = errors.Unwrap(e) {
		for _, matcher := range s.kinds {
			if matchError(e, matcher) {
				found = e
			}
		}
	}

	if found == nil {
		return err
	}

	return found
}

func (s *ErrorSet) String() string {
	return "{" + strings.Join(s.Names(), ", ") + "}"
}

var sentinelType = reflect.TypeOf(errors.New(""))

// matchError recognizes err by sentinel identity or by dynamic type. A bare
// sentinel matches by identity only, its dynamic type says nothing.
func matchError(err, matcher error) bool {
	if errors.Is(err, matcher) {
		return true
	}

	t := reflect.TypeOf(matcher)
	if t == sentinelType {
		return false
	}

	return reflect.TypeOf(err) == t
}
