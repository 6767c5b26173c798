package contract

// Kind classifies what calling an operation does. It is decided once, when
// the contract is described, never per call.
type Kind int

const (
	// KindCall sends the invocation to the bound capability.
	KindCall Kind = iota

	// KindProvides resolves a locally provided value from the component
	// container.
	KindProvides

	// KindDelegate builds a facade over a narrower contract.
	KindDelegate

	// KindIdentity answers the universal object operations locally.
	KindIdentity
)

func (k Kind) String() string {
	switch k {
	case KindCall:
		return "call"
	case KindProvides:
		return "provides"
	case KindDelegate:
		return "delegate"
	case KindIdentity:
		return "identity"
	default:
		return "unknown"
	}
}
