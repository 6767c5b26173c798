package core

import "github.com/strataline/dispatch/core/contract"

// PresencePolicy decides whether an optional delegation target is
// available in the deployment the client talks to.
type PresencePolicy func(op *contract.Operation) (bool, error)

// AlwaysPresent treats every optional target as available.
func AlwaysPresent() PresencePolicy {
	return func(*contract.Operation) (bool, error) {
		return true, nil
	}
}

// PresentSince gates optional targets on the negotiated API version:
// a target is present when apiVersion is at least the operation's
// Since marker. Operations without a marker, and an empty apiVersion,
// are always present.
func PresentSince(apiVersion string) PresencePolicy {
	return func(op *contract.Operation) (bool, error) {
		if op.Since == "" || apiVersion == "" {
			return true, nil
		}
		return apiVersion >= op.Since, nil
	}
}
