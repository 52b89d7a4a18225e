package catalog

import "strings"

// Principal is a declared, unauthenticated identity. It is attributed at
// creation time and compared by string equality for ownership checks.
// This is trust-on-first-use: nothing verifies the declared value against
// any authority, only that the same value always resolves to the same
// principal. It is deliberately a distinct type from anything that could
// be mistaken for an authenticated identity.
type Principal string

// String returns the principal's stable string form
func (p Principal) String() string {
	return string(p)
}

// ResolvePrincipal derives a stable principal from the caller-supplied
// identifiers. A durable declared ID (membership/student number) wins
// over the ephemeral client-held token; with neither, there is no
// principal and ErrNoIdentity is returned.
func ResolvePrincipal(declaredID, ephemeralToken string) (Principal, error) {
	declaredID = strings.TrimSpace(declaredID)
	ephemeralToken = strings.TrimSpace(ephemeralToken)

	switch {
	case declaredID != "":
		return Principal("member:" + declaredID), nil
	case ephemeralToken != "":
		return Principal("guest:" + ephemeralToken), nil
	default:
		return "", ErrNoIdentity
	}
}
