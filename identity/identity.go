// Package identity tracks the wallet session and resolves the set of ledger
// accounts the connected principal can act through: the primary account plus
// any delegated sub-accounts.
package identity

import "momentswap/chain"

// LoginState is tri-state: the session starts out unknown until the wallet
// reports either way.
type LoginState int

const (
	LoginUnknown LoginState = iota
	LoggedOut
	LoggedIn
)

func (s LoginState) String() string {
	switch s {
	case LoggedOut:
		return "logged_out"
	case LoggedIn:
		return "logged_in"
	default:
		return "unknown"
	}
}

// Identity is the externally-authenticated principal. It is the sole root of
// the account graph; everything else is derived from it.
type Identity struct {
	State          LoginState
	PrimaryAddress chain.Address
}

// Role classifies a resolved account.
type Role string

const (
	RolePrimary   Role = "primary"
	RoleDelegated Role = "delegated"
)

// ResolvedAccount is one account the identity controls.
type ResolvedAccount struct {
	Address chain.Address
	Role    Role
}
