package domain

import "errors"

// Error taxonomy of the realtime layer. Write-permission failures and
// stale lookups are deliberately absent: both are silent no-ops on the
// wire, never error values.
var (
	// ErrAuthentication refuses a connection at handshake, before any
	// handler attaches. The wire message stays generic.
	ErrAuthentication = errors.New("authentication error")

	// ErrAuthorizationDenied refuses a join: valid identity, no
	// membership in the requested room. The caller closes the connection.
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrStoreUnavailable means the membership backend could not answer.
	// A join observing it fails closed, never falling back to a stale or
	// elevated role.
	ErrStoreUnavailable = errors.New("membership store unavailable")

	// ErrNoMembership is the store-level miss behind ErrAuthorizationDenied.
	// Never cached, so a just-accepted invite is visible immediately.
	ErrNoMembership = errors.New("no membership")
)
