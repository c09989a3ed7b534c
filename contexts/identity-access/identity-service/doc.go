// Package identity is the account store and authentication core: user
// registration, credential verification, token issuance and the principal
// resolution used by the HTTP layer.
//
// Users are deactivated, never deleted. A user referenced as an
// organization creator cannot be deactivated by an administrator until the
// reference is gone.
package identity
