// Package organizations is the tenant and access-control core: the
// organization registry, the membership ledger, the seeded role catalog,
// and the policy engine that decides who may act on what.
//
// Authorization is always evaluated against a freshly loaded active
// membership in the target organization. Invariants guarded here:
//   - at most one membership per (user, organization) pair
//   - an active organization always retains at least one active owner
//   - deactivation revokes access immediately but never deletes history
package organizations
