// Package permission implements the per-request capability oracle the portal
// pipeline consults: given the acting user, may action X be performed on
// resource Y. Role assignments, role inheritance and resource grants are
// SQL-backed; the checker itself is a read-only request-scoped snapshot and
// is always passed explicitly, never resolved from ambient state.
package permission
