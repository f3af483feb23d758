// Package auth resolves the calling user for every task request.
//
// Authenticators vote Yes (identity found), No (credentials invalid) or
// Abstain (credentials of another kind). The chain stops on the first
// non-abstaining vote and falls back to a default decision. The resulting
// Identity.Subject is the user id that credentials, progress streams and
// assets are scoped to.
package auth
