// Package api defines the vendor-neutral task types shared by every layer of
// the generation engine.
//
// Core types:
//   - [TaskRequest]: normalized description of one generation job
//   - [TaskResult]: normalized outcome with [TaskAsset] entries
//   - [ProgressSnapshot]: ephemeral lifecycle update pushed to subscribers
//   - [APIError]: typed error carrying a taxonomy [ErrorCode]
//
// Status transitions are forward only (queued, running, then succeeded or
// failed) and are checked by [ValidateTaskTransition].
package api
