// Package storage holds what the store implementations share: the sentinel
// errors. The interfaces live with their consumers, credentials.Store and
// credentials.CooldownStore in pkg/credentials and assets.Store in
// pkg/assets; memory and postgres implement all three.
package storage
