// Package provider defines the vendor adapter contract. An adapter declares
// which capabilities it supports and translates normalized task requests to
// and from one vendor's wire format. The dispatcher only ever branches on
// capabilities, never on vendor identity.
package provider
