// Package mocks provides generated mock implementations for testing the
// session lifecycle.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks
// for the auth port interfaces. Hand-written lightweight doubles live in the
// auth subpackage; prefer those for simple tests and these when a test needs
// call-ordering or argument expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
package mocks

// Generate mocks for the auth ports: IdentityProvider, ProfileStore,
// MFAVerifier, StorageBackend.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=ports_mock.go github.com/helmgate/sessiond/internal/ports IdentityProvider,ProfileStore,MFAVerifier,StorageBackend
