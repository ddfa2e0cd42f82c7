// Package backend is the CodeConnects API: a per-session feed cache over a
// relational store, served over HTTP and websockets.
//
// Binaries live under cmd/:
//
//   - cmd/server: the HTTP and websocket API
//   - cmd/migrate: schema migration and postgres constraints
//   - cmd/seed: fake data for development
//   - cmd/cli: command line client
//
// Most of the behaviour is in internal/feed, which assembles feed pages, caches
// them per viewer and patches the cache after each write.
package backend
