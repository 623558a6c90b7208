// Package integration runs the portal stores, the freshness mirror and the
// full application against real PostgreSQL, MongoDB and Redis instances.
// These tests use real databases via testcontainers.
//
// Run with: go test -tags=integration ./tests/integration/...
package integration
