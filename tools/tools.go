//go:build tools
// +build tools

// Package tools documents development tool dependencies.
// These tools are run through `go run` or installed globally via `go install` and
// are not tracked in go.mod since they are development tools, not runtime dependencies.
package tools

// Development tools:
//
// mockgen - regenerates internal/mocks from the core ports
//   Run: go generate ./internal/mocks
//   Version: go.uber.org/mock/mockgen@v0.6.0 (matches go.mod)
