// Package idgen wraps UUID generation so tests can substitute deterministic
// identifiers. It lives under `internal` since callers must treat the
// produced identifiers as opaque strings.
package idgen
