package idgen

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// NewFunc produces a globally unique identifier; override for deterministic
// tests.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new identifier as string.
func New() string { return NewFunc() }

// Stub replaces New with a sequential generator and returns a restore
// function.
func Stub(prefix string) func() {
	previous := NewFunc
	var seq int64
	NewFunc = func() string {
		return fmt.Sprintf("%s-%03d", prefix, atomic.AddInt64(&seq, 1))
	}
	return func() { NewFunc = previous }
}
