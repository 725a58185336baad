// Package messaging defines the queue abstraction carrying inbound turns and
// progress events between services. Implementations must deliver a message to
// exactly one consumer; redelivery happens only through Nack.
package messaging

import (
	"context"
)

// Vendor names a queue implementation.
type Vendor string

const (
	// VendorMemory is the in-process channel backed queue.
	VendorMemory Vendor = "memory"
	// VendorFs is the afs backed spool queue.
	VendorFs Vendor = "fs"
)

// Queue is an abstract message queue for any payload type.
type Queue[T any] interface {
	// Publish adds a new message with payload to the queue
	Publish(ctx context.Context, t *T) error

	// Consume retrieves a single message from the queue
	Consume(ctx context.Context) (Message[T], error)
}

// Message is a single delivery retrieved from a queue.
type Message[T any] interface {
	// T returns the payload of this message
	T() *T

	// Ack acknowledges successful processing of this message
	Ack() error

	// Nack reports failed processing; the queue may redeliver or dead-letter
	Nack(err error) error
}
