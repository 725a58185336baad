// Package dispatcher feeds inbound turns through a bounded worker pool.
// Every worker consumes queued turns and drives the turn handler; a turn
// rejected because its session is busy is requeued with a delay, so bursts
// against one key serialize instead of failing.
package dispatcher
