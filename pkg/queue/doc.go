// Package queue defines the message-queue abstraction used by workers.
//
// A Provider manages named queues and moves application values through them. Values are
// opaque to the abstraction: each backend decides how they are encoded on the wire.
// Queues are addressed by their logical name; backends translate names into their own
// locators.
//
// An absent queue is a normal outcome, not a failure. QueueExists reports it as false and
// operations that address a queue return ErrQueueNotFound. Every other backend failure is
// returned as-is, wrapped with context; providers do not retry.
package queue
