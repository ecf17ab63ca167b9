package queue

import (
	"errors"
	"fmt"
)

// ErrQueueNotFound is returned by operations addressed to a queue that does not exist.
var ErrQueueNotFound = errors.New("queue does not exist")

// ErrInvalidOutput is returned by Get when out is not a non-nil pointer. Nothing is
// received in that case.
var ErrInvalidOutput = errors.New("output must be a non-nil pointer")

// CorruptedMessageError is returned when a received body does not match the checksum
// reported by the provider. The message has already been removed from the queue.
type CorruptedMessageError struct {
	Queue     string
	MessageID string
	Expected  string
	Actual    string
}

func (e *CorruptedMessageError) Error() string {
	return fmt.Sprintf("corrupted message %q on queue %q: checksum %s does not match body checksum %s",
		e.MessageID, e.Queue, e.Expected, e.Actual)
}
