package sqs

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
)

// Error codes SQS uses for a missing queue. The query protocol reports the first,
// the JSON protocol the second.
const (
	errCodeNonExistentQueue  = "AWS.SimpleQueueService.NonExistentQueue"
	errCodeQueueDoesNotExist = "QueueDoesNotExist"
)

// IsQueueNotFound reports whether err is the service telling us the queue does not exist.
func IsQueueNotFound(err error) bool {
	if err == nil {
		return false
	}

	var notExist *types.QueueDoesNotExist
	if errors.As(err, &notExist) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case errCodeNonExistentQueue, errCodeQueueDoesNotExist:
			return true
		}
	}
	return false
}

// ConfigurationError is returned when a provider cannot be constructed.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err == nil {
		return "invalid sqs provider configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid sqs provider configuration: %s: %v", e.Reason, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
