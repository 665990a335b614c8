package inference

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind partitions remote failures by the retry policy they demand.
type ErrorKind string

const (
	KindAuth    ErrorKind = "auth"
	KindQuota   ErrorKind = "quota"
	KindNetwork ErrorKind = "network"
	KindServer  ErrorKind = "server"
	KindUnknown ErrorKind = "unknown"
)

// ClassifiedError is the normalized failure shape surfaced by every client
// operation. Upstream callers branch only on Retryable and never reinterpret
// the classification.
type ClassifiedError struct {
	Kind       ErrorKind
	Message    string
	Retryable  bool
	RetryAfter time.Duration
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("inference %s error: %s", e.Kind, e.Message)
}

// Classify extracts the ClassifiedError from an error chain. The second return
// is false when the error did not originate from this client.
func Classify(err error) (*ClassifiedError, bool) {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified, true
	}
	return nil, false
}

// IsRetryable reports whether the error chain carries a retryable
// classification.
func IsRetryable(err error) bool {
	classified, ok := Classify(err)
	return ok && classified.Retryable
}
