package queue

// queueFullError signals a pending channel at capacity for 429 mapping.
type queueFullError struct{ modelID string }

func (e queueFullError) Error() string { return "queue full: " + e.modelID }

// IsQueueFull reports whether err indicates backpressure (return 429).
func IsQueueFull(err error) bool {
	_, ok := err.(queueFullError)
	return ok
}

// queueClosedError signals a submission against a closed queue or manager.
type queueClosedError struct{ modelID string }

func (e queueClosedError) Error() string { return "queue closed: " + e.modelID }

// IsQueueClosed reports whether err indicates a closed queue.
func IsQueueClosed(err error) bool {
	_, ok := err.(queueClosedError)
	return ok
}

// invalidSubmitError signals a submission rejected before enqueueing.
type invalidSubmitError struct{ reason string }

func (e invalidSubmitError) Error() string { return "invalid submission: " + e.reason }

// ErrInvalidSubmit constructs an invalidSubmitError.
func ErrInvalidSubmit(reason string) error { return invalidSubmitError{reason: reason} }

// IsInvalidSubmit reports whether err indicates a rejected submission.
func IsInvalidSubmit(err error) bool {
	_, ok := err.(invalidSubmitError)
	return ok
}
