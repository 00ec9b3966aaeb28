package eventstream

import "errors"

var (
	// ErrNilEvent indicates a nil event payload was provided to a publisher.
	ErrNilEvent = errors.New("nil event")

	// ErrPublish wraps failures from the event stream backend.
	ErrPublish = errors.New("event publish failed")
)
