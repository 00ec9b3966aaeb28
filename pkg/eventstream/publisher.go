package eventstream

import "context"

// Publisher publishes memory events to an event stream backend.
type Publisher interface {
	PublishCompaction(ctx context.Context, event *CompactionCompletedEvent) error
	Close() error
}
