// Package tracker follows work the backend finishes out-of-band: agent
// replies triggered by mentions and the topic's discussion job.
//
// Trackers never do I/O while holding state. A tick asks the tracker for a
// cycle, which snapshots what to query; the cycle runs off the UI loop and
// its result is handed back through Apply. Every cycle is stamped with the
// tracker's epoch, and Apply drops results from an older epoch.
package tracker

import (
	"context"
	"log/slog"

	"roundtable/internal/forum"
)

// ReplyStatusFetcher reads the current state of a reply post, pending or not.
type ReplyStatusFetcher interface {
	GetReplyStatus(ctx context.Context, topicID, replyID string) (forum.Post, error)
}

// DiscussionStatusFetcher reads the current state of a topic's discussion job.
type DiscussionStatusFetcher interface {
	GetDiscussionStatus(ctx context.Context, topicID string) (forum.DiscussionStatus, error)
}

const (
	DefaultMaxFailures = 3
	defaultConcurrency = 4
)

type options struct {
	maxFailures int
	concurrency int
	logger      *slog.Logger
}

type Option func(*options)

// WithMaxFailures sets how many consecutive failed status queries a pending
// reply survives. 1 drops it on the first failure.
func WithMaxFailures(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxFailures = n
		}
	}
}

// WithConcurrency caps parallel status queries within one cycle.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		maxFailures: DefaultMaxFailures,
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
