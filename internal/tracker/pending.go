package tracker

import (
	"context"

	"golang.org/x/sync/errgroup"

	"roundtable/internal/forum"
	"roundtable/internal/logging"
)

// PendingReplies is the set of mention replies still being computed.
type PendingReplies struct {
	topicID  string
	fetcher  ReplyStatusFetcher
	opts     options
	ids      []string
	failures map[string]int
	epoch    uint64
	inflight bool
	stopped  bool
}

func NewPendingReplies(topicID string, fetcher ReplyStatusFetcher, opts ...Option) *PendingReplies {
	return &PendingReplies{
		topicID:  topicID,
		fetcher:  fetcher,
		opts:     buildOptions(opts),
		failures: map[string]int{},
		epoch:    1,
	}
}

// Track adds a reply id. Adding an id twice is a no-op.
func (p *PendingReplies) Track(replyID string) {
	if p.stopped || replyID == "" || p.Has(replyID) {
		return
	}
	p.ids = append(p.ids, replyID)
}

func (p *PendingReplies) Has(replyID string) bool {
	for _, id := range p.ids {
		if id == replyID {
			return true
		}
	}
	return false
}

func (p *PendingReplies) Len() int { return len(p.ids) }

// IDs returns the tracked ids in the order they were added.
func (p *PendingReplies) IDs() []string {
	return append([]string(nil), p.ids...)
}

func (p *PendingReplies) Epoch() uint64 { return p.epoch }

func (p *PendingReplies) Stopped() bool { return p.stopped }

// BeginCycle snapshots the set for one poll. It reports false, and nothing
// should be fetched, when the set is empty, the tracker is stopped, or the
// previous cycle has not been applied yet.
func (p *PendingReplies) BeginCycle() (*ReplyCycle, bool) {
	if p.stopped || p.inflight || len(p.ids) == 0 {
		return nil, false
	}
	p.inflight = true
	return &ReplyCycle{
		epoch:       p.epoch,
		topicID:     p.topicID,
		ids:         p.IDs(),
		fetcher:     p.fetcher,
		concurrency: p.opts.concurrency,
	}, true
}

// Apply folds one cycle's results into the set. It returns true when at least
// one reply reached a terminal status, so the caller reloads posts once per
// cycle no matter how many replies finished.
func (p *PendingReplies) Apply(result ReplyCycleResult) bool {
	if p.stopped || result.Epoch != p.epoch {
		return false
	}
	p.inflight = false

	refresh := false
	for _, outcome := range result.Outcomes {
		if !p.Has(outcome.ID) {
			continue
		}
		switch {
		case outcome.Err != nil:
			if forum.IsNotFound(outcome.Err) {
				p.opts.logger.Warn("pending reply vanished", "reply_id", outcome.ID)
				p.remove(outcome.ID)
				continue
			}
			p.failures[outcome.ID]++
			if p.failures[outcome.ID] >= p.opts.maxFailures {
				p.opts.logger.Warn("giving up on pending reply",
					"reply_id", outcome.ID, "failures", p.failures[outcome.ID], "error", outcome.Err)
				p.remove(outcome.ID)
			}
		case outcome.Status == forum.PostPending:
			delete(p.failures, outcome.ID)
		default:
			p.remove(outcome.ID)
			refresh = true
		}
	}
	return refresh
}

// Stop invalidates every outstanding cycle and tick.
func (p *PendingReplies) Stop() {
	p.stopped = true
	p.inflight = false
	p.epoch++
}

func (p *PendingReplies) remove(replyID string) {
	delete(p.failures, replyID)
	for i, id := range p.ids {
		if id == replyID {
			p.ids = append(p.ids[:i], p.ids[i+1:]...)
			return
		}
	}
}

// ReplyCycle is one poll over a snapshot of pending ids. It holds no
// reference to the tracker.
type ReplyCycle struct {
	epoch       uint64
	topicID     string
	ids         []string
	fetcher     ReplyStatusFetcher
	concurrency int
}

type ReplyOutcome struct {
	ID     string
	Status forum.PostStatus
	Err    error
}

type ReplyCycleResult struct {
	Epoch    uint64
	Outcomes []ReplyOutcome
}

func (c *ReplyCycle) Epoch() uint64 { return c.epoch }

func (c *ReplyCycle) IDs() []string { return append([]string(nil), c.ids...) }

// Run queries every id concurrently and returns once all have answered.
func (c *ReplyCycle) Run(ctx context.Context) ReplyCycleResult {
	ctx = logging.WithLogFields(ctx, logging.LogFields{TopicID: c.topicID, Component: "tracker.pending"})
	outcomes := make([]ReplyOutcome, len(c.ids))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, replyID := range c.ids {
		g.Go(func() error {
			post, err := c.fetcher.GetReplyStatus(ctx, c.topicID, replyID)
			outcomes[i] = ReplyOutcome{ID: replyID, Status: post.Status, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return ReplyCycleResult{Epoch: c.epoch, Outcomes: outcomes}
}
