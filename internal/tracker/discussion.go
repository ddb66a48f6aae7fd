package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"roundtable/internal/forum"
	"roundtable/internal/logging"
	"roundtable/internal/transcript"
)

// Phase is the client-side lifecycle of a discussion job.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

// JobSnapshot is what the view renders. Progress is only set while running;
// Result and Turns only once completed.
type JobSnapshot struct {
	Status    Phase
	Progress  *forum.DiscussionProgress
	Result    *forum.DiscussionResult
	Turns     []transcript.Turn
	LastError error
}

// DiscussionJob tracks one topic's discussion job.
//
// The only way from completed or failed back to running is Begin, which the
// caller invokes after a successful start request.
type DiscussionJob struct {
	topicID   string
	fetcher   DiscussionStatusFetcher
	opts      options
	state     JobSnapshot
	startedAt time.Time
	polling   bool
	inflight  bool
	epoch     uint64
	stopped   bool
}

func NewDiscussionJob(topicID string, fetcher DiscussionStatusFetcher, opts ...Option) *DiscussionJob {
	return &DiscussionJob{
		topicID: topicID,
		fetcher: fetcher,
		opts:    buildOptions(opts),
		state:   JobSnapshot{Status: PhaseIdle},
		epoch:   1,
	}
}

// Begin moves the job to running right after the backend accepted a start
// request, ahead of the first poll.
func (j *DiscussionJob) Begin(now time.Time) {
	if j.stopped {
		return
	}
	j.state = JobSnapshot{Status: PhaseRunning}
	j.startedAt = now
	j.startPolling()
}

// Sync reconciles with a freshly loaded topic. It reports true when polling
// was started by this call, in which case the caller arms a new tick loop.
func (j *DiscussionJob) Sync(topic forum.Topic, now time.Time) bool {
	if j.stopped {
		return false
	}
	switch topic.RoundtableStatus {
	case forum.JobRunning:
		switch j.state.Status {
		case PhaseIdle:
			j.state.Status = PhaseRunning
			j.startedAt = now
		case PhaseCompleted, PhaseFailed:
			return false
		}
		if !j.polling {
			j.startPolling()
			return true
		}
	case forum.JobCompleted:
		j.stopPolling()
		j.state.Status = PhaseCompleted
		j.state.Progress = nil
		j.state.LastError = nil
		if topic.RoundtableResult != nil {
			result := *topic.RoundtableResult
			j.state.Result = &result
			j.state.Turns = transcript.Parse(result.Transcript)
		}
	case forum.JobFailed:
		j.stopPolling()
		j.state.Status = PhaseFailed
		j.state.Progress = nil
		j.state.Result = nil
		j.state.Turns = nil
	}
	return false
}

// BeginPoll snapshots one status query. It reports false when the job is
// not being polled or a query is already out.
func (j *DiscussionJob) BeginPoll() (*JobCycle, bool) {
	if j.stopped || !j.polling || j.inflight {
		return nil, false
	}
	j.inflight = true
	return &JobCycle{epoch: j.epoch, topicID: j.topicID, fetcher: j.fetcher}, true
}

// JobUpdate tells the caller what changed. Reload asks for the canonical
// topic to be fetched again, since cost and summary are computed server-side.
type JobUpdate struct {
	Changed  bool
	Finished bool
	Reload   bool
	Err      error
}

func (j *DiscussionJob) Apply(result JobCycleResult, now time.Time) JobUpdate {
	if j.stopped || !j.polling || result.Epoch != j.epoch {
		return JobUpdate{}
	}
	j.inflight = false

	if result.Err != nil {
		j.state.LastError = result.Err
		j.opts.logger.Warn("discussion status poll failed", "topic_id", j.topicID, "error", result.Err)
		return JobUpdate{Changed: true, Err: result.Err}
	}
	j.state.LastError = nil

	switch result.Status.Status {
	case forum.JobRunning:
		if j.state.Status != PhaseRunning {
			j.state.Status = PhaseRunning
			j.startedAt = now
		}
		j.state.Progress = result.Status.Progress
		return JobUpdate{Changed: true}
	case forum.JobCompleted:
		j.stopPolling()
		j.state.Status = PhaseCompleted
		j.state.Progress = nil
		j.state.Result = result.Status.Result
		j.state.Turns = nil
		if result.Status.Result != nil {
			j.state.Turns = transcript.Parse(result.Status.Result.Transcript)
		}
		return JobUpdate{Changed: true, Finished: true, Reload: true}
	case forum.JobFailed:
		j.stopPolling()
		j.state.Status = PhaseFailed
		j.state.Progress = nil
		j.state.Result = nil
		j.state.Turns = nil
		return JobUpdate{Changed: true, Finished: true, Reload: true}
	default:
		// The backend has not flipped the job to running yet.
		return JobUpdate{}
	}
}

// Snapshot returns a copy of the current state.
func (j *DiscussionJob) Snapshot() JobSnapshot {
	snap := j.state
	if snap.Progress != nil {
		progress := *snap.Progress
		snap.Progress = &progress
	}
	snap.Turns = append([]transcript.Turn(nil), snap.Turns...)
	return snap
}

func (j *DiscussionJob) Status() Phase { return j.state.Status }

func (j *DiscussionJob) Polling() bool { return j.polling && !j.stopped }

func (j *DiscussionJob) Epoch() uint64 { return j.epoch }

// Elapsed is the local clock since running was first observed, in whole
// seconds. It is zero whenever the job is not running.
func (j *DiscussionJob) Elapsed(now time.Time) time.Duration {
	if j.state.Status != PhaseRunning || j.startedAt.IsZero() {
		return 0
	}
	elapsed := now.Sub(j.startedAt)
	if elapsed < 0 {
		return 0
	}
	return elapsed.Truncate(time.Second)
}

// ProgressLine summarizes progress for the status panel.
func (j *DiscussionJob) ProgressLine() string {
	progress := j.state.Progress
	if progress == nil || progress.TotalTurns == 0 {
		return "moderator is coordinating the experts..."
	}
	parts := make([]string, 0, 3)
	if speaker := strings.TrimSpace(progress.LatestSpeaker); speaker != "" {
		parts = append(parts, speaker+" finished speaking")
	} else {
		parts = append(parts, "waiting for experts")
	}
	parts = append(parts, fmt.Sprintf("%d/%d turns", progress.CompletedTurns, progress.TotalTurns))
	if progress.CurrentRound > 0 {
		parts = append(parts, fmt.Sprintf("round %d", progress.CurrentRound))
	}
	return strings.Join(parts, " · ")
}

// Percent is completed/total turns, clamped to 0-100.
func (j *DiscussionJob) Percent() int {
	progress := j.state.Progress
	if progress == nil || progress.TotalTurns <= 0 {
		return 0
	}
	pct := progress.CompletedTurns * 100 / progress.TotalTurns
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// Stop invalidates every outstanding poll and tick.
func (j *DiscussionJob) Stop() {
	j.stopped = true
	j.polling = false
	j.inflight = false
	j.epoch++
}

func (j *DiscussionJob) startPolling() {
	j.polling = true
	j.inflight = false
	j.epoch++
}

func (j *DiscussionJob) stopPolling() {
	if j.polling {
		j.epoch++
	}
	j.polling = false
	j.inflight = false
}

// JobCycle is one status query, detached from the tracker.
type JobCycle struct {
	epoch   uint64
	topicID string
	fetcher DiscussionStatusFetcher
}

type JobCycleResult struct {
	Epoch  uint64
	Status forum.DiscussionStatus
	Err    error
}

func (c *JobCycle) Epoch() uint64 { return c.epoch }

func (c *JobCycle) Run(ctx context.Context) JobCycleResult {
	ctx = logging.WithLogFields(ctx, logging.LogFields{TopicID: c.topicID, Component: "tracker.discussion"})
	status, err := c.fetcher.GetDiscussionStatus(ctx, c.topicID)
	return JobCycleResult{Epoch: c.epoch, Status: status, Err: err}
}
