package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"roundtable/internal/forum"
)

type fakeJob struct {
	status forum.DiscussionStatus
	err    error
	calls  int
}

func (f *fakeJob) GetDiscussionStatus(_ context.Context, _ string) (forum.DiscussionStatus, error) {
	f.calls++
	return f.status, f.err
}

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func poll(t *testing.T, j *DiscussionJob, now time.Time) JobUpdate {
	t.Helper()
	cycle, ok := j.BeginPoll()
	if !ok {
		t.Fatalf("expected a poll to start")
	}
	return j.Apply(cycle.Run(context.Background()), now)
}

func completedStatus(history string) forum.DiscussionStatus {
	cost := 0.0123
	return forum.DiscussionStatus{
		Status: forum.JobCompleted,
		Result: &forum.DiscussionResult{Transcript: history, Summary: "done", TurnCount: 2, CostUSD: &cost},
	}
}

func TestDiscussionJobIdleDoesNotPoll(t *testing.T) {
	fetcher := &fakeJob{}
	j := NewDiscussionJob("topic-1", fetcher)
	if j.Status() != PhaseIdle {
		t.Fatalf("expected idle, got %s", j.Status())
	}
	if _, ok := j.BeginPoll(); ok {
		t.Fatalf("expected no poll while idle")
	}
}

func TestDiscussionJobLifecycle(t *testing.T) {
	fetcher := &fakeJob{status: forum.DiscussionStatus{Status: forum.JobRunning}}
	j := NewDiscussionJob("topic-1", fetcher)
	j.Begin(t0)
	if j.Status() != PhaseRunning || !j.Polling() {
		t.Fatalf("expected optimistic running with polling")
	}

	update := poll(t, j, t0.Add(2*time.Second))
	if !update.Changed || update.Finished {
		t.Fatalf("expected running update, got %+v", update)
	}
	if got := j.ProgressLine(); got != "moderator is coordinating the experts..." {
		t.Fatalf("expected coordinating line without progress, got %q", got)
	}

	fetcher.status = forum.DiscussionStatus{
		Status:   forum.JobRunning,
		Progress: &forum.DiscussionProgress{CompletedTurns: 3, TotalTurns: 12, CurrentRound: 2, LatestSpeaker: "Physicist"},
	}
	poll(t, j, t0.Add(4*time.Second))
	if got := j.ProgressLine(); got != "Physicist finished speaking · 3/12 turns · round 2" {
		t.Fatalf("unexpected progress line %q", got)
	}
	if j.Percent() != 25 {
		t.Fatalf("expected 25%%, got %d", j.Percent())
	}

	fetcher.status = completedStatus("## Round 1 - Alice\nHello\n\n---\n## Round 2 - Bob\nHi")
	update = poll(t, j, t0.Add(6*time.Second))
	if !update.Finished || !update.Reload {
		t.Fatalf("expected finished update asking for reload, got %+v", update)
	}
	snap := j.Snapshot()
	if snap.Status != PhaseCompleted || snap.Progress != nil {
		t.Fatalf("expected completed without progress, got %+v", snap)
	}
	if len(snap.Turns) != 2 || snap.Turns[1].Speaker != "Bob" {
		t.Fatalf("expected parsed turns, got %+v", snap.Turns)
	}
	if _, ok := j.BeginPoll(); ok {
		t.Fatalf("expected polling to stop after completion")
	}
	if j.Elapsed(t0.Add(10*time.Second)) != 0 {
		t.Fatalf("expected elapsed reset once not running")
	}
}

func TestDiscussionJobFailure(t *testing.T) {
	fetcher := &fakeJob{status: forum.DiscussionStatus{Status: forum.JobFailed}}
	j := NewDiscussionJob("topic-1", fetcher)
	j.Begin(t0)
	update := poll(t, j, t0)
	if !update.Finished || !update.Reload || j.Status() != PhaseFailed {
		t.Fatalf("expected failed state with reload, got %+v status=%s", update, j.Status())
	}
	if j.Polling() {
		t.Fatalf("expected polling stopped after failure")
	}
}

func TestDiscussionJobPollErrorKeepsPolling(t *testing.T) {
	fetcher := &fakeJob{err: errors.New("connection refused")}
	j := NewDiscussionJob("topic-1", fetcher)
	j.Begin(t0)
	update := poll(t, j, t0)
	if update.Err == nil || update.Finished {
		t.Fatalf("expected error update, got %+v", update)
	}
	if j.Snapshot().LastError == nil {
		t.Fatalf("expected last error recorded")
	}
	if j.Status() != PhaseRunning {
		t.Fatalf("expected still running, got %s", j.Status())
	}
	fetcher.err = nil
	fetcher.status = forum.DiscussionStatus{Status: forum.JobRunning}
	poll(t, j, t0.Add(2*time.Second))
	if j.Snapshot().LastError != nil {
		t.Fatalf("expected error cleared by a good poll")
	}
}

func TestDiscussionJobPendingStatusKeepsWaiting(t *testing.T) {
	fetcher := &fakeJob{status: forum.DiscussionStatus{Status: forum.JobPending}}
	j := NewDiscussionJob("topic-1", fetcher)
	j.Begin(t0)
	update := poll(t, j, t0)
	if update.Changed || j.Status() != PhaseRunning || !j.Polling() {
		t.Fatalf("expected pending answer to keep polling, got %+v", update)
	}
}

func TestDiscussionJobNeverRegressesWithoutBegin(t *testing.T) {
	fetcher := &fakeJob{status: completedStatus("## Round 1 - A\nx")}
	j := NewDiscussionJob("topic-1", fetcher)
	j.Begin(t0)
	poll(t, j, t0)

	if started := j.Sync(forum.Topic{RoundtableStatus: forum.JobRunning}, t0); started {
		t.Fatalf("expected sync not to restart polling")
	}
	if j.Status() != PhaseCompleted {
		t.Fatalf("expected completed to stick, got %s", j.Status())
	}

	fetcher.status = forum.DiscussionStatus{Status: forum.JobRunning}
	j.Begin(t0.Add(time.Minute))
	if j.Status() != PhaseRunning {
		t.Fatalf("expected explicit restart to run again")
	}
	if snap := j.Snapshot(); snap.Result != nil || len(snap.Turns) != 0 {
		t.Fatalf("expected restart to clear the previous result, got %+v", snap)
	}
	if j.Elapsed(t0.Add(time.Minute+1500*time.Millisecond)) != time.Second {
		t.Fatalf("expected elapsed counted from restart and truncated to seconds")
	}
}

func TestDiscussionJobStaleResultsDropped(t *testing.T) {
	fetcher := &fakeJob{status: completedStatus("## Round 1 - A\nx")}
	j := NewDiscussionJob("topic-1", fetcher)
	j.Begin(t0)
	cycle, _ := j.BeginPoll()
	result := cycle.Run(context.Background())

	j.Begin(t0.Add(time.Second))
	if update := j.Apply(result, t0.Add(2*time.Second)); update.Changed {
		t.Fatalf("expected result from before restart to be dropped")
	}
	if j.Status() != PhaseRunning {
		t.Fatalf("expected restarted job still running, got %s", j.Status())
	}

	cycle, _ = j.BeginPoll()
	result = cycle.Run(context.Background())
	j.Stop()
	if update := j.Apply(result, t0.Add(3*time.Second)); update.Changed {
		t.Fatalf("expected result after stop to be dropped")
	}
	if _, ok := j.BeginPoll(); ok {
		t.Fatalf("expected no polls after stop")
	}
}

func TestDiscussionJobSyncOnMount(t *testing.T) {
	j := NewDiscussionJob("topic-1", &fakeJob{})
	if started := j.Sync(forum.Topic{RoundtableStatus: forum.JobRunning}, t0); !started {
		t.Fatalf("expected running topic to start polling on mount")
	}
	if j.Elapsed(t0.Add(3*time.Second)) != 3*time.Second {
		t.Fatalf("expected clock to start when running is first observed")
	}
	if started := j.Sync(forum.Topic{RoundtableStatus: forum.JobRunning}, t0.Add(time.Second)); started {
		t.Fatalf("expected repeated sync to keep the existing loop")
	}

	cost := 1.5
	done := NewDiscussionJob("topic-2", &fakeJob{})
	done.Sync(forum.Topic{
		RoundtableStatus: forum.JobCompleted,
		RoundtableResult: &forum.DiscussionResult{Transcript: "## 第1轮 - 物理学家\n内容", CostUSD: &cost},
	}, t0)
	snap := done.Snapshot()
	if snap.Status != PhaseCompleted || len(snap.Turns) != 1 || *snap.Result.CostUSD != 1.5 {
		t.Fatalf("expected completed topic materialized, got %+v", snap)
	}

	idle := NewDiscussionJob("topic-3", &fakeJob{})
	if idle.Sync(forum.Topic{RoundtableStatus: forum.JobPending}, t0) || idle.Status() != PhaseIdle {
		t.Fatalf("expected pending topic to stay idle")
	}
}

func TestPercentClamps(t *testing.T) {
	j := NewDiscussionJob("topic-1", &fakeJob{status: forum.DiscussionStatus{
		Status:   forum.JobRunning,
		Progress: &forum.DiscussionProgress{CompletedTurns: 15, TotalTurns: 12},
	}})
	j.Begin(t0)
	poll(t, j, t0)
	if j.Percent() != 100 {
		t.Fatalf("expected clamp to 100, got %d", j.Percent())
	}
	if got := j.ProgressLine(); got != "waiting for experts · 15/12 turns" {
		t.Fatalf("unexpected progress line %q", got)
	}
}
