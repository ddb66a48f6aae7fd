package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"roundtable/internal/config"
	"roundtable/internal/forum"
	"roundtable/internal/tracker"
)

// Backend is the subset of the forum API the terminal client uses.
type Backend interface {
	tracker.ReplyStatusFetcher
	tracker.DiscussionStatusFetcher
	ListTopics(ctx context.Context) ([]forum.Topic, error)
	GetTopic(ctx context.Context, topicID string) (forum.Topic, error)
	ListTopicExperts(ctx context.Context, topicID string) ([]forum.TopicExpert, error)
	ListPosts(ctx context.Context, topicID string) ([]forum.Post, error)
	CreatePost(ctx context.Context, topicID string, req forum.CreatePostRequest) (forum.Post, error)
	CreateMentionPost(ctx context.Context, topicID string, req forum.MentionRequest) (forum.MentionResponse, error)
	StartDiscussion(ctx context.Context, topicID string, req forum.StartDiscussionRequest) (forum.DiscussionStatus, error)
}

// Every topic message carries the id of the view that asked for it; the
// root model drops messages for views that are gone.

type topicsLoadedMsg struct {
	topics []forum.Topic
	err    error
}

type topicLoadedMsg struct {
	viewID   uint64
	jobEpoch uint64
	topic    forum.Topic
	experts  []forum.TopicExpert
	rosterOK bool
	err      error
}

type postsLoadedMsg struct {
	viewID uint64
	posts  []forum.Post
	err    error
}

type submitDoneMsg struct {
	viewID  uint64
	body    string
	expert  string
	replyID string
	err     error
}

type startDoneMsg struct {
	viewID uint64
	rounds int
	err    error
}

type pendingTickMsg struct {
	viewID uint64
	epoch  uint64
}

type pendingCycleMsg struct {
	viewID uint64
	result tracker.ReplyCycleResult
}

type jobTickMsg struct {
	viewID uint64
	epoch  uint64
}

type jobCycleMsg struct {
	viewID uint64
	result tracker.JobCycleResult
}

type clockTickMsg struct {
	viewID uint64
	at     time.Time
}

type leaveTopicMsg struct {
	viewID uint64
}

// quitMsg asks the root model to tear down the open view and exit.
type quitMsg struct{}

func loadTopicsCmd(ctx context.Context, backend Backend) tea.Cmd {
	return func() tea.Msg {
		topics, err := backend.ListTopics(ctx)
		return topicsLoadedMsg{topics: topics, err: err}
	}
}

func (v *topicView) loadTopicCmd() tea.Cmd {
	ctx, backend, topicID := v.ctx, v.backend, v.topicID
	viewID, jobEpoch := v.id, v.job.Epoch()
	return func() tea.Msg {
		msg := topicLoadedMsg{viewID: viewID, jobEpoch: jobEpoch}
		var expertsErr error
		var g errgroup.Group
		g.Go(func() error {
			topic, err := backend.GetTopic(ctx, topicID)
			msg.topic, msg.err = topic, err
			return nil
		})
		g.Go(func() error {
			msg.experts, expertsErr = backend.ListTopicExperts(ctx, topicID)
			return nil
		})
		_ = g.Wait()
		msg.rosterOK = expertsErr == nil
		return msg
	}
}

func (v *topicView) loadPostsCmd() tea.Cmd {
	ctx, backend, topicID, viewID := v.ctx, v.backend, v.topicID, v.id
	return func() tea.Msg {
		posts, err := backend.ListPosts(ctx, topicID)
		return postsLoadedMsg{viewID: viewID, posts: posts, err: err}
	}
}

// submitCmd sends a mention post when expert is set, a plain post otherwise.
func (v *topicView) submitCmd(body, expert string, parentID *string) tea.Cmd {
	ctx, backend, topicID, viewID, author := v.ctx, v.backend, v.topicID, v.id, v.cfg.Author
	return func() tea.Msg {
		if expert == "" {
			_, err := backend.CreatePost(ctx, topicID, forum.CreatePostRequest{
				Author:      author,
				Body:        body,
				InReplyToID: parentID,
			})
			return submitDoneMsg{viewID: viewID, body: body, err: err}
		}
		resp, err := backend.CreateMentionPost(ctx, topicID, forum.MentionRequest{
			Author:      author,
			Body:        body,
			ExpertName:  expert,
			InReplyToID: parentID,
		})
		return submitDoneMsg{viewID: viewID, body: body, expert: expert, replyID: resp.ReplyPostID, err: err}
	}
}

func (v *topicView) startCmd(rounds int) tea.Cmd {
	ctx, backend, topicID, viewID := v.ctx, v.backend, v.topicID, v.id
	req := forum.StartDiscussionRequest{
		NumRounds:    rounds,
		MaxTurns:     v.cfg.MaxTurns,
		MaxBudgetUSD: v.cfg.MaxBudgetUSD,
	}
	return func() tea.Msg {
		_, err := backend.StartDiscussion(ctx, topicID, req)
		return startDoneMsg{viewID: viewID, rounds: rounds, err: err}
	}
}

func (v *topicView) pendingCycleCmd(cycle *tracker.ReplyCycle) tea.Cmd {
	ctx, viewID := v.ctx, v.id
	return func() tea.Msg {
		return pendingCycleMsg{viewID: viewID, result: cycle.Run(ctx)}
	}
}

func (v *topicView) jobCycleCmd(cycle *tracker.JobCycle) tea.Cmd {
	ctx, viewID := v.ctx, v.id
	return func() tea.Msg {
		return jobCycleMsg{viewID: viewID, result: cycle.Run(ctx)}
	}
}

func pendingTick(viewID, epoch uint64, interval time.Duration) tea.Cmd {
	return tea.Tick(pollInterval(interval), func(time.Time) tea.Msg {
		return pendingTickMsg{viewID: viewID, epoch: epoch}
	})
}

func jobTick(viewID, epoch uint64, interval time.Duration) tea.Cmd {
	return tea.Tick(pollInterval(interval), func(time.Time) tea.Msg {
		return jobTickMsg{viewID: viewID, epoch: epoch}
	})
}

func clockTick(viewID uint64) tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return clockTickMsg{viewID: viewID, at: t}
	})
}

func leaveTopic(viewID uint64) tea.Cmd {
	return func() tea.Msg {
		return leaveTopicMsg{viewID: viewID}
	}
}

func requestQuit() tea.Msg {
	return quitMsg{}
}

func pollInterval(interval time.Duration) time.Duration {
	if interval <= 0 {
		return config.DefaultPollInterval
	}
	return interval
}
