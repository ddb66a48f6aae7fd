package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"roundtable/internal/config"
	"roundtable/internal/forum"
	"roundtable/internal/logging"
	"roundtable/internal/mention"
	"roundtable/internal/thread"
	"roundtable/internal/tracker"
)

type paneID int

const (
	paneThread paneID = iota
	paneTranscript
	paneHelp
)

const maxLogLines = 50

// topicView is the conversation screen for one topic. It owns the post list,
// the compose state and both trackers; all of it lives and dies with one
// mount.
type topicView struct {
	id      uint64
	topicID string
	cfg     config.Config
	backend Backend
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	now     func() time.Time

	topic    forum.Topic
	loaded   bool
	posts    []forum.Post
	forest   thread.Forest
	roster   []mention.Candidate
	dropdown mention.Dropdown
	replyTo  *forum.Post

	pending *tracker.PendingReplies
	job     *tracker.DiscussionJob

	submitting   bool
	starting     bool
	postsLoaded  bool
	pane         paneID
	statusLine   string
	logs         []string
	spinnerFrame string

	input    textinput.Model
	thread   viewport.Model
	sidebar  viewport.Model
	keys     keyMap
	help     help.Model
	markdown *markdownRenderer
	theme    uiTheme
	width    int
	height   int
}

func newTopicView(parent context.Context, viewID uint64, topicID string, cfg config.Config, backend Backend, deps viewDeps) *topicView {
	ctx, cancel := context.WithCancel(logging.WithLogFields(parent, logging.LogFields{
		TopicID:   topicID,
		Component: "tui.topic",
	}))

	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 8000
	input.Placeholder = "Write a post. Mention an expert with @name. /help for commands."
	input.Focus()

	threadPane := viewport.New(0, 0)
	threadPane.MouseWheelEnabled = true
	threadPane.MouseWheelDelta = 4
	sidebar := viewport.New(0, 0)
	sidebar.MouseWheelEnabled = true
	sidebar.MouseWheelDelta = 4

	trackerOpts := []tracker.Option{
		tracker.WithMaxFailures(cfg.ReplyMaxFailures),
		tracker.WithLogger(deps.logger),
	}
	return &topicView{
		id:           viewID,
		topicID:      topicID,
		cfg:          cfg,
		backend:      backend,
		logger:       deps.logger,
		ctx:          ctx,
		cancel:       cancel,
		now:          deps.now,
		pending:      tracker.NewPendingReplies(topicID, backend, trackerOpts...),
		job:          tracker.NewDiscussionJob(topicID, backend, trackerOpts...),
		statusLine:   "loading topic...",
		logs:         []string{},
		spinnerFrame: "·",
		input:        input,
		thread:       threadPane,
		sidebar:      sidebar,
		keys:         newKeyMap(),
		help:         help.New(),
		markdown:     deps.markdown,
		theme:        deps.theme,
	}
}

// mountCmd loads the topic and arms the reply poll and the UI clock. The
// discussion poll is armed once the topic says a job is running.
func (v *topicView) mountCmd() tea.Cmd {
	v.logger.InfoContext(v.ctx, "topic view mounted")
	return tea.Batch(
		v.loadTopicCmd(),
		v.loadPostsCmd(),
		pendingTick(v.id, v.pending.Epoch(), v.cfg.PollInterval),
		clockTick(v.id),
	)
}

// unmount stops both trackers; ticks and responses already in flight are
// discarded when they arrive.
func (v *topicView) unmount() {
	v.pending.Stop()
	v.job.Stop()
	v.cancel()
	v.logger.InfoContext(v.ctx, "topic view unmounted")
}

func (v *topicView) Update(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case topicLoadedMsg:
		if msg.err != nil {
			v.logError("topic load failed", msg.err)
			break
		}
		v.topic = msg.topic
		v.loaded = true
		if msg.rosterOK {
			v.roster = rosterFor(msg.experts, msg.topic.ExpertNames)
		} else if len(v.roster) == 0 {
			v.roster = rosterFor(nil, msg.topic.ExpertNames)
		}
		if msg.jobEpoch == v.job.Epoch() && v.job.Sync(msg.topic, v.now()) {
			cmds = append(cmds, jobTick(v.id, v.job.Epoch(), v.cfg.PollInterval))
		}
		if strings.HasPrefix(v.statusLine, "loading") {
			v.statusLine = fmt.Sprintf("ready · %s", compactSingleLine(v.topic.Title, 80))
		}
		v.refreshDropdown()
		v.renderPanes()
	case postsLoadedMsg:
		if msg.err != nil {
			v.logError("post reload failed", msg.err)
			break
		}
		v.posts = msg.posts
		v.forest = thread.Build(msg.posts)
		v.postsLoaded = true
		v.renderPanes()
	case submitDoneMsg:
		v.submitting = false
		if msg.err != nil {
			v.logError("send failed", msg.err)
			break
		}
		if strings.TrimSpace(v.input.Value()) == msg.body {
			v.input.Reset()
			v.dropdown.Reset()
		}
		v.replyTo = nil
		if msg.expert != "" {
			v.pending.Track(msg.replyID)
			v.setStatus(fmt.Sprintf("posted · waiting for @%s to reply", msg.expert))
		} else {
			v.setStatus("posted")
		}
		cmds = append(cmds, v.loadPostsCmd())
		v.renderPanes()
	case startDoneMsg:
		v.starting = false
		if msg.err != nil {
			v.logError("start failed", msg.err)
			break
		}
		v.job.Begin(v.now())
		v.setStatus(fmt.Sprintf("discussion started · %d rounds", msg.rounds))
		cmds = append(cmds, jobTick(v.id, v.job.Epoch(), v.cfg.PollInterval))
		v.renderPanes()
	case pendingTickMsg:
		if msg.epoch != v.pending.Epoch() {
			break
		}
		if cycle, ok := v.pending.BeginCycle(); ok {
			cmds = append(cmds, v.pendingCycleCmd(cycle))
		}
		cmds = append(cmds, pendingTick(v.id, msg.epoch, v.cfg.PollInterval))
	case pendingCycleMsg:
		if v.pending.Apply(msg.result) {
			v.setStatus("expert reply finished")
			cmds = append(cmds, v.loadPostsCmd())
		}
	case jobTickMsg:
		if msg.epoch != v.job.Epoch() {
			break
		}
		if cycle, ok := v.job.BeginPoll(); ok {
			cmds = append(cmds, v.jobCycleCmd(cycle))
		}
		cmds = append(cmds, jobTick(v.id, msg.epoch, v.cfg.PollInterval))
	case jobCycleMsg:
		update := v.job.Apply(msg.result, v.now())
		if update.Err != nil {
			v.logError("discussion status failed", update.Err)
		}
		if update.Finished {
			if v.job.Status() == tracker.PhaseCompleted {
				v.setStatus("discussion completed · /transcript to read it")
			} else {
				v.setStatus("discussion failed")
			}
		}
		if update.Reload {
			cmds = append(cmds, v.loadTopicCmd(), v.loadPostsCmd())
		}
		if update.Changed {
			v.renderPanes()
		}
	case clockTickMsg:
		if v.job.Status() == tracker.PhaseRunning {
			v.renderSidebar()
		}
		cmds = append(cmds, clockTick(v.id))
	case tea.KeyMsg:
		cmds = append(cmds, v.handleKey(msg))
	case tea.MouseMsg:
		cmds = append(cmds, v.handleMouse(msg))
	}
	return tea.Batch(cmds...)
}

func (v *topicView) handleKey(msg tea.KeyMsg) tea.Cmd {
	if v.dropdown.Open {
		switch {
		case key.Matches(msg, v.keys.NextMatch):
			v.dropdown.Next()
			return nil
		case key.Matches(msg, v.keys.PrevMatch):
			v.dropdown.Prev()
			return nil
		case key.Matches(msg, v.keys.Complete):
			v.commitMention()
			return nil
		case key.Matches(msg, v.keys.Dismiss):
			v.dropdown.Dismiss()
			v.renderPanes()
			return nil
		}
	}

	switch {
	case key.Matches(msg, v.keys.Dismiss):
		if v.pane != paneThread {
			v.pane = paneThread
			v.renderPanes()
			return nil
		}
		if v.replyTo != nil {
			v.replyTo = nil
			v.setStatus("reply cancelled")
			return nil
		}
		return leaveTopic(v.id)
	case key.Matches(msg, v.keys.Send):
		raw := strings.TrimSpace(v.input.Value())
		if raw == "" {
			return nil
		}
		if strings.HasPrefix(raw, "/") {
			v.input.Reset()
			v.dropdown.Reset()
			return v.handleSlash(raw)
		}
		return v.submit(raw)
	case key.Matches(msg, v.keys.Transcript):
		v.togglePane(paneTranscript)
		return nil
	case key.Matches(msg, v.keys.PageUp):
		v.thread.LineUp(8)
		return nil
	case key.Matches(msg, v.keys.PageDown):
		v.thread.LineDown(8)
		return nil
	case key.Matches(msg, v.keys.Top):
		v.thread.GotoTop()
		return nil
	case key.Matches(msg, v.keys.Bottom):
		v.thread.GotoBottom()
		return nil
	}

	switch msg.String() {
	case "up":
		if strings.TrimSpace(v.input.Value()) == "" {
			v.thread.LineUp(4)
			return nil
		}
	case "down":
		if strings.TrimSpace(v.input.Value()) == "" {
			v.thread.LineDown(4)
			return nil
		}
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	v.refreshDropdown()
	return cmd
}

func (v *topicView) handleMouse(msg tea.MouseMsg) tea.Cmd {
	if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft && v.dropdown.Open {
		v.dropdown.Dismiss()
		v.renderPanes()
	}
	var cmd tea.Cmd
	v.thread, cmd = v.thread.Update(msg)
	return cmd
}

// submit sends body as a mention post when it names a roster expert, as a
// plain post otherwise. Input and reply target are only cleared on success.
func (v *topicView) submit(body string) tea.Cmd {
	if v.submitting {
		v.setStatus("still sending the previous post...")
		return nil
	}
	if v.topic.Status == forum.TopicClosed {
		v.setStatus("topic is closed")
		return nil
	}
	expert := ""
	if candidate, ok := mention.FirstResolved(body, v.roster); ok {
		expert = candidate.ID
	}
	var parentID *string
	if v.replyTo != nil {
		id := v.replyTo.ID
		parentID = &id
	}
	v.submitting = true
	v.statusLine = ternary(expert != "", "asking @"+expert+"...", "sending...")
	v.logger.DebugContext(v.ctx, "submitting post", "expert", expert, "reply_to", derefOr(parentID, ""))
	return v.submitCmd(body, expert, parentID)
}

func (v *topicView) commitMention() {
	text, cursor, ok := v.dropdown.Commit(v.input.Value(), v.input.Position())
	if !ok {
		return
	}
	v.input.SetValue(text)
	v.input.SetCursor(cursor)
	v.renderPanes()
}

func (v *topicView) refreshDropdown() {
	wasOpen := v.dropdown.Open
	v.dropdown.Refresh(v.input.Value(), v.input.Position(), v.roster)
	if wasOpen != v.dropdown.Open {
		v.renderPanes()
	}
}

func (v *topicView) togglePane(pane paneID) {
	v.pane = ternary(v.pane == pane, paneThread, pane)
	v.renderPanes()
	v.thread.GotoTop()
}

func (v *topicView) setStatus(line string) {
	v.statusLine = line
	v.appendLog(line)
}

func (v *topicView) appendLog(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	v.logs = append(v.logs, fmt.Sprintf("%s %s", v.now().Format("15:04:05"), compactSingleLine(trimmed, 220)))
	if len(v.logs) > maxLogLines {
		v.logs = v.logs[len(v.logs)-maxLogLines:]
	}
}

func (v *topicView) logError(prefix string, err error) {
	if err == nil {
		return
	}
	v.logger.WarnContext(v.ctx, prefix, "error", err)
	v.appendLog(prefix + ": " + err.Error())
	v.statusLine = prefix + ": " + compactSingleLine(forum.Message(err), 160)
}

// hasPendingPosts reports whether a rendered post shows the thinking spinner.
func (v *topicView) hasPendingPosts() bool {
	for _, post := range v.posts {
		if post.Status == forum.PostPending {
			return true
		}
	}
	return false
}

// rosterFor builds mention candidates from the topic's experts, falling back
// to the bare expert names stored on the topic.
func rosterFor(experts []forum.TopicExpert, names []string) []mention.Candidate {
	out := make([]mention.Candidate, 0, maxInt(len(experts), len(names)))
	seen := map[string]struct{}{}
	for _, expert := range experts {
		name := strings.TrimSpace(expert.Name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, mention.Candidate{ID: name, Label: nullCoalesce(expert.Label, name)})
	}
	if len(out) > 0 {
		return out
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, mention.Candidate{ID: name, Label: name})
	}
	return out
}
