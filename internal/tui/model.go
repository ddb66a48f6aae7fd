// Package tui is the bubbletea front end: a topic picker and a topic view
// with threaded posts, @-mentions and roundtable discussion tracking.
package tui

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"roundtable/internal/config"
	"roundtable/internal/forum"
	"roundtable/internal/logging"
)

// viewDeps are shared by the root model and every topic view it mounts.
type viewDeps struct {
	logger   *slog.Logger
	now      func() time.Time
	markdown *markdownRenderer
	theme    uiTheme
}

// Option customizes a Model.
type Option func(*Model)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Model) {
		if logger != nil {
			m.deps.logger = logger
		}
	}
}

// WithClock replaces time.Now for elapsed-time rendering and job timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.deps.now = now
		}
	}
}

// viewMsg is implemented by every message that belongs to one topic view.
type viewMsg interface {
	forView() uint64
}

func (m topicLoadedMsg) forView() uint64 { return m.viewID }
func (m postsLoadedMsg) forView() uint64 { return m.viewID }
func (m submitDoneMsg) forView() uint64 { return m.viewID }
func (m startDoneMsg) forView() uint64 { return m.viewID }
func (m pendingTickMsg) forView() uint64 { return m.viewID }
func (m pendingCycleMsg) forView() uint64 { return m.viewID }
func (m jobTickMsg) forView() uint64 { return m.viewID }
func (m jobCycleMsg) forView() uint64 { return m.viewID }
func (m clockTickMsg) forView() uint64 { return m.viewID }

// Model is the root bubbletea model. It shows the topic picker until a topic
// is opened, then hands input to the mounted topic view.
type Model struct {
	cfg     config.Config
	backend Backend
	ctx     context.Context
	deps    viewDeps
	keys    keyMap
	spinner spinner.Model

	picker      picker
	quitConfirm bool

	topic      *topicView
	nextViewID uint64

	width  int
	height int
}

func New(ctx context.Context, cfg config.Config, backend Backend, opts ...Option) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Points
	theme := newTheme()
	sp.Style = theme.accent

	markdown := newMarkdownRenderer(cfg.MarkdownStyle)
	if cfg.MarkdownStyle == "plain" {
		markdown = plainMarkdown()
	}

	m := &Model{
		cfg:     cfg,
		backend: backend,
		ctx:     logging.WithLogFields(ctx, logging.LogFields{Component: "tui"}),
		deps: viewDeps{
			logger:   slog.Default(),
			now:      time.Now,
			markdown: markdown,
			theme:    theme,
		},
		keys:    newKeyMap(),
		spinner: sp,
		picker:  picker{loading: true, status: "loading topics..."},
		width:   120,
		height:  36,
	}
	for _, opt := range opts {
		opt(m)
	}
	if cfg.TopicID != "" {
		m.attachTopic(cfg.TopicID)
	}
	return m
}

func (m *Model) Init() tea.Cmd {
	if m.topic != nil {
		return tea.Batch(m.spinner.Tick, m.topic.mountCmd())
	}
	return tea.Batch(m.spinner.Tick, loadTopicsCmd(m.ctx, m.backend))
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if m.topic != nil {
			m.topic.resize(m.width, m.height)
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.topic != nil {
			m.topic.spinnerFrame = m.spinner.View()
			if m.topic.hasPendingPosts() {
				m.topic.renderPanes()
			}
		}
		return m, cmd
	case topicsLoadedMsg:
		m.picker.apply(msg)
		return m, nil
	case quitMsg:
		m.shutdown()
		return m, tea.Quit
	case leaveTopicMsg:
		if m.topic == nil || m.topic.id != msg.viewID {
			return m, nil
		}
		return m, m.closeTopic()
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.shutdown()
			return m, tea.Quit
		}
		if m.quitConfirm {
			return m, m.handleQuitKey(msg)
		}
		if m.topic != nil {
			return m, m.topic.Update(msg)
		}
		return m, m.handlePickerKey(msg)
	case tea.MouseMsg:
		if m.topic != nil && !m.quitConfirm {
			return m, m.topic.Update(msg)
		}
		return m, nil
	case viewMsg:
		if m.topic == nil || m.topic.id != msg.forView() {
			return m, nil
		}
		return m, m.topic.Update(msg)
	}
	return m, nil
}

func (m *Model) View() string {
	out := ""
	switch {
	case m.quitConfirm:
		out = m.renderQuitModal()
	case m.topic != nil:
		out = m.topic.View()
	default:
		out = m.renderPicker()
	}
	return m.deps.theme.root.Render(out)
}

// mountTopic replaces any open view with a fresh one for topicID. Each mount
// gets a new view id so responses for an earlier mount never reach it.
func (m *Model) mountTopic(topicID string) tea.Cmd {
	m.attachTopic(topicID)
	return m.topic.mountCmd()
}

func (m *Model) attachTopic(topicID string) {
	if m.topic != nil {
		m.topic.unmount()
	}
	m.nextViewID++
	m.topic = newTopicView(m.ctx, m.nextViewID, topicID, m.cfg, m.backend, m.deps)
	m.topic.spinnerFrame = m.spinner.View()
	m.topic.resize(m.width, m.height)
}

func (m *Model) closeTopic() tea.Cmd {
	if m.topic != nil {
		m.topic.unmount()
		m.topic = nil
	}
	m.picker.loading = true
	m.picker.status = "loading topics..."
	return loadTopicsCmd(m.ctx, m.backend)
}

func (m *Model) shutdown() {
	if m.topic != nil {
		m.topic.unmount()
	}
}

func (m *Model) handleQuitKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "y", "Y", "enter":
		m.shutdown()
		return tea.Quit
	case "n", "N", "esc", "q":
		m.quitConfirm = false
		m.picker.status = "quit cancelled"
	}
	return nil
}

// Topic exposes the mounted topic, for the command entry point's exit log.
func (m *Model) Topic() (forum.Topic, bool) {
	if m.topic == nil || !m.topic.loaded {
		return forum.Topic{}, false
	}
	return m.topic.topic, true
}
