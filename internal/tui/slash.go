package tui

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"roundtable/internal/forum"
	"roundtable/internal/tracker"
)

const (
	minRounds     = 1
	maxRounds     = 10
	defaultRounds = 5
)

func (v *topicView) handleSlash(raw string) tea.Cmd {
	parts := strings.Fields(strings.TrimSpace(raw))
	if len(parts) == 0 {
		return nil
	}
	cmd := strings.ToLower(parts[0])
	tail := parts[1:]
	switch cmd {
	case "/help":
		v.pane = paneHelp
		v.renderPanes()
		v.thread.GotoTop()
		return nil
	case "/quit", "/exit":
		return requestQuit
	case "/back":
		return leaveTopic(v.id)
	case "/refresh":
		v.statusLine = "refreshing..."
		return tea.Batch(v.loadTopicCmd(), v.loadPostsCmd())
	case "/transcript":
		v.togglePane(paneTranscript)
		return nil
	case "/cancel":
		if v.replyTo == nil {
			v.statusLine = "not replying to anything"
			return nil
		}
		v.replyTo = nil
		v.setStatus("reply cancelled")
		v.renderPanes()
		return nil
	case "/reply":
		if len(tail) == 0 {
			v.statusLine = "usage: /reply <post number>"
			return nil
		}
		n, err := strconv.Atoi(strings.TrimPrefix(tail[0], "#"))
		if err != nil || n < 1 || n > len(v.forest.Order) {
			v.statusLine = fmt.Sprintf("no post #%s", strings.TrimPrefix(tail[0], "#"))
			return nil
		}
		target := v.forest.Order[n-1].Post
		v.replyTo = &target
		v.pane = paneThread
		v.setStatus(fmt.Sprintf("replying to #%d %s", n, target.DisplayName()))
		v.renderPanes()
		return nil
	case "/start":
		return v.startDiscussion(tail)
	default:
		v.statusLine = "unknown command: " + cmd
		return nil
	}
}

// startDiscussion asks the backend to run a roundtable. Rounds default to the
// topic's configured count and must lie in [1, 10].
func (v *topicView) startDiscussion(tail []string) tea.Cmd {
	if v.starting {
		v.statusLine = "discussion start already requested"
		return nil
	}
	if v.job.Status() == tracker.PhaseRunning {
		v.statusLine = "a discussion is already running"
		return nil
	}
	if v.topic.Status == forum.TopicClosed {
		v.statusLine = "topic is closed"
		return nil
	}
	rounds := defaultRounds
	if v.topic.NumRounds >= minRounds && v.topic.NumRounds <= maxRounds {
		rounds = v.topic.NumRounds
	}
	if len(tail) > 0 {
		parsed, err := strconv.Atoi(tail[0])
		if err != nil || parsed < minRounds || parsed > maxRounds {
			v.statusLine = fmt.Sprintf("usage: /start [rounds %d-%d]", minRounds, maxRounds)
			return nil
		}
		rounds = parsed
	}
	v.starting = true
	v.statusLine = fmt.Sprintf("starting discussion · %d rounds...", rounds)
	return v.startCmd(rounds)
}

func (v *topicView) renderHelp() string {
	lines := []string{
		"Keys",
		"- Enter: send the post (or run a /command)",
		"- @name: mention an expert; Up/Down pick, Tab/Enter insert, Esc close",
		"- PgUp/PgDn, Up/Down (input empty), Home/End: scroll the thread",
		"- Ctrl+T: toggle the discussion transcript",
		"- Esc: close this pane, cancel a reply, or go back to the topic list",
		"- Ctrl+C: quit",
		"",
		"Slash Commands",
		"- /reply <n>: reply to post #n",
		"- /cancel: stop replying",
		fmt.Sprintf("- /start [rounds]: start a roundtable discussion (%d-%d rounds)", minRounds, maxRounds),
		"- /transcript: toggle the transcript",
		"- /refresh: reload topic and posts",
		"- /back: return to the topic list",
		"- /help",
		"- /quit",
	}
	return v.theme.helpText.Render(strings.Join(lines, "\n"))
}
