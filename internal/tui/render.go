package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"roundtable/internal/forum"
	"roundtable/internal/tracker"
	"roundtable/internal/transcript"
)

const (
	dropdownVisible = 5
	maxThreadIndent = 6
)

func (v *topicView) resize(width, height int) {
	v.width, v.height = width, height
	contentWidth := maxInt(40, width-4)
	v.input.Width = maxInt(20, contentWidth-6)
	v.help.Width = contentWidth - 2
	v.renderPanes()
}

// composeExtraLines is the height the reply hint and the dropdown take above
// the input.
func (v *topicView) composeExtraLines() int {
	extra := 0
	if v.replyTo != nil {
		extra++
	}
	if v.dropdown.Open {
		extra += minInt(dropdownVisible, len(v.dropdown.Matches)) + 2
	}
	return extra
}

func (v *topicView) renderPanes() {
	prevThreadYOffset := v.thread.YOffset
	prevThreadAtBottom := v.thread.AtBottom()
	prevSidebarYOffset := v.sidebar.YOffset

	contentHeight := maxInt(8, v.height-12-v.composeExtraLines())
	contentWidth := maxInt(40, v.width-4)
	leftWidth := int(float64(contentWidth) * 0.66)
	rightWidth := contentWidth - leftWidth - 1
	if rightWidth < 28 {
		rightWidth = 28
		leftWidth = contentWidth - rightWidth - 1
	}

	v.thread.Width = maxInt(20, leftWidth-4)
	v.thread.Height = maxInt(5, contentHeight-3)
	v.sidebar.Width = maxInt(20, rightWidth-4)
	v.sidebar.Height = maxInt(5, contentHeight-3)

	switch v.pane {
	case paneTranscript:
		v.thread.SetContent(v.renderTranscript())
		v.thread.SetYOffset(prevThreadYOffset)
	case paneHelp:
		v.thread.SetContent(v.renderHelp())
		v.thread.SetYOffset(prevThreadYOffset)
	default:
		v.thread.SetContent(v.renderThread())
		if prevThreadAtBottom {
			v.thread.GotoBottom()
		} else {
			v.thread.SetYOffset(prevThreadYOffset)
		}
	}
	v.sidebar.SetContent(v.renderSidebarContent())
	v.sidebar.SetYOffset(prevSidebarYOffset)
}

// renderSidebar refreshes only the sidebar; the clock uses it for elapsed time.
func (v *topicView) renderSidebar() {
	offset := v.sidebar.YOffset
	v.sidebar.SetContent(v.renderSidebarContent())
	v.sidebar.SetYOffset(offset)
}

func (v *topicView) View() string {
	header := v.renderHeader()
	content := v.renderContent()
	compose := v.renderCompose()
	footer := v.renderFooter()
	return lipgloss.JoinVertical(lipgloss.Left, header, content, compose, footer)
}

func (v *topicView) renderHeader() string {
	title := nullCoalesce(v.topic.Title, v.topicID)
	segments := []string{
		v.theme.panelTitle.Render(compactSingleLine(title, maxInt(20, v.width/2))),
	}
	if v.loaded {
		segments = append(segments,
			" ",
			v.theme.badge.Render(string(v.topic.Status)),
			" ",
			v.theme.badgeMuted.Render(string(v.topic.Mode)),
		)
		if category := derefOr(v.topic.Category, ""); category != "" {
			segments = append(segments, " ", v.theme.badgeMuted.Render(category))
		}
	}
	if n := v.pending.Len(); n > 0 {
		segments = append(segments, " ", v.theme.pending.Render(fmt.Sprintf("%s %d pending", v.spinnerFrame, n)))
	}
	joined := lipgloss.JoinHorizontal(lipgloss.Left, segments...)
	return v.theme.header.Width(maxInt(20, v.width-4)).Render(joined)
}

func (v *topicView) renderContent() string {
	title := "Thread"
	switch v.pane {
	case paneTranscript:
		title = "Transcript"
	case paneHelp:
		title = "Help"
	}
	left := v.theme.panel.
		Width(v.thread.Width + 2).
		Render(v.theme.panelTitle.Render(title) + "\n" + v.thread.View())
	right := v.theme.panel.
		Width(v.sidebar.Width + 2).
		Render(v.theme.panelTitle.Render("Discussion") + "\n" + v.sidebar.View())
	return lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
}

func (v *topicView) renderThread() string {
	if !v.postsLoaded {
		return "Loading posts..."
	}
	if len(v.forest.Order) == 0 {
		return "No posts yet. Write something below; mention an expert with @name."
	}
	var b strings.Builder
	for i, node := range v.forest.Order {
		post := node.Post
		pad := minInt(node.Depth, maxThreadIndent) * 2
		width := maxInt(20, v.thread.Width-pad-2)

		nameStyle := v.theme.human
		if post.AuthorType == forum.AuthorAgent {
			nameStyle = v.theme.agent
		}
		header := fmt.Sprintf("#%d %s ", i+1, shortTime(post.CreatedAt)) + nameStyle.Render(post.DisplayName())
		b.WriteString(indent(header, pad))
		b.WriteString("\n")
		if node.Parent != nil {
			hint := v.theme.replyHint.Render("↳ reply to " + node.Parent.DisplayName())
			b.WriteString(indent(hint, pad))
			b.WriteString("\n")
		}

		var body string
		switch post.Status {
		case forum.PostPending:
			body = v.theme.pending.Render(v.spinnerFrame + " thinking...")
		case forum.PostFailed:
			body = v.theme.failed.Render("reply failed")
			if text := v.markdown.Render(post.Body, width); text != "" {
				body += "\n" + text
			}
		default:
			body = v.markdown.Render(post.Body, width)
		}
		if body != "" {
			b.WriteString(indent(body, pad+2))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (v *topicView) renderTranscript() string {
	snap := v.job.Snapshot()
	result := snap.Result
	if result == nil && snap.Status != tracker.PhaseRunning {
		result = v.topic.RoundtableResult
	}
	if result == nil {
		if snap.Status == tracker.PhaseRunning {
			return v.spinnerFrame + " " + v.job.ProgressLine()
		}
		return "No discussion yet. Start one with /start [rounds]."
	}

	width := maxInt(20, v.thread.Width-2)
	var b strings.Builder
	if summary := strings.TrimSpace(result.Summary); summary != "" {
		b.WriteString(v.theme.roundHeader.Render("Summary"))
		b.WriteString("\n")
		b.WriteString(v.markdown.Render(summary, width))
		b.WriteString("\n\n")
	}

	turns := snap.Turns
	if len(turns) == 0 {
		turns = transcript.Parse(result.Transcript)
	}
	if len(turns) == 0 {
		if raw := v.markdown.Render(result.Transcript, width); raw != "" {
			b.WriteString(raw)
		}
		return strings.TrimRight(b.String(), "\n")
	}
	for _, round := range transcript.GroupByRound(turns) {
		b.WriteString(v.theme.roundHeader.Render(fmt.Sprintf("Round %d", round.Number)))
		b.WriteString("\n")
		for _, turn := range round.Turns {
			b.WriteString(v.theme.agent.Render(turn.Speaker))
			b.WriteString("\n")
			b.WriteString(indent(v.markdown.Render(turn.Body, width-2), 2))
			b.WriteString("\n\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (v *topicView) renderSidebarContent() string {
	var b strings.Builder
	snap := v.job.Snapshot()
	now := v.now()

	b.WriteString(v.theme.accent.Render("Status: " + string(snap.Status)))
	b.WriteString("\n")
	switch snap.Status {
	case tracker.PhaseRunning:
		barWidth := maxInt(4, v.sidebar.Width-6)
		b.WriteString(progressBar(v.job.Percent(), barWidth, v.theme))
		b.WriteString(fmt.Sprintf(" %d%%\n", v.job.Percent()))
		b.WriteString(wrapText(v.job.ProgressLine(), v.sidebar.Width))
		b.WriteString("\n")
		b.WriteString(v.theme.helpText.Render("elapsed " + formatElapsed(v.job.Elapsed(now))))
		b.WriteString("\n")
	case tracker.PhaseCompleted:
		if snap.Result != nil {
			b.WriteString(fmt.Sprintf("turns: %d\n", maxInt(snap.Result.TurnCount, len(snap.Turns))))
			if snap.Result.CostUSD != nil {
				b.WriteString(fmt.Sprintf("cost: $%.4f\n", *snap.Result.CostUSD))
			}
			if summary := strings.TrimSpace(snap.Result.Summary); summary != "" {
				b.WriteString("\n")
				b.WriteString(wrapText(compactSingleLine(summary, 400), v.sidebar.Width))
				b.WriteString("\n")
			}
		}
		b.WriteString(v.theme.helpText.Render("ctrl+t for the transcript"))
		b.WriteString("\n")
	case tracker.PhaseFailed:
		b.WriteString(v.theme.failed.Render("discussion failed"))
		b.WriteString("\n")
	default:
		b.WriteString(v.theme.helpText.Render("/start [rounds] to begin"))
		b.WriteString("\n")
	}
	if snap.LastError != nil {
		b.WriteString(v.theme.errorStatus.Render(compactSingleLine("last poll: "+forum.Message(snap.LastError), v.sidebar.Width*2)))
		b.WriteString("\n")
	}

	if len(v.roster) > 0 {
		b.WriteString("\n")
		b.WriteString(v.theme.panelTitle.Render("Experts"))
		b.WriteString("\n")
		for _, candidate := range v.roster {
			line := "@" + candidate.ID
			if candidate.Label != candidate.ID {
				line += " " + v.theme.helpText.Render(candidate.Label)
			}
			b.WriteString(truncate(line, v.sidebar.Width))
			b.WriteString("\n")
		}
	}

	if len(v.logs) > 0 {
		b.WriteString("\n")
		b.WriteString(v.theme.panelTitle.Render("Activity"))
		b.WriteString("\n")
		start := maxInt(0, len(v.logs)-8)
		for _, line := range v.logs[start:] {
			b.WriteString(v.theme.helpText.Render(truncate(line, v.sidebar.Width)))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (v *topicView) renderCompose() string {
	contentWidth := maxInt(40, v.width-4)
	parts := []string{}
	if dropdown := v.renderDropdown(); dropdown != "" {
		parts = append(parts, dropdown)
	}
	inputView := v.input.View()
	if v.replyTo != nil {
		inputView = v.theme.replyHint.Render("replying to "+v.replyTo.DisplayName()+" · esc to cancel") + "\n" + inputView
	}
	if v.submitting || v.starting {
		inputView = v.spinnerFrame + " " + inputView
	}
	parts = append(parts, v.theme.inputPanel.Width(contentWidth).Render(inputView))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (v *topicView) renderDropdown() string {
	if !v.dropdown.Open || len(v.dropdown.Matches) == 0 {
		return ""
	}
	start := maxInt(0, v.dropdown.Index-dropdownVisible+1)
	end := minInt(len(v.dropdown.Matches), start+dropdownVisible)
	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		candidate := v.dropdown.Matches[i]
		line := "@" + candidate.ID
		if candidate.Label != candidate.ID {
			line += "  " + candidate.Label
		}
		if i == v.dropdown.Index {
			lines = append(lines, v.theme.dropdownPick.Render(line))
		} else {
			lines = append(lines, v.theme.dropdownItem.Render(line))
		}
	}
	return v.theme.dropdown.Render(strings.Join(lines, "\n"))
}

func (v *topicView) renderFooter() string {
	contentWidth := maxInt(40, v.width-4)
	statusStyle := v.theme.status
	lower := strings.ToLower(v.statusLine)
	if strings.Contains(lower, "failed") || strings.Contains(lower, "error") {
		statusStyle = v.theme.errorStatus
	}
	line := statusStyle.Render(compactSingleLine(v.statusLine, 180))
	hints := v.help.ShortHelpView(v.keys.ShortHelp())
	return v.theme.footer.Width(contentWidth).Render(line + "\n" + hints)
}
