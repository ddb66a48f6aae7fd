package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"roundtable/internal/forum"
)

// picker is the topic list shown before a topic is opened.
type picker struct {
	topics  []forum.Topic
	index   int
	loading bool
	err     error
	status  string
}

func (p *picker) apply(msg topicsLoadedMsg) {
	p.loading = false
	if msg.err != nil {
		p.err = msg.err
		p.status = "topic list failed: " + compactSingleLine(forum.Message(msg.err), 160)
		return
	}
	p.err = nil
	p.topics = msg.topics
	p.index = clampInt(p.index, 0, maxInt(0, len(p.topics)-1))
	if len(p.topics) == 0 {
		p.status = "no topics yet"
		return
	}
	p.status = fmt.Sprintf("%d topics", len(p.topics))
}

func (p *picker) selected() (forum.Topic, bool) {
	if len(p.topics) == 0 || p.index < 0 || p.index >= len(p.topics) {
		return forum.Topic{}, false
	}
	return p.topics[p.index], true
}

func (m *Model) handlePickerKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "up", "k":
		if len(m.picker.topics) > 0 {
			m.picker.index = (m.picker.index - 1 + len(m.picker.topics)) % len(m.picker.topics)
		}
	case "down", "j":
		if len(m.picker.topics) > 0 {
			m.picker.index = (m.picker.index + 1) % len(m.picker.topics)
		}
	case "enter":
		topic, ok := m.picker.selected()
		if !ok {
			return nil
		}
		return m.mountTopic(topic.ID)
	case "r":
		m.picker.loading = true
		m.picker.status = "loading topics..."
		return loadTopicsCmd(m.ctx, m.backend)
	case "q", "esc":
		m.quitConfirm = true
	}
	return nil
}

func (m *Model) renderPicker() string {
	theme := m.deps.theme
	contentWidth := maxInt(48, minInt(100, m.width-4))
	innerWidth := contentWidth - 6

	var options strings.Builder
	switch {
	case m.picker.loading && len(m.picker.topics) == 0:
		options.WriteString(m.spinner.View() + " loading topics...")
	case len(m.picker.topics) == 0:
		options.WriteString(theme.pickerMuted.Render("No topics. Create one in the web client, then press r."))
	default:
		start := maxInt(0, m.picker.index-maxInt(5, m.height-16)+1)
		end := minInt(len(m.picker.topics), start+maxInt(5, m.height-16))
		for idx := start; idx < end; idx++ {
			topic := m.picker.topics[idx]
			prefix := "   "
			if idx == m.picker.index {
				prefix = ">> "
			}
			meta := string(topic.Status)
			if topic.RoundtableStatus != "" {
				meta += " · " + string(topic.RoundtableStatus)
			}
			line := fmt.Sprintf("%s%s  [%s]", prefix, compactSingleLine(topic.Title, innerWidth-len(meta)-8), meta)
			if idx == m.picker.index {
				options.WriteString(theme.pickerSelect.Render(line))
			} else {
				options.WriteString(theme.pickerOption.Render(line))
			}
			options.WriteString("\n")
		}
	}

	statusStyle := theme.pickerMuted
	if m.picker.err != nil {
		statusStyle = theme.errorStatus
	}
	body := strings.Join([]string{
		theme.pickerTitle.Render("Roundtable"),
		theme.pickerMuted.Render("Pick a topic to join the conversation"),
		"",
		strings.TrimRight(options.String(), "\n"),
		"",
		statusStyle.Render(compactSingleLine(m.picker.status, innerWidth)),
		theme.pickerMuted.Render("Keys: up/down choose | enter open | r reload | q quit"),
	}, "\n")

	panel := theme.pickerFrame.Width(contentWidth).Render(body)
	return lipgloss.Place(
		maxInt(contentWidth+2, m.width-2),
		maxInt(16, m.height-2),
		lipgloss.Center,
		lipgloss.Center,
		panel,
	)
}

func (m *Model) renderQuitModal() string {
	theme := m.deps.theme
	canvasWidth := maxInt(40, m.width-4)
	canvasHeight := maxInt(12, m.height-4)
	modalWidth := clampInt(int(float64(canvasWidth)*0.56), 32, 78)
	if modalWidth > canvasWidth-2 {
		modalWidth = canvasWidth - 2
	}

	body := strings.Join([]string{
		theme.errorStatus.Render("Quit roundtable?"),
		"",
		theme.pickerSelect.Render("[Y / Enter] Quit") + "    " + theme.helpText.Render("[N / Esc] Return"),
	}, "\n")
	panel := theme.pickerFrame.Width(modalWidth).Render(body)
	return lipgloss.Place(
		canvasWidth,
		canvasHeight,
		lipgloss.Center,
		lipgloss.Center,
		panel,
	)
}
