package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	assistant "github.com/koscakluka/ema-assistant/core"
	"github.com/koscakluka/ema-assistant/core/actions"
	"github.com/koscakluka/ema-assistant/core/intent"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	stateStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	replyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	resultsStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)

	stateColors = map[assistant.State]lipgloss.Color{
		assistant.StateIdle:      lipgloss.Color("241"),
		assistant.StateListening: lipgloss.Color("42"),
		assistant.StateThinking:  lipgloss.Color("214"),
		assistant.StateSpeaking:  lipgloss.Color("39"),
		assistant.StateError:     lipgloss.Color("196"),
	}
)

type (
	stateMsg      assistant.State
	transcriptMsg struct{ final, interim string }
	replyMsg      string
	statusMsg     string
	resultsMsg    []intent.MediaResult
	brightnessMsg int
	timerMsg      actions.Timer
)

// terminalUI forwards assistant callbacks into a bubbletea program.
// Callbacks arriving before the program starts are dropped.
type terminalUI struct {
	mu      sync.Mutex
	program *tea.Program
}

func newTerminalUI() *terminalUI { return &terminalUI{} }

func (u *terminalUI) send(msg tea.Msg) {
	u.mu.Lock()
	program := u.program
	u.mu.Unlock()
	if program != nil {
		program.Send(msg)
	}
}

func (u *terminalUI) StateChanged(_, to assistant.State)       { u.send(stateMsg(to)) }
func (u *terminalUI) Transcript(final, interim string)         { u.send(transcriptMsg{final, interim}) }
func (u *terminalUI) Reply(text string)                        { u.send(replyMsg(text)) }
func (u *terminalUI) Status(status string)                     { u.send(statusMsg(status)) }
func (u *terminalUI) ShowResults(results []intent.MediaResult) { u.send(resultsMsg(results)) }
func (u *terminalUI) SetBrightness(level int)                  { u.send(brightnessMsg(level)) }
func (u *terminalUI) TimerExpired(timer actions.Timer)         { u.send(timerMsg(timer)) }

func (u *terminalUI) Run(ctx context.Context, c controls) error {
	program := tea.NewProgram(newModel(c), tea.WithAltScreen(), tea.WithContext(ctx))
	u.mu.Lock()
	u.program = program
	u.mu.Unlock()

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("terminal ui: %w", err)
	}
	return nil
}

type model struct {
	controls controls

	state      assistant.State
	final      string
	interim    string
	reply      string
	status     string
	results    []intent.MediaResult
	brightness int
	alerts     []string

	spinner spinner.Model
	input   textinput.Model
	width   int
}

func newModel(c controls) model {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))

	input := textinput.New()
	input.Placeholder = "type a request, or press enter to talk"
	input.CharLimit = 500
	input.Focus()

	return model{controls: c, spinner: s, input: input, brightness: actions.DefaultBrightness, width: 80}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEsc:
			m.controls.Stop()
			return m, nil
		case tea.KeyEnter:
			if text := strings.TrimSpace(m.input.Value()); text != "" {
				m.controls.SubmitPrompt(text)
				m.input.SetValue("")
			} else {
				m.controls.Activate()
			}
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-4, 10)
		return m, nil
	case stateMsg:
		m.state = assistant.State(msg)
		if m.state == assistant.StateListening {
			m.final, m.interim, m.status = "", "", ""
		}
		return m, nil
	case transcriptMsg:
		m.final, m.interim = msg.final, msg.interim
		return m, nil
	case replyMsg:
		m.reply = string(msg)
		return m, nil
	case statusMsg:
		m.status = string(msg)
		return m, nil
	case resultsMsg:
		m.results = msg
		return m, nil
	case brightnessMsg:
		m.brightness = int(msg)
		return m, nil
	case timerMsg:
		label := msg.Label
		if label == "" {
			label = "timer"
		}
		m.alerts = append(m.alerts, fmt.Sprintf("%s finished at %s", label, msg.ExpiresAt.Format("15:04:05")))
		if len(m.alerts) > 3 {
			m.alerts = m.alerts[len(m.alerts)-3:]
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	width := max(m.width-2, 20)
	var b strings.Builder

	badge := stateStyle.Background(stateColors[m.state]).Render(strings.ToUpper(m.state.String()))
	b.WriteString(titleStyle.Render("ema") + " " + badge)
	if m.state == assistant.StateListening || m.state == assistant.StateThinking {
		b.WriteString(" " + m.spinner.View())
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("  brightness %d%%", m.brightness)))
	b.WriteString("\n\n")

	if m.final != "" || m.interim != "" {
		b.WriteString(wordwrap.String(m.final+" "+dimStyle.Render(m.interim), width))
		b.WriteString("\n\n")
	}
	if m.reply != "" {
		b.WriteString(replyStyle.Render(wordwrap.String(m.reply, width)))
		b.WriteString("\n\n")
	}
	if m.status != "" {
		b.WriteString(statusStyle.Render(wordwrap.String(m.status, width)))
		b.WriteString("\n\n")
	}

	if len(m.results) > 0 {
		lines := make([]string, 0, len(m.results))
		for i, r := range m.results {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, r.Title))
		}
		b.WriteString(resultsStyle.Width(width - 2).Render(strings.Join(lines, "\n")))
		b.WriteString("\n\n")
	}
	for _, alert := range m.alerts {
		b.WriteString(statusStyle.Render("⏰ "+alert) + "\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n" + dimStyle.Render("enter: talk or send  esc: stop  ctrl+c: quit"))
	return b.String()
}
