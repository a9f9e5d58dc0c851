package main

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	assistant "github.com/koscakluka/ema-assistant/core"
	"github.com/koscakluka/ema-assistant/core/intent"
)

type recordedControls struct {
	activations int
	stops       int
	prompts     []string
}

func (c *recordedControls) Activate()                { c.activations++ }
func (c *recordedControls) Stop()                    { c.stops++ }
func (c *recordedControls) SubmitPrompt(text string) { c.prompts = append(c.prompts, text) }

func update(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(model)
}

func TestEnterActivatesOrSubmits(t *testing.T) {
	c := &recordedControls{}
	m := newModel(c)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if c.activations != 1 {
		t.Fatalf("expected empty enter to activate, got %d activations", c.activations)
	}

	m.input.SetValue("pause karo")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if len(c.prompts) != 1 || c.prompts[0] != "pause karo" {
		t.Fatalf("unexpected prompts %v", c.prompts)
	}
	if m.input.Value() != "" {
		t.Fatalf("expected input to be cleared")
	}

	update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if c.stops != 1 {
		t.Fatalf("expected esc to stop")
	}
}

func TestViewShowsStateReplyAndResults(t *testing.T) {
	m := newModel(&recordedControls{})
	m = update(t, m, stateMsg(assistant.StateSpeaking))
	m = update(t, m, replyMsg("Here is some lofi"))
	m = update(t, m, resultsMsg([]intent.MediaResult{{ID: "a", Title: "Lofi one"}}))

	view := m.View()
	for _, want := range []string{"SPEAKING", "Here is some lofi", "1. Lofi one"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected view to contain %q:\n%s", want, view)
		}
	}
}

func TestListeningClearsPreviousTurn(t *testing.T) {
	m := newModel(&recordedControls{})
	m = update(t, m, transcriptMsg{final: "old", interim: "text"})
	m = update(t, m, statusMsg("failed"))
	m = update(t, m, stateMsg(assistant.StateListening))

	if m.final != "" || m.interim != "" || m.status != "" {
		t.Fatalf("expected a clean slate, got %+v", m)
	}
}
