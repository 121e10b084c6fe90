package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/harvester/internal/domain"
)

// Message types for the TUI

// EventMsg carries one harvest update
type EventMsg Event

// DoneMsg signals that the harvest has returned
type DoneMsg struct {
	Result domain.HarvestResult
	Err    error
}

// waitForEvent returns a command that reads the next update from the channel.
// A closed channel yields no message, ending the listen loop.
func waitForEvent(events <-chan Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return EventMsg(ev)
	}
}
