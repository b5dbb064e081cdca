package app

import (
	"context"

	"github.com/Faultbox/liverscope/internal/engine/input"
)

// Screen is one thing the window can show: a local model or a result.
type Screen interface {
	// Enter is called when the screen becomes current.
	Enter(ctx context.Context) error

	// Exit is called when leaving the screen.
	Exit() error

	// Update is called every frame on the render thread.
	Update() error

	// HandleEvent processes one input event the app did not consume.
	HandleEvent(ctx context.Context, e input.Event) error
}

// Manager manages screen transitions.
type Manager struct {
	current Screen
	next    Screen
}

// NewManager creates a new screen manager.
func NewManager() *Manager {
	return &Manager{}
}

// Current returns the current screen.
func (m *Manager) Current() Screen {
	return m.current
}

// Change schedules a screen change for the next Update.
func (m *Manager) Change(next Screen) {
	m.next = next
}

// Update processes screen changes and updates the current screen.
func (m *Manager) Update(ctx context.Context) error {
	if m.next != nil {
		if m.current != nil {
			if err := m.current.Exit(); err != nil {
				return err
			}
		}
		m.current = m.next
		m.next = nil
		if err := m.current.Enter(ctx); err != nil {
			return err
		}
	}

	if m.current != nil {
		return m.current.Update()
	}
	return nil
}

// HandleEvent forwards e to the current screen.
func (m *Manager) HandleEvent(ctx context.Context, e input.Event) error {
	if m.current != nil {
		return m.current.HandleEvent(ctx, e)
	}
	return nil
}

// Close exits the current screen.
func (m *Manager) Close() error {
	m.next = nil
	if m.current == nil {
		return nil
	}
	err := m.current.Exit()
	m.current = nil
	return err
}
