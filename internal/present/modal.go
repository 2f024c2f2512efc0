package present

import (
	"context"
	"errors"
	"sync"
)

var ErrModalClosed = errors.New("modal already acknowledged")

// Acknowledger is the controller that owns a modal's result.
type Acknowledger interface {
	Acknowledge() error
}

// Modal is the blocking outcome prompt. Acknowledging it resets the owner
// exactly once.
type Modal struct {
	owner Acknowledger
	text  string

	mu   sync.Mutex
	open bool
}

func Open(owner Acknowledger, text string) *Modal {
	return &Modal{owner: owner, text: text, open: true}
}

func (m *Modal) Text() string { return m.text }

func (m *Modal) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

func (m *Modal) Acknowledge() error {
	m.mu.Lock()
	if !m.open {
		m.mu.Unlock()
		return ErrModalClosed
	}
	m.open = false
	m.mu.Unlock()
	return m.owner.Acknowledge()
}

// Await blocks until a line arrives on lines, then acknowledges. A closed
// line source acknowledges too since no further input can come.
func (m *Modal) Await(ctx context.Context, lines <-chan string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-lines:
		return m.Acknowledge()
	}
}
