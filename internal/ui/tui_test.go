package ui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestModelViewShowsProgress(t *testing.T) {
	m := newIngestModel()
	m.styles = NoColorStyles()

	updated, _ := m.Update(progressMsg{
		Stage: "index documents", Collection: "cordis", Done: 50, Total: 100,
	})
	model := updated.(*ingestModel)

	view := model.View()
	assert.Contains(t, view, "cordis")
	assert.Contains(t, view, "index documents")
	assert.Contains(t, view, "50/100")
}

func TestIngestModelViewUnknownTotal(t *testing.T) {
	m := newIngestModel()
	m.styles = NoColorStyles()

	updated, _ := m.Update(progressMsg{
		Stage: "index documents", Collection: "cordis", Done: 1200, Total: -1,
	})

	assert.Contains(t, updated.(*ingestModel).View(), "1200 documents")
}

func TestIngestModelFinish(t *testing.T) {
	m := newIngestModel()
	m.styles = NoColorStyles()

	updated, cmd := m.Update(finishMsg{})
	require.NotNil(t, cmd, "finish should quit the program")
	assert.Contains(t, updated.(*ingestModel).View(), "done")

	updated, _ = m.Update(finishMsg{err: errors.New("boom")})
	assert.Contains(t, updated.(*ingestModel).View(), "failed: boom")
}

func TestIngestModelQuitKeys(t *testing.T) {
	m := newIngestModel()

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Contains(t, updated.(*ingestModel).View(), "Cancelled")
}

func TestIngestModelResizeClampsBar(t *testing.T) {
	m := newIngestModel()

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 30, Height: 10})
	assert.Equal(t, 20, updated.(*ingestModel).progressBar.Width)
}
