package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer renders ingestion progress with bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *ingestModel
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer.
func NewTUIRenderer(cfg Config) *TUIRenderer {
	model := newIngestModel()
	if cfg.NoColor {
		model.styles = NoColorStyles()
	}
	return &TUIRenderer{
		cfg:   cfg,
		model: model,
		done:  make(chan struct{}),
	}
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	var opts []tea.ProgramOption
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// Update implements Renderer.
func (r *TUIRenderer) Update(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program != nil {
		r.program.Send(progressMsg(event))
	}
}

// Finish implements Renderer.
func (r *TUIRenderer) Finish(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program == nil {
		return
	}
	r.program.Send(finishMsg{err: err})

	// Bounded wait so an unresponsive terminal never wedges the CLI.
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
}

// Message types for bubbletea.
type progressMsg Event
type finishMsg struct{ err error }

// ingestModel is the bubbletea model for ingestion progress.
type ingestModel struct {
	event    Event
	err      error
	finished bool
	quitting bool

	width       int
	spinner     spinner.Model
	progressBar progress.Model
	styles      Styles
}

func newIngestModel() *ingestModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	p := progress.New(
		progress.WithSolidFill(ColorLime),
		progress.WithWidth(50),
		progress.WithoutPercentage(),
	)

	return &ingestModel{
		spinner:     s,
		progressBar: p,
		styles:      DefaultStyles(),
		width:       80,
	}
}

// Init implements tea.Model.
func (m *ingestModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *ingestModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progressBar.Width = msg.Width - 20
		if m.progressBar.Width < 20 {
			m.progressBar.Width = 20
		}

	case progressMsg:
		m.event = Event(msg)
		return m, nil

	case finishMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m *ingestModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.finished {
		if m.err != nil {
			return m.styles.Error.Render(fmt.Sprintf("failed: %v", m.err)) + "\n"
		}
		return m.styles.Success.Render("done") + "\n"
	}
	if m.event.Stage == "" {
		return m.spinner.View() + " starting\n"
	}

	var b strings.Builder
	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(m.styles.Header.Render(m.event.Collection))
	b.WriteString("  ")
	b.WriteString(m.styles.Stage.Render(m.event.Stage))
	b.WriteString("\n")

	if m.event.Total > 0 {
		ratio := float64(m.event.Done) / float64(m.event.Total)
		b.WriteString(m.progressBar.ViewAs(ratio))
		b.WriteString(fmt.Sprintf(" %d/%d", m.event.Done, m.event.Total))
	} else {
		b.WriteString(m.styles.Active.Render(fmt.Sprintf("%d documents", m.event.Done)))
	}
	b.WriteString("\n")
	return b.String()
}
