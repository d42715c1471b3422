package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fenilsonani/sortdir/internal/organizer"
	passprogress "github.com/fenilsonani/sortdir/internal/progress"
	"github.com/fenilsonani/sortdir/internal/reporter"
	"github.com/fenilsonani/sortdir/internal/ui/components"
	"github.com/fenilsonani/sortdir/internal/ui/styles"
	"github.com/fenilsonani/sortdir/internal/ui/utils"
	sizeutils "github.com/fenilsonani/sortdir/pkg/utils"
)

// RunFunc performs the pass the view is watching
type RunFunc func() (*organizer.RunSummary, error)

// ProgressMsg carries one update from the engine's progress reporter
type ProgressMsg struct {
	Progress *passprogress.Progress
}

// OrganizeDoneMsg is sent when the pass returns
type OrganizeDoneMsg struct {
	Summary *organizer.RunSummary
	Err     error
}

// OrganizeModel shows a running organization pass and its summary
type OrganizeModel struct {
	dir        string
	updates    <-chan interface{}
	run        RunFunc
	cancel     context.CancelFunc
	spinner    spinner.Model
	bar        progress.Model
	current    *passprogress.Progress
	summary    *organizer.RunSummary
	err        error
	width      int
	done       bool
	cancelling bool
}

// NewOrganizeModel creates the view. updates is a subscription to the
// engine's progress reporter; cancel aborts the context run is bound to.
func NewOrganizeModel(dir string, updates <-chan interface{}, cancel context.CancelFunc, run RunFunc) *OrganizeModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SelectedStyle

	return &OrganizeModel{
		dir:     dir,
		updates: updates,
		run:     run,
		cancel:  cancel,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		width:   utils.DefaultTerminalWidth,
	}
}

// Init starts the pass and the progress listener
func (m *OrganizeModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.waitForUpdate,
		m.performRun,
	)
}

// Update handles messages
func (m *OrganizeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.done {
				return m, tea.Quit
			}
			if !m.cancelling && m.cancel != nil {
				m.cancelling = true
				m.cancel()
			}
		case "q", "enter", "esc":
			if m.done {
				return m, tea.Quit
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = max(msg.Width, utils.MinTerminalWidth)
		m.bar.Width = min(m.width-4, 60)
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ProgressMsg:
		if msg.Progress != nil {
			m.current = msg.Progress
		}
		if m.done {
			return m, nil
		}
		return m, m.waitForUpdate

	case OrganizeDoneMsg:
		m.done = true
		m.summary = msg.Summary
		m.err = msg.Err
		return m, nil
	}

	return m, nil
}

// View renders the current state
func (m *OrganizeModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("Organizing " + utils.TruncatePath(m.dir, m.width-12)))
	b.WriteString("\n")

	if !m.done {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(passprogress.FormatProgress(m.current))
		b.WriteString("\n\n")

		if m.current != nil && m.current.Total > 0 {
			b.WriteString(m.bar.ViewAs(float64(m.current.Done) / float64(m.current.Total)))
			b.WriteString("\n")
			if m.current.CurrentFile != "" {
				b.WriteString(styles.FilePathStyle.Render(utils.TruncatePath(m.current.CurrentFile, m.width-4)))
				b.WriteString("\n")
			}
		}

		b.WriteString("\n")
		if m.cancelling {
			b.WriteString(styles.WarningStyle.Render("Cancelling, waiting for in-flight moves..."))
		} else {
			b.WriteString(styles.HelpStyle.Render("Press ctrl+c to cancel"))
		}
		return b.String()
	}

	m.renderSummary(&b)
	b.WriteString("\n\n")
	b.WriteString(styles.HelpStyle.Render("Press q or enter to exit"))
	return b.String()
}

func (m *OrganizeModel) renderSummary(b *strings.Builder) {
	if m.summary == nil {
		b.WriteString(styles.ErrorStyle.Render(fmt.Sprintf("✗ %v", m.err)))
		return
	}

	verb := "Moved"
	if m.summary.DryRun {
		verb = "Would move"
	}
	b.WriteString(styles.SuccessStyle.Render(fmt.Sprintf("✓ %s %d files (%s)",
		verb, m.summary.Moved, sizeutils.FormatBytes(m.summary.TotalBytes()))))
	b.WriteString("\n\n")

	b.WriteString(styles.PanelStyle.Render(components.CategoryChart(reporter.Breakdown(m.summary), m.width-4)))
	b.WriteString("\n")

	if m.summary.DuplicateGroups > 0 {
		b.WriteString(styles.DimStyle.Render(fmt.Sprintf("%d duplicate groups found", m.summary.DuplicateGroups)))
		b.WriteString("\n")
	}
	if m.summary.Failed > 0 {
		b.WriteString(styles.WarningStyle.Render(fmt.Sprintf("⚠ %d files could not be moved", m.summary.Failed)))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(styles.ErrorStyle.Render(fmt.Sprintf("✗ %v", m.err)))
		b.WriteString("\n")
	}
}

// Result returns what the pass returned, once it has finished
func (m *OrganizeModel) Result() (*organizer.RunSummary, error) {
	if !m.done {
		return nil, context.Canceled
	}
	return m.summary, m.err
}

// Done reports whether the pass has returned
func (m *OrganizeModel) Done() bool {
	return m.done
}

func (m *OrganizeModel) performRun() tea.Msg {
	summary, err := m.run()
	return OrganizeDoneMsg{Summary: summary, Err: err}
}

// waitForUpdate blocks for the next published value. Values other than
// progress snapshots still re-arm the listener.
func (m *OrganizeModel) waitForUpdate() tea.Msg {
	v, ok := <-m.updates
	if !ok {
		return nil
	}
	p, _ := v.(*passprogress.Progress)
	return ProgressMsg{Progress: p}
}
