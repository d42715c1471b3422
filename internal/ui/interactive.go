package ui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fenilsonani/sortdir/internal/organizer"
	"github.com/fenilsonani/sortdir/internal/ui/models"
)

// RunOrganize runs one organization pass behind the interactive progress view
// and returns its result once the user leaves the summary screen
func RunOrganize(ctx context.Context, engine *organizer.Engine, dir string) (*organizer.RunSummary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := engine.Progress().Subscribe()
	defer engine.Progress().Unsubscribe(updates)

	m := models.NewOrganizeModel(dir, updates, cancel, func() (*organizer.RunSummary, error) {
		return engine.Organize(ctx, dir)
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("error running interactive mode: %w", err)
	}

	return final.(*models.OrganizeModel).Result()
}
