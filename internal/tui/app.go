package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the progress view of src on out until the run reaches a terminal
// phase, the user cancels it, or ctx ends. It returns the final model.
func Run(ctx context.Context, src Source, refresh time.Duration, in io.Reader, out io.Writer) (Model, error) {
	opts := []tea.ProgramOption{
		tea.WithContext(ctx),
		tea.WithOutput(out),
	}
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}
	p := tea.NewProgram(NewModel(src, refresh), opts...)

	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, context.Canceled) {
			src.Stop()
		}
		return NewModel(src, refresh), fmt.Errorf("progress view: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return NewModel(src, refresh), fmt.Errorf("progress view: unexpected model %T", final)
	}
	return m, nil
}
