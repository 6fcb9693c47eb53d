package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Iron-Ham/fabricctl/internal/orchestrator"
	"github.com/Iron-Ham/fabricctl/internal/step"
	"github.com/Iron-Ham/fabricctl/internal/tui/styles"
	"github.com/Iron-Ham/fabricctl/internal/util"
)

// defaultWidth is used until the terminal reports its size.
const defaultWidth = 80

// maxListedFiles bounds the file names shown in the header.
const maxListedFiles = 3

// View renders the current run state.
func (m Model) View() string {
	width := m.width
	if width <= 0 {
		width = defaultWidth
	}
	st := m.state

	var b strings.Builder
	b.WriteString(styles.Title.Render("Knowledge Fabric"))
	b.WriteString("\n")
	if len(st.Files) > 0 {
		files := fmt.Sprintf("%d file(s): %s", len(st.Files), util.FileList(st.Files, maxListedFiles))
		b.WriteString(styles.Subtitle.Render(util.TruncateANSI(files, width-2)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(m.bar.ViewAs(st.Overall / 100))
	b.WriteString(" ")
	b.WriteString(styles.Percent.Render(util.FormatPercent(st.Overall)))
	b.WriteString("\n\n")

	for _, s := range st.Steps {
		b.WriteString(m.renderStep(s, width))
	}

	if st.Degraded() && !st.Phase.IsTerminal() {
		b.WriteString(styles.WarningMsg.Render("⚠ The backend returned no job id; showing local progress only."))
		b.WriteString("\n")
	}
	b.WriteString(m.renderOutcome(width))

	if !m.finished && !m.interrupted {
		help := styles.HelpKey.Render(m.keys.Quit.Help().Key) + " " + m.keys.Quit.Help().Desc
		b.WriteString(styles.HelpBar.Render(help))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderStep(s step.Step, width int) string {
	icon := styles.StatusStyle(s.Status).Render(styles.StatusIcon(s.Status))
	title := styles.StageTitle.Render(s.Title)
	if s.Status == step.StatusProcessing {
		icon = m.spinner.View()
		title = styles.StageTitleActive.Render(s.Title)
	}

	line := fmt.Sprintf("  %s %s", icon, title)
	if s.Status == step.StatusProcessing {
		line += " " + styles.Percent.Render(util.FormatPercent(s.Progress))
	}
	out := util.TruncateANSI(line, width) + "\n"

	switch {
	case s.Status == step.StatusError && s.Error != "":
		out += util.TruncateANSI(styles.StageError.Render(s.Error), width) + "\n"
	case s.Status == step.StatusProcessing && s.Description != "":
		out += util.TruncateANSI(styles.StageDescription.Render(s.Description), width) + "\n"
	}
	return out
}

func (m Model) renderOutcome(width int) string {
	st := m.state
	var msg string
	switch {
	case m.interrupted || st.Phase == orchestrator.PhaseStopped:
		msg = styles.WarningMsg.Render("Cancelled.")
	case st.Phase == orchestrator.PhaseFailed:
		msg = styles.ErrorMsg.Render("✗ " + st.Message)
	case st.Phase == orchestrator.PhaseCompleted:
		msg = styles.SuccessMsg.Render("✓ Knowledge fabric ready: " + st.FabricID)
	case st.Phase == orchestrator.PhaseFinalizing:
		msg = styles.SuccessMsg.Render("Finalizing...")
	default:
		return ""
	}
	return util.TruncateANSI(msg, width) + "\n"
}

// Summary renders the stages of st as a table, for printing once a run has
// ended.
func Summary(st orchestrator.RunState) string {
	rows := make([][]string, 0, len(st.Steps))
	for _, s := range st.Steps {
		detail := s.Error
		if detail == "" && s.Status == step.StatusPending && st.Phase == orchestrator.PhaseFailed {
			detail = "not reached"
		}
		rows = append(rows, []string{
			s.Title,
			styles.StatusIcon(s.Status) + " " + s.Status.String(),
			util.FormatPercent(s.Progress),
			detail,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styles.TableBorder).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.TableHeader
			}
			if col == 1 && row >= 0 && row < len(st.Steps) {
				return styles.TableCell.Foreground(styles.StatusColor(st.Steps[row].Status))
			}
			return styles.TableCell
		}).
		Headers("Stage", "Status", "Progress", "Detail").
		Rows(rows...)

	return t.String()
}
