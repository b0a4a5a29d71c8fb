// Package termview renders the pipeline table for a terminal.
package termview

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/obsidianstack/funnelstack/pkg/types"
	"github.com/obsidianstack/funnelstack/server/internal/render"
)

var (
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	lostStyle   = cellStyle.Foreground(lipgloss.Color("#d32f2f"))
	movedStyle  = cellStyle.Foreground(lipgloss.Color("#2e7d32"))
	wonStyle    = cellStyle.Bold(true).Foreground(lipgloss.Color("#2e7d32"))
	totalStyle  = cellStyle.Bold(true)
)

// Render draws the stage table for measure m, totals row included.
func Render(resp types.PipelineResponse, m render.Measure) string {
	rows := render.Rows(resp, m)
	terminal := len(resp.Stages) - 1
	total := len(rows) - 1

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(render.Header...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			var s lipgloss.Style
			switch {
			case row == table.HeaderRow:
				s = headerStyle
			case row == total:
				s = totalStyle
			case row == terminal && col <= 1:
				s = wonStyle
			case col == 2:
				s = lostStyle
			case col == 3:
				s = movedStyle
			default:
				s = cellStyle
			}
			if col > 0 {
				s = s.Align(lipgloss.Right)
			}
			return s
		})
	return t.Render()
}
