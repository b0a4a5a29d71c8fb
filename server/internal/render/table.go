package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/obsidianstack/funnelstack/pkg/types"
)

// Header is the column header row shared by every table view.
var Header = []string{
	"Stage",
	"Came to Stage",
	"Lost/Disqualified from Stage",
	"Moved to next stage",
	"Win Rate %",
}

// Rows returns one row per stage followed by the totals row. Cells are already
// formatted for display.
func Rows(resp types.PipelineResponse, m Measure) [][]string {
	rows := make([][]string, 0, len(resp.Stages)+1)
	for _, s := range resp.Stages {
		in, lost, moved := m.cells(s)
		rows = append(rows, []string{s.Label, in, lost, moved, m.winRate(s)})
	}
	rows = append(rows, []string{"Total", "-", m.totalLost(resp.Summary), "-", "-"})
	return rows
}

// TSV renders the stage rows tab-separated with no header or totals row, the
// format the dashboard copies to the clipboard.
func TSV(resp types.PipelineResponse, m Measure) string {
	lines := make([]string, 0, len(resp.Stages))
	for _, s := range resp.Stages {
		in, lost, moved := m.cells(s)
		lines = append(lines, strings.Join([]string{s.Label, in, lost, moved, m.winRate(s)}, "\t"))
	}
	return strings.Join(lines, "\n")
}

// Markdown renders a titled GFM table including the totals row.
func Markdown(resp types.PipelineResponse, m Measure) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Pipeline by %s\n\n", m)
	fmt.Fprintf(&b, "Overall win rate: **%s**\n\n", m.overall(resp.Summary))

	writeRow(&b, Header)
	b.WriteString("|---|---:|---:|---:|---:|\n")
	for _, row := range Rows(resp, m) {
		writeRow(&b, row)
	}
	return b.String()
}

// HTML converts the Markdown view to an HTML fragment.
func HTML(resp types.PipelineResponse, m Measure) (string, error) {
	var buf bytes.Buffer
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(Markdown(resp, m)), &buf); err != nil {
		return "", fmt.Errorf("render: markdown convert: %w", err)
	}
	return buf.String(), nil
}

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, c := range cells {
		b.WriteString(" ")
		b.WriteString(strings.ReplaceAll(c, "|", `\|`))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}
