package render

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/obsidianstack/funnelstack/pkg/types"
)

// ChartFormat is the image encoding of a rendered chart.
type ChartFormat string

const (
	SVG ChartFormat = "svg"
	PNG ChartFormat = "png"
)

// ParseChartFormat validates s. An empty string selects SVG.
func ParseChartFormat(s string) (ChartFormat, error) {
	switch ChartFormat(s) {
	case SVG, "":
		return SVG, nil
	case PNG:
		return PNG, nil
	default:
		return "", fmt.Errorf("render: unknown chart format %q: want svg|png", s)
	}
}

// ContentType is the MIME type of the format.
func (f ChartFormat) ContentType() string {
	if f == PNG {
		return "image/png"
	}
	return "image/svg+xml"
}

const (
	chartHeight = 480
	barWidth    = 60
	barSpacing  = 24
	minWidth    = 640
)

var (
	barColor      = drawing.ColorFromHex("4CAF50")
	terminalColor = drawing.ColorFromHex("2E7D32")
)

// Chart draws one bar per stage, labelled with the stage's win rate, and
// writes it to w. The title carries the overall win rate.
func Chart(w io.Writer, resp types.PipelineResponse, m Measure, f ChartFormat) error {
	if len(resp.Stages) == 0 {
		return fmt.Errorf("render: chart needs at least one stage")
	}

	maxV := 0.0
	bars := make([]chart.Value, 0, len(resp.Stages))
	for i, s := range resp.Stages {
		v := m.volume(s)
		if v > maxV {
			maxV = v
		}
		fill := barColor
		if i == len(resp.Stages)-1 {
			fill = terminalColor
		}
		bars = append(bars, chart.Value{
			Label: fmt.Sprintf("%s (%s)", s.Label, m.winRate(s)),
			Value: v,
			Style: chart.Style{FillColor: fill, StrokeColor: fill, StrokeWidth: 1},
		})
	}
	// A zero range makes go-chart refuse to render.
	if maxV <= 0 {
		maxV = 1
	}

	width := len(bars)*(barWidth+barSpacing) + 160
	if width < minWidth {
		width = minWidth
	}

	bc := chart.BarChart{
		Title:      fmt.Sprintf("Win rate by %s: %s", m, m.overall(resp.Summary)),
		Background: chart.Style{Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16}},
		Width:      width,
		Height:     chartHeight,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		YAxis: chart.YAxis{
			Range:          &chart.ContinuousRange{Min: 0, Max: maxV},
			ValueFormatter: axisFormatter(m),
		},
		Bars: bars,
	}

	rp := chart.SVG
	if f == PNG {
		rp = chart.PNG
	}
	if err := bc.Render(rp, w); err != nil {
		return fmt.Errorf("render: draw chart: %w", err)
	}
	return nil
}

func axisFormatter(m Measure) chart.ValueFormatter {
	return func(v interface{}) string {
		f, ok := v.(float64)
		if !ok {
			return fmt.Sprint(v)
		}
		if m == ByACV {
			return "$" + humanize.Comma(int64(f))
		}
		return humanize.Comma(int64(f))
	}
}
