package render

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/obsidianstack/funnelstack/pkg/types"
)

// Measure selects which volume a view is built from.
type Measure string

const (
	ByCount Measure = "count"
	ByACV   Measure = "acv"
)

// ParseMeasure validates s. An empty string selects ByCount.
func ParseMeasure(s string) (Measure, error) {
	switch Measure(s) {
	case ByCount, "":
		return ByCount, nil
	case ByACV:
		return ByACV, nil
	default:
		return "", fmt.Errorf("render: unknown measure %q: want count|acv", s)
	}
}

func (m Measure) volume(s types.EnrichedStage) float64 {
	if m == ByACV {
		return s.ACV
	}
	return float64(s.Count)
}

func (m Measure) winRate(s types.EnrichedStage) string {
	if m == ByACV {
		return s.WinRateByACV
	}
	return s.WinRateByCount
}

func (m Measure) overall(sum types.Summary) string {
	if m == ByACV {
		return sum.OverallWinRateByACV
	}
	return sum.OverallWinRateByCount
}

// cells returns the formatted incoming, lost and moved volumes of s.
func (m Measure) cells(s types.EnrichedStage) (in, lost, moved string) {
	if m == ByACV {
		return money(s.ACV), money(s.LostACV), money(s.MovedToNextACV)
	}
	return humanize.Comma(s.Count), humanize.Comma(s.LostCount), humanize.Comma(s.MovedToNextCount)
}

func (m Measure) totalLost(sum types.Summary) string {
	if m == ByACV {
		return money(sum.TotalLostACV)
	}
	return humanize.Comma(sum.TotalLostCount)
}

// money formats an ACV amount with a dollar sign and thousands separators.
func money(v float64) string {
	return "$" + humanize.CommafWithDigits(v, 2)
}
