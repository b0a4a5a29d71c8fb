package funnel

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/obsidianstack/funnelstack/pkg/types"
)

// ErrInvalidInput is returned when the stage sequence cannot be derived,
// i.e. when it is empty and there is no terminal stage.
var ErrInvalidInput = errors.New("funnel: invalid input")

// NotApplicable is the win-rate string reported for a stage whose own volume is
// zero, where the ratio has no meaningful value.
const NotApplicable = "n/a"

var hundred = decimal.NewFromInt(100)

// Derive enriches every stage with win rates, losses and forward movement.
// The input slice is not modified.
func Derive(stages []types.StageRecord) ([]types.EnrichedStage, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("%w: stage sequence is empty", ErrInvalidInput)
	}

	terminal := stages[len(stages)-1]
	out := make([]types.EnrichedStage, 0, len(stages))

	for i, s := range stages {
		e := types.EnrichedStage{
			Label:          s.Label,
			Count:          s.Count,
			ACV:            s.ACV,
			WinRateByCount: WinRate(float64(terminal.Count), float64(s.Count)),
			WinRateByACV:   WinRate(terminal.ACV, s.ACV),
		}
		if i+1 < len(stages) {
			next := stages[i+1]
			e.LostCount = s.Count - next.Count
			e.LostACV = subACV(s.ACV, next.ACV)
			e.MovedToNextCount = next.Count
			e.MovedToNextACV = next.ACV
		}
		out = append(out, e)
	}
	return out, nil
}

// Summarize totals the per-stage losses and takes the overall win rates from
// the first stage. An empty slice yields a zero Summary.
func Summarize(enriched []types.EnrichedStage) types.Summary {
	var sum types.Summary
	if len(enriched) == 0 {
		return sum
	}

	lostACV := decimal.Zero
	for _, e := range enriched {
		sum.TotalLostCount += e.LostCount
		lostACV = lostACV.Add(decimal.NewFromFloat(e.LostACV))
	}
	sum.TotalLostACV = lostACV.InexactFloat64()
	sum.OverallWinRateByCount = enriched[0].WinRateByCount
	sum.OverallWinRateByACV = enriched[0].WinRateByACV
	return sum
}

// Build runs Derive and Summarize and assembles the API response.
func Build(stages []types.StageRecord) (types.PipelineResponse, error) {
	enriched, err := Derive(stages)
	if err != nil {
		return types.PipelineResponse{}, err
	}
	return types.PipelineResponse{
		Stages:  enriched,
		Summary: Summarize(enriched),
	}, nil
}

// WinRate formats won/volume as a whole percentage, rounding half away from
// zero. A zero volume yields NotApplicable.
func WinRate(won, volume float64) string {
	pct, ok := Percent(won, volume)
	if !ok {
		return NotApplicable
	}
	return pct.String() + "%"
}

// Percent returns round(num / den * 100). It reports false when den is zero.
func Percent(num, den float64) (decimal.Decimal, bool) {
	if den == 0 {
		return decimal.Zero, false
	}
	d := decimal.NewFromFloat(num).Div(decimal.NewFromFloat(den)).Mul(hundred)
	return d.Round(0), true
}

// subACV subtracts in decimal so that e.g. 0.3 - 0.1 stays 0.2.
func subACV(a, b float64) float64 {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).InexactFloat64()
}
