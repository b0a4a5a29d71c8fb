package types

import (
	"strconv"
	"strings"
)

// StageRecord is one funnel stage as read from a data source. Position in the
// surrounding slice defines funnel order, earliest first; the last record is
// the terminal ("Won") stage.
type StageRecord struct {
	Label string  `json:"label" yaml:"label" db:"label"`
	Count int64   `json:"count" yaml:"count" db:"count"`
	ACV   float64 `json:"acv" yaml:"acv" db:"acv"`
}

// EnrichedStage is a StageRecord plus the metrics derived from its position in
// the funnel.
type EnrichedStage struct {
	Label string  `json:"label"`
	Count int64   `json:"count"`
	ACV   float64 `json:"acv"`

	// WinRateByCount is the share of this stage's count that reaches the
	// terminal stage, formatted as "<int>%".
	WinRateByCount string `json:"winRateByCount"`
	WinRateByACV   string `json:"winRateByACV"`

	// LostCount is this stage's count minus the next stage's; 0 for the terminal stage.
	LostCount int64   `json:"lostCount"`
	LostACV   float64 `json:"lostACV"`

	// MovedToNextCount is the next stage's count; 0 for the terminal stage.
	MovedToNextCount int64   `json:"movedToNextCount"`
	MovedToNextACV   float64 `json:"movedToNextACV"`
}

// Summary aggregates losses across all stages. The overall win rates are the
// first stage's, i.e. top-of-funnel to close.
type Summary struct {
	TotalLostCount        int64   `json:"totalLostCount"`
	TotalLostACV          float64 `json:"totalLostACV"`
	OverallWinRateByCount string  `json:"overallWinRateByCount"`
	OverallWinRateByACV   string  `json:"overallWinRateByACV"`
}

// PipelineResponse is the payload for GET /api/pipeline.
type PipelineResponse struct {
	Stages  []EnrichedStage `json:"stages"`
	Summary Summary         `json:"summary"`
}

// ParsePercent converts a win-rate string such as "20%" back to its number.
// It reports false for values that carry no number (e.g. "n/a").
func ParsePercent(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil || !strings.HasSuffix(s, "%") {
		return 0, false
	}
	return v, true
}
