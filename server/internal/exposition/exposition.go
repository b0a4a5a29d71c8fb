package exposition

import (
	"fmt"
	"io"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/obsidianstack/funnelstack/pkg/types"
)

// Metric names.
const (
	StageCount          = "funnel_stage_count"
	StageACV            = "funnel_stage_acv"
	StageLostCount      = "funnel_stage_lost_count"
	StageLostACV        = "funnel_stage_lost_acv"
	StageMovedCount     = "funnel_stage_moved_to_next_count"
	StageMovedACV       = "funnel_stage_moved_to_next_acv"
	StageWinRateCount   = "funnel_stage_win_rate_count_percent"
	StageWinRateACV     = "funnel_stage_win_rate_acv_percent"
	TotalLostCount      = "funnel_lost_count_total"
	TotalLostACV        = "funnel_lost_acv_total"
	OverallWinRateCount = "funnel_win_rate_count_percent"
	OverallWinRateACV   = "funnel_win_rate_acv_percent"
)

// Format is the exposition format written by Write.
var Format = expfmt.NewFormat(expfmt.TypeTextPlain)

// Families converts a derived pipeline into gauge metric families, in a stable
// order.
func Families(resp types.PipelineResponse) []*dto.MetricFamily {
	perStage := []struct {
		name, help string
		value      func(types.EnrichedStage) (float64, bool)
	}{
		{StageCount, "Deals that reached the stage.", func(s types.EnrichedStage) (float64, bool) { return float64(s.Count), true }},
		{StageACV, "Annual contract value that reached the stage.", func(s types.EnrichedStage) (float64, bool) { return s.ACV, true }},
		{StageLostCount, "Deals lost or disqualified at the stage.", func(s types.EnrichedStage) (float64, bool) { return float64(s.LostCount), true }},
		{StageLostACV, "ACV lost or disqualified at the stage.", func(s types.EnrichedStage) (float64, bool) { return s.LostACV, true }},
		{StageMovedCount, "Deals carried into the next stage.", func(s types.EnrichedStage) (float64, bool) { return float64(s.MovedToNextCount), true }},
		{StageMovedACV, "ACV carried into the next stage.", func(s types.EnrichedStage) (float64, bool) { return s.MovedToNextACV, true }},
		{StageWinRateCount, "Share of the stage's deals that were won, in percent.", func(s types.EnrichedStage) (float64, bool) { return types.ParsePercent(s.WinRateByCount) }},
		{StageWinRateACV, "Share of the stage's ACV that was won, in percent.", func(s types.EnrichedStage) (float64, bool) { return types.ParsePercent(s.WinRateByACV) }},
	}

	out := make([]*dto.MetricFamily, 0, len(perStage)+4)
	for _, def := range perStage {
		mf := newGauge(def.name, def.help)
		for _, s := range resp.Stages {
			if v, ok := def.value(s); ok {
				mf.Metric = append(mf.Metric, gaugeMetric(v, "stage", s.Label))
			}
		}
		out = append(out, mf)
	}

	sum := resp.Summary
	out = append(out,
		single(TotalLostCount, "Deals lost across all stages.", float64(sum.TotalLostCount)),
		single(TotalLostACV, "ACV lost across all stages.", sum.TotalLostACV),
	)
	if v, ok := types.ParsePercent(sum.OverallWinRateByCount); ok {
		out = append(out, single(OverallWinRateCount, "Top-of-funnel to won conversion by count, in percent.", v))
	}
	if v, ok := types.ParsePercent(sum.OverallWinRateByACV); ok {
		out = append(out, single(OverallWinRateACV, "Top-of-funnel to won conversion by ACV, in percent.", v))
	}
	return out
}

// Write encodes families to w in Format.
func Write(w io.Writer, families []*dto.MetricFamily) error {
	enc := expfmt.NewEncoder(w, Format)
	for _, mf := range families {
		if len(mf.Metric) == 0 {
			continue
		}
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("exposition: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

func newGauge(name, help string) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: &name,
		Help: &help,
		Type: dto.MetricType_GAUGE.Enum(),
	}
}

func single(name, help string, v float64) *dto.MetricFamily {
	mf := newGauge(name, help)
	mf.Metric = []*dto.Metric{gaugeMetric(v)}
	return mf
}

// gaugeMetric builds one sample; labels are name/value pairs.
func gaugeMetric(v float64, labels ...string) *dto.Metric {
	m := &dto.Metric{Gauge: &dto.Gauge{Value: &v}}
	for i := 0; i+1 < len(labels); i += 2 {
		name, value := labels[i], labels[i+1]
		m.Label = append(m.Label, &dto.LabelPair{Name: &name, Value: &value})
	}
	return m
}
