package termview

import (
	"strings"
	"testing"

	"github.com/obsidianstack/funnelstack/pkg/types"
	"github.com/obsidianstack/funnelstack/server/internal/funnel"
	"github.com/obsidianstack/funnelstack/server/internal/render"
)

func TestRender(t *testing.T) {
	resp, err := funnel.Build([]types.StageRecord{
		{Label: "Lead", Count: 1500, ACV: 1000000},
		{Label: "Won", Count: 300, ACV: 250000},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	out := Render(resp, render.ByCount)
	for _, want := range []string{"Stage", "Win Rate %", "Lead", "1,500", "1,200", "Won", "100%", "Total"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}

	out = Render(resp, render.ByACV)
	if !strings.Contains(out, "$750,000") {
		t.Errorf("acv table missing lost ACV:\n%s", out)
	}
}
