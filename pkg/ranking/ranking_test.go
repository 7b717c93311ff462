package ranking_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/goliatone/go-advisory/pkg/ranking"
)

func TestRows_PreservesBackendOrder(t *testing.T) {
	list, err := ranking.New([]ranking.Entry{
		{Label: "Rice", Confidence: 82},
		{Label: "Sugarcane", Confidence: 61},
		{Label: "Cotton", Confidence: 75}, // non-monotonic on purpose
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	want := []ranking.Row{
		{Rank: 1, Label: "Rice", Confidence: 82},
		{Rank: 2, Label: "Sugarcane", Confidence: 61},
		{Rank: 3, Label: "Cotton", Confidence: 75},
	}
	if diff := cmp.Diff(want, list.Rows()); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestNew_RejectsOutOfRangeConfidence(t *testing.T) {
	if _, err := ranking.New([]ranking.Entry{{Label: "Urea", Confidence: 104}}); err == nil {
		t.Fatal("confidence above 100 accepted")
	}
	if _, err := ranking.New([]ranking.Entry{{Label: "Urea", Confidence: -1}}); err == nil {
		t.Fatal("negative confidence accepted")
	}
}

func TestParse(t *testing.T) {
	raw := json.RawMessage(`[
		{"fertilizer": "Urea", "probability": 91.5},
		{"fertilizer": "DAP", "probability": 64}
	]`)

	list, err := ranking.Parse(raw, "fertilizer", "probability", zap.NewNop())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rows := list.Rows()
	if len(rows) != 2 || rows[0].Label != "Urea" || rows[0].Confidence != 91.5 {
		t.Errorf("rows = %+v", rows)
	}
}

func TestParse_RejectsMalformedEntries(t *testing.T) {
	cases := map[string]string{
		"missing label":          `[{"probability": 50}]`,
		"missing confidence":     `[{"fertilizer": "Urea"}]`,
		"non numeric confidence": `[{"fertilizer": "Urea", "probability": "high"}]`,
		"not an array":           `{"fertilizer": "Urea"}`,
		"out of range":           `[{"fertilizer": "Urea", "probability": 250}]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ranking.Parse(json.RawMessage(raw), "fertilizer", "probability", nil); err == nil {
				t.Fatal("malformed payload accepted")
			}
		})
	}
}

func TestBar(t *testing.T) {
	if got := ranking.Bar(50, 10); got != "█████░░░░░" {
		t.Errorf("Bar(50, 10) = %q", got)
	}
	if got := ranking.Bar(0, 4); got != "░░░░" {
		t.Errorf("Bar(0, 4) = %q", got)
	}
	if got := ranking.Bar(100, 4); got != "████" {
		t.Errorf("Bar(100, 4) = %q", got)
	}
}
