package irrigation_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-advisory/components/irrigation"
	"github.com/goliatone/go-advisory/pkg/remote"
)

func newPlanner(t *testing.T, handler http.Handler, fns ...irrigation.OptionFn) *irrigation.Planner {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := remote.New(server.URL)
	require.NoError(t, err)

	planner, err := irrigation.New(client, fns...)
	require.NoError(t, err)
	return planner
}

func fillValid(p *irrigation.Planner) {
	p.Set("cropType", "Sugarcane")
	p.Set("soilType", "Loam")
	p.Set("fieldSize", 2.5)
	p.Set("irrigationMethod", "Drip")
}

func TestPlan_RoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/irrigation-plan", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Loam", req["soilType"])
		assert.Equal(t, 2.5, req["fieldSize"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"frequency":   "Every 3 days",
			"waterAmount": "25 mm per session",
			"notes":       "Mulch between rows to <b>reduce</b> evaporation.",
		})
	})

	planner := newPlanner(t, mux)
	fillValid(planner)

	plan, err := planner.Plan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Every 3 days", plan.Frequency)
	assert.Equal(t, "25 mm per session", plan.WaterAmount)
	// Strict policy strips markup but keeps the text.
	assert.Equal(t, "Mulch between rows to reduce evaporation.", plan.Notes)

	items := plan.PanelItems()
	require.Len(t, items, 3)
	assert.Equal(t, "Frequency", items[0].Label)
	assert.Equal(t, "info", items[2].Tone)
}

func TestPlan_ValidationBlocksNetwork(t *testing.T) {
	var calls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/irrigation-plan", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	planner := newPlanner(t, mux)
	planner.Set("cropType", "Sugarcane")
	// soilType, fieldSize, irrigationMethod missing

	_, err := planner.Plan(context.Background())
	require.Error(t, err)
	assert.Equal(t, int64(0), calls.Load())
}

func TestPlan_RejectsUnknownSoilType(t *testing.T) {
	planner := newPlanner(t, http.NewServeMux())
	fillValid(planner)
	planner.Set("soilType", "Peat")

	_, err := planner.Plan(context.Background())
	assert.Error(t, err)
}

func TestPlan_MissingFrequencyRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/irrigation-plan", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"waterAmount": "20 mm"})
	})

	planner := newPlanner(t, mux)
	fillValid(planner)

	_, err := planner.Plan(context.Background())
	var schemaErr *remote.SchemaError
	assert.ErrorAs(t, err, &schemaErr)
}
