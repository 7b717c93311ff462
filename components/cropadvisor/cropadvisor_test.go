package cropadvisor_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-advisory/components/cropadvisor"
	"github.com/goliatone/go-advisory/pkg/remote"
	"github.com/goliatone/go-advisory/pkg/submit"
)

func fixedLocator(lat, lon float64) cropadvisor.Locator {
	return cropadvisor.LocatorFunc(func(context.Context) (cropadvisor.Coordinates, error) {
		return cropadvisor.Coordinates{Latitude: lat, Longitude: lon}, nil
	})
}

func newFlow(t *testing.T, handler http.Handler, locator cropadvisor.Locator, fns ...cropadvisor.OptionFn) *cropadvisor.Flow {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := remote.New(server.URL)
	require.NoError(t, err)

	flow, err := cropadvisor.New(client, locator, fns...)
	require.NoError(t, err)
	return flow
}

func TestNew_SeedsContractDefaults(t *testing.T) {
	flow := newFlow(t, http.NewServeMux(), nil)

	n, err := flow.State().GetNumber("Nitrogen")
	require.NoError(t, err)
	assert.Equal(t, 85.0, n)
	ph, err := flow.State().GetNumber("pH")
	require.NoError(t, err)
	assert.Equal(t, 7.0, ph)
	assert.Equal(t, "Black", flow.State().GetString("Soil_color"))
}

func TestUseLocation_RefinesDefaults(t *testing.T) {
	mux := http.NewServeMux()
	var seen atomic.Value
	mux.HandleFunc("/get_all_defaults", func(w http.ResponseWriter, r *http.Request) {
		var coords cropadvisor.Coordinates
		require.NoError(t, json.NewDecoder(r.Body).Decode(&coords))
		seen.Store(coords)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Nitrogen":   92.0,
			"Rainfall":   780.0,
			"Soil_color": "Red",
			"ignored":    "value",
		})
	})

	flow := newFlow(t, mux, fixedLocator(16.7, 74.24))

	coords, err := flow.UseLocation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 16.7, coords.Latitude)
	flow.Flush()

	got, ok := seen.Load().(cropadvisor.Coordinates)
	require.True(t, ok)
	assert.InDelta(t, 74.24, got.Longitude, 1e-6)

	n, err := flow.State().GetNumber("Nitrogen")
	require.NoError(t, err)
	assert.Equal(t, 92.0, n)
	assert.Equal(t, "Red", flow.State().GetString("Soil_color"))

	// Fields the payload did not carry keep their contract defaults.
	p, err := flow.State().GetNumber("Phosphorus")
	require.NoError(t, err)
	assert.Equal(t, 50.0, p)

	// Unknown payload keys never reach the state.
	_, ok = flow.State().Get("ignored")
	assert.False(t, ok)
}

func TestUseLocation_WithoutLocator(t *testing.T) {
	flow := newFlow(t, http.NewServeMux(), nil)
	_, err := flow.UseLocation(context.Background())
	assert.Error(t, err)
}

func TestSubmit_RanksCrops(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/predict", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 85.0, req["Nitrogen"])
		assert.Equal(t, "Black", req["Soil_color"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"recommendations": []map[string]any{
				{"crop": "Rice", "probability": 82.0},
				{"crop": "Sugarcane", "probability": 61.0},
				{"crop": "Cotton", "probability": 75.0},
			},
		})
	})

	flow := newFlow(t, mux, nil)

	require.NoError(t, flow.Submit(context.Background()))
	flow.Flush()

	result := flow.Result()
	require.Equal(t, submit.StatusSuccess, result.Status)
	rows := result.List.Rows()
	require.Len(t, rows, 3)
	// Server order is authoritative even when confidences are not monotonic.
	assert.Equal(t, "Rice", rows[0].Label)
	assert.Equal(t, "Sugarcane", rows[1].Label)
	assert.Equal(t, "Cotton", rows[2].Label)
}

func TestSubmit_ManualEditClearsResult(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/predict", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"recommendations": []map[string]any{{"crop": "Rice", "probability": 80.0}},
		})
	})
	mux.HandleFunc("/get_all_defaults", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"Nitrogen": 60.0})
	})

	flow := newFlow(t, mux, fixedLocator(16.7, 74.24))
	ctx := context.Background()

	require.NoError(t, flow.Submit(ctx))
	flow.Flush()
	require.Equal(t, submit.StatusSuccess, flow.Result().Status)

	// A new location fix drives enrichment, which must clear the stale list.
	_, err := flow.UseLocation(ctx)
	require.NoError(t, err)
	flow.Flush()

	assert.Equal(t, submit.StatusIdle, flow.Result().Status)
}
