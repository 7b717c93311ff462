package resolver_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-advisory/pkg/form"
	"github.com/goliatone/go-advisory/pkg/resolver"
)

// gatedSource holds each fetch until the test releases it, so reply order can
// be forced independently of request order.
type gatedSource struct {
	gates   map[string]chan struct{}
	results map[string]map[string]any
	err     error
}

func (s *gatedSource) Fetch(ctx context.Context, driverValue string) (map[string]any, error) {
	if gate, ok := s.gates[driverValue]; ok {
		<-gate
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.results[driverValue], nil
}

func TestOnDriverChange_LastDriverValueWins(t *testing.T) {
	state := form.NewState(form.Model{})
	slowGate := make(chan struct{})
	source := &gatedSource{
		gates: map[string]chan struct{}{"Sangli": slowGate},
		results: map[string]map[string]any{
			"Sangli":   {"nitrogen": 40.0, "soil_color": "Black"},
			"Kolhapur": {"nitrogen": 75.0, "soil_color": "Red"},
		},
	}

	done := make(chan bool, 2)
	r := resolver.New(state,
		resolver.WithAppliedFunc(func(group string, applied bool) { done <- applied }))
	r.Register("district", source)

	// First change hangs in the network; second one resolves immediately.
	r.OnDriverChange(context.Background(), "district", "Sangli")
	r.OnDriverChange(context.Background(), "district", "Kolhapur")

	if applied := <-done; !applied {
		t.Fatal("fast second resolution was not applied")
	}
	close(slowGate)
	if applied := <-done; applied {
		t.Fatal("slow superseded resolution was applied")
	}
	r.Flush()

	want := map[string]any{"nitrogen": 75.0, "soil_color": "Red"}
	if diff := cmp.Diff(want, state.Snapshot()); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestOnDriverChange_EmptyValueIssuesNoFetch(t *testing.T) {
	state := form.NewState(form.Model{})
	var fetches atomic.Int32
	source := resolver.SourceFunc(func(ctx context.Context, driverValue string) (map[string]any, error) {
		fetches.Add(1)
		return map[string]any{"nitrogen": 1.0}, nil
	})

	r := resolver.New(state)
	r.Register("district", source)

	r.OnDriverChange(context.Background(), "district", "   ")
	r.Flush()

	if fetches.Load() != 0 {
		t.Errorf("fetch issued for empty driver value")
	}
	if snap := state.Snapshot(); len(snap) != 0 {
		t.Errorf("state touched: %v", snap)
	}
}

func TestOnDriverChange_ClearingDriverSupersedesInFlight(t *testing.T) {
	state := form.NewState(form.Model{})
	gate := make(chan struct{})
	source := &gatedSource{
		gates:   map[string]chan struct{}{"Sangli": gate},
		results: map[string]map[string]any{"Sangli": {"nitrogen": 40.0}},
	}

	done := make(chan bool, 1)
	r := resolver.New(state,
		resolver.WithAppliedFunc(func(group string, applied bool) { done <- applied }))
	r.Register("district", source)

	r.OnDriverChange(context.Background(), "district", "Sangli")
	r.OnDriverChange(context.Background(), "district", "") // user cleared the select
	close(gate)

	if applied := <-done; applied {
		t.Fatal("resolution applied after driver was cleared")
	}
	r.Flush()
	if snap := state.Snapshot(); len(snap) != 0 {
		t.Errorf("state touched by stale resolution: %v", snap)
	}
}

func TestOnDriverChange_FailureLeavesStateAndWarns(t *testing.T) {
	state := form.NewState(form.Model{})
	state.Set("nitrogen", 33.0)

	warned := make(chan error, 1)
	r := resolver.New(state,
		resolver.WithWarnFunc(func(group string, err error) { warned <- err }))
	r.Register("district", &gatedSource{err: errors.New("backend down")})

	r.OnDriverChange(context.Background(), "district", "Sangli")
	r.Flush()

	if err := <-warned; err == nil {
		t.Fatal("expected warning")
	}
	if got, _ := state.GetNumber("nitrogen"); got != 33 {
		t.Errorf("nitrogen = %v, want untouched 33", got)
	}
}

type countingInvalidator struct{ n atomic.Int32 }

func (c *countingInvalidator) Invalidate() { c.n.Add(1) }

func TestOnDriverChange_InvalidatesResults(t *testing.T) {
	state := form.NewState(form.Model{})
	inv := &countingInvalidator{}
	r := resolver.New(state, resolver.WithInvalidator(inv))
	r.Register("district", &gatedSource{results: map[string]map[string]any{}})

	r.OnDriverChange(context.Background(), "district", "Sangli")
	r.OnDriverChange(context.Background(), "district", "") // clearing counts too
	r.Flush()

	if inv.n.Load() != 2 {
		t.Errorf("invalidations = %d, want 2", inv.n.Load())
	}
}

func TestOnDriverChange_MergeRacesManualEdits(t *testing.T) {
	state := form.NewState(form.Model{})
	gate := make(chan struct{})
	source := &gatedSource{
		gates:   map[string]chan struct{}{"Sangli": gate},
		results: map[string]map[string]any{"Sangli": {"nitrogen": 40.0, "soil_color": "Black"}},
	}

	r := resolver.New(state)
	r.Register("district", source)
	r.OnDriverChange(context.Background(), "district", "Sangli")

	// Manual edits keep landing while the fetch is in flight. Run with the
	// race detector: the merge and the edits must never touch the values
	// concurrently without the state's lock.
	editsDone := make(chan struct{})
	go func() {
		defer close(editsDone)
		for i := 0; i < 200; i++ {
			state.Set("crop", "Sugarcane")
			_ = state.Snapshot()
		}
	}()
	close(gate)
	r.Flush()
	<-editsDone

	if got := state.GetString("crop"); got != "Sugarcane" {
		t.Errorf("crop = %q, want manual Sugarcane", got)
	}
	if got, _ := state.GetNumber("nitrogen"); got != 40 {
		t.Errorf("nitrogen = %v, want merged 40", got)
	}
}

func TestOnDriverChange_ManualEditAfterMergeSurvives(t *testing.T) {
	state := form.NewState(form.Model{})
	source := &gatedSource{results: map[string]map[string]any{
		"Sangli": {"nitrogen": 40.0},
	}}

	r := resolver.New(state)
	r.Register("district", source)
	r.OnDriverChange(context.Background(), "district", "Sangli")
	r.Flush()

	state.Set("nitrogen", 99.0) // manual override after the merge

	if got, _ := state.GetNumber("nitrogen"); got != 99 {
		t.Errorf("nitrogen = %v, want manual 99", got)
	}
}
