package submit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-advisory/pkg/form"
	"github.com/goliatone/go-advisory/pkg/ranking"
	"github.com/goliatone/go-advisory/pkg/submit"
)

func fertilizerModel() form.Model {
	return form.Model{
		OperationID: "predictFertilizer",
		Fields: []form.Field{
			{Name: "district", Type: form.FieldTypeEnum, Required: true, Driver: true, DependencyGroup: "district"},
			{Name: "nitrogen", Type: form.FieldTypeNumber, Required: true},
		},
	}
}

func validSnapshot() map[string]any {
	return map[string]any{"district": "Sangli", "nitrogen": 42.0}
}

func mustList(t *testing.T, entries ...ranking.Entry) ranking.List {
	t.Helper()
	list, err := ranking.New(entries)
	if err != nil {
		t.Fatalf("ranking.New: %v", err)
	}
	return list
}

func TestSubmit_MissingRequiredFieldNeverCallsNetwork(t *testing.T) {
	called := false
	predictor := submit.PredictorFunc(func(ctx context.Context, snapshot map[string]any) (ranking.List, error) {
		called = true
		return ranking.List{}, nil
	})
	guard := submit.New(fertilizerModel(), predictor)

	err := guard.Submit(context.Background(), map[string]any{"nitrogen": 42.0})

	var vErr *submit.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("want *ValidationError, got %v", err)
	}
	if len(vErr.Issues["district"]) == 0 {
		t.Errorf("expected issue on district, got %v", vErr.Issues)
	}
	guard.Flush()
	if called {
		t.Fatal("prediction endpoint called despite validation failure")
	}
	if got := guard.Current().Status; got != submit.StatusIdle {
		t.Errorf("status = %q, want idle", got)
	}
}

func TestSubmit_SuccessTransitions(t *testing.T) {
	want := mustList(t,
		ranking.Entry{Label: "Urea", Confidence: 91},
		ranking.Entry{Label: "DAP", Confidence: 64},
	)
	release := make(chan struct{})
	predictor := submit.PredictorFunc(func(ctx context.Context, snapshot map[string]any) (ranking.List, error) {
		<-release
		return want, nil
	})

	var transitions []submit.Status
	done := make(chan struct{})
	guard := submit.New(fertilizerModel(), predictor,
		submit.WithResultFunc(func(r submit.Result) {
			transitions = append(transitions, r.Status)
			if r.Status == submit.StatusSuccess {
				close(done)
			}
		}))

	if err := guard.Submit(context.Background(), validSnapshot()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got := guard.Current().Status; got != submit.StatusPending {
		t.Fatalf("status before resolve = %q, want pending", got)
	}

	close(release)
	<-done
	guard.Flush()

	result := guard.Current()
	if result.Status != submit.StatusSuccess {
		t.Fatalf("status = %q, want success", result.Status)
	}
	if diff := cmp.Diff(want.Rows(), result.List.Rows()); diff != "" {
		t.Errorf("list mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]submit.Status{submit.StatusPending, submit.StatusSuccess}, transitions); diff != "" {
		t.Errorf("transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmit_CancelAndReplaceDiscardsSupersededResult(t *testing.T) {
	slow := make(chan struct{})
	fast := mustList(t, ranking.Entry{Label: "DAP", Confidence: 70})
	stale := mustList(t, ranking.Entry{Label: "Urea", Confidence: 99})

	calls := 0
	predictor := submit.PredictorFunc(func(ctx context.Context, snapshot map[string]any) (ranking.List, error) {
		calls++
		if calls == 1 {
			<-slow
			return stale, nil
		}
		return fast, nil
	})

	results := make(chan submit.Result, 4)
	guard := submit.New(fertilizerModel(), predictor,
		submit.WithResultFunc(func(r submit.Result) { results <- r }))

	if err := guard.Submit(context.Background(), validSnapshot()); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	<-results // first pending
	if err := guard.Submit(context.Background(), validSnapshot()); err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	<-results // second pending

	second := <-results // second submission's success
	if second.Status != submit.StatusSuccess {
		t.Fatalf("status = %q, want success", second.Status)
	}
	if diff := cmp.Diff(fast.Rows(), second.List.Rows()); diff != "" {
		t.Errorf("list mismatch (-want +got):\n%s", diff)
	}

	close(slow)
	guard.Flush()

	// the slow first response must not replace the newer result
	final := guard.Current()
	if diff := cmp.Diff(fast.Rows(), final.List.Rows()); diff != "" {
		t.Errorf("stale submission overwrote current result (-want +got):\n%s", diff)
	}
	select {
	case extra := <-results:
		t.Errorf("unexpected extra transition: %+v", extra)
	default:
	}
}

func TestInvalidate_ClearsResultBeforeNewOneArrives(t *testing.T) {
	release := make(chan struct{})
	list := mustList(t, ranking.Entry{Label: "Urea", Confidence: 91})
	predictor := submit.PredictorFunc(func(ctx context.Context, snapshot map[string]any) (ranking.List, error) {
		<-release
		return list, nil
	})

	guard := submit.New(fertilizerModel(), predictor)
	if err := guard.Submit(context.Background(), validSnapshot()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// driver edit while the submission is in flight
	guard.Invalidate()
	if got := guard.Current().Status; got != submit.StatusIdle {
		t.Fatalf("status after invalidate = %q, want idle", got)
	}

	close(release)
	guard.Flush()

	if got := guard.Current(); got.Status != submit.StatusIdle || got.List.Len() != 0 {
		t.Errorf("stale result surfaced after invalidation: %+v", got)
	}
}

func TestSubmit_FailureSurfacesReason(t *testing.T) {
	rejection := &submit.ServerRejected{Message: "unknown district"}
	predictor := submit.PredictorFunc(func(ctx context.Context, snapshot map[string]any) (ranking.List, error) {
		return ranking.List{}, rejection
	})

	done := make(chan struct{})
	guard := submit.New(fertilizerModel(), predictor,
		submit.WithResultFunc(func(r submit.Result) {
			if r.Status == submit.StatusFailure {
				close(done)
			}
		}))

	if err := guard.Submit(context.Background(), validSnapshot()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-done
	guard.Flush()

	result := guard.Current()
	var rejected *submit.ServerRejected
	if !errors.As(result.Err, &rejected) {
		t.Fatalf("want *ServerRejected, got %v", result.Err)
	}
	if rejected.Message != "unknown district" {
		t.Errorf("message = %q", rejected.Message)
	}
}
