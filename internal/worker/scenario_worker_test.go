package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"nozze/internal/amqp"
	"nozze/internal/core"
	"nozze/internal/planner"
	"nozze/internal/sources/memory"
	"nozze/internal/storage"
)

type fakeStore struct {
	mu        sync.Mutex
	scenarios map[int64]*storage.Scenario
	getErr    error
}

func newFakeStore(scenarios ...storage.Scenario) *fakeStore {
	f := &fakeStore{scenarios: map[int64]*storage.Scenario{}}
	for i := range scenarios {
		s := scenarios[i]
		s.Status = storage.StatusPending
		f.scenarios[s.ID] = &s
	}
	return f
}

func (f *fakeStore) GetScenario(_ context.Context, id int64) (*storage.Scenario, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.scenarios[id]
	if !ok {
		return nil, storage.ErrScenarioNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) PendingScenarios(_ context.Context, limit int) ([]storage.Scenario, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.Scenario
	for id := int64(1); id <= int64(len(f.scenarios)) && len(out) < limit; id++ {
		if s, ok := f.scenarios[id]; ok && s.Status == storage.StatusPending {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStore) CompleteScenario(_ context.Context, id int64, result json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scenarios[id].Status = storage.StatusDone
	f.scenarios[id].Result = result
	return nil
}

func (f *fakeStore) FailScenario(_ context.Context, id int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scenarios[id].Status = storage.StatusFailed
	f.scenarios[id].Error = reason
	return nil
}

func (f *fakeStore) status(id int64) *storage.Scenario {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.scenarios[id]
	return &cp
}

func newWorker(store ScenarioStore) *ScenarioWorker {
	return NewScenarioWorker(store, memory.NewSeed(), planner.New(nil), 10)
}

func TestHandleScenarioMessage_Done(t *testing.T) {
	store := newFakeStore(storage.Scenario{ID: 1, Budget: core.FromDollars(40000), Cut: core.FromDollars(2000)})
	w := newWorker(store)

	if err := w.HandleScenarioMessage(context.Background(), &amqp.ScenarioMessage{ID: 1}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	got := store.status(1)
	if got.Status != storage.StatusDone {
		t.Fatalf("status = %s (%s)", got.Status, got.Error)
	}
	var report planner.Report
	if err := json.Unmarshal(got.Result, &report); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if report.Baseline.Budget != 40000 || report.Reduced.Budget != 38000 || report.Cut != 2000 {
		t.Fatalf("report = %+v", report)
	}
	if report.Baseline.TotalCost > 40000 || report.Reduced.TotalCost > 38000 {
		t.Fatalf("plans exceed budget: %v / %v", report.Baseline.TotalCost, report.Reduced.TotalCost)
	}

	// Redelivery of a settled scenario is a no-op.
	if err := w.HandleScenarioMessage(context.Background(), &amqp.ScenarioMessage{ID: 1}); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
}

func TestHandleScenarioMessage_PermanentFailures(t *testing.T) {
	store := newFakeStore(
		storage.Scenario{ID: 1, Budget: core.FromDollars(12000), Cut: core.FromDollars(1000)},
		storage.Scenario{ID: 2, Budget: core.FromDollars(40000), Cut: core.FromDollars(0), Weights: map[string]float64{"Fireworks": 3}},
	)
	w := newWorker(store)
	ctx := context.Background()

	for _, id := range []int64{1, 2} {
		if err := w.HandleScenarioMessage(ctx, &amqp.ScenarioMessage{ID: id}); err != nil {
			t.Fatalf("scenario %d: permanent failures must not requeue: %v", id, err)
		}
	}
	if got := store.status(1); got.Status != storage.StatusFailed || !strings.Contains(got.Error, "budget too low") {
		t.Fatalf("scenario 1 = %+v", got)
	}
	if got := store.status(2); got.Status != storage.StatusFailed || !strings.Contains(got.Error, "unknown category") {
		t.Fatalf("scenario 2 = %+v", got)
	}
}

func TestHandleScenarioMessage_TransientErrorRequeues(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("database is locked")
	if err := newWorker(store).HandleScenarioMessage(context.Background(), &amqp.ScenarioMessage{ID: 1}); err == nil {
		t.Fatal("expected error so the message is requeued")
	}
}

func TestHandleScenarioMessage_Unknown(t *testing.T) {
	if err := newWorker(newFakeStore()).HandleScenarioMessage(context.Background(), &amqp.ScenarioMessage{ID: 42}); err != nil {
		t.Fatalf("unknown scenario should be dropped, got %v", err)
	}
}

func TestProcessPending(t *testing.T) {
	store := newFakeStore(
		storage.Scenario{ID: 1, Budget: core.FromDollars(40000), Cut: core.FromDollars(2000)},
		storage.Scenario{ID: 2, Budget: core.FromDollars(30000), Cut: core.FromDollars(5000)},
		storage.Scenario{ID: 3, Budget: core.FromDollars(100), Cut: core.FromDollars(0)},
	)
	w := NewScenarioWorker(store, memory.NewSeed(), planner.New(nil), 2)

	n, err := w.ProcessPending(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("first batch: n=%d err=%v", n, err)
	}
	n, err = w.ProcessPending(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("second batch: n=%d err=%v", n, err)
	}
	if store.status(3).Status != storage.StatusFailed {
		t.Fatalf("scenario 3 = %+v", store.status(3))
	}
	if n, _ := w.ProcessPending(context.Background()); n != 0 {
		t.Fatalf("nothing should remain, settled %d", n)
	}
}

func TestSweeperLifecycle(t *testing.T) {
	store := newFakeStore(storage.Scenario{ID: 1, Budget: core.FromDollars(40000), Cut: core.FromDollars(2000)})
	s := NewSweeper(newWorker(store), time.Hour)
	ctx := context.Background()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(ctx); err == nil {
		t.Fatal("second start should fail")
	}

	deadline := time.Now().Add(5 * time.Second)
	for store.status(1).Status == storage.StatusPending && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if store.status(1).Status != storage.StatusDone {
		t.Fatalf("initial sweep did not run: %+v", store.status(1))
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if s.IsRunning() {
		t.Fatal("sweeper still running")
	}
}
