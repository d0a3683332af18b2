package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/P4X666/small-ledger/internal/api"
	"github.com/P4X666/small-ledger/internal/core"
)

type fakeGoalAPI struct {
	mu          sync.Mutex
	goals       []core.SavingsGoal
	progressErr error
	nextID      int
}

func (f *fakeGoalAPI) List(ctx context.Context, params api.GoalListParams) (*api.ListResult[core.SavingsGoal], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	start := (params.Page - 1) * params.Limit
	if start > len(f.goals) {
		start = len(f.goals)
	}
	end := start + params.Limit
	if end > len(f.goals) {
		end = len(f.goals)
	}
	items := make([]core.SavingsGoal, end-start)
	copy(items, f.goals[start:end])
	return &api.ListResult[core.SavingsGoal]{
		Items: items,
		Meta: &api.ListMeta{
			CurrentPage:  params.Page,
			ItemsPerPage: params.Limit,
			TotalItems:   len(f.goals),
			TotalPages:   (len(f.goals) + params.Limit - 1) / params.Limit,
		},
	}, nil
}

func (f *fakeGoalAPI) Create(ctx context.Context, params api.CreateGoalParams) (*core.SavingsGoal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	goal := core.SavingsGoal{
		ID:           fmt.Sprintf("goal-%d", f.nextID),
		Title:        params.Title,
		TargetAmount: params.TargetAmount,
		Period:       params.Period,
		EndDate:      params.EndDate,
	}
	f.goals = append(f.goals, goal)
	return &goal, nil
}

func (f *fakeGoalAPI) Update(ctx context.Context, id string, params api.UpdateGoalParams) (*core.SavingsGoal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.goals {
		if f.goals[i].ID == id {
			if params.Title != nil {
				f.goals[i].Title = *params.Title
			}
			if params.TargetAmount != nil {
				f.goals[i].TargetAmount = *params.TargetAmount
			}
			goal := f.goals[i]
			return &goal, nil
		}
	}
	return nil, &api.Error{Kind: api.KindAPI, Status: 404, Message: "not found"}
}

func (f *fakeGoalAPI) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.goals {
		if f.goals[i].ID == id {
			f.goals = append(f.goals[:i], f.goals[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeGoalAPI) UpdateAmount(ctx context.Context, id string, amount float64) (*core.SavingsGoal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.goals {
		if f.goals[i].ID == id {
			f.goals[i].CurrentAmount = amount
			goal := f.goals[i]
			return &goal, nil
		}
	}
	return nil, &api.Error{Kind: api.KindAPI, Status: 404, Message: "not found"}
}

func (f *fakeGoalAPI) Progress(ctx context.Context, id string) (*core.GoalProgressDetails, error) {
	if f.progressErr != nil {
		return nil, f.progressErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.goals {
		if f.goals[i].ID == id {
			details := f.goals[i].ProgressDetails(time.Now())
			return &details, nil
		}
	}
	return nil, &api.Error{Kind: api.KindAPI, Status: 404, Message: "not found"}
}

func TestGoalsStore_LoadGoalsComputesProgress(t *testing.T) {
	fake := &fakeGoalAPI{goals: []core.SavingsGoal{
		{ID: "g1", Title: "旅行基金", TargetAmount: 1000, CurrentAmount: 1200, Period: core.GoalMonthly, EndDate: "2026-12-31"},
		{ID: "g2", Title: "新手机", TargetAmount: 5000, CurrentAmount: 1250, Period: core.GoalYearly, EndDate: "2026-12-31"},
	}}
	store := NewGoalsStore(fake, 10, testLogger())

	if err := store.LoadGoals(context.Background()); err != nil {
		t.Fatal(err)
	}

	goals := store.Goals()
	if len(goals) != 2 {
		t.Fatalf("goals = %d, want 2", len(goals))
	}
	if goals[0].Progress != 100 {
		t.Errorf("over-funded goal progress = %v, want clamped 100", goals[0].Progress)
	}
	if goals[1].Progress != 25 {
		t.Errorf("progress = %v, want 25", goals[1].Progress)
	}
	if !store.Loaded() {
		t.Error("Loaded() = false after a fetch")
	}
	if store.HasMore() {
		t.Error("HasMore() = true with everything loaded")
	}
}

func TestGoalsStore_LoadMorePaginates(t *testing.T) {
	goals := make([]core.SavingsGoal, 12)
	for i := range goals {
		goals[i] = core.SavingsGoal{
			ID: fmt.Sprintf("g%d", i), Title: "t", TargetAmount: 100,
			Period: core.GoalMonthly, EndDate: "2026-12-31",
		}
	}
	fake := &fakeGoalAPI{goals: goals}
	store := NewGoalsStore(fake, 10, testLogger())
	ctx := context.Background()

	if err := store.LoadGoals(ctx); err != nil {
		t.Fatal(err)
	}
	if got := len(store.Goals()); got != 10 {
		t.Fatalf("goals after page 1 = %d, want 10", got)
	}
	if !store.HasMore() {
		t.Fatal("HasMore() = false with a page remaining")
	}

	if err := store.LoadMoreGoals(ctx); err != nil {
		t.Fatal(err)
	}
	if got := len(store.Goals()); got != 12 {
		t.Errorf("goals after page 2 = %d, want 12", got)
	}
	if store.HasMore() {
		t.Error("HasMore() = true after the last page")
	}

	// Further load-more calls are no-ops
	if err := store.LoadMoreGoals(ctx); err != nil {
		t.Fatal(err)
	}
	if got := len(store.Goals()); got != 12 {
		t.Errorf("goals after no-op load = %d, want 12", got)
	}
}

func TestGoalsStore_AddGoalValidation(t *testing.T) {
	store := NewGoalsStore(&fakeGoalAPI{}, 10, testLogger())
	ctx := context.Background()

	tests := []struct {
		name   string
		params api.CreateGoalParams
	}{
		{"empty title", api.CreateGoalParams{TargetAmount: 100, Period: core.GoalMonthly, EndDate: "2026-12-31"}},
		{"zero target", api.CreateGoalParams{Title: "t", Period: core.GoalMonthly, EndDate: "2026-12-31"}},
		{"bad period", api.CreateGoalParams{Title: "t", TargetAmount: 100, Period: "weekly", EndDate: "2026-12-31"}},
		{"bad end date", api.CreateGoalParams{Title: "t", TargetAmount: 100, Period: core.GoalMonthly, EndDate: "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.AddGoal(ctx, tt.params)
			if !api.IsValidation(err) {
				t.Errorf("AddGoal() error = %v, want validation error", err)
			}
		})
	}
}

func TestGoalsStore_AddToGoalAmountSendsAbsoluteTotal(t *testing.T) {
	fake := &fakeGoalAPI{goals: []core.SavingsGoal{
		{ID: "g1", Title: "t", TargetAmount: 1000, CurrentAmount: 300, Period: core.GoalMonthly, EndDate: "2026-12-31"},
	}}
	store := NewGoalsStore(fake, 10, testLogger())
	ctx := context.Background()
	if err := store.LoadGoals(ctx); err != nil {
		t.Fatal(err)
	}

	goal, err := store.AddToGoalAmount(ctx, "g1", 200)
	if err != nil {
		t.Fatal(err)
	}
	if goal.CurrentAmount != 500 {
		t.Errorf("currentAmount = %v, want 500 (300 + 200)", goal.CurrentAmount)
	}
	if got := store.Goals()[0].Progress; got != 50 {
		t.Errorf("local progress = %v, want recomputed 50", got)
	}

	if _, err := store.AddToGoalAmount(ctx, "g1", -10); !api.IsValidation(err) {
		t.Errorf("AddToGoalAmount(negative) error = %v, want validation error", err)
	}

	if _, err := store.AddToGoalAmount(ctx, "missing", 50); !errors.Is(err, ErrGoalNotLoaded) {
		t.Errorf("AddToGoalAmount(unknown id) error = %v, want ErrGoalNotLoaded", err)
	}
}

func TestGoalsStore_ProgressDetailsFallsBackLocally(t *testing.T) {
	fake := &fakeGoalAPI{goals: []core.SavingsGoal{
		{ID: "g1", Title: "t", TargetAmount: 1000, CurrentAmount: 1200, Period: core.GoalMonthly, EndDate: "2026-12-31"},
	}}
	store := NewGoalsStore(fake, 10, testLogger())
	ctx := context.Background()
	if err := store.LoadGoals(ctx); err != nil {
		t.Fatal(err)
	}

	fake.progressErr = errors.New("backend down")
	details, err := store.GoalProgressDetails(ctx, "g1")
	if err != nil {
		t.Fatalf("GoalProgressDetails() error = %v, want local fallback", err)
	}
	if details.Progress != 100 {
		t.Errorf("progress = %v, want clamped 100", details.Progress)
	}
	if details.RemainingAmount != 0 {
		t.Errorf("remainingAmount = %v, want 0 for over-funded goal", details.RemainingAmount)
	}

	// Unknown goal cannot fall back, so the API error surfaces
	if _, err := store.GoalProgressDetails(ctx, "missing"); err == nil {
		t.Error("GoalProgressDetails(unknown) error = nil, want failure")
	}
}

func TestCounter(t *testing.T) {
	var counter Counter
	if got := counter.Increment(); got != 1 {
		t.Errorf("Increment() = %d, want 1", got)
	}
	counter.Increment()
	if got := counter.Decrement(); got != 1 {
		t.Errorf("Decrement() = %d, want 1", got)
	}
	if got := counter.Value(); got != 1 {
		t.Errorf("Value() = %d, want 1", got)
	}
}
