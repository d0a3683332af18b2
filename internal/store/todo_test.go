package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/P4X666/small-ledger/internal/api"
	"github.com/P4X666/small-ledger/internal/core"
)

type fakeTaskAPI struct {
	mu        sync.Mutex
	tasks     []core.Task
	counts    core.TaskCounts
	createErr error
	deleteErr map[string]error
	nextID    int
}

func (f *fakeTaskAPI) List(ctx context.Context, params api.TaskListParams) (*api.ListResult[core.Task], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	start := (params.Page - 1) * params.Limit
	if start > len(f.tasks) {
		start = len(f.tasks)
	}
	end := start + params.Limit
	if end > len(f.tasks) {
		end = len(f.tasks)
	}
	items := make([]core.Task, end-start)
	copy(items, f.tasks[start:end])
	return &api.ListResult[core.Task]{
		Items: items,
		Meta: &api.ListMeta{
			CurrentPage:  params.Page,
			ItemsPerPage: params.Limit,
			TotalItems:   len(f.tasks),
			TotalPages:   (len(f.tasks) + params.Limit - 1) / params.Limit,
		},
	}, nil
}

func (f *fakeTaskAPI) Counts(ctx context.Context) (*core.TaskCounts, error) {
	counts := f.counts
	return &counts, nil
}

func (f *fakeTaskAPI) Create(ctx context.Context, params api.CreateTaskParams) (*core.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	task := core.Task{
		ID:         fmt.Sprintf("task-%d", f.nextID),
		Title:      params.Title,
		Status:     core.StatusPending,
		TimePeriod: params.TimePeriod,
		Importance: params.Importance,
		Urgency:    params.Urgency,
		CreatedAt:  "2024-03-15T08:30:00Z",
		UpdatedAt:  "2024-03-15T08:30:00Z",
	}
	f.tasks = append(f.tasks, task)
	return &task, nil
}

func (f *fakeTaskAPI) Update(ctx context.Context, id string, params api.UpdateTaskParams) (*core.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			if params.Title != nil {
				f.tasks[i].Title = *params.Title
			}
			if params.Importance != nil {
				f.tasks[i].Importance = *params.Importance
			}
			task := f.tasks[i]
			return &task, nil
		}
	}
	return nil, &api.Error{Kind: api.KindAPI, Status: 404, Message: "not found"}
}

func (f *fakeTaskAPI) UpdateStatus(ctx context.Context, id string, status core.TaskStatus) (*core.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks[i].Status = status
			task := f.tasks[i]
			return &task, nil
		}
	}
	return nil, &api.Error{Kind: api.KindAPI, Status: 404, Message: "not found"}
}

func (f *fakeTaskAPI) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErr[id]; err != nil {
		return err
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeTaskAPI) ListByTimePeriod(ctx context.Context, period core.TimePeriod) ([]core.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Task
	for _, task := range f.tasks {
		if task.TimePeriod == period {
			out = append(out, task)
		}
	}
	return out, nil
}

func (f *fakeTaskAPI) ListByQuadrant(ctx context.Context) (*core.QuadrantTasks, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	quadrants := core.PartitionQuadrants(f.tasks)
	return &quadrants, nil
}

func seedTasks(n int) []core.Task {
	tasks := make([]core.Task, n)
	for i := range tasks {
		tasks[i] = core.Task{
			ID:         fmt.Sprintf("task-%d", i),
			Title:      fmt.Sprintf("任务 %d", i),
			Status:     core.StatusPending,
			TimePeriod: core.PeriodWeek,
			Importance: i % 5,
			Urgency:    (i + 1) % 5,
		}
	}
	return tasks
}

func TestTodoStore_LoadTasksDeduplicates(t *testing.T) {
	fake := &fakeTaskAPI{tasks: seedTasks(15)}
	store := NewTodoStore(fake, 10, testLogger())
	ctx := context.Background()

	if err := store.LoadTasks(ctx, api.TaskListParams{}, false); err != nil {
		t.Fatal(err)
	}
	// A period refresh returns tasks already present in page 1
	if _, err := store.RefreshByTimePeriod(ctx, core.PeriodWeek); err != nil {
		t.Fatal(err)
	}
	if err := store.LoadTasks(ctx, api.TaskListParams{}, false); err != nil {
		t.Fatal(err)
	}

	tasks := store.Tasks()
	if len(tasks) != 15 {
		t.Fatalf("tasks = %d, want 15 distinct", len(tasks))
	}
	seen := map[string]bool{}
	for _, task := range tasks {
		if seen[task.ID] {
			t.Errorf("duplicate task id %s", task.ID)
		}
		seen[task.ID] = true
	}
	if !store.End() {
		t.Error("End() = false after last page")
	}
}

func TestTodoStore_TimestampNormalization(t *testing.T) {
	fake := &fakeTaskAPI{}
	store := NewTodoStore(fake, 10, testLogger())

	task, err := store.AddTask(context.Background(), api.CreateTaskParams{
		Title:      "整理账单",
		TimePeriod: core.PeriodMonth,
		Importance: 3,
		Urgency:    2,
	})
	if err != nil {
		t.Fatal(err)
	}

	stored, ok := store.Task(task.ID)
	if !ok {
		t.Fatal("created task not merged into store")
	}
	if stored.CreatedAt != "2024-03-15 08:30" {
		t.Errorf("createdAt = %q, want normalized 2024-03-15 08:30", stored.CreatedAt)
	}
}

func TestTodoStore_AddTaskValidation(t *testing.T) {
	store := NewTodoStore(&fakeTaskAPI{}, 10, testLogger())
	ctx := context.Background()

	_, err := store.AddTask(ctx, api.CreateTaskParams{Title: "   ", TimePeriod: core.PeriodWeek})
	if !api.IsValidation(err) {
		t.Errorf("AddTask(blank title) error = %v, want validation error", err)
	}
	if got := len(store.Tasks()); got != 0 {
		t.Errorf("tasks = %d, want 0 after rejected input", got)
	}
}

func TestTodoStore_AddTaskTitleConflict(t *testing.T) {
	fake := &fakeTaskAPI{
		createErr: &api.Error{Kind: api.KindAPI, Status: 409, Message: "duplicate"},
	}
	store := NewTodoStore(fake, 10, testLogger())

	_, err := store.AddTask(context.Background(), api.CreateTaskParams{
		Title:      "跑步",
		TimePeriod: core.PeriodWeek,
	})
	if !errors.Is(err, ErrTitleConflict) {
		t.Errorf("AddTask() error = %v, want ErrTitleConflict", err)
	}
}

func TestTodoStore_ToggleTaskStatus(t *testing.T) {
	fake := &fakeTaskAPI{tasks: seedTasks(1)}
	store := NewTodoStore(fake, 10, testLogger())
	ctx := context.Background()
	if err := store.LoadTasks(ctx, api.TaskListParams{}, false); err != nil {
		t.Fatal(err)
	}

	task, err := store.ToggleTaskStatus(ctx, "task-0")
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != core.StatusCompleted {
		t.Errorf("status = %s, want completed", task.Status)
	}

	task, err = store.ToggleTaskStatus(ctx, "task-0")
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != core.StatusPending {
		t.Errorf("status after second toggle = %s, want pending", task.Status)
	}
}

func TestTodoStore_ClearCompletedBestEffort(t *testing.T) {
	tasks := seedTasks(4)
	tasks[0].Status = core.StatusCompleted
	tasks[1].Status = core.StatusCompleted
	tasks[2].Status = core.StatusCompleted
	fake := &fakeTaskAPI{
		tasks:     tasks,
		deleteErr: map[string]error{"task-1": errors.New("locked")},
	}
	store := NewTodoStore(fake, 10, testLogger())
	ctx := context.Background()
	if err := store.LoadTasks(ctx, api.TaskListParams{}, false); err != nil {
		t.Fatal(err)
	}

	err := store.ClearCompletedTasks(ctx)
	if err == nil {
		t.Fatal("ClearCompletedTasks() error = nil, want partial failure")
	}

	remaining := store.Tasks()
	ids := map[string]bool{}
	for _, task := range remaining {
		ids[task.ID] = true
	}
	if len(remaining) != 2 || !ids["task-1"] || !ids["task-3"] {
		t.Errorf("remaining = %v, want task-1 (failed delete) and task-3 (pending)", ids)
	}
}

func TestTodoStore_Quadrants(t *testing.T) {
	fake := &fakeTaskAPI{tasks: []core.Task{
		{ID: "a", Title: "a", Importance: 3, Urgency: 3},
		{ID: "b", Title: "b", Importance: 3, Urgency: 0},
		{ID: "c", Title: "c", Importance: 0, Urgency: 3},
		{ID: "d", Title: "d", Importance: 0, Urgency: 0},
	}}
	store := NewTodoStore(fake, 10, testLogger())
	if err := store.LoadTasks(context.Background(), api.TaskListParams{}, false); err != nil {
		t.Fatal(err)
	}

	quadrants := store.Quadrants()
	got := [4]int{len(quadrants.First), len(quadrants.Second), len(quadrants.Third), len(quadrants.Fourth)}
	if got != [4]int{1, 1, 1, 1} {
		t.Errorf("quadrant sizes = %v, want one task each", got)
	}
	if quadrants.First[0].ID != "a" || quadrants.Second[0].ID != "b" ||
		quadrants.Third[0].ID != "c" || quadrants.Fourth[0].ID != "d" {
		t.Error("tasks landed in the wrong quadrants")
	}
}

func TestTodoStore_UpdateTaskTrimsTitle(t *testing.T) {
	fake := &fakeTaskAPI{tasks: seedTasks(1)}
	store := NewTodoStore(fake, 10, testLogger())
	ctx := context.Background()
	if err := store.LoadTasks(ctx, api.TaskListParams{}, false); err != nil {
		t.Fatal(err)
	}

	title := "  复习  "
	task, err := store.UpdateTask(ctx, "task-0", api.UpdateTaskParams{Title: &title})
	if err != nil {
		t.Fatal(err)
	}
	if task.Title != "复习" {
		t.Errorf("title = %q, want trimmed 复习", task.Title)
	}

	blank := "   "
	if _, err := store.UpdateTask(ctx, "task-0", api.UpdateTaskParams{Title: &blank}); !api.IsValidation(err) {
		t.Errorf("UpdateTask(blank title) error = %v, want validation error", err)
	}
}
