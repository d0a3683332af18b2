package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/P4X666/small-ledger/internal/api"
	"github.com/P4X666/small-ledger/internal/core"
	"github.com/P4X666/small-ledger/internal/log"
)

// ErrTitleConflict is returned when the backend rejects a task title that
// already exists.
var ErrTitleConflict = errors.New("任务标题已存在，请使用其他标题")

// displayTimeLayout is the normalized timestamp shown in task lists.
const displayTimeLayout = "2006-01-02 15:04"

type taskAPI interface {
	List(ctx context.Context, params api.TaskListParams) (*api.ListResult[core.Task], error)
	Counts(ctx context.Context) (*core.TaskCounts, error)
	Create(ctx context.Context, params api.CreateTaskParams) (*core.Task, error)
	Update(ctx context.Context, id string, params api.UpdateTaskParams) (*core.Task, error)
	UpdateStatus(ctx context.Context, id string, status core.TaskStatus) (*core.Task, error)
	Delete(ctx context.Context, id string) error
	ListByTimePeriod(ctx context.Context, period core.TimePeriod) ([]core.Task, error)
	ListByQuadrant(ctx context.Context) (*core.QuadrantTasks, error)
}

// TodoStore owns the tasks loaded so far. An id index deduplicates tasks
// that arrive through more than one fetch path (pagination, per-period,
// quadrant refresh).
type TodoStore struct {
	api      taskAPI
	logger   *log.Logger
	pageSize int

	loading atomic.Bool

	mu         sync.RWMutex
	tasks      []core.Task
	index      map[string]int
	page       int
	totalPages int
	isEnd      bool
	counts     core.TaskCounts
	lastErr    error
}

// NewTodoStore creates an empty store over the given API.
func NewTodoStore(tAPI taskAPI, pageSize int, logger *log.Logger) *TodoStore {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &TodoStore{
		api:      tAPI,
		logger:   logger.WithComponent(log.ComponentTodo),
		pageSize: pageSize,
		page:     1,
		index:    map[string]int{},
	}
}

// LoadTasks fetches the next page and merges it in, deduplicating by id.
// A load already in flight makes the call a no-op. End-of-data is reached
// when the page cursor passes the server-reported page count.
func (s *TodoStore) LoadTasks(ctx context.Context, filter api.TaskListParams, reset bool) error {
	if !s.loading.CompareAndSwap(false, true) {
		return nil
	}
	defer s.loading.Store(false)

	s.mu.Lock()
	if reset {
		s.tasks = nil
		s.index = map[string]int{}
		s.page = 1
		s.totalPages = 0
		s.isEnd = false
		s.lastErr = nil
	}
	if s.isEnd {
		s.mu.Unlock()
		return nil
	}
	filter.Page = s.page
	filter.Limit = s.pageSize
	s.mu.Unlock()

	result, err := s.api.List(ctx, filter)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = err
		s.logger.WarnContext(ctx, "failed to load tasks",
			log.FieldPage, filter.Page, log.FieldError, err)
		return err
	}
	if result == nil {
		// Not authenticated: render as empty rather than failing the page
		s.isEnd = true
		return nil
	}

	for _, task := range result.Items {
		s.mergeLocked(task)
	}
	s.page++
	if result.Meta != nil {
		s.totalPages = result.Meta.TotalPages
		s.isEnd = s.page > result.Meta.TotalPages
	}
	s.lastErr = nil

	s.logger.DebugContext(ctx, "tasks page loaded",
		log.FieldPage, filter.Page,
		log.FieldTotal, len(s.tasks))
	return nil
}

// LoadCounts refreshes the server-side task tally.
func (s *TodoStore) LoadCounts(ctx context.Context) error {
	counts, err := s.api.Counts(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load task counts", log.FieldError, err)
		return err
	}
	if counts == nil {
		return nil
	}
	s.mu.Lock()
	s.counts = *counts
	s.mu.Unlock()
	return nil
}

// AddTask validates and creates a task, then merges the stored record. A
// backend title conflict surfaces as ErrTitleConflict so callers can show
// the dedicated message.
func (s *TodoStore) AddTask(ctx context.Context, params api.CreateTaskParams) (*core.Task, error) {
	params.Title = strings.TrimSpace(params.Title)
	candidate := core.Task{
		Title:      params.Title,
		TimePeriod: params.TimePeriod,
		Importance: params.Importance,
		Urgency:    params.Urgency,
	}
	if err := candidate.Validate(); err != nil {
		return nil, api.NewValidationError(err)
	}

	task, err := s.api.Create(ctx, params)
	if err != nil {
		if api.IsConflict(err) {
			return nil, fmt.Errorf("%w: %s", ErrTitleConflict, params.Title)
		}
		return nil, err
	}

	s.mu.Lock()
	s.mergeLocked(*task)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "task created",
		log.FieldTaskID, task.ID,
		"priority", core.PriorityFor(task.Importance, task.Urgency))
	return task, nil
}

// ToggleTaskStatus flips a task between completed and pending.
func (s *TodoStore) ToggleTaskStatus(ctx context.Context, id string) (*core.Task, error) {
	s.mu.RLock()
	i, ok := s.index[id]
	var next core.TaskStatus
	if ok {
		if s.tasks[i].Status == core.StatusCompleted {
			next = core.StatusPending
		} else {
			next = core.StatusCompleted
		}
	}
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("task %s not loaded", id)
	}

	task, err := s.api.UpdateStatus(ctx, id, next)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.mergeLocked(*task)
	s.mu.Unlock()
	return task, nil
}

// UpdateTask applies a partial update. Immutable fields (id, createdAt,
// updatedAt) cannot be expressed in the params type, so they never reach
// the wire.
func (s *TodoStore) UpdateTask(ctx context.Context, id string, params api.UpdateTaskParams) (*core.Task, error) {
	if params.Title != nil {
		trimmed := strings.TrimSpace(*params.Title)
		if trimmed == "" {
			return nil, api.NewValidationError(core.ErrEmptyTitle)
		}
		params.Title = &trimmed
	}

	task, err := s.api.Update(ctx, id, params)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.mergeLocked(*task)
	s.mu.Unlock()
	return task, nil
}

// DeleteTask removes the task remotely, then locally.
func (s *TodoStore) DeleteTask(ctx context.Context, id string) error {
	if err := s.api.Delete(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	s.removeLocked(id)
	s.mu.Unlock()
	return nil
}

// ClearCompletedTasks deletes every completed task with bounded parallelism,
// best effort. Tasks whose deletion succeeded are removed locally even when
// others fail; the joined error reports every failure.
func (s *TodoStore) ClearCompletedTasks(ctx context.Context) error {
	s.mu.RLock()
	var completed []string
	for _, task := range s.tasks {
		if task.Status == core.StatusCompleted {
			completed = append(completed, task.ID)
		}
	}
	s.mu.RUnlock()
	if len(completed) == 0 {
		return nil
	}

	var (
		errMu sync.Mutex
		errs  []error
	)
	g := new(errgroup.Group)
	g.SetLimit(4)
	for _, id := range completed {
		id := id
		g.Go(func() error {
			if err := s.api.Delete(ctx, id); err != nil {
				errMu.Lock()
				errs = append(errs, fmt.Errorf("delete task %s: %w", id, err))
				errMu.Unlock()
				return nil
			}
			s.mu.Lock()
			s.removeLocked(id)
			s.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		s.logger.WarnContext(ctx, "clear completed partially failed",
			log.FieldTotal, len(completed),
			log.FieldError, joined)
		return joined
	}
	return nil
}

// mergeLocked inserts or replaces a task by id, normalizing its timestamps.
func (s *TodoStore) mergeLocked(task core.Task) {
	task.CreatedAt = normalizeTimestamp(task.CreatedAt)
	task.UpdatedAt = normalizeTimestamp(task.UpdatedAt)
	if i, ok := s.index[task.ID]; ok {
		s.tasks[i] = task
		return
	}
	s.index[task.ID] = len(s.tasks)
	s.tasks = append(s.tasks, task)
}

func (s *TodoStore) removeLocked(id string) {
	i, ok := s.index[id]
	if !ok {
		return
	}
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.tasks); j++ {
		s.index[s.tasks[j].ID] = j
	}
}

// normalizeTimestamp renders a backend timestamp in the fixed display
// format. Unparseable values pass through unchanged.
func normalizeTimestamp(value string) string {
	if value == "" {
		return value
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", core.DateLayout} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.Format(displayTimeLayout)
		}
	}
	return value
}

// Tasks returns a copy of the loaded tasks.
func (s *TodoStore) Tasks() []core.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Task returns a loaded task by id.
func (s *TodoStore) Task(id string) (core.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.index[id]; ok {
		return s.tasks[i], true
	}
	return core.Task{}, false
}

// Counts returns the last server tally loaded.
func (s *TodoStore) Counts() core.TaskCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts
}

// End reports whether every page has been loaded.
func (s *TodoStore) End() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isEnd
}

// Loading reports whether a page fetch is in flight.
func (s *TodoStore) Loading() bool {
	return s.loading.Load()
}

// Err returns the error of the last failed load, nil after a success.
func (s *TodoStore) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Quadrants partitions the loaded tasks by importance/urgency.
func (s *TodoStore) Quadrants() core.QuadrantTasks {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.PartitionQuadrants(s.tasks)
}

// TasksByPeriod returns the loaded tasks of one time period.
func (s *TodoStore) TasksByPeriod(period core.TimePeriod) []core.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Task
	for _, task := range s.tasks {
		if task.TimePeriod == period {
			out = append(out, task)
		}
	}
	return out
}

// RefreshByTimePeriod fetches one period's tasks and merges them in.
func (s *TodoStore) RefreshByTimePeriod(ctx context.Context, period core.TimePeriod) ([]core.Task, error) {
	tasks, err := s.api.ListByTimePeriod(ctx, period)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	for _, task := range tasks {
		s.mergeLocked(task)
	}
	s.mu.Unlock()
	return tasks, nil
}

// RefreshQuadrants fetches the server-partitioned quadrant view and merges
// its tasks in.
func (s *TodoStore) RefreshQuadrants(ctx context.Context) (*core.QuadrantTasks, error) {
	quadrants, err := s.api.ListByQuadrant(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	for _, bucket := range [][]core.Task{quadrants.First, quadrants.Second, quadrants.Third, quadrants.Fourth} {
		for _, task := range bucket {
			s.mergeLocked(task)
		}
	}
	s.mu.Unlock()
	return quadrants, nil
}
