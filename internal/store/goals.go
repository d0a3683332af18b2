package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/P4X666/small-ledger/internal/api"
	"github.com/P4X666/small-ledger/internal/core"
	"github.com/P4X666/small-ledger/internal/log"
)

// ErrGoalNotLoaded is returned when an id is absent from the loaded goal
// set. Callers page the store before amount updates, so hitting it usually
// means the id is stale.
var ErrGoalNotLoaded = errors.New("未找到该攒钱目标")

type goalAPI interface {
	List(ctx context.Context, params api.GoalListParams) (*api.ListResult[core.SavingsGoal], error)
	Create(ctx context.Context, params api.CreateGoalParams) (*core.SavingsGoal, error)
	Update(ctx context.Context, id string, params api.UpdateGoalParams) (*core.SavingsGoal, error)
	Delete(ctx context.Context, id string) error
	UpdateAmount(ctx context.Context, id string, amount float64) (*core.SavingsGoal, error)
	Progress(ctx context.Context, id string) (*core.GoalProgressDetails, error)
}

// GoalView is a goal plus its client-computed progress percentage, the
// shape list pages render directly.
type GoalView struct {
	core.SavingsGoal
	Progress float64 `json:"progress"`
}

// GoalsStore owns the savings goals loaded so far.
type GoalsStore struct {
	api      goalAPI
	logger   *log.Logger
	pageSize int
	now      func() time.Time

	loading atomic.Bool

	mu       sync.RWMutex
	goals    []GoalView
	page     int
	total    int
	hasMore  bool
	isLoaded bool
}

// NewGoalsStore creates an empty store over the given API.
func NewGoalsStore(gAPI goalAPI, pageSize int, logger *log.Logger) *GoalsStore {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &GoalsStore{
		api:      gAPI,
		logger:   logger.WithComponent(log.ComponentGoals),
		pageSize: pageSize,
		now:      time.Now,
		page:     1,
		hasMore:  true,
	}
}

// LoadGoals fetches the first page, replacing whatever is loaded.
func (s *GoalsStore) LoadGoals(ctx context.Context) error {
	return s.load(ctx, true)
}

// LoadMoreGoals fetches the next page and appends it. A no-op when no more
// pages exist.
func (s *GoalsStore) LoadMoreGoals(ctx context.Context) error {
	return s.load(ctx, false)
}

func (s *GoalsStore) load(ctx context.Context, reset bool) error {
	if !s.loading.CompareAndSwap(false, true) {
		return nil
	}
	defer s.loading.Store(false)

	s.mu.Lock()
	if reset {
		s.goals = nil
		s.page = 1
		s.total = 0
		s.hasMore = true
	}
	if !s.hasMore {
		s.mu.Unlock()
		return nil
	}
	page := s.page
	s.mu.Unlock()

	result, err := s.api.List(ctx, api.GoalListParams{Page: page, Limit: s.pageSize})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load goals",
			log.FieldPage, page, log.FieldError, err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, goal := range result.Items {
		s.goals = append(s.goals, GoalView{SavingsGoal: goal, Progress: goal.Progress()})
	}
	s.page = page + 1
	if result.Meta != nil {
		s.total = result.Meta.TotalItems
	}
	s.hasMore = len(s.goals) < s.total
	s.isLoaded = true
	return nil
}

// AddGoal validates and creates a goal, then prepends the stored record.
func (s *GoalsStore) AddGoal(ctx context.Context, params api.CreateGoalParams) (*core.SavingsGoal, error) {
	candidate := core.SavingsGoal{
		Title:        params.Title,
		TargetAmount: params.TargetAmount,
		Period:       params.Period,
		EndDate:      params.EndDate,
	}
	if err := candidate.Validate(); err != nil {
		return nil, api.NewValidationError(err)
	}

	goal, err := s.api.Create(ctx, params)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.goals = append([]GoalView{{SavingsGoal: *goal, Progress: goal.Progress()}}, s.goals...)
	s.total++
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "goal created",
		log.FieldGoalID, goal.ID,
		log.FieldAmount, goal.TargetAmount)
	return goal, nil
}

// UpdateGoal applies a partial update and replaces the local copy in place.
func (s *GoalsStore) UpdateGoal(ctx context.Context, id string, params api.UpdateGoalParams) (*core.SavingsGoal, error) {
	if params.TargetAmount != nil && *params.TargetAmount <= 0 {
		return nil, api.NewValidationError(core.ErrInvalidTarget)
	}
	if params.Title != nil && *params.Title == "" {
		return nil, api.NewValidationError(core.ErrEmptyTitle)
	}
	if params.EndDate != nil {
		if _, err := time.Parse(core.DateLayout, *params.EndDate); err != nil {
			return nil, api.NewValidationError(core.ErrInvalidEndDate)
		}
	}

	goal, err := s.api.Update(ctx, id, params)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.replaceLocked(*goal)
	s.mu.Unlock()
	return goal, nil
}

// DeleteGoal removes the goal remotely, then locally.
func (s *GoalsStore) DeleteGoal(ctx context.Context, id string) error {
	if err := s.api.Delete(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	for i := range s.goals {
		if s.goals[i].ID == id {
			s.goals = append(s.goals[:i], s.goals[i+1:]...)
			if s.total > 0 {
				s.total--
			}
			break
		}
	}
	s.mu.Unlock()
	return nil
}

// AddToGoalAmount adds a positive delta to the saved amount. The backend
// endpoint takes an absolute total, so the new value is the local current
// amount plus the delta.
func (s *GoalsStore) AddToGoalAmount(ctx context.Context, id string, delta float64) (*core.SavingsGoal, error) {
	if delta <= 0 {
		return nil, api.NewValidationError(core.ErrInvalidAmount)
	}

	s.mu.RLock()
	var current float64
	found := false
	for i := range s.goals {
		if s.goals[i].ID == id {
			current = s.goals[i].CurrentAmount
			found = true
			break
		}
	}
	s.mu.RUnlock()
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrGoalNotLoaded, id)
	}

	goal, err := s.api.UpdateAmount(ctx, id, current+delta)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.replaceLocked(*goal)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "goal amount updated",
		log.FieldGoalID, id,
		log.FieldAmount, goal.CurrentAmount)
	return goal, nil
}

// GoalProgressDetails fetches the server progress projection, falling back
// to the local computation of the same fields when the call fails.
func (s *GoalsStore) GoalProgressDetails(ctx context.Context, id string) (*core.GoalProgressDetails, error) {
	details, err := s.api.Progress(ctx, id)
	if err == nil {
		return details, nil
	}
	s.logger.WarnContext(ctx, "progress endpoint failed, computing locally",
		log.FieldGoalID, id, log.FieldError, err)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.goals {
		if s.goals[i].ID == id {
			local := s.goals[i].ProgressDetails(s.now())
			return &local, nil
		}
	}
	return nil, err
}

func (s *GoalsStore) replaceLocked(goal core.SavingsGoal) {
	for i := range s.goals {
		if s.goals[i].ID == goal.ID {
			s.goals[i] = GoalView{SavingsGoal: goal, Progress: goal.Progress()}
			return
		}
	}
}

// Goals returns a copy of the loaded goal views.
func (s *GoalsStore) Goals() []GoalView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]GoalView, len(s.goals))
	copy(out, s.goals)
	return out
}

// HasMore reports whether more pages exist.
func (s *GoalsStore) HasMore() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasMore
}

// Loaded reports whether at least one page has been fetched.
func (s *GoalsStore) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isLoaded
}

// Loading reports whether a page fetch is in flight.
func (s *GoalsStore) Loading() bool {
	return s.loading.Load()
}
