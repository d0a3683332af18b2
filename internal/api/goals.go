package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/P4X666/small-ledger/internal/core"
)

// GoalsService maps the /api/savings-goals endpoints.
type GoalsService struct {
	service
}

// CreateGoalParams is the create request body.
type CreateGoalParams struct {
	Title        string          `json:"title"`
	TargetAmount float64         `json:"targetAmount"`
	Description  string          `json:"description,omitempty"`
	Period       core.GoalPeriod `json:"period"`
	EndDate      string          `json:"endDate"`
}

// UpdateGoalParams is the partial update request body.
type UpdateGoalParams struct {
	Title        *string          `json:"title,omitempty"`
	TargetAmount *float64         `json:"targetAmount,omitempty"`
	Description  *string          `json:"description,omitempty"`
	Period       *core.GoalPeriod `json:"period,omitempty"`
	EndDate      *string          `json:"endDate,omitempty"`
}

// GoalListParams paginates and sorts the goal list.
type GoalListParams struct {
	Page   int
	Limit  int
	SortBy string
	Order  string
}

func (p GoalListParams) values() url.Values {
	query := url.Values{}
	if p.Page > 0 {
		query.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		query.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.SortBy != "" {
		query.Set("sortBy", p.SortBy)
	}
	if p.Order != "" {
		query.Set("order", p.Order)
	}
	return query
}

// List fetches one page of savings goals.
func (s *GoalsService) List(ctx context.Context, params GoalListParams) (*ListResult[core.SavingsGoal], error) {
	resp, err := s.client.get(ctx, "/api/savings-goals", params.values(), withLoading("加载攒钱目标中..."))
	if err != nil {
		return nil, withFallback(err, "获取攒钱目标失败")
	}
	return decodeList[core.SavingsGoal](resp.Data)
}

// Get fetches a single goal.
func (s *GoalsService) Get(ctx context.Context, id string) (*core.SavingsGoal, error) {
	resp, err := s.client.get(ctx, "/api/savings-goals/"+id, nil, requestOptions{})
	if err != nil {
		return nil, withFallback(err, "获取攒钱目标详情失败")
	}
	return decodeItem[core.SavingsGoal](resp.Data)
}

// Create creates a goal and returns the stored record.
func (s *GoalsService) Create(ctx context.Context, params CreateGoalParams) (*core.SavingsGoal, error) {
	resp, err := s.client.post(ctx, "/api/savings-goals", params, requestOptions{})
	if err != nil {
		return nil, withFallback(err, "创建攒钱目标失败")
	}
	return decodeItem[core.SavingsGoal](resp.Data)
}

// Update applies a partial update and returns the stored record.
func (s *GoalsService) Update(ctx context.Context, id string, params UpdateGoalParams) (*core.SavingsGoal, error) {
	resp, err := s.client.put(ctx, "/api/savings-goals/"+id, params, requestOptions{})
	if err != nil {
		return nil, withFallback(err, "更新攒钱目标失败")
	}
	return decodeItem[core.SavingsGoal](resp.Data)
}

// Delete removes a goal.
func (s *GoalsService) Delete(ctx context.Context, id string) error {
	_, err := s.client.delete(ctx, "/api/savings-goals/"+id, requestOptions{})
	if err != nil {
		return withFallback(err, "删除攒钱目标失败")
	}
	return nil
}

// UpdateAmount sets the absolute saved amount of a goal.
func (s *GoalsService) UpdateAmount(ctx context.Context, id string, amount float64) (*core.SavingsGoal, error) {
	body := map[string]float64{"amount": amount}
	resp, err := s.client.put(ctx, "/api/savings-goals/"+id+"/amount", body, requestOptions{})
	if err != nil {
		return nil, withFallback(err, "更新攒钱金额失败")
	}
	return decodeItem[core.SavingsGoal](resp.Data)
}

// Progress fetches the server-computed progress projection.
func (s *GoalsService) Progress(ctx context.Context, id string) (*core.GoalProgressDetails, error) {
	resp, err := s.client.get(ctx, "/api/savings-goals/"+id+"/progress", nil, requestOptions{})
	if err != nil {
		return nil, withFallback(err, "获取攒钱进度失败")
	}
	return decodeItem[core.GoalProgressDetails](resp.Data)
}
