package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/P4X666/small-ledger/internal/core"
)

// TasksService maps the /api/tasks endpoints.
type TasksService struct {
	service
}

// CreateTaskParams is the create request body.
type CreateTaskParams struct {
	Title       string          `json:"title"`
	TimePeriod  core.TimePeriod `json:"timePeriod"`
	Importance  int             `json:"importance"`
	Urgency     int             `json:"urgency"`
	DueDate     string          `json:"dueDate,omitempty"`
	Description string          `json:"description,omitempty"`
}

// UpdateTaskParams is the partial update request body. Immutable fields (id,
// createdAt, updatedAt) are not representable here, so they can never be sent.
type UpdateTaskParams struct {
	Title       *string          `json:"title,omitempty"`
	TimePeriod  *core.TimePeriod `json:"timePeriod,omitempty"`
	Importance  *int             `json:"importance,omitempty"`
	Urgency     *int             `json:"urgency,omitempty"`
	DueDate     *string          `json:"dueDate,omitempty"`
	Description *string          `json:"description,omitempty"`
	Status      *core.TaskStatus `json:"status,omitempty"`
}

// TaskListParams filters and paginates the task list.
type TaskListParams struct {
	Page       int
	Limit      int
	TimePeriod core.TimePeriod
	Importance int
	Urgency    int
}

func (p TaskListParams) values() url.Values {
	query := url.Values{}
	if p.Page > 0 {
		query.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		query.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.TimePeriod != "" {
		query.Set("timePeriod", string(p.TimePeriod))
	}
	if p.Importance > 0 {
		query.Set("importance", strconv.Itoa(p.Importance))
	}
	if p.Urgency > 0 {
		query.Set("urgency", strconv.Itoa(p.Urgency))
	}
	return query
}

// List fetches one page of tasks. An authentication failure degrades to
// (nil, nil) so an unauthenticated page renders as "no data" instead of
// surfacing an error on top of the login redirect.
func (s *TasksService) List(ctx context.Context, params TaskListParams) (*ListResult[core.Task], error) {
	resp, err := s.client.get(ctx, "/api/tasks", params.values(), withLoading("数据加载中..."))
	if err != nil {
		if IsAuth(err) {
			return nil, nil
		}
		return nil, withFallback(err, "获取任务列表失败")
	}
	return decodeList[core.Task](resp.Data)
}

// Counts fetches the server-side task tally. Degrades to (nil, nil) on
// authentication failure, like List.
func (s *TasksService) Counts(ctx context.Context) (*core.TaskCounts, error) {
	resp, err := s.client.get(ctx, "/api/tasks/getTasksNum", nil, withLoading("数据加载中..."))
	if err != nil {
		if IsAuth(err) {
			return nil, nil
		}
		return nil, withFallback(err, "获取任务统计失败")
	}
	return decodeItem[core.TaskCounts](resp.Data)
}

// Get fetches a single task.
func (s *TasksService) Get(ctx context.Context, id string) (*core.Task, error) {
	resp, err := s.client.get(ctx, "/api/tasks/"+id, nil, withLoading("加载任务详情中..."))
	if err != nil {
		return nil, withFallback(err, "获取任务详情失败")
	}
	return decodeItem[core.Task](resp.Data)
}

// Create creates a task. The error is passed through untouched so callers
// can distinguish a 409 title conflict.
func (s *TasksService) Create(ctx context.Context, params CreateTaskParams) (*core.Task, error) {
	resp, err := s.client.post(ctx, "/api/tasks", params, withLoading("创建任务中..."))
	if err != nil {
		return nil, err
	}
	return decodeItem[core.Task](resp.Data)
}

// Update applies a partial update. The error is passed through untouched.
func (s *TasksService) Update(ctx context.Context, id string, params UpdateTaskParams) (*core.Task, error) {
	resp, err := s.client.put(ctx, "/api/tasks/"+id, params, withLoading("更新任务中..."))
	if err != nil {
		return nil, err
	}
	return decodeItem[core.Task](resp.Data)
}

// UpdateStatus sets only the task status.
func (s *TasksService) UpdateStatus(ctx context.Context, id string, status core.TaskStatus) (*core.Task, error) {
	body := map[string]core.TaskStatus{"status": status}
	resp, err := s.client.put(ctx, "/api/tasks/"+id+"/status", body, withLoading("更新任务状态中..."))
	if err != nil {
		return nil, withFallback(err, "更新任务状态失败")
	}
	return decodeItem[core.Task](resp.Data)
}

// Delete removes a task.
func (s *TasksService) Delete(ctx context.Context, id string) error {
	_, err := s.client.delete(ctx, "/api/tasks/"+id, withLoading("删除任务中..."))
	if err != nil {
		return withFallback(err, "删除任务失败")
	}
	return nil
}

// ListByTimePeriod fetches tasks of one time period.
func (s *TasksService) ListByTimePeriod(ctx context.Context, period core.TimePeriod) ([]core.Task, error) {
	resp, err := s.client.get(ctx, "/api/tasks/by-time/"+string(period), nil, withLoading("数据加载中..."))
	if err != nil {
		return nil, withFallback(err, "获取任务列表失败")
	}
	var tasks []core.Task
	if err := decodeInto(resp.Data, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListByQuadrant fetches the server-partitioned quadrant view.
func (s *TasksService) ListByQuadrant(ctx context.Context) (*core.QuadrantTasks, error) {
	resp, err := s.client.get(ctx, "/api/tasks/by-quadrant", nil, withLoading("加载四象限任务中..."))
	if err != nil {
		return nil, withFallback(err, "获取四象限任务失败")
	}
	return decodeItem[core.QuadrantTasks](resp.Data)
}
