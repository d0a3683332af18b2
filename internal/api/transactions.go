package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/P4X666/small-ledger/internal/core"
)

// TransactionsService maps the /api/transactions endpoints.
type TransactionsService struct {
	service
}

// CreateTransactionParams is the create request body.
type CreateTransactionParams struct {
	Type     core.RecordType `json:"type"`
	Amount   float64         `json:"amount"`
	Category string          `json:"category"`
	Remark   string          `json:"remark,omitempty"`
	Date     string          `json:"date"`
}

// UpdateTransactionParams is the partial update request body. Nil fields are
// omitted from the wire.
type UpdateTransactionParams struct {
	Type     *core.RecordType `json:"type,omitempty"`
	Amount   *float64         `json:"amount,omitempty"`
	Category *string          `json:"category,omitempty"`
	Remark   *string          `json:"remark,omitempty"`
	Date     *string          `json:"date,omitempty"`
}

// TransactionListParams filters and paginates the transaction list.
type TransactionListParams struct {
	Page      int
	Limit     int
	Type      core.RecordType
	StartDate string
	EndDate   string
}

func (p TransactionListParams) values() url.Values {
	query := url.Values{}
	if p.Page > 0 {
		query.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		query.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Type != "" {
		query.Set("type", string(p.Type))
	}
	if p.StartDate != "" {
		query.Set("startDate", p.StartDate)
	}
	if p.EndDate != "" {
		query.Set("endDate", p.EndDate)
	}
	return query
}

// List fetches one page of transactions.
func (s *TransactionsService) List(ctx context.Context, params TransactionListParams) (*ListResult[core.Transaction], error) {
	resp, err := s.client.get(ctx, "/api/transactions", params.values(), withLoading("加载交易记录中..."))
	if err != nil {
		return nil, withFallback(err, "获取交易记录失败")
	}
	return decodeList[core.Transaction](resp.Data)
}

// Get fetches a single transaction.
func (s *TransactionsService) Get(ctx context.Context, id string) (*core.Transaction, error) {
	resp, err := s.client.get(ctx, "/api/transactions/"+id, nil, withLoading("加载交易记录详情中..."))
	if err != nil {
		return nil, withFallback(err, "获取交易记录详情失败")
	}
	return decodeItem[core.Transaction](resp.Data)
}

// Create creates a transaction and returns the stored record.
func (s *TransactionsService) Create(ctx context.Context, params CreateTransactionParams) (*core.Transaction, error) {
	resp, err := s.client.post(ctx, "/api/transactions", params, withLoading("创建交易记录中..."))
	if err != nil {
		return nil, withFallback(err, "创建交易记录失败")
	}
	return decodeItem[core.Transaction](resp.Data)
}

// Update applies a partial update and returns the stored record.
func (s *TransactionsService) Update(ctx context.Context, id string, params UpdateTransactionParams) (*core.Transaction, error) {
	resp, err := s.client.put(ctx, "/api/transactions/"+id, params, withLoading("更新交易记录中..."))
	if err != nil {
		return nil, withFallback(err, "更新交易记录失败")
	}
	return decodeItem[core.Transaction](resp.Data)
}

// Delete removes a transaction.
func (s *TransactionsService) Delete(ctx context.Context, id string) error {
	_, err := s.client.delete(ctx, "/api/transactions/"+id, withLoading("删除交易记录中..."))
	if err != nil {
		return withFallback(err, "删除交易记录失败")
	}
	return nil
}

// StatisticsParams restricts the server aggregate to a date range.
type StatisticsParams struct {
	StartDate string
	EndDate   string
}

func (p StatisticsParams) values() url.Values {
	query := url.Values{}
	if p.StartDate != "" {
		query.Set("startDate", p.StartDate)
	}
	if p.EndDate != "" {
		query.Set("endDate", p.EndDate)
	}
	return query
}

// Statistics fetches the server-computed aggregate.
func (s *TransactionsService) Statistics(ctx context.Context, params StatisticsParams) (*core.TransactionStatistics, error) {
	resp, err := s.client.get(ctx, "/api/transactions/statistics", params.values(), withLoading("加载统计信息中..."))
	if err != nil {
		return nil, withFallback(err, "获取统计信息失败")
	}
	return decodeItem[core.TransactionStatistics](resp.Data)
}
