// Package store holds the client-side state layer: each store owns one
// in-memory collection, its pagination cursor, and the derived read views,
// and reconciles the collection after every API call.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/P4X666/small-ledger/internal/api"
	"github.com/P4X666/small-ledger/internal/core"
	"github.com/P4X666/small-ledger/internal/log"
)

// DefaultPageSize is the page size used when a store is created with zero.
const DefaultPageSize = 10

type transactionAPI interface {
	List(ctx context.Context, params api.TransactionListParams) (*api.ListResult[core.Transaction], error)
	Create(ctx context.Context, params api.CreateTransactionParams) (*core.Transaction, error)
	Update(ctx context.Context, id string, params api.UpdateTransactionParams) (*core.Transaction, error)
	Delete(ctx context.Context, id string) error
	Statistics(ctx context.Context, params api.StatisticsParams) (*core.TransactionStatistics, error)
}

// RecordFilter narrows a record page fetch.
type RecordFilter struct {
	Type      core.RecordType
	StartDate string
	EndDate   string
}

// AccountingStore owns the transaction records loaded so far, newest first.
type AccountingStore struct {
	api      transactionAPI
	logger   *log.Logger
	pageSize int

	loading atomic.Bool

	mu      sync.RWMutex
	records []core.Transaction
	page    int
	total   int
	isEnd   bool
	stats   core.TransactionStatistics
}

// NewAccountingStore creates an empty store over the given API.
func NewAccountingStore(txAPI transactionAPI, pageSize int, logger *log.Logger) *AccountingStore {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &AccountingStore{
		api:      txAPI,
		logger:   logger.WithComponent(log.ComponentAccounting),
		pageSize: pageSize,
		page:     1,
	}
}

// LoadRecords fetches the next page and appends it. A load already in flight
// makes the call a no-op, as does being at end-of-data without reset. The
// page cursor advances whether or not the fetch succeeded, matching the
// pull-to-load behavior where a failed page is skipped rather than retried.
func (s *AccountingStore) LoadRecords(ctx context.Context, filter RecordFilter, reset bool) error {
	if !s.loading.CompareAndSwap(false, true) {
		return nil
	}
	defer s.loading.Store(false)

	s.mu.Lock()
	if reset {
		s.records = nil
		s.page = 1
		s.total = 0
		s.isEnd = false
	}
	if s.isEnd {
		s.mu.Unlock()
		return nil
	}
	page := s.page
	s.mu.Unlock()

	result, err := s.api.List(ctx, api.TransactionListParams{
		Page:      page,
		Limit:     s.pageSize,
		Type:      filter.Type,
		StartDate: filter.StartDate,
		EndDate:   filter.EndDate,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.page = page + 1

	if err != nil {
		s.logger.WarnContext(ctx, "failed to load records",
			log.FieldPage, page, log.FieldError, err)
		return err
	}

	s.records = append(s.records, result.Items...)
	if result.Meta != nil {
		s.total = result.Meta.TotalItems
	}
	s.isEnd = len(s.records) >= s.total

	s.logger.DebugContext(ctx, "records page loaded",
		log.FieldPage, page,
		log.FieldTotal, s.total)
	return nil
}

// LoadStatistics fetches the server-side aggregate for an optional date
// range. With reset, the cached aggregate is zeroed before the fetch.
func (s *AccountingStore) LoadStatistics(ctx context.Context, params api.StatisticsParams, reset bool) error {
	if reset {
		s.mu.Lock()
		s.stats = core.TransactionStatistics{}
		s.mu.Unlock()
	}

	stats, err := s.api.Statistics(ctx, params)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load statistics", log.FieldError, err)
		return err
	}

	s.mu.Lock()
	s.stats = *stats
	s.mu.Unlock()
	return nil
}

// AddRecord validates the input, creates the record remotely, and prepends
// the stored record. An unknown category is a warning, not a failure.
func (s *AccountingStore) AddRecord(ctx context.Context, params api.CreateTransactionParams) (*core.Transaction, error) {
	candidate := core.Transaction{
		Type:     params.Type,
		Amount:   params.Amount,
		Category: params.Category,
		Remark:   params.Remark,
		Date:     params.Date,
	}
	if err := candidate.Validate(); err != nil {
		return nil, api.NewValidationError(err)
	}
	if !core.IsPresetCategory(params.Type, params.Category) {
		s.logger.WarnContext(ctx, "category not in preset list",
			log.FieldCategory, params.Category)
	}

	record, err := s.api.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	if record.YearMonth == "" {
		// Some backends omit the derived field; fill it from the date
		date := record.Date
		if date == "" {
			date = params.Date
		}
		if yearMonth, err := core.YearMonthOf(date); err == nil {
			record.YearMonth = yearMonth
		}
	}

	s.mu.Lock()
	s.records = append([]core.Transaction{*record}, s.records...)
	s.total++
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "record created",
		log.FieldRecordID, record.ID,
		log.FieldAmount, record.Amount)
	return record, nil
}

// UpdateRecord applies a partial update and replaces the local copy in place.
func (s *AccountingStore) UpdateRecord(ctx context.Context, id string, params api.UpdateTransactionParams) (*core.Transaction, error) {
	if params.Amount != nil && *params.Amount <= 0 {
		return nil, api.NewValidationError(core.ErrInvalidAmount)
	}
	if params.Type != nil && !params.Type.IsValid() {
		return nil, api.NewValidationError(core.ErrInvalidRecordType)
	}

	record, err := s.api.Update(ctx, id, params)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i] = *record
			break
		}
	}
	s.mu.Unlock()
	return record, nil
}

// DeleteRecord removes the record remotely, then locally.
func (s *AccountingStore) DeleteRecord(ctx context.Context, id string) error {
	if err := s.api.Delete(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	s.removeLocked(id)
	s.mu.Unlock()
	return nil
}

// BatchDeleteRecords deletes each id in turn, best effort. Records whose
// deletion succeeded are removed locally even when others fail; the joined
// error reports every failure.
func (s *AccountingStore) BatchDeleteRecords(ctx context.Context, ids []string) error {
	var errs []error
	for _, id := range ids {
		if err := s.api.Delete(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("delete record %s: %w", id, err))
			continue
		}
		s.mu.Lock()
		s.removeLocked(id)
		s.mu.Unlock()
	}
	if len(errs) > 0 {
		s.logger.WarnContext(ctx, "batch delete partially failed",
			log.FieldTotal, len(ids),
			log.FieldError, errors.Join(errs...))
		return errors.Join(errs...)
	}
	return nil
}

func (s *AccountingStore) removeLocked(id string) {
	for i := range s.records {
		if s.records[i].ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			if s.total > 0 {
				s.total--
			}
			return
		}
	}
}

// Records returns a copy of the loaded records.
func (s *AccountingStore) Records() []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Transaction, len(s.records))
	copy(out, s.records)
	return out
}

// Statistics returns the last server aggregate loaded.
func (s *AccountingStore) Statistics() core.TransactionStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Total returns the server-reported record count.
func (s *AccountingStore) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// End reports whether every record has been paginated into memory.
func (s *AccountingStore) End() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isEnd
}

// Loading reports whether a page fetch is in flight.
func (s *AccountingStore) Loading() bool {
	return s.loading.Load()
}

// The helpers below recompute from the records loaded so far, not the full
// server dataset. They are exact only once End() reports true for the range
// in question.

// MonthlyIncome sums loaded income for a year-month.
func (s *AccountingStore) MonthlyIncome(yearMonth string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.MonthlyIncome(s.records, yearMonth)
}

// MonthlyExpense sums loaded expenses for a year-month.
func (s *AccountingStore) MonthlyExpense(yearMonth string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.MonthlyExpense(s.records, yearMonth)
}

// MonthlyBalance is income minus expense for a year-month.
func (s *AccountingStore) MonthlyBalance(yearMonth string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.MonthlyBalance(s.records, yearMonth)
}

// MonthlySummary returns the per-month aggregate of the loaded records.
func (s *AccountingStore) MonthlySummary() map[string]core.MonthlySummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.SummaryByMonth(s.records)
}

// CategoryStatistics aggregates loaded records by category for one record
// type, optionally restricted to a year-month.
func (s *AccountingStore) CategoryStatistics(recordType core.RecordType, yearMonth string) map[string]core.CategoryStat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.CategoryStatistics(s.records, recordType, yearMonth)
}

// AvailableMonths lists the year-months present in the loaded records,
// newest first.
func (s *AccountingStore) AvailableMonths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.AvailableMonths(s.records)
}
