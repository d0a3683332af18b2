// Package services orchestrates the offline-first data path: writes land in
// the local SQLite ledger first, then a sync message is published so the
// worker replays them against the remote backend.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/P4X666/small-ledger/internal/amqp"
	"github.com/P4X666/small-ledger/internal/core"
	"github.com/P4X666/small-ledger/internal/log"
	"github.com/P4X666/small-ledger/internal/storage"
)

// SyncPublisher publishes record sync messages. Satisfied by *amqp.Client.
type SyncPublisher interface {
	PublishRecordSync(ctx context.Context, id, op string) error
	Close() error
}

// LedgerService owns local record writes and their sync hand-off.
type LedgerService struct {
	repo      *storage.LocalRepository
	publisher SyncPublisher
	logger    *log.Logger
}

// NewLedgerService creates a service. The publisher may be nil, in which
// case records wait for the periodic backlog pass of the worker.
func NewLedgerService(repo *storage.LocalRepository, publisher SyncPublisher, logger *log.Logger) *LedgerService {
	return &LedgerService{
		repo:      repo,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentLedger),
	}
}

// CreateRecord validates and stores a record locally, then publishes a sync
// message. A publish failure does not fail the call; the record stays in the
// pending backlog.
func (s *LedgerService) CreateRecord(ctx context.Context, record core.Transaction) (*core.Transaction, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.YearMonth == "" {
		yearMonth, err := core.YearMonthOf(record.Date)
		if err != nil {
			return nil, err
		}
		record.YearMonth = yearMonth
	}

	if err := s.repo.CreateRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("save record: %w", err)
	}

	s.publish(ctx, record.ID, amqp.OpCreate)

	s.logger.InfoContext(ctx, "record saved locally",
		log.FieldRecordID, record.ID,
		log.FieldAmount, record.Amount,
		log.FieldCategory, record.Category)
	return &record, nil
}

// UpdateRecord replaces a record's mutable fields locally and re-queues it.
func (s *LedgerService) UpdateRecord(ctx context.Context, record core.Transaction) error {
	if err := record.Validate(); err != nil {
		return err
	}
	yearMonth, err := core.YearMonthOf(record.Date)
	if err != nil {
		return err
	}
	record.YearMonth = yearMonth

	if err := s.repo.UpdateRecord(ctx, record); err != nil {
		return fmt.Errorf("update record: %w", err)
	}

	s.publish(ctx, record.ID, amqp.OpUpdate)
	return nil
}

// DeleteRecord soft deletes a record locally, then publishes the delete.
func (s *LedgerService) DeleteRecord(ctx context.Context, id string) error {
	if err := s.repo.SoftDeleteRecord(ctx, id); err != nil {
		return fmt.Errorf("soft delete record: %w", err)
	}

	s.publish(ctx, id, amqp.OpDelete)

	s.logger.InfoContext(ctx, "record deleted locally", log.FieldRecordID, id)
	return nil
}

// ListRecords returns local live records, optionally for one year-month.
func (s *LedgerService) ListRecords(ctx context.Context, yearMonth string) ([]core.Transaction, error) {
	return s.repo.ListRecords(ctx, yearMonth, 0)
}

// Statistics aggregates the local records.
func (s *LedgerService) Statistics(ctx context.Context) (*core.TransactionStatistics, error) {
	records, err := s.repo.ListRecords(ctx, "", 0)
	if err != nil {
		return nil, err
	}

	stats := core.TransactionStatistics{MonthlySummary: core.SummaryByMonth(records)}
	for _, record := range records {
		switch record.Type {
		case core.Income:
			stats.TotalIncome += record.Amount
		case core.Expense:
			stats.TotalExpense += record.Amount
		}
	}
	stats.Balance = stats.TotalIncome - stats.TotalExpense
	return &stats, nil
}

func (s *LedgerService) publish(ctx context.Context, id, op string) {
	if s.publisher == nil {
		s.logger.WarnContext(ctx, "sync publisher not available, record waits for backlog pass",
			log.FieldRecordID, id)
		return
	}
	if err := s.publisher.PublishRecordSync(ctx, id, op); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish sync message",
			log.FieldRecordID, id,
			log.FieldOperation, op,
			log.FieldError, err)
	}
}

// Close closes the repository and the publisher.
func (s *LedgerService) Close() error {
	var errs []error
	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
