// Package worker drains the local sync backlog to the remote ledger backend.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/P4X666/small-ledger/internal/amqp"
	"github.com/P4X666/small-ledger/internal/api"
	"github.com/P4X666/small-ledger/internal/core"
	"github.com/P4X666/small-ledger/internal/log"
	"github.com/P4X666/small-ledger/internal/storage"
)

// RemoteLedger is the backend surface the worker replays against. Satisfied
// by *api.TransactionsService.
type RemoteLedger interface {
	Create(ctx context.Context, params api.CreateTransactionParams) (*core.Transaction, error)
	Update(ctx context.Context, id string, params api.UpdateTransactionParams) (*core.Transaction, error)
	Delete(ctx context.Context, id string) error
}

// SyncWorker pushes locally written records to the remote backend, driven by
// AMQP messages with a periodic backlog pass as backup for lost messages.
type SyncWorker struct {
	repo      *storage.LocalRepository
	remote    RemoteLedger
	batchSize int
	logger    *log.Logger
}

// NewSyncWorker creates a worker over the local repository and the remote
// transactions API.
func NewSyncWorker(repo *storage.LocalRepository, remote RemoteLedger, batchSize int, logger *log.Logger) *SyncWorker {
	return &SyncWorker{
		repo:      repo,
		remote:    remote,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleSyncMessage replays one record against the backend. Returning an
// error requeues the message.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.RecordSyncMessage) error {
	w.logger.InfoContext(ctx, "processing sync message",
		log.FieldRecordID, msg.ID,
		log.FieldOperation, msg.Op)

	switch msg.Op {
	case amqp.OpDelete:
		return w.replayDelete(ctx, msg.ID)
	case amqp.OpUpdate:
		return w.replayUpdate(ctx, msg.ID)
	default:
		return w.replayCreate(ctx, msg.ID)
	}
}

func (w *SyncWorker) replayCreate(ctx context.Context, id string) error {
	record, err := w.repo.GetRecord(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Deleted locally before the message arrived; nothing to replay
			w.logger.WarnContext(ctx, "record vanished before sync", log.FieldRecordID, id)
			return nil
		}
		return fmt.Errorf("get record from storage: %w", err)
	}

	_, err = w.remote.Create(ctx, api.CreateTransactionParams{
		Type:     record.Type,
		Amount:   record.Amount,
		Category: record.Category,
		Remark:   record.Remark,
		Date:     record.Date,
	})
	if err != nil {
		if markErr := w.repo.MarkSyncError(ctx, id); markErr != nil {
			w.logger.ErrorContext(ctx, "failed to mark sync error",
				log.FieldRecordID, id, log.FieldError, markErr)
		}
		return fmt.Errorf("push record to backend: %w", err)
	}

	if err := w.repo.MarkSynced(ctx, id); err != nil {
		// The push worked; only the bookkeeping failed
		w.logger.ErrorContext(ctx, "failed to mark as synced",
			log.FieldRecordID, id, log.FieldError, err)
	}

	w.logger.InfoContext(ctx, "record synced",
		log.FieldRecordID, id,
		log.FieldAmount, record.Amount)
	return nil
}

func (w *SyncWorker) replayUpdate(ctx context.Context, id string) error {
	record, err := w.repo.GetRecord(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			w.logger.WarnContext(ctx, "record vanished before sync", log.FieldRecordID, id)
			return nil
		}
		return fmt.Errorf("get record from storage: %w", err)
	}

	_, err = w.remote.Update(ctx, id, api.UpdateTransactionParams{
		Type:     &record.Type,
		Amount:   &record.Amount,
		Category: &record.Category,
		Remark:   &record.Remark,
		Date:     &record.Date,
	})
	if err != nil {
		// The backend never saw the record, typically a lost create message;
		// replay the full record as a create instead
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Status == 404 {
			w.logger.WarnContext(ctx, "record unknown to backend, replaying as create",
				log.FieldRecordID, id)
			return w.replayCreate(ctx, id)
		}
		if markErr := w.repo.MarkSyncError(ctx, id); markErr != nil {
			w.logger.ErrorContext(ctx, "failed to mark sync error",
				log.FieldRecordID, id, log.FieldError, markErr)
		}
		return fmt.Errorf("push record update to backend: %w", err)
	}

	if err := w.repo.MarkSynced(ctx, id); err != nil {
		w.logger.ErrorContext(ctx, "failed to mark as synced",
			log.FieldRecordID, id, log.FieldError, err)
	}

	w.logger.InfoContext(ctx, "record update synced",
		log.FieldRecordID, id,
		log.FieldAmount, record.Amount)
	return nil
}

// replayPending routes a backlog entry: deletes replay as deletes, records
// the backend has already seen replay as updates, the rest as creates.
func (w *SyncWorker) replayPending(ctx context.Context, p storage.PendingRecord) error {
	switch {
	case p.Deleted:
		return w.replayDelete(ctx, p.ID)
	case p.SyncedOnce:
		return w.replayUpdate(ctx, p.ID)
	default:
		return w.replayCreate(ctx, p.ID)
	}
}

func (w *SyncWorker) replayDelete(ctx context.Context, id string) error {
	if err := w.remote.Delete(ctx, id); err != nil {
		// A 404 means the backend never saw the record; the delete is done
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Status == 404 {
			w.logger.WarnContext(ctx, "record unknown to backend, delete skipped",
				log.FieldRecordID, id)
		} else {
			if markErr := w.repo.MarkSyncError(ctx, id); markErr != nil {
				w.logger.ErrorContext(ctx, "failed to mark sync error",
					log.FieldRecordID, id, log.FieldError, markErr)
			}
			return fmt.Errorf("delete record on backend: %w", err)
		}
	}

	if err := w.repo.MarkSynced(ctx, id); err != nil {
		w.logger.ErrorContext(ctx, "failed to mark as synced",
			log.FieldRecordID, id, log.FieldError, err)
	}

	w.logger.InfoContext(ctx, "record delete synced", log.FieldRecordID, id)
	return nil
}

// ProcessPendingRecords replays up to one batch of records still awaiting
// sync. This is the backup path for lost AMQP messages.
func (w *SyncWorker) ProcessPendingRecords(ctx context.Context) error {
	pending, err := w.repo.PendingSyncRecords(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending records: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	w.logger.InfoContext(ctx, "processing pending records", log.FieldTotal, len(pending))

	for _, p := range pending {
		if err := w.replayPending(ctx, p); err != nil {
			w.logger.ErrorContext(ctx, "failed to sync pending record",
				log.FieldRecordID, p.ID, log.FieldError, err)
		}
	}
	return nil
}

// StartupSyncCheck drains a larger backlog once at startup, recovering from
// worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.repo.PendingSyncRecords(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending records for startup check: %w", err)
	}
	if len(pending) == 0 {
		w.logger.InfoContext(ctx, "no pending records found on startup")
		return nil
	}

	w.logger.InfoContext(ctx, "found pending records on startup", log.FieldTotal, len(pending))

	synced, failed := 0, 0
	for _, p := range pending {
		if err := w.replayPending(ctx, p); err != nil {
			failed++
			continue
		}
		synced++
	}

	w.logger.InfoContext(ctx, "startup sync completed",
		log.FieldTotal, len(pending),
		"synced", synced,
		"errors", failed)
	return nil
}

// RunPeriodicBacklogPass calls ProcessPendingRecords on the given interval
// until the context is cancelled.
func (w *SyncWorker) RunPeriodicBacklogPass(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.ProcessPendingRecords(ctx); err != nil {
				w.logger.ErrorContext(ctx, "backlog pass failed", log.FieldError, err)
			}
		}
	}
}
