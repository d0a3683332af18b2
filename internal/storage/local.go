// Package storage persists the local ledger in SQLite: the record, task,
// and goal collections plus a small key/value table for credentials. It is
// the device-side source of truth for the offline-first data path; the sync
// worker drains pending records to the remote backend.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/P4X666/small-ledger/internal/core"

	_ "modernc.org/sqlite"
)

// Sync states of a local record.
const (
	SyncPending = 0
	SyncDone    = 1
	SyncError   = 2
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// LocalRepository is the SQLite-backed local ledger.
type LocalRepository struct {
	db *sql.DB
}

// NewLocalRepository opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewLocalRepository(dbPath string) (*LocalRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &LocalRepository{db: db}, nil
}

// Close closes the underlying database.
func (r *LocalRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Get reads a value from the kv table, "" when the key is absent.
func (r *LocalRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get kv %s: %w", key, err)
	}
	return value, nil
}

// Set writes a value to the kv table.
func (r *LocalRepository) Set(key, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set kv %s: %w", key, err)
	}
	return nil
}

// Delete removes a key from the kv table.
func (r *LocalRepository) Delete(key string) error {
	if _, err := r.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete kv %s: %w", key, err)
	}
	return nil
}

// CreateRecord inserts a transaction. The caller assigns the id.
func (r *LocalRepository) CreateRecord(ctx context.Context, record core.Transaction) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO records (id, type, amount, category, remark, date, year_month, sync_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Type, record.Amount, record.Category,
		record.Remark, record.Date, record.YearMonth, SyncPending)
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	return nil
}

// GetRecord returns one record, deleted ones included (the sync worker needs
// them to replay deletes).
func (r *LocalRepository) GetRecord(ctx context.Context, id string) (*core.Transaction, error) {
	var record core.Transaction
	err := r.db.QueryRowContext(ctx,
		`SELECT id, type, amount, category, remark, date, year_month
		 FROM records WHERE id = ?`, id).
		Scan(&record.ID, &record.Type, &record.Amount, &record.Category,
			&record.Remark, &record.Date, &record.YearMonth)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	return &record, nil
}

// ListRecords returns live records newest first. A non-empty yearMonth
// restricts to that month; limit <= 0 means no limit.
func (r *LocalRepository) ListRecords(ctx context.Context, yearMonth string, limit int) ([]core.Transaction, error) {
	query := `SELECT id, type, amount, category, remark, date, year_month
	          FROM records WHERE deleted = 0`
	args := []any{}
	if yearMonth != "" {
		query += ` AND year_month = ?`
		args = append(args, yearMonth)
	}
	query += ` ORDER BY date DESC, created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []core.Transaction
	for rows.Next() {
		var record core.Transaction
		if err := rows.Scan(&record.ID, &record.Type, &record.Amount, &record.Category,
			&record.Remark, &record.Date, &record.YearMonth); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// UpdateRecord replaces the mutable fields of a record and re-queues it for
// sync.
func (r *LocalRepository) UpdateRecord(ctx context.Context, record core.Transaction) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE records
		 SET type = ?, amount = ?, category = ?, remark = ?, date = ?, year_month = ?,
		     sync_status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted = 0`,
		record.Type, record.Amount, record.Category, record.Remark,
		record.Date, record.YearMonth, SyncPending, record.ID)
	if err != nil {
		return fmt.Errorf("update record %s: %w", record.ID, err)
	}
	return requireRow(result, record.ID)
}

// SoftDeleteRecord marks a record deleted and re-queues it so the delete
// reaches the backend.
func (r *LocalRepository) SoftDeleteRecord(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE records
		 SET deleted = 1, sync_status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`, SyncPending, id)
	if err != nil {
		return fmt.Errorf("soft delete record %s: %w", id, err)
	}
	return requireRow(result, id)
}

// PendingRecord is one entry of the sync backlog. SyncedOnce tells the
// worker whether the backend has seen the record before, so a pending edit
// replays as an update instead of a second create.
type PendingRecord struct {
	ID         string
	Deleted    bool
	SyncedOnce bool
}

// PendingSyncRecords returns up to limit records awaiting sync, oldest first.
func (r *LocalRepository) PendingSyncRecords(ctx context.Context, limit int) ([]PendingRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, deleted, synced_once FROM records
		 WHERE sync_status = ? ORDER BY updated_at ASC LIMIT ?`,
		SyncPending, limit)
	if err != nil {
		return nil, fmt.Errorf("pending sync records: %w", err)
	}
	defer rows.Close()

	var pending []PendingRecord
	for rows.Next() {
		var p PendingRecord
		if err := rows.Scan(&p.ID, &p.Deleted, &p.SyncedOnce); err != nil {
			return nil, fmt.Errorf("scan pending record: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// MarkSynced marks a record as delivered to the backend.
func (r *LocalRepository) MarkSynced(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE records
		 SET sync_status = ?, synced_once = 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`, SyncDone, id)
	if err != nil {
		return fmt.Errorf("mark synced %s: %w", id, err)
	}
	return requireRow(result, id)
}

// MarkSyncError marks a record as failed to deliver. The periodic backlog
// pass will not retry it until it is re-queued.
func (r *LocalRepository) MarkSyncError(ctx context.Context, id string) error {
	return r.setSyncStatus(ctx, id, SyncError)
}

func (r *LocalRepository) setSyncStatus(ctx context.Context, id string, status int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE records SET sync_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id)
	if err != nil {
		return fmt.Errorf("set sync status %s: %w", id, err)
	}
	return requireRow(result, id)
}

// SaveTask inserts or replaces a task.
func (r *LocalRepository) SaveTask(ctx context.Context, task core.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, title, description, status, time_period, importance, urgency, due_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title, description = excluded.description,
		   status = excluded.status, time_period = excluded.time_period,
		   importance = excluded.importance, urgency = excluded.urgency,
		   due_date = excluded.due_date, updated_at = CURRENT_TIMESTAMP`,
		task.ID, task.Title, task.Description, task.Status,
		task.TimePeriod, task.Importance, task.Urgency, task.DueDate)
	if err != nil {
		return fmt.Errorf("save task %s: %w", task.ID, err)
	}
	return nil
}

// ListTasks returns all tasks, newest first.
func (r *LocalRepository) ListTasks(ctx context.Context) ([]core.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, description, status, time_period, importance, urgency, due_date
		 FROM tasks ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []core.Task
	for rows.Next() {
		var task core.Task
		if err := rows.Scan(&task.ID, &task.Title, &task.Description, &task.Status,
			&task.TimePeriod, &task.Importance, &task.Urgency, &task.DueDate); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// DeleteTask removes a task.
func (r *LocalRepository) DeleteTask(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return requireRow(result, id)
}

// SaveGoal inserts or replaces a savings goal.
func (r *LocalRepository) SaveGoal(ctx context.Context, goal core.SavingsGoal) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO goals (id, title, target_amount, current_amount, description, period, end_date, is_completed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title, target_amount = excluded.target_amount,
		   current_amount = excluded.current_amount, description = excluded.description,
		   period = excluded.period, end_date = excluded.end_date,
		   is_completed = excluded.is_completed, updated_at = CURRENT_TIMESTAMP`,
		goal.ID, goal.Title, goal.TargetAmount, goal.CurrentAmount,
		goal.Description, goal.Period, goal.EndDate, goal.IsCompleted)
	if err != nil {
		return fmt.Errorf("save goal %s: %w", goal.ID, err)
	}
	return nil
}

// ListGoals returns all goals, newest first.
func (r *LocalRepository) ListGoals(ctx context.Context) ([]core.SavingsGoal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, target_amount, current_amount, description, period, end_date, is_completed
		 FROM goals ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []core.SavingsGoal
	for rows.Next() {
		var goal core.SavingsGoal
		if err := rows.Scan(&goal.ID, &goal.Title, &goal.TargetAmount, &goal.CurrentAmount,
			&goal.Description, &goal.Period, &goal.EndDate, &goal.IsCompleted); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, goal)
	}
	return goals, rows.Err()
}

// DeleteGoal removes a goal.
func (r *LocalRepository) DeleteGoal(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete goal %s: %w", id, err)
	}
	return requireRow(result, id)
}

func requireRow(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
