package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldOperation  = "operation"
	FieldError      = "error"
	FieldStatusCode = "status_code"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldDuration   = "duration_ms"
	FieldRecordID   = "record_id"
	FieldTaskID     = "task_id"
	FieldGoalID     = "goal_id"
	FieldPage       = "page"
	FieldPageSize   = "page_size"
	FieldTotal      = "total"
	FieldYearMonth  = "year_month"
	FieldCategory   = "category"
	FieldAmount     = "amount"
	FieldBackend    = "backend"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentAPI        = "api"
	ComponentAuth       = "auth"
	ComponentAccounting = "accounting"
	ComponentTodo       = "todo"
	ComponentGoals      = "goals"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentLedger     = "ledger"
)
