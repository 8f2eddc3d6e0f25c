package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldSender      = "sender"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldPartition   = "partition"
	FieldCategory    = "category"
	FieldAmountCents = "amount_cents"
	FieldGrammar     = "grammar"
	FieldYear        = "year"
	FieldMonth       = "month"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentTracker   = "tracker"
	ComponentLedger    = "ledger"
	ComponentBudget    = "budget"
	ComponentStorage   = "storage"
	ComponentSheets    = "sheets"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentRateLimit = "rate_limit"
)
