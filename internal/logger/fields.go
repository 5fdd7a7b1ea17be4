package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// ============================================
// Tracing Fields (Context level)
// These fields follow a unit of work through the pipeline
// ============================================

const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldComponent is the pipeline component name
	FieldComponent = "component"

	// FieldApplicationID is the application being processed
	FieldApplicationID = "application_id"

	// FieldBatchID identifies one batch coordinator run
	FieldBatchID = "batch_id"

	// FieldJobRequirementID is the job requirement of a matching run
	FieldJobRequirementID = "job_requirement_id"

	// FieldNotificationID is the audit record of a notification attempt
	FieldNotificationID = "notification_id"
)

// ============================================
// Metric Fields (Entry level)
// ============================================

const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldAttempt is the 1-based attempt number of a retried call
	FieldAttempt = "attempt"

	// FieldStatus is the operation or row status
	FieldStatus = "status"
)
