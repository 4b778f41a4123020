package logging

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"

	// Service
	FieldService = "service"

	// Engine
	FieldSessionID = "session_id"
	FieldRequested = "requested"
	FieldProduced  = "produced"
	FieldAttempts  = "attempts"
	FieldRegistry  = "registry_size"
	FieldSessions  = "session_count"
	FieldActive    = "active_count"
	FieldBlob      = "blob"
)
