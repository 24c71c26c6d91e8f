package logger

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Chat
	FieldUser    = "user"
	FieldTo      = "to"
	FieldKind    = "kind"
	FieldCount   = "count"
	FieldCutoff  = "cutoff"
	FieldEvicted = "evicted"

	// Service
	FieldService = "service"
)

const headerRequestID = "X-Request-ID"
