package types

// SubmitRequest is the payload of POST /infer. Either Specs or Model must
// be set; Model refers to a spec loaded from the specs directory.
type SubmitRequest struct {
	// The inference request to enqueue.
	Request InferenceRequest `json:"request"`
	// Inline model specs. Takes precedence over Model when its id is set.
	Specs ModelSpecs `json:"specs,omitempty"`
	// Id of a preloaded model spec.
	// example: gpt4-main
	Model string `json:"model,omitempty" example:"gpt4-main"`
}

// SubmitResponse acknowledges an accepted submission.
type SubmitResponse struct {
	// example: req-7f3a
	RequestID string `json:"request_id" example:"req-7f3a"`
}

// CancelRequest is the payload of POST /cancel.
type CancelRequest struct {
	// example: gpt4-main
	ModelID string `json:"model_id" example:"gpt4-main"`
	// example: req-7f3a
	RequestID string `json:"request_id" example:"req-7f3a"`
}

// CancelResponse reports whether an in-flight request was cancelled.
type CancelResponse struct {
	// example: true
	Cancelled bool `json:"cancelled" example:"true"`
}

// QueueStatus summarizes one model queue for GET /queues.
type QueueStatus struct {
	// example: gpt4-main
	ModelID string `json:"model_id" example:"gpt4-main"`
	// example: openai_compatible
	Engine string `json:"engine" example:"openai_compatible"`
	// Requests waiting to be dequeued.
	// example: 3
	Pending int `json:"pending" example:"3"`
	// Currently executing tasks.
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Admission limit fixed at queue creation.
	// example: 2
	MaxConcurrent int `json:"max_concurrent" example:"2"`
	// True when the queue is drained and has no active tasks.
	// example: false
	Empty bool `json:"empty" example:"false"`
}

// StatusResponse is returned by GET /queues.
type StatusResponse struct {
	Queues []QueueStatus `json:"queues"`
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// example: 400
	Code int `json:"code" example:"400"`
}
