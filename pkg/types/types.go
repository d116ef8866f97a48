package types

// Message roles accepted in a request's message list.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleCharacter = "character"
)

// Message is one turn of a conversation.
type Message struct {
	// Role of the author: system, user, assistant or character.
	// example: user
	Role string `json:"role" example:"user"`
	// Text content of the turn.
	// example: Write a haiku about the ocean.
	Text string `json:"text" example:"Write a haiku about the ocean."`
}

// InferenceRequest is a single text-generation request. It is treated as
// immutable once submitted.
type InferenceRequest struct {
	// Caller-supplied opaque unique identifier for the request.
	// example: req-7f3a
	ID string `json:"id" example:"req-7f3a"`
	// Ordered conversation history.
	MessageList []Message `json:"message_list"`
	// Optional system prompt prepended by the provider adapter.
	SystemPrompt string `json:"system_prompt,omitempty"`
	// Provider-specific knobs (max_tokens, temperature, top_p,
	// reasoning_budget, stream_delay_ms, ...). Unrecognized keys are
	// passed through to the provider verbatim.
	Parameters map[string]any `json:"parameters,omitempty"`
	// If true, tokens are streamed as they arrive.
	// example: true
	Stream bool `json:"stream,omitempty" example:"true"`
}

// ModelSpecs identifies a target model/backend configuration. One queue
// exists per distinct ID; its admission limit is fixed at creation time.
type ModelSpecs struct {
	// Queue identifier, one per model/backend configuration.
	// example: gpt4-main
	ID string `json:"id" yaml:"id" toml:"id" example:"gpt4-main"`
	// Provider engine discriminator (openai, openai_compatible,
	// anthropic, openrouter, aws_bedrock, google).
	// example: openai_compatible
	Engine string `json:"engine" yaml:"engine" toml:"engine" example:"openai_compatible"`
	// "chat" or "completion".
	// example: chat
	ModelType string `json:"model_type" yaml:"model_type" toml:"model_type" example:"chat"`
	// Engine-specific configuration: api_key, base_url, model,
	// aws_region, headers, ... Secrets are stored encrypted at rest.
	Config map[string]any `json:"config" yaml:"config" toml:"config"`
	// Admission limit for concurrently executing requests.
	// example: 2
	MaxConcurrentRequests int `json:"max_concurrent_requests" yaml:"max_concurrent_requests" toml:"max_concurrent_requests" example:"2"`
}
