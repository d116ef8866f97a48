package provider

import (
	"context"
	"net/http"
	"time"

	"inferd/pkg/types"
)

// Engine discriminators accepted in ModelSpecs.Engine.
const (
	EngineOpenAI           = "openai"
	EngineOpenAICompatible = "openai_compatible"
	EngineAnthropic        = "anthropic"
	EngineOpenRouter       = "openrouter"
	EngineBedrock          = "aws_bedrock"
	EngineGoogle           = "google"
)

// ModelTypeCompletion selects the legacy completion surface for
// OpenAI-compatible engines. Any other value is treated as chat.
const ModelTypeCompletion = "completion"

// ChunkType discriminates normalized stream chunks.
type ChunkType string

const (
	ChunkText      ChunkType = "text"
	ChunkReasoning ChunkType = "reasoning"
)

// Chunk is the normalized unit produced by any adapter during streaming.
type Chunk struct {
	Type  ChunkType
	Value string
}

// ChunkFunc receives normalized chunks as they arrive. Returning an error
// aborts the stream.
type ChunkFunc func(Chunk) error

// Adapter is implemented once per provider engine.
type Adapter interface {
	// Converse performs one round trip and returns the generated text.
	Converse(ctx context.Context, req types.InferenceRequest, specs types.ModelSpecs) (string, error)
	// ConverseStream issues a streaming call and invokes onChunk for
	// every non-empty delta.
	ConverseStream(ctx context.Context, req types.InferenceRequest, specs types.ModelSpecs, onChunk ChunkFunc) error
}

// ForSpecs selects the adapter for the given specs.
func ForSpecs(specs types.ModelSpecs) (Adapter, error) {
	switch specs.Engine {
	case EngineBedrock:
		return converseAdapter{}, nil
	case EngineGoogle:
		return geminiChat, nil
	case EngineOpenAI, EngineOpenAICompatible, EngineAnthropic, EngineOpenRouter:
		if specs.ModelType == ModelTypeCompletion {
			return completionAdapter{}, nil
		}
		return openAIChat, nil
	default:
		return nil, unknownEngineError{engine: specs.Engine}
	}
}

// httpClient serves non-streaming calls with an overall deadline.
// streamClient has no deadline because a stream may legitimately outlive any
// fixed timeout; silence is bounded by streamIdleTimeout instead.
var (
	httpClient   = &http.Client{Timeout: 120 * time.Second}
	streamClient = &http.Client{}
)
