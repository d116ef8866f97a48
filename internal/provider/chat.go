package provider

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"inferd/pkg/types"
)

// chatAdapter speaks the OpenAI /chat/completions surface. The native
// OpenAI engines and Google's OpenAI-compatible endpoint both route through
// it; only the defaults differ.
type chatAdapter struct {
	defaultBaseURL string
	defaultModel   string
	requireKey     bool
	defaultDelay   time.Duration
}

var (
	openAIChat = chatAdapter{
		defaultBaseURL: "https://api.openai.com/v1",
		defaultModel:   "gpt-3.5-turbo",
		defaultDelay:   10 * time.Millisecond,
	}
	geminiChat = chatAdapter{
		defaultBaseURL: "https://generativelanguage.googleapis.com/v1beta/openai",
		defaultModel:   "gemini-1.5-flash",
		requireKey:     true,
		defaultDelay:   5 * time.Millisecond,
	}
)

type upstreamError struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *upstreamError `json:"error"`
}

// chatStreamEvent covers the delta shapes seen across OpenAI-compatible
// backends: reasoning arrives as reasoning_content (DeepSeek style) or
// reasoning (OpenRouter style).
type chatStreamEvent struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
			Reasoning        string `json:"reasoning"`
		} `json:"delta"`
	} `json:"choices"`
	Error *upstreamError `json:"error"`
}

func (a chatAdapter) endpoint(specs types.ModelSpecs) (string, map[string]string, error) {
	base := cfgString(specs.Config, "base_url", a.defaultBaseURL)
	key := cfgSecret(specs.Config, "api_key")
	if key == "" && a.requireKey {
		return "", nil, ErrMissingConfig("api_key")
	}
	url := strings.TrimRight(base, "/") + "/chat/completions"
	return url, bearerHeaders(key, cfgHeaders(specs.Config)), nil
}

func (a chatAdapter) payload(req types.InferenceRequest, specs types.ModelSpecs, stream bool) (map[string]any, error) {
	msgs, err := chatMessages(req)
	if err != nil {
		return nil, err
	}
	p := map[string]any{
		"model":    cfgString(specs.Config, "model", a.defaultModel),
		"messages": msgs,
		"stream":   stream,
	}
	applyParameters(p, req.Parameters)
	return p, nil
}

func (a chatAdapter) Converse(ctx context.Context, req types.InferenceRequest, specs types.ModelSpecs) (string, error) {
	url, headers, err := a.endpoint(specs)
	if err != nil {
		return "", err
	}
	payload, err := a.payload(req, specs, false)
	if err != nil {
		return "", err
	}
	raw, err := postJSON(ctx, url, headers, payload)
	if err != nil {
		return "", err
	}
	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", errTransport("decode response", err)
	}
	// Some backends report failures inside a 200 body.
	if out.Error != nil && out.Error.Message != "" {
		return "", errProvider(0, out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", errProvider(0, "response carried no choices")
	}
	return out.Choices[0].Message.Content, nil
}

func (a chatAdapter) ConverseStream(ctx context.Context, req types.InferenceRequest, specs types.ModelSpecs, onChunk ChunkFunc) error {
	url, headers, err := a.endpoint(specs)
	if err != nil {
		return err
	}
	payload, err := a.payload(req, specs, true)
	if err != nil {
		return err
	}
	body, err := openStream(ctx, url, headers, payload)
	if err != nil {
		return err
	}
	defer body.Close()

	delay := streamDelay(req.Parameters, a.defaultDelay)
	return readSSE(ctx, body, func(data string) error {
		var ev chatStreamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return errTransport("decode stream event", err)
		}
		if ev.Error != nil && ev.Error.Message != "" {
			return errProvider(0, ev.Error.Message)
		}
		if len(ev.Choices) == 0 {
			return nil
		}
		d := ev.Choices[0].Delta
		reasoning := d.ReasoningContent
		if reasoning == "" {
			reasoning = d.Reasoning
		}
		if reasoning != "" {
			if err := emit(ctx, onChunk, Chunk{Type: ChunkReasoning, Value: reasoning}, delay); err != nil {
				return err
			}
		}
		if d.Content != "" {
			if err := emit(ctx, onChunk, Chunk{Type: ChunkText, Value: d.Content}, delay); err != nil {
				return err
			}
		}
		return nil
	})
}

// emit paces and delivers one chunk. Callback failures are wrapped so they
// stay distinguishable from provider failures.
func emit(ctx context.Context, onChunk ChunkFunc, c Chunk, delay time.Duration) error {
	if err := pace(ctx, delay); err != nil {
		return err
	}
	if err := onChunk(c); err != nil {
		return callbackError{err: err}
	}
	return nil
}
