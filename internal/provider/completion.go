package provider

import (
	"context"
	"encoding/json"
	"strings"

	"inferd/pkg/types"
)

// completionAdapter speaks the legacy /completions surface exposed by local
// OpenAI-compatible servers (llama.cpp, koboldcpp and friends). The
// conversation is flattened into a single prompt string.
type completionAdapter struct{}

type completionResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
	Error *upstreamError `json:"error"`
}

func (completionAdapter) endpoint(specs types.ModelSpecs) (string, map[string]string, error) {
	base := cfgString(specs.Config, "base_url", "")
	if base == "" {
		return "", nil, ErrMissingConfig("base_url")
	}
	url := strings.TrimRight(base, "/") + "/completions"
	return url, bearerHeaders(cfgSecret(specs.Config, "api_key"), cfgHeaders(specs.Config)), nil
}

func (completionAdapter) payload(req types.InferenceRequest, specs types.ModelSpecs, stream bool) map[string]any {
	p := map[string]any{
		"prompt": renderPrompt(req),
		"stream": stream,
	}
	if model := cfgString(specs.Config, "model", ""); model != "" {
		p["model"] = model
	}
	applyParameters(p, req.Parameters)
	return p
}

func (a completionAdapter) Converse(ctx context.Context, req types.InferenceRequest, specs types.ModelSpecs) (string, error) {
	url, headers, err := a.endpoint(specs)
	if err != nil {
		return "", err
	}
	raw, err := postJSON(ctx, url, headers, a.payload(req, specs, false))
	if err != nil {
		return "", err
	}
	var out completionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", errTransport("decode response", err)
	}
	if out.Error != nil && out.Error.Message != "" {
		return "", errProvider(0, out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", errProvider(0, "response carried no choices")
	}
	return out.Choices[0].Text, nil
}

func (a completionAdapter) ConverseStream(ctx context.Context, req types.InferenceRequest, specs types.ModelSpecs, onChunk ChunkFunc) error {
	url, headers, err := a.endpoint(specs)
	if err != nil {
		return err
	}
	body, err := openStream(ctx, url, headers, a.payload(req, specs, true))
	if err != nil {
		return err
	}
	defer body.Close()

	delay := streamDelay(req.Parameters, openAIChat.defaultDelay)
	return readSSE(ctx, body, func(data string) error {
		var ev completionResponse
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return errTransport("decode stream event", err)
		}
		if ev.Error != nil && ev.Error.Message != "" {
			return errProvider(0, ev.Error.Message)
		}
		if len(ev.Choices) == 0 || ev.Choices[0].Text == "" {
			return nil
		}
		return emit(ctx, onChunk, Chunk{Type: ChunkText, Value: ev.Choices[0].Text}, delay)
	})
}
