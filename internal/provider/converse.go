package provider

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"inferd/pkg/types"
)

// converseAdapter speaks the Bedrock converse surface over its REST
// gateway. Message content travels as typed blocks rather than flat
// strings, and there is no separate legacy completion mode.
type converseAdapter struct{}

type converseResponse struct {
	Output struct {
		Message struct {
			Content []converseBlock `json:"content"`
		} `json:"message"`
	} `json:"output"`
	Message string `json:"message"`
}

type converseBlock struct {
	Text             string `json:"text"`
	ReasoningContent *struct {
		ReasoningText struct {
			Text string `json:"text"`
		} `json:"reasoningText"`
	} `json:"reasoningContent"`
}

type converseStreamEvent struct {
	ContentBlockDelta *struct {
		Delta struct {
			Text             string `json:"text"`
			ReasoningContent *struct {
				Text string `json:"text"`
			} `json:"reasoningContent"`
		} `json:"delta"`
	} `json:"contentBlockDelta"`
	// Error shapes (validationException and friends) carry a bare message.
	Message string `json:"message"`
}

func (converseAdapter) endpoint(specs types.ModelSpecs, stream bool) (string, map[string]string, error) {
	model := cfgString(specs.Config, "model", "")
	if model == "" {
		return "", nil, ErrMissingConfig("model")
	}
	key := cfgSecret(specs.Config, "api_key")
	if key == "" {
		return "", nil, ErrMissingConfig("api_key")
	}
	base := cfgString(specs.Config, "base_url", "")
	if base == "" {
		region := cfgString(specs.Config, "aws_region", "")
		if region == "" {
			return "", nil, ErrMissingConfig("aws_region")
		}
		base = "https://bedrock-runtime." + region + ".amazonaws.com"
	}
	op := "converse"
	if stream {
		op = "converse-stream"
	}
	u := strings.TrimRight(base, "/") + "/model/" + url.PathEscape(model) + "/" + op
	return u, bearerHeaders(key, cfgHeaders(specs.Config)), nil
}

func (converseAdapter) payload(req types.InferenceRequest) (map[string]any, error) {
	msgs := make([]map[string]any, 0, len(req.MessageList))
	systemParts := make([]string, 0, 1)
	if req.SystemPrompt != "" {
		systemParts = append(systemParts, req.SystemPrompt)
	}
	for _, m := range req.MessageList {
		role := m.Role
		switch m.Role {
		case types.RoleUser:
		case types.RoleAssistant, types.RoleCharacter:
			role = types.RoleAssistant
		case types.RoleSystem:
			// Converse takes system text out of band, not as a turn.
			systemParts = append(systemParts, m.Text)
			continue
		default:
			return nil, ErrInvalidConfig("message_list", "invalid role: "+m.Role)
		}
		msgs = append(msgs, map[string]any{
			"role":    role,
			"content": []map[string]any{{"text": m.Text}},
		})
	}
	p := map[string]any{"messages": msgs}

	if len(systemParts) > 0 {
		system := make([]map[string]any, 0, len(systemParts)+1)
		for _, s := range systemParts {
			system = append(system, map[string]any{"text": s})
		}
		if depth, ok := paramInt(req.Parameters, "prompt_cache_depth"); ok && depth > 0 {
			system = append(system, map[string]any{"cachePoint": map[string]any{"type": "default"}})
		}
		p["system"] = system
	}

	budget, hasBudget := paramInt(req.Parameters, "reasoning_budget")
	ic := map[string]any{}
	if mt, ok := paramInt(req.Parameters, "max_tokens"); ok {
		// The response budget must leave room for the thinking budget.
		if hasBudget && budget > 0 {
			mt += budget
		}
		ic["maxTokens"] = mt
	}
	if t, ok := paramFloat(req.Parameters, "temperature"); ok {
		ic["temperature"] = t
	}
	if tp, ok := paramFloat(req.Parameters, "top_p"); ok {
		ic["topP"] = tp
	}
	if len(ic) > 0 {
		p["inferenceConfig"] = ic
	}
	if hasBudget && budget > 0 {
		p["additionalModelRequestFields"] = map[string]any{
			"thinking": map[string]any{"type": "enabled", "budget_tokens": budget},
		}
	}
	return p, nil
}

func (a converseAdapter) Converse(ctx context.Context, req types.InferenceRequest, specs types.ModelSpecs) (string, error) {
	url, headers, err := a.endpoint(specs, false)
	if err != nil {
		return "", err
	}
	payload, err := a.payload(req)
	if err != nil {
		return "", err
	}
	raw, err := postJSON(ctx, url, headers, payload)
	if err != nil {
		return "", err
	}
	var out converseResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", errTransport("decode response", err)
	}
	if len(out.Output.Message.Content) == 0 {
		if out.Message != "" {
			return "", errProvider(0, out.Message)
		}
		return "", errProvider(0, "response carried no content blocks")
	}
	var b strings.Builder
	for _, blk := range out.Output.Message.Content {
		b.WriteString(blk.Text)
	}
	return b.String(), nil
}

func (a converseAdapter) ConverseStream(ctx context.Context, req types.InferenceRequest, specs types.ModelSpecs, onChunk ChunkFunc) error {
	url, headers, err := a.endpoint(specs, true)
	if err != nil {
		return err
	}
	payload, err := a.payload(req)
	if err != nil {
		return err
	}
	body, err := openStream(ctx, url, headers, payload)
	if err != nil {
		return err
	}
	defer body.Close()

	delay := streamDelay(req.Parameters, 10*time.Millisecond)
	return readSSE(ctx, body, func(data string) error {
		var ev converseStreamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return errTransport("decode stream event", err)
		}
		if ev.ContentBlockDelta == nil {
			if ev.Message != "" {
				return errProvider(0, ev.Message)
			}
			return nil
		}
		d := ev.ContentBlockDelta.Delta
		if d.ReasoningContent != nil && d.ReasoningContent.Text != "" {
			if err := emit(ctx, onChunk, Chunk{Type: ChunkReasoning, Value: d.ReasoningContent.Text}, delay); err != nil {
				return err
			}
		}
		if d.Text != "" {
			return emit(ctx, onChunk, Chunk{Type: ChunkText, Value: d.Text}, delay)
		}
		return nil
	})
}
