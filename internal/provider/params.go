package provider

import (
	"context"
	"strings"
	"time"

	"inferd/pkg/types"
)

// Request parameters that steer local behavior and never go on the wire.
var localParams = map[string]bool{
	"stream_delay_ms":    true,
	"reasoning_budget":   true,
	"prompt_cache_depth": true,
}

// applyParameters copies request parameters onto an OpenAI-style payload.
// The shared vocabulary (max_tokens, temperature, top_p, stop,
// frequency_penalty, presence_penalty, seed) already uses OpenAI field
// names; unrecognized keys are passed through verbatim so engine-specific
// sampling knobs (top_k, min_p, repetition_penalty, ...) survive the trip.
func applyParameters(payload map[string]any, params map[string]any) {
	for k, v := range params {
		if localParams[k] {
			continue
		}
		payload[k] = v
	}
}

// paramInt reads a numeric parameter. JSON decoding yields float64, config
// files may yield int or int64; all are accepted.
func paramInt(params map[string]any, key string) (int64, bool) {
	switch v := params[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	}
	return 0, false
}

func paramFloat(params map[string]any, key string) (float64, bool) {
	switch v := params[key].(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// streamDelay returns the inter-chunk pacing delay for a request.
func streamDelay(params map[string]any, def time.Duration) time.Duration {
	if ms, ok := paramInt(params, "stream_delay_ms"); ok {
		if ms <= 0 {
			return 0
		}
		return time.Duration(ms) * time.Millisecond
	}
	return def
}

// pace sleeps for the inter-chunk delay, honoring cancellation.
func pace(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatMessages shapes the request history for chat-style endpoints.
// Character turns are authored personas and map onto the assistant role.
func chatMessages(req types.InferenceRequest) ([]chatMessage, error) {
	msgs := make([]chatMessage, 0, len(req.MessageList)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, chatMessage{Role: types.RoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.MessageList {
		role := m.Role
		switch m.Role {
		case types.RoleUser, types.RoleAssistant, types.RoleSystem:
		case types.RoleCharacter:
			role = types.RoleAssistant
		default:
			return nil, ErrInvalidConfig("message_list", "invalid role: "+m.Role)
		}
		msgs = append(msgs, chatMessage{Role: role, Content: m.Text})
	}
	return msgs, nil
}

// renderPrompt flattens the conversation for legacy completion endpoints.
func renderPrompt(req types.InferenceRequest) string {
	var b strings.Builder
	if req.SystemPrompt != "" {
		b.WriteString(req.SystemPrompt)
		b.WriteString("\n\n")
	}
	for i, m := range req.MessageList {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.Text)
	}
	return b.String()
}
