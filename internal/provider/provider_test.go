package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inferd/pkg/types"
)

func chatSpecs(baseURL string) types.ModelSpecs {
	return types.ModelSpecs{
		ID:     "test-chat",
		Engine: EngineOpenAICompatible,
		Config: map[string]any{
			"base_url": baseURL,
			"model":    "test-model",
		},
		MaxConcurrentRequests: 1,
	}
}

func simpleRequest(stream bool) types.InferenceRequest {
	return types.InferenceRequest{
		ID:           "req-1",
		MessageList:  []types.Message{{Role: types.RoleUser, Text: "hello"}},
		SystemPrompt: "be terse",
		Parameters:   map[string]any{"stream_delay_ms": 0, "max_tokens": 32},
		Stream:       stream,
	}
}

func sseBody(w http.ResponseWriter, lines ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, l := range lines {
		fmt.Fprintf(w, "data: %s\n\n", l)
	}
}

func TestForSpecs(t *testing.T) {
	cases := []struct {
		engine    string
		modelType string
		want      any
	}{
		{EngineOpenAI, "chat", openAIChat},
		{EngineOpenAICompatible, "chat", openAIChat},
		{EngineAnthropic, "chat", openAIChat},
		{EngineOpenRouter, "chat", openAIChat},
		{EngineOpenAICompatible, ModelTypeCompletion, completionAdapter{}},
		{EngineGoogle, "chat", geminiChat},
		{EngineBedrock, "chat", converseAdapter{}},
	}
	for _, tc := range cases {
		a, err := ForSpecs(types.ModelSpecs{Engine: tc.engine, ModelType: tc.modelType})
		require.NoError(t, err, tc.engine)
		assert.Equal(t, tc.want, a, tc.engine)
	}

	_, err := ForSpecs(types.ModelSpecs{Engine: "carrier-pigeon"})
	assert.True(t, IsUnknownEngine(err))
}

func TestChatConverse(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "/chat/completions", r.URL.Path)
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ocean waves"}}]}`)
	}))
	defer srv.Close()

	text, err := openAIChat.Converse(context.Background(), simpleRequest(false), chatSpecs(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "ocean waves", text)

	assert.Equal(t, "test-model", got["model"])
	assert.Equal(t, false, got["stream"])
	assert.Equal(t, float64(32), got["max_tokens"])
	// Local-only knobs never reach the wire.
	assert.NotContains(t, got, "stream_delay_ms")

	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	first := msgs[0].(map[string]any)
	assert.Equal(t, "system", first["role"])
	assert.Equal(t, "be terse", first["content"])
}

func TestChatConverseCharacterRole(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	req := simpleRequest(false)
	req.MessageList = []types.Message{
		{Role: types.RoleUser, Text: "hi"},
		{Role: types.RoleCharacter, Text: "greetings, traveler"},
		{Role: types.RoleUser, Text: "onward"},
	}
	_, err := openAIChat.Converse(context.Background(), req, chatSpecs(srv.URL))
	require.NoError(t, err)

	msgs := got["messages"].([]any)
	require.Len(t, msgs, 4)
	assert.Equal(t, "assistant", msgs[2].(map[string]any)["role"])
}

func TestChatConverseInvalidRole(t *testing.T) {
	req := simpleRequest(false)
	req.MessageList = []types.Message{{Role: "narrator", Text: "meanwhile"}}
	_, err := openAIChat.Converse(context.Background(), req, chatSpecs("http://127.0.0.1:1"))
	assert.True(t, IsConfigError(err))
}

func TestChatConverseUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limited, slow down"}}`)
	}))
	defer srv.Close()

	_, err := openAIChat.Converse(context.Background(), simpleRequest(false), chatSpecs(srv.URL))
	require.Error(t, err)
	assert.True(t, IsProviderError(err))
	assert.Contains(t, err.Error(), "rate limited, slow down")
}

func TestChatConverseErrorInsideOKBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"message":"model is overloaded"}}`)
	}))
	defer srv.Close()

	_, err := openAIChat.Converse(context.Background(), simpleRequest(false), chatSpecs(srv.URL))
	require.Error(t, err)
	assert.True(t, IsProviderError(err))
	assert.Contains(t, err.Error(), "model is overloaded")
}

func TestChatConverseStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sseBody(w,
			`{"choices":[{"delta":{"reasoning_content":"thinking"}}]}`,
			`{"choices":[{"delta":{"content":"ocean "}}]}`,
			`{"choices":[{"delta":{"content":"waves"}}]}`,
			doneSentinel,
		)
	}))
	defer srv.Close()

	var chunks []Chunk
	err := openAIChat.ConverseStream(context.Background(), simpleRequest(true), chatSpecs(srv.URL), func(c Chunk) error {
		chunks = append(chunks, c)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, Chunk{Type: ChunkReasoning, Value: "thinking"}, chunks[0])
	assert.Equal(t, Chunk{Type: ChunkText, Value: "ocean "}, chunks[1])
	assert.Equal(t, Chunk{Type: ChunkText, Value: "waves"}, chunks[2])
}

func TestChatConverseStreamWithoutSentinel(t *testing.T) {
	// Clean close without [DONE] counts as end of stream.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sseBody(w, `{"choices":[{"delta":{"content":"done"}}]}`)
	}))
	defer srv.Close()

	var chunks []Chunk
	err := openAIChat.ConverseStream(context.Background(), simpleRequest(true), chatSpecs(srv.URL), func(c Chunk) error {
		chunks = append(chunks, c)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
}

func TestChatConverseStreamSeveredConnection(t *testing.T) {
	// One chunk, then the socket dies mid-stream without a terminating
	// chunk. That is a transport error, never a truncated completion.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, buf, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		payload := "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n"
		fmt.Fprint(buf, "HTTP/1.1 200 OK\r\nContent-Type: text/event-stream\r\nTransfer-Encoding: chunked\r\n\r\n")
		fmt.Fprintf(buf, "%x\r\n%s\r\n", len(payload), payload)
		buf.Flush()
		conn.Close()
	}))
	defer srv.Close()

	var chunks []Chunk
	err := openAIChat.ConverseStream(context.Background(), simpleRequest(true), chatSpecs(srv.URL), func(c Chunk) error {
		chunks = append(chunks, c)
		return nil
	})
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.Len(t, chunks, 1)
}

func TestBenignStreamEnd(t *testing.T) {
	assert.True(t, isBenignStreamEnd(nil))
	assert.True(t, isBenignStreamEnd(io.EOF))
	assert.True(t, isBenignStreamEnd(fmt.Errorf("upstream: Stream ended")))
	assert.False(t, isBenignStreamEnd(io.ErrUnexpectedEOF))
	assert.False(t, isBenignStreamEnd(fmt.Errorf("read tcp: connection reset by peer")))
}

func TestChatConverseStreamErrorEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sseBody(w,
			`{"choices":[{"delta":{"content":"partial"}}]}`,
			`{"error":{"message":"quota exhausted"}}`,
		)
	}))
	defer srv.Close()

	var chunks []Chunk
	err := openAIChat.ConverseStream(context.Background(), simpleRequest(true), chatSpecs(srv.URL), func(c Chunk) error {
		chunks = append(chunks, c)
		return nil
	})
	require.Error(t, err)
	assert.True(t, IsProviderError(err))
	assert.Contains(t, err.Error(), "quota exhausted")
	assert.Len(t, chunks, 1)
}

func TestChatConverseStreamCallbackError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sseBody(w, `{"choices":[{"delta":{"content":"x"}}]}`, doneSentinel)
	}))
	defer srv.Close()

	err := openAIChat.ConverseStream(context.Background(), simpleRequest(true), chatSpecs(srv.URL), func(Chunk) error {
		return fmt.Errorf("sink full")
	})
	require.Error(t, err)
	assert.True(t, IsCallbackError(err))
}

func TestChatConverseStreamIdleTimeout(t *testing.T) {
	old := streamIdleTimeout
	streamIdleTimeout = 50 * time.Millisecond
	defer func() { streamIdleTimeout = old }()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	err := openAIChat.ConverseStream(context.Background(), simpleRequest(true), chatSpecs(srv.URL), func(Chunk) error {
		return nil
	})
	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.Contains(t, err.Error(), "timeout")
}

func TestChatConverseStreamCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	err := openAIChat.ConverseStream(ctx, simpleRequest(true), chatSpecs(srv.URL), func(Chunk) error {
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGeminiChatRequiresKey(t *testing.T) {
	specs := types.ModelSpecs{Engine: EngineGoogle, Config: map[string]any{}}
	_, err := geminiChat.Converse(context.Background(), simpleRequest(false), specs)
	assert.True(t, IsConfigError(err))
}

func TestCompletionConverse(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, "/completions", r.URL.Path)
		fmt.Fprint(w, `{"choices":[{"text":"flat prompt reply"}]}`)
	}))
	defer srv.Close()

	specs := chatSpecs(srv.URL)
	specs.ModelType = ModelTypeCompletion
	req := simpleRequest(false)
	req.MessageList = append(req.MessageList, types.Message{Role: types.RoleAssistant, Text: "hi back"})

	text, err := completionAdapter{}.Converse(context.Background(), req, specs)
	require.NoError(t, err)
	assert.Equal(t, "flat prompt reply", text)
	assert.Equal(t, "be terse\n\nhello\nhi back", got["prompt"])
}

func TestCompletionRequiresBaseURL(t *testing.T) {
	specs := types.ModelSpecs{Engine: EngineOpenAICompatible, ModelType: ModelTypeCompletion, Config: map[string]any{}}
	_, err := completionAdapter{}.Converse(context.Background(), simpleRequest(false), specs)
	assert.True(t, IsConfigError(err))
}

func TestCompletionConverseStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sseBody(w,
			`{"choices":[{"text":"to"}]}`,
			`{"choices":[{"text":"ken"}]}`,
			doneSentinel,
		)
	}))
	defer srv.Close()

	specs := chatSpecs(srv.URL)
	specs.ModelType = ModelTypeCompletion
	var out string
	err := completionAdapter{}.ConverseStream(context.Background(), simpleRequest(true), specs, func(c Chunk) error {
		out += c.Value
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "token", out)
}
