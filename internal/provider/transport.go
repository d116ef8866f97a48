package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// postJSON performs one JSON round trip and returns the raw response body.
// Non-2xx statuses become provider errors carrying the upstream message.
func postJSON(ctx context.Context, url string, headers map[string]string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errTransport("encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errTransport("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, errTransport("send request", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errTransport("read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errProvider(resp.StatusCode, upstreamMessage(raw))
	}
	return raw, nil
}

// openStream issues a streaming POST and hands back the response body.
// The caller owns closing it.
func openStream(ctx context.Context, url string, headers map[string]string, payload any) (io.ReadCloser, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errTransport("encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errTransport("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, errTransport("open stream", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		return nil, errProvider(resp.StatusCode, upstreamMessage(raw))
	}
	return resp.Body, nil
}

// upstreamMessage extracts a human-readable message from an upstream error
// body, falling back to the (truncated) raw text.
func upstreamMessage(raw []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &e) == nil {
		if e.Error.Message != "" {
			return e.Error.Message
		}
		if e.Message != "" {
			return e.Message
		}
	}
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return "empty error response"
	}
	if len(s) > 512 {
		s = s[:512]
	}
	return s
}

// bearerHeaders builds the common Authorization header set. An empty key
// yields no Authorization header (some local backends take none).
func bearerHeaders(apiKey string, extra map[string]string) map[string]string {
	h := make(map[string]string, len(extra)+1)
	if apiKey != "" {
		h["Authorization"] = "Bearer " + apiKey
	}
	for k, v := range extra {
		h[k] = v
	}
	return h
}
