package httpapi

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"inferd/pkg/types"
)

func TestEventStreamFanout(t *testing.T) {
	s := NewEventStream()
	ch1, cancel1 := s.Subscribe()
	ch2, cancel2 := s.Subscribe()
	defer cancel2()

	if got := s.SubscriberCount(); got != 2 {
		t.Fatalf("expected 2 subscribers, got %d", got)
	}
	s.Emit(types.InferenceEvent{RequestID: "r1", Status: types.StatusStreaming})
	for i, ch := range []<-chan types.InferenceEvent{ch1, ch2} {
		select {
		case e := <-ch:
			if e.RequestID != "r1" {
				t.Fatalf("subscriber %d got %+v", i, e)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d received nothing", i)
		}
	}

	cancel1()
	cancel1() // idempotent
	if got := s.SubscriberCount(); got != 1 {
		t.Fatalf("expected 1 subscriber after cancel, got %d", got)
	}
}

func TestEventStreamDropsWhenSubscriberLags(t *testing.T) {
	s := NewEventStream()
	_, cancel := s.Subscribe()
	defer cancel()
	// Emitting past the buffer must not block the producer.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			s.Emit(types.InferenceEvent{RequestID: "r", Status: types.StatusStreaming})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Emit blocked on a lagging subscriber")
	}
}

func TestEventsEndpointStreamsSSE(t *testing.T) {
	svc := &mockService{ready: true}
	events := NewEventStream()
	srv := httptest.NewServer(NewMux(svc, events, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/events")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Fatalf("content-type=%s", ct)
	}

	// The subscription is registered before the handler flushes headers.
	deadline := time.Now().Add(2 * time.Second)
	for events.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	events.Emit(types.InferenceEvent{RequestID: "r1", Status: types.StatusCompleted, Result: &types.EventResult{Text: "done"}})

	r := bufio.NewReader(resp.Body)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev types.InferenceEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &ev); err != nil {
			t.Fatalf("json: %v", err)
		}
		if ev.RequestID != "r1" || ev.Status != types.StatusCompleted {
			t.Fatalf("unexpected event: %+v", ev)
		}
		return
	}
}

func TestEventsEndpointWithoutStream404s(t *testing.T) {
	h := NewMux(&mockService{ready: true}, nil, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without an event stream, got %d", w.Code)
	}
}
