package provider

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// streamIdleTimeout bounds the silence between incoming stream chunks.
// Package variable so tests can shorten it.
var streamIdleTimeout = 120 * time.Second

const doneSentinel = "[DONE]"

// isBenignStreamEnd reports whether err is an upstream's way of saying the
// stream finished. Only a clean EOF or an explicit "stream ended" message
// counts; a connection severed mid-stream (unexpected EOF, reset) must
// surface as a transport error, not a truncated completion.
func isBenignStreamEnd(err error) bool {
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "stream ended")
}

// readSSE delivers each SSE data payload from body to handle, in order,
// until the stream ends. A [DONE] sentinel or a benign end-of-stream signal
// terminates cleanly; more than streamIdleTimeout without a chunk is a
// transport error. Context cancellation wins over any concurrent outcome.
func readSSE(ctx context.Context, body io.Reader, handle func(data string) error) error {
	lines := make(chan string, 16)
	readDone := make(chan error, 1)
	quit := make(chan struct{})
	defer close(quit)

	go func() {
		sc := bufio.NewScanner(body)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-quit:
				return
			}
		}
		readDone <- sc.Err()
	}()

	// handleLine consumes one raw SSE line. done means the stream is over.
	handleLine := func(line string) (done bool, err error) {
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			return false, nil
		}
		if data == doneSentinel {
			return true, nil
		}
		return false, handle(data)
	}

	timer := time.NewTimer(streamIdleTimeout)
	defer timer.Stop()
	for {
		select {
		case line := <-lines:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(streamIdleTimeout)
			done, err := handleLine(line)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		case err := <-readDone:
			// Lines buffered before the reader finished still count.
		drain:
			for {
				select {
				case line := <-lines:
					done, herr := handleLine(line)
					if herr != nil {
						return herr
					}
					if done {
						return nil
					}
				default:
					break drain
				}
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if isBenignStreamEnd(err) {
				return nil
			}
			return errTransport("stream read", err)
		case <-timer.C:
			return errTransport("stream read", fmt.Errorf("stream timeout after %s of inactivity", streamIdleTimeout))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
