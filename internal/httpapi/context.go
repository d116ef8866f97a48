package httpapi

import (
	"context"
)

// serverBaseCtx is cancelled by the serve command on shutdown so open
// event streams terminate instead of outliving the listener.
var serverBaseCtx = context.Background()

// SetBaseContext installs the shutdown context observed by streaming
// handlers. Call before the server starts accepting; nil resets to
// Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts derives a context that ends with whichever of a or b ends
// first. The cancel func releases the watcher goroutine and must be called
// when the handler returns.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-a.Done():
			cancel()
		case <-b.Done():
			cancel()
		}
	}()
	return ctx, cancel
}
