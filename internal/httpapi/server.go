package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inferd/internal/queue"
	"inferd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Submit(req types.InferenceRequest, specs types.ModelSpecs) (string, error)
	Cancel(modelID, requestID string) bool
	Status() []types.QueueStatus
	Uptime() time.Duration
	Ready() bool
}

// SpecsLookup resolves a model name from the specs registry. It may be nil
// when no registry is configured; callers then must inline specs.
type SpecsLookup func(id string) (types.ModelSpecs, bool)

func NewMux(svc Service, events *EventStream, lookup SpecsLookup) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(MetricsMiddleware)

	// Submit godoc
	// @Summary      Submit an inference request
	// @Description  Enqueues the request on the queue for the target model and returns immediately. Progress and results arrive on /events.
	// @Accept       json
	// @Produce      json
	// @Param        body body types.SubmitRequest true "request and target model"
	// @Success      202 {object} types.SubmitResponse
	// @Failure      400 {object} types.ErrorResponse
	// @Failure      404 {object} types.ErrorResponse
	// @Failure      429 {object} types.ErrorResponse
	// @Router       /infer [post]
	r.Post("/infer", func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var sub types.SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		specs := sub.Specs
		if specs.ID == "" {
			if sub.Model == "" {
				writeJSONError(w, http.StatusBadRequest, "either specs or model is required")
				return
			}
			if lookup == nil {
				writeJSONError(w, http.StatusNotFound, "no specs registry configured: "+sub.Model)
				return
			}
			var ok bool
			if specs, ok = lookup(sub.Model); !ok {
				writeJSONError(w, http.StatusNotFound, "unknown model: "+sub.Model)
				return
			}
		}
		req := sub.Request
		if req.ID == "" {
			req.ID = newRequestID()
		}
		if len(req.MessageList) == 0 {
			writeJSONError(w, http.StatusBadRequest, "message_list is required")
			return
		}

		start := time.Now()
		id, err := svc.Submit(req, specs)
		if err != nil {
			switch {
			case queue.IsQueueFull(err):
				IncrementBackpressure("queue_full")
				writeJSONError(w, http.StatusTooManyRequests, err.Error())
			case queue.IsQueueClosed(err):
				writeJSONError(w, http.StatusServiceUnavailable, err.Error())
			case queue.IsInvalidSubmit(err):
				writeJSONError(w, http.StatusBadRequest, err.Error())
			default:
				if he, ok := err.(HTTPError); ok {
					writeJSONError(w, he.StatusCode(), he.Error())
					return
				}
				writeJSONError(w, http.StatusInternalServerError, err.Error())
			}
			return
		}
		if requestLogLevel(r) >= LevelInfo {
			logInfo().Str("model", specs.ID).Str("request_id", id).
				Dur("dur", time.Since(start)).Msg("submit accepted")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(types.SubmitResponse{RequestID: id})
	})

	// Cancel godoc
	// @Summary      Cancel an in-flight request
	// @Accept       json
	// @Produce      json
	// @Param        body body types.CancelRequest true "target request"
	// @Success      200 {object} types.CancelResponse
	// @Failure      400 {object} types.ErrorResponse
	// @Router       /cancel [post]
	r.Post("/cancel", func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.CancelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.ModelID == "" || req.RequestID == "" {
			writeJSONError(w, http.StatusBadRequest, "model_id and request_id are required")
			return
		}
		ok := svc.Cancel(req.ModelID, req.RequestID)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(types.CancelResponse{Cancelled: ok})
	})

	// Queues godoc
	// @Summary      Snapshot of all live queues
	// @Produce      json
	// @Success      200 {object} types.StatusResponse
	// @Router       /queues [get]
	r.Get("/queues", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := types.StatusResponse{
			Queues:         svc.Status(),
			UptimeSeconds:  int64(svc.Uptime().Seconds()),
			ServerTimeUnix: time.Now().Unix(),
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	})

	// Events godoc
	// @Summary      Live inference event stream
	// @Description  Server-sent events; one InferenceEvent JSON object per data line. Delivery is best-effort.
	// @Produce      text/event-stream
	// @Router       /events [get]
	r.Get("/events", func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}
		if events == nil {
			writeJSONError(w, http.StatusNotFound, "event stream not configured")
			return
		}
		ch, unsubscribe := events.Subscribe()
		defer unsubscribe()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		// Stop on client disconnect or server shutdown, whichever first.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		debug := requestLogLevel(r) >= LevelDebug
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-ch:
				payload, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				if _, err := w.Write([]byte("data: ")); err != nil {
					return
				}
				if _, err := w.Write(payload); err != nil {
					return
				}
				if _, err := w.Write([]byte("\n\n")); err != nil {
					return
				}
				flusher.Flush()
				if debug && zlog != nil {
					zlog.Debug().RawJSON("event", payload).Msg("event delivered")
				}
			}
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("closing"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	// Swagger UI when built with -tags=swagger
	MountSwagger(r)

	return r
}

// newRequestID mints an opaque id for submissions that do not carry one.
func newRequestID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "req-" + hex.EncodeToString([]byte(time.Now().Format("150405.000")))
	}
	return "req-" + hex.EncodeToString(b[:])
}
