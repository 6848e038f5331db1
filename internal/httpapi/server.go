package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gamed/internal/orchestrator"
)

// Service defines the orchestrator methods required by the HTTP API layer.
type Service interface {
	CreateOrUpdate(id uuid.UUID, mapFilename string, mapBytes []byte, name, password string) (orchestrator.Outcome, error)
	UpdateSettings(id uuid.UUID, name, password string) (orchestrator.Outcome, error)
	Subscribe(id uuid.UUID) (<-chan orchestrator.Event, func())
	ActiveCount() int
}

func NewMux(svc Service) http.Handler {
	activeCountFn = svc.ActiveCount

	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	// The event stream is consumed by a browser page that may be served
	// from a different origin during development.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}))
	r.Use(requestLogger)
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/server-events", func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.URL.Query().Get("server_id"))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid server_id")
			return
		}
		fl, ok := w.(http.Flusher)
		if !ok {
			writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Accel-Buffering", "no") // tell the nginx reverse proxy to disable buffering
		w.WriteHeader(http.StatusOK)
		fl.Flush()

		events, cancel := svc.Subscribe(id)
		defer cancel()

		keepAlive := time.NewTicker(time.Duration(keepAliveInterval) * time.Second)
		defer keepAlive.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, ev.Data)
				fl.Flush()
			case <-keepAlive.C:
				// Comment lines prevent idle-timeout in reverse proxies.
				fmt.Fprint(w, ": keep-alive\n\n")
				fl.Flush()
			}
		}
	})

	r.Post("/update-map", func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.URL.Query().Get("server_id"))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid server_id")
			return
		}
		q := r.URL.Query()

		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		mapBytes, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "failed to read map upload")
			return
		}

		out, err := svc.CreateOrUpdate(id, q.Get("map_filename"), mapBytes, q.Get("server_name"), q.Get("server_password"))
		if err != nil {
			writeOrchestratorError(w, err)
			return
		}
		switch out {
		case orchestrator.OutcomeCreated:
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusAccepted)
		}
	})

	r.Get("/update-settings", func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.URL.Query().Get("server_id"))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid server_id")
			return
		}
		q := r.URL.Query()

		out, err := svc.UpdateSettings(id, q.Get("server_name"), q.Get("server_password"))
		if err != nil {
			writeOrchestratorError(w, err)
			return
		}
		switch out {
		case orchestrator.OutcomeAccepted:
			w.WriteHeader(http.StatusAccepted)
		default:
			// No such instance; nothing to do.
			w.WriteHeader(http.StatusOK)
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// writeOrchestratorError maps well-known orchestrator errors to HTTP status
// codes.
func writeOrchestratorError(w http.ResponseWriter, err error) {
	switch {
	case orchestrator.IsInvalidMap(err):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case orchestrator.IsPortsExhausted(err):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	case orchestrator.IsStartupFailure(err):
		writeJSONError(w, http.StatusBadGateway, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}
