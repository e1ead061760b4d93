// Package emulator provides a local control plane implementing the
// invocation protocol, so the function binary can be exercised on a
// workstation without the managed platform.
//
// One side is the runtime protocol the function polls; the other is a
// synchronous invoke endpoint for curl and tests. An invocation travels
// invoke -> queue -> next -> response/error -> invoke reply.
package emulator

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"product-api/internal/config"
	"product-api/internal/metrics"
)

// pending is one queued invocation waiting for the runtime to resolve it.
type pending struct {
	id      string
	payload []byte
	done    chan result
}

type result struct {
	body    []byte
	isError bool
}

// Server queues synchronous invocations and serves them to a polling
// runtime.
type Server struct {
	cfg config.EmulatorConfig
	log zerolog.Logger
	m   *metrics.Metrics
	arn string

	queue chan *pending

	mu       sync.Mutex
	inFlight map[string]*pending
}

// New builds an emulator server.
func New(cfg config.EmulatorConfig, log zerolog.Logger, m *metrics.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		log:      log,
		m:        m,
		arn:      fmt.Sprintf("arn:aws:lambda:local:000000000000:function:%s", cfg.FunctionName),
		queue:    make(chan *pending, 64),
		inFlight: make(map[string]*pending),
	}
}

// Router builds the HTTP surface: the invoke endpoint, the runtime
// protocol, and a metrics endpoint for local inspection.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/2015-03-31/functions/function/invocations", s.handleInvoke)
	r.Route("/2018-06-01/runtime", func(r chi.Router) {
		r.Get("/invocation/next", s.handleNext)
		r.Post("/invocation/{requestID}/response", s.handleResponse)
		r.Post("/invocation/{requestID}/error", s.handleError)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// handleInvoke accepts one event, queues it, and blocks until the runtime
// resolves it or the invocation times out.
func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "InvalidRequest")
		return
	}

	p := &pending{
		id:      uuid.New().String(),
		payload: payload,
		done:    make(chan result, 1),
	}

	s.m.StartOperation("invoke")
	defer s.m.EndOperation("invoke")
	start := time.Now()

	select {
	case s.queue <- p:
	case <-r.Context().Done():
		writeStatus(w, http.StatusServiceUnavailable, "QueueUnavailable")
		return
	}

	s.log.Debug().Str("request_id", p.id).Msg("invocation queued")

	select {
	case res := <-p.done:
		s.m.RecordDuration("invoke", time.Since(start).Seconds())
		w.Header().Set("Content-Type", "application/json")
		if res.isError {
			s.m.RecordError("invoke", "function_error")
			w.WriteHeader(http.StatusInternalServerError)
		} else {
			s.m.RecordSuccess("invoke")
		}
		_, _ = w.Write(res.body)

	case <-time.After(s.cfg.Timeout):
		s.abandon(p.id)
		s.m.RecordError("invoke", "timeout")
		s.log.Warn().Str("request_id", p.id).Msg("invocation timed out")
		writeStatus(w, http.StatusGatewayTimeout, "InvocationTimedOut")

	case <-r.Context().Done():
		s.abandon(p.id)
		s.m.RecordError("invoke", "client_gone")
	}
}

// handleNext blocks until an invocation is queued, then delivers it with the
// protocol headers.
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	select {
	case p := <-s.queue:
		s.mu.Lock()
		s.inFlight[p.id] = p
		s.mu.Unlock()

		deadline := time.Now().Add(s.cfg.Timeout).UnixMilli()
		w.Header().Set("Lambda-Runtime-Aws-Request-Id", p.id)
		w.Header().Set("Lambda-Runtime-Deadline-Ms", strconv.FormatInt(deadline, 10))
		w.Header().Set("Lambda-Runtime-Invoked-Function-Arn", s.arn)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(p.payload)

	case <-r.Context().Done():
		// The polling runtime went away; nothing to deliver.
	}
}

func (s *Server) handleResponse(w http.ResponseWriter, r *http.Request) {
	s.complete(w, r, false)
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request) {
	s.complete(w, r, true)
}

// complete hands the posted body back to the waiting invoker.
func (s *Server) complete(w http.ResponseWriter, r *http.Request, isError bool) {
	id := chi.URLParam(r, "requestID")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeStatus(w, http.StatusBadRequest, "InvalidRequest")
		return
	}

	s.mu.Lock()
	p, ok := s.inFlight[id]
	delete(s.inFlight, id)
	s.mu.Unlock()

	if !ok {
		s.log.Warn().Str("request_id", id).Msg("result for unknown invocation")
		writeStatus(w, http.StatusNotFound, "InvalidRequestID")
		return
	}

	p.done <- result{body: body, isError: isError}
	writeStatus(w, http.StatusAccepted, "OK")
}

// abandon drops an in-flight invocation the invoker no longer waits for, so
// a late result gets a 404 instead of filling a dead channel.
func (s *Server) abandon(id string) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.mu.Unlock()
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
