package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"zenai/internal/agent"
	"zenai/internal/domain"
	"zenai/internal/metrics"
	"zenai/internal/tool"
)

const (
	maxBodySize    = 1 << 20 // 1MB
	defaultSession = "main"
)

// ToolCatalog lists the loaded tools.
type ToolCatalog interface {
	Summaries() map[string]tool.Summary
}

// Web serves the HTTP API: blocking and SSE chat plus episode control.
type Web struct {
	addr        string
	agent       Agent
	tools       ToolCatalog
	metrics     *metrics.Collector
	metricsPath string
	version     string
	model       string
	logger      *slog.Logger

	baseCtx context.Context
	server  *http.Server
	started time.Time
}

type WebConfig struct {
	Addr        string // host:port
	Agent       Agent
	Tools       ToolCatalog
	Metrics     *metrics.Collector // nil disables the metrics endpoint
	MetricsPath string
	Version     string
	Model       string
	Logger      *slog.Logger
}

func NewWeb(cfg WebConfig) *Web {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Web{
		addr:        cfg.Addr,
		agent:       cfg.Agent,
		tools:       cfg.Tools,
		metrics:     cfg.Metrics,
		metricsPath: cfg.MetricsPath,
		version:     cfg.Version,
		model:       cfg.Model,
		logger:      cfg.Logger,
		baseCtx:     context.Background(),
		started:     time.Now(),
	}
}

func (w *Web) Name() string { return "web" }

// Router builds the HTTP routes.
func (w *Web) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/status", w.handleStatus)
	r.Get("/tools", w.handleTools)
	if w.metrics != nil {
		r.Get(w.metricsPath, w.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", w.handleChat)
		r.Post("/stream-chat", w.handleStreamChat)
		r.Post("/continue", w.handleContinue)
		r.Post("/pause", w.handlePause)
		r.Post("/stop", w.handleStop)
		r.Post("/new", w.handleNew)
		r.Post("/sessions", w.handleNewSession)
		r.Get("/state", w.handleState)
	})
	return r
}

// Start serves until ctx is cancelled. Episodes started over HTTP run on
// ctx, so they outlive the request that started them.
func (w *Web) Start(ctx context.Context) error {
	w.baseCtx = ctx
	w.server = &http.Server{
		Addr:              w.addr,
		Handler:           w.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	w.logger.Info("web API started", "addr", "http://"+w.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		w.server.Shutdown(shutdownCtx)
	}()

	if err := w.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (w *Web) Stop() error {
	if w.server != nil {
		return w.server.Close()
	}
	return nil
}

type chatRequest struct {
	Message       string   `json:"message"`
	SelectedTools []string `json:"selected_tools"`
	Session       string   `json:"session"`
}

func (w *Web) readRequest(rw http.ResponseWriter, r *http.Request) (chatRequest, bool) {
	var req chatRequest
	r.Body = http.MaxBytesReader(rw, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(rw, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(rw, http.StatusBadRequest, "invalid request body")
		}
		return req, false
	}
	if req.Session == "" {
		req.Session = r.URL.Query().Get("session")
	}
	if req.Session == "" {
		req.Session = defaultSession
	}
	return req, true
}

func (w *Web) handleStatus(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": w.version,
		"model":   w.model,
		"uptime":  time.Since(w.started).Round(time.Second).String(),
		"time":    time.Now().Format(time.RFC3339),
	})
}

type toolView struct {
	tool.Summary
	AlwaysOn bool `json:"always_on"`
}

func (w *Web) handleTools(rw http.ResponseWriter, r *http.Request) {
	out := map[string]toolView{}
	if w.tools != nil {
		for name, s := range w.tools.Summaries() {
			out[name] = toolView{Summary: s, AlwaysOn: agent.IsAlwaysOn(name)}
		}
	}
	writeJSON(rw, http.StatusOK, map[string]any{"tools": out})
}

func (w *Web) handleChat(rw http.ResponseWriter, r *http.Request) {
	req, ok := w.readRequest(rw, r)
	if !ok {
		return
	}
	events, err := w.agent.Send(w.baseCtx, req.Session, req.Message, req.SelectedTools)
	if err != nil {
		writeAgentError(rw, err)
		return
	}
	select {
	case res := <-collectAsync(events):
		writeJSON(rw, http.StatusOK, res)
	case <-r.Context().Done():
		w.logger.Info("web client disconnected; episode continues", "session", req.Session)
	}
}

// collectAsync aggregates events in the background. The episode keeps its
// consumer even if the caller stops waiting.
func collectAsync(events <-chan domain.Event) <-chan agent.ChatResult {
	out := make(chan agent.ChatResult, 1)
	go func() { out <- agent.Collect(events) }()
	return out
}

func (w *Web) handleStreamChat(rw http.ResponseWriter, r *http.Request) {
	req, ok := w.readRequest(rw, r)
	if !ok {
		return
	}
	events, err := w.agent.Send(w.baseCtx, req.Session, req.Message, req.SelectedTools)
	if err != nil {
		writeAgentError(rw, err)
		return
	}
	w.stream(rw, r, req.Session, events)
}

func (w *Web) handleContinue(rw http.ResponseWriter, r *http.Request) {
	req, ok := w.readRequest(rw, r)
	if !ok {
		return
	}
	events, err := w.agent.Resume(w.baseCtx, req.Session)
	if err != nil {
		writeAgentError(rw, err)
		return
	}
	w.stream(rw, r, req.Session, events)
}

// stream writes events as server-sent events until the episode segment ends.
func (w *Web) stream(rw http.ResponseWriter, r *http.Request, session string, events <-chan domain.Event) {
	flusher, ok := rw.(http.Flusher)
	if !ok {
		go drain(events)
		writeError(rw, http.StatusInternalServerError, "streaming not supported")
		return
	}
	rw.Header().Set("Content-Type", "text/event-stream")
	rw.Header().Set("Cache-Control", "no-cache")
	rw.Header().Set("Connection", "keep-alive")
	rw.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			w.logger.Info("stream client disconnected; episode continues", "session", session)
			go drain(events)
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				w.logger.Error("encode event", "err", err)
				continue
			}
			fmt.Fprintf(rw, "event: %s\ndata: %s\n\n", e.Type, data)
			flusher.Flush()
		}
	}
}

func drain(events <-chan domain.Event) {
	for range events {
	}
}

func (w *Web) handlePause(rw http.ResponseWriter, r *http.Request) {
	w.control(rw, r, "paused", w.agent.Pause)
}

func (w *Web) handleStop(rw http.ResponseWriter, r *http.Request) {
	w.control(rw, r, "stopped", w.agent.Stop)
}

func (w *Web) control(rw http.ResponseWriter, r *http.Request, status string, fn func(string) error) {
	req, ok := w.readRequest(rw, r)
	if !ok {
		return
	}
	if err := fn(req.Session); err != nil {
		writeAgentError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{
		"status":  status,
		"session": req.Session,
		"state":   w.agent.State(req.Session),
	})
}

func (w *Web) handleNew(rw http.ResponseWriter, r *http.Request) {
	req, ok := w.readRequest(rw, r)
	if !ok {
		return
	}
	if err := w.agent.Reset(r.Context(), req.Session); err != nil {
		w.logger.Error("reset session", "session", req.Session, "err", err)
		writeError(rw, http.StatusInternalServerError, "reset failed")
		return
	}
	writeJSON(rw, http.StatusOK, map[string]string{"status": "reset", "session": req.Session})
}

func (w *Web) handleNewSession(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusCreated, map[string]string{"session": uuid.NewString()})
}

func (w *Web) handleState(rw http.ResponseWriter, r *http.Request) {
	session := r.URL.Query().Get("session")
	if session == "" {
		session = defaultSession
	}
	writeJSON(rw, http.StatusOK, map[string]any{"session": session, "state": w.agent.State(session)})
}

func writeAgentError(rw http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, agent.ErrEmptyMessage):
		writeError(rw, http.StatusBadRequest, err.Error())
	case errors.Is(err, agent.ErrEpisodeRunning), errors.Is(err, agent.ErrEpisodePaused),
		errors.Is(err, agent.ErrNotRunning), errors.Is(err, agent.ErrNotPaused):
		writeError(rw, http.StatusConflict, err.Error())
	default:
		slog.Error("agent request failed", "err", err)
		writeError(rw, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(rw http.ResponseWriter, status int, data any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "err", err)
	}
}

func writeError(rw http.ResponseWriter, status int, message string) {
	writeJSON(rw, status, map[string]string{"error": message})
}
