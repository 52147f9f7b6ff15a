// Package handler serves the JSON web front-end for submitting question text
// and following its analysis.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/qanalyzer/internal/i18n"
	"github.com/pavelanni/qanalyzer/internal/pipeline"
	"github.com/pavelanni/qanalyzer/internal/report"
	"github.com/pavelanni/qanalyzer/internal/session"
)

const (
	maxRequestBytes = 5 << 20
	questionToken   = "**QUESTION"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Backend is the analysis backend used by background runs.
type Backend interface {
	pipeline.Analyzer
	Model() string
	Reachable(ctx context.Context) bool
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	ctx      context.Context
	sessions *session.Store
	backend  Backend
	report   report.Config
	runs     sync.WaitGroup
	now      func() time.Time
}

// New creates a Handler. Background runs stop between questions when ctx is
// cancelled. rc supplies the output folder and sheet name; each run gets its
// own file name.
func New(ctx context.Context, sessions *session.Store, backend Backend, rc report.Config) *Handler {
	return &Handler{
		ctx:      ctx,
		sessions: sessions,
		backend:  backend,
		report:   rc,
		now:      time.Now,
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(i18n.Middleware)
	r.Post("/analyze", h.handleAnalyze)
	r.Get("/progress/{sessionID}", h.handleProgress)
	r.Get("/download/{sessionID}", h.handleDownload)
	r.Get("/health", h.handleHealth)
}

// Wait blocks until every background run has finished.
func (h *Handler) Wait() {
	h.runs.Wait()
}

type analyzeRequest struct {
	Subject      string `json:"subject"`
	Topic        string `json:"topic"`
	Subtopic     string `json:"subtopic"`
	QuestionText string `json:"question_text"`
}

func (req *analyzeRequest) trim() {
	req.Subject = strings.TrimSpace(req.Subject)
	req.Topic = strings.TrimSpace(req.Topic)
	req.Subtopic = strings.TrimSpace(req.Subtopic)
	req.QuestionText = strings.TrimSpace(req.QuestionText)
}

// document prefixes the submitted text with the header lines the parser reads.
func (req analyzeRequest) document() string {
	return fmt.Sprintf("Subject: %s\nTopic: %s\nSubtopic: %s\n\n%s",
		req.Subject, req.Topic, req.Subtopic, req.QuestionText)
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.trim()
	if req.Subject == "" || req.Topic == "" || req.Subtopic == "" || req.QuestionText == "" {
		writeError(w, http.StatusBadRequest, i18n.T(r.Context(), "AllFieldsRequired"))
		return
	}
	if !strings.Contains(req.QuestionText, questionToken) {
		writeError(w, http.StatusBadRequest, i18n.T(r.Context(), "NoQuestionMarkers"))
		return
	}

	// The run outlives the request but keeps its localizer.
	run, err := h.sessions.Create(context.WithoutCancel(r.Context()))
	if err != nil {
		if errors.Is(err, session.ErrFull) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rc := h.report
	rc.Filename = "analysis_" + run.ID + ".xlsx"
	newReport := func() (pipeline.Report, error) {
		rep, err := report.New(rc)
		if err != nil {
			return nil, err
		}
		return rep, nil
	}
	runner := pipeline.New(h.backend, newReport, run)
	content := req.document()

	h.runs.Add(1)
	go func() {
		defer h.runs.Done()
		if _, err := runner.RunText(h.ctx, "session "+run.ID, content); err != nil {
			slog.Error("analysis session failed", "session", run.ID, "error", err)
			run.Fail(err)
		}
	}()

	slog.Info("analysis session started", "session", run.ID, "subject", req.Subject)
	writeJSON(w, http.StatusAccepted, map[string]string{"session_id": run.ID, "status": "started"})
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	run, ok := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, i18n.T(r.Context(), "SessionNotFound"))
		return
	}
	writeJSON(w, http.StatusOK, run.Snapshot())
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	run, ok := h.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, i18n.T(r.Context(), "SessionNotFound"))
		return
	}
	path, ok := run.ReportPath()
	if !ok {
		writeError(w, http.StatusNotFound, i18n.T(r.Context(), "ReportNotFound"))
		return
	}

	f, err := os.Open(path)
	if err != nil {
		slog.Warn("report file unavailable", "session", id, "path", path, "error", err)
		writeError(w, http.StatusNotFound, i18n.T(r.Context(), "ReportNotFound"))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	name := fmt.Sprintf("analysis_%s_%s.xlsx", id, h.now().Format("20060102_150405"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	reachable := h.backend.Reachable(r.Context())
	status, code := "healthy", http.StatusOK
	if !reachable {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":            status,
		"backend_reachable": reachable,
		"model":             h.backend.Model(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
