// Package server exposes document correction over HTTP: upload a paid-for
// DOCX, follow its progress over a websocket and download the result.
package server

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/xhad/docfix/internal/types"
	"github.com/xhad/docfix/pkg/checker"
	"github.com/xhad/docfix/pkg/config"
	"github.com/xhad/docfix/pkg/docx"
	"github.com/xhad/docfix/pkg/metrics"
	"github.com/xhad/docfix/pkg/payment"
	"github.com/xhad/docfix/pkg/processor"
	"github.com/yuin/goldmark"
)

//go:embed instructions.md
var instructionsMarkdown []byte

//go:embed index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

type Options struct {
	Config  *config.Config
	Checker types.Checker
	Gate    *payment.Gate
	// Signer issues tokens on POST /api/tokens when dev tokens are enabled.
	Signer  *payment.Signer
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

type Server struct {
	config  *config.Config
	checker types.Checker
	gate    *payment.Gate
	signer  *payment.Signer
	metrics *metrics.Metrics
	logger  *slog.Logger

	queue        *Queue
	instructions template.HTML
}

func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.Checker == nil {
		return nil, fmt.Errorf("checker is required")
	}
	if opts.Gate == nil {
		return nil, fmt.Errorf("payment gate is required")
	}
	if opts.Config.Payment.DevTokens && opts.Signer == nil {
		return nil, fmt.Errorf("signer is required for dev tokens")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var buf bytes.Buffer
	if err := goldmark.Convert(instructionsMarkdown, &buf); err != nil {
		return nil, fmt.Errorf("failed to render instructions: %w", err)
	}

	return &Server{
		config:  opts.Config,
		checker: opts.Checker,
		gate:    opts.Gate,
		signer:  opts.Signer,
		metrics: opts.Metrics,
		logger:  logger,

		queue: NewQueue(QueueConfig{
			Size:    opts.Config.Server.QueueSize,
			Metrics: opts.Metrics,
		}),
		instructions: template.HTML(buf.String()),
	}, nil
}

func (s *Server) Attach(r chi.Router) {
	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/tokens", s.handleIssueToken)

		r.Post("/documents", s.handleUpload)
		r.Get("/documents/{id}", s.handleStatus)
		r.Get("/documents/{id}/ws", s.handleWebSocket)
		r.Get("/documents/{id}/download", s.handleDownload)
	})
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	s.Attach(r)
	return r
}

// Run starts the document worker and blocks until ctx is done. A document
// already being processed is finished first; queued ones are dropped.
func (s *Server) Run(ctx context.Context) {
	s.queue.Run(ctx, func(ctx context.Context, job *Job) {
		s.process(context.WithoutCancel(ctx), job)
	})
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	worker := make(chan struct{})
	go func() {
		defer close(worker)
		s.Run(ctx)
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("shutdown failed", "error", err)
		}
	}()

	s.logger.Info("starting server", "addr", addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-worker
	return nil
}

func (s *Server) process(ctx context.Context, job *Job) {
	logger := s.logger.With("document", job.ID, "name", job.Name)

	job.start()

	p, err := processor.NewWithConfig(processor.ProcessorConfig{
		Checker:    s.checker,
		Options:    s.config.CheckOptions(job.Language),
		Mode:       job.Mode,
		Logger:     logger,
		Metrics:    s.metrics,
		OnProgress: job.setProgress,
	})
	if err != nil {
		job.fail(nil, err)
		return
	}

	job.mu.Lock()
	doc := job.doc
	job.mu.Unlock()

	report, err := p.Process(ctx, doc)
	if err != nil {
		logger.Error("document failed", "error", err)
		job.fail(report, err)
		return
	}

	data, err := doc.Bytes()
	if err != nil {
		logger.Error("failed to write document", "error", err)
		job.fail(report, err)
		return
	}

	job.finish(report, data)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Instructions template.HTML
		Languages    []string
		Token        string
		DevTokens    bool
	}{
		Instructions: s.instructions,
		Languages:    checker.Languages(),
		Token:        r.URL.Query().Get("token"),
		DevTokens:    s.config.Payment.DevTokens,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		s.logger.Error("failed to render index", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleIssueToken hands out the token a completed checkout would. It answers
// 404 unless payment.dev_tokens is on.
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	if !s.config.Payment.DevTokens {
		writeError(w, http.StatusNotFound, nil)
		return
	}

	token, claims, err := s.signer.Issue()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJson(w, tokenResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
	})
}

type uploadResponse struct {
	ID string `json:"id"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.config.Server.MaxUploadMB)<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusPaymentRequired, errors.New("payment token required"))
		return
	}

	language := r.FormValue("language")
	if language == "" {
		language = s.config.Processor.Language
	}
	if !checker.IsSupported(language) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unsupported language: %s", language))
		return
	}

	mode := processor.Mode(r.FormValue("mode"))
	if mode == "" {
		mode = processor.Mode(s.config.Processor.Mode)
	}
	if !mode.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown mode: %s", mode))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	doc, err := docx.Open(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// the token is only spent on a parsed document that has a place in the queue
	reservation, err := s.queue.Reserve()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	defer reservation.Release()

	if _, err := s.gate.Authorize(r.Context(), token); err != nil {
		s.logger.Warn("payment token rejected", "error", err)
		writeError(w, http.StatusPaymentRequired, err)
		return
	}

	job := NewJob(header.Filename, language, mode, doc)
	reservation.Submit(job)

	s.logger.Info("document queued", "document", job.ID, "name", job.Name, "language", language, "mode", mode)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJson(w, uploadResponse{ID: job.ID})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := s.queue.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, nil)
		return
	}

	writeJson(w, job.Status())
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	job, ok := s.queue.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, nil)
		return
	}

	data, ok := job.Result()
	if !ok {
		writeError(w, http.StatusConflict, fmt.Errorf("document is %s", job.Status().State))
		return
	}

	w.Header().Set("Content-Type", docx.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": correctedName(job.Name),
	}))
	w.Write(data)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	job, ok := s.queue.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, nil)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, cancel := job.Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	status := job.Status()
	s.sendMessage(conn, "status", string(status.State), status)

	for {
		select {
		case <-closed:
			return
		case status, ok := <-updates:
			if !ok {
				s.sendFinal(conn, job.Status())
				return
			}
			if status.State.Finished() {
				continue
			}
			s.sendMessage(conn, "progress", fmt.Sprintf("Processed %d of %d paragraphs", status.Done, status.Total), status)
		}
	}
}

func (s *Server) sendFinal(conn *websocket.Conn, status Status) {
	switch {
	case status.State == StateFailed:
		s.sendMessage(conn, "error", status.Error, status)
	case status.Report != nil && status.Report.Degraded():
		s.sendMessage(conn, "done", "Document processed, some content was not corrected", status)
	default:
		s.sendMessage(conn, "done", "Document processed", status)
	}
}

func (s *Server) sendMessage(conn *websocket.Conn, msgType string, content string, data interface{}) {
	msg := Message{
		Type:    msgType,
		Content: content,
		Data:    data,
	}
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Warn("failed to send message", "error", err)
	}
}

func bearerToken(r *http.Request) string {
	if token := r.FormValue("token"); token != "" {
		return token
	}

	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}

	return ""
}

func correctedName(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "document"
	}

	return base + "_corrected.docx"
}

func writeJson(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	enc.Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.WriteHeader(code)

	text := http.StatusText(code)

	if err != nil {
		text = err.Error()
	}

	w.Write([]byte(text))
}
