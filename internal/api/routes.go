package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/nathanbogale/CrediSynth/internal/ai"
	"github.com/nathanbogale/CrediSynth/internal/engine"
	"github.com/nathanbogale/CrediSynth/internal/store"
)

// CorrelationHeader carries the caller's correlation id in and out.
const CorrelationHeader = "X-Correlation-ID"

const maxBodyBytes = 2 << 20

// Analyzer runs one analysis.
type Analyzer interface {
	Analyze(ctx context.Context, req engine.Request) (*engine.Result, error)
}

// AnalysisStore reads audit records back.
type AnalysisStore interface {
	GetAnalysis(ctx context.Context, analysisID string) (*store.AnalysisRecord, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	Ping(ctx context.Context) error
}

// ModelStatus exposes the generation client for transparency routes.
type ModelStatus interface {
	Enabled() bool
	Model() string
	Breaker() *ai.Breaker
}

// Config defines server dependencies.
type Config struct {
	Engine         Analyzer
	Store          AnalysisStore
	Generation     ModelStatus
	GenerationMode string
	Version        string
	AllowedOrigins []string
	JobWorkers     int
	Registry       *prometheus.Registry
}

// Server wires HTTP handlers with the analysis engine and audit store.
type Server struct {
	engine         Analyzer
	store          AnalysisStore
	generation     ModelStatus
	generationMode string
	version        string
	allowedOrigins []string
	registry       *prometheus.Registry
	metrics        *metrics
	notifier       *AnalysisNotifier
	jobs           *jobRunner
}

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine required")
	}
	s := &Server{
		engine:         cfg.Engine,
		store:          cfg.Store,
		generation:     cfg.Generation,
		generationMode: cfg.GenerationMode,
		version:        cfg.Version,
		allowedOrigins: cfg.AllowedOrigins,
		registry:       cfg.Registry,
		notifier:       NewAnalysisNotifier(),
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	if s.version == "" {
		s.version = "dev"
	}
	s.jobs = newJobRunner(s.engine, cfg.JobWorkers, s.jobFinished)
	s.metrics = newMetrics(s.registry, s.breakerState, func() float64 {
		return float64(s.jobs.Pending())
	})
	return s, nil
}

// Close stops the asynchronous job workers.
func (s *Server) Close() {
	s.jobs.Close()
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", CorrelationHeader}
	corsCfg.ExposeHeaders = []string{CorrelationHeader}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/health", s.handleHealth)
	r.GET("/ready", s.handleReady)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})))

	v1 := r.Group("/v1")
	{
		v1.POST("/analyze", s.handleAnalyze)
		v1.POST("/analyze/async", s.handleAnalyzeAsync)
		v1.GET("/analyze/stream", s.handleAnalyzeStream)
		v1.GET("/analyze/:id", s.handleGetAnalysis)
		v1.GET("/jobs/:id", s.handleGetJob)
		v1.GET("/models", s.handleModels)
	}

	return r, nil
}

func (s *Server) handleAnalyze(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		s.rejectBody(c, err)
		return
	}

	res, err := s.engine.Analyze(c.Request.Context(), engine.Request{
		Body:          body,
		CorrelationID: c.GetHeader(CorrelationHeader),
	})
	if err != nil {
		engineErr := asEngineError(err)
		s.metrics.observe(string(engineErr.Kind), "", 0)
		s.notifier.Broadcast(AnalysisEvent{
			Type:          "failed",
			AnalysisID:    engineErr.AnalysisID,
			CorrelationID: engineErr.CorrelationID,
			ErrorStatus:   string(engineErr.Kind),
			Message:       engineErr.Message(),
		})
		s.renderAnalysisError(c, engineErr)
		return
	}

	s.recordResult(res, "")
	c.Header(CorrelationHeader, res.CorrelationID)
	c.Data(http.StatusOK, "application/json; charset=utf-8", res.Body())
}

func (s *Server) handleAnalyzeAsync(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		s.rejectBody(c, err)
		return
	}

	job, err := s.jobs.Submit(body, strings.TrimSpace(c.GetHeader(CorrelationHeader)))
	if err != nil {
		correlationID := requestCorrelationID(c)
		c.Header(CorrelationHeader, correlationID)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: ErrorBody{
				Status:  string(engine.KindDownstreamUnavailable),
				Message: err.Error(),
			},
			CorrelationID: correlationID,
		})
		return
	}
	s.notifier.Broadcast(AnalysisEvent{
		Type:          "queued",
		AnalysisID:    job.AnalysisID,
		JobID:         job.JobID,
		CorrelationID: job.CorrelationID,
	})
	c.Header("Location", "/v1/jobs/"+job.JobID)
	c.JSON(http.StatusAccepted, job)
}

func (s *Server) handleGetJob(c *gin.Context) {
	job, ok := s.jobs.Get(c.Param("id"))
	if !ok {
		s.renderError(c, http.StatusNotFound, fmt.Errorf("job %s not found", c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleGetAnalysis(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if s.store == nil {
		s.renderError(c, http.StatusNotFound, errors.New("analysis auditing is disabled"))
		return
	}
	rec, err := s.store.GetAnalysis(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.renderError(c, http.StatusNotFound, fmt.Errorf("analysis %s not found", id))
		} else {
			logrus.WithError(err).WithField("analysis_id", id).Error("load analysis")
			s.renderError(c, http.StatusInternalServerError, errors.New("load analysis failed"))
		}
		return
	}
	c.JSON(http.StatusOK, AnalysisRecordFromModel(*rec))
}

func (s *Server) handleHealth(c *gin.Context) {
	details := HealthDetails{
		DB:         "disabled",
		Generation: s.generationMode,
		Streams:    s.notifier.Clients(),
		LastEvent:  s.notifier.LastEvent(),
	}
	if details.Generation == "" {
		details.Generation = "heuristic"
	}
	if s.store != nil {
		details.DB = "enabled"
		if counts, err := s.store.CountByStatus(c.Request.Context()); err == nil {
			details.Audit = counts
		} else {
			logrus.WithError(err).Warn("count audit records")
		}
	}
	if b := s.breaker(); b != nil {
		details.Breaker = b.Snapshot().State
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: s.version, Details: details})
}

func (s *Server) handleReady(c *gin.Context) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			logrus.WithError(err).Warn("readiness ping failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "database unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) handleModels(c *gin.Context) {
	resp := ModelsResponse{Health: "ok"}
	if s.generation != nil {
		resp.ActiveModel = s.generation.Model()
		resp.GenerationEnabled = s.generation.Enabled()
	}
	if b := s.breaker(); b != nil {
		snap := b.Snapshot()
		resp.Breaker = &snap
		if snap.State != "closed" {
			resp.Health = "degraded"
		}
	}
	if !resp.GenerationEnabled {
		resp.Health = "degraded"
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleAnalyzeStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.notifier.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("analysis websocket connected")
	defer s.notifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("analysis websocket closed")
			} else {
				logrus.WithError(err).Warn("analysis websocket unexpected close")
			}
			break
		}
	}
}

// jobFinished publishes the outcome of an asynchronous analysis.
func (s *Server) jobFinished(job JobDTO, res *engine.Result, err error) {
	if err != nil {
		engineErr := asEngineError(err)
		s.metrics.observe(string(engineErr.Kind), "", 0)
		s.notifier.Broadcast(AnalysisEvent{
			Type:          "failed",
			AnalysisID:    job.AnalysisID,
			JobID:         job.JobID,
			CorrelationID: job.CorrelationID,
			ErrorStatus:   string(engineErr.Kind),
			Message:       engineErr.Message(),
		})
		return
	}
	s.recordResult(res, job.JobID)
}

func (s *Server) recordResult(res *engine.Result, jobID string) {
	s.metrics.observe("success", string(res.Shape), res.Elapsed)
	event := AnalysisEvent{
		Type:          "completed",
		AnalysisID:    res.AnalysisID,
		JobID:         jobID,
		CorrelationID: res.CorrelationID,
		Shape:         string(res.Shape),
		Outcome:       res.Outcome(),
		ElapsedMs:     res.Elapsed.Milliseconds(),
	}
	if res.Synthesis != nil {
		s.metrics.observeSynthesis(string(res.Synthesis.Source), res.Synthesis.Degraded)
		event.Source = string(res.Synthesis.Source)
		event.Degraded = res.Synthesis.Degraded
	}
	s.notifier.Broadcast(event)
}

func (s *Server) breaker() *ai.Breaker {
	if s.generation == nil {
		return nil
	}
	return s.generation.Breaker()
}

func (s *Server) breakerState() float64 {
	b := s.breaker()
	if b == nil {
		return 0
	}
	return breakerStateValue(b.Snapshot().State)
}

// StatusForKind maps an engine failure class to its HTTP status.
func StatusForKind(kind engine.Kind) int {
	switch kind {
	case engine.KindMalformedInput:
		return http.StatusBadRequest
	case engine.KindValidationFailed:
		return http.StatusUnprocessableEntity
	case engine.KindDownstreamUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) renderAnalysisError(c *gin.Context, err *engine.Error) {
	if err.CorrelationID != "" {
		c.Header(CorrelationHeader, err.CorrelationID)
	}
	c.JSON(StatusForKind(err.Kind), ErrorResponse{
		Error: ErrorBody{
			Status:  string(err.Kind),
			Message: err.Message(),
			Path:    err.Path,
		},
		AnalysisID:    err.AnalysisID,
		CorrelationID: err.CorrelationID,
	})
}

// rejectBody answers a request whose body could not be read, e.g. one over the size
// limit. The engine never sees it, so identifiers are assigned here.
func (s *Server) rejectBody(c *gin.Context, err error) {
	engineErr := &engine.Error{
		Kind:          engine.KindMalformedInput,
		Err:           err,
		AnalysisID:    uuid.NewString(),
		CorrelationID: requestCorrelationID(c),
	}
	s.metrics.observe(string(engineErr.Kind), "", 0)
	logrus.WithError(err).WithFields(logrus.Fields{
		"analysis_id":    engineErr.AnalysisID,
		"correlation_id": engineErr.CorrelationID,
	}).Info("analysis rejected")
	s.renderAnalysisError(c, engineErr)
}

// requestCorrelationID returns the caller's correlation header or a fresh id.
func requestCorrelationID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(CorrelationHeader)); id != "" {
		return id
	}
	return uuid.NewString()
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func readBody(c *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return body, nil
}
