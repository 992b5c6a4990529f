package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/legalrag/config"
	"github.com/BaSui01/legalrag/internal/cache"
	"github.com/BaSui01/legalrag/internal/database"
	"github.com/BaSui01/legalrag/internal/metrics"
	"github.com/BaSui01/legalrag/internal/store"
	"github.com/BaSui01/legalrag/llm"
	llmfactory "github.com/BaSui01/legalrag/llm/factory"
	"github.com/BaSui01/legalrag/rag"
)

// Server 是 LegalDocRAG 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	pool         *database.PoolManager
	chunkStore   *store.ChunkStore
	historyStore *store.HistoryStore
	cacheManager *cache.Manager
	provider     llm.Provider
	generator    *rag.Generator
	collector    *metrics.Collector

	httpServer *http.Server
}

// NewServer 创建并装配服务器实例
func NewServer(cfg *config.Config, pool *database.PoolManager, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
	}

	s.collector = metrics.NewCollector("legalrag", logger)
	s.chunkStore = store.NewChunkStore(pool.DB(), logger)
	s.historyStore = store.NewHistoryStore(pool.DB(), logger)

	provider, err := llmfactory.New(cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm provider: %w", err)
	}
	s.provider = provider

	s.generator = rag.NewGenerator(rag.GeneratorConfig{
		MaxIterations:       cfg.RAG.MaxIterations,
		ChunksPerIteration:  cfg.RAG.ChunksPerIteration,
		ConfidenceThreshold: cfg.RAG.ConfidenceThreshold,
		ContextTokenBudget:  cfg.RAG.ContextTokenBudget,
	}, provider, s.chunkStore, s.historyStore, logger)

	// 缓存不可用不阻止启动，改写每次都走模型
	if cfg.Redis.Enabled {
		manager, err := cache.NewManager(cache.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DefaultTTL:   cfg.RAG.RewriteCacheTTL,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, logger)
		if err != nil {
			logger.Warn("redis unavailable, rewrite caching disabled", zap.Error(err))
		} else {
			s.cacheManager = manager
			s.generator.WithRewriteCache(cache.NewRewriteCache(manager, cfg.RAG.RewriteCacheTTL, logger))
		}
	}

	return s, nil
}

// Start 启动 HTTP 服务器（非阻塞）
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/v1/chat/ask", s.handleAsk)
	mux.HandleFunc("GET /api/v1/documents/{id}/chunks", s.handleDocumentChunks)
	mux.HandleFunc("GET /api/v1/sessions/{id}/messages", s.handleSessionMessages)

	handler := s.withRecovery(s.withRequestMetrics(mux))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		Handler:      handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server failed", zap.Error(err))
		}
	}()

	s.logger.Info("http server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	s.logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http server shutdown error", zap.Error(err))
	}

	if s.cacheManager != nil {
		if err := s.cacheManager.Close(); err != nil {
			s.logger.Error("cache shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("graceful shutdown completed")
}

// askRequest 问答接口请求体
type askRequest struct {
	Question    string   `json:"question"`
	SessionID   string   `json:"session_id,omitempty"`
	DocumentIDs []string `json:"document_ids,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	start := time.Now()
	result := s.generator.GenerateResponse(r.Context(), req.Question, rag.GenerateOptions{
		SessionID:   req.SessionID,
		DocumentIDs: req.DocumentIDs,
	})

	status := "ok"
	if result.Error {
		status = "error"
	}
	s.collector.RecordRAGRun(status, time.Since(start), result.IterationsUsed, result.TotalChunksFound)
	s.collector.RecordTokenUsage(result.Usage.PromptTokens, result.Usage.CompletionTokens)

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDocumentChunks(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")
	chunks, err := s.chunkStore.ChunksByDocument(r.Context(), documentID)
	if err != nil {
		s.logger.Error("document chunk lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load document chunks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chunks": chunks})
}

func (s *Server) handleSessionMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	messages, err := s.historyStore.SessionMessages(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("session message lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load session messages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := s.pool.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"reason": "database unreachable",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	})
}

// withRecovery 兜底 panic，返回 500
func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panicked",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// statusRecorder 捕获响应状态码
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) withRequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.collector.RecordHTTPRequest(r.Method, r.URL.Path, fmt.Sprintf("%d", rec.status), time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
