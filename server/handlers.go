package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"videoSlides/core"
	"videoSlides/storage"
	"videoSlides/utils"
)

// VideoProcessor 由 processors.Batch 实现
type VideoProcessor interface {
	ProcessVideo(ctx context.Context, videoPath string) (core.DocumentResult, error)
	ProcessFolder(ctx context.Context, dir string) (core.BatchReport, error)
}

// Handlers HTTP 接口
type Handlers struct {
	proc   VideoProcessor
	index  storage.SlideIndex
	logger *slog.Logger
	start  time.Time
}

func NewHandlers(proc VideoProcessor, index storage.SlideIndex, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{proc: proc, index: index, logger: logger, start: time.Now()}
}

type processVideoRequest struct {
	VideoPath string `json:"video_path"`
}

type processFolderRequest struct {
	Dir string `json:"dir"`
}

type queryRequest struct {
	VideoID string `json:"video_id"`
	Query   string `json:"query"`
	TopK    int    `json:"top_k"`
}

type queryResponse struct {
	VideoID string     `json:"video_id,omitempty"`
	Query   string     `json:"query"`
	Hits    []core.Hit `json:"hits"`
}

// Routes 注册所有路由
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Post("/process-video", h.processVideo)
	r.Post("/process-folder", h.processFolder)
	r.Post("/query", h.query)
	return r
}

func (h *Handlers) processVideo(w http.ResponseWriter, r *http.Request) {
	var req processVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.VideoPath) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "video_path is required"})
		return
	}
	if !utils.FileExists(req.VideoPath) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "video file not found"})
		return
	}
	res, err := h.proc.ProcessVideo(r.Context(), req.VideoPath)
	if err != nil {
		h.logger.Error("process video failed", "video", req.VideoPath, "error", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) processFolder(w http.ResponseWriter, r *http.Request) {
	var req processFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Dir) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "dir is required"})
		return
	}
	report, err := h.proc.ProcessFolder(r.Context(), req.Dir)
	if err != nil {
		h.logger.Error("process folder failed", "dir", req.Dir, "error", err)
		writeJSON(w, statusFor(err), map[string]any{"error": err.Error(), "report": report})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handlers) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}
	if h.index == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "slide index unavailable"})
		return
	}
	hits, err := h.index.Search(r.Context(), req.VideoID, req.Query, req.TopK)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if hits == nil {
		hits = []core.Hit{}
	}
	writeJSON(w, http.StatusOK, queryResponse{VideoID: req.VideoID, Query: req.Query, Hits: hits})
}

func (h *Handlers) health(w http.ResponseWriter, _ *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	status := "healthy"
	ffmpeg := utils.FFmpegAvailable()
	if !ffmpeg {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"timestamp":  time.Now().Unix(),
		"uptime":     time.Since(h.start).Round(time.Second).String(),
		"ffmpeg":     ffmpeg,
		"goroutines": runtime.NumGoroutine(),
		"alloc_mb":   m.Alloc / 1024 / 1024,
	})
}

// statusFor 源读取失败是请求方的问题，其余按服务端错误处理
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrSourceRead):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false) // 转录文本保持原样
	if err := enc.Encode(v); err != nil {
		slog.Warn("write json error", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
