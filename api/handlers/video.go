package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/BaSui01/thucchien/internal/jobs"
	"github.com/BaSui01/thucchien/internal/jobstore"
	"github.com/BaSui01/thucchien/llm/longrun"
	"github.com/BaSui01/thucchien/llm/video"
	"github.com/BaSui01/thucchien/types"
)

const (
	maxIdempotencyKey = 255
	eventWriteTimeout = 10 * time.Second
)

// VideoJobs 后台视频任务，*jobs.Manager 实现了该接口
type VideoJobs interface {
	Submit(ctx context.Context, req jobs.SubmitRequest) (*jobs.Submission, error)
	Get(ctx context.Context, userID, id string) (*jobstore.VideoJob, error)
	List(ctx context.Context, userID string, limit int) ([]jobstore.VideoJob, error)
	VideoPath(ctx context.Context, userID, id string) (*jobstore.VideoJob, string, error)
	Hub() *jobs.Hub
}

// =============================================================================
// 🎬 视频任务 Handler
// =============================================================================

// VideoHandler 视频任务处理器
type VideoHandler struct {
	jobs   VideoJobs
	logger *zap.Logger
}

// NewVideoHandler 创建视频任务处理器
func NewVideoHandler(j VideoJobs, logger *zap.Logger) *VideoHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VideoHandler{
		jobs:   j,
		logger: logger.With(zap.String("handler", "video")),
	}
}

// CreateVideoRequest 创建视频任务请求
type CreateVideoRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Model          string `json:"model,omitempty"`
	AspectRatio    string `json:"aspect_ratio,omitempty"`
	Resolution     string `json:"resolution,omitempty"`
	Duration       int    `json:"duration,omitempty"`
	ImageBase64    string `json:"image_base64,omitempty"`
	ImageURL       string `json:"image_url,omitempty"`
}

func (req *CreateVideoRequest) toGenerate() *video.GenerateRequest {
	return &video.GenerateRequest{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Model:          req.Model,
		AspectRatio:    req.AspectRatio,
		Resolution:     req.Resolution,
		Duration:       req.Duration,
		ImageBase64:    req.ImageBase64,
		ImageURL:       req.ImageURL,
	}
}

// Register 注册视频路由；limits 只包裹创建任务的路由
func (h *VideoHandler) Register(mux *http.ServeMux, limits ...func(http.Handler) http.Handler) {
	var create http.Handler = http.HandlerFunc(h.HandleCreate)
	for i := len(limits) - 1; i >= 0; i-- {
		create = limits[i](create)
	}
	mux.Handle("POST /api/v1/videos", create)
	mux.HandleFunc("GET /api/v1/videos", h.HandleList)
	mux.HandleFunc("GET /api/v1/videos/{id}", h.HandleGet)
	mux.HandleFunc("GET /api/v1/videos/{id}/content", h.HandleContent)
	mux.HandleFunc("GET /api/v1/videos/{id}/events", h.HandleEvents)
}

// HandleCreate 处理 POST /api/v1/videos
// @Summary 创建视频任务
// @Description 异步生成视频，可用 Idempotency-Key 防止重复提交
// @Tags 视频
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "幂等键"
// @Param request body CreateVideoRequest true "视频请求"
// @Success 202 {object} Response "任务已受理"
// @Success 200 {object} Response "幂等重放，返回已有任务"
// @Failure 400 {object} Response "请求无效"
// @Failure 409 {object} Response "同一幂等键的请求正在处理"
// @Router /api/v1/videos [post]
func (h *VideoHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req CreateVideoRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if len(key) > maxIdempotencyKey {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "Idempotency-Key is too long", h.logger)
		return
	}

	userID, _ := types.UserID(r.Context())
	sub, err := h.jobs.Submit(r.Context(), jobs.SubmitRequest{
		UserID:         userID,
		IdempotencyKey: key,
		Video:          req.toGenerate(),
	})
	if err != nil {
		h.writeJobErr(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/videos/"+sub.Job.ID)
	if sub.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
		WriteEnvelope(w, r, http.StatusOK, sub.Job)
		return
	}
	WriteEnvelope(w, r, http.StatusAccepted, sub.Job)
}

// HandleList 处理 GET /api/v1/videos
// @Summary 当前会话的视频任务
// @Tags 视频
// @Produce json
// @Param limit query int false "数量上限（默认 20，最大 100）"
// @Success 200 {object} Response
// @Router /api/v1/videos [get]
func (h *VideoHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "limit must be a positive integer", h.logger)
			return
		}
		limit = n
	}
	userID, _ := types.UserID(r.Context())
	list, err := h.jobs.List(r.Context(), userID, limit)
	if err != nil {
		h.writeJobErr(w, r, err)
		return
	}
	WriteSuccess(w, r, list)
}

// HandleGet 处理 GET /api/v1/videos/{id}
// @Summary 查询视频任务
// @Tags 视频
// @Produce json
// @Param id path string true "任务 ID"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /api/v1/videos/{id} [get]
func (h *VideoHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, _ := types.UserID(r.Context())
	job, err := h.jobs.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		h.writeJobErr(w, r, err)
		return
	}
	WriteSuccess(w, r, job)
}

// HandleContent 处理 GET /api/v1/videos/{id}/content
// 未完成返回 202 与任务记录，失败结束返回 409
// @Summary 下载视频
// @Tags 视频
// @Produce video/mp4
// @Param id path string true "任务 ID"
// @Success 200 {file} binary
// @Success 202 {object} Response "仍在生成"
// @Failure 409 {object} Response "任务未成功结束"
// @Router /api/v1/videos/{id}/content [get]
func (h *VideoHandler) HandleContent(w http.ResponseWriter, r *http.Request) {
	userID, _ := types.UserID(r.Context())
	job, path, err := h.jobs.VideoPath(r.Context(), userID, r.PathValue("id"))
	if errors.Is(err, jobs.ErrNotReady) {
		if !job.Terminal() {
			w.Header().Set("Retry-After", "10")
			WriteEnvelope(w, r, http.StatusAccepted, job)
			return
		}
		WriteError(w, r, types.NewError(types.ErrJobNotReady, "video job ended with state "+job.State), h.logger)
		return
	}
	if err != nil {
		h.writeJobErr(w, r, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		WriteErr(w, r, err, h.logger)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		WriteErr(w, r, err, h.logger)
		return
	}

	// 大文件下载不受服务器写超时限制
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", `inline; filename="`+job.ID+`.mp4"`)
	http.ServeContent(w, r, job.ID+".mp4", info.ModTime(), f)
}

// HandleEvents 处理 GET /api/v1/videos/{id}/events（websocket）
// 先推送当前状态，之后推送每次轮询进度，任务结束后正常关闭；服务关闭打断任务时以 1001 关闭
// @Summary 任务进度流
// @Tags 视频
// @Param id path string true "任务 ID"
// @Success 101 "切换到 websocket"
// @Router /api/v1/videos/{id}/events [get]
func (h *VideoHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	// 先订阅再读快照，避免错过两者之间的终态事件
	events, unsubscribe := h.jobs.Hub().Subscribe(id)
	defer unsubscribe()

	userID, _ := types.UserID(r.Context())
	job, err := h.jobs.Get(r.Context(), userID, id)
	if err != nil {
		h.writeJobErr(w, r, err)
		return
	}

	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.String("job_id", id), zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	if err := h.writeEvent(ctx, conn, jobs.SnapshotEvent(job)); err != nil {
		return
	}
	if job.Terminal() {
		conn.Close(websocket.StatusNormalClosure, "job finished")
		return
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "job finished")
				return
			}
			if err := h.writeEvent(ctx, conn, ev); err != nil {
				return
			}
			if ev.Type == jobs.EventInterrupted {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *VideoHandler) writeEvent(ctx context.Context, conn *websocket.Conn, ev jobs.Event) error {
	ctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, ev); err != nil {
		h.logger.Debug("websocket write failed", zap.String("job_id", ev.JobID), zap.Error(err))
		return err
	}
	return nil
}

func (h *VideoHandler) writeJobErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, jobstore.ErrNotFound):
		WriteErrorMessage(w, r, http.StatusNotFound, types.ErrNotFound, "video job not found", h.logger)
	case errors.Is(err, jobs.ErrClosed):
		WriteError(w, r, types.NewError(types.ErrServiceUnavailable, "server is shutting down").WithRetryable(true), h.logger)
	default:
		if jerr, ok := longrun.AsJobError(err); ok {
			WriteError(w, r, types.NewError(jerr.Code(), jerr.Error()).WithCause(err), h.logger)
			return
		}
		WriteErr(w, r, err, h.logger)
	}
}
