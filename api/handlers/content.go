package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// =============================================================================
// 📄 内容 Handler
// =============================================================================

// ContentSource 提供站点内容，*content.Store 实现了该接口
type ContentSource interface {
	Full() json.RawMessage
	About() json.RawMessage
	Attractions() json.RawMessage
	Featured() json.RawMessage
	Gallery() json.RawMessage
}

// ContentHandler 内容处理器，原样返回存储的 JSON
type ContentHandler struct {
	source ContentSource
	logger *zap.Logger
}

// NewContentHandler 创建内容处理器
func NewContentHandler(source ContentSource, logger *zap.Logger) *ContentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContentHandler{
		source: source,
		logger: logger.With(zap.String("handler", "content")),
	}
}

// Register 注册内容路由
func (h *ContentHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/content", h.HandleContent)
	mux.HandleFunc("GET /api/about", h.HandleAbout)
	mux.HandleFunc("GET /api/attractions", h.HandleAttractions)
	mux.HandleFunc("GET /api/gallery", h.HandleGallery)
}

// HandleContent 处理 /api/content 请求
// @Summary 全部内容
// @Tags 内容
// @Produce json
// @Success 200 {object} object "content.json 全文"
// @Router /api/content [get]
func (h *ContentHandler) HandleContent(w http.ResponseWriter, r *http.Request) {
	WriteRawJSON(w, http.StatusOK, h.source.Full())
}

// HandleAbout 处理 /api/about 请求
// @Summary 介绍
// @Tags 内容
// @Produce json
// @Success 200 {object} object "about 段，缺失时为 {}"
// @Router /api/about [get]
func (h *ContentHandler) HandleAbout(w http.ResponseWriter, r *http.Request) {
	WriteRawJSON(w, http.StatusOK, h.source.About())
}

// HandleAttractions 处理 /api/attractions 请求，featured=true 时只返回精选
// @Summary 景点
// @Tags 内容
// @Produce json
// @Param featured query bool false "只返回精选景点"
// @Success 200 {array} object "景点列表"
// @Router /api/attractions [get]
func (h *ContentHandler) HandleAttractions(w http.ResponseWriter, r *http.Request) {
	if strings.EqualFold(r.URL.Query().Get("featured"), "true") {
		WriteRawJSON(w, http.StatusOK, h.source.Featured())
		return
	}
	WriteRawJSON(w, http.StatusOK, h.source.Attractions())
}

// HandleGallery 处理 /api/gallery 请求
// @Summary 图库
// @Tags 内容
// @Produce json
// @Success 200 {array} object "图库列表"
// @Router /api/gallery [get]
func (h *ContentHandler) HandleGallery(w http.ResponseWriter, r *http.Request) {
	WriteRawJSON(w, http.StatusOK, h.source.Gallery())
}
