package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/BaSui01/thucchien/llm/image"
)

// imageFields 需要内联的 数组.字段
var imageFields = []struct{ list, field string }{
	{"sections", "imageUrl"},
	{"attractions", "imageUrl"},
	{"gallery", "url"},
}

// EmbedReport 内联结果
type EmbedReport struct {
	Embedded []string `json:"embedded"`
	Missing  []string `json:"missing"`
}

// MimeType 按扩展名推断图片类型
func MimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

// EmbedImages 把内容文件中的本地图片路径改写为 data URI 并写回
// 图片路径相对 baseDir 解析；已是 data: 的字段保持不变；找不到的文件跳过
func EmbedImages(path, baseDir string, logger *zap.Logger) (*EmbedReport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	data, err := read(path)
	if err != nil {
		return nil, err
	}

	report := &EmbedReport{}
	for _, f := range imageFields {
		list := gjson.GetBytes(data, f.list)
		if !list.IsArray() {
			continue
		}
		for i, item := range list.Array() {
			v := item.Get(f.field)
			if v.Type != gjson.String || strings.HasPrefix(v.Str, "data:") {
				continue
			}
			imgPath := filepath.Join(baseDir, v.Str)
			raw, err := os.ReadFile(imgPath)
			if err != nil {
				logger.Warn("image file not found, skipping", zap.String("path", imgPath))
				report.Missing = append(report.Missing, v.Str)
				continue
			}
			key := fmt.Sprintf("%s.%d.%s", f.list, i, f.field)
			data, err = sjson.SetBytes(data, key, image.EncodeDataURL(MimeType(imgPath), raw))
			if err != nil {
				return nil, fmt.Errorf("set %s: %w", key, err)
			}
			report.Embedded = append(report.Embedded, v.Str)
		}
	}

	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return nil, fmt.Errorf("indent content: %w", err)
	}
	out.WriteByte('\n')
	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("write content file: %w", err)
	}

	logger.Info("content images embedded",
		zap.String("path", path),
		zap.Int("embedded", len(report.Embedded)),
		zap.Int("missing", len(report.Missing)))
	return report, nil
}
