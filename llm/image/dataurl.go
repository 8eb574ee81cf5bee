package image

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EncodeDataURL 编码为 data:<mime>;base64,<data>
func EncodeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL 解码 data URL；不含逗号时按纯 base64 处理
func DecodeDataURL(s string) ([]byte, string, error) {
	mime := ""
	encoded := s
	if head, body, ok := strings.Cut(s, ","); ok {
		encoded = body
		head = strings.TrimPrefix(head, "data:")
		mime, _, _ = strings.Cut(head, ";")
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, "", fmt.Errorf("decode base64 image: %w", err)
	}
	return data, mime, nil
}

// Save 把 data URL 或 base64 字符串写入文件，自动创建目录
func Save(path, dataURL string) error {
	data, _, err := DecodeDataURL(dataURL)
	if err != nil {
		return err
	}
	return WriteFile(path, data)
}

// WriteFile 写入二进制文件，自动创建目录
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// FileToBase64 读取文件并编码为 base64
func FileToBase64(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
