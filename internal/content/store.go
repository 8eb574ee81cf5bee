package content

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var (
	emptyObject = json.RawMessage(`{}`)
	emptyArray  = json.RawMessage(`[]`)
)

// Store 内容存储，读多写少
type Store struct {
	path   string
	logger *zap.Logger

	mu       sync.RWMutex
	data     []byte
	loadedAt time.Time
}

// NewStore 创建并加载内容；加载失败时内容为 {}
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		path:   path,
		logger: logger.With(zap.String("component", "content")),
		data:   emptyObject,
	}
	_ = s.Reload()
	return s
}

// Path 内容文件路径
func (s *Store) Path() string { return s.path }

// LoadedAt 最近一次成功加载的时间
func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Reload 重新读取文件；失败时内容回落为 {} 并返回错误
func (s *Store) Reload() error {
	data, err := read(s.path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.logger.Error("failed to load content", zap.String("path", s.path), zap.Error(err))
		s.data = emptyObject
		return err
	}
	s.data = data
	s.loadedAt = time.Now()
	s.logger.Info("content loaded", zap.String("path", s.path), zap.Int("bytes", len(data)))
	return nil
}

func read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content file: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("content file %s is not valid JSON", path)
	}
	return data, nil
}

func (s *Store) snapshot() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

func (s *Store) section(key string, fallback json.RawMessage) json.RawMessage {
	r := gjson.GetBytes(s.snapshot(), key)
	if !r.Exists() {
		return fallback
	}
	return json.RawMessage(r.Raw)
}

// Full 返回完整内容
func (s *Store) Full() json.RawMessage {
	return json.RawMessage(s.snapshot())
}

// About 返回 about，缺失时为 {}
func (s *Store) About() json.RawMessage {
	return s.section("about", emptyObject)
}

// Attractions 返回全部景点，缺失时为 []
func (s *Store) Attractions() json.RawMessage {
	return s.section("attractions", emptyArray)
}

// Gallery 返回图库，缺失时为 []
func (s *Store) Gallery() json.RawMessage {
	return s.section("gallery", emptyArray)
}

// Featured 返回 featured 为真的景点。
// 判定沿用 gjson Bool：true、非零数字，以及 ParseBool 认可的字符串（"true"、"1"、"t"）
func (s *Store) Featured() json.RawMessage {
	attractions := gjson.GetBytes(s.snapshot(), "attractions")
	if !attractions.IsArray() {
		return emptyArray
	}
	out := []byte{'['}
	n := 0
	attractions.ForEach(func(_, item gjson.Result) bool {
		if item.Get("featured").Bool() {
			if n > 0 {
				out = append(out, ',')
			}
			out = append(out, item.Raw...)
			n++
		}
		return true
	})
	return json.RawMessage(append(out, ']'))
}
