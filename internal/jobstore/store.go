package jobstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/BaSui01/thucchien/llm/longrun"
)

// ErrNotFound 任务记录不存在
var ErrNotFound = errors.New("video job not found")

// Store 视频任务仓储
type Store struct {
	db *gorm.DB
}

// New 创建仓储
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate 建表
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&VideoJob{}); err != nil {
		return fmt.Errorf("failed to auto migrate video jobs: %w", err)
	}
	return nil
}

// Create 新建记录
func (s *Store) Create(ctx context.Context, job *VideoJob) error {
	if job.ID == "" {
		return fmt.Errorf("video job id is required")
	}
	if job.State == "" {
		job.State = string(longrun.StateSubmitted)
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("create video job: %w", err)
	}
	return nil
}

// Get 按 ID 查询
func (s *Store) Get(ctx context.Context, id string) (*VideoJob, error) {
	var job VideoJob
	err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get video job: %w", err)
	}
	return &job, nil
}

// Save 覆盖写入整条记录
func (s *Store) Save(ctx context.Context, job *VideoJob) error {
	if err := s.db.WithContext(ctx).Save(job).Error; err != nil {
		return fmt.Errorf("save video job: %w", err)
	}
	return nil
}

// UpdateProgress 更新句柄、状态与轮询次数，终态记录不会被改写
func (s *Store) UpdateProgress(ctx context.Context, id string, handle longrun.Handle, state longrun.State, polls int) error {
	updates := map[string]any{"state": string(state), "polls": polls}
	if handle != "" {
		updates["handle"] = string(handle)
	}
	res := s.db.WithContext(ctx).Model(&VideoJob{}).
		Where("id = ? AND state IN ?", id, pendingStates()).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update video job: %w", res.Error)
	}
	return nil
}

// ListByUser 按创建时间倒序列出用户的任务
func (s *Store) ListByUser(ctx context.Context, userID string, limit int) ([]VideoJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var jobs []VideoJob
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("list video jobs: %w", err)
	}
	return jobs, nil
}

// Pending 返回已有句柄但未到终态的任务（用于重启后恢复）
func (s *Store) Pending(ctx context.Context) ([]VideoJob, error) {
	var jobs []VideoJob
	err := s.db.WithContext(ctx).
		Where("state IN ? AND handle <> ''", pendingStates()).
		Order("created_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("list pending video jobs: %w", err)
	}
	return jobs, nil
}

func pendingStates() []string {
	return []string{string(longrun.StateSubmitted), string(longrun.StatePolling)}
}
