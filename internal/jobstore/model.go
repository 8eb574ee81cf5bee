package jobstore

import (
	"time"

	"github.com/BaSui01/thucchien/llm/longrun"
)

// VideoJob 视频任务记录
type VideoJob struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	UserID      string     `gorm:"size:36;index:idx_video_jobs_user" json:"user_id,omitempty"`
	Backend     string     `gorm:"size:32;not null" json:"backend"`
	Model       string     `gorm:"size:100" json:"model"`
	Prompt      string     `gorm:"type:text" json:"prompt"`
	Handle      string     `gorm:"size:255" json:"handle,omitempty"`
	State       string     `gorm:"size:16;not null;index:idx_video_jobs_state" json:"state"`
	Polls       int        `gorm:"default:0" json:"polls"`
	ElapsedMS   int64      `gorm:"default:0" json:"elapsed_ms"`
	Size        int        `gorm:"default:0" json:"size"`
	FilePath    string     `gorm:"size:500" json:"-"`
	ErrorCode   string     `gorm:"size:64" json:"error_code,omitempty"`
	Error       string     `gorm:"type:text" json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (VideoJob) TableName() string {
	return "video_jobs"
}

// Terminal 是否已到终态
func (j *VideoJob) Terminal() bool {
	return longrun.State(j.State).Terminal()
}

// ApplyOutcome 把轮询结果写入记录
func (j *VideoJob) ApplyOutcome(out *longrun.Outcome, err error) {
	if out != nil {
		j.Handle = string(out.Handle)
		j.State = string(out.State)
		j.Polls = out.Polls
		j.ElapsedMS = out.Elapsed.Milliseconds()
		j.Size = len(out.Artifact)
	} else if err != nil {
		// 提交失败，没有句柄
		j.State = string(longrun.StateFailed)
	}
	if err != nil {
		j.Error = err.Error()
		if jerr, ok := longrun.AsJobError(err); ok {
			j.ErrorCode = string(jerr.Code())
		}
	}
	if j.Terminal() {
		now := time.Now()
		j.CompletedAt = &now
	}
}
