package jobs

import (
	"sync"
	"time"

	"github.com/BaSui01/thucchien/internal/jobstore"
	"github.com/BaSui01/thucchien/llm/longrun"
)

// EventType 事件类型
type EventType string

const (
	EventSubmitted   EventType = "submitted"
	EventPoll        EventType = "poll"
	EventFinished    EventType = "finished"
	// EventInterrupted 服务关闭打断了轮询，任务保留句柄等待下次启动恢复
	EventInterrupted EventType = "interrupted"
)

// Event 任务进度事件
type Event struct {
	Type      EventType `json:"type"`
	JobID     string    `json:"job_id"`
	State     string    `json:"state"`
	Polls     int       `json:"polls"`
	ElapsedMS int64     `json:"elapsed_ms"`
	Size      int       `json:"size,omitempty"`
	ErrorCode string    `json:"error_code,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// Terminal 事件之后不会再有该任务的事件，订阅通道随之关闭
func (e Event) Terminal() bool {
	return e.Type == EventInterrupted || longrun.State(e.State).Terminal()
}

// SnapshotEvent 用任务记录构造一条事件，订阅时先推送当前状态
func SnapshotEvent(job *jobstore.VideoJob) Event {
	typ := EventPoll
	if job.Terminal() {
		typ = EventFinished
	}
	return Event{
		Type:      typ,
		JobID:     job.ID,
		State:     job.State,
		Polls:     job.Polls,
		ElapsedMS: job.ElapsedMS,
		Size:      job.Size,
		ErrorCode: job.ErrorCode,
		Error:     job.Error,
		At:        job.UpdatedAt,
	}
}

const subscriberBuffer = 16

// Hub 按任务 ID 分发事件
// 订阅者消费过慢时丢弃事件，终态事件之后关闭订阅通道
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

// NewHub 创建事件分发器
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe 订阅任务事件，返回的函数用于取消订阅
func (h *Hub) Subscribe(jobID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	set, ok := h.subs[jobID]
	if !ok {
		set = make(map[chan Event]struct{})
		h.subs[jobID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.remove(jobID, ch) })
	}
}

func (h *Hub) remove(jobID string, ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[jobID]
	if !ok {
		return
	}
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	close(ch)
	if len(set) == 0 {
		delete(h.subs, jobID)
	}
}

// Publish 广播事件
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.subs[ev.JobID]
	terminal := ev.Terminal()
	for ch := range set {
		select {
		case ch <- ev:
		default:
			if terminal {
				// 终态事件必须送达，丢弃最旧的一条
				select {
				case <-ch:
				default:
				}
				select {
				case ch <- ev:
				default:
				}
			}
		}
		if terminal {
			close(ch)
		}
	}
	if terminal {
		delete(h.subs, ev.JobID)
	}
}

// Subscribers 当前订阅某任务的数量
func (h *Hub) Subscribers(jobID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[jobID])
}
