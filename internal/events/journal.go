package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Journal 事件日志：为每个事件分配 uuid，并向订阅者扇出。
// Emit 在链的串行事务内被调用，因此发送必须是非阻塞的（订阅者跟不上就丢弃）。
type Journal struct {
	mu      sync.Mutex
	entries []Entry
	subs    map[int]chan Entry
	nextSub int
	maxKeep int
}

// NewJournal 创建事件日志。maxKeep 为内存中保留的最大条目数（0 使用默认 4096）。
func NewJournal(maxKeep int) *Journal {
	if maxKeep <= 0 {
		maxKeep = 4096
	}
	return &Journal{
		subs:    make(map[int]chan Entry),
		maxKeep: maxKeep,
	}
}

// Emit 记录一个事件并通知订阅者
func (j *Journal) Emit(payload any) Entry {
	if j == nil {
		return Entry{}
	}
	e := Entry{
		ID:      uuid.NewString(),
		Type:    fmt.Sprintf("%T", payload),
		At:      time.Now(),
		Payload: payload,
	}

	j.mu.Lock()
	j.entries = append(j.entries, e)
	if len(j.entries) > j.maxKeep {
		j.entries = j.entries[len(j.entries)-j.maxKeep:]
	}
	for _, ch := range j.subs {
		select {
		case ch <- e:
		default:
			// 订阅者缓冲已满：丢弃，绝不能阻塞链事务
		}
	}
	j.mu.Unlock()
	return e
}

// Subscribe 订阅事件流，返回只读通道和取消函数
func (j *Journal) Subscribe(buffer int) (<-chan Entry, func()) {
	if buffer <= 0 {
		buffer = 256
	}
	ch := make(chan Entry, buffer)

	j.mu.Lock()
	id := j.nextSub
	j.nextSub++
	j.subs[id] = ch
	j.mu.Unlock()

	cancel := func() {
		j.mu.Lock()
		if _, ok := j.subs[id]; ok {
			delete(j.subs, id)
			close(ch)
		}
		j.mu.Unlock()
	}
	return ch, cancel
}

// Recent 返回最近 n 条事件（n<=0 返回全部保留的条目）
func (j *Journal) Recent(n int) []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	if n <= 0 || n > len(j.entries) {
		n = len(j.entries)
	}
	out := make([]Entry, n)
	copy(out, j.entries[len(j.entries)-n:])
	return out
}
