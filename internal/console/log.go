package console

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Message 控制台日志条目
type Message struct {
	Timestamp string `json:"timestamp"` // "HH:MM:SS"
	Tag       string `json:"tag"`
	Text      string `json:"text"`
	DeviceID  string `json:"device_id,omitempty"` // 来源设备，本地消息为空
}

// Filter 日志查询条件
type Filter struct {
	DeviceID string // 只保留该设备的消息与无设备归属的消息
	Tag      string // 空或 "all" 表示全部
	Search   string // 子串匹配（消息/标签/设备标识，不区分大小写）
}

// Log 控制台日志（环形缓冲，最旧先淘汰）
type Log struct {
	mu       sync.Mutex
	messages []Message
	tags     map[string]struct{}

	max int
	now func() time.Time
}

// NewLog 创建容量为max的控制台日志
func NewLog(max int) *Log {
	return &Log{
		tags: make(map[string]struct{}),
		max:  max,
		now:  time.Now,
	}
}

// Append 追加一条日志，超出上限时淘汰最旧条目
func (l *Log) Append(tag, text, deviceID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tag = strings.ToUpper(tag)
	l.messages = append(l.messages, Message{
		Timestamp: l.now().Format("15:04:05"),
		Tag:       tag,
		Text:      text,
		DeviceID:  deviceID,
	})
	if len(l.messages) > l.max {
		l.messages = l.messages[1:]
	}

	l.tags[tag] = struct{}{}
}

// Clear 清空全部日志
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = nil
}

// Len 当前条目数
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

// Messages 按条件过滤后的日志（旧→新）
func (l *Log) Messages(f Filter) []Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Message, 0, len(l.messages))
	search := strings.ToLower(f.Search)

	for _, msg := range l.messages {
		if f.DeviceID != "" && msg.DeviceID != "" && msg.DeviceID != f.DeviceID {
			continue
		}
		if f.Tag != "" && f.Tag != "all" && msg.Tag != f.Tag {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(msg.Text), search) &&
			!strings.Contains(strings.ToLower(msg.Tag), search) &&
			!strings.Contains(strings.ToLower(msg.DeviceID), search) {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// Tags 已出现过的标签（字母序）
func (l *Log) Tags() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, 0, len(l.tags))
	for tag := range l.tags {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
