// Package notify carries user-visible, non-fatal notifications from the
// core to whatever UI renders them.
package notify

import (
	"time"

	"github.com/google/uuid"
)

type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

type Notification struct {
	ID        string
	Level     Level
	Message   string
	CreatedAt time.Time
}

// Sink accepts notifications. Enqueue must not block.
type Sink interface {
	Enqueue(n Notification)
}

func newNotification(level Level, msg string) Notification {
	return Notification{ID: uuid.NewString(), Level: level, Message: msg, CreatedAt: time.Now().UTC()}
}

// Error builds an error-level notification.
func Error(msg string) Notification { return newNotification(LevelError, msg) }

// Info builds an info-level notification.
func Info(msg string) Notification { return newNotification(LevelInfo, msg) }

// Queue is a bounded Sink. When the buffer is full the oldest notification
// is discarded to make room, so the newest state always reaches the UI.
type Queue struct {
	ch chan Notification
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 64
	}
	return &Queue{ch: make(chan Notification, size)}
}

func (q *Queue) Enqueue(n Notification) {
	for {
		select {
		case q.ch <- n:
			return
		default:
		}
		select {
		case <-q.ch:
		default:
		}
	}
}

// C exposes the notification stream to the UI.
func (q *Queue) C() <-chan Notification { return q.ch }

// Drain returns everything currently buffered without blocking.
func (q *Queue) Drain() []Notification {
	var out []Notification
	for {
		select {
		case n := <-q.ch:
			out = append(out, n)
		default:
			return out
		}
	}
}
