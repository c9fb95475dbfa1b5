// Package notify carries user-facing notifications (toasts) out of the table and bulk editors.
package notify

import (
	"fmt"
	"sync"

	"github.com/mangoautomation/dashboard-data-apis/log"
)

type Level int

const (
	Info Level = iota
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// Notification is identified by a translation key, Args are substituted into the translated text.
type Notification struct {
	Level Level
	Key   string
	Args  []interface{}
}

func (n Notification) String() string {
	if len(n.Args) == 0 {
		return n.Key
	}
	return fmt.Sprintf("%s %v", n.Key, n.Args)
}

type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

type LogNotifier struct {
	logger log.Logger
}

func NewLogNotifier(logger log.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(n Notification) {
	switch n.Level {
	case Error:
		l.logger.Error(n.Key, "args", n.Args)
	case Warning:
		l.logger.Warn(n.Key, "args", n.Args)
	default:
		l.logger.Info(n.Key, "args", n.Args)
	}
}

// Recorder keeps every notification it receives, in order.
type Recorder struct {
	mutex         sync.Mutex
	notifications []Notification
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(n Notification) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *Recorder) All() []Notification {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	result := make([]Notification, len(r.notifications))
	copy(result, r.notifications)
	return result
}

// Last returns the most recent notification, ok is false when nothing was recorded.
func (r *Recorder) Last() (n Notification, ok bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if len(r.notifications) == 0 {
		return Notification{}, false
	}
	return r.notifications[len(r.notifications)-1], true
}

func (r *Recorder) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.notifications = nil
}
