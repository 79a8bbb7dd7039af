// Package notify delivers reminder notifications to the user.
//
// A Sink is fire-and-forget: Notify never blocks on the user and never
// reports delivery failures to the caller.
package notify

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Severity of a notification
type Severity int

const (
	Info Severity = iota
	Warning
	Critical
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Notification is a single message shown to the user
type Notification struct {
	Title    string
	Body     string
	Severity Severity
	// Duration is how long the notification should stay visible
	Duration time.Duration
}

// Sink displays notifications
type Sink interface {
	Notify(Notification)
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(Notification)

func (f SinkFunc) Notify(n Notification) {
	f(n)
}

// Log writes notifications to a logrus logger
type Log struct {
	Logger logrus.FieldLogger
}

// NewLog returns a sink logging to the standard logrus logger
func NewLog() *Log {
	return &Log{Logger: logrus.StandardLogger()}
}

func (l *Log) Notify(n Notification) {
	entry := l.Logger.WithFields(logrus.Fields{
		"title":    n.Title,
		"severity": n.Severity.String(),
	})
	switch n.Severity {
	case Critical:
		entry.Error(n.Body)
	case Warning:
		entry.Warn(n.Body)
	default:
		entry.Info(n.Body)
	}
}

// Tee delivers every notification to all of its sinks in order
type Tee []Sink

func (t Tee) Notify(n Notification) {
	for _, sink := range t {
		if sink != nil {
			sink.Notify(n)
		}
	}
}

// Recorder keeps every notification it receives
type Recorder struct {
	mu            sync.Mutex
	notifications []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

// Notifications returns a copy of everything recorded so far
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notifications...)
}

// Reset forgets all recorded notifications
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = nil
}
