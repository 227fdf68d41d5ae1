package stage

import (
	"github.com/charmbracelet/log"
)

// Notifier shows short, non-blocking messages about degraded states, such as a
// missing model or muted audio. It must not block.
type Notifier interface {
	Notify(msg string)
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger *log.Logger
}

func (n LogNotifier) Notify(msg string) {
	if n.Logger != nil {
		n.Logger.Warn(msg)
	}
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(msg string)

func (f NotifierFunc) Notify(msg string) { f(msg) }
