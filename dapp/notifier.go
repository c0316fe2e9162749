package dapp

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/spsmatrix/dapp/utils"
)

type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelSuccess NotificationLevel = "success"
	LevelWarning NotificationLevel = "warning"
	LevelError   NotificationLevel = "error"
)

type Notification struct {
	Seq       uint64            `json:"seq"`
	Message   string            `json:"message"`
	Level     NotificationLevel `json:"level"`
	CreatedAt time.Time         `json:"created_at"`
	Duration  time.Duration     `json:"duration"`
	Visible   bool              `json:"visible"`
}

type DebugLine struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// NotificationCenter holds the transient banner and the debug panel.
// A banner becomes visible after a short show delay and hides itself after
// its duration. A newer banner supersedes the current one.
type NotificationCenter struct {
	logger          logrus.FieldLogger
	showDelay       time.Duration
	defaultDuration time.Duration
	historyLimit    int

	mutex     sync.Mutex
	seq       uint64
	current   *Notification
	showTimer *time.Timer
	hideTimer *time.Timer
	debug     []DebugLine

	notifications utils.Dispatcher[*Notification]
}

func NewNotificationCenter(logger logrus.FieldLogger, showDelay, defaultDuration time.Duration, historyLimit int) *NotificationCenter {
	if defaultDuration <= 0 {
		defaultDuration = 4 * time.Second
	}
	if historyLimit <= 0 {
		historyLimit = 500
	}
	return &NotificationCenter{
		logger:          logger,
		showDelay:       showDelay,
		defaultDuration: defaultDuration,
		historyLimit:    historyLimit,
	}
}

// Notify replaces the banner. A zero duration uses the default.
func (nc *NotificationCenter) Notify(message string, level NotificationLevel, duration time.Duration) {
	if duration <= 0 {
		duration = nc.defaultDuration
	}

	nc.mutex.Lock()
	defer nc.mutex.Unlock()

	nc.stopTimers()
	nc.seq++
	seq := nc.seq
	notification := &Notification{
		Seq:       seq,
		Message:   message,
		Level:     level,
		CreatedAt: time.Now(),
		Duration:  duration,
	}
	nc.current = notification

	nc.logger.WithField("level", level).Debugf("notification: %v", message)

	nc.showTimer = time.AfterFunc(nc.showDelay, func() {
		nc.mutex.Lock()
		if nc.seq != seq {
			nc.mutex.Unlock()
			return
		}
		notification.Visible = true
		shown := *notification
		nc.hideTimer = time.AfterFunc(duration, func() {
			nc.mutex.Lock()
			defer nc.mutex.Unlock()
			if nc.seq == seq {
				notification.Visible = false
			}
		})
		nc.mutex.Unlock()

		nc.notifications.Fire(&shown)
	})
}

// Current returns a copy of the banner, or nil if none is visible.
func (nc *NotificationCenter) Current() *Notification {
	nc.mutex.Lock()
	defer nc.mutex.Unlock()

	if nc.current == nil || !nc.current.Visible {
		return nil
	}
	current := *nc.current
	return &current
}

// Latest returns the most recent banner regardless of its visibility.
func (nc *NotificationCenter) Latest() *Notification {
	nc.mutex.Lock()
	defer nc.mutex.Unlock()

	if nc.current == nil {
		return nil
	}
	latest := *nc.current
	return &latest
}

// SubscribeNotifications receives each banner when it becomes visible.
func (nc *NotificationCenter) SubscribeNotifications(capacity int) *utils.Subscription[*Notification] {
	return nc.notifications.Subscribe(capacity, false)
}

// DebugLog appends a timestamped line to the debug panel.
func (nc *NotificationCenter) DebugLog(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)

	nc.mutex.Lock()
	nc.debug = append(nc.debug, DebugLine{
		Time:    time.Now(),
		Message: message,
	})
	if overflow := len(nc.debug) - nc.historyLimit; overflow > 0 {
		nc.debug = append([]DebugLine{}, nc.debug[overflow:]...)
	}
	nc.mutex.Unlock()

	nc.logger.Debug(message)
}

func (nc *NotificationCenter) DebugLines() []DebugLine {
	nc.mutex.Lock()
	defer nc.mutex.Unlock()

	lines := make([]DebugLine, len(nc.debug))
	copy(lines, nc.debug)
	return lines
}

func (nc *NotificationCenter) Close() {
	nc.mutex.Lock()
	defer nc.mutex.Unlock()
	nc.stopTimers()
	nc.seq++
}

func (nc *NotificationCenter) stopTimers() {
	if nc.showTimer != nil {
		nc.showTimer.Stop()
		nc.showTimer = nil
	}
	if nc.hideTimer != nil {
		nc.hideTimer.Stop()
		nc.hideTimer = nil
	}
}
