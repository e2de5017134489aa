// Package notice records the structured, coded events of a conversion run.
//
// A notice code has five digits: the first is the severity tier, the other
// four identify the event. Codes are stable so tooling can match on them.
package notice

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Tier is a notice severity.
type Tier int

const (
	Debug Tier = iota + 1
	Info
	Warning
	Error
)

func (t Tier) String() string {
	switch t {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Notice is one recorded event.
type Notice struct {
	Code    int    `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
	Detail  string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Code builds a notice code from a tier and a four digit id.
func Code(tier Tier, id int) int {
	return int(tier)*10000 + id%10000
}

// Tier returns the severity tier encoded in the code.
func (n Notice) Tier() Tier { return Tier(n.Code / 10000) }

// ID returns the event identifier encoded in the code.
func (n Notice) ID() int { return n.Code % 10000 }

// String renders the notice as "<tier>_<id>: <message>", plus the detail in
// parentheses when there is one.
func (n Notice) String() string {
	s := fmt.Sprintf("%d_%04d: %s", n.Tier(), n.ID(), n.Message)
	if n.Detail != "" {
		s += " (" + n.Detail + ")"
	}
	return s
}

// Log is an ordered, append-only list of notices. Notices below the
// configured level are dropped on Record.
type Log struct {
	mu      sync.Mutex
	level   Tier
	notices []Notice
	errors  int
	logger  *logrus.Entry
}

// NewLog returns a log recording notices of tier level and above. Recorded
// notices are mirrored to logger when it is not nil.
func NewLog(level Tier, logger *logrus.Entry) *Log {
	return &Log{level: level, logger: logger}
}

// Level is the lowest recorded tier.
func (l *Log) Level() Tier { return l.level }

// Record appends a notice when tier meets the log level.
func (l *Log) Record(tier Tier, id int, message, detail string) {
	if tier < l.level {
		return
	}
	n := Notice{Code: Code(tier, id), Message: message, Detail: detail}

	l.mu.Lock()
	l.notices = append(l.notices, n)
	if tier >= Error {
		l.errors++
	}
	l.mu.Unlock()

	if l.logger != nil {
		l.mirror(tier, n)
	}
}

// Recordf appends a notice for a catalogue event.
func (l *Log) Recordf(ev Event, detailFormat string, args ...any) {
	detail := detailFormat
	if len(args) > 0 {
		detail = fmt.Sprintf(detailFormat, args...)
	}
	l.Record(ev.Tier, ev.ID, ev.Message, detail)
}

func (l *Log) mirror(tier Tier, n Notice) {
	e := l.logger.WithField("code", n.Code)
	if n.Detail != "" {
		e = e.WithField("detail", n.Detail)
	}
	switch tier {
	case Debug:
		e.Debug(n.Message)
	case Info:
		e.Info(n.Message)
	case Warning:
		e.Warn(n.Message)
	default:
		e.Error(n.Message)
	}
}

// Notices returns a copy of the recorded notices in order.
func (l *Log) Notices() []Notice {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Notice, len(l.notices))
	copy(out, l.notices)
	return out
}

// HasErrors reports whether an error-tier notice was recorded.
func (l *Log) HasErrors() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errors > 0
}
