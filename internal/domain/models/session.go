package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseHHMM parses a strict HH:MM clock value.
func ParseHHMM(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("clock %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("clock %q: bad hour", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("clock %q: bad minute", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("clock %q: out of range", s)
	}
	return h, m, nil
}

// SessionWindow is an intraday trading window with minute bounds, inclusive
// at both ends.
type SessionWindow struct {
	startMin int
	endMin   int
}

// NewSessionWindow builds a window from HH:MM bounds; end must be after start.
func NewSessionWindow(start, end string) (SessionWindow, error) {
	sh, sm, err := ParseHHMM(start)
	if err != nil {
		return SessionWindow{}, err
	}
	eh, em, err := ParseHHMM(end)
	if err != nil {
		return SessionWindow{}, err
	}
	w := SessionWindow{startMin: sh*60 + sm, endMin: eh*60 + em}
	if w.endMin <= w.startMin {
		return SessionWindow{}, fmt.Errorf("session window %s-%s: end not after start", start, end)
	}
	return w, nil
}

// Contains reports whether t (already in the market timezone) falls inside
// the window. Comparison is at second precision: a tick at end+1s is out.
func (w SessionWindow) Contains(t time.Time) bool {
	sec := t.Hour()*3600 + t.Minute()*60 + t.Second()
	return sec >= w.startMin*60 && sec <= w.endMin*60
}

// SecondsUntilStart returns how long until the window opens, 0 if already open
// or past.
func (w SessionWindow) SecondsUntilStart(t time.Time) int {
	sec := t.Hour()*3600 + t.Minute()*60 + t.Second()
	d := w.startMin*60 - sec
	if d < 0 {
		return 0
	}
	return d
}

func (w SessionWindow) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.startMin/60, w.startMin%60, w.endMin/60, w.endMin%60)
}

// Session orchestrator states.
const (
	StateStarting        = "STARTING"
	StateWaitingForOpen  = "WAITING_FOR_OPEN"
	StatePreflightFailed = "PREFLIGHT_FAILED"
	StateActive          = "ACTIVE"
	StateEODRun          = "EOD_RUN"
	StateDone            = "DONE"
)

// SessionStatus is the monitor snapshot of the orchestrator.
type SessionStatus struct {
	State       string    `json:"state"`
	Date        string    `json:"date,omitempty"`
	Timezone    string    `json:"timezone"`
	Window      string    `json:"window"`
	Streaming   bool      `json:"streaming"`
	HelperAlive bool      `json:"helper_alive"`
	StartedAt   time.Time `json:"started_at"`
	LastTick    time.Time `json:"last_tick,omitempty"`
}
