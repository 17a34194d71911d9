package engine

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// SleepOptions are the countdown choices in minutes; 0 is off. The cycle
// appends one extra position after the last duration: stop at the end of the
// current episode.
var SleepOptions = []int{0, 30, 60, 120, 180}

// sleepAfterTrackIdx is the virtual cycle position following the last
// duration option.
func sleepAfterTrackIdx() int { return len(SleepOptions) }

// SleepStatus describes the armed sleep timer for display.
type SleepStatus struct {
	Active     bool
	AfterTrack bool
	Remaining  time.Duration
}

// CycleSleepTimer rotates off -> 30m -> 60m -> 120m -> 180m -> end-of-episode
// -> off. A wall-clock timer pauses playback when it fires, regardless of
// loop mode; end-of-episode pauses at the next track-ended event instead,
// even when Loop One would otherwise restart the track.
func (e *Engine) CycleSleepTimer() SleepStatus {
	e.mu.Lock()
	e.sleepIdx = (e.sleepIdx + 1) % (len(SleepOptions) + 1)
	e.stopSleepLocked()

	switch {
	case e.sleepIdx == sleepAfterTrackIdx():
		e.sleepAfterTrack = true
		log.Debug().Msg("Sleep timer: end of current episode")
	case SleepOptions[e.sleepIdx] == 0:
		log.Debug().Msg("Sleep timer off")
	default:
		mins := SleepOptions[e.sleepIdx]
		d := time.Duration(mins) * time.Minute
		e.sleepDeadline = time.Now().Add(d)
		e.sleepTimer = time.AfterFunc(d, e.sleepExpired)
		log.Debug().Int("minutes", mins).Msg("Sleep timer armed")
	}
	st := e.sleepStatusLocked()
	e.mu.Unlock()
	return st
}

func (e *Engine) sleepExpired() {
	e.mu.Lock()
	var n notifyBatch
	e.sleepIdx = 0
	e.sleepTimer = nil
	e.sleepDeadline = time.Time{}
	e.handle.Pause()
	e.setStateLocked(StatePaused, &n)
	e.noticeLocked(NoticeSleepExpired, "sleep timer expired", &n)
	e.mu.Unlock()
	n.fire()
}

func (e *Engine) stopSleepLocked() {
	if e.sleepTimer != nil {
		e.sleepTimer.Stop()
		e.sleepTimer = nil
	}
	e.sleepDeadline = time.Time{}
	e.sleepAfterTrack = false
}

func (e *Engine) sleepStatusLocked() SleepStatus {
	st := SleepStatus{AfterTrack: e.sleepAfterTrack}
	if !e.sleepDeadline.IsZero() {
		st.Remaining = time.Until(e.sleepDeadline)
		if st.Remaining < 0 {
			st.Remaining = 0
		}
	}
	st.Active = st.AfterTrack || st.Remaining > 0
	return st
}

func (e *Engine) SleepStatus() SleepStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sleepStatusLocked()
}

func (s SleepStatus) String() string {
	switch {
	case s.AfterTrack:
		return "after episode"
	case s.Remaining > 0:
		m := int(s.Remaining.Round(time.Minute) / time.Minute)
		if m < 1 {
			m = 1
		}
		return fmt.Sprintf("%dm", m)
	default:
		return "off"
	}
}
