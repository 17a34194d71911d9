package persist

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	stateKey   = "pl-state"
	historyKey = "pl-history"

	// AutoSaveInterval is how often playback position is checkpointed while
	// the app runs; a pause also triggers an immediate save.
	AutoSaveInterval = 15 * time.Second
)

// SavedState is the durable snapshot read once at startup to reconstruct a
// playback session without auto-starting it.
type SavedState struct {
	SeriesID        string  `json:"seriesId"`
	TrackIndex      int     `json:"trackIndex"`
	PositionSeconds float64 `json:"positionSeconds"`
	DurationSeconds float64 `json:"durationSeconds"`
	ActiveTab       string  `json:"activeTab,omitempty"`
	LoopMode        string  `json:"loopMode,omitempty"`
	Speed           float64 `json:"speedMultiplier,omitempty"`
}

// Bridge serializes playback state and history to a Store. It never
// propagates storage errors: a failed write is logged and forgotten, so
// playback behaves identically with or without working persistence.
type Bridge struct {
	store Store

	mu     sync.Mutex
	stop   chan struct{}
	ticker *time.Ticker
}

func NewBridge(store Store) *Bridge {
	return &Bridge{store: store}
}

// SaveState checkpoints the snapshot and keeps the matching history entry's
// progress in step, so "continue listening" shows an accurate position.
func (b *Bridge) SaveState(s SavedState) {
	if s.SeriesID == "" {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to marshal playback state")
		return
	}
	if err := b.store.Set(stateKey, string(data)); err != nil {
		log.Debug().Err(err).Msg("Failed to persist playback state")
	}
	b.SyncProgress(s.SeriesID, s.TrackIndex, s.PositionSeconds, s.DurationSeconds)
}

// RestoreState reads the persisted snapshot. The second return is false on
// any absent, malformed or incomplete record; callers treat that as "start
// fresh", never as an error.
func (b *Bridge) RestoreState() (SavedState, bool) {
	raw, ok := b.store.Get(stateKey)
	if !ok {
		return SavedState{}, false
	}
	var s SavedState
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		log.Debug().Err(err).Msg("Persisted playback state unreadable, ignoring")
		return SavedState{}, false
	}
	if s.SeriesID == "" {
		return SavedState{}, false
	}
	if s.TrackIndex < 0 {
		s.TrackIndex = 0
	}
	return s, true
}

// StartAutoSave checkpoints on a fixed interval. snapshot returns false when
// there is nothing worth saving (no active track). The periodic save and the
// pause-triggered save race benignly: both write the same derived record.
func (b *Bridge) StartAutoSave(interval time.Duration, snapshot func() (SavedState, bool)) {
	b.StopAutoSave()

	b.mu.Lock()
	b.stop = make(chan struct{})
	b.ticker = time.NewTicker(interval)
	ticker := b.ticker
	stopCh := b.stop
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				if s, ok := snapshot(); ok {
					b.SaveState(s)
				}
			case <-stopCh:
				ticker.Stop()
				return
			}
		}
	}()

	log.Debug().Dur("interval", interval).Msg("Started periodic state save")
}

func (b *Bridge) StopAutoSave() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stop != nil {
		close(b.stop)
		b.stop = nil
	}
}
