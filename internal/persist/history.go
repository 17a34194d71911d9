package persist

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
)

// HistoryLimit caps the play-history log at the most recent entries.
const HistoryLimit = 20

// HistoryEntry records a previously played track and the position reached.
// Identity for dedup purposes is (SeriesID, TrackIndex).
type HistoryEntry struct {
	SeriesID        string  `json:"seriesId"`
	SeriesTitle     string  `json:"seriesTitle"`
	Speaker         string  `json:"speaker,omitempty"`
	CategoryID      string  `json:"catId,omitempty"`
	TrackIndex      int     `json:"trackIndex"`
	TrackTitle      string  `json:"trackTitle"`
	PositionSeconds float64 `json:"positionSeconds"`
	DurationSeconds float64 `json:"durationSeconds"`
	TimestampMs     int64   `json:"timestamp"`
}

func (e HistoryEntry) valid() bool {
	return e.SeriesID != "" && e.SeriesTitle != "" && e.TrackTitle != "" && e.TimestampMs > 0
}

// History returns the log newest-first, dropping malformed legacy records.
func (b *Bridge) History() []HistoryEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.historyLocked()
}

func (b *Bridge) historyLocked() []HistoryEntry {
	raw, ok := b.store.Get(historyKey)
	if !ok {
		return nil
	}
	var entries []HistoryEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		log.Debug().Err(err).Msg("History unreadable, treating as empty")
		return nil
	}
	out := entries[:0]
	for _, e := range entries {
		if e.valid() {
			out = append(out, e)
		}
	}
	return out
}

// AppendHistory prepends an entry, replacing any existing entry for the same
// (series, index) so a re-play moves to the front instead of duplicating,
// and trims to HistoryLimit.
func (b *Bridge) AppendHistory(entry HistoryEntry) {
	if entry.SeriesID == "" {
		return
	}
	if entry.TimestampMs == 0 {
		entry.TimestampMs = time.Now().UnixMilli()
	}
	// The read-modify-write below must not interleave with the auto-save
	// goroutine's SyncProgress, or one side's rewrite drops the other's.
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := b.historyLocked()
	kept := make([]HistoryEntry, 0, len(entries)+1)
	kept = append(kept, entry)
	for _, e := range entries {
		if e.SeriesID == entry.SeriesID && e.TrackIndex == entry.TrackIndex {
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) > HistoryLimit {
		kept = kept[:HistoryLimit]
	}
	b.writeHistory(kept)
}

// SyncProgress updates the position/duration of the matching entry in place,
// without reordering the log.
func (b *Bridge) SyncProgress(seriesID string, trackIndex int, position, duration float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := b.historyLocked()
	for i := range entries {
		if entries[i].SeriesID == seriesID && entries[i].TrackIndex == trackIndex {
			entries[i].PositionSeconds = position
			entries[i].DurationSeconds = duration
			b.writeHistory(entries)
			return
		}
	}
}

func (b *Bridge) RemoveHistoryAt(i int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := b.historyLocked()
	if i < 0 || i >= len(entries) {
		return
	}
	b.writeHistory(append(entries[:i], entries[i+1:]...))
}

func (b *Bridge) ClearHistory() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.store.Delete(historyKey)
}

func (b *Bridge) writeHistory(entries []HistoryEntry) {
	data, err := json.Marshal(entries)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to marshal history")
		return
	}
	if err := b.store.Set(historyKey, string(data)); err != nil {
		log.Debug().Err(err).Msg("Failed to persist history")
	}
}
