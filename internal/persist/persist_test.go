package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSaveRestoreRoundTrip(t *testing.T) {
	b := NewBridge(NewMemStore())

	saved := SavedState{
		SeriesID:        "amitabha-sutra",
		TrackIndex:      7,
		PositionSeconds: 431.25,
		DurationSeconds: 1800,
		ActiveTab:       "lectures",
		LoopMode:        "shuffle",
		Speed:           1.5,
	}
	b.SaveState(saved)

	got, ok := b.RestoreState()
	if !ok {
		t.Fatal("RestoreState returned false after a save")
	}
	if got != saved {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, saved)
	}
}

func TestRestoreStateMissingOrMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		set  bool
	}{
		{"absent", "", false},
		{"not json", "{{{", true},
		{"empty series", `{"seriesId":"","trackIndex":3}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemStore()
			if tt.set {
				store.Set(stateKey, tt.raw)
			}
			b := NewBridge(store)
			if _, ok := b.RestoreState(); ok {
				t.Error("RestoreState should report no usable state")
			}
		})
	}
}

func TestSaveStateIgnoresEmptySession(t *testing.T) {
	store := NewMemStore()
	b := NewBridge(store)
	b.SaveState(SavedState{})
	if _, ok := store.Get(stateKey); ok {
		t.Error("empty session should not be persisted")
	}
}

func entry(series string, idx int, pos float64) HistoryEntry {
	return HistoryEntry{
		SeriesID:        series,
		SeriesTitle:     series + " title",
		TrackIndex:      idx,
		TrackTitle:      "track",
		PositionSeconds: pos,
		TimestampMs:     time.Now().UnixMilli(),
	}
}

func TestHistoryDedup(t *testing.T) {
	b := NewBridge(NewMemStore())

	b.AppendHistory(entry("a", 2, 10))
	b.AppendHistory(entry("b", 0, 5))
	b.AppendHistory(entry("a", 2, 99)) // re-play of (a,2)

	h := b.History()
	if len(h) != 2 {
		t.Fatalf("history length = %d, want 2", len(h))
	}
	if h[0].SeriesID != "a" || h[0].TrackIndex != 2 || h[0].PositionSeconds != 99 {
		t.Errorf("front entry = %+v, want the re-played (a,2) at position 99", h[0])
	}
	if h[1].SeriesID != "b" {
		t.Errorf("second entry = %+v, want (b,0)", h[1])
	}
}

func TestHistoryCap(t *testing.T) {
	b := NewBridge(NewMemStore())

	for i := 0; i < HistoryLimit+5; i++ {
		b.AppendHistory(entry("s", i, 0))
	}

	h := b.History()
	if len(h) != HistoryLimit {
		t.Fatalf("history length = %d, want %d", len(h), HistoryLimit)
	}
	if h[0].TrackIndex != HistoryLimit+4 {
		t.Errorf("newest entry index = %d, want %d", h[0].TrackIndex, HistoryLimit+4)
	}
}

func TestHistoryFiltersMalformedRecords(t *testing.T) {
	store := NewMemStore()
	store.Set(historyKey, `[
		{"seriesId":"a","seriesTitle":"A","trackIndex":0,"trackTitle":"t","timestamp":123},
		{"seriesId":"","seriesTitle":"","trackTitle":"","timestamp":0},
		{"seriesId":"b","seriesTitle":"B","trackIndex":1,"trackTitle":"u","timestamp":456}
	]`)
	b := NewBridge(store)

	h := b.History()
	if len(h) != 2 {
		t.Fatalf("history length = %d, want 2 (malformed record dropped)", len(h))
	}
	if h[0].SeriesID != "a" || h[1].SeriesID != "b" {
		t.Errorf("history = %+v", h)
	}
}

func TestSyncProgressUpdatesInPlace(t *testing.T) {
	b := NewBridge(NewMemStore())
	b.AppendHistory(entry("a", 0, 10))
	b.AppendHistory(entry("b", 1, 20))

	b.SyncProgress("a", 0, 300, 1800)

	h := b.History()
	if h[0].SeriesID != "b" {
		t.Error("SyncProgress must not reorder the log")
	}
	if h[1].PositionSeconds != 300 || h[1].DurationSeconds != 1800 {
		t.Errorf("entry not updated: %+v", h[1])
	}
}

func TestHistoryConcurrentAppendAndSync(t *testing.T) {
	b := NewBridge(NewMemStore())
	b.AppendHistory(entry("s0", 0, 0))

	// Track-start appends race the auto-save's SyncProgress; neither side's
	// rewrite may drop the other's entry.
	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			b.AppendHistory(entry(fmt.Sprintf("s%d", i), 0, 0))
		}(i)
		go func() {
			defer wg.Done()
			b.SyncProgress("s0", 0, 42, 600)
		}()
	}
	wg.Wait()

	h := b.History()
	if len(h) != 9 {
		t.Fatalf("history holds %d entries, want 9", len(h))
	}
	for _, e := range h {
		if e.SeriesID == "s0" && e.PositionSeconds != 42 {
			t.Errorf("synced entry = %+v, want position 42", e)
		}
	}
}

func TestRemoveAndClearHistory(t *testing.T) {
	b := NewBridge(NewMemStore())
	b.AppendHistory(entry("a", 0, 0))
	b.AppendHistory(entry("b", 0, 0))

	b.RemoveHistoryAt(0)
	h := b.History()
	if len(h) != 1 || h[0].SeriesID != "a" {
		t.Errorf("history after remove = %+v", h)
	}

	b.RemoveHistoryAt(5) // out of range: no-op
	if len(b.History()) != 1 {
		t.Error("out-of-range remove mutated history")
	}

	b.ClearHistory()
	if len(b.History()) != 0 {
		t.Error("history not empty after clear")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	fs := NewFileStore(path)
	if err := fs.Set("k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	reopened := NewFileStore(path)
	if v, ok := reopened.Get("k"); !ok || v != "v" {
		t.Errorf("reopened store Get(k) = %q, %v", v, ok)
	}

	reopened.Delete("k")
	if _, ok := NewFileStore(path).Get("k"); ok {
		t.Error("deleted key survived a reopen")
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}

	fs := NewFileStore(path)
	if _, ok := fs.Get("anything"); ok {
		t.Error("corrupt store should read as empty")
	}
	if err := fs.Set("k", "v"); err != nil {
		t.Errorf("corrupt store should still accept writes: %v", err)
	}
}

func TestAutoSave(t *testing.T) {
	store := NewMemStore()
	b := NewBridge(store)

	var calls int32
	b.StartAutoSave(10*time.Millisecond, func() (SavedState, bool) {
		atomic.AddInt32(&calls, 1)
		return SavedState{SeriesID: "s", TrackIndex: 1}, true
	})
	time.Sleep(60 * time.Millisecond)
	b.StopAutoSave()

	if atomic.LoadInt32(&calls) == 0 {
		t.Fatal("autosave never ran")
	}
	if _, ok := b.RestoreState(); !ok {
		t.Error("autosaved state not restorable")
	}

	// After stop, the counter settles.
	n := atomic.LoadInt32(&calls)
	time.Sleep(40 * time.Millisecond)
	if atomic.LoadInt32(&calls) != n {
		t.Error("autosave kept running after StopAutoSave")
	}
}
