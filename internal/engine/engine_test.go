package engine

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lianbang999-crypto/foyue/internal/catalog"
	"github.com/lianbang999-crypto/foyue/internal/persist"
)

// fakeHandle records every call the engine makes and lets tests fire ready
// callbacks out of order, including stale ones from superseded loads.
type fakeHandle struct {
	mu       sync.Mutex
	ev       Events
	loads    []string
	seeks    []float64
	rates    []float64
	armed    func()
	history  []func() // every armed ready callback ever, in order
	playErr  error
	plays    int
	pauses   int
	paused   bool
	position float64
	duration float64
	buffered float64
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{paused: true, duration: 600}
}

func (h *fakeHandle) Load(url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loads = append(h.loads, url)
}

func (h *fakeHandle) OnceReady(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.armed = fn
	if fn != nil {
		h.history = append(h.history, fn)
	}
}

func (h *fakeHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.playErr != nil {
		return h.playErr
	}
	h.plays++
	h.paused = false
	return nil
}

func (h *fakeHandle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pauses++
	h.paused = true
}

func (h *fakeHandle) Seek(seconds float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seeks = append(h.seeks, seconds)
	h.position = seconds
}

func (h *fakeHandle) SetRate(rate float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rates = append(h.rates, rate)
}

func (h *fakeHandle) Position() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.position
}

func (h *fakeHandle) Duration() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.duration
}

func (h *fakeHandle) Paused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}

func (h *fakeHandle) Buffered() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buffered
}

func (h *fakeHandle) SetEvents(ev Events) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ev = ev
}

// fireReady invokes the currently armed callback, as the real media element
// would when the active source becomes playable.
func (h *fakeHandle) fireReady() {
	h.mu.Lock()
	fn := h.armed
	h.armed = nil
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// fireHistoric invokes a previously armed callback even though it has been
// replaced, simulating a stale async event arriving late.
func (h *fakeHandle) fireHistoric(i int) {
	h.mu.Lock()
	fn := h.history[i]
	h.mu.Unlock()
	fn()
}

func (h *fakeHandle) loadCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.loads)
}

func (h *fakeHandle) lastLoad() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.loads) == 0 {
		return ""
	}
	return h.loads[len(h.loads)-1]
}

func (h *fakeHandle) playCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.plays
}

func (h *fakeHandle) armedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.armed != nil {
		return 1
	}
	return 0
}

func testTracks(n int) []catalog.Track {
	tracks := make([]catalog.Track, n)
	for i := range tracks {
		tracks[i] = catalog.Track{
			ID:          fmt.Sprintf("ep%d", i),
			Title:       fmt.Sprintf("Episode %d", i),
			URL:         fmt.Sprintf("https://cdn.example.com/ep%d.mp3", i),
			SeriesID:    "series-a",
			SeriesTitle: "Series A",
		}
	}
	return tracks
}

func fastTiming() Timing {
	return Timing{
		DebounceWindow:  20 * time.Millisecond,
		SoftLoadTimeout: 2 * time.Second,
		HardLoadTimeout: 5 * time.Second,
		RetryDelayUnit:  10 * time.Millisecond,
	}
}

type noticeLog struct {
	mu    sync.Mutex
	kinds []NoticeKind
}

func (l *noticeLog) record(k NoticeKind, _ string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.kinds = append(l.kinds, k)
}

func (l *noticeLog) all() []NoticeKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]NoticeKind, len(l.kinds))
	copy(out, l.kinds)
	return out
}

func TestTokenSupersedesStaleReady(t *testing.T) {
	h := newFakeHandle()
	e := New(h, Options{Timing: fastTiming()})
	tracks := testTracks(5)

	e.LoadPlaylist(tracks, 0, 0)
	e.SelectTrack(1)
	e.SelectTrack(2)

	if got := len(h.history); got != 3 {
		t.Fatalf("armed ready callbacks = %d, want 3", got)
	}

	// Resolve ready events out of order: oldest, newest, middle.
	h.fireHistoric(0)
	h.fireHistoric(2)
	h.fireHistoric(1)

	if got := h.playCount(); got != 1 {
		t.Errorf("Play() called %d times, want 1 (only the live operation)", got)
	}
	snap := e.Snapshot()
	if snap.Index != 2 {
		t.Errorf("final index = %d, want 2", snap.Index)
	}
	if h.lastLoad() != tracks[2].URL {
		t.Errorf("last loaded URL = %q, want %q", h.lastLoad(), tracks[2].URL)
	}
	if snap.State != StatePlaying {
		t.Errorf("state = %v, want StatePlaying", snap.State)
	}
}

func TestDebounceCoalescing(t *testing.T) {
	h := newFakeHandle()
	e := New(h, Options{Timing: fastTiming()})
	tracks := testTracks(7)

	e.LoadPlaylist(tracks, 0, 0)
	initialLoads := h.loadCount()

	for i := 0; i < 5; i++ {
		e.SkipNext()
	}

	// Index reflects intent immediately, before any load happens.
	if snap := e.Snapshot(); snap.Index != 5 {
		t.Errorf("index after 5 skips = %d, want 5", snap.Index)
	}
	if got := h.loadCount(); got != initialLoads {
		t.Errorf("loads during debounce window = %d, want %d", got, initialLoads)
	}

	time.Sleep(100 * time.Millisecond)

	if got := h.loadCount(); got != initialLoads+1 {
		t.Errorf("loads after debounce = %d, want exactly one more than %d", got, initialLoads)
	}
	if h.lastLoad() != tracks[5].URL {
		t.Errorf("coalesced load URL = %q, want %q", h.lastLoad(), tracks[5].URL)
	}
}

func TestTrackLoadFiresPerLoadNotPerPress(t *testing.T) {
	h := newFakeHandle()
	e := New(h, Options{Timing: fastTiming()})

	var mu sync.Mutex
	var changed, loaded []int
	e.OnTrackChange(func(_ catalog.Track, index, _ int) {
		mu.Lock()
		changed = append(changed, index)
		mu.Unlock()
	})
	e.OnTrackLoad(func(_ catalog.Track, index, _ int) {
		mu.Lock()
		loaded = append(loaded, index)
		mu.Unlock()
	})

	e.LoadPlaylist(testTracks(7), 0, 0)
	for i := 0; i < 5; i++ {
		e.SkipNext()
	}
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	// Intent surfaces on every press; the initial and coalesced loads add one each.
	if len(changed) != 7 || changed[len(changed)-1] != 5 {
		t.Errorf("track-change indices = %v, want 7 firings ending at 5", changed)
	}
	if len(loaded) != 2 || loaded[0] != 0 || loaded[1] != 5 {
		t.Errorf("track-load indices = %v, want [0 5] (initial load plus the coalesced skip)", loaded)
	}
}

func TestHistoryRecordsOnlyLoadedTracks(t *testing.T) {
	h := newFakeHandle()
	e := New(h, Options{Timing: fastTiming()})
	b := persist.NewBridge(persist.NewMemStore())
	e.OnTrackLoad(func(tr catalog.Track, index, _ int) {
		b.AppendHistory(persist.HistoryEntry{
			SeriesID:    tr.SeriesID,
			SeriesTitle: tr.SeriesTitle,
			TrackIndex:  index,
			TrackTitle:  tr.Title,
		})
	})

	e.LoadPlaylist(testTracks(8), 0, 0)
	for i := 0; i < 5; i++ {
		e.SkipNext()
	}
	time.Sleep(100 * time.Millisecond)

	// Skip-spam must not log the four intermediate tracks that never loaded.
	hist := b.History()
	if len(hist) != 2 {
		t.Fatalf("history holds %d entries, want 2 (initial track and coalesced target)", len(hist))
	}
	if hist[0].TrackIndex != 5 || hist[1].TrackIndex != 0 {
		t.Errorf("history indices = [%d %d], want [5 0]", hist[0].TrackIndex, hist[1].TrackIndex)
	}
}

func TestSkipNextWrapsAround(t *testing.T) {
	h := newFakeHandle()
	e := New(h, Options{Timing: fastTiming()})
	e.LoadPlaylist(testTracks(3), 2, 0)

	e.SkipNext()
	if snap := e.Snapshot(); snap.Index != 0 {
		t.Errorf("index after wrap = %d, want 0", snap.Index)
	}
}

func TestTrackEndedTransitionTable(t *testing.T) {
	tests := []struct {
		name      string
		mode      LoopMode
		length    int
		start     int
		wantIdx   int
		wantLoads int // additional loads caused by the ended event
	}{
		{"all has next", LoopAll, 4, 1, 2, 1},
		{"all last wraps", LoopAll, 4, 3, 0, 1},
		{"one restarts in place", LoopOne, 4, 1, 1, 0},
		{"one last restarts", LoopOne, 4, 3, 3, 0},
		{"shuffle single track", LoopShuffle, 1, 0, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newFakeHandle()
			e := New(h, Options{Timing: fastTiming()})
			e.LoadPlaylist(testTracks(tt.length), tt.start, 0)
			h.fireReady()
			for e.LoopMode() != tt.mode {
				e.CycleLoopMode()
			}
			before := h.loadCount()

			h.ev.Ended()

			if snap := e.Snapshot(); snap.Index != tt.wantIdx {
				t.Errorf("index = %d, want %d", snap.Index, tt.wantIdx)
			}
			if got := h.loadCount() - before; got != tt.wantLoads {
				t.Errorf("loads = %d, want %d", got, tt.wantLoads)
			}
			if tt.mode == LoopOne {
				h.mu.Lock()
				restarted := len(h.seeks) > 0 && h.seeks[len(h.seeks)-1] == 0
				h.mu.Unlock()
				if !restarted {
					t.Error("loop one should seek back to 0")
				}
			}
		})
	}
}

func TestShuffleEndedStaysInBounds(t *testing.T) {
	h := newFakeHandle()
	e := New(h, Options{Timing: fastTiming()})
	e.LoadPlaylist(testTracks(3), 0, 0)
	h.fireReady()
	for e.LoopMode() != LoopShuffle {
		e.CycleLoopMode()
	}

	for i := 0; i < 50; i++ {
		h.ev.Ended()
		if idx := e.Snapshot().Index; idx < 0 || idx > 2 {
			t.Fatalf("shuffle picked out-of-bounds index %d", idx)
		}
	}
}

func TestPreviousTrackThreshold(t *testing.T) {
	tests := []struct {
		name     string
		position float64
		start    int
		wantIdx  int
		wantSeek bool // restart current track via seek instead of moving back
	}{
		{"late press moves back", 4.0, 2, 1, false},
		{"early press restarts", 2.0, 2, 2, true},
		{"early press at index 0", 2.0, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newFakeHandle()
			e := New(h, Options{Timing: fastTiming()})
			e.LoadPlaylist(testTracks(4), tt.start, 0)
			h.fireReady()
			h.mu.Lock()
			h.position = tt.position
			h.seeks = nil
			before := len(h.loads)
			h.mu.Unlock()

			e.SkipPrevious()
			time.Sleep(100 * time.Millisecond)

			snap := e.Snapshot()
			if snap.Index != tt.wantIdx {
				t.Errorf("index = %d, want %d", snap.Index, tt.wantIdx)
			}
			h.mu.Lock()
			seeked := len(h.seeks) > 0 && h.seeks[0] == 0
			loads := len(h.loads) - before
			h.mu.Unlock()
			if tt.wantSeek {
				if !seeked {
					t.Error("expected a seek to 0")
				}
				if loads != 0 {
					t.Errorf("restart should not reload, got %d loads", loads)
				}
			} else if loads != 1 {
				t.Errorf("move-back should load once, got %d loads", loads)
			}
		})
	}
}

func TestRetryExhaustion(t *testing.T) {
	h := newFakeHandle()
	e := New(h, Options{Timing: fastTiming()})
	notices := &noticeLog{}
	e.OnNotice(notices.record)

	e.LoadPlaylist(testTracks(2), 0, 0)
	h.fireReady()
	if got := h.loadCount(); got != 1 {
		t.Fatalf("initial loads = %d, want 1", got)
	}

	// First error: one silent retry.
	h.ev.Error(ErrorNetwork)
	time.Sleep(50 * time.Millisecond)
	if got := h.loadCount(); got != 2 {
		t.Fatalf("loads after first retry = %d, want 2", got)
	}
	if got := notices.all(); len(got) != 0 {
		t.Errorf("first retry should be silent, got notices %v", got)
	}

	// Second error: retry again, surfaced this time.
	h.ev.Error(ErrorNetwork)
	time.Sleep(80 * time.Millisecond)
	if got := h.loadCount(); got != 3 {
		t.Fatalf("loads after second retry = %d, want 3", got)
	}
	got := notices.all()
	if len(got) != 1 || got[0] != NoticeRetrying {
		t.Errorf("second retry notices = %v, want [NoticeRetrying]", got)
	}

	// Third error: terminal, no further retries.
	h.ev.Error(ErrorNetwork)
	time.Sleep(80 * time.Millisecond)
	if got := h.loadCount(); got != 3 {
		t.Errorf("loads after exhaustion = %d, want 3 (no more retries)", got)
	}
	if st := e.State(); st != StatePaused {
		t.Errorf("terminal state = %v, want StatePaused", st)
	}
	got = notices.all()
	if len(got) != 2 || got[1] != NoticePlaybackFailed {
		t.Errorf("terminal notices = %v, want [NoticeRetrying NoticePlaybackFailed]", got)
	}
}

func TestRetryLoadTimesOutLikeFreshLoad(t *testing.T) {
	h := newFakeHandle()
	timing := fastTiming()
	timing.SoftLoadTimeout = 20 * time.Millisecond
	timing.HardLoadTimeout = 40 * time.Millisecond
	e := New(h, Options{Timing: timing})
	notices := &noticeLog{}
	e.OnNotice(notices.record)

	e.LoadPlaylist(testTracks(1), 0, 0)
	h.fireReady()

	// A retry whose media never reports ready must escalate through the
	// same soft/hard timeouts as a fresh load instead of buffering forever.
	h.ev.Error(ErrorNetwork)
	time.Sleep(150 * time.Millisecond)

	if got := h.loadCount(); got != 2 {
		t.Fatalf("loads = %d, want 2 (original plus one retry)", got)
	}
	got := notices.all()
	if len(got) != 2 || got[0] != NoticeSlowLoad || got[1] != NoticeLoadFailed {
		t.Errorf("notices = %v, want [NoticeSlowLoad NoticeLoadFailed]", got)
	}
	if st := e.State(); st != StatePaused {
		t.Errorf("state = %v, want StatePaused", st)
	}
}

func TestUnsupportedFormatIsTerminal(t *testing.T) {
	h := newFakeHandle()
	e := New(h, Options{Timing: fastTiming()})
	notices := &noticeLog{}
	e.OnNotice(notices.record)

	e.LoadPlaylist(testTracks(1), 0, 0)
	h.ev.Error(ErrorUnsupported)
	time.Sleep(50 * time.Millisecond)

	if got := h.loadCount(); got != 1 {
		t.Errorf("unsupported format should not retry, loads = %d", got)
	}
	got := notices.all()
	if len(got) != 1 || got[0] != NoticeUnsupported {
		t.Errorf("notices = %v, want [NoticeUnsupported]", got)
	}
}

func TestAbortedErrorIgnored(t *testing.T) {
	h := newFakeHandle()
	e := New(h, Options{Timing: fastTiming()})
	notices := &noticeLog{}
	e.OnNotice(notices.record)

	e.LoadPlaylist(testTracks(2), 0, 0)
	h.ev.Error(ErrorAborted)
	time.Sleep(50 * time.Millisecond)

	if got := h.loadCount(); got != 1 {
		t.Errorf("aborted error triggered a reload: %d loads", got)
	}
	if got := notices.all(); len(got) != 0 {
		t.Errorf("aborted error surfaced notices %v", got)
	}
}

func TestStaleListenerCleanup(t *testing.T) {
	h := newFakeHandle()
	e := New(h, Options{Timing: fastTiming()})
	tracks := testTracks(3)

	for i := 0; i < 10; i++ {
		e.LoadPlaylist(tracks, i%3, 0)
	}

	if got := h.armedCount(); got != 1 {
		t.Errorf("armed ready callbacks = %d, want at most 1", got)
	}
	e.mu.Lock()
	soft, hard := e.softTimer != nil, e.hardTimer != nil
	e.mu.Unlock()
	if !soft || !hard {
		t.Error("live operation should have exactly one soft+hard timer pair armed")
	}

	// Even firing every historical callback must only start playback once.
	for i := range h.history {
		h.fireHistoric(i)
	}
	if got := h.playCount(); got != 1 {
		t.Errorf("Play() called %d times after firing all stale callbacks, want 1", got)
	}
}

func TestToggleDuringTransitionCancels(t *testing.T) {
	h := newFakeHandle()
	e := New(h, Options{Timing: fastTiming()})
	e.LoadPlaylist(testTracks(2), 0, 0)

	e.Toggle() // pause while still buffering

	if st := e.State(); st != StatePaused {
		t.Errorf("state = %v, want StatePaused", st)
	}
	if got := h.armedCount(); got != 0 {
		t.Error("ready callback still armed after cancelled transition")
	}
	e.mu.Lock()
	timers := e.softTimer != nil || e.hardTimer != nil
	e.mu.Unlock()
	if timers {
		t.Error("load timers still armed after cancelled transition")
	}

	// The orphaned ready event must not resurrect playback.
	h.fireHistoric(0)
	if got := h.playCount(); got != 0 {
		t.Errorf("stale ready started playback %d times", got)
	}
}

func TestPlayRejectionFailsClosed(t *testing.T) {
	h := newFakeHandle()
	h.playErr = errors.New("autoplay blocked")
	e := New(h, Options{Timing: fastTiming()})
	notices := &noticeLog{}
	e.OnNotice(notices.record)

	e.LoadPlaylist(testTracks(1), 0, 0)
	h.fireReady()

	if st := e.State(); st != StatePaused {
		t.Errorf("state = %v, want StatePaused", st)
	}
	if got := notices.all(); len(got) != 0 {
		t.Errorf("play rejection surfaced notices %v, want none", got)
	}
}

func TestHardTimeout(t *testing.T) {
	t.Run("no data gives up", func(t *testing.T) {
		h := newFakeHandle()
		timing := fastTiming()
		timing.SoftLoadTimeout = 20 * time.Millisecond
		timing.HardLoadTimeout = 40 * time.Millisecond
		e := New(h, Options{Timing: timing})
		notices := &noticeLog{}
		e.OnNotice(notices.record)

		e.LoadPlaylist(testTracks(1), 0, 0)
		time.Sleep(120 * time.Millisecond)

		got := notices.all()
		if len(got) != 2 || got[0] != NoticeSlowLoad || got[1] != NoticeLoadFailed {
			t.Errorf("notices = %v, want [NoticeSlowLoad NoticeLoadFailed]", got)
		}
		if st := e.State(); st != StatePaused {
			t.Errorf("state = %v, want StatePaused", st)
		}
	})

	t.Run("partial data forces playback", func(t *testing.T) {
		h := newFakeHandle()
		h.buffered = 12
		timing := fastTiming()
		timing.SoftLoadTimeout = 20 * time.Millisecond
		timing.HardLoadTimeout = 40 * time.Millisecond
		e := New(h, Options{Timing: timing})

		e.LoadPlaylist(testTracks(1), 0, 0)
		time.Sleep(120 * time.Millisecond)

		if got := h.playCount(); got != 1 {
			t.Errorf("forced Play() calls = %d, want 1", got)
		}
		if st := e.State(); st != StatePlaying {
			t.Errorf("state = %v, want StatePlaying", st)
		}
	})
}

func TestRestoreSessionDoesNotAutoplay(t *testing.T) {
	h := newFakeHandle()
	e := New(h, Options{Timing: fastTiming()})
	tracks := testTracks(4)

	e.RestoreSession(tracks, 2, 125.5, LoopShuffle, 1.5)

	snap := e.Snapshot()
	if snap.Index != 2 || snap.LoopMode != LoopShuffle || snap.Speed != 1.5 {
		t.Errorf("restored snapshot = %+v", snap)
	}
	if st := e.State(); st != StatePaused {
		t.Errorf("state = %v, want StatePaused", st)
	}

	// Position applies once metadata is ready; playback still must not start.
	h.fireReady()
	if got := h.playCount(); got != 0 {
		t.Errorf("restore started playback %d times", got)
	}
	h.mu.Lock()
	seeked := len(h.seeks) == 1 && h.seeks[0] == 125.5
	h.mu.Unlock()
	if !seeked {
		t.Error("restored position was not applied on ready")
	}
}

func TestCycleLoopMode(t *testing.T) {
	h := newFakeHandle()
	e := New(h, Options{Timing: fastTiming()})

	want := []LoopMode{LoopOne, LoopShuffle, LoopAll}
	for _, m := range want {
		if got := e.CycleLoopMode(); got != m {
			t.Errorf("CycleLoopMode() = %v, want %v", got, m)
		}
	}
}

func TestParseLoopMode(t *testing.T) {
	tests := []struct {
		in   string
		want LoopMode
	}{
		{"all", LoopAll},
		{"one", LoopOne},
		{"shuffle", LoopShuffle},
		{"none", LoopAll},
		{"", LoopAll},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLoopMode(tt.in); got != tt.want {
				t.Errorf("ParseLoopMode(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCycleSpeed(t *testing.T) {
	h := newFakeHandle()
	e := New(h, Options{Timing: fastTiming()})

	if s := e.Speed(); s != 1.0 {
		t.Fatalf("initial speed = %v, want 1.0", s)
	}
	if s := e.CycleSpeed(); s != 1.25 {
		t.Errorf("CycleSpeed() = %v, want 1.25", s)
	}
	// Wraps back around the ladder.
	for i := 0; i < len(Speeds); i++ {
		e.CycleSpeed()
	}
	if s := e.Speed(); s != 1.25 {
		t.Errorf("speed after full cycle = %v, want 1.25", s)
	}
}

func TestSleepAfterTrackOverridesLoopOne(t *testing.T) {
	h := newFakeHandle()
	e := New(h, Options{Timing: fastTiming()})
	e.LoadPlaylist(testTracks(3), 0, 0)
	h.fireReady()
	e.CycleLoopMode() // LoopOne

	// Cycle past every duration option to reach end-of-episode.
	var st SleepStatus
	for i := 0; i < len(SleepOptions); i++ {
		st = e.CycleSleepTimer()
	}
	if !st.AfterTrack {
		t.Fatalf("sleep status = %+v, want AfterTrack", st)
	}

	playsBefore := h.playCount()
	h.ev.Ended()

	if e.State() != StatePaused {
		t.Errorf("state = %v, want StatePaused (sleep wins over loop one)", e.State())
	}
	if got := h.playCount(); got != playsBefore {
		t.Error("track restarted despite end-of-episode sleep")
	}
	if e.SleepStatus().Active {
		t.Error("sleep timer should disarm after firing")
	}
}

func TestSleepTimerCycle(t *testing.T) {
	h := newFakeHandle()
	e := New(h, Options{Timing: fastTiming()})

	st := e.CycleSleepTimer()
	if !st.Active || st.Remaining > 30*time.Minute || st.Remaining < 29*time.Minute {
		t.Errorf("first cycle status = %+v, want ~30m", st)
	}
	// Full rotation lands back on off.
	for i := 0; i < len(SleepOptions); i++ {
		st = e.CycleSleepTimer()
	}
	if st.Active {
		t.Errorf("status after full rotation = %+v, want off", st)
	}
}

func TestRecordPlayFiresOncePerStart(t *testing.T) {
	h := newFakeHandle()
	type play struct {
		series string
		ep     int
	}
	ch := make(chan play, 4)
	e := New(h, Options{
		Timing:     fastTiming(),
		RecordPlay: func(seriesID string, episodeNum int) { ch <- play{seriesID, episodeNum} },
	})

	e.LoadPlaylist(testTracks(3), 1, 0)
	h.fireReady()

	select {
	case p := <-ch:
		if p.series != "series-a" || p.ep != 2 {
			t.Errorf("recorded play = %+v, want {series-a 2}", p)
		}
	case <-time.After(time.Second):
		t.Fatal("recordPlay was never invoked")
	}
	select {
	case p := <-ch:
		t.Errorf("unexpected extra recordPlay %+v", p)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakePreloader struct {
	mu       sync.Mutex
	preloads []string
	cancels  int
}

func (p *fakePreloader) Preload(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.preloads = append(p.preloads, url)
}

func (p *fakePreloader) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancels++
}

func TestPreloadNextSequentialTrack(t *testing.T) {
	h := newFakeHandle()
	pre := &fakePreloader{}
	e := New(h, Options{Timing: fastTiming(), Preloader: pre})
	tracks := testTracks(3)

	e.LoadPlaylist(tracks, 0, 0)
	h.fireReady()

	pre.mu.Lock()
	warmed := len(pre.preloads) == 1 && pre.preloads[0] == tracks[1].URL
	pre.mu.Unlock()
	if !warmed {
		t.Errorf("preloads = %v, want [%s]", pre.preloads, tracks[1].URL)
	}

	// Shuffle is unpredictable: preload is torn down, not warmed.
	for e.LoopMode() != LoopShuffle {
		e.CycleLoopMode()
	}
	pre.mu.Lock()
	pre.preloads = nil
	pre.mu.Unlock()
	e.SelectTrack(1)
	h.fireReady()
	pre.mu.Lock()
	extra := len(pre.preloads)
	pre.mu.Unlock()
	if extra != 0 {
		t.Errorf("preloaded %d tracks under shuffle, want 0", extra)
	}
}

func TestLoadPlaylistReplacesUnconditionally(t *testing.T) {
	h := newFakeHandle()
	e := New(h, Options{Timing: fastTiming()})
	tracks := testTracks(3)

	e.LoadPlaylist(tracks, 0, 0)
	before := h.loadCount()
	// Same series again: still a full replace and a fresh load.
	e.LoadPlaylist(tracks, 0, 0)
	if got := h.loadCount(); got != before+1 {
		t.Errorf("re-selecting the same series loaded %d times, want %d", got, before+1)
	}
}

func TestPendingSeekAppliedOnReady(t *testing.T) {
	h := newFakeHandle()
	e := New(h, Options{Timing: fastTiming()})

	e.LoadPlaylist(testTracks(2), 0, 321)
	h.mu.Lock()
	seeksBefore := len(h.seeks)
	h.mu.Unlock()
	if seeksBefore != 0 {
		t.Fatal("seek applied before media was ready")
	}
	h.fireReady()
	h.mu.Lock()
	ok := len(h.seeks) == 1 && h.seeks[0] == 321
	h.mu.Unlock()
	if !ok {
		t.Errorf("seeks after ready = %v, want [321]", h.seeks)
	}
}
