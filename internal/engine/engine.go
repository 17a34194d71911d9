// Package engine implements the playback core: a single authoritative
// "now playing" position over a mutable playlist, reconciled against the
// asynchronous load lifecycle of the underlying media handle.
package engine

import (
	"math/rand"
	"sync"
	"time"

	"github.com/lianbang999-crypto/foyue/internal/catalog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultDebounceWindow  = 300 * time.Millisecond
	DefaultSoftLoadTimeout = 8 * time.Second
	DefaultHardLoadTimeout = 20 * time.Second
	DefaultRetryDelayUnit  = 1500 * time.Millisecond
	MaxMediaRetries        = 2
	// PrevRestartThreshold is the position (seconds) below which a
	// previous-track press restarts the current track instead of moving back.
	PrevRestartThreshold = 3.0
)

// Speeds is the playback-rate ladder cycled by CycleSpeed.
var Speeds = []float64{0.75, 1.0, 1.25, 1.5, 1.75, 2.0}

const defaultSpeedIdx = 1 // 1.0x

type State int

const (
	StateIdle State = iota
	StateBuffering
	StatePlaying
	StatePaused
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateBuffering:
		return "BUFFERING"
	case StatePlaying:
		return "PLAYING"
	case StatePaused:
		return "PAUSED"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoopMode is the policy applied when the active track finishes.
// There is no "off" mode; All is the default.
type LoopMode int

const (
	LoopAll LoopMode = iota
	LoopOne
	LoopShuffle
)

func (m LoopMode) String() string {
	switch m {
	case LoopOne:
		return "one"
	case LoopShuffle:
		return "shuffle"
	default:
		return "all"
	}
}

// Next rotates All -> One -> Shuffle -> All.
func (m LoopMode) Next() LoopMode {
	switch m {
	case LoopAll:
		return LoopOne
	case LoopOne:
		return LoopShuffle
	default:
		return LoopAll
	}
}

// ParseLoopMode maps a persisted string back to a mode, defaulting to All
// for anything unrecognized (including the retired "none").
func ParseLoopMode(s string) LoopMode {
	switch s {
	case "one":
		return LoopOne
	case "shuffle":
		return LoopShuffle
	default:
		return LoopAll
	}
}

type NoticeKind int

const (
	NoticeSlowLoad NoticeKind = iota
	NoticeRetrying
	NoticeLoadFailed
	NoticeUnsupported
	NoticePlaybackFailed
	NoticeSleepExpired
)

// Timing groups the engine's policy delays. They are fields rather than
// constants so tests can shrink them; the defaults come straight from the
// production values.
type Timing struct {
	DebounceWindow  time.Duration
	SoftLoadTimeout time.Duration
	HardLoadTimeout time.Duration
	RetryDelayUnit  time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		DebounceWindow:  DefaultDebounceWindow,
		SoftLoadTimeout: DefaultSoftLoadTimeout,
		HardLoadTimeout: DefaultHardLoadTimeout,
		RetryDelayUnit:  DefaultRetryDelayUnit,
	}
}

// Snapshot is a point-in-time copy of playback state for consumers.
type Snapshot struct {
	Track       catalog.Track
	Index       int
	PlaylistLen int
	State       State
	Position    float64
	Duration    float64
	LoopMode    LoopMode
	Speed       float64
}

// Options configure optional engine collaborators.
type Options struct {
	Timing    Timing
	Preloader Preloader
	// RecordPlay is invoked once per successful playback start,
	// fire-and-forget. May be nil.
	RecordPlay func(seriesID string, episodeNum int)
}

// Engine is the sole owner of the media handle and the playlist. All public
// methods are safe to call rapidly and concurrently from UI handlers; async
// media callbacks are linearized through a monotonic operation token so that
// only the most recently initiated load can transition state.
type Engine struct {
	mu     sync.Mutex
	handle Handle
	pl     Playlist
	timing Timing

	// op identifies the most recent load-and-play operation. Callbacks
	// capture it at arm time and become no-ops once it moves on.
	op            int64
	transitioning bool
	retries       int
	pendingSeek   float64
	state         State
	loopMode      LoopMode
	speedIdx      int

	debounceTimer *time.Timer
	softTimer     *time.Timer
	hardTimer     *time.Timer
	retryTimer    *time.Timer

	preloader    Preloader
	preloadedURL string

	recordPlay func(seriesID string, episodeNum int)

	sleepTimer      *time.Timer
	sleepDeadline   time.Time
	sleepIdx        int
	sleepAfterTrack bool

	onTrackChange []func(tr catalog.Track, index, total int)
	onTrackLoad   []func(tr catalog.Track, index, total int)
	onStateChange []func(State)
	onBuffering   []func(bool)
	onNotice      []func(NoticeKind, string)
	onProgress    []func(position, duration float64)
	onLoopMode    []func(LoopMode)
	onSpeed       []func(float64)
}

func New(h Handle, opts Options) *Engine {
	t := opts.Timing
	if t == (Timing{}) {
		t = DefaultTiming()
	}
	e := &Engine{
		handle:     h,
		pl:         newPlaylist(),
		timing:     t,
		state:      StateIdle,
		loopMode:   LoopAll,
		speedIdx:   defaultSpeedIdx,
		preloader:  opts.Preloader,
		recordPlay: opts.RecordPlay,
	}
	h.SetEvents(Events{
		Ended:    e.handleEnded,
		Error:    e.handleMediaError,
		Progress: e.handleProgress,
	})
	return e
}

// notifyBatch accumulates listener invocations built up under the engine
// mutex and fires them after it is released, so listeners may call back into
// the engine without deadlocking.
type notifyBatch []func()

func (n *notifyBatch) add(f func()) { *n = append(*n, f) }

func (n notifyBatch) fire() {
	for _, f := range n {
		f()
	}
}

// Listener registration. Register during wiring, before playback starts.

func (e *Engine) OnTrackChange(f func(tr catalog.Track, index, total int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTrackChange = append(e.onTrackChange, f)
}

// OnTrackLoad fires once per started load operation. Unlike OnTrackChange,
// which also reflects skip intent on every press, this only sees tracks
// whose media actually begins loading, so it is the hook for history and
// play accounting.
func (e *Engine) OnTrackLoad(f func(tr catalog.Track, index, total int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTrackLoad = append(e.onTrackLoad, f)
}

func (e *Engine) OnStateChange(f func(State)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onStateChange = append(e.onStateChange, f)
}

func (e *Engine) OnBuffering(f func(bool)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onBuffering = append(e.onBuffering, f)
}

func (e *Engine) OnNotice(f func(NoticeKind, string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onNotice = append(e.onNotice, f)
}

func (e *Engine) OnProgress(f func(position, duration float64)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onProgress = append(e.onProgress, f)
}

func (e *Engine) OnLoopModeChange(f func(LoopMode)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onLoopMode = append(e.onLoopMode, f)
}

func (e *Engine) OnSpeedChange(f func(float64)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onSpeed = append(e.onSpeed, f)
}

func (e *Engine) setStateLocked(st State, n *notifyBatch) {
	if e.state == st {
		return
	}
	log.Debug().Msgf("Playback state: %s -> %s", e.state, st)
	e.state = st
	fns := e.onStateChange
	n.add(func() {
		for _, f := range fns {
			f(st)
		}
	})
}

func (e *Engine) bufferingLocked(on bool, n *notifyBatch) {
	fns := e.onBuffering
	n.add(func() {
		for _, f := range fns {
			f(on)
		}
	})
}

func (e *Engine) noticeLocked(kind NoticeKind, msg string, n *notifyBatch) {
	fns := e.onNotice
	n.add(func() {
		for _, f := range fns {
			f(kind, msg)
		}
	})
}

func (e *Engine) trackChangedLocked(tr catalog.Track, n *notifyBatch) {
	idx, total := e.pl.Current(), e.pl.Len()
	fns := e.onTrackChange
	n.add(func() {
		for _, f := range fns {
			f(tr, idx, total)
		}
	})
}

func (e *Engine) trackLoadedLocked(tr catalog.Track, n *notifyBatch) {
	idx, total := e.pl.Current(), e.pl.Len()
	fns := e.onTrackLoad
	n.add(func() {
		for _, f := range fns {
			f(tr, idx, total)
		}
	})
}

// LoadPlaylist replaces the playlist unconditionally (even when re-selecting
// the same series, since the underlying episode data may have refreshed),
// positions at startIndex and starts loading immediately. resumeSeconds is
// applied once the media reports readiness.
func (e *Engine) LoadPlaylist(tracks []catalog.Track, startIndex int, resumeSeconds float64) {
	e.mu.Lock()
	e.cancelPreloadLocked()
	e.pl.Replace(tracks, startIndex)
	e.pendingSeek = resumeSeconds
	var n notifyBatch
	e.playCurrentLocked(&n)
	e.mu.Unlock()
	n.fire()
}

// RestoreSession rebuilds a playlist from persisted state without starting
// playback: the track is loaded so its metadata (and the saved position)
// apply, but the engine settles paused until the user acts.
func (e *Engine) RestoreSession(tracks []catalog.Track, index int, positionSeconds float64, loop LoopMode, speed float64) {
	e.mu.Lock()
	e.pl.Replace(tracks, index)
	e.loopMode = loop
	e.speedIdx = nearestSpeedIdx(speed)
	tr, ok := e.pl.CurrentTrack()
	if !ok {
		e.mu.Unlock()
		return
	}
	e.op++
	token := e.op
	e.stopLoadTimersLocked()
	e.handle.Load(tr.URL)
	e.handle.SetRate(Speeds[e.speedIdx])
	e.handle.OnceReady(func() { e.applyRestoredSeek(token, positionSeconds) })
	var n notifyBatch
	e.setStateLocked(StatePaused, &n)
	e.trackChangedLocked(tr, &n)
	e.trackLoadedLocked(tr, &n)
	e.mu.Unlock()
	n.fire()
}

func (e *Engine) applyRestoredSeek(token int64, seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if token != e.op {
		return
	}
	if seconds > 0 {
		e.handle.Seek(seconds)
	}
}

// PlayCurrent is the central state transition: begin a new load-and-play
// operation for the track at the current index. Any in-flight prior
// operation becomes inert via the token bump.
func (e *Engine) PlayCurrent() {
	e.mu.Lock()
	var n notifyBatch
	e.playCurrentLocked(&n)
	e.mu.Unlock()
	n.fire()
}

func (e *Engine) playCurrentLocked(n *notifyBatch) {
	tr, ok := e.pl.CurrentTrack()
	if !ok {
		return
	}
	e.op++
	token := e.op
	index := e.pl.Current()

	// Rapid skips must not accumulate listeners or timers from superseded
	// operations.
	e.stopLoadTimersLocked()
	e.handle.OnceReady(nil)

	e.transitioning = true
	e.retries = 0
	seek := e.pendingSeek
	e.pendingSeek = 0

	e.handle.Pause()
	e.handle.Load(tr.URL)
	e.handle.SetRate(Speeds[e.speedIdx])

	// Buffering is signaled before the media reports anything: the UI
	// reflects intent instantly, audio reality catches up async.
	e.setStateLocked(StateBuffering, n)
	e.bufferingLocked(true, n)
	e.trackChangedLocked(tr, n)
	e.trackLoadedLocked(tr, n)

	e.handle.OnceReady(func() { e.handleReady(token, seek, tr, index) })
	e.softTimer = time.AfterFunc(e.timing.SoftLoadTimeout, func() { e.handleSoftTimeout(token) })
	e.hardTimer = time.AfterFunc(e.timing.HardLoadTimeout, func() { e.handleHardTimeout(token, tr) })

	log.Debug().Int64("op", token).Int("index", index).Str("url", tr.URL).Msg("Loading track")
}

func (e *Engine) handleReady(token int64, seek float64, tr catalog.Track, index int) {
	e.mu.Lock()
	if token != e.op {
		e.mu.Unlock()
		return // superseded by a newer operation
	}
	var n notifyBatch
	e.stopLoadTimersLocked()
	e.bufferingLocked(false, &n)
	if seek > 0 {
		e.handle.Seek(seek)
	}
	err := e.handle.Play()
	e.transitioning = false
	if err != nil {
		// Play-start refusal is an expected condition, not an error:
		// settle paused and ready.
		log.Debug().Err(err).Msg("Playback start refused, settling paused")
		e.setStateLocked(StatePaused, &n)
	} else {
		e.setStateLocked(StatePlaying, &n)
		e.preloadNextLocked()
		if e.recordPlay != nil {
			rp := e.recordPlay
			go rp(tr.SeriesID, index+1)
		}
	}
	e.mu.Unlock()
	n.fire()
}

func (e *Engine) handleSoftTimeout(token int64) {
	e.mu.Lock()
	if token != e.op || !e.transitioning {
		e.mu.Unlock()
		return
	}
	var n notifyBatch
	e.noticeLocked(NoticeSlowLoad, "still loading...", &n)
	e.mu.Unlock()
	n.fire()
}

func (e *Engine) handleHardTimeout(token int64, tr catalog.Track) {
	e.mu.Lock()
	if token != e.op || !e.transitioning {
		e.mu.Unlock()
		return
	}
	var n notifyBatch
	e.transitioning = false
	e.bufferingLocked(false, &n)
	if e.handle.Buffered() > 0 {
		// Partial data exists: last-ditch start with what we have.
		log.Warn().Str("url", tr.URL).Msg("Load timed out with partial data, forcing playback")
		if err := e.handle.Play(); err != nil {
			e.setStateLocked(StatePaused, &n)
		} else {
			e.setStateLocked(StatePlaying, &n)
		}
	} else {
		log.Warn().Str("url", tr.URL).Msg("Load timed out with no data, giving up")
		e.setStateLocked(StatePaused, &n)
		e.noticeLocked(NoticeLoadFailed, "failed to load audio", &n)
	}
	e.mu.Unlock()
	n.fire()
}

// Toggle requests play when paused and pause otherwise. Pausing during a
// pending transition cancels it outright so no stale timers stay armed.
func (e *Engine) Toggle() {
	e.mu.Lock()
	var n notifyBatch
	switch {
	case e.transitioning:
		e.op++ // orphan any in-flight callbacks
		e.stopLoadTimersLocked()
		e.handle.OnceReady(nil)
		e.transitioning = false
		e.bufferingLocked(false, &n)
		e.handle.Pause()
		e.setStateLocked(StatePaused, &n)
	case e.handle.Paused():
		if err := e.handle.Play(); err != nil {
			e.setStateLocked(StatePaused, &n)
		} else {
			e.setStateLocked(StatePlaying, &n)
		}
	default:
		e.handle.Pause()
		e.setStateLocked(StatePaused, &n)
	}
	e.mu.Unlock()
	n.fire()
}

// SkipNext advances the index immediately (UI reflects intent on every
// press) and coalesces the actual media load behind the debounce window, so
// N rapid presses cost one load targeting the final index.
func (e *Engine) SkipNext() {
	e.mu.Lock()
	if e.pl.Empty() {
		e.mu.Unlock()
		return
	}
	e.pl.Advance()
	var n notifyBatch
	if tr, ok := e.pl.CurrentTrack(); ok {
		e.trackChangedLocked(tr, &n)
	}
	e.schedulePlayLocked()
	e.mu.Unlock()
	n.fire()
}

// SkipPrevious restarts the current track when pressed early in a track
// (or at index 0); otherwise it moves back one track, debounced like
// SkipNext.
func (e *Engine) SkipPrevious() {
	e.mu.Lock()
	if e.pl.Empty() {
		e.mu.Unlock()
		return
	}
	if e.handle.Position() <= PrevRestartThreshold || e.pl.Current() <= 0 {
		e.pendingSeek = 0
		e.handle.Seek(0)
		e.mu.Unlock()
		return
	}
	e.pl.SetCurrent(e.pl.Current() - 1)
	var n notifyBatch
	if tr, ok := e.pl.CurrentTrack(); ok {
		e.trackChangedLocked(tr, &n)
	}
	e.schedulePlayLocked()
	e.mu.Unlock()
	n.fire()
}

// SelectTrack jumps straight to a playlist index (playlist panel tap):
// immediate, not debounced.
func (e *Engine) SelectTrack(i int) {
	e.mu.Lock()
	var n notifyBatch
	if _, ok := e.pl.TrackAt(i); ok {
		e.pl.SetCurrent(i)
		e.playCurrentLocked(&n)
	}
	e.mu.Unlock()
	n.fire()
}

func (e *Engine) schedulePlayLocked() {
	if e.debounceTimer != nil {
		e.debounceTimer.Stop()
	}
	e.debounceTimer = time.AfterFunc(e.timing.DebounceWindow, e.debouncedPlay)
}

func (e *Engine) debouncedPlay() {
	e.mu.Lock()
	e.debounceTimer = nil
	var n notifyBatch
	e.playCurrentLocked(&n)
	e.mu.Unlock()
	n.fire()
}

// handleEnded applies the loop-mode transition table when a track finishes.
func (e *Engine) handleEnded() {
	e.mu.Lock()
	var n notifyBatch
	if e.sleepAfterTrack {
		// End-of-episode sleep wins over every loop mode, including One.
		e.sleepAfterTrack = false
		e.sleepIdx = 0
		e.handle.Pause()
		e.setStateLocked(StatePaused, &n)
		e.noticeLocked(NoticeSleepExpired, "sleep timer: stopped after episode", &n)
		e.mu.Unlock()
		n.fire()
		return
	}
	switch {
	case e.pl.Empty():
	case e.loopMode == LoopOne:
		e.handle.Seek(0)
		if err := e.handle.Play(); err != nil {
			e.setStateLocked(StatePaused, &n)
		}
	case e.loopMode == LoopShuffle:
		e.pl.SetCurrent(rand.Intn(e.pl.Len()))
		e.playCurrentLocked(&n)
	case e.pl.Current() < e.pl.Len()-1:
		e.pl.SetCurrent(e.pl.Current() + 1)
		e.playCurrentLocked(&n)
	default:
		e.pl.SetCurrent(0)
		e.playCurrentLocked(&n)
	}
	e.mu.Unlock()
	n.fire()
}

// handleMediaError classifies a media failure and retries transient kinds
// with backoff. The first retry is silent; the second surfaces a notice;
// exhaustion settles paused with a terminal message.
func (e *Engine) handleMediaError(kind ErrorKind) {
	if kind == ErrorAborted {
		return // expected from intentional source swaps
	}
	e.mu.Lock()
	var n notifyBatch
	e.transitioning = false
	e.stopLoadTimersLocked()
	e.bufferingLocked(false, &n)

	tr, ok := e.pl.CurrentTrack()
	if ok && kind != ErrorUnsupported && e.retries < MaxMediaRetries {
		e.retries++
		attempt := e.retries
		token := e.op
		if attempt > 1 {
			e.noticeLocked(NoticeRetrying, "playback hiccup, retrying...", &n)
		}
		delay := time.Duration(attempt) * e.timing.RetryDelayUnit
		log.Warn().Str("kind", kind.String()).Int("attempt", attempt).Dur("delay", delay).Msg("Media error, scheduling retry")
		e.retryTimer = time.AfterFunc(delay, func() { e.retryLoad(token, tr) })
	} else {
		log.Error().Str("kind", kind.String()).Int("retries", e.retries).Msg("Media error is terminal")
		e.setStateLocked(StatePaused, &n)
		if kind == ErrorUnsupported {
			e.noticeLocked(NoticeUnsupported, "audio format not supported", &n)
		} else {
			e.noticeLocked(NoticePlaybackFailed, "playback failed", &n)
		}
	}
	e.mu.Unlock()
	n.fire()
}

func (e *Engine) retryLoad(token int64, tr catalog.Track) {
	e.mu.Lock()
	if token != e.op {
		e.mu.Unlock()
		return
	}
	var n notifyBatch
	e.transitioning = true
	e.setStateLocked(StateBuffering, &n)
	e.bufferingLocked(true, &n)
	e.handle.Load(tr.URL)
	e.handle.OnceReady(func() { e.handleReady(token, 0, tr, e.pl.Current()) })
	// A retried load gets the same slow/stuck escalation as a fresh one.
	e.softTimer = time.AfterFunc(e.timing.SoftLoadTimeout, func() { e.handleSoftTimeout(token) })
	e.hardTimer = time.AfterFunc(e.timing.HardLoadTimeout, func() { e.handleHardTimeout(token, tr) })
	e.mu.Unlock()
	n.fire()
}

func (e *Engine) handleProgress(position, duration float64) {
	e.mu.Lock()
	fns := e.onProgress
	e.mu.Unlock()
	for _, f := range fns {
		f(position, duration)
	}
}

// SeekTo jumps to an absolute position in seconds.
func (e *Engine) SeekTo(seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if seconds < 0 {
		seconds = 0
	}
	e.handle.Seek(seconds)
}

// SeekBy nudges the position by a signed delta, clamped to track bounds.
func (e *Engine) SeekBy(delta float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pos := e.handle.Position() + delta
	if pos < 0 {
		pos = 0
	}
	if dur := e.handle.Duration(); dur > 0 && pos > dur {
		pos = dur
	}
	e.handle.Seek(pos)
}

func (e *Engine) CycleLoopMode() LoopMode {
	e.mu.Lock()
	e.loopMode = e.loopMode.Next()
	m := e.loopMode
	fns := e.onLoopMode
	e.mu.Unlock()
	for _, f := range fns {
		f(m)
	}
	return m
}

func (e *Engine) LoopMode() LoopMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loopMode
}

func (e *Engine) CycleSpeed() float64 {
	e.mu.Lock()
	e.speedIdx = (e.speedIdx + 1) % len(Speeds)
	s := Speeds[e.speedIdx]
	e.handle.SetRate(s)
	fns := e.onSpeed
	e.mu.Unlock()
	for _, f := range fns {
		f(s)
	}
	return s
}

func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Speeds[e.speedIdx]
}

func nearestSpeedIdx(speed float64) int {
	for i, s := range Speeds {
		if s == speed {
			return i
		}
	}
	return defaultSpeedIdx
}

func (e *Engine) preloadNextLocked() {
	if e.preloader == nil {
		return
	}
	ni := e.nextSequentialIndexLocked()
	if ni < 0 {
		e.cancelPreloadLocked()
		return
	}
	tr, ok := e.pl.TrackAt(ni)
	if !ok || tr.URL == "" || tr.URL == e.preloadedURL {
		return
	}
	e.preloader.Cancel()
	e.preloader.Preload(tr.URL)
	e.preloadedURL = tr.URL
}

// nextSequentialIndexLocked predicts the upcoming index for preloading.
// Shuffle is unpredictable by definition, so nothing is warmed.
func (e *Engine) nextSequentialIndexLocked() int {
	if e.pl.Empty() || e.loopMode == LoopShuffle {
		return -1
	}
	if e.pl.Current() < e.pl.Len()-1 {
		return e.pl.Current() + 1
	}
	if e.loopMode == LoopAll {
		return 0
	}
	return -1
}

func (e *Engine) cancelPreloadLocked() {
	if e.preloader != nil {
		e.preloader.Cancel()
	}
	e.preloadedURL = ""
}

func (e *Engine) stopLoadTimersLocked() {
	if e.softTimer != nil {
		e.softTimer.Stop()
		e.softTimer = nil
	}
	if e.hardTimer != nil {
		e.hardTimer.Stop()
		e.hardTimer = nil
	}
	if e.retryTimer != nil {
		e.retryTimer.Stop()
		e.retryTimer = nil
	}
}

// Snapshot returns a copy of everything a persistence or UI consumer needs.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	tr, _ := e.pl.CurrentTrack()
	return Snapshot{
		Track:       tr,
		Index:       e.pl.Current(),
		PlaylistLen: e.pl.Len(),
		State:       e.state,
		Position:    e.handle.Position(),
		Duration:    e.handle.Duration(),
		LoopMode:    e.loopMode,
		Speed:       Speeds[e.speedIdx],
	}
}

// PlaylistTracks returns a display copy of the loaded playlist.
func (e *Engine) PlaylistTracks() []catalog.Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pl.Tracks()
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Close tears down every armed timer. The handle outlives the engine and is
// stopped by its owner.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.op++
	e.stopLoadTimersLocked()
	if e.debounceTimer != nil {
		e.debounceTimer.Stop()
		e.debounceTimer = nil
	}
	e.stopSleepLocked()
	e.handle.OnceReady(nil)
}
