// Package media implements the engine's media handle on top of beep: one
// streamable source at a time, fetched over HTTP, decoded and fed to the
// speaker, with seek and playback-rate control.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/lianbang999-crypto/foyue/internal/engine"
	"github.com/rs/zerolog/log"
)

const (
	SpeakerBufferSize = 250 * time.Millisecond
	FetchTimeout      = 0 // No overall timeout — lecture files can be large
	progressInterval  = 500 * time.Millisecond
)

type httpStatusError struct {
	StatusCode int
	Status     string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("source returned status %d: %s", e.StatusCode, e.Status)
}

// StreamHandle is the production engine.Handle. Each Load runs under its own
// context; assigning a new source cancels the previous fetch outright, so a
// superseded load can never deliver events.
type StreamHandle struct {
	mu         sync.Mutex
	httpClient *http.Client
	ev         engine.Events
	readyFn    func()

	cancel      context.CancelFunc
	tmpPath     string
	streamer    beep.StreamSeekCloser
	resampler   *beep.Resampler
	ctrl        *beep.Ctrl
	format      beep.Format
	rate        float64
	paused      bool
	queued      bool
	ended       bool
	loaded      bool
	speakerInit bool
	speakerRate beep.SampleRate
	stopTick    chan struct{}
}

func NewStreamHandle() *StreamHandle {
	return &StreamHandle{
		httpClient: &http.Client{
			Timeout: FetchTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 15 * time.Second,
				MaxIdleConns:          10,
				IdleConnTimeout:       90 * time.Second,
				DisableCompression:    true,
			},
		},
		rate:   1.0,
		paused: true,
	}
}

func (h *StreamHandle) SetEvents(ev engine.Events) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ev = ev
}

func (h *StreamHandle) OnceReady(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readyFn = fn
}

// Load assigns a new source. The previous load's context is cancelled first,
// which surfaces to its goroutine as an aborted (ignored) error.
func (h *StreamHandle) Load(url string) {
	h.mu.Lock()
	h.teardownLocked()
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.mu.Unlock()

	go h.fetchAndDecode(ctx, url)
}

func (h *StreamHandle) fetchAndDecode(ctx context.Context, url string) {
	log.Debug().Str("url", url).Msg("Fetching audio source")

	path, err := h.download(ctx, url)
	if err != nil {
		h.reportError(ctx, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		os.Remove(path)
		h.reportError(ctx, fmt.Errorf("failed to reopen audio file: %w", err))
		return
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		os.Remove(path)
		h.reportError(ctx, fmt.Errorf("failed to decode audio: %w", err))
		return
	}

	if err := h.initSpeaker(format.SampleRate); err != nil {
		streamer.Close()
		os.Remove(path)
		h.reportError(ctx, err)
		return
	}

	h.mu.Lock()
	if ctx.Err() != nil {
		// Superseded while decoding; discard silently.
		h.mu.Unlock()
		streamer.Close()
		os.Remove(path)
		return
	}
	h.tmpPath = path
	h.streamer = streamer
	h.format = format
	h.resampler = beep.ResampleRatio(4, h.rate, streamer)
	h.ctrl = &beep.Ctrl{Streamer: beep.Seq(h.resampler, beep.Callback(h.fireEnded)), Paused: true}
	h.loaded = true
	h.paused = true
	ready := h.readyFn
	h.readyFn = nil
	h.mu.Unlock()

	log.Debug().Int("sampleRate", int(format.SampleRate)).Str("url", url).Msg("Audio source ready")
	if ready != nil {
		ready()
	}
}

func (h *StreamHandle) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &httpStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	tmp, err := os.CreateTemp("", "foyue-audio-*.mp3")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to buffer audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return tmp.Name(), nil
}

func (h *StreamHandle) initSpeaker(sampleRate beep.SampleRate) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.speakerInit || sampleRate != h.speakerRate {
		if err := speaker.Init(sampleRate, sampleRate.N(SpeakerBufferSize)); err != nil {
			return fmt.Errorf("failed to initialize audio output: %w", err)
		}
		h.speakerRate = sampleRate
		h.speakerInit = true
		log.Debug().Msgf("Speaker initialized at %d Hz", sampleRate)
	}
	return nil
}

func (h *StreamHandle) reportError(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return // superseded load, not a real failure
	}
	kind := classifyError(err)
	log.Warn().Err(err).Str("kind", kind.String()).Msg("Media load failed")

	h.mu.Lock()
	fn := h.ev.Error
	h.mu.Unlock()
	if fn != nil {
		fn(kind)
	}
}

// classifyError maps transport and codec failures onto the engine's
// retry-relevant taxonomy.
func classifyError(err error) engine.ErrorKind {
	if errors.Is(err, context.Canceled) {
		return engine.ErrorAborted
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusForbidden, http.StatusNotFound, http.StatusGone, http.StatusUnsupportedMediaType:
			return engine.ErrorUnsupported
		}
		return engine.ErrorNetwork
	}
	msg := err.Error()
	if strings.Contains(msg, "decode") || strings.Contains(msg, "mp3") {
		return engine.ErrorDecode
	}
	return engine.ErrorNetwork
}

func (h *StreamHandle) fireEnded() {
	// This fires from inside the speaker's sample loop. Taking h.mu here
	// can deadlock against methods that hold h.mu while waiting on the
	// speaker lock, so all work hops off that goroutine first.
	go func() {
		h.mu.Lock()
		h.paused = true
		h.ended = true
		fn := h.ev.Ended
		h.mu.Unlock()
		if fn != nil {
			fn()
		}
	}()
}

func (h *StreamHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.loaded || h.ctrl == nil {
		return errors.New("no source loaded")
	}
	if h.ended {
		// The drained Seq can never stream again; rebuild the chain from
		// the (re-seekable) streamer and queue it afresh.
		h.resampler = beep.ResampleRatio(4, h.rate, h.streamer)
		h.ctrl = &beep.Ctrl{Streamer: beep.Seq(h.resampler, beep.Callback(h.fireEnded)), Paused: true}
		h.queued = false
		h.ended = false
	}
	if !h.queued {
		speaker.Play(h.ctrl)
		h.queued = true
	}
	speaker.Lock()
	h.ctrl.Paused = false
	speaker.Unlock()
	h.paused = false
	h.startProgressLocked()
	return nil
}

func (h *StreamHandle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctrl != nil {
		speaker.Lock()
		h.ctrl.Paused = true
		speaker.Unlock()
	}
	h.paused = true
}

func (h *StreamHandle) Seek(seconds float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.streamer == nil {
		return
	}
	n := int(seconds * float64(h.format.SampleRate))
	if max := h.streamer.Len(); n > max {
		n = max
	}
	if n < 0 {
		n = 0
	}
	speaker.Lock()
	if err := h.streamer.Seek(n); err != nil {
		log.Debug().Err(err).Float64("seconds", seconds).Msg("Seek failed")
	}
	speaker.Unlock()
}

func (h *StreamHandle) SetRate(rate float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rate = rate
	if h.resampler != nil {
		speaker.Lock()
		h.resampler.SetRatio(rate)
		speaker.Unlock()
	}
}

func (h *StreamHandle) Position() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.streamer == nil {
		return 0
	}
	speaker.Lock()
	pos := h.streamer.Position()
	speaker.Unlock()
	return float64(pos) / float64(h.format.SampleRate)
}

func (h *StreamHandle) Duration() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.streamer == nil {
		return 0
	}
	return float64(h.streamer.Len()) / float64(h.format.SampleRate)
}

func (h *StreamHandle) Paused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}

// Buffered reports usable decoded media. This handle buffers the whole file
// before readiness, so it is all-or-nothing.
func (h *StreamHandle) Buffered() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.loaded || h.streamer == nil {
		return 0
	}
	return float64(h.streamer.Len()) / float64(h.format.SampleRate)
}

func (h *StreamHandle) startProgressLocked() {
	if h.stopTick != nil {
		return
	}
	stop := make(chan struct{})
	h.stopTick = stop
	go func() {
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				h.mu.Lock()
				fn := h.ev.Progress
				paused := h.paused
				h.mu.Unlock()
				if fn != nil && !paused {
					fn(h.Position(), h.Duration())
				}
			case <-stop:
				return
			}
		}
	}()
}

func (h *StreamHandle) teardownLocked() {
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	if h.stopTick != nil {
		close(h.stopTick)
		h.stopTick = nil
	}
	if h.ctrl != nil {
		speaker.Clear()
		h.ctrl = nil
	}
	if h.streamer != nil {
		h.streamer.Close()
		h.streamer = nil
	}
	h.resampler = nil
	if h.tmpPath != "" {
		os.Remove(h.tmpPath)
		h.tmpPath = ""
	}
	h.loaded = false
	h.queued = false
	h.ended = false
	h.paused = true
}

// Stop releases everything at shutdown.
func (h *StreamHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.teardownLocked()
	h.readyFn = nil
	log.Debug().Msg("Media handle stopped")
}
