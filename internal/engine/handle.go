package engine

// ErrorKind classifies failures reported by a media handle.
type ErrorKind int

const (
	// ErrorAborted means a load was intentionally interrupted (a new URL was
	// assigned mid-load). Expected during track switches and never surfaced.
	ErrorAborted ErrorKind = iota
	ErrorNetwork
	ErrorDecode
	ErrorUnsupported
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorAborted:
		return "ABORTED"
	case ErrorNetwork:
		return "NETWORK"
	case ErrorDecode:
		return "DECODE"
	case ErrorUnsupported:
		return "UNSUPPORTED"
	default:
		return "UNKNOWN"
	}
}

// Events are the asynchronous lifecycle notifications a Handle delivers.
// They may fire from any goroutine; implementations must not invoke them
// synchronously from inside a Handle method call.
type Events struct {
	Ended    func()
	Error    func(kind ErrorKind)
	Progress func(position, duration float64)
}

// Handle is the streamable media element the Engine exclusively owns:
// one URL loaded at a time, asynchronous readiness, seek/rate control.
type Handle interface {
	// Load assigns a new source URL and begins fetching it. Any in-flight
	// load of a previous URL is abandoned.
	Load(url string)
	// OnceReady arms fn to fire once the current source is playable,
	// replacing any previously armed callback. nil disarms.
	OnceReady(fn func())
	// Play requests playback start. A non-nil error means the request was
	// refused (the media settles paused); it is not a media failure.
	Play() error
	Pause()
	Seek(seconds float64)
	SetRate(rate float64)
	Position() float64
	Duration() float64
	Paused() bool
	// Buffered reports how many seconds of media are fetched and decodable
	// ahead of the current position. Zero means no usable data yet.
	Buffered() float64
	SetEvents(ev Events)
}

// Preloader opportunistically warms an upcoming track so the transition to it
// is gapless. Implementations fetch metadata only, never full audio.
type Preloader interface {
	Preload(url string)
	Cancel()
}
