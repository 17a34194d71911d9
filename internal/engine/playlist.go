package engine

import "github.com/lianbang999-crypto/foyue/internal/catalog"

// Playlist is the ordered set of tracks currently loaded for playback plus
// the index of the active one (-1 when empty/unset). It is owned exclusively
// by the Engine; consumers only ever see copies.
type Playlist struct {
	tracks  []catalog.Track
	current int
}

func newPlaylist() Playlist {
	return Playlist{current: -1}
}

// Replace swaps in a new track list wholesale. Partial in-place mutation is
// never done, so stale indexes from a previous list can never alias into the
// new one.
func (p *Playlist) Replace(tracks []catalog.Track, current int) {
	p.tracks = tracks
	if current < 0 || current >= len(tracks) {
		current = -1
	}
	p.current = current
}

func (p *Playlist) Len() int {
	return len(p.tracks)
}

func (p *Playlist) Empty() bool {
	return len(p.tracks) == 0
}

func (p *Playlist) Current() int {
	return p.current
}

func (p *Playlist) SetCurrent(i int) {
	if i >= 0 && i < len(p.tracks) {
		p.current = i
	}
}

// Advance moves to the next track, wrapping at the end.
func (p *Playlist) Advance() {
	if len(p.tracks) == 0 {
		return
	}
	p.current = (p.current + 1) % len(p.tracks)
}

// CurrentTrack returns the active track, or false if the index is unset or
// out of bounds.
func (p *Playlist) CurrentTrack() (catalog.Track, bool) {
	return p.TrackAt(p.current)
}

func (p *Playlist) TrackAt(i int) (catalog.Track, bool) {
	if i < 0 || i >= len(p.tracks) {
		return catalog.Track{}, false
	}
	return p.tracks[i], true
}

// Tracks returns a copy of the track list for display purposes.
func (p *Playlist) Tracks() []catalog.Track {
	out := make([]catalog.Track, len(p.tracks))
	copy(out, p.tracks)
	return out
}
