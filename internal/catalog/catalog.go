// Package catalog defines the data structures for the audio lecture catalog.
package catalog

// Episode is a single playable recording within a series.
type Episode struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	FileName    string `json:"fileName"`
	URL         string `json:"url"`
	Intro       string `json:"intro,omitempty"`
	StoryNumber int    `json:"storyNumber,omitempty"`
}

// Series is an ordered collection of episodes by a single speaker.
type Series struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Speaker  string    `json:"speaker"`
	Episodes []Episode `json:"episodes"`
}

// Category groups related series (lectures, chants, audiobooks).
type Category struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Series []Series `json:"series"`
}

// Catalog is the full category tree served by the backend.
type Catalog struct {
	Categories []Category `json:"categories"`
}

// Track is an episode joined with its owning series' metadata. Tracks are
// immutable once built; identity is (SeriesID, ID).
type Track struct {
	ID          string
	Title       string
	FileName    string
	URL         string
	SeriesID    string
	SeriesTitle string
	Speaker     string
	Intro       string
	StoryNumber int
}

// DisplayTitle returns the episode title, falling back to the file name for
// legacy entries that never had one.
func (t Track) DisplayTitle() string {
	if t.Title != "" {
		return t.Title
	}
	return t.FileName
}

// BuildTracks joins every episode of a series with the series metadata.
// The result is a fresh slice; playlists are always replaced wholesale,
// never patched in place.
func BuildTracks(s *Series) []Track {
	tracks := make([]Track, 0, len(s.Episodes))
	for _, ep := range s.Episodes {
		tracks = append(tracks, Track{
			ID:          ep.ID,
			Title:       ep.Title,
			FileName:    ep.FileName,
			URL:         ep.URL,
			SeriesID:    s.ID,
			SeriesTitle: s.Title,
			Speaker:     s.Speaker,
			Intro:       ep.Intro,
			StoryNumber: ep.StoryNumber,
		})
	}
	return tracks
}

// FindSeries looks up a series by ID across all categories.
// Returns nil if the series is unknown.
func (c *Catalog) FindSeries(seriesID string) *Series {
	for ci := range c.Categories {
		for si := range c.Categories[ci].Series {
			if c.Categories[ci].Series[si].ID == seriesID {
				return &c.Categories[ci].Series[si]
			}
		}
	}
	return nil
}

// CategoryOf returns the ID of the category owning the given series,
// or "" if the series is unknown.
func (c *Catalog) CategoryOf(seriesID string) string {
	for ci := range c.Categories {
		for _, s := range c.Categories[ci].Series {
			if s.ID == seriesID {
				return c.Categories[ci].ID
			}
		}
	}
	return ""
}

// SeriesCount returns the total number of series across all categories.
func (c *Catalog) SeriesCount() int {
	n := 0
	for _, cat := range c.Categories {
		n += len(cat.Series)
	}
	return n
}
