package catalog

import "testing"

func testCatalog() *Catalog {
	return &Catalog{
		Categories: []Category{
			{
				ID:    "lectures",
				Title: "Lectures",
				Series: []Series{
					{
						ID:      "amitabha-sutra",
						Title:   "Amitabha Sutra",
						Speaker: "Master Da'an",
						Episodes: []Episode{
							{ID: "ep1", Title: "Part 1", FileName: "amitabha-01.mp3", URL: "https://cdn.example.com/amitabha-01.mp3"},
							{ID: "ep2", FileName: "amitabha-02.mp3", URL: "https://cdn.example.com/amitabha-02.mp3"},
						},
					},
				},
			},
			{
				ID:    "chants",
				Title: "Chants",
				Series: []Series{
					{ID: "donglin-chant", Title: "Donglin Chant", Speaker: "", Episodes: []Episode{
						{ID: "c1", Title: "Morning", FileName: "chant-01.mp3", URL: "https://cdn.example.com/chant-01.mp3"},
					}},
				},
			},
		},
	}
}

func TestBuildTracks(t *testing.T) {
	c := testCatalog()
	s := c.FindSeries("amitabha-sutra")
	if s == nil {
		t.Fatal("FindSeries returned nil for known series")
	}

	tracks := BuildTracks(s)
	if len(tracks) != 2 {
		t.Fatalf("BuildTracks returned %d tracks, want 2", len(tracks))
	}

	tr := tracks[0]
	if tr.SeriesID != "amitabha-sutra" || tr.SeriesTitle != "Amitabha Sutra" || tr.Speaker != "Master Da'an" {
		t.Errorf("Track series metadata not joined: %+v", tr)
	}
	if tr.URL != "https://cdn.example.com/amitabha-01.mp3" {
		t.Errorf("Track URL = %q", tr.URL)
	}
}

func TestDisplayTitle(t *testing.T) {
	tests := []struct {
		name     string
		track    Track
		expected string
	}{
		{"with title", Track{Title: "Part 1", FileName: "a.mp3"}, "Part 1"},
		{"filename fallback", Track{FileName: "a.mp3"}, "a.mp3"},
		{"both empty", Track{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.track.DisplayTitle(); got != tt.expected {
				t.Errorf("DisplayTitle() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFindSeries(t *testing.T) {
	c := testCatalog()

	if s := c.FindSeries("donglin-chant"); s == nil || s.Title != "Donglin Chant" {
		t.Errorf("FindSeries(donglin-chant) = %v", s)
	}
	if s := c.FindSeries("nope"); s != nil {
		t.Errorf("FindSeries(nope) = %v, want nil", s)
	}
}

func TestCategoryOf(t *testing.T) {
	c := testCatalog()

	tests := []struct {
		seriesID string
		expected string
	}{
		{"amitabha-sutra", "lectures"},
		{"donglin-chant", "chants"},
		{"missing", ""},
	}

	for _, tt := range tests {
		t.Run(tt.seriesID, func(t *testing.T) {
			if got := c.CategoryOf(tt.seriesID); got != tt.expected {
				t.Errorf("CategoryOf(%q) = %q, want %q", tt.seriesID, got, tt.expected)
			}
		})
	}
}

func TestSeriesCount(t *testing.T) {
	c := testCatalog()
	if n := c.SeriesCount(); n != 2 {
		t.Errorf("SeriesCount() = %d, want 2", n)
	}
}
