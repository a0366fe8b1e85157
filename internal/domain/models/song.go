package models

// LyricLine is one line of a segment's lyrics with its spoken duration.
type LyricLine struct {
	Content  string  `json:"content"`
	Duration float64 `json:"duration"`
}

// SongSegment is one singable section of a Song.
type SongSegment struct {
	Description string      `json:"description"`
	StartTime   float64     `json:"start_time"`
	EndTime     float64     `json:"end_time"`
	Lyrics      []LyricLine `json:"lyrics"`
}

// Song is a read-only catalog entry loaded from the song directory tree.
type Song struct {
	Dir         string        `json:"dir"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	LRCOffset   float64       `json:"lrc_offset"`
	Segments    []SongSegment `json:"segments"`

	AudioPath string `json:"-"`
	LRCPath   string `json:"-"`
}

// FullLyrics concatenates every segment's lyric lines, in order, one
// per line, for substring search against the whole song.
func (s *Song) FullLyrics() string {
	var out []byte
	for _, seg := range s.Segments {
		for _, line := range seg.Lyrics {
			out = append(out, line.Content...)
			out = append(out, '\n')
		}
	}
	return string(out)
}

func (s *Song) SegmentByDescription(desc string) (*SongSegment, bool) {
	for i := range s.Segments {
		if s.Segments[i].Description == desc {
			return &s.Segments[i], true
		}
	}
	return nil, false
}
