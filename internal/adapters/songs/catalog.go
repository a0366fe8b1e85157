// Package songs loads the read-only song catalog from a directory tree
// and answers the lookups the tool dispatcher needs.
package songs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/longregen/alicia/internal/domain"
	"github.com/longregen/alicia/internal/domain/models"
)

// Catalog is an immutable, in-memory index built once at startup from
// <root>/<dir>/{<dir>.json,<dir>.lrc,<dir>.mp3}.
type Catalog struct {
	songs []*models.Song
}

// Load walks root and parses every subdirectory that carries a
// <dir>.json manifest. Subdirectories without one are skipped, not
// fatal, since the catalog tolerates partial data the same way
// config.Load tolerates a partial config file.
func Load(root string) (*Catalog, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read song catalog root: %w", err)
	}

	var songs []*models.Song
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := entry.Name()
		base := filepath.Join(root, dir)
		manifestPath := filepath.Join(base, dir+".json")

		raw, err := os.ReadFile(manifestPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read manifest %s: %w", manifestPath, err)
		}

		var song models.Song
		if err := json.Unmarshal(raw, &song); err != nil {
			return nil, fmt.Errorf("parse manifest %s: %w", manifestPath, err)
		}
		song.Dir = dir
		song.AudioPath = filepath.Join(base, dir+".mp3")
		song.LRCPath = filepath.Join(base, dir+".lrc")
		songs = append(songs, &song)
	}

	sort.Slice(songs, func(i, j int) bool { return songs[i].Title < songs[j].Title })
	return &Catalog{songs: songs}, nil
}

func (c *Catalog) ByTitle(title string) (*models.Song, bool) {
	for _, s := range c.songs {
		if s.Title == title {
			return s, true
		}
	}
	return nil, false
}

// FuzzyByTitle falls back to case-insensitive substring containment in
// both directions when no exact title matches.
func (c *Catalog) FuzzyByTitle(query string) (*models.Song, bool) {
	if s, ok := c.ByTitle(query); ok {
		return s, true
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, false
	}
	for _, s := range c.songs {
		t := strings.ToLower(s.Title)
		if strings.Contains(t, q) || strings.Contains(q, t) {
			return s, true
		}
	}
	return nil, false
}

// BySegmentText implements the search_song_by_lyrics rule: reject
// snippets shorter than eight non-whitespace characters, try a plain
// substring match first, and if nothing matches, bisect the snippet
// once on its midpoint and intersect the two halves' matches.
func (c *Catalog) BySegmentText(snippet string) []*models.Song {
	if nonWhitespaceLen(snippet) < 8 {
		return nil
	}

	if matches := c.songsContaining(snippet); len(matches) > 0 {
		return matches
	}

	mid := len(snippet) / 2
	left, right := snippet[:mid], snippet[mid:]
	leftMatches := c.songSetContaining(left)
	rightMatches := c.songSetContaining(right)

	var out []*models.Song
	for _, s := range c.songs {
		if leftMatches[s] && rightMatches[s] {
			out = append(out, s)
		}
	}
	return out
}

func (c *Catalog) songsContaining(snippet string) []*models.Song {
	var out []*models.Song
	for _, s := range c.songs {
		if strings.Contains(s.FullLyrics(), snippet) {
			out = append(out, s)
		}
	}
	return out
}

func (c *Catalog) songSetContaining(snippet string) map[*models.Song]bool {
	set := make(map[*models.Song]bool)
	for _, s := range c.songsContaining(snippet) {
		set[s] = true
	}
	return set
}

func (c *Catalog) ListSingable(max int) []*models.Song {
	if max <= 0 || max > len(c.songs) {
		max = len(c.songs)
	}
	return append([]*models.Song(nil), c.songs[:max]...)
}

func (c *Catalog) CanSing(title string) bool {
	_, ok := c.FuzzyByTitle(title)
	return ok
}

// LyricsAndAudio returns the segment's literal lyrics text and its
// source song's audio bytes, read from disk on demand.
func (c *Catalog) LyricsAndAudio(songTitle, segmentDescription string) (string, []byte, error) {
	song, ok := c.FuzzyByTitle(songTitle)
	if !ok {
		return "", nil, domain.NewDomainError(domain.KindNotFound, domain.ErrSongNotFound, "song not found: "+songTitle)
	}

	seg, ok := song.SegmentByDescription(segmentDescription)
	if !ok {
		return "", nil, domain.NewDomainError(domain.KindNotFound, domain.ErrSegmentNotFound, "segment not found: "+segmentDescription)
	}

	var lyrics strings.Builder
	for _, line := range seg.Lyrics {
		lyrics.WriteString(line.Content)
		lyrics.WriteByte('\n')
	}

	audio, err := os.ReadFile(song.AudioPath)
	if err != nil {
		return "", nil, fmt.Errorf("read audio for %s: %w", song.Title, err)
	}

	return lyrics.String(), audio, nil
}

func nonWhitespaceLen(s string) int {
	n := 0
	for _, r := range s {
		if !strings.ContainsRune(" \t\n\r　", r) {
			n++
		}
	}
	return n
}
