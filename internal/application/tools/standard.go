package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/longregen/alicia/internal/application/memory"
	"github.com/longregen/alicia/internal/ports"
)

// RetrievalSession is per-turn scratch state shared by the tools a
// single retrieval planning run invokes. It is injected fresh into
// every Dispatch call for the duration of one turn's planning, never
// persisted by the tools themselves.
type RetrievalSession struct {
	UserID          string
	PreviousResults []PreviousResult
	UsedIDs         map[string]bool
}

// PreviousResult is one item from the prior turn's retrieval snapshot,
// addressable by index for inherit_memory.
type PreviousResult struct {
	Content string
}

func NewRetrievalSession(userID string, previous []PreviousResult, alreadyUsed []string) *RetrievalSession {
	used := make(map[string]bool, len(alreadyUsed))
	for _, id := range alreadyUsed {
		used[id] = true
	}
	return &RetrievalSession{UserID: userID, PreviousResults: previous, UsedIDs: used}
}

const injectedSession = "session"

// BuildStandardRegistry registers the seven standard retrieval tools.
// store and catalog are long-lived singletons captured by closure;
// only the per-turn session is injected per call.
func BuildStandardRegistry(store *memory.Store, catalog ports.SongCatalog) *Registry {
	r := NewRegistry()

	r.Register(&Tool{
		Name:         "inherit_memory",
		Description:  "Copy forward items from the previous retrieval snapshot by index.",
		Params:       []Param{{Name: "content_ids", Type: "list<int>", Description: "indexes into the previous turn's results"}},
		InjectedKeys: []string{injectedSession},
		Exec:         execInheritMemory,
	})

	r.Register(&Tool{
		Name:         "memory_search",
		Description:  "Vector search the user's long-term memory.",
		Params:       []Param{{Name: "query", Type: "string", Description: "natural language search query"}},
		InjectedKeys: []string{injectedSession},
		Exec:         execMemorySearch(store),
	})

	r.Register(&Tool{
		Name:        "search_song_intro",
		Description: "Look up a song's description by (fuzzy) title.",
		Params:      []Param{{Name: "song_name", Type: "string", Description: "song title"}},
		Exec:        execSearchSongIntro(catalog),
	})

	r.Register(&Tool{
		Name:        "search_song_lyrics",
		Description: "Look up a song's full lyrics by (fuzzy) title.",
		Params:      []Param{{Name: "song_name", Type: "string", Description: "song title"}},
		Exec:        execSearchSongLyrics(catalog),
	})

	r.Register(&Tool{
		Name:        "search_song_by_lyrics",
		Description: "Find songs containing a lyrics snippet.",
		Params:      []Param{{Name: "lyrics_snippet", Type: "string", Description: "a fragment of lyrics, at least 8 non-whitespace characters"}},
		Exec:        execSearchSongByLyrics(catalog),
	})

	r.Register(&Tool{
		Name:        "get_songs_can_sing",
		Description: "List up to max songs the character can sing.",
		Params:      []Param{{Name: "max", Type: "int", Description: "maximum number of songs to list"}},
		Exec:        execGetSongsCanSing(catalog),
	})

	r.Register(&Tool{
		Name:        "can_i_sing_song",
		Description: "Check whether a given song is in the singable catalog.",
		Params:      []Param{{Name: "song_name", Type: "string", Description: "song title"}},
		Exec:        execCanISingSong(catalog),
	})

	return r
}

func execInheritMemory(_ context.Context, args map[string]any) (string, error) {
	session := args[injectedSession].(*RetrievalSession)
	raw, _ := args["content_ids"].([]any)

	var out []string
	for _, v := range raw {
		idx, ok := toInt(v)
		if !ok || idx < 0 || idx >= len(session.PreviousResults) {
			continue
		}
		out = append(out, session.PreviousResults[idx].Content)
	}
	return strings.Join(out, "\n"), nil
}

func execMemorySearch(store *memory.Store) Executor {
	return func(ctx context.Context, args map[string]any) (string, error) {
		session := args[injectedSession].(*RetrievalSession)
		query, _ := args["query"].(string)
		if strings.TrimSpace(query) == "" {
			return "", fmt.Errorf("memory_search: empty query")
		}

		hits, err := store.VectorSearch(ctx, session.UserID, query, 10)
		if err != nil {
			return "", err
		}

		var out []string
		for _, hit := range hits {
			if session.UsedIDs[hit.ID] {
				continue
			}
			session.UsedIDs[hit.ID] = true
			out = append(out, hit.Content)
		}
		return strings.Join(out, "\n"), nil
	}
}

func execSearchSongIntro(catalog ports.SongCatalog) Executor {
	return func(_ context.Context, args map[string]any) (string, error) {
		name, _ := args["song_name"].(string)
		song, ok := catalog.FuzzyByTitle(name)
		if !ok {
			return "", fmt.Errorf("song not found: %s", name)
		}
		return fmt.Sprintf("%s：%s", song.Title, song.Description), nil
	}
}

func execSearchSongLyrics(catalog ports.SongCatalog) Executor {
	return func(_ context.Context, args map[string]any) (string, error) {
		name, _ := args["song_name"].(string)
		song, ok := catalog.FuzzyByTitle(name)
		if !ok {
			return "", fmt.Errorf("song not found: %s", name)
		}
		return song.FullLyrics(), nil
	}
}

func execSearchSongByLyrics(catalog ports.SongCatalog) Executor {
	return func(_ context.Context, args map[string]any) (string, error) {
		snippet, _ := args["lyrics_snippet"].(string)
		matches := catalog.BySegmentText(snippet)
		if len(matches) == 0 {
			return "", nil
		}
		var titles []string
		for _, s := range matches {
			titles = append(titles, s.Title)
		}
		return strings.Join(titles, "\n"), nil
	}
}

func execGetSongsCanSing(catalog ports.SongCatalog) Executor {
	return func(_ context.Context, args map[string]any) (string, error) {
		max, _ := toInt(args["max"])
		songs := catalog.ListSingable(max)
		var lines []string
		for _, s := range songs {
			var segs []string
			for _, seg := range s.Segments {
				segs = append(segs, seg.Description)
			}
			lines = append(lines, fmt.Sprintf("%s：%s", s.Title, strings.Join(segs, "、")))
		}
		return strings.Join(lines, "\n"), nil
	}
}

func execCanISingSong(catalog ports.SongCatalog) Executor {
	return func(_ context.Context, args map[string]any) (string, error) {
		name, _ := args["song_name"].(string)
		if catalog.CanSing(name) {
			return "yes", nil
		}
		return "no", nil
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
