package resolver

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/fuunylmz/Re-aniname/internal/catalog"
)

// minKeyTitleLen is the shortest normalized title that may be cached.
// Shorter titles ("Up", CJK-only names) are too collision-prone.
const minKeyTitleLen = 3

// Fragment is the catalog-derived part of a MediaInfo that is shared
// across every file of one title within a batch.
type Fragment struct {
	ID            int64
	Title         string
	OriginalTitle string
	Year          int
	Seasons       []catalog.Season
	Raw           json.RawMessage
}

func fragmentFromMatch(m *catalog.Match) Fragment {
	return Fragment{
		ID:            m.ID,
		Title:         m.Title,
		OriginalTitle: m.OriginalTitle,
		Year:          m.Year,
		Seasons:       m.Seasons,
		Raw:           m.Raw,
	}
}

// RegularSeasons counts seasons numbered above zero. The second result is
// false when the season list is unknown.
func (f Fragment) RegularSeasons() (int, bool) {
	if f.Seasons == nil {
		return 0, false
	}
	n := 0
	for _, s := range f.Seasons {
		if s.Regular() {
			n++
		}
	}
	return n, true
}

// NormalizeKey builds the title-cache key: the lower-cased title reduced
// to [a-z0-9], a dash, then the year or "any". ok is false when the
// reduced title is too short to be cached.
func NormalizeKey(title string, year int) (key string, ok bool) {
	var sb strings.Builder
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	norm := sb.String()
	suffix := "any"
	if year > 0 {
		suffix = strconv.Itoa(year)
	}
	return norm + "-" + suffix, len(norm) >= minKeyTitleLen
}

// Stats counts cache activity for one batch.
type Stats struct {
	Hits    int `json:"hits"`
	Misses  int `json:"misses"`
	Unified int `json:"unified"`
	Titles  int `json:"titles"`
	IDs     int `json:"ids"`
}

// Cache is the batch-scoped resolution cache. It is safe for concurrent
// use; create one per batch and drop it afterwards.
type Cache struct {
	mu       sync.Mutex
	titles   map[string]Fragment
	ids      map[int64]Fragment
	siblings map[string][]string
	stats    Stats

	group singleflight.Group
}

func NewCache() *Cache {
	return &Cache{
		titles:   make(map[string]Fragment),
		ids:      make(map[int64]Fragment),
		siblings: make(map[string][]string),
	}
}

func (c *Cache) title(key string) (Fragment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.titles[key]
	if ok {
		c.stats.Hits++
	}
	return f, ok
}

func (c *Cache) storeTitle(key string, f Fragment) {
	c.mu.Lock()
	c.titles[key] = f
	c.mu.Unlock()
}

// unify makes f agree with the first fragment stored for the same
// catalog id: title, original title and year of the first one win. The
// first fragment for an id is stored as-is.
func (c *Cache) unify(f Fragment) (Fragment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	first, ok := c.ids[f.ID]
	if !ok {
		c.ids[f.ID] = f
		return f, false
	}
	f.Title = first.Title
	f.OriginalTitle = first.OriginalTitle
	f.Year = first.Year
	if f.Seasons == nil {
		f.Seasons = first.Seasons
	}
	c.stats.Unified++
	return f, true
}

func (c *Cache) miss() {
	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
}

func (c *Cache) dirSiblings(dir string, load func(string) []string) []string {
	c.mu.Lock()
	names, ok := c.siblings[dir]
	c.mu.Unlock()
	if ok {
		return names
	}
	names = load(dir)
	c.mu.Lock()
	c.siblings[dir] = names
	c.mu.Unlock()
	return names
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Titles = len(c.titles)
	s.IDs = len(c.ids)
	return s
}
