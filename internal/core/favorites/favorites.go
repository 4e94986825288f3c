// Package favorites is the "continue watching" library: entries keyed by
// series name, each with a stable synthetic ID, updated from playback
// progress.
package favorites

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/guiyumin/vskip/internal/core/config"
	"github.com/guiyumin/vskip/internal/core/store"
)

var (
	ErrNotFound  = errors.New("favorite not found")
	ErrEmptyName = errors.New("series name is empty")
)

// Entry is one tracked series.
type Entry struct {
	ID        string  `json:"id" yaml:"id"`
	Series    string  `json:"series" yaml:"series"`
	Episode   string  `json:"episode" yaml:"episode"`
	Site      string  `json:"site" yaml:"site"`
	URL       string  `json:"url" yaml:"url"`
	Time      float64 `json:"time" yaml:"time"`
	Duration  float64 `json:"duration" yaml:"duration"`
	Timestamp int64   `json:"timestamp" yaml:"timestamp"`
	Folder    string  `json:"folder,omitempty" yaml:"folder,omitempty"`
}

// Updated returns Timestamp as a time.
func (e Entry) Updated() time.Time { return time.UnixMilli(e.Timestamp) }

// Library maps series names to entries.
type Library map[string]Entry

// Load reads the library from s.
func Load(ctx context.Context, s store.Store) (Library, error) {
	v, err := s.Get(ctx, store.Values{config.KeyFavorites: []byte("{}")})
	if err != nil {
		return nil, fmt.Errorf("failed to load favorites: %w", err)
	}
	lib := Library{}
	if raw := v[config.KeyFavorites]; len(raw) > 0 && string(raw) != "null" {
		if !v.Decode(config.KeyFavorites, &lib) {
			return nil, errors.New("failed to decode favorites")
		}
	}
	return lib, nil
}

// Save writes the whole library back.
func Save(ctx context.Context, s store.Store, lib Library) error {
	if lib == nil {
		lib = Library{}
	}
	if err := s.Set(ctx, store.MustEncode(map[string]any{config.KeyFavorites: lib})); err != nil {
		return fmt.Errorf("failed to save favorites: %w", err)
	}
	return nil
}

// Filter narrows List.
type Filter struct {
	Since  time.Time
	Folder string
}

// List returns the entries matching f, most recently watched first.
func (lib Library) List(f Filter) []Entry {
	out := make([]Entry, 0, len(lib))
	for _, e := range lib {
		if !f.Since.IsZero() && e.Updated().Before(f.Since) {
			continue
		}
		if f.Folder != "" && e.Folder != f.Folder {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].Series < out[j].Series
	})
	return out
}

// Folders lists the distinct non-empty folder labels, sorted.
func (lib Library) Folders() []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range lib {
		if e.Folder != "" && !seen[e.Folder] {
			seen[e.Folder] = true
			out = append(out, e.Folder)
		}
	}
	sort.Strings(out)
	return out
}

// Add starts tracking e.Series. An existing entry keeps its ID and folder
// and takes the new progress.
func Add(ctx context.Context, s store.Store, e Entry, now time.Time) (Entry, error) {
	e.Series = strings.TrimSpace(e.Series)
	if e.Series == "" {
		return Entry{}, ErrEmptyName
	}
	lib, err := Load(ctx, s)
	if err != nil {
		return Entry{}, err
	}

	if old, ok := lib[e.Series]; ok {
		e.ID = old.ID
		if e.Folder == "" {
			e.Folder = old.Folder
		}
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Timestamp = now.UnixMilli()
	lib[e.Series] = e
	return e, Save(ctx, s, lib)
}

// Remove stops tracking series.
func Remove(ctx context.Context, s store.Store, series string) error {
	lib, err := Load(ctx, s)
	if err != nil {
		return err
	}
	if _, ok := lib[series]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, series)
	}
	delete(lib, series)
	return Save(ctx, s, lib)
}

// SetFolder labels an entry; an empty folder clears the label.
func SetFolder(ctx context.Context, s store.Store, series, folder string) error {
	lib, err := Load(ctx, s)
	if err != nil {
		return err
	}
	e, ok := lib[series]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, series)
	}
	e.Folder = strings.TrimSpace(folder)
	lib[series] = e
	return Save(ctx, s, lib)
}

// Rename moves an entry to a new series name. When the name is taken the
// two entries merge: the newer progress wins, the target keeps its ID, and
// its folder unless it has none. It reports whether a merge happened.
func Rename(ctx context.Context, s store.Store, from, to string) (bool, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return false, ErrEmptyName
	}
	lib, err := Load(ctx, s)
	if err != nil {
		return false, err
	}
	src, ok := lib[from]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotFound, from)
	}
	if from == to {
		return false, nil
	}

	dst, exists := lib[to]
	delete(lib, from)
	if !exists {
		src.Series = to
		lib[to] = src
		return false, Save(ctx, s, lib)
	}

	lib[to] = merge(dst, src)
	return true, Save(ctx, s, lib)
}

func merge(dst, src Entry) Entry {
	out := dst
	if src.Timestamp > dst.Timestamp {
		out.Episode = src.Episode
		out.Site = src.Site
		out.URL = src.URL
		out.Time = src.Time
		out.Duration = src.Duration
		out.Timestamp = src.Timestamp
	}
	if out.Folder == "" {
		out.Folder = src.Folder
	}
	if out.ID == "" {
		out.ID = src.ID
	}
	return out
}
