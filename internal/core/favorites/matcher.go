package favorites

import (
	"net/url"
	"strings"
)

// Confidence grades a favorites match.
type Confidence int

const (
	// NoMatch: nothing plausible.
	NoMatch Confidence = iota
	// Heuristic: matched by URL similarity only. Callers decide whether to
	// trust it for write-back.
	Heuristic
	// Exact: the series name is a library key.
	Exact
)

func (c Confidence) String() string {
	switch c {
	case Exact:
		return "exact"
	case Heuristic:
		return "heuristic"
	}
	return "none"
}

// Matcher associates a page with a library entry.
type Matcher interface {
	Match(lib Library, series, pageURL string) (Entry, Confidence)
}

// URLMatcher matches by series key first, then by URL: same host and one
// path being a prefix of the other, ignoring query and fragment.
type URLMatcher struct {
	// MinPath is the shortest path (in bytes) allowed to act as a prefix.
	// Zero means 2, which rules out bare hosts.
	MinPath int
}

func (m URLMatcher) Match(lib Library, series, pageURL string) (Entry, Confidence) {
	if e, ok := lib[series]; ok && series != "" {
		return e, Exact
	}

	host, path, ok := splitURL(pageURL)
	if !ok {
		return Entry{}, NoMatch
	}
	minPath := m.MinPath
	if minPath == 0 {
		minPath = 2
	}

	var best Entry
	found := false
	for _, e := range lib {
		eh, ep, ok := splitURL(e.URL)
		if !ok || eh != host {
			continue
		}
		if !pathRelated(path, ep, minPath) {
			continue
		}
		if !found || e.Timestamp > best.Timestamp {
			best, found = e, true
		}
	}
	if !found {
		return Entry{}, NoMatch
	}
	return best, Heuristic
}

func splitURL(raw string) (host, path string, ok bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", "", false
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www."), strings.TrimSuffix(u.Path, "/"), true
}

func pathRelated(a, b string, minPath int) bool {
	if a == b {
		return len(a) >= minPath
	}
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	return len(short) >= minPath && strings.HasPrefix(long, short+"/")
}
