// Package site maps a page URL to a site strategy: a display name, title
// cleanup and an optional DOM parser for sites whose title is unreliable.
package site

import (
	"regexp"
	"strings"
	"sync"

	"github.com/guiyumin/vskip/internal/core/config"
	"github.com/guiyumin/vskip/internal/core/dom"
)

// DefaultName is the site name used when nothing matches.
const DefaultName = "Web"

// Parsed is the result of a DOM-specific parser.
type Parsed struct {
	Series  string
	Episode string
}

// Strategy describes how to treat one site family.
type Strategy struct {
	Name string

	// Clean strips site-specific noise from a page title.
	Clean func(title string) string

	// Parser reads series/episode straight from the document. It returns nil
	// when the page does not carry the expected elements.
	Parser func(doc dom.Document) *Parsed

	// NextSelectors are tried before the generic next-episode selectors.
	NextSelectors []string
}

// CleanTitle applies Clean, tolerating strategies without one.
func (s Strategy) CleanTitle(title string) string {
	if s.Clean == nil {
		return title
	}
	return s.Clean(title)
}

// Default returns the fallback strategy.
func Default() Strategy {
	return Strategy{Name: DefaultName, Clean: identity}
}

func identity(s string) string { return s }

type binding struct {
	keyword  string
	strategy Strategy
}

// Registry is an ordered list of keyword bindings; the first keyword found in
// the URL wins.
type Registry struct {
	mu       sync.RWMutex
	bindings []binding
}

// NewRegistry returns a registry holding the built-in strategies.
func NewRegistry() *Registry {
	r := &Registry{}
	for _, b := range builtins() {
		r.Register(b.keyword, b.strategy)
	}
	return r
}

// Register appends a binding.
func (r *Registry) Register(keyword string, s Strategy) {
	if s.Clean == nil {
		s.Clean = identity
	}
	r.mu.Lock()
	r.bindings = append(r.bindings, binding{keyword: keyword, strategy: s})
	r.mu.Unlock()
}

// RegisterSites puts user-defined sites ahead of every existing binding.
func (r *Registry) RegisterSites(sites *config.SitesConfig) {
	if sites == nil {
		return
	}
	var user []binding
	for _, s := range sites.Sites {
		if s.Match == "" {
			continue
		}
		name := s.Name
		if name == "" {
			name = s.Match
		}
		user = append(user, binding{
			keyword: s.Match,
			strategy: Strategy{
				Name:          name,
				Clean:         literalSuffixCleaner(s.Suffixes),
				NextSelectors: s.NextSelectors,
			},
		})
	}

	r.mu.Lock()
	r.bindings = append(user, r.bindings...)
	r.mu.Unlock()
}

// Match returns the first strategy whose keyword occurs in url.
func (r *Registry) Match(url string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.bindings {
		if b.keyword != "" && strings.Contains(url, b.keyword) {
			return b.strategy, true
		}
	}
	return Strategy{}, false
}

// Resolve is Match with the default strategy as fallback.
func (r *Registry) Resolve(url string) Strategy {
	if s, ok := r.Match(url); ok {
		return s
	}
	return Default()
}

// suffixCleaner removes every regexp match from the title.
func suffixCleaner(patterns ...string) func(string) string {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp.MustCompile(p)
	}
	return func(title string) string {
		for _, re := range res {
			title = re.ReplaceAllString(title, "")
		}
		return strings.TrimSpace(title)
	}
}

func literalSuffixCleaner(suffixes []string) func(string) string {
	return func(title string) string {
		for _, s := range suffixes {
			if s == "" {
				continue
			}
			if i := strings.Index(title, s); i >= 0 {
				title = title[:i]
			}
		}
		return strings.TrimSpace(title)
	}
}

// firstText returns the first non-empty text among selectors.
func firstText(doc dom.Document, selectors ...string) string {
	for _, s := range selectors {
		if t := doc.Text(s); t != "" {
			return t
		}
	}
	return ""
}
