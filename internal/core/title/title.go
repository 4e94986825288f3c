// Package title turns a page title and URL into a normalized
// (series, episode, site) triple.
package title

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/guiyumin/vskip/internal/core/config"
	"github.com/guiyumin/vskip/internal/core/dom"
	"github.com/guiyumin/vskip/internal/core/site"
)

const (
	// UnknownSeries replaces a series name that parses to nothing.
	UnknownSeries = "未知番剧"
	// Watching is the episode label when no episode marker is found.
	Watching = "观看中"

	headingSelector = "h1"
)

// Page is what the local execution context knows about its document.
type Page struct {
	Title string
	URL   string

	// TopTitle and TopURL come from the top frame when this context is an
	// iframe and the reply has arrived.
	TopTitle string
	TopURL   string

	// Doc may be nil; DOM parsers and the heading lookup are then skipped.
	Doc dom.Document
}

// Override replaces the page title or URL, e.g. for a parse requested
// through the API.
type Override struct {
	Title string
	URL   string
}

// Result is a parsed identity.
type Result struct {
	Series  string `json:"series"`
	Episode string `json:"episode"`
	Site    string `json:"site"`
	URL     string `json:"url"`
}

// Parser is stateless apart from the site registry it consults.
type Parser struct {
	sites *site.Registry
}

// New returns a Parser over sites. A nil registry means built-ins only.
func New(sites *site.Registry) *Parser {
	if sites == nil {
		sites = site.NewRegistry()
	}
	return &Parser{sites: sites}
}

// Sites returns the registry the parser resolves against.
func (p *Parser) Sites() *site.Registry { return p.sites }

// Parse never fails: every ambiguity resolves to a placeholder.
func (p *Parser) Parse(cfg config.Config, page Page, ov Override) Result {
	raw, url := resolveInputs(page, ov)

	strategy := p.sites.Resolve(url)
	siteName := site.DefaultName
	if name, ok := config.MatchRule(cfg.CustomTagRules, url, raw); ok {
		siteName = name
	} else if s, ok := p.sites.Match(url); ok {
		siteName = s.Name
	}

	res := Result{Site: siteName, URL: url}

	if strategy.Parser != nil && ov.Title == "" && page.Doc != nil {
		if parsed := strategy.Parser(page.Doc); parsed != nil && parsed.Series != "" {
			res.Series = parsed.Series
			res.Episode = parsed.Episode
			if res.Episode == "" {
				res.Episode = Watching
			}
			return finish(cfg, res, url, raw)
		}
	}

	cleaned := Clean(strategy.CleanTitle(raw))
	res.Series, res.Episode = Split(cleaned)
	return finish(cfg, res, url, raw)
}

func resolveInputs(page Page, ov Override) (raw, url string) {
	switch {
	case ov.Title != "":
		raw = ov.Title
	case page.TopTitle != "":
		raw = page.TopTitle
	default:
		raw = page.Title
		if page.Doc != nil {
			raw = withHeading(raw, page.Doc.Text(headingSelector))
		}
	}

	switch {
	case ov.URL != "":
		url = ov.URL
	case page.TopURL != "":
		url = page.TopURL
	default:
		url = page.URL
	}
	return strings.TrimSpace(raw), url
}

func withHeading(title, heading string) string {
	heading = strings.TrimSpace(heading)
	if heading == "" || strings.Contains(title, heading) {
		return title
	}
	return heading + " " + title
}

func finish(cfg config.Config, res Result, url, raw string) Result {
	res.Series = stripEpisodeTail(res.Series)
	if res.Series == "" {
		res.Series = UnknownSeries
	}
	if name, ok := config.MatchRule(cfg.CustomSeriesRules, url, raw); ok {
		res.Series = name
	}
	return res
}

var (
	noise = []*regexp.Regexp{
		regexp.MustCompile(`[\s_\-|—]*(全集)?(高清)?(免费)?(在线观看|在线播放).*$`),
		regexp.MustCompile(`[\s_\-|—]*(视频)?播放器.*$`),
		regexp.MustCompile(`[\s_\-|—]*[(（\[【]?(全集|高清|超清|蓝光|HD)[)）\]】]?`),
		regexp.MustCompile(`[《》【】「」『』〖〗]`),
	}
	edges = regexp.MustCompile(`^[\s_\-|—:：·]+|[\s_\-|—:：·]+$`)

	episodeMarker = `第\s*[0-9零一二三四五六七八九十百千两]+\s*[集话話期回]|(?i:\bep\.?\s*\d+)|(?i:\bvol\.?\s*\d+)`

	reEpisode = regexp.MustCompile(`^(.+?)[\s_\-:：·]*(` + episodeMarker + `)`)
	reRange   = regexp.MustCompile(`^(.+?)[\s_\-:：·]*(\d+\s*[~～]\s*\d+)`)
	rePart    = regexp.MustCompile(`^(.+?)[\s_\-:：·(（]*[Pp](\d+)(?:[\s_\-:：·)）]|$)`)
	reSplit   = regexp.MustCompile(`^(.+)[\s_\-|—]+([^\s_\-|—]+)$`)
	reDigits  = regexp.MustCompile(`^\d+$`)
	reTail    = regexp.MustCompile(`^(.+?)[\s_\-:：·]*(?:` + episodeMarker + `).*$`)
	reMarker  = regexp.MustCompile(`^[\s_\-:：·]*(?:` + episodeMarker + `)[\s_\-:：·]*$`)
)

// Clean removes site-agnostic noise from a title that already went through
// the site strategy.
func Clean(t string) string {
	for _, re := range noise {
		t = re.ReplaceAllString(t, "")
	}
	return edges.ReplaceAllString(t, "")
}

// Split extracts series and episode from a cleaned title.
func Split(t string) (series, episode string) {
	if m := reEpisode.FindStringSubmatch(t); m != nil {
		return trim(m[1]), compact(m[2])
	}
	if m := reRange.FindStringSubmatch(t); m != nil {
		return trim(m[1]), compact(m[2])
	}
	if m := rePart.FindStringSubmatch(t); m != nil && !endsWithLetter(m[1]) {
		return trim(m[1]), "P" + m[2]
	}
	if m := reSplit.FindStringSubmatch(t); m != nil {
		tail := m[2]
		if reDigits.MatchString(tail) || utf8.RuneCountInString(tail) <= 4 {
			return trim(m[1]), tail
		}
	}
	return t, Watching
}

// stripEpisodeTail drops an episode marker and what follows it. A marker
// that opens the name is kept unless it is the whole name.
func stripEpisodeTail(series string) string {
	if reMarker.MatchString(series) {
		return ""
	}
	if m := reTail.FindStringSubmatch(series); m != nil {
		return trim(m[1])
	}
	return trim(series)
}

func trim(s string) string {
	return edges.ReplaceAllString(strings.TrimSpace(s), "")
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// endsWithLetter rejects "P<n>" that is really the tail of a word.
func endsWithLetter(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r < utf8.RuneSelf && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
}
