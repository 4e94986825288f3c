// Package probe identifies a page without a browser: it fetches the HTML with
// colly and runs the title parser over the static document.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/gocolly/colly"
	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"

	"github.com/guiyumin/vskip/internal/core/config"
	"github.com/guiyumin/vskip/internal/core/dom"
	"github.com/guiyumin/vskip/internal/core/title"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// ErrNoDocument is returned when the response carried no HTML document.
var ErrNoDocument = errors.New("no html document in response")

// Options configures a Prober.
type Options struct {
	// Cookies loads the user's browser cookies for the page's domain.
	Cookies   bool
	Timeout   time.Duration
	UserAgent string
	Log       zerolog.Logger
}

// Prober fetches pages and parses their identity.
type Prober struct {
	parser *title.Parser
	opts   Options
}

func New(parser *title.Parser, opts Options) *Prober {
	if parser == nil {
		parser = title.New(nil)
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	return &Prober{parser: parser, opts: opts}
}

// Fetch downloads rawURL and returns its document. The URL of the document
// is the final URL after redirects.
func (p *Prober) Fetch(ctx context.Context, rawURL string) (*dom.HTMLDocument, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid URL %q", rawURL)
	}

	c, err := p.collector(ctx, u)
	if err != nil {
		return nil, err
	}

	var doc *dom.HTMLDocument
	var visitErr error
	c.OnHTML("html", func(e *colly.HTMLElement) {
		if doc == nil {
			doc = dom.FromSelection(e.DOM, e.Request.URL.String())
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("failed to fetch %s (status %d): %w", r.Request.URL, r.StatusCode, err)
	})

	p.opts.Log.Debug().Str("url", rawURL).Msg("fetching page")
	if err := c.Visit(u.String()); err != nil && visitErr == nil {
		visitErr = fmt.Errorf("failed to visit URL: %w", err)
	}
	c.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if visitErr != nil {
		return nil, visitErr
	}
	if doc == nil {
		return nil, ErrNoDocument
	}
	return doc, nil
}

// Parse fetches rawURL and resolves its series and episode.
func (p *Prober) Parse(ctx context.Context, cfg config.Config, rawURL string) (title.Result, error) {
	doc, err := p.Fetch(ctx, rawURL)
	if err != nil {
		return title.Result{}, err
	}
	return p.parser.Parse(cfg, title.Page{Title: doc.Title(), URL: doc.URL(), Doc: doc}, title.Override{}), nil
}

func (p *Prober) collector(ctx context.Context, u *url.URL) (*colly.Collector, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	if p.opts.Cookies {
		if cookies := BrowserCookies(ctx, u.String(), p.opts.Log); len(cookies) > 0 {
			jar.SetCookies(u, cookies)
		}
	}

	c := colly.NewCollector(
		colly.UserAgent(p.opts.UserAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(p.opts.Timeout)
	c.SetCookieJar(jar)
	c.OnRequest(func(r *colly.Request) {
		select {
		case <-ctx.Done():
			r.Abort()
		default:
		}
	})
	return c, nil
}
