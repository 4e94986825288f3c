package probe

import (
	"context"
	"net/http"
	"net/url"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/all"
	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"
)

// BaseDomain returns the registrable domain of rawURL, e.g. "bilibili.com"
// for "https://www.bilibili.com/video/BV1".
func BaseDomain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return publicsuffix.EffectiveTLDPlusOne(u.Hostname())
}

// BrowserCookies reads the valid cookies every local browser holds for the
// registrable domain of rawURL. Failures are logged and yield nil.
func BrowserCookies(ctx context.Context, rawURL string, log zerolog.Logger) []*http.Cookie {
	domain, err := BaseDomain(rawURL)
	if err != nil {
		log.Debug().Err(err).Str("url", rawURL).Msg("no registrable domain for cookie import")
		return nil
	}

	found, err := kooky.ReadCookies(ctx, kooky.Valid, kooky.DomainHasSuffix(domain))
	if err != nil && len(found) == 0 {
		log.Debug().Err(err).Str("domain", domain).Msg("failed reading browser cookies")
		return nil
	}
	log.Info().Int("count", len(found)).Str("domain", domain).Msg("imported browser cookies")
	return toHTTPCookies(found)
}

func toHTTPCookies(in []*kooky.Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(in))
	for _, c := range in {
		out = append(out, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		})
	}
	return out
}
