package browser

import (
	"context"
	"net/url"
	"os"
	"path/filepath"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"github.com/guiyumin/vskip/internal/core/config"
	"github.com/guiyumin/vskip/internal/core/probe"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

func newLauncher(headless bool, bin, dataDir string) *launcher.Launcher {
	// ROD_BROWSER is set in the Docker image
	browserPath := bin
	if browserPath == "" {
		browserPath = os.Getenv("ROD_BROWSER")
	}
	if dataDir == "" {
		dataDir = userDataDir()
	}

	l := launcher.New().
		Headless(headless).
		UserDataDir(dataDir).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-software-rasterizer").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("disable-sync").
		Set("disable-translate").
		Set("no-first-run").
		Set("autoplay-policy", "no-user-gesture-required").
		Set("safebrowsing-disable-auto-update").
		Set("window-size", "1920,1080").
		Set("user-agent", userAgent)

	if browserPath != "" {
		l = l.Bin(browserPath)
	}
	return l
}

func userDataDir() string {
	configDir, err := config.ConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "vskip-browser")
	}
	return filepath.Join(configDir, "browser")
}

// cookieParams converts the user's browser cookies for rawURL into CDP
// cookie parameters.
func cookieParams(ctx context.Context, rawURL string, log zerolog.Logger) []*proto.NetworkCookieParam {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	var out []*proto.NetworkCookieParam
	for _, c := range probe.BrowserCookies(ctx, rawURL, log) {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
		if p.Domain == "" {
			p.URL = u.Scheme + "://" + u.Host
		}
		if !c.Expires.IsZero() {
			p.Expires = proto.TimeSinceEpoch(c.Expires.Unix())
		}
		out = append(out, p)
	}
	return out
}
