// Package updater replaces the running binary with the latest GitHub release.
package updater

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/creativeprojects/go-selfupdate"
)

const (
	repoOwner = "guiyumin"
	repoName  = "vskip"
)

// Release describes the newest published version.
type Release struct {
	Version string
	URL     string
	Notes   string
}

// Updater checks and applies releases of vskip.
type Updater struct {
	current string
	u       *selfupdate.Updater
}

func New(current string) (*Updater, error) {
	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, err
	}

	u, err := selfupdate.NewUpdater(selfupdate.Config{
		Source: source,
	})
	if err != nil {
		return nil, err
	}
	return &Updater{current: normalize(current), u: u}, nil
}

// normalize removes the 'v' prefix so versions compare as semver.
func normalize(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

func (up *Updater) detect(ctx context.Context) (*selfupdate.Release, error) {
	latest, found, err := up.u.DetectLatest(ctx, selfupdate.NewRepositorySlug(repoOwner, repoName))
	if err != nil {
		return nil, fmt.Errorf("failed to check for updates: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("no releases found for %s/%s on %s", repoOwner, repoName, AssetName())
	}
	return latest, nil
}

// Check reports the latest release and whether it is newer than the running one.
func (up *Updater) Check(ctx context.Context) (Release, bool, error) {
	latest, err := up.detect(ctx)
	if err != nil {
		return Release{}, false, err
	}
	rel := Release{Version: latest.Version(), URL: latest.URL, Notes: latest.ReleaseNotes}
	return rel, !latest.LessOrEqual(up.current), nil
}

// Update installs the latest release over the running executable. It returns
// the installed version, or "" when already up to date.
func (up *Updater) Update(ctx context.Context) (string, error) {
	latest, err := up.detect(ctx)
	if err != nil {
		return "", err
	}
	if latest.LessOrEqual(up.current) {
		return "", nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	if err := up.u.UpdateTo(ctx, latest, exe); err != nil {
		return "", fmt.Errorf("failed to update: %w", err)
	}
	return latest.Version(), nil
}

// AssetName returns the expected release asset name for this platform.
func AssetName() string {
	return fmt.Sprintf("vskip_%s_%s", runtime.GOOS, runtime.GOARCH)
}
