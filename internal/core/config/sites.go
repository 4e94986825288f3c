package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const SitesFileName = "sites.yml"

// Site is a user-defined site strategy, consulted before the built-in ones.
type Site struct {
	// Match is a substring to match against the URL (e.g., "agedm.org")
	Match string `yaml:"match"`

	// Name is the site label used for favorites (e.g., "AGE动漫")
	Name string `yaml:"name"`

	// Suffixes are stripped from the end of page titles (e.g., "-AGE动漫")
	Suffixes []string `yaml:"suffixes,omitempty"`

	// NextSelectors are tried before the built-in "next episode" selectors
	NextSelectors []string `yaml:"next_selectors,omitempty"`
}

// SitesConfig holds the sites configuration
type SitesConfig struct {
	Sites []Site `yaml:"sites"`
}

// SitesPath returns the path of sites.yml next to the settings file.
func SitesPath() string {
	dir, err := ConfigDir()
	if err != nil {
		return SitesFileName
	}
	return filepath.Join(dir, SitesFileName)
}

// LoadSites reads sites.yml; a missing file yields an empty config.
func LoadSites() (*SitesConfig, error) {
	path := SitesPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &SitesConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg := &SitesConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return cfg, nil
}

// SaveSites writes sites.yml
func SaveSites(cfg *SitesConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize sites config: %w", err)
	}

	path := SitesPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	header := "# vskip sites configuration\n# Extra site strategies: title suffixes and next-episode buttons\n\n"
	return os.WriteFile(path, []byte(header+string(data)), 0644)
}

// MatchSite finds a matching site for the given URL
func (c *SitesConfig) MatchSite(url string) *Site {
	if c == nil {
		return nil
	}
	for i := range c.Sites {
		if c.Sites[i].Match != "" && strings.Contains(url, c.Sites[i].Match) {
			return &c.Sites[i]
		}
	}
	return nil
}

// AddSite adds or replaces the site with the same match string
func (c *SitesConfig) AddSite(site Site) {
	for i := range c.Sites {
		if c.Sites[i].Match == site.Match {
			c.Sites[i] = site
			return
		}
	}
	c.Sites = append(c.Sites, site)
}

// RemoveSite removes a site by match string
func (c *SitesConfig) RemoveSite(match string) bool {
	for i := range c.Sites {
		if c.Sites[i].Match == match {
			c.Sites = append(c.Sites[:i], c.Sites[i+1:]...)
			return true
		}
	}
	return false
}
