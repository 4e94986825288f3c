package i18n

import (
	"embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yml
var localesFS embed.FS

// Translations holds all translation strings organized by section
type Translations struct {
	Toast  ToastTranslations  `yaml:"toast" json:"toast"`
	Fav    FavTranslations    `yaml:"fav" json:"fav"`
	Server ServerTranslations `yaml:"server" json:"server"`
	Errors ErrorTranslations  `yaml:"errors" json:"errors"`
}

// ToastTranslations are shown on the page. Format verbs are documented in
// the locale files.
type ToastTranslations struct {
	SkipIntro     string `yaml:"skip_intro" json:"skip_intro"`
	SkipOutro     string `yaml:"skip_outro" json:"skip_outro"`
	Restart       string `yaml:"restart" json:"restart"`
	NextEpisode   string `yaml:"next_episode" json:"next_episode"`
	Forward       string `yaml:"forward" json:"forward"`
	Rewind        string `yaml:"rewind" json:"rewind"`
	PresetApplied string `yaml:"preset_applied" json:"preset_applied"`
	PresetCleared string `yaml:"preset_cleared" json:"preset_cleared"`
	FavAdded      string `yaml:"fav_added" json:"fav_added"`
	NoFavorite    string `yaml:"no_favorite" json:"no_favorite"`
}

type FavTranslations struct {
	Series   string `yaml:"series" json:"series"`
	Episode  string `yaml:"episode" json:"episode"`
	Site     string `yaml:"site" json:"site"`
	Progress string `yaml:"progress" json:"progress"`
	Folder   string `yaml:"folder" json:"folder"`
	Updated  string `yaml:"updated" json:"updated"`
	Empty    string `yaml:"empty" json:"empty"`
	Renamed  string `yaml:"renamed" json:"renamed"`
	Merged   string `yaml:"merged" json:"merged"`
}

type ServerTranslations struct {
	Starting string `yaml:"starting" json:"starting"`
	Watching string `yaml:"watching" json:"watching"`
	Stopped  string `yaml:"stopped" json:"stopped"`
}

type ErrorTranslations struct {
	NoVideo      string `yaml:"no_video" json:"no_video"`
	NoReply      string `yaml:"no_reply" json:"no_reply"`
	InvalidURL   string `yaml:"invalid_url" json:"invalid_url"`
	UnknownKey   string `yaml:"unknown_key" json:"unknown_key"`
	BrowserStart string `yaml:"browser_start" json:"browser_start"`
}

var (
	translationsCache = make(map[string]*Translations)
	cacheMutex        sync.RWMutex
	defaultLang       = "zh"
)

// SupportedLanguages returns all available language codes
var SupportedLanguages = []struct {
	Code string
	Name string
}{
	{"zh", "中文"},
	{"en", "English"},
}

// GetTranslations returns translations for the specified language
func GetTranslations(lang string) *Translations {
	cacheMutex.RLock()
	if t, ok := translationsCache[lang]; ok {
		cacheMutex.RUnlock()
		return t
	}
	cacheMutex.RUnlock()

	t, err := loadTranslations(lang)
	if err != nil {
		// Fall back to Chinese
		if lang != defaultLang {
			return GetTranslations(defaultLang)
		}
		return &Translations{}
	}

	cacheMutex.Lock()
	translationsCache[lang] = t
	cacheMutex.Unlock()

	return t
}

func loadTranslations(lang string) (*Translations, error) {
	filename := fmt.Sprintf("locales/%s.yml", lang)
	data, err := localesFS.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var t Translations
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}

	return &t, nil
}

// T is a convenience function for getting translations
func T(lang string) *Translations {
	return GetTranslations(lang)
}
