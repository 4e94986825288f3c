package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/guiyumin/vskip/internal/core/store"
)

// Store keys for the skip configuration.
const (
	KeyAutoSkipEnable    = "autoSkipEnable"
	KeyEnableIntro       = "enableIntro"
	KeyEnableOutro       = "enableOutro"
	KeyAutoRestart       = "autoRestart"
	KeyAutoPlayNext      = "autoPlayNext"
	KeyAutoUpdateFav     = "autoUpdateFav"
	KeyAutoApplyPreset   = "autoApplyPreset"
	KeyIntroTime         = "introTime"
	KeyOutroTime         = "outroTime"
	KeyManualSkipTime    = "manualSkipTime"
	KeyMinDuration       = "minDuration"
	KeyKeyForward        = "keyForward"
	KeyKeyRewind         = "keyRewind"
	KeySavedPresets      = "savedPresets"
	KeyCustomTagRules    = "customTagRules"
	KeyCustomSeriesRules = "customSeriesRules"
	KeyLastActivePreset  = "lastActivePreset"

	// KeyFavorites is owned by the favorites package and not part of Config.
	KeyFavorites = "favorites"
)

// ErrUnknownKey is returned when a key is not part of the skip configuration.
var ErrUnknownKey = errors.New("unknown config key")

// KeyChord describes a keyboard shortcut.
type KeyChord struct {
	Code  string `json:"code" yaml:"code"`
	Shift bool   `json:"shift" yaml:"shift"`
	Ctrl  bool   `json:"ctrl" yaml:"ctrl"`
	Alt   bool   `json:"alt" yaml:"alt"`
}

// String renders the chord like "Shift+ArrowRight".
func (k KeyChord) String() string {
	var parts []string
	if k.Ctrl {
		parts = append(parts, "Ctrl")
	}
	if k.Alt {
		parts = append(parts, "Alt")
	}
	if k.Shift {
		parts = append(parts, "Shift")
	}
	return strings.Join(append(parts, k.Code), "+")
}

// Preset is a bundle of skip settings applied when Domain occurs in the page URL or title.
type Preset struct {
	Name    string  `json:"name" yaml:"name"`
	Domain  string  `json:"domain" yaml:"domain"`
	Intro   float64 `json:"intro" yaml:"intro"`
	Outro   float64 `json:"outro" yaml:"outro"`
	Restart bool    `json:"restart" yaml:"restart"`
	Next    bool    `json:"next" yaml:"next"`
}

// Rule maps a keyword found in the URL or title to a label.
type Rule struct {
	Match string `json:"match" yaml:"match"`
	Name  string `json:"name" yaml:"name"`
}

// Config is a snapshot of the skip configuration. Each execution context holds
// its own copy and refreshes it from store change deltas.
type Config struct {
	AutoSkipEnable  bool `json:"autoSkipEnable" yaml:"autoSkipEnable"`
	EnableIntro     bool `json:"enableIntro" yaml:"enableIntro"`
	EnableOutro     bool `json:"enableOutro" yaml:"enableOutro"`
	AutoRestart     bool `json:"autoRestart" yaml:"autoRestart"`
	AutoPlayNext    bool `json:"autoPlayNext" yaml:"autoPlayNext"`
	AutoUpdateFav   bool `json:"autoUpdateFav" yaml:"autoUpdateFav"`
	AutoApplyPreset bool `json:"autoApplyPreset" yaml:"autoApplyPreset"`

	// Seconds
	IntroTime      float64 `json:"introTime" yaml:"introTime"`
	OutroTime      float64 `json:"outroTime" yaml:"outroTime"`
	ManualSkipTime float64 `json:"manualSkipTime" yaml:"manualSkipTime"`
	MinDuration    float64 `json:"minDuration" yaml:"minDuration"`

	KeyForward KeyChord `json:"keyForward" yaml:"keyForward"`
	KeyRewind  KeyChord `json:"keyRewind" yaml:"keyRewind"`

	SavedPresets      []Preset `json:"savedPresets" yaml:"savedPresets"`
	CustomTagRules    []Rule   `json:"customTagRules" yaml:"customTagRules"`
	CustomSeriesRules []Rule   `json:"customSeriesRules" yaml:"customSeriesRules"`

	LastActivePreset string `json:"lastActivePreset" yaml:"lastActivePreset"`
}

// Defaults returns the configuration a fresh install starts with.
func Defaults() Config {
	return Config{
		AutoSkipEnable:    false,
		EnableIntro:       true,
		EnableOutro:       true,
		AutoUpdateFav:     true,
		IntroTime:         90,
		OutroTime:         0,
		ManualSkipTime:    90,
		MinDuration:       300,
		KeyForward:        KeyChord{Code: "ArrowRight", Shift: true},
		KeyRewind:         KeyChord{Code: "ArrowLeft", Shift: true},
		SavedPresets:      []Preset{},
		CustomTagRules:    []Rule{},
		CustomSeriesRules: []Rule{},
	}
}

// Values encodes c as one store entry per field.
func (c Config) Values() store.Values {
	data, err := json.Marshal(c)
	if err != nil {
		panic(err) // Config only holds marshalable fields
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		panic(err)
	}
	return store.Values(fields)
}

// Keys lists every store key that belongs to the skip configuration, sorted.
func Keys() []string {
	keys := Defaults().Values().Keys()
	sort.Strings(keys)
	return keys
}

// IsKey reports whether key is part of the skip configuration.
func IsKey(key string) bool {
	_, ok := Defaults().Values()[key]
	return ok
}

// FromValues decodes a Config from store values; absent keys keep their defaults.
func FromValues(v store.Values) (Config, error) {
	c := Defaults()
	if err := c.merge(v); err != nil {
		return Defaults(), err
	}
	return c, nil
}

// Load reads the full skip configuration from s.
func Load(ctx context.Context, s store.Store) (Config, error) {
	v, err := s.Get(ctx, Defaults().Values())
	if err != nil {
		return Defaults(), fmt.Errorf("failed to load config: %w", err)
	}
	return FromValues(v)
}

// Apply folds a change delta into the snapshot. Keys outside the skip
// configuration are ignored; a value that fails to decode leaves c unchanged.
func (c *Config) Apply(changes store.Changes) error {
	patch := make(store.Values)
	for k, ch := range changes {
		if IsKey(k) {
			patch[k] = ch.New
		}
	}
	if len(patch) == 0 {
		return nil
	}
	next := c.clone()
	if err := next.merge(patch); err != nil {
		return err
	}
	*c = next
	return nil
}

// clone copies c with its own slice backing arrays, so decoding into the
// copy never writes through to snapshots already handed out.
func (c *Config) clone() Config {
	next := *c
	next.SavedPresets = slices.Clone(c.SavedPresets)
	next.CustomTagRules = slices.Clone(c.CustomTagRules)
	next.CustomSeriesRules = slices.Clone(c.CustomSeriesRules)
	return next
}

func (c *Config) merge(v store.Values) error {
	if len(v) == 0 {
		return nil
	}
	data, err := json.Marshal(map[string]json.RawMessage(v))
	if err != nil {
		return fmt.Errorf("failed to encode config values: %w", err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to decode config values: %w", err)
	}
	return nil
}

// ParseValue turns a CLI/API string into the JSON value stored under key.
// Anything that is not valid JSON is stored as a JSON string.
func ParseValue(key, raw string) (store.Values, error) {
	if !IsKey(key) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	value := json.RawMessage(raw)
	if !json.Valid(value) {
		quoted, _ := json.Marshal(raw)
		value = quoted
	}

	// Validate against the field type before writing.
	probe := Defaults()
	if err := probe.merge(store.Values{key: value}); err != nil {
		return nil, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return store.Values{key: value}, nil
}
