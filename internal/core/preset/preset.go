// Package preset matches saved presets against the current page and applies
// the winner to the persisted configuration.
package preset

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/guiyumin/vskip/internal/core/config"
	"github.com/guiyumin/vskip/internal/core/notify"
	"github.com/guiyumin/vskip/internal/core/store"
)

var (
	ErrNotFound  = errors.New("preset not found")
	ErrEmptyName = errors.New("preset needs a name")
)

// Match returns the first preset whose non-empty Domain occurs in url or title.
func Match(presets []config.Preset, url, title string) (config.Preset, bool) {
	for _, p := range presets {
		if p.Domain == "" {
			continue
		}
		if strings.Contains(url, p.Domain) || strings.Contains(title, p.Domain) {
			return p, true
		}
	}
	return config.Preset{}, false
}

// Result says what CheckAndApply did.
type Result int

const (
	Skipped Result = iota
	Applied
	Cleared
	Unchanged
)

// Engine applies presets to a store.
type Engine struct {
	Store    store.Store
	Notifier notify.Notifier

	// Format renders the "preset applied" toast for a preset name.
	Format func(name string) string

	Log zerolog.Logger
}

// CheckAndApply runs auto-match for a page. A match switches auto skip on
// and copies the preset into the configuration; no match switches it off.
func (e *Engine) CheckAndApply(ctx context.Context, cfg config.Config, url, title string) (Result, error) {
	if !cfg.AutoApplyPreset || len(cfg.SavedPresets) == 0 {
		return Skipped, nil
	}

	p, ok := Match(cfg.SavedPresets, url, title)
	if !ok {
		if !cfg.AutoSkipEnable {
			return Unchanged, nil
		}
		err := e.Store.Set(ctx, store.MustEncode(map[string]any{
			config.KeyAutoSkipEnable:   false,
			config.KeyLastActivePreset: "",
		}))
		if err != nil {
			return Unchanged, fmt.Errorf("failed to clear preset: %w", err)
		}
		e.Log.Info().Str("url", url).Msg("no preset matched, auto skip off")
		return Cleared, nil
	}

	err := e.Store.Set(ctx, store.MustEncode(map[string]any{
		config.KeyAutoSkipEnable:   true,
		config.KeyIntroTime:        p.Intro,
		config.KeyOutroTime:        p.Outro,
		config.KeyAutoRestart:      p.Restart,
		config.KeyAutoPlayNext:     p.Next,
		config.KeyEnableIntro:      p.Intro > 0,
		config.KeyEnableOutro:      p.Outro > 0,
		config.KeyLastActivePreset: p.Name,
	}))
	if err != nil {
		return Unchanged, fmt.Errorf("failed to apply preset %q: %w", p.Name, err)
	}

	e.Log.Info().Str("preset", p.Name).Str("url", url).Msg("preset applied")
	if e.Notifier != nil {
		msg := p.Name
		if e.Format != nil {
			msg = e.Format(p.Name)
		}
		e.Notifier.Toast(msg)
	}
	return Applied, nil
}

// Upsert adds p or replaces the preset with the same name in place.
func Upsert(presets []config.Preset, p config.Preset) ([]config.Preset, bool, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Domain = strings.TrimSpace(p.Domain)
	if p.Name == "" {
		return presets, false, ErrEmptyName
	}
	out := append([]config.Preset(nil), presets...)
	for i := range out {
		if out[i].Name == p.Name {
			out[i] = p
			return out, true, nil
		}
	}
	return append(out, p), false, nil
}

// Remove deletes the preset called name.
func Remove(presets []config.Preset, name string) ([]config.Preset, error) {
	for i, p := range presets {
		if p.Name == name {
			out := append([]config.Preset(nil), presets[:i]...)
			return append(out, presets[i+1:]...), nil
		}
	}
	return presets, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// List reads the saved presets.
func List(ctx context.Context, s store.Store) ([]config.Preset, error) {
	cfg, err := config.Load(ctx, s)
	if err != nil {
		return nil, err
	}
	return cfg.SavedPresets, nil
}

// Add stores p, reporting whether it replaced an existing preset.
func Add(ctx context.Context, s store.Store, p config.Preset) (bool, error) {
	presets, err := List(ctx, s)
	if err != nil {
		return false, err
	}
	next, replaced, err := Upsert(presets, p)
	if err != nil {
		return false, err
	}
	return replaced, save(ctx, s, next)
}

// Delete removes the preset called name from the store.
func Delete(ctx context.Context, s store.Store, name string) error {
	presets, err := List(ctx, s)
	if err != nil {
		return err
	}
	next, err := Remove(presets, name)
	if err != nil {
		return err
	}
	return save(ctx, s, next)
}

func save(ctx context.Context, s store.Store, presets []config.Preset) error {
	if presets == nil {
		presets = []config.Preset{}
	}
	if err := s.Set(ctx, store.MustEncode(map[string]any{config.KeySavedPresets: presets})); err != nil {
		return fmt.Errorf("failed to save presets: %w", err)
	}
	return nil
}
