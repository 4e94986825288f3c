package preset

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/guiyumin/vskip/internal/core/config"
	"github.com/guiyumin/vskip/internal/core/notify"
	"github.com/guiyumin/vskip/internal/core/store"
)

var presets = []config.Preset{
	{Name: "empty", Domain: ""},
	{Name: "B站番剧", Domain: "bilibili.com/bangumi", Intro: 89, Outro: 0, Restart: true},
	{Name: "海贼王", Domain: "海贼王", Intro: 120, Outro: 60, Next: true},
	{Name: "B站", Domain: "bilibili.com", Intro: 10},
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name, url, title, want string
	}{
		{"url keyword", "https://www.bilibili.com/bangumi/play/ep1", "x", "B站番剧"},
		{"first match wins", "https://www.bilibili.com/bangumi/play/ep1", "海贼王", "B站番剧"},
		{"title keyword", "https://example.com", "海贼王 第1000集", "海贼王"},
		{"broad domain", "https://www.bilibili.com/video/BV1", "x", "B站"},
		{"no match", "https://example.com", "x", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := Match(presets, tt.url, tt.title)
			if tt.want == "" {
				if ok {
					t.Fatalf("Match = %q, want none", p.Name)
				}
				return
			}
			if !ok || p.Name != tt.want {
				t.Errorf("Match = %q, %v; want %q", p.Name, ok, tt.want)
			}
		})
	}
}

func TestCheckAndApply(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	defer s.Close()

	var toasts []string
	e := &Engine{
		Store:    s,
		Notifier: notify.Func(func(m string) { toasts = append(toasts, m) }),
		Format:   func(name string) string { return "applied " + name },
		Log:      zerolog.Nop(),
	}

	cfg := config.Defaults()
	cfg.SavedPresets = presets

	if res, _ := e.CheckAndApply(ctx, cfg, "https://example.com", "海贼王"); res != Skipped {
		t.Fatalf("feature off: result = %v", res)
	}

	cfg.AutoApplyPreset = true
	res, err := e.CheckAndApply(ctx, cfg, "https://example.com", "海贼王 第1集")
	if err != nil || res != Applied {
		t.Fatalf("CheckAndApply = %v, %v", res, err)
	}

	got, err := config.Load(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if !got.AutoSkipEnable || got.IntroTime != 120 || got.OutroTime != 60 || !got.AutoPlayNext || got.AutoRestart {
		t.Errorf("config after apply = %+v", got)
	}
	if !got.EnableIntro || !got.EnableOutro || got.LastActivePreset != "海贼王" {
		t.Errorf("derived flags = %v %v %q", got.EnableIntro, got.EnableOutro, got.LastActivePreset)
	}
	if len(toasts) != 1 || toasts[0] != "applied 海贼王" {
		t.Errorf("toasts = %v", toasts)
	}

	// The next navigation has no match: auto skip goes off.
	res, err = e.CheckAndApply(ctx, got, "https://example.com/other", "other")
	if err != nil || res != Cleared {
		t.Fatalf("no match = %v, %v", res, err)
	}
	got, _ = config.Load(ctx, s)
	if got.AutoSkipEnable || got.LastActivePreset != "" {
		t.Errorf("config after clear = %+v", got)
	}

	if res, _ := e.CheckAndApply(ctx, got, "https://example.com/other", "other"); res != Unchanged {
		t.Errorf("already off: result = %v", res)
	}
}

func TestZeroIntroDisablesIntro(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	defer s.Close()

	cfg := config.Defaults()
	cfg.AutoApplyPreset = true
	cfg.SavedPresets = []config.Preset{{Name: "outro only", Domain: "example", Outro: 30}}

	e := &Engine{Store: s, Log: zerolog.Nop()}
	if _, err := e.CheckAndApply(ctx, cfg, "https://example.com", ""); err != nil {
		t.Fatal(err)
	}
	got, _ := config.Load(ctx, s)
	if got.EnableIntro || !got.EnableOutro {
		t.Errorf("enableIntro = %v, enableOutro = %v", got.EnableIntro, got.EnableOutro)
	}
}

func TestCRUD(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	defer s.Close()

	if _, err := Add(ctx, s, config.Preset{Name: "  "}); !errors.Is(err, ErrEmptyName) {
		t.Errorf("empty name: err = %v", err)
	}
	if replaced, err := Add(ctx, s, config.Preset{Name: "a", Domain: "x", Intro: 1}); err != nil || replaced {
		t.Fatalf("Add a = %v, %v", replaced, err)
	}
	if _, err := Add(ctx, s, config.Preset{Name: "b", Domain: "y"}); err != nil {
		t.Fatal(err)
	}
	if replaced, err := Add(ctx, s, config.Preset{Name: "a", Domain: "z", Intro: 2}); err != nil || !replaced {
		t.Fatalf("replace a = %v, %v", replaced, err)
	}

	list, _ := List(ctx, s)
	if len(list) != 2 || list[0].Name != "a" || list[0].Domain != "z" || list[1].Name != "b" {
		t.Fatalf("List = %+v", list)
	}

	if err := Delete(ctx, s, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete missing: err = %v", err)
	}
	if err := Delete(ctx, s, "a"); err != nil {
		t.Fatal(err)
	}
	list, _ = List(ctx, s)
	if len(list) != 1 || list[0].Name != "b" {
		t.Errorf("List after delete = %+v", list)
	}
}
