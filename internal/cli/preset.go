package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/guiyumin/vskip/internal/core/config"
	"github.com/guiyumin/vskip/internal/core/preset"
	"github.com/guiyumin/vskip/internal/core/store"
)

var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Manage skip presets",
	Long: `A preset bundles intro/outro times and the restart/next switches for a
site. With autoApplyPreset on, the first preset whose domain occurs in the
page URL or title is applied when a page loads.`,
}

var presetLsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List saved presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s store.Store) error {
			cfg, err := config.Load(ctx, s)
			if err != nil {
				return err
			}
			if len(cfg.SavedPresets) == 0 {
				fmt.Println(dimStyle.Render("No presets. Add one with 'vskip preset add'."))
				return nil
			}
			for _, p := range cfg.SavedPresets {
				printPreset(p, p.Name == cfg.LastActivePreset)
			}
			return nil
		})
	},
}

func printPreset(p config.Preset, active bool) {
	name := seriesStyle.Render(p.Name)
	if active {
		name += okColor.Sprint(" (active)")
	}
	fmt.Println(name)
	printField("  domain", p.Domain)
	printField("  intro / outro", fmt.Sprintf("%gs / %gs", p.Intro, p.Outro))
	printField("  restart / next", fmt.Sprintf("%v / %v", p.Restart, p.Next))
}

var presetAdd config.Preset

var presetAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Save a preset, replacing one with the same name",
	Long: `Save a preset, replacing one with the same name.

Examples:
  vskip preset add B站 --domain bilibili.com --intro 85 --outro 10
  vskip preset add 腾讯 --domain v.qq.com --intro 120 --next`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := presetAdd
		p.Name = args[0]
		return withStore(func(ctx context.Context, s store.Store) error {
			replaced, err := preset.Add(ctx, s, p)
			if err != nil {
				return err
			}
			if replaced {
				printOK("Replaced preset %s", p.Name)
			} else {
				printOK("Added preset %s", p.Name)
			}
			return nil
		})
	},
}

var presetRmCmd = &cobra.Command{
	Use:               "rm <name>",
	Aliases:           []string{"remove"},
	Short:             "Delete a preset",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completePresetNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s store.Store) error {
			if err := preset.Delete(ctx, s, args[0]); err != nil {
				return err
			}
			printOK("Deleted preset %s", args[0])
			return nil
		})
	},
}

var presetMatchTitle string

var presetMatchCmd = &cobra.Command{
	Use:   "match <url>",
	Short: "Show which preset a page would get",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s store.Store) error {
			presets, err := preset.List(ctx, s)
			if err != nil {
				return err
			}
			p, ok := preset.Match(presets, args[0], presetMatchTitle)
			if !ok {
				printWarn("No preset matches")
				return nil
			}
			printPreset(p, false)
			return nil
		})
	},
}

func init() {
	f := presetAddCmd.Flags()
	f.StringVar(&presetAdd.Domain, "domain", "", "keyword matched against the page URL and title")
	f.Float64Var(&presetAdd.Intro, "intro", 0, "intro seconds")
	f.Float64Var(&presetAdd.Outro, "outro", 0, "outro seconds")
	f.BoolVar(&presetAdd.Restart, "restart", false, "seek back to 0 at the outro")
	f.BoolVar(&presetAdd.Next, "next", false, "play the next episode at the outro")

	presetMatchCmd.Flags().StringVar(&presetMatchTitle, "title", "", "page title")

	presetCmd.AddCommand(presetLsCmd)
	presetCmd.AddCommand(presetAddCmd)
	presetCmd.AddCommand(presetRmCmd)
	presetCmd.AddCommand(presetMatchCmd)
	rootCmd.AddCommand(presetCmd)
}
