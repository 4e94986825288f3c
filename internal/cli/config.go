package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/guiyumin/vskip/internal/core/config"
	"github.com/guiyumin/vskip/internal/core/store"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage vskip configuration",
	Long: `View and modify the skip configuration (intro/outro times, switches,
hotkeys) stored in the vskip database, and the process settings file.`,
}

// vskip config show - show current config
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s store.Store) error {
			cfg, err := config.Load(ctx, s)
			if err != nil {
				return err
			}
			printConfig(cfg)
			return nil
		})
	},
}

func printConfig(cfg config.Config) {
	fmt.Println(titleStyle.Render("Skipping"))
	printField(config.KeyAutoSkipEnable, cfg.AutoSkipEnable)
	printField(config.KeyEnableIntro, cfg.EnableIntro)
	printField(config.KeyEnableOutro, cfg.EnableOutro)
	printField(config.KeyIntroTime, fmt.Sprintf("%gs", cfg.IntroTime))
	printField(config.KeyOutroTime, fmt.Sprintf("%gs", cfg.OutroTime))
	printField(config.KeyMinDuration, fmt.Sprintf("%gs", cfg.MinDuration))
	printField(config.KeyAutoRestart, cfg.AutoRestart)
	printField(config.KeyAutoPlayNext, cfg.AutoPlayNext)

	fmt.Println(sectionStyle.Render(titleStyle.Render("Hotkeys")))
	printField(config.KeyKeyForward, cfg.KeyForward)
	printField(config.KeyKeyRewind, cfg.KeyRewind)
	printField(config.KeyManualSkipTime, fmt.Sprintf("%gs", cfg.ManualSkipTime))

	fmt.Println(sectionStyle.Render(titleStyle.Render("Library")))
	printField(config.KeyAutoUpdateFav, cfg.AutoUpdateFav)
	printField(config.KeyAutoApplyPreset, cfg.AutoApplyPreset)
	printField(config.KeyLastActivePreset, cfg.LastActivePreset)
	printField(config.KeySavedPresets, len(cfg.SavedPresets))
	printField(config.KeyCustomTagRules, len(cfg.CustomTagRules))
	printField(config.KeyCustomSeriesRules, len(cfg.CustomSeriesRules))

	fmt.Println(sectionStyle.Render(titleStyle.Render("Settings")))
	printField("language", settings.Language)
	printField("database", settings.DBPath)
	printField("settings file", config.SavePath())
}

// vskip config path - show settings file path
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show settings file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.SavePath())
	},
}

// vskip config get KEY - get a config value
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long: `Print the stored JSON value of a skip configuration key.

Examples:
  vskip config get introTime
  vskip config get keyForward`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeConfigKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if !config.IsKey(key) {
			return fmt.Errorf("%w: %s", config.ErrUnknownKey, key)
		}
		return withStore(func(ctx context.Context, s store.Store) error {
			cfg, err := config.Load(ctx, s)
			if err != nil {
				return err
			}
			fmt.Println(string(cfg.Values()[key]))
			return nil
		})
	},
}

// vskip config set KEY VALUE - set a config value
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a skip configuration value. Values are JSON; anything that is not
valid JSON is stored as a string.

Supported keys:
  autoSkipEnable     Master switch for automatic skipping
  enableIntro        Skip intros
  enableOutro        Skip outros
  introTime          Seconds to jump to at the start of an episode
  outroTime          Seconds before the end where the outro begins
  minDuration        Videos shorter than this (seconds) are ignored
  autoRestart        Seek back to 0 at the outro instead of ending
  autoPlayNext       Click "next episode" at the outro
  autoUpdateFav      Save progress of favorited series
  autoApplyPreset    Apply the matching preset on page load
  manualSkipTime     Seconds per hotkey jump
  keyForward         Hotkey as JSON, e.g. {"code":"ArrowRight","shift":true}
  keyRewind          Hotkey as JSON

Examples:
  vskip config set autoSkipEnable true
  vskip config set introTime 85
  vskip config set keyForward '{"code":"KeyL","ctrl":true}'`,
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeConfigKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		values, err := config.ParseValue(key, value)
		if err != nil {
			return err
		}
		return withStore(func(ctx context.Context, s store.Store) error {
			if err := s.Set(ctx, values); err != nil {
				return err
			}
			fmt.Printf("Set %s = %s\n", key, values[key])
			return nil
		})
	},
}

// vskip config reset KEY - restore a default
var configResetCmd = &cobra.Command{
	Use:               "reset <key>",
	Short:             "Restore the default value of a key",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeConfigKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if !config.IsKey(key) {
			return fmt.Errorf("%w: %s", config.ErrUnknownKey, key)
		}
		def := config.Defaults().Values()[key]
		return withStore(func(ctx context.Context, s store.Store) error {
			if err := s.Set(ctx, store.Values{key: def}); err != nil {
				return err
			}
			fmt.Printf("Reset %s = %s\n", key, def)
			return nil
		})
	},
}

var exportOutput string

// vskip config export - dump the skip configuration as YAML
var configExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the skip configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s store.Store) error {
			cfg, err := config.Load(ctx, s)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to serialize config: %w", err)
			}
			if exportOutput == "" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(exportOutput, data, 0644); err != nil {
				return err
			}
			printOK("Exported to %s", exportOutput)
			return nil
		})
	},
}

// vskip config import FILE - load keys from a YAML or JSON file
var configImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import skip configuration from a YAML or JSON file",
	Long: `Import keys from a file written by 'vskip config export' (JSON works too,
it is valid YAML). Only keys present in the file are changed; unknown keys
are reported and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		values, skipped, err := importValues(data)
		if err != nil {
			return err
		}
		for _, key := range skipped {
			printWarn("skipping unknown key %s", key)
		}
		if len(values) == 0 {
			return errors.New("nothing to import")
		}
		return withStore(func(ctx context.Context, s store.Store) error {
			if err := s.Set(ctx, values); err != nil {
				return err
			}
			printOK("Imported %d keys", len(values))
			return nil
		})
	},
}

// importValues validates every known key of a YAML document.
func importValues(data []byte) (store.Values, []string, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse file: %w", err)
	}

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := store.Values{}
	var skipped []string
	for _, key := range keys {
		if !config.IsKey(key) {
			skipped = append(skipped, key)
			continue
		}
		raw, err := json.Marshal(doc[key])
		if err != nil {
			return nil, nil, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		v, err := config.ParseValue(key, string(raw))
		if err != nil {
			return nil, nil, err
		}
		values[key] = v[key]
	}
	return values, skipped, nil
}

func init() {
	configExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configResetCmd)
	configCmd.AddCommand(configExportCmd)
	configCmd.AddCommand(configImportCmd)
	rootCmd.AddCommand(configCmd)
}
