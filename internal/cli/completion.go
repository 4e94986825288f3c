package cli

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/guiyumin/vskip/internal/core/config"
	"github.com/guiyumin/vskip/internal/core/favorites"
	"github.com/guiyumin/vskip/internal/core/preset"
	"github.com/guiyumin/vskip/internal/core/store"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for vskip.

Bash:
  # Add to ~/.bashrc:
  source <(vskip completion bash)

  # Or install to system:
  vskip completion bash > /etc/bash_completion.d/vskip

Zsh:
  # Add to ~/.zshrc:
  source <(vskip completion zsh)

  # Or install to fpath:
  vskip completion zsh > "${fpath[1]}/_vskip"

Fish:
  vskip completion fish > ~/.config/fish/completions/vskip.fish

PowerShell:
  vskip completion powershell >> $PROFILE
`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(os.Stdout)
		default:
			return cmd.Help()
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

// completeConfigKeys completes the first argument with skip config keys.
func completeConfigKeys(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return filterPrefix(config.Keys(), toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completePresetNames reads the store, so it only works once settings are loaded.
func completePresetNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var names []string
	completeFromStore(func(ctx context.Context, s store.Store) error {
		presets, err := preset.List(ctx, s)
		if err != nil {
			return err
		}
		for _, p := range presets {
			names = append(names, p.Name)
		}
		return nil
	})
	return filterPrefix(names, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func completeSeries(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var names []string
	completeFromStore(func(ctx context.Context, s store.Store) error {
		lib, err := favorites.Load(ctx, s)
		if err != nil {
			return err
		}
		for _, e := range lib.List(favorites.Filter{}) {
			names = append(names, e.Series)
		}
		return nil
	})
	return filterPrefix(names, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func completeRuleKinds(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	kinds := []string{string(config.RuleTag), string(config.RuleSeries)}
	return filterPrefix(kinds, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func completeFromStore(fn func(ctx context.Context, s store.Store) error) {
	if settings == nil {
		if err := loadSettings(); err != nil {
			return
		}
	}
	_ = withStore(fn)
}

func filterPrefix(all []string, prefix string) []string {
	var out []string
	for _, s := range all {
		if strings.HasPrefix(s, prefix) {
			out = append(out, s)
		}
	}
	return out
}
