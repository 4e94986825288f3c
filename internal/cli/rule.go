package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/guiyumin/vskip/internal/core/config"
	"github.com/guiyumin/vskip/internal/core/store"
)

var ruleCmd = &cobra.Command{
	Use:   "rule",
	Short: "Manage custom series and tag rules",
	Long: `Rules map a keyword found in the page URL or title to a label.

  series  The label replaces the parsed series name.
  tag     The label replaces the site name.

Rules are checked in order; the first match wins.`,
}

func parseKind(arg string) (config.RuleKind, error) {
	kind, ok := config.ParseRuleKind(arg)
	if !ok {
		return "", fmt.Errorf("rule kind must be tag or series, got %q", arg)
	}
	return kind, nil
}

var ruleLsCmd = &cobra.Command{
	Use:               "ls <tag|series>",
	Aliases:           []string{"list"},
	Short:             "List rules",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeRuleKinds,
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}
		return withStore(func(ctx context.Context, s store.Store) error {
			cfg, err := config.Load(ctx, s)
			if err != nil {
				return err
			}
			rules := cfg.Rules(kind)
			if len(rules) == 0 {
				fmt.Println(dimStyle.Render("No rules."))
				return nil
			}
			for i, r := range rules {
				fmt.Printf("%s %s → %s\n", dimStyle.Render(fmt.Sprintf("[%d]", i)), r.Match, seriesStyle.Render(r.Name))
			}
			return nil
		})
	},
}

var ruleAddCmd = &cobra.Command{
	Use:   "add <tag|series> <keyword> <label>",
	Short: "Add a rule, replacing one with the same keyword",
	Long: `Add a rule, replacing one with the same keyword.

Examples:
  vskip rule add series ep-3 三体
  vskip rule add tag agedm AGE动漫`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}
		r := config.Rule{Match: args[1], Name: args[2]}
		return withStore(func(ctx context.Context, s store.Store) error {
			replaced, err := config.AddRule(ctx, s, kind, r)
			if err != nil {
				return err
			}
			if replaced {
				printOK("Replaced %s rule %s", kind, r.Match)
			} else {
				printOK("Added %s rule %s", kind, r.Match)
			}
			return nil
		})
	},
}

var ruleRmCmd = &cobra.Command{
	Use:     "rm <tag|series> <index>",
	Aliases: []string{"remove"},
	Short:   "Delete the rule at index (see 'vskip rule ls')",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := parseKind(args[0])
		if err != nil {
			return err
		}
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("index must be a number: %w", err)
		}
		return withStore(func(ctx context.Context, s store.Store) error {
			removed, err := config.RemoveRule(ctx, s, kind, index)
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("no %s rule at index %d", kind, index)
			}
			printOK("Deleted %s rule %d", kind, index)
			return nil
		})
	},
}

func init() {
	ruleCmd.AddCommand(ruleLsCmd)
	ruleCmd.AddCommand(ruleAddCmd)
	ruleCmd.AddCommand(ruleRmCmd)
	rootCmd.AddCommand(ruleCmd)
}
