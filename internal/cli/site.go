package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/guiyumin/vskip/internal/core/config"
	"github.com/guiyumin/vskip/internal/core/site"
)

var siteCmd = &cobra.Command{
	Use:   "site",
	Short: "Manage extra site strategies in sites.yml",
	Long: `Sites in sites.yml are checked before the built-in ones. Each names the
site, strips title suffixes and adds "next episode" button selectors.`,
}

var siteLsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List configured sites",
	RunE: func(cmd *cobra.Command, args []string) error {
		sites, err := config.LoadSites()
		if err != nil {
			return err
		}
		fmt.Println(dimStyle.Render(config.SitesPath()))
		if len(sites.Sites) == 0 {
			fmt.Println(dimStyle.Render("No sites configured."))
		}
		for _, s := range sites.Sites {
			fmt.Println(seriesStyle.Render(s.Match))
			printField("  name", s.Name)
			if len(s.Suffixes) > 0 {
				printField("  suffixes", strings.Join(s.Suffixes, ", "))
			}
			if len(s.NextSelectors) > 0 {
				printField("  next", strings.Join(s.NextSelectors, ", "))
			}
		}
		return nil
	},
}

var siteAdd config.Site

var siteAddCmd = &cobra.Command{
	Use:   "add <match>",
	Short: "Add or replace a site",
	Long: `Add or replace a site.

Examples:
  vskip site add agedm.org --name AGE动漫 --suffix -AGE动漫 --next ".next-ep a"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := siteAdd
		s.Match = args[0]
		sites, err := config.LoadSites()
		if err != nil {
			return err
		}
		sites.AddSite(s)
		if err := config.SaveSites(sites); err != nil {
			return err
		}
		printOK("Saved site %s", s.Match)
		return nil
	},
}

var siteRmCmd = &cobra.Command{
	Use:     "rm <match>",
	Aliases: []string{"remove"},
	Short:   "Remove a site",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sites, err := config.LoadSites()
		if err != nil {
			return err
		}
		if !sites.RemoveSite(args[0]) {
			return fmt.Errorf("site %s not found", args[0])
		}
		if err := config.SaveSites(sites); err != nil {
			return err
		}
		printOK("Removed site %s", args[0])
		return nil
	},
}

var siteMatchCmd = &cobra.Command{
	Use:   "match <url>",
	Short: "Show which strategy a URL resolves to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sites, err := config.LoadSites()
		if err != nil {
			return err
		}
		if s := sites.MatchSite(args[0]); s != nil {
			printField("sites.yml", s.Match)
		}
		reg := site.NewRegistry()
		reg.RegisterSites(sites)
		st := reg.Resolve(args[0])
		printField("name", st.Name)
		printField("next", strings.Join(st.NextSelectors, ", "))
		return nil
	},
}

func init() {
	f := siteAddCmd.Flags()
	f.StringVar(&siteAdd.Name, "name", "", "site name shown in favorites")
	f.StringSliceVar(&siteAdd.Suffixes, "suffix", nil, "title suffix to strip (repeatable)")
	f.StringSliceVar(&siteAdd.NextSelectors, "next", nil, "next-episode button selector (repeatable)")

	siteCmd.AddCommand(siteLsCmd)
	siteCmd.AddCommand(siteAddCmd)
	siteCmd.AddCommand(siteRmCmd)
	siteCmd.AddCommand(siteMatchCmd)
	rootCmd.AddCommand(siteCmd)
}
