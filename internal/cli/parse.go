package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/guiyumin/vskip/internal/core/config"
	"github.com/guiyumin/vskip/internal/core/probe"
	"github.com/guiyumin/vskip/internal/core/store"
	"github.com/guiyumin/vskip/internal/core/title"
)

var (
	parseURL     string
	parseFetch   bool
	parseCookies bool
	parseJSON    bool
)

var parseCmd = &cobra.Command{
	Use:   "parse [title]",
	Short: "Show how a page title is split into series and episode",
	Long: `Run the title parser the skipper uses for favorites. Custom series and
tag rules from the database apply.

With --fetch the page at --url is downloaded and parsed as a static
document, which also runs the site's DOM parser when it has one.

Examples:
  vskip parse "三体 第7集_高清完整版在线观看_腾讯视频" --url https://v.qq.com/x/cover/abc.html
  vskip parse --fetch --url https://www.bilibili.com/bangumi/play/ep1234`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var raw string
		if len(args) > 0 {
			raw = args[0]
		}
		if raw == "" && parseURL == "" {
			return errors.New("a title or --url is required")
		}
		if parseFetch && parseURL == "" {
			return errors.New("--fetch needs --url")
		}

		return withStore(func(ctx context.Context, s store.Store) error {
			cfg, err := config.Load(ctx, s)
			if err != nil {
				return err
			}
			res, err := runParse(ctx, cfg, raw)
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		})
	},
}

func init() {
	parseCmd.Flags().StringVarP(&parseURL, "url", "u", "", "page URL")
	parseCmd.Flags().BoolVar(&parseFetch, "fetch", false, "download the page and parse the real document")
	parseCmd.Flags().BoolVar(&parseCookies, "cookies", false, "send your browser cookies with --fetch")
	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(parseCmd)
}

func runParse(ctx context.Context, cfg config.Config, raw string) (title.Result, error) {
	parser := newParser()
	if !parseFetch {
		return parser.Parse(cfg, title.Page{Title: raw, URL: parseURL}, title.Override{}), nil
	}

	p := probe.New(parser, probe.Options{
		Cookies: parseCookies || settings.Browser.ImportCookies,
		Log:     log,
	})
	doc, err := p.Fetch(ctx, parseURL)
	if err != nil {
		return title.Result{}, err
	}
	// A title on the command line overrides the fetched one.
	return parser.Parse(cfg, title.Page{Title: doc.Title(), URL: doc.URL(), Doc: doc}, title.Override{Title: raw}), nil
}

func printResult(res title.Result) {
	if parseJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		enc.Encode(res)
		return
	}
	t := texts().Fav
	printField(t.Series, seriesStyle.Render(res.Series))
	printField(t.Episode, res.Episode)
	printField(t.Site, res.Site)
	if res.URL != "" {
		fmt.Println(labelStyle.Render("URL") + dimStyle.Render(res.URL))
	}
}
