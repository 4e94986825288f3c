package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
	"github.com/spf13/cobra"

	"github.com/guiyumin/vskip/internal/core/favorites"
	"github.com/guiyumin/vskip/internal/core/store"
)

var favCmd = &cobra.Command{
	Use:     "fav",
	Aliases: []string{"favorites"},
	Short:   "Manage the continue-watching list",
	Long: `Favorites are keyed by series. While you watch a favorited series its
episode and position are saved, so 'vskip fav ls' shows where to resume.`,
}

var (
	favSince  string
	favFolder string
)

var favLsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List favorites, most recently watched first",
	Long: `List favorites, most recently watched first.

Examples:
  vskip fav ls
  vskip fav ls --folder 科幻
  vskip fav ls --since "2025-06-01"
  vskip fav ls --since "May 8, 2025"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var f favorites.Filter
		if favSince != "" {
			t, err := dateparse.ParseLocal(favSince)
			if err != nil {
				return fmt.Errorf("invalid --since: %w", err)
			}
			f.Since = t
		}
		f.Folder = favFolder

		return withStore(func(ctx context.Context, s store.Store) error {
			lib, err := favorites.Load(ctx, s)
			if err != nil {
				return err
			}
			entries := lib.List(f)
			if len(entries) == 0 {
				fmt.Println(dimStyle.Render(texts().Fav.Empty))
				return nil
			}
			for _, e := range entries {
				printEntry(e)
			}
			return nil
		})
	},
}

func printEntry(e favorites.Entry) {
	t := texts().Fav
	head := seriesStyle.Render(e.Series)
	if e.Folder != "" {
		head += " " + folderStyle.Render("["+e.Folder+"]")
	}
	fmt.Println(head)
	printField("  "+t.Episode, e.Episode)
	printField("  "+t.Site, e.Site)
	printField("  "+t.Progress, fmt.Sprintf("%s / %s", clock(e.Time), clock(e.Duration)))
	printField("  "+t.Updated, e.Updated().Local().Format("2006-01-02 15:04"))
	if e.URL != "" {
		fmt.Println("  " + dimStyle.Render(favorites.ResumeURL(e.URL, e.Time)))
	}
}

var favAdd favorites.Entry

var favAddCmd = &cobra.Command{
	Use:   "add <series>",
	Short: "Start tracking a series",
	Long: `Start tracking a series. Progress is filled in while you watch it.

Examples:
  vskip fav add 三体 --url https://v.qq.com/x/cover/abc.html --folder 科幻`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := favAdd
		e.Series = args[0]
		return withStore(func(ctx context.Context, s store.Store) error {
			added, err := favorites.Add(ctx, s, e, time.Now())
			if err != nil {
				return err
			}
			printOK(texts().Toast.FavAdded, added.Series)
			return nil
		})
	},
}

var favRmCmd = &cobra.Command{
	Use:               "rm <series>",
	Aliases:           []string{"remove"},
	Short:             "Stop tracking a series",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSeries,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s store.Store) error {
			if err := favorites.Remove(ctx, s, args[0]); err != nil {
				return err
			}
			printOK("Removed %s", args[0])
			return nil
		})
	},
}

var favRenameCmd = &cobra.Command{
	Use:               "rename <series> <new-name>",
	Short:             "Rename a series, merging into an existing entry of that name",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeSeries,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s store.Store) error {
			merged, err := favorites.Rename(ctx, s, args[0], args[1])
			if err != nil {
				return err
			}
			t := texts().Fav
			if merged {
				printOK("%s: %s → %s", t.Merged, args[0], args[1])
			} else {
				printOK("%s: %s → %s", t.Renamed, args[0], args[1])
			}
			return nil
		})
	},
}

var favFolderCmd = &cobra.Command{
	Use:               "folder <series> [folder]",
	Short:             "File a series under a folder; no folder clears it",
	Args:              cobra.RangeArgs(1, 2),
	ValidArgsFunction: completeSeries,
	RunE: func(cmd *cobra.Command, args []string) error {
		folder := ""
		if len(args) == 2 {
			folder = args[1]
		}
		return withStore(func(ctx context.Context, s store.Store) error {
			if err := favorites.SetFolder(ctx, s, args[0], folder); err != nil {
				return err
			}
			if folder == "" {
				printOK("%s: %s cleared", args[0], texts().Fav.Folder)
			} else {
				printOK("%s: %s = %s", args[0], texts().Fav.Folder, folder)
			}
			return nil
		})
	},
}

var favFoldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "List folder labels",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s store.Store) error {
			lib, err := favorites.Load(ctx, s)
			if err != nil {
				return err
			}
			for _, f := range lib.Folders() {
				fmt.Println(folderStyle.Render(f))
			}
			return nil
		})
	},
}

var favLookupSeries string

var favLookupCmd = &cobra.Command{
	Use:   "lookup <url>",
	Short: "Find the favorite a page belongs to",
	Long: `Find the favorite a page belongs to: by --series when given, otherwise by
URL similarity (same host, one path a prefix of the other).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, s store.Store) error {
			lib, err := favorites.Load(ctx, s)
			if err != nil {
				return err
			}
			e, conf := favorites.URLMatcher{}.Match(lib, favLookupSeries, args[0])
			if conf == favorites.NoMatch {
				printWarn(texts().Toast.NoFavorite)
				return nil
			}
			printEntry(e)
			fmt.Println(dimStyle.Render("  match: " + conf.String()))
			return nil
		})
	},
}

func init() {
	favLsCmd.Flags().StringVar(&favSince, "since", "", "only entries watched after this date (most formats work)")
	favLsCmd.Flags().StringVar(&favFolder, "folder", "", "only entries in this folder")

	f := favAddCmd.Flags()
	f.StringVar(&favAdd.Episode, "episode", "", "current episode")
	f.StringVar(&favAdd.Site, "site", "", "site name")
	f.StringVar(&favAdd.URL, "url", "", "page URL")
	f.StringVar(&favAdd.Folder, "folder", "", "folder label")

	favLookupCmd.Flags().StringVar(&favLookupSeries, "series", "", "series name")

	favCmd.AddCommand(favLsCmd)
	favCmd.AddCommand(favAddCmd)
	favCmd.AddCommand(favRmCmd)
	favCmd.AddCommand(favRenameCmd)
	favCmd.AddCommand(favFolderCmd)
	favCmd.AddCommand(favFoldersCmd)
	favCmd.AddCommand(favLookupCmd)
	rootCmd.AddCommand(favCmd)
}
