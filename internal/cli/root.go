package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/guiyumin/vskip/internal/core/config"
	"github.com/guiyumin/vskip/internal/core/i18n"
	"github.com/guiyumin/vskip/internal/core/logging"
	"github.com/guiyumin/vskip/internal/core/site"
	"github.com/guiyumin/vskip/internal/core/store"
	"github.com/guiyumin/vskip/internal/core/title"
	"github.com/guiyumin/vskip/internal/core/version"
)

var (
	settingsViper *viper.Viper
	settings      *config.Settings
	log           zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "vskip",
	Short: "Skip intros and outros of web videos, and remember where you left off",
	Long: `vskip watches a video page in a real browser tab, skips the intro and
outro of every episode, and keeps a "continue watching" list per series.

Examples:
  vskip watch https://www.bilibili.com/bangumi/play/ep1234
  vskip config set introTime 85
  vskip fav ls --since "last week"`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadSettings()
	},
}

func init() {
	settingsViper = config.NewViper()

	pf := rootCmd.PersistentFlags()
	pf.String("db", "", "database file (default: ~/.config/vskip/vskip.db)")
	pf.String("lang", "", "language for messages (zh, en)")
	pf.String("log-level", "", "log level (debug, info, warn, error)")

	settingsViper.BindPFlag("db_path", pf.Lookup("db"))
	settingsViper.BindPFlag("language", pf.Lookup("lang"))
	settingsViper.BindPFlag("log_level", pf.Lookup("log-level"))
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func loadSettings() error {
	s, err := config.LoadSettings(settingsViper)
	if err != nil {
		return err
	}
	settings = s
	log = logging.New(os.Stderr, s.LogLevel)
	return nil
}

func lang() string {
	if settings == nil {
		return ""
	}
	return settings.Language
}

func texts() *i18n.Translations {
	return i18n.T(lang())
}

// openStore opens the sqlite store at the configured path.
func openStore() (*store.SQLiteStore, error) {
	return store.OpenSQLite(settings.DBPath, log)
}

// withStore runs fn against the store and closes it afterwards.
func withStore(fn func(ctx context.Context, s store.Store) error) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(context.Background(), s)
}

// newParser builds a title parser with the user's sites.yml ahead of the
// built-in site strategies.
func newParser() *title.Parser {
	reg := site.NewRegistry()
	sites, err := config.LoadSites()
	if err != nil {
		log.Warn().Err(err).Msg("ignoring sites.yml")
	} else {
		reg.RegisterSites(sites)
	}
	return title.New(reg)
}
