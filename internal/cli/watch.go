package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/guiyumin/vskip/internal/browser"
	"github.com/guiyumin/vskip/internal/core/frames"
)

var (
	watchVisible  bool
	watchHeadless bool
	watchCookies  bool
	watchServe    bool
	watchPort     int
)

var watchCmd = &cobra.Command{
	Use:   "watch <url>",
	Short: "Open a video page and skip intros and outros while you watch",
	Long: `Open a video page in Chrome and attach the skipper to every frame of the
tab. Settings changes (vskip config set, the API) apply immediately.

Examples:
  vskip watch https://www.bilibili.com/bangumi/play/ep1234
  vskip watch https://v.qq.com/x/cover/abc.html --cookies
  vskip watch https://www.iqiyi.com/v_xyz.html --serve -p 9000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(args[0])
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchVisible, "visible", false, "show the browser window (default from settings)")
	watchCmd.Flags().BoolVar(&watchHeadless, "headless", false, "hide the browser window")
	watchCmd.Flags().BoolVar(&watchCookies, "cookies", false, "import your browser cookies for the site")
	watchCmd.Flags().BoolVar(&watchServe, "serve", false, "also run the HTTP API")
	watchCmd.Flags().IntVarP(&watchPort, "port", "p", 0, "HTTP listen port with --serve (default: 8787)")
	watchCmd.MarkFlagsMutuallyExclusive("visible", "headless")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(url string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	watchLanguage()

	bus := frames.NewBus(log)
	frames.NewCoordinator(bus, log)
	parser := newParser()

	visible := settings.Browser.Visible
	switch {
	case watchVisible:
		visible = true
	case watchHeadless:
		visible = false
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	onToast := func(addr frames.Address, msg string) {
		log.Info().Int("tab", addr.TabID).Int("frame", addr.FrameID).Msg(msg)
	}

	apiErr := make(chan error, 1)
	if watchServe {
		srv := newAPIServer(resolvePort(watchPort), st, bus, parser)
		onToast = func(addr frames.Address, msg string) {
			log.Info().Int("tab", addr.TabID).Int("frame", addr.FrameID).Msg(msg)
			srv.Feed().Toast(addr, msg)
		}
		go func() { apiErr <- serveUntil(ctx, srv) }()
	}

	host := browser.New(browser.Options{
		URL:         url,
		Visible:     visible,
		Bin:         settings.Browser.Bin,
		UserDataDir: settings.Browser.UserDataDir,
		Cookies:     watchCookies || settings.Browser.ImportCookies,
		Store:       st,
		Bus:         bus,
		Parser:      parser,
		Lang:        liveLang.Get,
		OnToast:     onToast,
		Log:         log,
	})

	log.Info().Str("url", url).Msg(texts().Server.Watching)
	err = host.Run(ctx)
	stop()
	if watchServe {
		if serr := <-apiErr; serr != nil {
			err = errors.Join(err, fmt.Errorf("api server: %w", serr))
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", texts().Errors.BrowserStart, err)
	}
	return nil
}
