package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/guiyumin/vskip/internal/core/config"
	"github.com/guiyumin/vskip/internal/core/frames"
	"github.com/guiyumin/vskip/internal/core/probe"
	"github.com/guiyumin/vskip/internal/core/store"
	"github.com/guiyumin/vskip/internal/core/title"
	"github.com/guiyumin/vskip/internal/server"
)

var (
	servePort   int
	serveDaemon bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for configuration and favorites",
	Long: `Start an HTTP server that exposes the skip configuration, presets, rules
and favorites, and parses titles. 'vskip watch --serve' runs the same API next
to a browser tab and adds the tab endpoints.

Examples:
  vskip serve              # Start server on port 8787
  vskip serve -p 9000      # Start server on port 9000
  vskip serve -d           # Start server as background daemon
  vskip serve stop         # Stop the daemon
  vskip serve status       # Show daemon status

API Endpoints:
  GET    /api/health
  GET    /api/config             PUT /api/config
  GET    /api/presets            POST /api/presets     DELETE /api/presets/:name
  GET    /api/rules/:kind        POST /api/rules/:kind DELETE /api/rules/:kind/:index
  GET    /api/favorites          POST /api/favorites
  PATCH  /api/favorites/:series  DELETE /api/favorites/:series
  GET    /api/favorites/lookup?url=&series=
  POST   /api/parse
  GET    /api/ws                 # live store changes and toasts`,
	ValidArgs: []string{"stop", "status"},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Handle subcommands
		if len(args) > 0 {
			switch args[0] {
			case "stop":
				return stopDaemon()
			case "status":
				return daemonStatus()
			default:
				return fmt.Errorf("unknown argument %q", args[0])
			}
		}
		return runServe()
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP listen port (default: 8787)")
	serveCmd.Flags().BoolVarP(&serveDaemon, "daemon", "d", false, "run as background daemon")

	rootCmd.AddCommand(serveCmd)
}

// resolvePort picks flag > settings > default.
func resolvePort(flag int) int {
	if flag > 0 {
		return flag
	}
	if settings.Server.Port > 0 {
		return settings.Server.Port
	}
	return config.DefaultSettings().Server.Port
}

func runServe() error {
	port := resolvePort(servePort)
	if serveDaemon {
		return startDaemon(port)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	watchLanguage()
	parser := newParser()
	srv := newAPIServer(port, st, nil, parser)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serveUntil(ctx, srv)
}

func newAPIServer(port int, st store.Store, bus *frames.Bus, parser *title.Parser) *server.Server {
	return server.NewServer(server.Options{
		Port:   port,
		APIKey: settings.Server.APIKey,
		Store:  st,
		Bus:    bus,
		Parser: parser,
		Prober: probe.New(parser, probe.Options{
			Cookies: settings.Browser.ImportCookies,
			Log:     log,
		}),
		Lang: liveLang.Get,
		Log:  log,
	})
}

// serveUntil runs srv until ctx ends, then shuts it down gracefully.
func serveUntil(ctx context.Context, srv *server.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg(texts().Server.Stopped)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// langSource follows the language in the settings file while running.
type langSource struct {
	mu   sync.RWMutex
	lang string
}

var liveLang = &langSource{}

func (l *langSource) Get() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.lang == "" {
		return lang()
	}
	return l.lang
}

func (l *langSource) Set(lang string) {
	l.mu.Lock()
	l.lang = lang
	l.mu.Unlock()
}

// watchLanguage keeps liveLang current when config.yml changes.
func watchLanguage() {
	if !config.Exists() {
		return
	}
	config.WatchSettings(settingsViper, func(s *config.Settings, err error) {
		if err != nil {
			log.Warn().Err(err).Msg("ignoring settings change")
			return
		}
		if s.Language != liveLang.Get() {
			log.Info().Str("language", s.Language).Msg("language changed")
			liveLang.Set(s.Language)
		}
	})
}

func startDaemon(port int) error {
	// Check if already running
	if pid := getDaemonPID(); pid > 0 {
		// Check if process is actually running
		if processExists(pid) {
			return fmt.Errorf("daemon already running (PID %d)", pid)
		}
		// Stale PID file, remove it
		os.Remove(getPIDFilePath())
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	args := []string{"serve", "-p", strconv.Itoa(port), "--db", settings.DBPath}

	logFile, err := os.OpenFile(getLogFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	cmd := exec.Command(executable, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil

	// Detach from parent
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	if err := savePID(cmd.Process.Pid); err != nil {
		cmd.Process.Kill()
		logFile.Close()
		return fmt.Errorf("failed to save PID: %w", err)
	}

	fmt.Printf("vskip server started as daemon (PID %d)\n", cmd.Process.Pid)
	fmt.Printf("  Port: %d\n", port)
	fmt.Printf("  Database: %s\n", settings.DBPath)
	fmt.Printf("  Log: %s\n", getLogFilePath())
	fmt.Printf("\nUse 'vskip serve stop' to stop the daemon\n")

	return nil
}

func stopDaemon() error {
	pid := getDaemonPID()
	if pid <= 0 {
		return fmt.Errorf("daemon is not running")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		os.Remove(getPIDFilePath())
		return fmt.Errorf("daemon process not found")
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		os.Remove(getPIDFilePath())
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	// Wait for process to exit
	for i := 0; i < 30; i++ {
		if !processExists(pid) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	os.Remove(getPIDFilePath())
	fmt.Println("Daemon stopped")
	return nil
}

func daemonStatus() error {
	pid := getDaemonPID()
	if pid <= 0 {
		fmt.Println("Daemon is not running")
		return nil
	}

	if !processExists(pid) {
		os.Remove(getPIDFilePath())
		fmt.Println("Daemon is not running (stale PID file removed)")
		return nil
	}

	fmt.Printf("Daemon is running (PID %d)\n", pid)
	fmt.Printf("Log file: %s\n", getLogFilePath())
	return nil
}

// Helper functions for PID file management

func getPIDFilePath() string {
	configDir, err := config.ConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "vskip-serve.pid")
	}
	return filepath.Join(configDir, "serve.pid")
}

func getLogFilePath() string {
	configDir, err := config.ConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "vskip-serve.log")
	}
	return filepath.Join(configDir, "serve.log")
}

func savePID(pid int) error {
	pidFile := getPIDFilePath()
	if err := os.MkdirAll(filepath.Dir(pidFile), 0755); err != nil {
		return err
	}
	return os.WriteFile(pidFile, []byte(strconv.Itoa(pid)), 0644)
}

func getDaemonPID() int {
	data, err := os.ReadFile(getPIDFilePath())
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return 0
	}
	return pid
}

func processExists(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds, so we need to send signal 0 to check
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
