package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guiyumin/vskip/internal/core/config"
	"github.com/guiyumin/vskip/internal/core/logging"
	"github.com/guiyumin/vskip/internal/core/probe"
	"github.com/guiyumin/vskip/internal/core/site"
	"github.com/guiyumin/vskip/internal/core/store"
	"github.com/guiyumin/vskip/internal/core/title"
	"github.com/guiyumin/vskip/internal/core/version"
	"github.com/guiyumin/vskip/internal/server"
)

func main() {
	// Command-line flags
	port := flag.Int("port", 0, "HTTP listen port (default: 8787)")
	dbPath := flag.String("db", "", "database file")
	showVersion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("vskip-server %s\n", version.Version)
		return
	}

	// Load settings (file < env)
	cfg, err := config.LoadSettings(config.NewViper())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(os.Stderr, cfg.LogLevel)

	// Resolve port (flag > config > default)
	serverPort := *port
	if serverPort == 0 {
		serverPort = cfg.Server.Port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	st, err := store.OpenSQLite(cfg.DBPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	reg := site.NewRegistry()
	if sites, err := config.LoadSites(); err == nil {
		reg.RegisterSites(sites)
	}
	parser := title.New(reg)

	srv := server.NewServer(server.Options{
		Port:   serverPort,
		APIKey: cfg.Server.APIKey,
		Store:  st,
		Parser: parser,
		Prober: probe.New(parser, probe.Options{Cookies: cfg.Browser.ImportCookies, Log: log}),
		Lang:   func() string { return cfg.Language },
		Log:    log,
	})

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Stop(ctx)
	}()

	log.Info().Str("db", cfg.DBPath).Msg("store opened")

	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
