package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/guiyumin/vskip/internal/core/frames"
	"github.com/guiyumin/vskip/internal/core/i18n"
	"github.com/guiyumin/vskip/internal/core/probe"
	"github.com/guiyumin/vskip/internal/core/store"
	"github.com/guiyumin/vskip/internal/core/title"
	"github.com/guiyumin/vskip/internal/core/version"
)

// Response is the standard API response structure
type Response struct {
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
}

// Options configures the API server.
type Options struct {
	Port   int
	APIKey string

	Store  store.Store
	Bus    *frames.Bus
	Parser *title.Parser

	// Prober serves POST /api/parse with fetch=true; nil disables fetching.
	Prober *probe.Prober

	// Lang returns the language for messages; nil means Chinese.
	Lang func() string

	// RequestTimeout bounds waits for frame replies.
	RequestTimeout time.Duration

	Log zerolog.Logger
}

// Server is the HTTP API of vskip
type Server struct {
	opts   Options
	log    zerolog.Logger
	engine *gin.Engine
	feed   *Feed
	server *http.Server
}

const defaultRequestTimeout = 3 * time.Second

// NewServer builds the routes; Start begins listening.
func NewServer(opts Options) *Server {
	if opts.Parser == nil {
		opts.Parser = title.New(nil)
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}

	s := &Server{
		opts: opts,
		log:  opts.Log.With().Str("component", "server").Logger(),
	}
	s.feed = NewFeed(opts.Store, s.log)

	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.engine.Use(s.loggingMiddleware())
	if opts.APIKey != "" {
		s.engine.Use(s.authMiddleware())
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/i18n", s.handleI18n)

	api.GET("/config", s.handleGetConfig)
	api.POST("/config", s.handleSetConfig)
	api.PUT("/config", s.handleUpdateConfig)

	api.GET("/presets", s.handleListPresets)
	api.POST("/presets", s.handleAddPreset)
	api.DELETE("/presets/:name", s.handleDeletePreset)

	api.GET("/rules/:kind", s.handleListRules)
	api.POST("/rules/:kind", s.handleAddRule)
	api.DELETE("/rules/:kind/:index", s.handleDeleteRule)

	api.GET("/favorites", s.handleListFavorites)
	api.POST("/favorites", s.handleAddFavorite)
	api.GET("/favorites/lookup", s.handleLookupFavorite)
	api.PATCH("/favorites/:series", s.handleUpdateFavorite)
	api.DELETE("/favorites/:series", s.handleDeleteFavorite)

	api.POST("/parse", s.handleParse)

	api.GET("/tabs", s.handleListTabs)
	api.GET("/tabs/:id/title", s.handleTabTitle)
	api.GET("/tabs/:id/video", s.handleTabVideo)

	api.GET("/ws", s.feed.Handle)

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, Response{Code: 404, Message: "not found"})
	})
}

// Handler returns the engine wrapped in the CORS policy.
func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}).Handler(s.engine)
}

// Feed returns the websocket broadcaster, e.g. to publish toasts.
func (s *Server) Feed() *Feed { return s.feed }

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", s.opts.Port),
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	t := i18n.T(s.lang())
	s.log.Info().Int("port", s.opts.Port).Str("version", version.Version).Msg(t.Server.Starting)
	if s.opts.APIKey != "" {
		s.log.Info().Msg("API key authentication enabled")
	}

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.feed.Close()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) lang() string {
	if s.opts.Lang != nil {
		return s.opts.Lang()
	}
	return ""
}

// Middleware

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Health endpoint doesn't require auth
		if c.Request.URL.Path == "/api/health" {
			c.Next()
			return
		}

		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			// Browsers cannot set headers on websocket upgrades
			apiKey = c.Query("api_key")
		}
		if apiKey != s.opts.APIKey {
			c.JSON(http.StatusUnauthorized, Response{
				Code:    401,
				Data:    nil,
				Message: "invalid or missing API key",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

func ok(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, Response{Code: 200, Data: data, Message: message})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, Response{Code: status, Data: nil, Message: message})
}

// Handlers

func (s *Server) handleHealth(c *gin.Context) {
	ok(c, gin.H{
		"status":  "ok",
		"version": version.Version,
	}, "everything is good")
}

func (s *Server) handleI18n(c *gin.Context) {
	lang := c.Query("lang")
	if lang == "" {
		lang = s.lang()
	}
	if lang == "" {
		lang = "zh"
	}
	t := i18n.T(lang)
	ok(c, gin.H{
		"language":  lang,
		"supported": i18n.SupportedLanguages,
		"toast":     t.Toast,
		"fav":       t.Fav,
		"errors":    t.Errors,
	}, "translations retrieved")
}
