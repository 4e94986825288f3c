package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/gin-gonic/gin"

	"github.com/guiyumin/vskip/internal/core/config"
	"github.com/guiyumin/vskip/internal/core/favorites"
	"github.com/guiyumin/vskip/internal/core/frames"
	"github.com/guiyumin/vskip/internal/core/preset"
	"github.com/guiyumin/vskip/internal/core/title"
)

// ConfigSetRequest is the request body for POST /api/config
type ConfigSetRequest struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value"`
}

func (s *Server) handleGetConfig(c *gin.Context) {
	cfg, err := config.Load(c.Request.Context(), s.opts.Store)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, cfg, "config retrieved")
}

func (s *Server) handleSetConfig(c *gin.Context) {
	var req ConfigSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: key is required")
		return
	}
	s.writeConfig(c, map[string]string{req.Key: req.Value})
}

// handleUpdateConfig takes a flat object of key to string value, the same
// form `vskip config set` accepts.
func (s *Server) handleUpdateConfig(c *gin.Context) {
	var req map[string]string
	if err := c.ShouldBindJSON(&req); err != nil || len(req) == 0 {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	s.writeConfig(c, req)
}

func (s *Server) writeConfig(c *gin.Context, raw map[string]string) {
	values := map[string]json.RawMessage{}
	for key, v := range raw {
		parsed, err := config.ParseValue(key, v)
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		values[key] = parsed[key]
	}
	if err := s.opts.Store.Set(c.Request.Context(), values); err != nil {
		fail(c, http.StatusInternalServerError, fmt.Sprintf("failed to save config: %v", err))
		return
	}
	s.handleGetConfig(c)
}

// Presets

func (s *Server) handleListPresets(c *gin.Context) {
	presets, err := preset.List(c.Request.Context(), s.opts.Store)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	// ?url= and ?title= preview which preset a page would get
	pageURL, pageTitle := c.Query("url"), c.Query("title")
	if pageURL != "" || pageTitle != "" {
		p, found := preset.Match(presets, pageURL, pageTitle)
		if !found {
			ok(c, gin.H{"match": nil}, "no preset matches")
			return
		}
		ok(c, gin.H{"match": p}, "preset matched")
		return
	}
	ok(c, presets, fmt.Sprintf("%d presets", len(presets)))
}

func (s *Server) handleAddPreset(c *gin.Context) {
	var p config.Preset
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, http.StatusBadRequest, "invalid preset")
		return
	}
	replaced, err := preset.Add(c.Request.Context(), s.opts.Store, p)
	if errors.Is(err, preset.ErrEmptyName) {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	msg := "preset added"
	if replaced {
		msg = "preset replaced"
	}
	ok(c, p, msg)
}

func (s *Server) handleDeletePreset(c *gin.Context) {
	err := preset.Delete(c.Request.Context(), s.opts.Store, c.Param("name"))
	if errors.Is(err, preset.ErrNotFound) {
		fail(c, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, nil, "preset deleted")
}

// Rules

func ruleKind(c *gin.Context) (config.RuleKind, bool) {
	kind, valid := config.ParseRuleKind(c.Param("kind"))
	if !valid {
		fail(c, http.StatusBadRequest, "rule kind must be tag or series")
	}
	return kind, valid
}

func (s *Server) handleListRules(c *gin.Context) {
	kind, valid := ruleKind(c)
	if !valid {
		return
	}
	cfg, err := config.Load(c.Request.Context(), s.opts.Store)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, cfg.Rules(kind), "rules retrieved")
}

func (s *Server) handleAddRule(c *gin.Context) {
	kind, valid := ruleKind(c)
	if !valid {
		return
	}
	var r config.Rule
	if err := c.ShouldBindJSON(&r); err != nil {
		fail(c, http.StatusBadRequest, "invalid rule")
		return
	}
	replaced, err := config.AddRule(c.Request.Context(), s.opts.Store, kind, r)
	if errors.Is(err, config.ErrEmptyRule) {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	msg := "rule added"
	if replaced {
		msg = "rule replaced"
	}
	ok(c, r, msg)
}

func (s *Server) handleDeleteRule(c *gin.Context) {
	kind, valid := ruleKind(c)
	if !valid {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		fail(c, http.StatusBadRequest, "index must be a number")
		return
	}
	removed, err := config.RemoveRule(c.Request.Context(), s.opts.Store, kind, index)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		fail(c, http.StatusNotFound, fmt.Sprintf("no rule at index %d", index))
		return
	}
	ok(c, nil, "rule deleted")
}

// Favorites

// FavoriteAddRequest adds either a literal entry or whatever the video in
// tab Tab is playing.
type FavoriteAddRequest struct {
	favorites.Entry
	Tab int `json:"tab,omitempty"`
}

// FavoriteUpdateRequest renames and/or refiles an entry.
type FavoriteUpdateRequest struct {
	Series *string `json:"series"`
	Folder *string `json:"folder"`
}

func (s *Server) handleListFavorites(c *gin.Context) {
	var f favorites.Filter
	if since := c.Query("since"); since != "" {
		t, err := dateparse.ParseAny(since)
		if err != nil {
			fail(c, http.StatusBadRequest, fmt.Sprintf("invalid since: %v", err))
			return
		}
		f.Since = t
	}
	f.Folder = c.Query("folder")

	lib, err := favorites.Load(c.Request.Context(), s.opts.Store)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, gin.H{
		"entries": lib.List(f),
		"folders": lib.Folders(),
	}, "favorites retrieved")
}

func (s *Server) handleAddFavorite(c *gin.Context) {
	var req FavoriteAddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid favorite")
		return
	}

	e := req.Entry
	if req.Tab != 0 {
		info, status, err := s.requestVideoInfo(c.Request.Context(), req.Tab)
		if err != nil {
			fail(c, status, err.Error())
			return
		}
		e = favorites.Entry{
			Series:   info.Series,
			Episode:  info.Episode,
			Site:     info.Site,
			URL:      info.URL,
			Time:     info.Time,
			Duration: info.Duration,
			Folder:   req.Folder,
		}
	}

	added, err := favorites.Add(c.Request.Context(), s.opts.Store, e, time.Now())
	if errors.Is(err, favorites.ErrEmptyName) {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, added, "favorite saved")
}

func (s *Server) handleUpdateFavorite(c *gin.Context) {
	var req FavoriteUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	ctx := c.Request.Context()
	series := c.Param("series")

	merged := false
	if req.Series != nil {
		var err error
		merged, err = favorites.Rename(ctx, s.opts.Store, series, *req.Series)
		if !s.favoriteOK(c, err) {
			return
		}
		series = strings.TrimSpace(*req.Series)
	}
	if req.Folder != nil {
		if !s.favoriteOK(c, favorites.SetFolder(ctx, s.opts.Store, series, *req.Folder)) {
			return
		}
	}

	lib, err := favorites.Load(ctx, s.opts.Store)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, gin.H{"entry": lib[series], "merged": merged}, "favorite updated")
}

func (s *Server) handleDeleteFavorite(c *gin.Context) {
	if !s.favoriteOK(c, favorites.Remove(c.Request.Context(), s.opts.Store, c.Param("series"))) {
		return
	}
	ok(c, nil, "favorite deleted")
}

func (s *Server) favoriteOK(c *gin.Context, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, favorites.ErrNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, favorites.ErrEmptyName):
		fail(c, http.StatusBadRequest, err.Error())
	default:
		fail(c, http.StatusInternalServerError, err.Error())
	}
	return false
}

// handleLookupFavorite finds the entry a page belongs to, by series name or
// by URL similarity.
func (s *Server) handleLookupFavorite(c *gin.Context) {
	series, pageURL := c.Query("series"), c.Query("url")
	if series == "" && pageURL == "" {
		fail(c, http.StatusBadRequest, "series or url is required")
		return
	}
	lib, err := favorites.Load(c.Request.Context(), s.opts.Store)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	e, conf := favorites.URLMatcher{}.Match(lib, series, pageURL)
	if conf == favorites.NoMatch {
		fail(c, http.StatusNotFound, "no matching favorite")
		return
	}
	ok(c, gin.H{
		"entry":      e,
		"confidence": conf.String(),
		"resumeUrl":  favorites.ResumeURL(e.URL, e.Time),
	}, "favorite found")
}

// Parsing

// ParseRequest is the request body for POST /api/parse
type ParseRequest struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	// Fetch downloads URL and parses the real page, DOM parsers included.
	Fetch bool `json:"fetch"`
}

func (s *Server) handleParse(c *gin.Context) {
	var req ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.Title == "" && req.URL == "") {
		fail(c, http.StatusBadRequest, "title or url is required")
		return
	}
	ctx := c.Request.Context()
	cfg, err := config.Load(ctx, s.opts.Store)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	if req.Fetch {
		if s.opts.Prober == nil {
			fail(c, http.StatusNotImplemented, "page fetching is disabled")
			return
		}
		if req.URL == "" {
			fail(c, http.StatusBadRequest, "url is required to fetch")
			return
		}
		res, err := s.opts.Prober.Parse(ctx, cfg, req.URL)
		if err != nil {
			fail(c, http.StatusBadGateway, err.Error())
			return
		}
		ok(c, res, "page parsed")
		return
	}

	res := s.opts.Parser.Parse(cfg, title.Page{Title: req.Title, URL: req.URL}, title.Override{})
	ok(c, res, "title parsed")
}

// Tabs

func (s *Server) handleListTabs(c *gin.Context) {
	if s.opts.Bus == nil {
		ok(c, []frames.Tab{}, "no browser attached")
		return
	}
	ok(c, s.opts.Bus.Tabs(), "tabs retrieved")
}

func (s *Server) tabID(c *gin.Context) (int, bool) {
	if s.opts.Bus == nil {
		fail(c, http.StatusServiceUnavailable, "no browser attached")
		return 0, false
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "tab id must be a number")
		return 0, false
	}
	return id, true
}

// handleTabTitle asks the tab's top frame for its parsed identity.
func (s *Server) handleTabTitle(c *gin.Context) {
	id, valid := s.tabID(c)
	if !valid {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.RequestTimeout)
	defer cancel()

	top := frames.TopFrame
	data, err := s.opts.Bus.Request(ctx, id, frames.Message{Action: frames.ActionGetNiceTitle}, &top)
	if err != nil {
		fail(c, statusFor(err), err.Error())
		return
	}
	var nt frames.NiceTitle
	if err := json.Unmarshal(data, &nt); err != nil {
		fail(c, http.StatusBadGateway, fmt.Sprintf("bad reply: %v", err))
		return
	}
	ok(c, nt, "title retrieved")
}

func (s *Server) handleTabVideo(c *gin.Context) {
	id, valid := s.tabID(c)
	if !valid {
		return
	}
	info, status, err := s.requestVideoInfo(c.Request.Context(), id)
	if err != nil {
		fail(c, status, err.Error())
		return
	}
	ok(c, info, "video info retrieved")
}

// requestVideoInfo broadcasts getRequestVideoInfo to every frame of the tab
// and takes the first reply; only frames with a video answer.
func (s *Server) requestVideoInfo(ctx context.Context, tabID int) (frames.VideoInfo, int, error) {
	if s.opts.Bus == nil {
		return frames.VideoInfo{}, http.StatusServiceUnavailable, errors.New("no browser attached")
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	data, err := s.opts.Bus.Request(ctx, tabID, frames.Message{Action: frames.ActionGetRequestVideoInfo}, nil)
	if err != nil {
		return frames.VideoInfo{}, statusFor(err), err
	}
	var info frames.VideoInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return frames.VideoInfo{}, http.StatusBadGateway, fmt.Errorf("bad reply: %w", err)
	}
	return info, http.StatusOK, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, frames.ErrNoTab), errors.Is(err, frames.ErrNoReply):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
