package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Lakunake/Sync-Player/internal/auth"
	"github.com/Lakunake/Sync-Player/internal/protocol"
)

const hydrationMarker = "<!--SERVER_DATA-->"

// servePage renders a page from the web dir, injecting the hydration
// payload when DATA_HYDRATION is on.
func (s *Server) servePage(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.renderPage(c, name)
	}
}

// serveAdminPage additionally establishes the CSRF session cookie before
// the admin UI makes its first mutating call.
func (s *Server) serveAdminPage(c *gin.Context) {
	sessionID, _ := c.Cookie(auth.SessionCookie)
	id, _ := s.csrf.Ensure(sessionID)
	if id != sessionID {
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(auth.SessionCookie, id, int(24*60*60), "/", "", s.cfg.UseHTTPS, true)
	}
	s.renderPage(c, "admin.html")
}

func (s *Server) renderPage(c *gin.Context, name string) {
	raw, err := os.ReadFile(filepath.Join(s.webDir, name))
	if err != nil {
		c.String(http.StatusNotFound, "page not found")
		return
	}
	page := string(raw)
	if s.cfg.DataHydration && strings.Contains(page, hydrationMarker) {
		payload, err := json.Marshal(s.hydrationData(c.Param("roomCode")))
		if err == nil {
			script := "<script>window.__SERVER_DATA__ = " + string(payload) + ";</script>"
			page = strings.Replace(page, hydrationMarker, script, 1)
		}
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

// hydrationData is the config slice clients would otherwise fetch after
// load; inlining it removes a round trip on every page view.
func (s *Server) hydrationData(roomCode string) gin.H {
	return gin.H{
		"serverMode":             s.cfg.ServerMode,
		"roomCode":               roomCode,
		"volumeStep":             s.cfg.VolumeStep,
		"skipSeconds":            s.cfg.SkipSeconds,
		"skipIntroSeconds":       s.cfg.SkipIntroSeconds,
		"maxVolume":              s.cfg.MaxVolume,
		"subtitleRenderer":       s.cfg.SubtitleRenderer,
		"videoAutoplay":          s.cfg.VideoAutoplay,
		"joinMode":               s.cfg.JoinMode,
		"clientControlsDisabled": s.cfg.ClientControlsDisabled,
		"clientSyncDisabled":     s.cfg.ClientSyncDisabled,
		"bslMode":                s.cfg.BSLMode,
		"chatEnabled":            s.cfg.ChatEnabled,
		"ffmpegToolsEnabled":     s.cfg.FFmpegToolsEnabled(),
	}
}

func (s *Server) getCSRFToken(c *gin.Context) {
	sessionID, _ := c.Cookie(auth.SessionCookie)
	id, token := s.csrf.Ensure(sessionID)
	if id != sessionID {
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(auth.SessionCookie, id, int(24*60*60), "/", "", s.cfg.UseHTTPS, true)
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) getServerMode(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"serverMode":  s.cfg.ServerMode,
		"defaultRoom": s.dispatcher.LegacyCode(),
	})
}

func (s *Server) getFiles(c *gin.Context) {
	files, err := s.library.ListMedia()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot list media"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

func (s *Server) getTracks(c *gin.Context) {
	filename := c.Param("filename")
	if !protocol.ValidFilename(filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filename"})
		return
	}
	tracks, err := s.library.TracksFor(filename)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "probe failed"})
		return
	}
	c.JSON(http.StatusOK, tracks)
}

func (s *Server) getOrphanSidecars(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"orphans": s.manifests.OrphanSidecars()})
}

func (s *Server) getThumbnail(c *gin.Context) {
	filename := c.Param("filename")
	if !protocol.ValidFilename(filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filename"})
		return
	}
	width, _ := strconv.Atoi(c.DefaultQuery("width", "720"))
	path, ok := s.library.LocalPath(filename)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	thumb, err := s.thumbs.Get(path, filename, width)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "thumbnail render failed"})
		return
	}
	c.File(thumb)
}

func (s *Server) getRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": s.rooms.ListPublic()})
}

func (s *Server) getRoom(c *gin.Context) {
	r, ok := s.rooms.Find(c.Param("code"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	r.Mu.Lock()
	resp := gin.H{
		"code":    r.Code,
		"name":    r.Name,
		"viewers": r.ViewerCount(),
		"private": r.Private,
	}
	r.Mu.Unlock()
	c.JSON(http.StatusOK, resp)
}

func (s *Server) serveMedia(c *gin.Context) {
	filename := c.Param("filename")
	if !protocol.ValidFilename(filename) {
		c.Status(http.StatusBadRequest)
		return
	}
	path, ok := s.library.LocalPath(filename)
	if !ok {
		// Remote backend: hand the client a short-lived direct URL so
		// bytes never proxy through this process.
		if url, ok := s.library.FetchURL(filename); ok {
			c.Redirect(http.StatusTemporaryRedirect, url)
			return
		}
		c.Status(http.StatusNotFound)
		return
	}
	// http.ServeFile handles range requests, which video playback needs.
	c.File(path)
}

func (s *Server) serveSidecar(c *gin.Context) {
	filename := c.Param("filename")
	if !protocol.ValidFilename(filename) {
		c.Status(http.StatusBadRequest)
		return
	}
	path := filepath.Join(s.manifests.Dir(), filename)
	if _, err := os.Stat(path); err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	c.File(path)
}
