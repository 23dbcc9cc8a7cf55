// Package api is the HTTP surface: the hydrated pages, the media and
// metadata endpoints, the password-gated ffmpeg tools, and the websocket
// upgrade. Everything stateful lives behind the dispatcher and the
// library; handlers here translate HTTP in and out.
package api

import (
	"net/http"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Lakunake/Sync-Player/internal/auth"
	"github.com/Lakunake/Sync-Player/internal/clock"
	"github.com/Lakunake/Sync-Player/internal/config"
	"github.com/Lakunake/Sync-Player/internal/media"
	"github.com/Lakunake/Sync-Player/internal/media/jobs"
	"github.com/Lakunake/Sync-Player/internal/protocol"
	"github.com/Lakunake/Sync-Player/internal/room"
	"github.com/Lakunake/Sync-Player/internal/session"
)

type Server struct {
	cfg        *config.Config
	clk        clock.Clock
	hub        *session.Hub
	dispatcher *protocol.Dispatcher
	rooms      *room.Registry
	library    media.Library
	manifests  *media.ManifestStore
	thumbs     *media.Thumbnailer
	jobs       *jobs.Queue
	csrf       *auth.CSRF
	tools      *toolsGate
	router     *gin.Engine

	webDir string
}

func New(
	cfg *config.Config,
	clk clock.Clock,
	hub *session.Hub,
	dispatcher *protocol.Dispatcher,
	rooms *room.Registry,
	library media.Library,
	manifests *media.ManifestStore,
	thumbs *media.Thumbnailer,
	jobQueue *jobs.Queue,
	csrf *auth.CSRF,
) *Server {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:        cfg,
		clk:        clk,
		hub:        hub,
		dispatcher: dispatcher,
		rooms:      rooms,
		library:    library,
		manifests:  manifests,
		thumbs:     thumbs,
		jobs:       jobQueue,
		csrf:       csrf,
		tools:      newToolsGate(cfg.FFmpegToolsPassword, clk),
		router:     gin.New(),
		webDir:     "./web",
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", auth.TokenHeader}
	s.router.Use(cors.New(corsConfig))

	s.router.Use(s.csrfMiddleware())
}

func (s *Server) setupRoutes() {
	// Pages (hydrated HTML)
	s.router.GET("/", s.servePage("index.html"))
	s.router.GET("/admin", s.serveAdminPage)
	s.router.GET("/admin/:roomCode", s.serveAdminPage)
	s.router.GET("/watch/:roomCode", s.servePage("watch.html"))
	s.router.Static("/static", s.webDir+"/static")

	// Websocket
	s.router.GET("/ws", func(c *gin.Context) {
		s.hub.Serve(c.Writer, c.Request, s.dispatcher.Handle)
	})

	// Media bytes
	s.router.GET("/media/tracks/:filename", s.serveSidecar)
	s.router.GET("/media/:filename", s.serveMedia)

	api := s.router.Group("/api")
	{
		api.GET("/csrf-token", s.getCSRFToken)
		api.GET("/server-mode", s.getServerMode)
		api.GET("/files", s.rateLimit(60), s.getFiles)
		api.GET("/tracks/orphans", s.getOrphanSidecars)
		api.GET("/tracks/:filename", s.getTracks)
		api.GET("/thumbnail/:filename", s.rateLimit(50), s.getThumbnail)
		api.GET("/rooms", s.getRooms)
		api.GET("/rooms/:code", s.getRoom)

		ffmpeg := api.Group("/ffmpeg")
		{
			ffmpeg.POST("/auth", s.ffmpegAuth)
			ffmpeg.GET("/encoders", s.tools.require, s.ffmpegEncoders)
			ffmpeg.GET("/jobs", s.tools.require, s.ffmpegJobs)
			ffmpeg.POST("/run-preset", s.tools.require, s.ffmpegRunPreset)
			ffmpeg.POST("/cancel", s.tools.require, s.ffmpegCancel)
		}
	}

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "sync-player"})
	})
}

// Router exposes the engine for the caller's http.Server.
func (s *Server) Router() http.Handler { return s.router }
