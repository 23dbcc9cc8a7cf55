package api

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/Lakunake/Sync-Player/internal/media/jobs"
	"github.com/Lakunake/Sync-Player/internal/protocol"
)

func (s *Server) ffmpegAuth(c *gin.Context) {
	if !s.tools.enabled {
		c.JSON(http.StatusNotFound, gin.H{"error": "media tools are disabled"})
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	token, ok := s.tools.authenticate(req.Password)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong password"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expiresIn": int(toolsSessionTTL.Seconds())})
}

// encoderPresets is the curated codec list offered by the re-encode UI.
// ffmpeg supports far more; these are the ones every target browser can
// actually decode.
var encoderPresets = []gin.H{
	{"codec": "libx264", "name": "H.264 (AVC)", "container": "mp4"},
	{"codec": "libx265", "name": "H.265 (HEVC)", "container": "mp4"},
	{"codec": "libvpx-vp9", "name": "VP9", "container": "webm"},
	{"codec": "libaom-av1", "name": "AV1", "container": "webm"},
}

func (s *Server) ffmpegEncoders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"encoders": encoderPresets})
}

func (s *Server) ffmpegJobs(c *gin.Context) {
	list := s.jobs.List()
	sort.Slice(list, func(i, j int) bool { return list[i].StartTime.After(list[j].StartTime) })
	c.JSON(http.StatusOK, gin.H{"jobs": list})
}

func (s *Server) ffmpegRunPreset(c *gin.Context) {
	var req jobs.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if !protocol.ValidFilename(req.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filename"})
		return
	}
	job, err := s.jobs.Submit(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, job)
}

func (s *Server) ffmpegCancel(c *gin.Context) {
	var req struct {
		ID string `json:"id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if !s.jobs.Cancel(req.ID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found or already finished"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}
