package handler

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"smartattendance/internal/auth"
	"smartattendance/internal/httpmiddleware"
	"smartattendance/internal/metrics"
	"smartattendance/internal/model"
)

// RouterConfig holds the cross-cutting pieces of the HTTP stack.
type RouterConfig struct {
	Metrics      *metrics.Metrics
	CORSOrigins  []string
	LoginLimiter *httpmiddleware.TokenBucket
	AccessLog    bool
}

// NewRouter builds the engine with middleware and every API route mounted.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.AccessLog {
		r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
			SkipPaths: []string{"/healthz", "/metrics"},
		}))
	}
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(cfg.Metrics.GinMiddleware())

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	login := []gin.HandlerFunc{h.Login}
	if cfg.LoginLimiter != nil {
		login = append([]gin.HandlerFunc{cfg.LoginLimiter.GinMiddleware(httpmiddleware.ByClientIP)}, login...)
	}
	api.POST("/login", login...)
	api.POST("/refresh", h.Refresh)

	authed := api.Group("", auth.RequireSession(h.Signer, h.Revoker))
	{
		authed.POST("/logout", h.Logout)
		authed.GET("/me", h.Me)
		authed.POST("/attendance", h.MarkAttendance)

		authed.POST("/marking", h.StartMarking)
		authed.GET("/marking/:id", h.GetMarking)
		authed.POST("/marking/:id/index", h.SubmitIndex)
		authed.POST("/marking/:id/verify", h.VerifyMarking)
		authed.POST("/marking/:id/reset", h.ResetMarking)
		authed.DELETE("/marking/:id", h.CloseMarking)
	}

	lecturer := authed.Group("", auth.RequireRoles(model.RoleLecturer))
	{
		lecturer.GET("/students", h.ListStudents)
		lecturer.POST("/students", h.RegisterStudent)
		lecturer.POST("/register", h.RegisterStudent)
		lecturer.GET("/students/:id", h.GetStudent)
		lecturer.PATCH("/students/:id", h.UpdateStudent)
		lecturer.DELETE("/students/:id", h.DeleteStudent)
		lecturer.GET("/students/:id/attendance", h.StudentAttendance)

		lecturer.GET("/attendance", h.ListAttendance)

		lecturer.GET("/stats", h.Stats)
		lecturer.GET("/stats/daily", h.DailyStats)
		lecturer.GET("/stats/students", h.StudentStats)
		lecturer.GET("/stats/flagged", h.FlaggedStats)

		lecturer.GET("/export/students.csv", h.ExportStudents)
		lecturer.GET("/export/attendance.csv", h.ExportAttendance)
		lecturer.GET("/backup", h.Backup)
		lecturer.POST("/restore", h.Restore)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
