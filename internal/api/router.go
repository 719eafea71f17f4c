package api

import (
	"github.com/gin-gonic/gin"

	"github.com/deepl0w/movie-sync/internal/api/handlers"
	"github.com/deepl0w/movie-sync/internal/api/middleware"
	"github.com/deepl0w/movie-sync/internal/core"
	"github.com/deepl0w/movie-sync/internal/db"
)

// NewRouter wires the admin API. Auth endpoints are public; everything
// touching the queues sits behind the JWT middleware.
func NewRouter(store *core.Store, database *db.DB, cleaner core.CleanupExecutor, maxRetries int) (*gin.Engine, error) {
	auth, err := middleware.NewAuthMiddleware(database)
	if err != nil {
		return nil, err
	}

	jobs := handlers.NewJobHandler(store, database, cleaner, maxRetries)

	r := gin.Default()

	r.POST("/api/auth/setup", auth.SetupHandler)
	r.POST("/api/auth/login", auth.LoginHandler)
	r.POST("/api/auth/logout", auth.LogoutHandler)
	r.GET("/api/auth/status", auth.StatusHandler)

	protected := r.Group("/api", auth.RequireAuth())
	{
		protected.POST("/auth/change-password", auth.ChangePasswordHandler)

		protected.GET("/stats", jobs.GetStats)
		protected.GET("/queues", jobs.GetQueues)
		protected.GET("/queue/:name", jobs.GetQueue)
		protected.GET("/history", jobs.GetHistory)

		protected.POST("/movie/:id/move", jobs.MoveMovie)
		protected.POST("/movie/:id/retry", jobs.RetryMovie)
		protected.POST("/movie/:id/skip", jobs.SkipMovie)
		protected.POST("/movie/:id/unskip", jobs.UnskipMovie)
		protected.POST("/movie/:id/restore", jobs.RestoreMovie)
		protected.POST("/movie/:id/delete", jobs.DeleteMovie)
		protected.POST("/movie/:id/force-delete", jobs.ForceDeleteMovie)
		protected.POST("/queue/reorder", jobs.ReorderQueue)
	}

	return r, nil
}
