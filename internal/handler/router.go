package handler

import (
	"github.com/gin-gonic/gin"
)

// Handlers groups the route handlers mounted by RegisterRoutes.
type Handlers struct {
	Snapshots   *SnapshotHandler
	Submissions *SubmissionHandler
	Metrics     *MetricsHandler
}

// RegisterRoutes mounts the public probes and the tenant-scoped API under prefix.
func RegisterRoutes(r *gin.Engine, prefix string, auth gin.HandlerFunc, h Handlers) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix, auth)
	api.GET("/metrics/summary", h.Metrics.Summary)

	snapshots := api.Group("/snapshots")
	snapshots.POST("/validate", h.Snapshots.Validate)
	snapshots.POST("/diff", h.Snapshots.Diff)
	snapshots.POST("/import", h.Snapshots.Import)
	snapshots.GET("/history", h.Snapshots.History)
	snapshots.GET("/history/export", h.Snapshots.HistoryExport)
	snapshots.GET("/history/:id", h.Snapshots.HistoryDetail)
	snapshots.GET("/history/:id/snapshot", h.Snapshots.HistorySnapshot)

	submissions := api.Group("/submissions")
	submissions.GET("/:id/versions", h.Submissions.Versions)
	submissions.GET("/:id/grade", h.Submissions.Grade)
	submissions.POST("/:id/grade", h.Submissions.RecordGrade)
}
