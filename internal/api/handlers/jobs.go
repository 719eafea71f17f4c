package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/deepl0w/movie-sync/internal/core"
	"github.com/deepl0w/movie-sync/internal/db"
)

type MoveRequest struct {
	Target string `json:"target" binding:"required"`
}

type ReorderRequest struct {
	Queue    string `json:"queue" binding:"required"`
	MovedID  string `json:"moved_id" binding:"required"`
	AnchorID string `json:"anchor_id" binding:"required"`
}

type QueuesResponse struct {
	Pending   []core.Movie `json:"pending"`
	Failed    []core.Movie `json:"failed"`
	Completed []core.Movie `json:"completed"`
	Removed   []core.Movie `json:"removed"`
}

type JobHandler struct {
	store      *core.Store
	db         *db.DB
	cleaner    core.CleanupExecutor
	maxRetries int
}

func NewJobHandler(store *core.Store, database *db.DB, cleaner core.CleanupExecutor, maxRetries int) *JobHandler {
	return &JobHandler{
		store:      store,
		db:         database,
		cleaner:    cleaner,
		maxRetries: maxRetries,
	}
}

func (h *JobHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Statistics(h.maxRetries))
}

func (h *JobHandler) GetQueues(c *gin.Context) {
	resp := QueuesResponse{}
	resp.Pending, _ = h.store.Queue(core.QueuePending)
	resp.Failed, _ = h.store.Queue(core.QueueFailed)
	resp.Completed, _ = h.store.Queue(core.QueueCompleted)
	resp.Removed, _ = h.store.Queue(core.QueueRemoved)
	c.JSON(http.StatusOK, resp)
}

func (h *JobHandler) GetQueue(c *gin.Context) {
	name := c.Param("name")
	movies, ok := h.store.Queue(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown queue"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue": name, "movies": movies})
}

func (h *JobHandler) GetHistory(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	var events []*db.JobEvent
	var err error
	if movieID := c.Query("movie_id"); movieID != "" {
		events, err = h.db.Events.ListByMovie(c.Request.Context(), movieID, limit)
	} else {
		events, err = h.db.Events.List(c.Request.Context(), limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	if events == nil {
		events = []*db.JobEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *JobHandler) MoveMovie(c *gin.Context) {
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.Target {
	case core.QueuePending, core.QueueFailed, core.QueueCompleted, core.QueueRemoved:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown target queue"})
		return
	}

	ok, err := h.store.Move(c.Param("id"), req.Target)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "movie not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RetryMovie clears a failed movie's retry state and promotes it back
// to pending for an immediate attempt.
func (h *JobHandler) RetryMovie(c *gin.Context) {
	ok, err := h.store.RetryNow(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "movie not in failed queue"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *JobHandler) SkipMovie(c *gin.Context) {
	h.setSkipped(c, true)
}

func (h *JobHandler) UnskipMovie(c *gin.Context) {
	h.setSkipped(c, false)
}

func (h *JobHandler) setSkipped(c *gin.Context, skipped bool) {
	ok, err := h.store.SetSkipped(c.Param("id"), skipped)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "movie not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "skipped": skipped})
}

// RestoreMovie brings a removed movie back to pending before the
// cleanup worker reaps it.
func (h *JobHandler) RestoreMovie(c *gin.Context) {
	ok, err := h.store.Restore(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "movie not in removed queue"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteMovie drops a movie from whatever queue holds it. Downloaded
// content stays on disk.
func (h *JobHandler) DeleteMovie(c *gin.Context) {
	ok, err := h.store.RemoveAnywhere(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "movie not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ForceDeleteMovie deletes a movie's downloaded content immediately and
// drops it from the store, bypassing the removal grace period.
func (h *JobHandler) ForceDeleteMovie(c *gin.Context) {
	id := c.Param("id")

	m, ok := h.findMovie(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "movie not found"})
		return
	}

	res := h.cleaner.Cleanup(m)
	if _, err := h.store.RemoveAnywhere(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cleanup": res})
}

func (h *JobHandler) findMovie(id string) (core.Movie, bool) {
	for _, name := range []string{core.QueuePending, core.QueueFailed, core.QueueCompleted, core.QueueRemoved} {
		movies, _ := h.store.Queue(name)
		for _, m := range movies {
			if m.ID == id {
				return m, true
			}
		}
	}
	return core.Movie{}, false
}

func (h *JobHandler) ReorderQueue(c *gin.Context) {
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ok, err := h.store.Reorder(req.Queue, req.MovedID, req.AnchorID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "queue or movie not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
