package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tahfidz/internal/appstate"
	"tahfidz/internal/journal"
)

// Refresh reloads every collection from the spreadsheet. A failed fetch
// keeps local data and answers 502 with the connection state.
func (h *Handler) Refresh(c *gin.Context) {
	conn := h.State.Refresh(c.Request.Context())
	status := http.StatusOK
	if conn == appstate.ConnFetchFailed {
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"connection": conn})
}

type journalQuery struct {
	Status journal.Status `form:"status" binding:"omitempty,oneof=pending sent failed offline"`
	Limit  int            `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset int            `form:"offset" binding:"omitempty,min=0"`
}

// SyncJournal lists recent sync entries, newest first.
func (h *Handler) SyncJournal(c *gin.Context) {
	if h.Journal == nil {
		c.JSON(http.StatusOK, []journal.Entry{})
		return
	}
	var q journalQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	if q.Limit == 0 {
		q.Limit = 50
	}
	entries, err := h.Journal.Recent(c.Request.Context(), q.Status, q.Limit, q.Offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
