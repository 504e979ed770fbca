package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"tahfidz/internal/attendance"
	"tahfidz/internal/model"
)

type attendanceQuery struct {
	Date    string            `form:"date"`
	Session model.Session     `form:"session" binding:"omitempty,oneof=pagi malam"`
	Type    model.SubjectType `form:"type" binding:"omitempty,oneof=student teacher"`
}

func (h *Handler) ListAttendance(c *gin.Context) {
	var q attendanceQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	marks := h.State.ViewFor(actorFrom(c)).Attendance
	c.JSON(http.StatusOK, attendance.Filter(marks, q.Date, q.Session, q.Type))
}

func (h *Handler) MarkAttendance(c *gin.Context) {
	var req attendance.MarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.Attendance.Mark(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type decisionRequest struct {
	Approve *bool `json:"approve" binding:"required"`
}

func (h *Handler) DecideAttendance(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.Attendance.Decide(c.Request.Context(), actorFrom(c), c.Param("id"), *req.Approve)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// MagicLink applies an approve/reject link opened from WhatsApp and
// answers with a short page the admin can read on the phone.
func (h *Handler) MagicLink(c *gin.Context) {
	decision, err := h.Attendance.ApplyMagicLink(c.Request.Context(), c.Query("action"), c.Query("id"))
	if err != nil {
		c.String(statusFor(err), "Gagal memproses: %v", err)
		return
	}
	word := "DISETUJUI"
	if decision == model.ApprovalRejected {
		word = "DITOLAK"
	}
	msg := fmt.Sprintf("Izin %s", word)
	if name := c.Query("name"); name != "" {
		msg += fmt.Sprintf(" untuk %s (%s, sesi %s)", name, c.Query("date"), model.Session(c.Query("session")).Label())
	}
	c.String(http.StatusOK, msg)
}
