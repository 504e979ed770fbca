package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tahfidz/internal/appstate"
	"tahfidz/internal/model"
	"tahfidz/internal/report"
	"tahfidz/internal/roster"
)

func (h *Handler) Dashboard(c *gin.Context) {
	v := h.State.ViewFor(actorFrom(c))
	c.JSON(http.StatusOK, report.Dashboard(v.Students, v.Records, v.Exams, string(h.State.Connection())))
}

// ListStudents returns the students in the caller's scope. Passwords are
// only shown to admins.
func (h *Handler) ListStudents(c *gin.Context) {
	actor := actorFrom(c)
	students := h.State.ViewFor(actor).Students
	if actor.Role != model.RoleAdmin {
		for i := range students {
			students[i].Password = ""
		}
	}
	c.JSON(http.StatusOK, students)
}

func (h *Handler) CreateStudent(c *gin.Context) {
	var s model.Student
	if err := c.ShouldBindJSON(&s); err != nil {
		badRequest(c, err)
		return
	}
	s.ID = ""
	out, err := h.State.AddStudents(c.Request.Context(), actorFrom(c), s)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, out[0])
}

func (h *Handler) DeleteStudent(c *gin.Context) {
	if err := h.State.DeleteStudent(c.Request.Context(), actorFrom(c), c.Param("id"), confirmed(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListUsers returns accounts without credentials, optionally by role.
func (h *Handler) ListUsers(c *gin.Context) {
	users := h.State.Snapshot().Users
	role := model.Role(c.Query("role"))
	out := make([]model.User, 0, len(users))
	for _, u := range users {
		if role == "" || u.Role == role {
			out = append(out, u.Public())
		}
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) CreateUser(c *gin.Context) {
	var u model.User
	if err := c.ShouldBindJSON(&u); err != nil {
		badRequest(c, err)
		return
	}
	u.ID = ""
	out, err := h.State.AddUsers(c.Request.Context(), actorFrom(c), u)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, out[0].Public())
}

func (h *Handler) DeleteUser(c *gin.Context) {
	if err := h.State.DeleteUser(c.Request.Context(), actorFrom(c), c.Param("id"), confirmed(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type importRequest struct {
	Kind string `form:"kind" json:"kind" binding:"required"`
	Text string `form:"text" json:"text"`
}

// ImportRoster accepts pasted CSV/TSV text or an .xlsx upload in the
// "file" form field.
func (h *Handler) ImportRoster(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}
	kind, err := roster.ParseKind(req.Kind)
	if err != nil {
		h.fail(c, err)
		return
	}

	rows := roster.ParseText(req.Text)
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			h.fail(c, err)
			return
		}
		defer f.Close()
		if rows, err = roster.ReadXLSX(f); err != nil {
			h.fail(c, model.Invalid("unreadable workbook: %v", err))
			return
		}
	}

	batch, err := h.Roster.Import(c.Request.Context(), actorFrom(c), kind, rows)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"imported": batch.Count(),
		"students": batch.Students,
		"users":    batch.Users,
		"skipped":  batch.Skipped,
	})
}

func (h *Handler) ListRecords(c *gin.Context) {
	var f appstate.RecordFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		badRequest(c, err)
		return
	}
	v := h.State.ViewFor(actorFrom(c))
	c.JSON(http.StatusOK, appstate.FilterRecords(v.Students, v.Records, f))
}

func (h *Handler) CreateRecord(c *gin.Context) {
	var r model.TahfidzRecord
	if err := c.ShouldBindJSON(&r); err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.State.AddRecord(c.Request.Context(), actorFrom(c), r)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *Handler) DeleteRecord(c *gin.Context) {
	if err := h.State.DeleteRecord(c.Request.Context(), actorFrom(c), c.Param("id"), confirmed(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListExams(c *gin.Context) {
	exams := h.State.ViewFor(actorFrom(c)).Exams
	if id := c.Query("studentId"); id != "" {
		out := exams[:0]
		for _, e := range exams {
			if e.StudentID == id {
				out = append(out, e)
			}
		}
		exams = out
	}
	c.JSON(http.StatusOK, exams)
}

func (h *Handler) DeleteExam(c *gin.Context) {
	if err := h.State.DeleteExam(c.Request.Context(), actorFrom(c), c.Param("id"), confirmed(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
