package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"tahfidz/internal/model"
	"tahfidz/internal/report"
)

func (h *Handler) period(c *gin.Context) (report.Period, error) {
	key := c.Query("period")
	if key == "" {
		key = report.CurrentMonth(h.State.Now())
	}
	return report.ParsePeriod(key)
}

func wantsXLSX(c *gin.Context) bool {
	return c.Query("format") == "xlsx"
}

// sendXLSX renders a workbook into memory so a failure still yields a
// JSON error instead of a truncated download.
func (h *Handler) sendXLSX(c *gin.Context, name string, write func(w io.Writer) error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, name))
	c.Data(http.StatusOK, report.ContentType, buf.Bytes())
}

// RecapReport lists every student in scope. Admins may narrow it to one
// teacher with ?teacherId.
func (h *Handler) RecapReport(c *gin.Context) {
	p, err := h.period(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	actor := actorFrom(c)
	v := h.State.ViewFor(actor)
	students := v.Students
	teacherName := actor.Name
	if actor.Role == model.RoleAdmin {
		teacherName = "Semua Halaqah"
		if id := c.Query("teacherId"); id != "" {
			filtered := students[:0]
			for _, s := range students {
				if s.TeacherID == id {
					filtered = append(filtered, s)
				}
			}
			students = filtered
			teacherName = h.userName(id)
		}
	}
	rows := report.Recap(students, v.Records, p)
	if wantsXLSX(c) {
		h.sendXLSX(c, "rekap-"+p.Key, func(w io.Writer) error {
			return report.RecapXLSX(w, teacherName, p, rows, h.State.Now())
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"period": p, "teacherName": teacherName, "rows": rows})
}

// CardReport builds one student's card. Parents get their child's card
// without naming it.
func (h *Handler) CardReport(c *gin.Context) {
	p, err := h.period(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	actor := actorFrom(c)
	id := c.Query("studentId")
	if id == "" && actor.Role == model.RoleParent {
		id = actor.ChildID
	}
	if id == "" {
		h.fail(c, model.Invalid("studentId is required"))
		return
	}
	v := h.State.ViewFor(actor)
	var (
		student model.Student
		found   bool
	)
	for _, s := range v.Students {
		if s.ID == id {
			student, found = s, true
			break
		}
	}
	if !found {
		h.fail(c, model.ErrNotFound)
		return
	}
	card := report.ReportCard(student, v.Records, h.userName(student.TeacherID), p)
	if wantsXLSX(c) {
		h.sendXLSX(c, "rapor-"+student.NIS+"-"+p.Key, func(w io.Writer) error {
			return report.CardXLSX(w, card, h.State.Now())
		})
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *Handler) TeacherAttendanceReport(c *gin.Context) {
	p, err := h.period(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	d := h.State.Snapshot()
	rows := report.TeacherAttendance(d.Users, d.Attendance, p)
	if wantsXLSX(c) {
		h.sendXLSX(c, "absensi-guru-"+p.Key, func(w io.Writer) error {
			return report.TeacherAttendanceXLSX(w, p, rows, h.State.Now())
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"period": p, "rows": rows})
}

func (h *Handler) userName(id string) string {
	for _, u := range h.State.Snapshot().Users {
		if u.ID == id {
			return u.Name
		}
	}
	return ""
}
