package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tahfidz/internal/exam"
)

type liveView struct {
	*exam.Session
	PageImage string `json:"pageImage"`
	Juz       string `json:"juz"`
	Complete  bool   `json:"complete,omitempty"`
}

func present(s *exam.Session) liveView {
	return liveView{Session: s, PageImage: s.PageImage(), Juz: s.Juz()}
}

func (h *Handler) StartLive(c *gin.Context) {
	var setup exam.Setup
	if err := c.ShouldBindJSON(&setup); err != nil {
		badRequest(c, err)
		return
	}
	s, err := h.Exams.Start(c.Request.Context(), actorFrom(c), setup)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, present(s))
}

func (h *Handler) CurrentLive(c *gin.Context) {
	s, err := h.Exams.Current(c.Request.Context(), actorFrom(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, present(s))
}

// update runs fn on the caller's live session and writes the result.
func (h *Handler) update(c *gin.Context, fn func(s *exam.Session) error) {
	s, err := h.Exams.Update(c.Request.Context(), actorFrom(c).ID, fn)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, present(s))
}

type mistakeRequest struct {
	Kind exam.Mistake `json:"kind" binding:"required,oneof=dibantu ditegur berhenti"`
}

func (h *Handler) LiveMistake(c *gin.Context) {
	var req mistakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.update(c, func(s *exam.Session) error { return s.AddMistake(req.Kind) })
}

func (h *Handler) LiveUndo(c *gin.Context) {
	h.update(c, func(s *exam.Session) error {
		s.Undo()
		return nil
	})
}

// LiveNext turns the page; on the last page it reports complete so the
// client can ask to finish.
func (h *Handler) LiveNext(c *gin.Context) {
	var complete bool
	s, err := h.Exams.Update(c.Request.Context(), actorFrom(c).ID, func(s *exam.Session) error {
		complete = s.Next()
		return nil
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	v := present(s)
	v.Complete = complete
	c.JSON(http.StatusOK, v)
}

func (h *Handler) LivePrev(c *gin.Context) {
	h.update(c, func(s *exam.Session) error {
		s.Prev()
		return nil
	})
}

func (h *Handler) LiveDisplay(c *gin.Context) {
	var p exam.DisplayPatch
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, err)
		return
	}
	h.update(c, func(s *exam.Session) error {
		s.ApplyDisplay(p)
		return nil
	})
}

func (h *Handler) FinishLive(c *gin.Context) {
	e, err := h.Exams.Finish(c.Request.Context(), actorFrom(c).ID, confirmed(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *Handler) CancelLive(c *gin.Context) {
	if err := h.Exams.Cancel(c.Request.Context(), actorFrom(c).ID, confirmed(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
