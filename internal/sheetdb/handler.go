package sheetdb

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tahfidz/internal/logging"
	"tahfidz/internal/model"
)

// TokenHeader carries the shared secret when one is configured.
const TokenHeader = "X-Sheet-Token"

type postRequest struct {
	Action model.Action    `json:"action" binding:"required"`
	Data   json.RawMessage `json:"data"`
}

// Handler serves a Book over HTTP.
type Handler struct {
	book  *Book
	token string
	log   *zap.Logger
}

// NewHandler wraps book. An empty token disables the header check.
func NewHandler(book *Book, token string, logger *zap.Logger) *Handler {
	return &Handler{book: book, token: token, log: logging.OrNop(logger)}
}

// Register mounts the endpoint on r.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/healthz", h.Healthz)
	r.GET("/", h.authorize, h.Get)
	r.POST("/", h.authorize, h.Post)
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) authorize(c *gin.Context) {
	if h.token == "" {
		return
	}
	got := c.GetHeader(TokenHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, Reply{Result: "error", Error: "unauthorized"})
	}
}

// Get returns every sheet as JSON.
func (h *Handler) Get(c *gin.Context) {
	data, err := h.book.Read(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

// Post applies one action.
func (h *Handler) Post(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Reply{Result: "error", Error: err.Error()})
		return
	}
	reply, err := h.book.Apply(c.Request.Context(), req.Action, req.Data)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrBusy):
		c.JSON(http.StatusServiceUnavailable, Reply{Result: "error", Error: "Server Busy (Lock Timeout)"})
	case errors.Is(err, model.ErrInvalid), errors.Is(err, ErrUnknownAction):
		c.JSON(http.StatusBadRequest, Reply{Result: "error", Error: err.Error()})
	default:
		h.log.Error("workbook request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Reply{Result: "error", Error: err.Error()})
	}
}
