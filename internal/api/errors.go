package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"tahfidz/internal/auth"
	"tahfidz/internal/cloudinary"
	"tahfidz/internal/exam"
	"tahfidz/internal/model"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, model.ErrInvalid), errors.As(err, &verrs):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, model.ErrNotFound), errors.Is(err, exam.ErrNoSession):
		return http.StatusNotFound
	case errors.Is(err, model.ErrConfirmationRequired),
		errors.Is(err, model.ErrNotPending),
		errors.Is(err, model.ErrConflict),
		errors.Is(err, exam.ErrSessionActive):
		return http.StatusConflict
	case errors.Is(err, cloudinary.ErrNotConfigured):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
