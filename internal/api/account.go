package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tahfidz/internal/appstate"
	"tahfidz/internal/auth"
	"tahfidz/internal/cloudinary"
	"tahfidz/internal/localstore"
)

// DefaultView is the page shown when a user has not picked one yet.
const DefaultView = "dashboard"

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      any       `json:"user"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	d := h.State.Snapshot()
	u, err := auth.Authenticate(d.Users, d.Students, strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		h.log.Info("login rejected", zap.String("username", req.Username))
		h.fail(c, err)
		return
	}
	tok, err := auth.Issue(u, h.Tokens.Issuer, h.Tokens.SigningKey, h.Tokens.TTL)
	if err != nil {
		h.fail(c, err)
		return
	}
	if h.Sessions != nil {
		if err := h.Sessions.Start(c.Request.Context(), tok, u); err != nil {
			h.fail(c, err)
			return
		}
	}
	h.log.Info("login", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	c.JSON(http.StatusOK, loginResponse{Token: tok.AccessToken, ExpiresAt: tok.ExpiresAt, User: u.Public()})
}

func (h *Handler) Logout(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	if h.Sessions != nil {
		if err := h.Sessions.End(c.Request.Context(), claims.ID); err != nil {
			h.fail(c, err)
			return
		}
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, actorFrom(c))
}

// UpdateMe edits the caller's profile. An avatar sent as a data URL is
// uploaded first and replaced by its hosted URL.
func (h *Handler) UpdateMe(c *gin.Context) {
	var patch appstate.ProfilePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	actor := actorFrom(c)
	if patch.Avatar != nil && cloudinary.IsDataURL(*patch.Avatar) {
		if h.Cloud == nil || !h.Cloud.Configured() {
			h.fail(c, cloudinary.ErrNotConfigured)
			return
		}
		url, err := h.Cloud.UploadAvatar(c.Request.Context(), actor.ID, *patch.Avatar)
		if err != nil {
			h.log.Warn("avatar upload failed", zap.String("user_id", actor.ID), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "avatar upload failed"})
			return
		}
		patch.Avatar = &url
	}
	u, err := h.State.UpdateProfile(c.Request.Context(), actor, patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

type viewState struct {
	View string `json:"view" binding:"required,max=32"`
}

func (h *Handler) GetView(c *gin.Context) {
	v := viewState{View: DefaultView}
	if _, err := localstore.LoadJSON(c.Request.Context(), h.KV, localstore.ViewKey(actorFrom(c).ID), &v); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) PutView(c *gin.Context) {
	var v viewState
	if err := c.ShouldBindJSON(&v); err != nil {
		badRequest(c, err)
		return
	}
	if err := localstore.SaveJSON(c.Request.Context(), h.KV, localstore.ViewKey(actorFrom(c).ID), v); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}
