// Package api is the HTTP surface of the tahfidz service.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tahfidz/internal/appstate"
	"tahfidz/internal/attendance"
	"tahfidz/internal/auth"
	"tahfidz/internal/cloudinary"
	"tahfidz/internal/exam"
	"tahfidz/internal/journal"
	"tahfidz/internal/localstore"
	"tahfidz/internal/logging"
	"tahfidz/internal/model"
	"tahfidz/internal/roster"
)

const actorKey = "actor"

// TokenConfig controls issued access tokens.
type TokenConfig struct {
	SigningKey string
	Issuer     string
	TTL        time.Duration
}

// Deps are the services behind the handlers. Cloud and Journal may be nil.
type Deps struct {
	State      *appstate.Controller
	Attendance *attendance.Service
	Exams      *exam.Manager
	Roster     *roster.Importer
	Sessions   *auth.Sessions
	KV         localstore.KV
	Cloud      *cloudinary.Client
	Journal    *journal.Syncer
	Tokens     TokenConfig
}

type Handler struct {
	Deps
	log *zap.Logger
}

func New(d Deps, logger *zap.Logger) *Handler {
	return &Handler{Deps: d, log: logging.OrNop(logger)}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/v1")
	v1.POST("/auth/login", h.Login)
	v1.GET("/approvals", h.MagicLink)
	v1.GET("/status", h.Status)

	authed := v1.Group("")
	authed.Use(auth.Bearer(h.Tokens.SigningKey, h.Tokens.Issuer, h.Sessions), h.resolveActor)

	admin := auth.RequireRole(model.RoleAdmin)
	teacher := auth.RequireRole(model.RoleTeacher)
	staff := auth.RequireRole(model.RoleAdmin, model.RoleTeacher)

	authed.POST("/auth/logout", h.Logout)
	authed.GET("/me", h.Me)
	authed.PATCH("/me", h.UpdateMe)
	authed.GET("/me/view", h.GetView)
	authed.PUT("/me/view", h.PutView)
	authed.GET("/dashboard", h.Dashboard)

	authed.GET("/students", h.ListStudents)
	authed.POST("/students", admin, h.CreateStudent)
	authed.DELETE("/students/:id", admin, h.DeleteStudent)
	authed.GET("/users", admin, h.ListUsers)
	authed.POST("/users", admin, h.CreateUser)
	authed.DELETE("/users/:id", admin, h.DeleteUser)
	authed.POST("/roster/import", admin, h.ImportRoster)

	authed.GET("/records", h.ListRecords)
	authed.POST("/records", teacher, h.CreateRecord)
	authed.DELETE("/records/:id", staff, h.DeleteRecord)

	authed.GET("/attendance", h.ListAttendance)
	authed.POST("/attendance", staff, h.MarkAttendance)
	authed.POST("/attendance/:id/decision", admin, h.DecideAttendance)

	authed.GET("/exams", h.ListExams)
	authed.DELETE("/exams/:id", staff, h.DeleteExam)
	live := authed.Group("/exams/live", teacher)
	live.POST("", h.StartLive)
	live.GET("", h.CurrentLive)
	live.POST("/mistakes", h.LiveMistake)
	live.POST("/undo", h.LiveUndo)
	live.POST("/next", h.LiveNext)
	live.POST("/prev", h.LivePrev)
	live.PATCH("/display", h.LiveDisplay)
	live.POST("/finish", h.FinishLive)
	live.POST("/cancel", h.CancelLive)

	authed.GET("/reports/recap", staff, h.RecapReport)
	authed.GET("/reports/card", h.CardReport)
	authed.GET("/reports/teacher-attendance", admin, h.TeacherAttendanceReport)

	authed.POST("/sync/refresh", admin, h.Refresh)
	authed.GET("/sync/journal", admin, h.SyncJournal)
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status reports the spreadsheet connection state.
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connection": h.State.Connection(),
		"time":       h.State.Now().Format(time.RFC3339),
	})
}

// resolveActor reloads the caller from current data so role and scope
// changes apply to tokens issued earlier.
func (h *Handler) resolveActor(c *gin.Context) {
	claims, ok := auth.FromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	actor, err := h.State.Actor(claims.User())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "account no longer exists"})
		return
	}
	c.Set(actorKey, actor)
	c.Next()
}

func actorFrom(c *gin.Context) model.User {
	v, _ := c.Get(actorKey)
	u, _ := v.(model.User)
	return u
}

func confirmed(c *gin.Context) bool {
	ok, _ := strconv.ParseBool(c.Query("confirm"))
	return ok
}
