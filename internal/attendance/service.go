// Package attendance implements marking, admin approval of teacher
// absences and the magic-link shortcut used from WhatsApp.
package attendance

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"tahfidz/internal/appstate"
	"tahfidz/internal/logging"
	"tahfidz/internal/metrics"
	"tahfidz/internal/model"
	"tahfidz/internal/notify"
)

// Options configures where approval requests are sent.
type Options struct {
	PublicBaseURL string
	AdminPhone    string
	AdminEmail    string
	Mailer        *notify.Mailer
}

// Service coordinates attendance marks and approvals.
type Service struct {
	state *appstate.Controller
	opts  Options
	log   *zap.Logger
}

// NewService creates a service over the application state.
func NewService(state *appstate.Controller, opts Options, logger *zap.Logger) *Service {
	return &Service{state: state, opts: opts, log: logging.OrNop(logger)}
}

// MarkRequest is one attendance mark. Date defaults to today.
type MarkRequest struct {
	UserID  string                 `json:"userId" binding:"required"`
	Date    string                 `json:"date"`
	Session model.Session          `json:"session" binding:"required,oneof=pagi malam"`
	Status  model.AttendanceStatus `json:"status" binding:"required,oneof=present sick permission alpha"`
	Type    model.SubjectType      `json:"type" binding:"required,oneof=student teacher"`
}

// Result is a stored mark plus the WhatsApp link the caller should offer
// to open, if any.
type Result struct {
	Attendance model.Attendance `json:"attendance"`
	ShareLink  string           `json:"shareLink,omitempty"`
}

// Mark upserts the mark for (person, date, type, session). A teacher
// reporting their own sickness or permission waits for admin approval.
func (s *Service) Mark(ctx context.Context, actor model.User, req MarkRequest) (Result, error) {
	if actor.Role != model.RoleAdmin && actor.Role != model.RoleTeacher {
		return Result{}, model.ErrForbidden
	}
	if !req.Status.Valid() {
		return Result{}, model.Invalid("unknown status %q", req.Status)
	}
	if req.Session != model.SessionPagi && req.Session != model.SessionMalam {
		return Result{}, model.Invalid("unknown session %q", req.Session)
	}
	if req.Date == "" {
		req.Date = model.Today(s.state.Now())
	} else if _, ok := model.ParseDate(req.Date); !ok {
		return Result{}, model.Invalid("date must be yyyy-mm-dd")
	}

	a := model.Attendance{
		UserID:  req.UserID,
		Date:    req.Date,
		Session: req.Session,
		Status:  req.Status,
		Type:    req.Type,
	}
	if a.Type == model.SubjectTeacher && actor.Role == model.RoleTeacher && actor.ID == a.UserID && a.Status.Excused() {
		a.ApprovalStatus = model.ApprovalPending
	}

	err := s.state.Mutate(ctx, func(d *model.Collections) ([]appstate.Change, error) {
		if err := canMark(actor, d, a); err != nil {
			return nil, err
		}
		a.ID = model.NewID("a")
		for i := range d.Attendance {
			if d.Attendance[i].Key() == a.Key() {
				a.ID = d.Attendance[i].ID
				d.Attendance[i] = a
				return []appstate.Change{{Action: model.ActionMarkAttendance, Payload: a}}, nil
			}
		}
		d.Attendance = append(d.Attendance, a)
		return []appstate.Change{{Action: model.ActionMarkAttendance, Payload: a}}, nil
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{Attendance: a}
	if a.ApprovalStatus == model.ApprovalPending {
		text := notify.PermissionRequest(s.opts.PublicBaseURL, a, actor.Name)
		res.ShareLink = notify.ShareLink(s.opts.AdminPhone, text)
		s.mailAdmin(ctx, text)
		s.log.Info("approval requested", zap.String("attendance_id", a.ID), zap.String("teacher_id", a.UserID))
	}
	return res, nil
}

func canMark(actor model.User, d *model.Collections, a model.Attendance) error {
	switch a.Type {
	case model.SubjectStudent:
		if !hasStudent(d.Students, a.UserID) {
			return model.ErrNotFound
		}
		if actor.Role != model.RoleAdmin && !model.CanSeeStudent(actor, d.Students, a.UserID) {
			return model.ErrForbidden
		}
	case model.SubjectTeacher:
		u, ok := findUser(d.Users, a.UserID)
		if !ok || u.Role != model.RoleTeacher {
			return model.ErrNotFound
		}
		if actor.Role != model.RoleAdmin && actor.ID != a.UserID {
			return model.ErrForbidden
		}
	default:
		return model.Invalid("unknown attendance type %q", a.Type)
	}
	return nil
}

func (s *Service) mailAdmin(ctx context.Context, text string) {
	if !s.opts.Mailer.Enabled() || s.opts.AdminEmail == "" {
		return
	}
	go func(ctx context.Context) {
		// best effort: the WhatsApp link is the primary channel
		if err := s.opts.Mailer.Send(ctx, s.opts.AdminEmail, notify.Subject(text), text); err != nil {
			s.log.Warn("admin copy not mailed", zap.Error(err))
		}
	}(context.WithoutCancel(ctx))
}

// Decide approves or rejects a pending mark. Only the approval changes;
// the reported status stays as submitted.
func (s *Service) Decide(ctx context.Context, actor model.User, id string, approve bool) (Result, error) {
	if actor.Role != model.RoleAdmin {
		return Result{}, model.ErrForbidden
	}
	decision := decisionFor(approve)

	var (
		a     model.Attendance
		phone string
	)
	err := s.state.Mutate(ctx, func(d *model.Collections) ([]appstate.Change, error) {
		i := indexOf(d.Attendance, id)
		if i < 0 {
			return nil, model.ErrNotFound
		}
		if d.Attendance[i].ApprovalStatus != model.ApprovalPending {
			return nil, model.ErrNotPending
		}
		d.Attendance[i].ApprovalStatus = decision
		a = d.Attendance[i]
		if u, ok := findUser(d.Users, a.UserID); ok {
			phone = u.PhoneNumber
		}
		return []appstate.Change{{Action: model.ActionMarkAttendance, Payload: a}}, nil
	})
	if err != nil {
		return Result{}, err
	}
	metrics.ApprovalDecisions.WithLabelValues(string(decision), "admin").Inc()

	res := Result{Attendance: a}
	if notify.CleanPhone(phone) != "" {
		res.ShareLink = notify.ShareLink(phone, notify.DecisionNotice(a))
	}
	return res, nil
}

// approvalUpdate is the partial markAttendance payload sent by magic links.
type approvalUpdate struct {
	ID             string               `json:"id"`
	ApprovalStatus model.ApprovalStatus `json:"approvalStatus"`
}

// ApplyMagicLink handles an approve/reject link opened by the admin. The
// decision is applied locally when the mark is pending. Marks unknown to
// this process are still forwarded to the spreadsheet.
func (s *Service) ApplyMagicLink(ctx context.Context, action, id string) (model.ApprovalStatus, error) {
	var decision model.ApprovalStatus
	switch strings.ToLower(action) {
	case "approve":
		decision = model.ApprovalApproved
	case "reject":
		decision = model.ApprovalRejected
	default:
		return "", model.Invalid("action must be approve or reject")
	}
	if strings.TrimSpace(id) == "" {
		return "", model.Invalid("id is required")
	}

	err := s.state.Mutate(ctx, func(d *model.Collections) ([]appstate.Change, error) {
		if i := indexOf(d.Attendance, id); i >= 0 {
			if d.Attendance[i].ApprovalStatus != model.ApprovalPending {
				return nil, model.ErrNotPending
			}
			d.Attendance[i].ApprovalStatus = decision
		}
		return []appstate.Change{{Action: model.ActionMarkAttendance, Payload: approvalUpdate{ID: id, ApprovalStatus: decision}}}, nil
	})
	if err != nil {
		return "", err
	}
	metrics.ApprovalDecisions.WithLabelValues(string(decision), "magic_link").Inc()
	s.log.Info("approval applied from link", zap.String("attendance_id", id), zap.String("decision", string(decision)))
	return decision, nil
}

func decisionFor(approve bool) model.ApprovalStatus {
	if approve {
		return model.ApprovalApproved
	}
	return model.ApprovalRejected
}

// Filter narrows marks to a date, session and subject type. Empty fields
// match everything.
func Filter(marks []model.Attendance, date string, session model.Session, typ model.SubjectType) []model.Attendance {
	var out []model.Attendance
	for _, a := range marks {
		if date != "" && a.Date != date {
			continue
		}
		if session != "" && a.Session != session {
			continue
		}
		if typ != "" && a.Type != typ {
			continue
		}
		out = append(out, a)
	}
	return out
}

func indexOf(marks []model.Attendance, id string) int {
	for i := range marks {
		if marks[i].ID == id {
			return i
		}
	}
	return -1
}

func hasStudent(students []model.Student, id string) bool {
	for _, s := range students {
		if s.ID == id {
			return true
		}
	}
	return false
}

func findUser(users []model.User, id string) (model.User, bool) {
	for _, u := range users {
		if u.ID == id {
			return u, true
		}
	}
	return model.User{}, false
}
