package exam

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"tahfidz/internal/appstate"
	"tahfidz/internal/localstore"
	"tahfidz/internal/logging"
	"tahfidz/internal/metrics"
	"tahfidz/internal/model"
)

// ErrNoSession is returned when the examiner has no live exam.
var ErrNoSession = errors.New("no live exam")

// ErrSessionActive is returned when starting while another exam runs.
var ErrSessionActive = errors.New("a live exam is already running")

// Manager keeps one live session per examiner in the local store.
type Manager struct {
	mu    sync.Mutex
	state *appstate.Controller
	kv    localstore.KV
	log   *zap.Logger
}

func NewManager(state *appstate.Controller, kv localstore.KV, logger *zap.Logger) *Manager {
	return &Manager{state: state, kv: kv, log: logging.OrNop(logger)}
}

// Start opens a live exam for a student in the examiner's halaqah.
func (m *Manager) Start(ctx context.Context, examiner model.User, setup Setup) (*Session, error) {
	if examiner.Role != model.RoleTeacher {
		return nil, model.ErrForbidden
	}
	snap := m.state.Snapshot()
	if !model.CanSeeStudent(examiner, snap.Students, setup.StudentID) {
		if !studentExists(snap.Students, setup.StudentID) {
			return nil, model.ErrNotFound
		}
		return nil, model.ErrForbidden
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, err := m.load(ctx, examiner.ID); err != nil {
		return nil, err
	} else if cur != nil {
		return nil, ErrSessionActive
	}
	s, err := NewSession(examiner, setup, m.state.Now())
	if err != nil {
		return nil, err
	}
	if err := m.save(ctx, s); err != nil {
		return nil, err
	}
	m.log.Info("live exam started",
		zap.String("examiner_id", examiner.ID),
		zap.String("student_id", s.StudentID),
		zap.String("label", s.Label))
	return s, nil
}

// Current resumes the examiner's live exam. A snapshot whose student left
// the roster is discarded.
func (m *Manager) Current(ctx context.Context, examinerID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.load(ctx, examinerID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoSession
	}
	return s, nil
}

// Update applies fn to the live session and persists the result.
func (m *Manager) Update(ctx context.Context, examinerID string, fn func(s *Session) error) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.load(ctx, examinerID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoSession
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	if err := m.save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Finish stores the result in the exam list and clears the live session.
func (m *Manager) Finish(ctx context.Context, examinerID string, confirmed bool) (model.Exam, error) {
	if !confirmed {
		return model.Exam{}, model.ErrConfirmationRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.load(ctx, examinerID)
	if err != nil {
		return model.Exam{}, err
	}
	if s == nil {
		return model.Exam{}, ErrNoSession
	}
	e := s.Result(model.Today(m.state.Now()))
	// the session must be gone before its exam exists
	if err := m.kv.Delete(ctx, localstore.LiveExamKey(examinerID)); err != nil {
		return model.Exam{}, fmt.Errorf("clear live exam: %w", err)
	}
	if err := m.state.AddExam(ctx, e); err != nil {
		if rerr := m.save(ctx, s); rerr != nil {
			m.log.Error("live exam lost after failed finish", zap.String("examiner_id", examinerID), zap.Error(rerr))
		}
		return model.Exam{}, err
	}
	metrics.ExamsFinished.WithLabelValues(string(e.Status)).Inc()
	m.log.Info("live exam finished",
		zap.String("exam_id", e.ID),
		zap.String("student_id", e.StudentID),
		zap.Float64("score", e.Score),
		zap.String("notes", e.Notes))
	return e, nil
}

// Cancel discards the live session.
func (m *Manager) Cancel(ctx context.Context, examinerID string, confirmed bool) error {
	if !confirmed {
		return model.ErrConfirmationRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.load(ctx, examinerID)
	if err != nil {
		return err
	}
	if s == nil {
		return ErrNoSession
	}
	return m.kv.Delete(ctx, localstore.LiveExamKey(examinerID))
}

func (m *Manager) load(ctx context.Context, examinerID string) (*Session, error) {
	key := localstore.LiveExamKey(examinerID)
	var s Session
	ok, err := localstore.LoadJSON(ctx, m.kv, key, &s)
	if err != nil {
		return nil, fmt.Errorf("load live exam: %w", err)
	}
	if !ok {
		return nil, nil
	}
	if s.Version != stateVersion || !studentExists(m.state.Snapshot().Students, s.StudentID) {
		m.log.Info("discarding stale live exam", zap.String("examiner_id", examinerID), zap.String("student_id", s.StudentID))
		if err := m.kv.Delete(ctx, key); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return &s, nil
}

func (m *Manager) save(ctx context.Context, s *Session) error {
	return localstore.SaveJSON(ctx, m.kv, localstore.LiveExamKey(s.ExaminerID), s)
}

func studentExists(students []model.Student, id string) bool {
	for _, s := range students {
		if s.ID == id {
			return true
		}
	}
	return false
}
