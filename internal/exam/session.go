// Package exam runs the live oral exam: a scoring state machine with undo,
// page navigation and display settings, persisted per examiner so a
// restart resumes where the examiner left off.
package exam

import (
	"fmt"
	"math"
	"time"

	"tahfidz/internal/model"
	"tahfidz/internal/quran"
)

type Mode string

const (
	ModeHalaman Mode = "halaman"
	ModeSurat   Mode = "surat"
)

// Mistake is one of the three penalty kinds.
type Mistake string

const (
	MistakeMajor Mistake = "dibantu"
	MistakeMinor Mistake = "ditegur"
	MistakeStop  Mistake = "berhenti"
)

// Penalties per mistake kind.
const (
	MajorPenalty = 2.0
	MinorPenalty = 1.0
	StopPenalty  = 0.5
)

// Display limits.
const (
	DefaultBrightness = 100
	MinBrightness     = 80
	MaxBrightness     = 150
	DefaultZoom       = 1.0
	MinZoom           = 0.5
	MaxZoom           = 3.0
	ZoomStep          = 0.25
)

// stateVersion guards the persisted shape of Session.
const stateVersion = 1

// Setup picks the student and the range to recite.
type Setup struct {
	StudentID string `json:"studentId" binding:"required"`
	Mode      Mode   `json:"mode" binding:"required,oneof=halaman surat"`
	StartPage int    `json:"startPage"`
	Packet    int    `json:"packet"`
	Surah     int    `json:"surah"`
}

// Display holds the page viewer settings.
type Display struct {
	FullScreen bool    `json:"fullScreen"`
	Brightness int     `json:"brightness"`
	Zoom       float64 `json:"zoom"`
}

// DefaultDisplay is the viewer state at start and after a reset.
func DefaultDisplay() Display {
	return Display{Brightness: DefaultBrightness, Zoom: DefaultZoom}
}

type snapshot struct {
	Score    float64        `json:"score"`
	Mistakes model.Mistakes `json:"mistakes"`
}

// Session is the live exam state.
type Session struct {
	Version      int            `json:"version"`
	ExaminerID   string         `json:"examinerId"`
	ExaminerName string         `json:"examinerName"`
	StudentID    string         `json:"studentId"`
	Mode         Mode           `json:"mode"`
	Start        int            `json:"start"`
	End          int            `json:"end"`
	Label        string         `json:"label"`
	Page         int            `json:"page"`
	Score        float64        `json:"score"`
	Mistakes     model.Mistakes `json:"mistakes"`
	History      []snapshot     `json:"history,omitempty"`
	Display      Display        `json:"display"`
	StartedAt    time.Time      `json:"startedAt"`
}

// NewSession validates setup and returns a session on its first page.
func NewSession(examiner model.User, setup Setup, now time.Time) (*Session, error) {
	s := &Session{
		Version:      stateVersion,
		ExaminerID:   examiner.ID,
		ExaminerName: examiner.Name,
		StudentID:    setup.StudentID,
		Mode:         setup.Mode,
		Score:        100,
		Display:      DefaultDisplay(),
		StartedAt:    now,
	}
	switch setup.Mode {
	case ModeHalaman:
		if setup.StartPage < 1 || setup.StartPage > quran.PageCount {
			return nil, model.Invalid("start page must be 1-%d", quran.PageCount)
		}
		if setup.Packet != 10 && setup.Packet != 20 {
			return nil, model.Invalid("packet must be 10 or 20 pages")
		}
		s.Start = setup.StartPage
		s.End = min(quran.PageCount, s.Start+setup.Packet-1)
		s.Label = fmt.Sprintf("Hal %d - %d", s.Start, s.End)
	case ModeSurat:
		ch, ok := quran.ChapterByNumber(setup.Surah)
		if !ok {
			return nil, model.Invalid("unknown surah %d", setup.Surah)
		}
		s.Start = ch.StartPage
		s.End = min(quran.PageCount, s.Start+2)
		s.Label = "QS. " + ch.Name
	default:
		return nil, model.Invalid("mode must be halaman or surat")
	}
	s.Page = s.Start
	return s, nil
}

// Score computes the score for a tally, never below zero.
func Score(m model.Mistakes) float64 {
	penalty := MajorPenalty*float64(m.Major) + MinorPenalty*float64(m.Minor) + StopPenalty*float64(m.Stop)
	return math.Max(0, 100-penalty)
}

// AddMistake records a mistake after saving the current score for undo.
func (s *Session) AddMistake(kind Mistake) error {
	next := s.Mistakes
	switch kind {
	case MistakeMajor:
		next.Major++
	case MistakeMinor:
		next.Minor++
	case MistakeStop:
		next.Stop++
	default:
		return model.Invalid("unknown mistake %q", kind)
	}
	s.History = append(s.History, snapshot{Score: s.Score, Mistakes: s.Mistakes})
	s.Mistakes = next
	s.Score = Score(next)
	return nil
}

// Undo reverts the last mistake. It reports false when there is nothing
// to undo.
func (s *Session) Undo() bool {
	if len(s.History) == 0 {
		return false
	}
	last := s.History[len(s.History)-1]
	s.History = s.History[:len(s.History)-1]
	s.Score = last.Score
	s.Mistakes = last.Mistakes
	return true
}

// Next moves forward one page. On the last page it stays put and reports
// that the recitation is complete.
func (s *Session) Next() (complete bool) {
	if s.Page >= s.End {
		return true
	}
	s.Page++
	return false
}

// Prev moves back one page, never before the start.
func (s *Session) Prev() {
	if s.Page > s.Start {
		s.Page--
	}
}

// DisplayPatch changes viewer settings; nil fields are left alone.
type DisplayPatch struct {
	FullScreen *bool    `json:"fullScreen"`
	Brightness *int     `json:"brightness"`
	Zoom       *float64 `json:"zoom"`
	ZoomIn     bool     `json:"zoomIn"`
	ZoomOut    bool     `json:"zoomOut"`
	Reset      bool     `json:"reset"`
}

// ApplyDisplay clamps and applies p. Reset restores brightness and zoom.
func (s *Session) ApplyDisplay(p DisplayPatch) {
	if p.Reset {
		s.Display.Brightness = DefaultBrightness
		s.Display.Zoom = DefaultZoom
	}
	if p.FullScreen != nil {
		s.Display.FullScreen = *p.FullScreen
	}
	if p.Brightness != nil {
		s.Display.Brightness = min(MaxBrightness, max(MinBrightness, *p.Brightness))
	}
	if p.Zoom != nil {
		s.Display.Zoom = clampZoom(math.Round(*p.Zoom/ZoomStep) * ZoomStep)
	}
	if p.ZoomIn {
		s.Display.Zoom = clampZoom(s.Display.Zoom + ZoomStep)
	}
	if p.ZoomOut {
		s.Display.Zoom = clampZoom(s.Display.Zoom - ZoomStep)
	}
}

func clampZoom(z float64) float64 {
	return math.Min(MaxZoom, math.Max(MinZoom, z))
}

// PageImage is the scan of the current page.
func (s *Session) PageImage() string {
	return quran.PageImageURL(s.Page)
}

// Juz labels the juz of the starting page.
func (s *Session) Juz() string {
	return fmt.Sprintf("Juz %d", quran.JuzForPage(s.Start))
}

// Result builds the exam row for a finished session.
func (s *Session) Result(date string) model.Exam {
	score := math.Round(s.Score*10) / 10
	status, notes := model.Outcome(score)
	surat := s.Label
	if s.Mode == ModeHalaman {
		surat = fmt.Sprintf("Hal %d", s.Start)
	}
	juz := s.Juz()
	return model.Exam{
		ID:        model.NewID("e"),
		StudentID: s.StudentID,
		Date:      date,
		Category:  s.Label,
		Score:     score,
		Examiner:  s.ExaminerName,
		Status:    status,
		Notes:     notes,
		Juz:       juz,
		Details: &model.ExamDetails{
			Version:  model.ExamDetailsVersion,
			Juz:      juz,
			Surat:    surat,
			Halaman:  fmt.Sprintf("%d-%d", s.Start, s.End),
			Mistakes: s.Mistakes,
		},
	}
}
