package model

import (
	"regexp"
	"strings"
)

// ExamDetailsVersion is the current shape of Exam.Details.
const ExamDetailsVersion = 2

// Mistakes tallies the three penalty kinds of a live exam.
type Mistakes struct {
	Major int `json:"dibantu"`
	Minor int `json:"ditegur"`
	Stop  int `json:"berhenti"`
}

// Total is the number of recorded mistakes of any kind.
func (m Mistakes) Total() int {
	return m.Major + m.Minor + m.Stop
}

// ExamDetails is the structured outcome of a live exam.
type ExamDetails struct {
	Version  int      `json:"version,omitempty"`
	Juz      string   `json:"juz"`
	Surat    string   `json:"surat"`
	Halaman  string   `json:"halaman"`
	Mistakes Mistakes `json:"mistakes"`
}

type Exam struct {
	ID        string       `json:"id"`
	StudentID string       `json:"studentId"`
	Date      string       `json:"date"`
	Category  string       `json:"category"`
	Score     float64      `json:"score"`
	Examiner  string       `json:"examiner"`
	Status    ExamStatus   `json:"status"`
	Notes     string       `json:"notes"`
	Juz       string       `json:"juz,omitempty"`
	Details   *ExamDetails `json:"details,omitempty"`
}

var pageRange = regexp.MustCompile(`^Hal\s+(\d+)\s*-\s*(\d+)$`)

// MigrateExam converts rows stored before structured details existed (a
// flat juz column and the category label) into the current shape. Current
// rows are returned with the top-level juz filled in.
func MigrateExam(e Exam) Exam {
	if e.Details == nil {
		d := ExamDetails{Version: ExamDetailsVersion, Juz: e.Juz, Surat: e.Category}
		if d.Juz == "" {
			d.Juz = "-"
		}
		if m := pageRange.FindStringSubmatch(strings.TrimSpace(e.Category)); m != nil {
			d.Halaman = m[1] + "-" + m[2]
			d.Surat = "Hal " + m[1]
		}
		e.Details = &d
	} else if e.Details.Version == 0 {
		d := *e.Details
		d.Version = ExamDetailsVersion
		e.Details = &d
	}
	if e.Juz == "" {
		e.Juz = e.Details.Juz
	}
	return e
}

// RangeLabel is the location shown next to the juz on exam cards.
func (e Exam) RangeLabel() string {
	if e.Details == nil {
		return e.Category
	}
	if strings.HasPrefix(e.Details.Surat, "Hal") && e.Details.Halaman != "" {
		return "Hal " + e.Details.Halaman
	}
	return e.Details.Surat
}

// Outcome labels a final score: PASS from 70, REMEDIAL from 50, else FAIL.
func Outcome(score float64) (ExamStatus, string) {
	switch {
	case score >= 70:
		return ExamPass, "PASS"
	case score >= 50:
		return ExamFail, "REMEDIAL"
	default:
		return ExamFail, "FAIL"
	}
}
