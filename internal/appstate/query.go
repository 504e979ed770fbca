package appstate

import (
	"sort"
	"strings"

	"tahfidz/internal/model"
	"tahfidz/internal/quran"
)

// View is the slice of state one user is allowed to see.
type View struct {
	Students   []model.Student       `json:"students"`
	Records    []model.TahfidzRecord `json:"records"`
	Attendance []model.Attendance    `json:"attendance"`
	Exams      []model.Exam          `json:"exams"`
}

// ViewFor filters the current state to viewer's scope.
func (c *Controller) ViewFor(viewer model.User) View {
	d := c.Snapshot()
	return View{
		Students:   model.VisibleStudents(viewer, d.Students),
		Records:    model.VisibleRecords(viewer, d.Students, d.Records),
		Attendance: model.VisibleAttendance(viewer, d.Students, d.Attendance),
		Exams:      model.VisibleExams(viewer, d.Students, d.Exams),
	}
}

// RecordFilter narrows the tahfidz log. Zero values match everything.
type RecordFilter struct {
	Type   model.RecordType `form:"type"`
	Search string           `form:"q"`
	From   string           `form:"from"`
	To     string           `form:"to"`
	Class  string           `form:"class"`
	Surah  string           `form:"surah"`
	Juz    int              `form:"juz"`
}

// FilterRecords applies f to records and sorts them newest first. The juz
// filter uses the juz in which the record's surah starts.
func FilterRecords(students []model.Student, records []model.TahfidzRecord, f RecordFilter) []model.TahfidzRecord {
	byID := make(map[string]model.Student, len(students))
	for _, s := range students {
		byID[s.ID] = s
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]model.TahfidzRecord, 0, len(records))
	for _, r := range records {
		s := byID[r.StudentID]
		switch {
		case f.Type != "" && r.Type != f.Type:
			continue
		case search != "" && !strings.Contains(strings.ToLower(s.Name), search):
			continue
		case f.Class != "" && s.Class != f.Class:
			continue
		case f.Surah != "" && r.Surah != f.Surah:
			continue
		case f.Juz != 0 && quran.JuzForSurah(r.Surah) != f.Juz:
			continue
		case f.From != "" && r.Date < f.From:
			continue
		case f.To != "" && r.Date > f.To:
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

// Teachers returns the teacher accounts without credentials.
func Teachers(users []model.User) []model.User {
	var out []model.User
	for _, u := range users {
		if u.Role == model.RoleTeacher {
			out = append(out, u.Public())
		}
	}
	return out
}
