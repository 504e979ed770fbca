// Package report aggregates records and attendance into the periodic
// recaps and report cards, and renders them as print-ready workbooks.
package report

import (
	"math"
	"sort"
	"strconv"

	"tahfidz/internal/model"
)

// CardHistoryLimit caps the submissions listed on a report card.
const CardHistoryLimit = 15

// Predikat names an average grade value.
func Predikat(avg float64) string {
	switch {
	case avg == 0:
		return "-"
	case avg >= 3.8:
		return "Mumtaz"
	case avg >= 3.0:
		return "Jayyid Jiddan"
	case avg >= 2.0:
		return "Jayyid"
	default:
		return "Maqbul"
	}
}

func averageGrade(records []model.TahfidzRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	total := 0
	for _, r := range records {
		total += r.Grade.Value()
	}
	return float64(total) / float64(len(records))
}

func inPeriod(records []model.TahfidzRecord, studentID string, p Period) []model.TahfidzRecord {
	var out []model.TahfidzRecord
	for _, r := range records {
		if r.StudentID == studentID && p.Contains(r.Date) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func countType(records []model.TahfidzRecord, t model.RecordType) int {
	n := 0
	for _, r := range records {
		if r.Type == t {
			n++
		}
	}
	return n
}

// RecapRow is one student line of the teacher recap.
type RecapRow struct {
	StudentID       string  `json:"studentId"`
	Name            string  `json:"name"`
	Class           string  `json:"class"`
	Ziyadah         int     `json:"ziyadah"`
	Murojaah        int     `json:"murojaah"`
	Average         float64 `json:"average"`
	Predikat        string  `json:"predikat"`
	LastAchievement string  `json:"lastAchievement"`
}

// Recap summarizes each student's submissions in the period.
func Recap(students []model.Student, records []model.TahfidzRecord, p Period) []RecapRow {
	rows := make([]RecapRow, 0, len(students))
	for _, s := range students {
		recs := inPeriod(records, s.ID, p)
		avg := averageGrade(recs)
		row := RecapRow{
			StudentID:       s.ID,
			Name:            s.Name,
			Class:           s.Class,
			Ziyadah:         countType(recs, model.RecordZiyadah),
			Murojaah:        countType(recs, model.RecordMurojaah),
			Average:         math.Round(avg*100) / 100,
			Predikat:        Predikat(avg),
			LastAchievement: "-",
		}
		for i := len(recs) - 1; i >= 0; i-- {
			if recs[i].Type == model.RecordZiyadah {
				row.LastAchievement = recs[i].Surah + " : " + strconv.Itoa(recs[i].AyahEnd)
				break
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// Card is the per-student report card.
type Card struct {
	Student     model.Student         `json:"student"`
	Period      Period                `json:"period"`
	Ziyadah     int                   `json:"ziyadah"`
	Murojaah    int                   `json:"murojaah"`
	Predikat    string                `json:"predikat"`
	Records     []model.TahfidzRecord `json:"records"`
	TeacherName string                `json:"teacherName"`
}

// ReportCard builds the card for one student. Only the latest submissions
// are listed, oldest first.
func ReportCard(s model.Student, records []model.TahfidzRecord, teacherName string, p Period) Card {
	recs := inPeriod(records, s.ID, p)
	s.Password = ""
	c := Card{
		Student:     s,
		Period:      p,
		Ziyadah:     countType(recs, model.RecordZiyadah),
		Murojaah:    countType(recs, model.RecordMurojaah),
		Predikat:    Predikat(averageGrade(recs)),
		TeacherName: teacherName,
	}
	if len(recs) > CardHistoryLimit {
		recs = recs[len(recs)-CardHistoryLimit:]
	}
	c.Records = recs
	if c.TeacherName == "" {
		c.TeacherName = "Guru Halaqah"
	}
	return c
}

// TeacherAttendanceRow counts one teacher's marks in the period.
type TeacherAttendanceRow struct {
	TeacherID  string `json:"teacherId"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Present    int    `json:"present"`
	Sick       int    `json:"sick"`
	Permission int    `json:"permission"`
	Alpha      int    `json:"alpha"`
	Rate       string `json:"rate"`
}

// TeacherAttendance tallies teacher marks per status.
func TeacherAttendance(users []model.User, marks []model.Attendance, p Period) []TeacherAttendanceRow {
	var rows []TeacherAttendanceRow
	for _, u := range users {
		if u.Role != model.RoleTeacher {
			continue
		}
		row := TeacherAttendanceRow{TeacherID: u.ID, Name: u.Name, Phone: u.PhoneNumber, Rate: "-"}
		if row.Phone == "" {
			row.Phone = "-"
		}
		for _, a := range marks {
			if a.UserID != u.ID || a.Type != model.SubjectTeacher || !p.Contains(a.Date) {
				continue
			}
			switch a.Status {
			case model.StatusPresent:
				row.Present++
			case model.StatusSick:
				row.Sick++
			case model.StatusPermission:
				row.Permission++
			case model.StatusAlpha:
				row.Alpha++
			}
		}
		if row.Present > 0 {
			total := row.Present + row.Sick + row.Permission + row.Alpha
			row.Rate = strconv.Itoa(int(math.Round(float64(row.Present)/float64(total)*100))) + "%"
		}
		rows = append(rows, row)
	}
	return rows
}

// Summary is the dashboard for one viewer.
type Summary struct {
	Students    int          `json:"students"`
	AverageJuz  float64      `json:"averageJuz"`
	Ziyadah     int          `json:"ziyadah"`
	Murojaah    int          `json:"murojaah"`
	RecentExams []model.Exam `json:"recentExams"`
	Connection  string       `json:"connection"`
}

// RecentExamLimit is how many exams the dashboard lists.
const RecentExamLimit = 5

// Dashboard summarizes already scope-filtered data.
func Dashboard(students []model.Student, records []model.TahfidzRecord, exams []model.Exam, connection string) Summary {
	s := Summary{
		Students:   len(students),
		Ziyadah:    countType(records, model.RecordZiyadah),
		Murojaah:   countType(records, model.RecordMurojaah),
		Connection: connection,
	}
	if len(students) > 0 {
		total := 0.0
		for _, st := range students {
			total += st.TotalJuz
		}
		s.AverageJuz = math.Round(total/float64(len(students))*10) / 10
	}
	recent := append([]model.Exam(nil), exams...)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].Date > recent[j].Date })
	if len(recent) > RecentExamLimit {
		recent = recent[:RecentExamLimit]
	}
	s.RecentExams = recent
	return s
}
