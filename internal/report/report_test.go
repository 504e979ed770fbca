package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"tahfidz/internal/model"
)

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		key       string
		wantStart string
		wantEnd   string
		wantLabel string
		wantErr   bool
	}{
		{key: "2025-02", wantStart: "2025-02-01", wantEnd: "2025-02-28", wantLabel: "Bulan Februari 2025"},
		{key: "2024-12", wantStart: "2024-12-01", wantEnd: "2024-12-31", wantLabel: "Bulan Desember 2024"},
		{key: "2025-W01", wantStart: "2024-12-30", wantEnd: "2025-01-05", wantLabel: "Pekan ke-1 (30 Des - 5 Jan 2025)"},
		{key: "2025-W10", wantStart: "2025-03-03", wantEnd: "2025-03-09", wantLabel: "Pekan ke-10 (3 Mar - 9 Mar 2025)"},
		{key: "2025-13", wantErr: true},
		{key: "2025-W60", wantErr: true},
		{key: "kemarin", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			p, err := ParsePeriod(tt.key)
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, p.Start.Format(model.DateLayout))
			assert.Equal(t, tt.wantEnd, p.End.Format(model.DateLayout))
			assert.Equal(t, tt.wantLabel, p.Label)
		})
	}
}

func TestCurrentPeriodKeys(t *testing.T) {
	now := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-03", CurrentMonth(now))
	assert.Equal(t, "2025-W10", CurrentWeek(now))

	p, err := ParsePeriod(CurrentWeek(now))
	require.NoError(t, err)
	assert.True(t, p.Contains("2025-03-04"))
	assert.True(t, p.Contains("2025-03-09T00:00:00.000Z"))
	assert.False(t, p.Contains("2025-03-10"))
	assert.False(t, p.Contains(""))
}

func TestPredikat(t *testing.T) {
	assert.Equal(t, "-", Predikat(0))
	assert.Equal(t, "Mumtaz", Predikat(4))
	assert.Equal(t, "Mumtaz", Predikat(3.8))
	assert.Equal(t, "Jayyid Jiddan", Predikat(3.5))
	assert.Equal(t, "Jayyid", Predikat(2))
	assert.Equal(t, "Maqbul", Predikat(1.5))
}

var (
	students = []model.Student{
		{ID: "s1", Name: "Fulan bin Ahmad", NIS: "2024001", Class: "7A", TeacherID: "u2", TotalJuz: 2, Password: "123"},
		{ID: "s2", Name: "Zaid bin Khalid", NIS: "2024002", Class: "7A", TeacherID: "u2", TotalJuz: 1},
	}
	records = []model.TahfidzRecord{
		{ID: "r1", StudentID: "s1", Date: "2025-03-02", Type: model.RecordZiyadah, Surah: "Al-Baqarah", AyahStart: 1, AyahEnd: 5, Grade: model.GradeLancar},
		{ID: "r2", StudentID: "s1", Date: "2025-03-05", Type: model.RecordZiyadah, Surah: "Al-Baqarah", AyahStart: 6, AyahEnd: 10, Grade: model.GradeLancarBersyarat},
		{ID: "r3", StudentID: "s1", Date: "2025-03-04", Type: model.RecordMurojaah, Surah: "An-Naba'", AyahStart: 1, AyahEnd: 40, Grade: model.GradeLancar},
		{ID: "r4", StudentID: "s1", Date: "2025-02-27", Type: model.RecordZiyadah, Surah: "Al-Fatihah", AyahStart: 1, AyahEnd: 7, Grade: model.GradeUlang},
	}
)

func TestRecap(t *testing.T) {
	p, err := ParsePeriod("2025-03")
	require.NoError(t, err)

	rows := Recap(students, records, p)
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].Ziyadah)
	assert.Equal(t, 1, rows[0].Murojaah)
	assert.Equal(t, 3.67, rows[0].Average)
	assert.Equal(t, "Jayyid Jiddan", rows[0].Predikat)
	assert.Equal(t, "Al-Baqarah : 10", rows[0].LastAchievement)

	assert.Equal(t, 0, rows[1].Ziyadah)
	assert.Equal(t, "-", rows[1].Predikat)
	assert.Equal(t, "-", rows[1].LastAchievement)
}

func TestReportCard(t *testing.T) {
	p, err := ParsePeriod("2025-03")
	require.NoError(t, err)

	c := ReportCard(students[0], records, "", p)
	assert.Empty(t, c.Student.Password)
	assert.Equal(t, "Guru Halaqah", c.TeacherName)
	require.Len(t, c.Records, 3)
	assert.Equal(t, "r1", c.Records[0].ID)
	assert.Equal(t, "r2", c.Records[2].ID)

	var many []model.TahfidzRecord
	for d := 1; d <= 20; d++ {
		many = append(many, model.TahfidzRecord{StudentID: "s1", Date: time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC).Format(model.DateLayout), Type: model.RecordMurojaah, Grade: model.GradeLancar})
	}
	c = ReportCard(students[0], many, "Ust. Abdullah", p)
	require.Len(t, c.Records, CardHistoryLimit)
	assert.Equal(t, "2025-03-06", c.Records[0].Date)
	assert.Equal(t, 20, c.Murojaah)
	assert.Equal(t, "Mumtaz", c.Predikat)
}

func TestTeacherAttendance(t *testing.T) {
	p, err := ParsePeriod("2025-03")
	require.NoError(t, err)
	users := []model.User{
		{ID: "u1", Name: "Super Admin", Role: model.RoleAdmin},
		{ID: "u2", Name: "Ust. Abdullah", Role: model.RoleTeacher, PhoneNumber: "62822222222"},
		{ID: "u4", Name: "Ust. Hasan", Role: model.RoleTeacher},
	}
	marks := []model.Attendance{
		{UserID: "u2", Date: "2025-03-01", Session: model.SessionPagi, Status: model.StatusPresent, Type: model.SubjectTeacher},
		{UserID: "u2", Date: "2025-03-01", Session: model.SessionMalam, Status: model.StatusPresent, Type: model.SubjectTeacher},
		{UserID: "u2", Date: "2025-03-02", Session: model.SessionPagi, Status: model.StatusSick, Type: model.SubjectTeacher},
		{UserID: "u2", Date: "2025-04-01", Session: model.SessionPagi, Status: model.StatusAlpha, Type: model.SubjectTeacher},
		{UserID: "u4", Date: "2025-03-01", Session: model.SessionPagi, Status: model.StatusPermission, Type: model.SubjectTeacher},
	}
	rows := TeacherAttendance(users, marks, p)
	require.Len(t, rows, 2)
	assert.Equal(t, TeacherAttendanceRow{TeacherID: "u2", Name: "Ust. Abdullah", Phone: "62822222222", Present: 2, Sick: 1, Rate: "67%"}, rows[0])
	assert.Equal(t, TeacherAttendanceRow{TeacherID: "u4", Name: "Ust. Hasan", Phone: "-", Permission: 1, Rate: "-"}, rows[1])
}

func TestDashboard(t *testing.T) {
	var exams []model.Exam
	for d := 1; d <= 7; d++ {
		exams = append(exams, model.Exam{ID: string(rune('a' + d)), Date: time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC).Format(model.DateLayout)})
	}
	s := Dashboard(students, records, exams, "online")
	assert.Equal(t, 2, s.Students)
	assert.Equal(t, 1.5, s.AverageJuz)
	assert.Equal(t, 3, s.Ziyadah)
	assert.Equal(t, 1, s.Murojaah)
	require.Len(t, s.RecentExams, RecentExamLimit)
	assert.Equal(t, "2025-03-07", s.RecentExams[0].Date)

	empty := Dashboard(nil, nil, nil, "no_url")
	assert.Zero(t, empty.AverageJuz)
	assert.Empty(t, empty.RecentExams)
}

func TestRecapXLSX(t *testing.T) {
	p, err := ParsePeriod("2025-03")
	require.NoError(t, err)

	var buf bytes.Buffer
	signed := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	require.NoError(t, RecapXLSX(&buf, "Ust. Abdullah", p, Recap(students, records, p), signed))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Rekap")
	require.NoError(t, err)
	assert.Equal(t, Institution, rows[0][0])
	assert.Equal(t, "LAPORAN REKAPITULASI TAHFIDZ", rows[2][0])
	assert.Equal(t, "Bulan Maret 2025", rows[3][0])

	var header, first []string
	for i, r := range rows {
		if len(r) > 0 && r[0] == "No" {
			header, first = r, rows[i+1]
			break
		}
	}
	require.NotNil(t, header)
	assert.Equal(t, "Nama Santri", header[1])
	assert.Equal(t, []string{"1", "Fulan bin Ahmad", "7A", "2x", "1x", "Al-Baqarah : 10", "Jayyid Jiddan"}, first)

	found := false
	for _, r := range rows {
		for _, v := range r {
			if v == "Garut, 31 Maret 2025" {
				found = true
			}
		}
	}
	assert.True(t, found, "signature date missing")
}

func TestEmptyExports(t *testing.T) {
	p, err := ParsePeriod("2025-W10")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, TeacherAttendanceXLSX(&buf, p, nil, time.Now()))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Kehadiran Guru")
	require.NoError(t, err)

	joined := ""
	for _, r := range rows {
		if len(r) > 0 {
			joined += r[0] + "\n"
		}
	}
	assert.Contains(t, joined, "Tidak ada data guru.")

	buf.Reset()
	require.NoError(t, CardXLSX(&buf, ReportCard(students[1], nil, "Ust. Abdullah", p), time.Now()))
	assert.NotZero(t, buf.Len())
}
