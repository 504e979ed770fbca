// Package model holds the Tahfidz domain records exchanged with the
// spreadsheet endpoint. JSON tags follow the sheet column names.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the date format used by every record (yyyy-MM-dd).
const DateLayout = "2006-01-02"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleParent  Role = "parent"
)

// Grade is the qualitative assessment of a memorization submission.
type Grade string

const (
	GradeLancar          Grade = "Lancar"
	GradeLancarBersyarat Grade = "Lancar Bersyarat"
	GradeBelumLancar     Grade = "Belum Lancar"
	GradeUlang           Grade = "Ulang"
)

// Value maps the grade onto the 4..1 scale used by reports.
func (g Grade) Value() int {
	switch g {
	case GradeLancar:
		return 4
	case GradeLancarBersyarat:
		return 3
	case GradeBelumLancar:
		return 2
	default:
		return 1
	}
}

// Valid reports whether g is one of the four known grades.
func (g Grade) Valid() bool {
	switch g {
	case GradeLancar, GradeLancarBersyarat, GradeBelumLancar, GradeUlang:
		return true
	}
	return false
}

type RecordType string

const (
	RecordZiyadah  RecordType = "ziyadah"
	RecordMurojaah RecordType = "murojaah"
)

type Session string

const (
	SessionPagi  Session = "pagi"
	SessionMalam Session = "malam"
)

// Label is the capitalized session name used in messages.
func (s Session) Label() string {
	if s == SessionMalam {
		return "Malam"
	}
	return "Pagi"
}

type AttendanceStatus string

const (
	StatusPresent    AttendanceStatus = "present"
	StatusSick       AttendanceStatus = "sick"
	StatusPermission AttendanceStatus = "permission"
	StatusAlpha      AttendanceStatus = "alpha"
)

// Valid reports whether s is a known attendance status.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusSick, StatusPermission, StatusAlpha:
		return true
	}
	return false
}

// Excused reports whether the status is sick or permission.
func (s AttendanceStatus) Excused() bool {
	return s == StatusSick || s == StatusPermission
}

type ApprovalStatus string

const (
	ApprovalNone     ApprovalStatus = ""
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type SubjectType string

const (
	SubjectStudent SubjectType = "student"
	SubjectTeacher SubjectType = "teacher"
)

type ExamStatus string

const (
	ExamPass ExamStatus = "pass"
	ExamFail ExamStatus = "fail"
)

// User is an account row. Parents created from a student login carry
// ChildID equal to their own ID.
type User struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Role        Role   `json:"role" validate:"oneof=admin teacher parent"`
	Username    string `json:"username,omitempty" validate:"required"`
	Password    string `json:"password,omitempty" validate:"required"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Email       string `json:"email,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	ChildID     string `json:"childId,omitempty"`
}

// StudentLogin reports whether the user is a parent session synthesized
// from the student's own credentials.
func (u User) StudentLogin() bool {
	return u.Role == RoleParent && u.ChildID != "" && u.ChildID == u.ID
}

// Public returns a copy without the credential.
func (u User) Public() User {
	u.Password = ""
	return u
}

type Student struct {
	ID        string  `json:"id" validate:"required"`
	Name      string  `json:"name" validate:"required"`
	NIS       string  `json:"nis"`
	Class     string  `json:"class"`
	Halaqah   string  `json:"halaqah"`
	TeacherID string  `json:"teacherId" validate:"required"`
	TotalJuz  float64 `json:"totalJuz" validate:"gte=0,lte=30"`
	Username  string  `json:"username,omitempty"`
	Password  string  `json:"password,omitempty"`
}

type TahfidzRecord struct {
	ID        string     `json:"id"`
	StudentID string     `json:"studentId"`
	Date      string     `json:"date"`
	Type      RecordType `json:"type"`
	Surah     string     `json:"surah"`
	AyahStart int        `json:"ayahStart"`
	AyahEnd   int        `json:"ayahEnd"`
	Grade     Grade      `json:"grade"`
	Notes     string     `json:"notes,omitempty"`
}

type Attendance struct {
	ID             string           `json:"id"`
	UserID         string           `json:"userId"`
	Date           string           `json:"date"`
	Session        Session          `json:"session"`
	Status         AttendanceStatus `json:"status"`
	ApprovalStatus ApprovalStatus   `json:"approvalStatus,omitempty"`
	Type           SubjectType      `json:"type"`
}

// AttendanceKey identifies the single attendance mark for a person on a
// date and session.
type AttendanceKey struct {
	UserID  string
	Date    string
	Type    SubjectType
	Session Session
}

// Key returns the upsert key of the mark.
func (a Attendance) Key() AttendanceKey {
	return AttendanceKey{UserID: a.UserID, Date: a.Date, Type: a.Type, Session: a.Session}
}

// Collections is the full data set served by the spreadsheet endpoint.
type Collections struct {
	Users      []User          `json:"users"`
	Students   []Student       `json:"students"`
	Records    []TahfidzRecord `json:"records"`
	Attendance []Attendance    `json:"attendance"`
	Exams      []Exam          `json:"exams"`
}

// Sheet names as used by the deleteData action.
const (
	SheetUsers      = "Users"
	SheetStudents   = "Students"
	SheetRecords    = "Records"
	SheetAttendance = "Attendance"
	SheetExams      = "Exams"
)

// Action names a mutation understood by the spreadsheet endpoint.
type Action string

const (
	ActionCreateUser     Action = "addUser"
	ActionCreateStudent  Action = "addStudent"
	ActionCreateRecord   Action = "addRecord"
	ActionMarkAttendance Action = "markAttendance"
	ActionCreateExam     Action = "addExam"
	ActionUpdateUser     Action = "updateUser"
	ActionDeleteByID     Action = "deleteData"
)

// DeleteRequest is the payload of ActionDeleteByID.
type DeleteRequest struct {
	ID        string `json:"id"`
	SheetName string `json:"sheetName"`
}

// NewID returns a fresh record identifier with an optional prefix.
func NewID(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return prefix + id
}

// Today formats t as a record date.
func Today(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a record date, tolerating a trailing time component.
func ParseDate(s string) (time.Time, bool) {
	if len(s) >= len(DateLayout) {
		if t, err := time.Parse(DateLayout, s[:len(DateLayout)]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
