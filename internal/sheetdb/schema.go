// Package sheetdb implements the spreadsheet endpoint on a local .xlsx
// workbook: one GET that returns every sheet as JSON and a POST per
// mutation, serialized behind a bounded lock.
package sheetdb

import "tahfidz/internal/model"

// Sheet describes one worksheet and its header row. Columns are only ever
// appended so older workbooks keep working.
type Sheet struct {
	Name       string
	Collection string
	Headers    []string
}

// Schema lists the worksheets in workbook order.
var Schema = []Sheet{
	{Name: model.SheetUsers, Collection: "users", Headers: []string{"id", "name", "role", "username", "password", "phoneNumber", "childId", "email", "avatar"}},
	{Name: model.SheetStudents, Collection: "students", Headers: []string{"id", "name", "nis", "class", "halaqah", "teacherId", "totalJuz", "username", "password"}},
	{Name: model.SheetRecords, Collection: "records", Headers: []string{"id", "studentId", "date", "type", "surah", "ayahStart", "ayahEnd", "grade", "notes"}},
	{Name: model.SheetAttendance, Collection: "attendance", Headers: []string{"id", "userId", "date", "session", "status", "approvalStatus", "type"}},
	{Name: model.SheetExams, Collection: "exams", Headers: []string{"id", "studentId", "date", "category", "score", "examiner", "status", "notes", "juz", "details"}},
}

// numeric columns are stored as numbers and read back as 0 when blank.
var numeric = map[string]bool{
	"ayahStart": true,
	"ayahEnd":   true,
	"totalJuz":  true,
	"score":     true,
}

// profileFields are the columns updateUser may change per sheet.
var profileFields = map[string][]string{
	model.SheetUsers:    {"name", "username", "password", "phoneNumber", "email", "avatar"},
	model.SheetStudents: {"name", "username", "password"},
}

// appendTargets maps each insert action to its sheet.
var appendTargets = map[model.Action]string{
	model.ActionCreateUser:     model.SheetUsers,
	model.ActionCreateStudent:  model.SheetStudents,
	model.ActionCreateRecord:   model.SheetRecords,
	model.ActionMarkAttendance: model.SheetAttendance,
	model.ActionCreateExam:     model.SheetExams,
}

func sheetByName(name string) (Sheet, bool) {
	for _, s := range Schema {
		if s.Name == name {
			return s, true
		}
	}
	return Sheet{}, false
}

// seedAdmin is written to an empty Users sheet so the first login works.
var seedAdmin = map[string]any{
	"id":          "u1",
	"name":        "Super Admin",
	"role":        string(model.RoleAdmin),
	"username":    "admin",
	"password":    "123",
	"phoneNumber": "6281234567890",
}
