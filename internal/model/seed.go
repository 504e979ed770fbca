package model

import "time"

// Seed returns the starter data used when neither the spreadsheet nor a
// local snapshot has anything to offer.
func Seed(now time.Time) Collections {
	return Collections{
		Users: []User{
			{ID: "u1", Name: "Super Admin", Role: RoleAdmin, Username: "admin", Password: "123", PhoneNumber: "62811111111"},
			{ID: "u2", Name: "Ust. Abdullah", Role: RoleTeacher, Username: "guru", Password: "123", PhoneNumber: "62822222222"},
			{ID: "u3", Name: "Pak Ahmad (Wali)", Role: RoleParent, Username: "wali", Password: "123", PhoneNumber: "62833333333", ChildID: "s1"},
		},
		Students: []Student{
			{ID: "s1", Name: "Fulan bin Ahmad", NIS: "2024001", Class: "7A", Halaqah: "Halaqah 1", TeacherID: "u2", TotalJuz: 2, Username: "santri", Password: "123"},
			{ID: "s2", Name: "Zaid bin Khalid", NIS: "2024002", Class: "7A", Halaqah: "Halaqah 1", TeacherID: "u2", TotalJuz: 1, Username: "zaid", Password: "123"},
		},
		Records: []TahfidzRecord{
			{ID: "r1", StudentID: "s1", Date: Today(now), Type: RecordZiyadah, Surah: "Al-Baqarah", AyahStart: 1, AyahEnd: 5, Grade: GradeLancar, Notes: "Bagus"},
		},
		Attendance: []Attendance{},
		Exams:      []Exam{},
	}
}
