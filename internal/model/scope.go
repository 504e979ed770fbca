package model

// VisibleStudents narrows the roster to what viewer may see: a teacher sees
// their halaqah, a parent sees exactly their child, an admin sees everyone.
func VisibleStudents(viewer User, students []Student) []Student {
	switch viewer.Role {
	case RoleAdmin:
		return append([]Student(nil), students...)
	case RoleTeacher:
		var out []Student
		for _, s := range students {
			if s.TeacherID == viewer.ID {
				out = append(out, s)
			}
		}
		return out
	case RoleParent:
		for _, s := range students {
			if viewer.ChildID != "" && s.ID == viewer.ChildID {
				return []Student{s}
			}
		}
	}
	return nil
}

// CanSeeStudent reports whether studentID is inside viewer's scope.
func CanSeeStudent(viewer User, students []Student, studentID string) bool {
	for _, s := range VisibleStudents(viewer, students) {
		if s.ID == studentID {
			return true
		}
	}
	return false
}

func studentSet(viewer User, students []Student) map[string]bool {
	set := make(map[string]bool)
	for _, s := range VisibleStudents(viewer, students) {
		set[s.ID] = true
	}
	return set
}

// VisibleRecords keeps the records of students in viewer's scope.
func VisibleRecords(viewer User, students []Student, records []TahfidzRecord) []TahfidzRecord {
	set := studentSet(viewer, students)
	var out []TahfidzRecord
	for _, r := range records {
		if set[r.StudentID] {
			out = append(out, r)
		}
	}
	return out
}

// VisibleExams keeps the exams of students in viewer's scope.
func VisibleExams(viewer User, students []Student, exams []Exam) []Exam {
	set := studentSet(viewer, students)
	var out []Exam
	for _, e := range exams {
		if set[e.StudentID] {
			out = append(out, e)
		}
	}
	return out
}

// VisibleAttendance keeps student marks in scope plus teacher marks the
// viewer may see: admins see all teachers, teachers see their own.
func VisibleAttendance(viewer User, students []Student, marks []Attendance) []Attendance {
	set := studentSet(viewer, students)
	var out []Attendance
	for _, a := range marks {
		switch a.Type {
		case SubjectStudent:
			if set[a.UserID] {
				out = append(out, a)
			}
		case SubjectTeacher:
			if viewer.Role == RoleAdmin || (viewer.Role == RoleTeacher && a.UserID == viewer.ID) {
				out = append(out, a)
			}
		}
	}
	return out
}
