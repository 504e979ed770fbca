package appstate

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"tahfidz/internal/model"
	"tahfidz/internal/quran"
)

var validate = validator.New()

// DefaultPassword is given to students created without one.
const DefaultPassword = "123"

// AddRecord stores a memorization submission made by a teacher for one of
// their students.
func (c *Controller) AddRecord(ctx context.Context, actor model.User, r model.TahfidzRecord) (model.TahfidzRecord, error) {
	if actor.Role != model.RoleTeacher {
		return model.TahfidzRecord{}, model.ErrForbidden
	}
	if r.Type != model.RecordZiyadah && r.Type != model.RecordMurojaah {
		return model.TahfidzRecord{}, model.Invalid("type must be ziyadah or murojaah")
	}
	if !r.Grade.Valid() {
		return model.TahfidzRecord{}, model.Invalid("unknown grade %q", r.Grade)
	}
	ch, ok := quran.ChapterByName(r.Surah)
	if !ok {
		return model.TahfidzRecord{}, model.Invalid("unknown surah %q", r.Surah)
	}
	r.Surah = ch.Name
	if r.AyahStart < 1 || r.AyahEnd < r.AyahStart {
		return model.TahfidzRecord{}, model.Invalid("ayah range %d-%d", r.AyahStart, r.AyahEnd)
	}
	r.ID = model.NewID("r")
	if r.Date == "" {
		r.Date = model.Today(c.now())
	} else if _, ok := model.ParseDate(r.Date); !ok {
		return model.TahfidzRecord{}, model.Invalid("date must be yyyy-mm-dd")
	}

	err := c.Mutate(ctx, func(d *model.Collections) ([]Change, error) {
		if !hasStudent(d.Students, r.StudentID) {
			return nil, model.ErrNotFound
		}
		if !model.CanSeeStudent(actor, d.Students, r.StudentID) {
			return nil, model.ErrForbidden
		}
		d.Records = append([]model.TahfidzRecord{r}, d.Records...)
		return []Change{{Action: model.ActionCreateRecord, Payload: r}}, nil
	})
	return r, err
}

// DeleteRecord removes a record. Teachers may only delete records of their
// own students.
func (c *Controller) DeleteRecord(ctx context.Context, actor model.User, id string, confirmed bool) error {
	if actor.Role != model.RoleTeacher && actor.Role != model.RoleAdmin {
		return model.ErrForbidden
	}
	if !confirmed {
		return model.ErrConfirmationRequired
	}
	return c.Mutate(ctx, func(d *model.Collections) ([]Change, error) {
		i := indexOf(len(d.Records), func(i int) bool { return d.Records[i].ID == id })
		if i < 0 {
			return nil, model.ErrNotFound
		}
		if !model.CanSeeStudent(actor, d.Students, d.Records[i].StudentID) {
			return nil, model.ErrForbidden
		}
		d.Records = append(d.Records[:i:i], d.Records[i+1:]...)
		return []Change{deleteChange(id, model.SheetRecords)}, nil
	})
}

// PrepareStudent fills defaults and validates a new student row.
func PrepareStudent(s model.Student) (model.Student, error) {
	s.Name = strings.TrimSpace(s.Name)
	s.NIS = strings.TrimSpace(s.NIS)
	if s.ID == "" {
		s.ID = model.NewID("s")
	}
	if s.Username == "" {
		s.Username = s.NIS
	}
	if s.Password == "" {
		s.Password = DefaultPassword
	}
	if err := validate.Struct(s); err != nil {
		return model.Student{}, model.Invalid("%v", err)
	}
	return s, nil
}

// PrepareUser fills defaults and validates a new account row. Accounts
// default to the teacher role.
func PrepareUser(u model.User) (model.User, error) {
	u.Name = strings.TrimSpace(u.Name)
	u.Username = strings.TrimSpace(u.Username)
	if u.ID == "" {
		u.ID = model.NewID("u")
	}
	if u.Role == "" {
		u.Role = model.RoleTeacher
	}
	if err := validate.Struct(u); err != nil {
		return model.User{}, model.Invalid("%v", err)
	}
	return u, nil
}

// AddStudents stores new students (admin only).
func (c *Controller) AddStudents(ctx context.Context, actor model.User, students ...model.Student) ([]model.Student, error) {
	if actor.Role != model.RoleAdmin {
		return nil, model.ErrForbidden
	}
	out := make([]model.Student, 0, len(students))
	for _, s := range students {
		p, err := PrepareStudent(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	err := c.Mutate(ctx, func(d *model.Collections) ([]Change, error) {
		changes := make([]Change, 0, len(out))
		for _, s := range out {
			if hasStudent(d.Students, s.ID) {
				return nil, model.ErrConflict
			}
		}
		for _, s := range out {
			d.Students = append(d.Students, s)
			changes = append(changes, Change{Action: model.ActionCreateStudent, Payload: s})
		}
		return changes, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteStudent removes a student (admin only).
func (c *Controller) DeleteStudent(ctx context.Context, actor model.User, id string, confirmed bool) error {
	if actor.Role != model.RoleAdmin {
		return model.ErrForbidden
	}
	if !confirmed {
		return model.ErrConfirmationRequired
	}
	return c.Mutate(ctx, func(d *model.Collections) ([]Change, error) {
		i := indexOf(len(d.Students), func(i int) bool { return d.Students[i].ID == id })
		if i < 0 {
			return nil, model.ErrNotFound
		}
		d.Students = append(d.Students[:i:i], d.Students[i+1:]...)
		return []Change{deleteChange(id, model.SheetStudents)}, nil
	})
}

// AddUsers stores new accounts (admin only). Usernames must be unique.
func (c *Controller) AddUsers(ctx context.Context, actor model.User, users ...model.User) ([]model.User, error) {
	if actor.Role != model.RoleAdmin {
		return nil, model.ErrForbidden
	}
	out := make([]model.User, 0, len(users))
	for _, u := range users {
		p, err := PrepareUser(u)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	err := c.Mutate(ctx, func(d *model.Collections) ([]Change, error) {
		seen := make(map[string]bool)
		for _, u := range d.Users {
			seen[u.Username] = true
		}
		for _, u := range out {
			if seen[u.Username] {
				return nil, model.Invalid("username %q already taken", u.Username)
			}
			seen[u.Username] = true
		}
		changes := make([]Change, 0, len(out))
		for _, u := range out {
			d.Users = append(d.Users, u)
			changes = append(changes, Change{Action: model.ActionCreateUser, Payload: u})
		}
		return changes, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteUser removes an account (admin only). Admins cannot delete
// themselves.
func (c *Controller) DeleteUser(ctx context.Context, actor model.User, id string, confirmed bool) error {
	if actor.Role != model.RoleAdmin {
		return model.ErrForbidden
	}
	if id == actor.ID {
		return model.Invalid("cannot delete the signed-in account")
	}
	if !confirmed {
		return model.ErrConfirmationRequired
	}
	return c.Mutate(ctx, func(d *model.Collections) ([]Change, error) {
		i := indexOf(len(d.Users), func(i int) bool { return d.Users[i].ID == id })
		if i < 0 {
			return nil, model.ErrNotFound
		}
		d.Users = append(d.Users[:i:i], d.Users[i+1:]...)
		return []Change{deleteChange(id, model.SheetUsers)}, nil
	})
}

// AddExam stores a finished exam at the front of the list.
func (c *Controller) AddExam(ctx context.Context, e model.Exam) error {
	return c.Mutate(ctx, func(d *model.Collections) ([]Change, error) {
		if !hasStudent(d.Students, e.StudentID) {
			return nil, model.ErrNotFound
		}
		d.Exams = append([]model.Exam{e}, d.Exams...)
		return []Change{{Action: model.ActionCreateExam, Payload: e}}, nil
	})
}

// DeleteExam removes an exam result (teachers within scope, admins).
func (c *Controller) DeleteExam(ctx context.Context, actor model.User, id string, confirmed bool) error {
	if actor.Role != model.RoleTeacher && actor.Role != model.RoleAdmin {
		return model.ErrForbidden
	}
	if !confirmed {
		return model.ErrConfirmationRequired
	}
	return c.Mutate(ctx, func(d *model.Collections) ([]Change, error) {
		i := indexOf(len(d.Exams), func(i int) bool { return d.Exams[i].ID == id })
		if i < 0 {
			return nil, model.ErrNotFound
		}
		if !model.CanSeeStudent(actor, d.Students, d.Exams[i].StudentID) {
			return nil, model.ErrForbidden
		}
		d.Exams = append(d.Exams[:i:i], d.Exams[i+1:]...)
		return []Change{deleteChange(id, model.SheetExams)}, nil
	})
}

// ProfilePatch lists the editable profile fields; nil means unchanged.
type ProfilePatch struct {
	Name        *string `json:"name"`
	Username    *string `json:"username"`
	Password    *string `json:"password"`
	PhoneNumber *string `json:"phoneNumber"`
	Email       *string `json:"email"`
	Avatar      *string `json:"avatar"`
}

// studentUpdate is the updateUser payload for a student login; the role
// field routes it to the Students sheet.
type studentUpdate struct {
	model.Student
	Role string `json:"role"`
}

// UpdateProfile applies p to the caller's own row and returns the new
// session user. A student login edits its Students row.
func (c *Controller) UpdateProfile(ctx context.Context, actor model.User, p ProfilePatch) (model.User, error) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return model.User{}, model.Invalid("name must not be empty")
	}
	if p.Password != nil && *p.Password == "" {
		return model.User{}, model.Invalid("password must not be empty")
	}

	var updated model.User
	err := c.Mutate(ctx, func(d *model.Collections) ([]Change, error) {
		if actor.StudentLogin() {
			i := indexOf(len(d.Students), func(i int) bool { return d.Students[i].ID == actor.ID })
			if i < 0 {
				return nil, model.ErrNotFound
			}
			s := d.Students[i]
			set(&s.Name, p.Name)
			set(&s.Username, p.Username)
			set(&s.Password, p.Password)
			d.Students[i] = s
			updated = model.User{ID: s.ID, Name: s.Name, Role: model.RoleParent, ChildID: s.ID, Username: s.Username}
			return []Change{{Action: model.ActionUpdateUser, Payload: studentUpdate{Student: s, Role: "student"}}}, nil
		}
		i := indexOf(len(d.Users), func(i int) bool { return d.Users[i].ID == actor.ID })
		if i < 0 {
			return nil, model.ErrNotFound
		}
		u := d.Users[i]
		set(&u.Name, p.Name)
		set(&u.Username, p.Username)
		set(&u.Password, p.Password)
		set(&u.PhoneNumber, p.PhoneNumber)
		set(&u.Email, p.Email)
		set(&u.Avatar, p.Avatar)
		d.Users[i] = u
		updated = u
		return []Change{{Action: model.ActionUpdateUser, Payload: u}}, nil
	})
	if err != nil {
		return model.User{}, err
	}
	return updated.Public(), nil
}

// Actor resolves the session user against current data so role and scope
// changes made since login apply immediately.
func (c *Controller) Actor(session model.User) (model.User, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if session.StudentLogin() {
		for _, s := range c.data.Students {
			if s.ID == session.ID {
				return model.User{ID: s.ID, Name: s.Name, Role: model.RoleParent, ChildID: s.ID, Username: s.Username}, nil
			}
		}
		return model.User{}, model.ErrNotFound
	}
	for _, u := range c.data.Users {
		if u.ID == session.ID {
			return u.Public(), nil
		}
	}
	return model.User{}, model.ErrNotFound
}

func deleteChange(id, sheet string) Change {
	return Change{Action: model.ActionDeleteByID, Payload: model.DeleteRequest{ID: id, SheetName: sheet}}
}

func hasStudent(students []model.Student, id string) bool {
	return indexOf(len(students), func(i int) bool { return students[i].ID == id }) >= 0
}

func indexOf(n int, match func(i int) bool) int {
	for i := 0; i < n; i++ {
		if match(i) {
			return i
		}
	}
	return -1
}
