// Package roster bulk-imports students and teachers from pasted text or an
// uploaded spreadsheet.
package roster

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"tahfidz/internal/appstate"
	"tahfidz/internal/logging"
	"tahfidz/internal/model"
)

// Kind selects which roster a file fills.
type Kind string

const (
	KindStudents Kind = "students"
	KindTeachers Kind = "teachers"
)

// ParseKind accepts the English names and the Indonesian tab labels.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "students", "student", "santri":
		return KindStudents, nil
	case "teachers", "teacher", "guru":
		return KindTeachers, nil
	}
	return "", model.Invalid("kind must be students or teachers")
}

var separators = regexp.MustCompile(`[,;\t]`)

// ParseText splits pasted CSV, TSV or semicolon separated lines into rows.
// Blank lines are dropped and surrounding quotes removed.
func ParseText(text string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cols := separators.Split(line, -1)
		for i, c := range cols {
			cols[i] = strings.Trim(strings.TrimSpace(c), `"`)
		}
		rows = append(rows, cols)
	}
	return rows
}

// ReadXLSX returns the non-empty rows of the first sheet.
func ReadXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, model.Invalid("workbook has no sheets")
	}
	all, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	var rows [][]string
	for _, row := range all {
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}
		cols := make([]string, len(row))
		for i, c := range row {
			cols[i] = strings.TrimSpace(c)
		}
		rows = append(rows, cols)
	}
	return rows, nil
}

// Skip explains why an input line was not imported.
type Skip struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Batch is the outcome of turning rows into roster entries.
type Batch struct {
	Students []model.Student `json:"students,omitempty"`
	Users    []model.User    `json:"users,omitempty"`
	Skipped  []Skip          `json:"skipped,omitempty"`
}

// Count is the number of rows accepted.
func (b Batch) Count() int { return len(b.Students) + len(b.Users) }

func isHeader(row []string) bool {
	joined := strings.ToLower(strings.Join(row, " "))
	return strings.Contains(joined, "nama") || strings.Contains(joined, "username")
}

func col(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Build converts rows into students or teachers. existing is the current
// account list, used to resolve teacher usernames and reject taken ones.
//
// Students: Name, NIS, Class, Halaqah, TeacherUsername[, Password].
// Teachers: Name, Username, Password[, Phone].
func Build(kind Kind, rows [][]string, existing []model.User) Batch {
	var b Batch
	start := 0
	if len(rows) > 0 && isHeader(rows[0]) {
		start = 1
	}
	teachers := appstate.Teachers(existing)
	taken := make(map[string]bool, len(existing))
	for _, u := range existing {
		taken[u.Username] = true
	}

	for i := start; i < len(rows); i++ {
		row, line := rows[i], i+1
		switch kind {
		case KindStudents:
			if len(row) < 2 {
				b.Skipped = append(b.Skipped, Skip{Line: line, Reason: "need at least name and NIS"})
				continue
			}
			s := model.Student{
				Name:      orDefault(col(row, 0), "Tanpa Nama"),
				NIS:       orDefault(col(row, 1), "-"),
				Class:     orDefault(col(row, 2), "-"),
				Halaqah:   orDefault(col(row, 3), "-"),
				TeacherID: resolveTeacher(teachers, col(row, 4)),
				Username:  col(row, 1),
				Password:  orDefault(col(row, 5), appstate.DefaultPassword),
			}
			if s.Username == "" {
				s.Username = model.NewID("user")
			}
			p, err := appstate.PrepareStudent(s)
			if err != nil {
				b.Skipped = append(b.Skipped, Skip{Line: line, Reason: err.Error()})
				continue
			}
			b.Students = append(b.Students, p)
		case KindTeachers:
			if len(row) < 3 {
				b.Skipped = append(b.Skipped, Skip{Line: line, Reason: "need name, username and password"})
				continue
			}
			u := model.User{
				Name:        col(row, 0),
				Role:        model.RoleTeacher,
				Username:    col(row, 1),
				Password:    col(row, 2),
				PhoneNumber: col(row, 3),
			}
			if taken[u.Username] {
				b.Skipped = append(b.Skipped, Skip{Line: line, Reason: fmt.Sprintf("username %q already taken", u.Username)})
				continue
			}
			p, err := appstate.PrepareUser(u)
			if err != nil {
				b.Skipped = append(b.Skipped, Skip{Line: line, Reason: err.Error()})
				continue
			}
			taken[p.Username] = true
			b.Users = append(b.Users, p)
		}
	}
	return b
}

// resolveTeacher finds a teacher by username, falling back to the first
// teacher and then to the admin placeholder.
func resolveTeacher(teachers []model.User, username string) string {
	for _, t := range teachers {
		if username != "" && t.Username == username {
			return t.ID
		}
	}
	if len(teachers) > 0 {
		return teachers[0].ID
	}
	return "admin"
}

// Importer stores built batches through the application state.
type Importer struct {
	state *appstate.Controller
	log   *zap.Logger
}

func NewImporter(state *appstate.Controller, logger *zap.Logger) *Importer {
	return &Importer{state: state, log: logging.OrNop(logger)}
}

// Import builds and stores rows of the given kind (admin only).
func (im *Importer) Import(ctx context.Context, actor model.User, kind Kind, rows [][]string) (Batch, error) {
	if actor.Role != model.RoleAdmin {
		return Batch{}, model.ErrForbidden
	}
	b := Build(kind, rows, im.state.Snapshot().Users)
	if b.Count() == 0 {
		return b, model.Invalid("no valid rows, check the column format")
	}
	var err error
	switch kind {
	case KindStudents:
		b.Students, err = im.state.AddStudents(ctx, actor, b.Students...)
	case KindTeachers:
		b.Users, err = im.state.AddUsers(ctx, actor, b.Users...)
	}
	if err != nil {
		return Batch{}, err
	}
	for i := range b.Students {
		b.Students[i].Password = ""
	}
	for i := range b.Users {
		b.Users[i] = b.Users[i].Public()
	}
	im.log.Info("roster imported",
		zap.String("kind", string(kind)),
		zap.Int("imported", b.Count()),
		zap.Int("skipped", len(b.Skipped)))
	return b, nil
}
