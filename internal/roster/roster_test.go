package roster

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"tahfidz/internal/appstate"
	"tahfidz/internal/localstore"
	"tahfidz/internal/model"
)

var accounts = []model.User{
	{ID: "u1", Name: "Super Admin", Role: model.RoleAdmin, Username: "admin"},
	{ID: "u2", Name: "Ust. Abdullah", Role: model.RoleTeacher, Username: "guru"},
	{ID: "u5", Name: "Ust. Hasan", Role: model.RoleTeacher, Username: "hasan"},
}

func TestParseText(t *testing.T) {
	rows := ParseText("Nama,NIS,Kelas\r\n\n\"Umar\";2024010\t7B\n   \n")
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Nama", "NIS", "Kelas"}, rows[0])
	assert.Equal(t, []string{"Umar", "2024010", "7B"}, rows[1])
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Santri")
	require.NoError(t, err)
	assert.Equal(t, KindStudents, k)
	k, err = ParseKind("guru")
	require.NoError(t, err)
	assert.Equal(t, KindTeachers, k)
	_, err = ParseKind("wali")
	assert.ErrorIs(t, err, model.ErrInvalid)
}

func TestBuildStudents(t *testing.T) {
	rows := ParseText(`Nama, NIS, Kelas, Halaqah, Username Guru, Password
Umar, 2024010, 7B, Halaqah 2, hasan, rahasia
Ali, 2024011
,2024012,,,nobody
Lonely`)
	b := Build(KindStudents, rows, accounts)

	require.Len(t, b.Students, 3)
	umar := b.Students[0]
	assert.Equal(t, "u5", umar.TeacherID)
	assert.Equal(t, "2024010", umar.Username)
	assert.Equal(t, "rahasia", umar.Password)
	assert.NotEmpty(t, umar.ID)

	ali := b.Students[1]
	assert.Equal(t, "-", ali.Class)
	assert.Equal(t, "-", ali.Halaqah)
	assert.Equal(t, "u2", ali.TeacherID, "falls back to the first teacher")
	assert.Equal(t, appstate.DefaultPassword, ali.Password)

	assert.Equal(t, "Tanpa Nama", b.Students[2].Name)

	require.Len(t, b.Skipped, 1)
	assert.Equal(t, 5, b.Skipped[0].Line)
}

func TestBuildStudentsWithoutTeachers(t *testing.T) {
	b := Build(KindStudents, [][]string{{"Umar", "1"}}, nil)
	require.Len(t, b.Students, 1)
	assert.Equal(t, "admin", b.Students[0].TeacherID)
}

func TestBuildTeachers(t *testing.T) {
	rows := ParseText("Ust. Budi\tbudi\t456\t0812\nUst. Lagi\tbudi\t789\nUst. Guru,guru,1\nKurang,kolom\nTanpa Sandi,sandi,")
	b := Build(KindTeachers, rows, accounts)

	require.Len(t, b.Users, 1)
	assert.Equal(t, model.RoleTeacher, b.Users[0].Role)
	assert.Equal(t, "0812", b.Users[0].PhoneNumber)
	require.Len(t, b.Skipped, 4)
	assert.Contains(t, b.Skipped[0].Reason, "already taken")
	assert.Contains(t, b.Skipped[1].Reason, "already taken")
	assert.Equal(t, 4, b.Skipped[2].Line)
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Nama", "NIS"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{" Umar ", 2024010}))
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	rows, err := ReadXLSX(&buf)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Nama", "NIS"}, {"Umar", "2024010"}}, rows)

	_, err = ReadXLSX(bytes.NewBufferString("not a workbook"))
	assert.Error(t, err)
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	state := appstate.New(localstore.NewMemory(), nil, appstate.Discard{}, nil)
	im := NewImporter(state, nil)
	admin := model.User{ID: "u1", Role: model.RoleAdmin}

	_, err := im.Import(ctx, model.User{ID: "u2", Role: model.RoleTeacher}, KindStudents, ParseText("Umar,1"))
	assert.ErrorIs(t, err, model.ErrForbidden)

	_, err = im.Import(ctx, admin, KindTeachers, ParseText("Nama,Username,Password"))
	assert.ErrorIs(t, err, model.ErrInvalid)

	b, err := im.Import(ctx, admin, KindStudents, ParseText("Umar,2024010,7B,H2,guru\nAli,2024011"))
	require.NoError(t, err)
	assert.Equal(t, 2, b.Count())
	assert.Empty(t, b.Students[0].Password)
	assert.Len(t, state.Snapshot().Students, 4)

	b, err = im.Import(ctx, admin, KindTeachers, ParseText("Ust. Budi,budi,456"))
	require.NoError(t, err)
	assert.Empty(t, b.Users[0].Password)
	assert.Len(t, state.Snapshot().Users, 4)
}
