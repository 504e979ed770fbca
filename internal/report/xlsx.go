package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

// Letterhead printed above every exported report.
const (
	Institution = "Ponpes Darul Abror IBS"
	Department  = "Lajnah Tahfidz Al-Qur'an"
	City        = "Garut"
)

// ContentType is the MIME type of exported workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type table struct {
	sheet      string
	title      string
	period     string
	info       [][2]string
	header     []string
	widths     []float64
	rows       [][]any
	empty      string
	signer     string
	signerRole string
}

// RecapXLSX writes the teacher recap.
func RecapXLSX(w io.Writer, teacherName string, p Period, rows []RecapRow, signedAt time.Time) error {
	t := table{
		sheet:      "Rekap",
		title:      "LAPORAN REKAPITULASI TAHFIDZ",
		period:     p.Label,
		info:       [][2]string{{"Guru", teacherName}},
		header:     []string{"No", "Nama Santri", "Kelas", "Jml Ziyadah", "Jml Muroja'ah", "Capaian Terakhir", "Predikat"},
		widths:     []float64{6, 30, 10, 13, 14, 26, 16},
		empty:      "Tidak ada data santri.",
		signer:     teacherName,
		signerRole: "Guru Halaqah",
	}
	for i, r := range rows {
		t.rows = append(t.rows, []any{i + 1, r.Name, r.Class, fmt.Sprintf("%dx", r.Ziyadah), fmt.Sprintf("%dx", r.Murojaah), r.LastAchievement, r.Predikat})
	}
	return t.writeTo(w, signedAt)
}

// CardXLSX writes one student's report card.
func CardXLSX(w io.Writer, c Card, signedAt time.Time) error {
	t := table{
		sheet:  "Rapor",
		title:  "LAPORAN CAPAIAN TAHFIDZ",
		period: c.Period.Label,
		info: [][2]string{
			{"Nama Santri", c.Student.Name},
			{"Nomor Induk", c.Student.NIS},
			{"Kelas", c.Student.Class},
			{"Halaqah", c.Student.Halaqah},
			{"Setoran Ziyadah", strconv.Itoa(c.Ziyadah)},
			{"Setoran Muroja'ah", strconv.Itoa(c.Murojaah)},
			{"Predikat Umum", c.Predikat},
		},
		header:     []string{"No", "Tanggal", "Jenis", "Hafalan", "Predikat"},
		widths:     []float64{6, 14, 12, 34, 18},
		empty:      "Tidak ada setoran pada periode ini.",
		signer:     c.TeacherName,
		signerRole: "Guru Halaqah",
	}
	for i, r := range c.Records {
		t.rows = append(t.rows, []any{i + 1, r.Date, string(r.Type), fmt.Sprintf("%s: %d-%d", r.Surah, r.AyahStart, r.AyahEnd), string(r.Grade)})
	}
	return t.writeTo(w, signedAt)
}

// TeacherAttendanceXLSX writes the teacher attendance recap.
func TeacherAttendanceXLSX(w io.Writer, p Period, rows []TeacherAttendanceRow, signedAt time.Time) error {
	t := table{
		sheet:  "Kehadiran Guru",
		title:  "LAPORAN KEHADIRAN GURU HALAQAH",
		period: p.Label,
		header: []string{"No", "Nama Guru", "Kontak", "Hadir", "Sakit", "Izin", "Alpha", "Ket"},
		widths: []float64{6, 30, 18, 9, 9, 9, 9, 9},
		empty:  "Tidak ada data guru.",
		signer: "Kepala Pondok",
	}
	for i, r := range rows {
		t.rows = append(t.rows, []any{i + 1, r.Name, r.Phone, r.Present, r.Sick, r.Permission, r.Alpha, r.Rate})
	}
	return t.writeTo(w, signedAt)
}

func (t table) writeTo(w io.Writer, signedAt time.Time) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := f.SetSheetName("Sheet1", t.sheet); err != nil {
		return err
	}
	if err := t.render(f, signedAt); err != nil {
		return fmt.Errorf("render %s: %w", t.sheet, err)
	}
	_, err = f.WriteTo(w)
	return err
}

func (t table) render(f *excelize.File, signedAt time.Time) error {
	styles, err := newStyles(f)
	if err != nil {
		return err
	}
	last := len(t.header)

	row := 1
	banner := func(text string, style int) error {
		a, b := cell(1, row), cell(last, row)
		if err := f.SetCellValue(t.sheet, a, text); err != nil {
			return err
		}
		if err := f.MergeCell(t.sheet, a, b); err != nil {
			return err
		}
		row++
		return f.SetCellStyle(t.sheet, a, b, style)
	}
	for _, line := range []struct {
		text  string
		style int
	}{
		{Institution, styles.title},
		{Department, styles.center},
		{t.title, styles.title},
		{t.period, styles.center},
	} {
		if err := banner(line.text, line.style); err != nil {
			return err
		}
	}
	row++

	for _, kv := range t.info {
		if err := f.SetCellValue(t.sheet, cell(1, row), kv[0]); err != nil {
			return err
		}
		if err := f.SetCellValue(t.sheet, cell(3, row), ": "+kv[1]); err != nil {
			return err
		}
		if err := f.SetCellStyle(t.sheet, cell(1, row), cell(1, row), styles.bold); err != nil {
			return err
		}
		row++
	}
	if len(t.info) > 0 {
		row++
	}

	for i, h := range t.header {
		if err := f.SetCellValue(t.sheet, cell(i+1, row), h); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(t.sheet, cell(1, row), cell(last, row), styles.header); err != nil {
		return err
	}
	row++

	if len(t.rows) == 0 {
		if err := banner(t.empty, styles.bordered); err != nil {
			return err
		}
	}
	for _, values := range t.rows {
		for i, v := range values {
			if err := f.SetCellValue(t.sheet, cell(i+1, row), v); err != nil {
				return err
			}
		}
		if err := f.SetCellStyle(t.sheet, cell(1, row), cell(last, row), styles.bordered); err != nil {
			return err
		}
		row++
	}

	row += 2
	signCol := max(1, last-1)
	lines := []string{fmt.Sprintf("%s, %s", City, LongDate(signedAt)), "", "", "", t.signer, t.signerRole}
	for _, text := range lines {
		if text != "" {
			if err := f.SetCellValue(t.sheet, cell(signCol, row), text); err != nil {
				return err
			}
		}
		row++
	}
	if err := f.SetCellStyle(t.sheet, cell(signCol, row-2), cell(signCol, row-2), styles.signer); err != nil {
		return err
	}

	for i, wdt := range t.widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(t.sheet, col, col, wdt); err != nil {
			return err
		}
	}
	return f.SetPageLayout(t.sheet, &excelize.PageLayoutOptions{
		Size:        intPtr(9), // A4
		Orientation: strPtr("portrait"),
	})
}

type styleSet struct {
	title, center, bold, header, bordered, signer int
}

func newStyles(f *excelize.File) (styleSet, error) {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	center := &excelize.Alignment{Horizontal: "center", Vertical: "center"}
	specs := []*excelize.Style{
		{Font: &excelize.Font{Bold: true, Size: 14}, Alignment: center},
		{Alignment: center},
		{Font: &excelize.Font{Bold: true}},
		{Font: &excelize.Font{Bold: true}, Alignment: center, Border: border, Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"E5E7EB"}}},
		{Border: border, Alignment: &excelize.Alignment{Vertical: "center", WrapText: true}},
		{Font: &excelize.Font{Bold: true, Underline: "single"}},
	}
	ids := make([]int, len(specs))
	for i, s := range specs {
		id, err := f.NewStyle(s)
		if err != nil {
			return styleSet{}, err
		}
		ids[i] = id
	}
	return styleSet{title: ids[0], center: ids[1], bold: ids[2], header: ids[3], bordered: ids[4], signer: ids[5]}, nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
