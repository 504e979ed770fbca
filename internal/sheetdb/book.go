package sheetdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"tahfidz/internal/logging"
	"tahfidz/internal/model"
)

// ErrBusy is returned when the workbook lock could not be taken in time.
var ErrBusy = errors.New("workbook lock timeout")

// ErrUnknownAction is returned for a POST action the workbook does not know.
var ErrUnknownAction = errors.New("unknown action")

// Default lock waits.
const (
	DefaultReadWait  = 10 * time.Second
	DefaultWriteWait = 50 * time.Second
)

// Book is a workbook on disk guarded by a single lock.
type Book struct {
	path      string
	file      *excelize.File
	lock      *semaphore.Weighted
	ReadWait  time.Duration
	WriteWait time.Duration
	log       *zap.Logger
}

// Open loads the workbook at path, creating it when missing, and runs
// setup so every sheet and header exists.
func Open(path string, logger *zap.Logger) (*Book, error) {
	var (
		f   *excelize.File
		err error
	)
	created := false
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		f = excelize.NewFile()
		created = true
	} else if f, err = excelize.OpenFile(path); err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	b := &Book{
		path:      path,
		file:      f,
		lock:      semaphore.NewWeighted(1),
		ReadWait:  DefaultReadWait,
		WriteWait: DefaultWriteWait,
		log:       logging.OrNop(logger),
	}
	if err := b.setup(created); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := b.save(); err != nil {
		_ = f.Close()
		return nil, err
	}
	b.log.Info("workbook ready", zap.String("path", path), zap.Bool("created", created))
	return b, nil
}

// Close releases the workbook.
func (b *Book) Close() error {
	return b.file.Close()
}

func (b *Book) setup(created bool) error {
	style, err := b.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DCFCE7"}},
	})
	if err != nil {
		return err
	}
	for _, s := range Schema {
		idx, err := b.file.GetSheetIndex(s.Name)
		if err != nil {
			return err
		}
		if idx < 0 {
			if _, err := b.file.NewSheet(s.Name); err != nil {
				return fmt.Errorf("create sheet %s: %w", s.Name, err)
			}
			if err := b.file.SetPanes(s.Name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
				return err
			}
		}
		header, err := b.header(s.Name)
		if err != nil {
			return err
		}
		for i := len(header); i < len(s.Headers); i++ {
			c := cell(i+1, 1)
			if err := b.file.SetCellStr(s.Name, c, s.Headers[i]); err != nil {
				return err
			}
			if err := b.file.SetCellStyle(s.Name, c, c, style); err != nil {
				return err
			}
		}
	}
	if created {
		if err := b.file.DeleteSheet("Sheet1"); err != nil {
			return err
		}
		if idx, err := b.file.GetSheetIndex(model.SheetUsers); err == nil {
			b.file.SetActiveSheet(idx)
		}
	}

	rows, err := b.rows(model.SheetUsers)
	if err != nil {
		return err
	}
	if len(rows) <= 1 {
		users, _ := sheetByName(model.SheetUsers)
		return b.upsert(users, seedAdmin)
	}
	return nil
}

// Read returns every sheet keyed by collection name with cells
// normalized for JSON.
func (b *Book) Read(ctx context.Context) (map[string][]map[string]any, error) {
	if err := b.acquire(ctx, b.ReadWait); err != nil {
		return nil, err
	}
	defer b.lock.Release(1)

	out := make(map[string][]map[string]any, len(Schema))
	for _, s := range Schema {
		rows, err := b.rows(s.Name)
		if err != nil {
			return nil, err
		}
		items := []map[string]any{}
		if len(rows) > 1 {
			header := rows[0]
			for _, row := range rows[1:] {
				if len(row) == 0 || strings.TrimSpace(strings.Join(row, "")) == "" {
					continue
				}
				obj := make(map[string]any, len(header))
				for j, key := range header {
					if key == "" {
						continue
					}
					raw := ""
					if j < len(row) {
						raw = row[j]
					}
					if v, ok := normalize(key, raw); ok {
						obj[key] = v
					}
				}
				items = append(items, obj)
			}
		}
		out[s.Collection] = items
	}
	return out, nil
}

func normalize(key, raw string) (any, bool) {
	raw = strings.TrimPrefix(raw, "'")
	switch {
	case numeric[key]:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return 0.0, true
		}
		return f, true
	case key == "date":
		return normalizeDate(raw), true
	case key == "details":
		if strings.TrimSpace(raw) == "" {
			return nil, false
		}
		var v map[string]any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, false
		}
		return v, true
	}
	return raw, true
}

// normalizeDate turns serial dates and timestamps into yyyy-MM-dd.
func normalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if t, ok := model.ParseDate(raw); ok {
		return t.Format(model.DateLayout)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f > 0 {
		if t, err := excelize.ExcelDateToTime(f, false); err == nil {
			return t.Format(model.DateLayout)
		}
	}
	return raw
}

// Reply is the POST response body.
type Reply struct {
	Result    string `json:"result"`
	Error     string `json:"error,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Apply runs one mutation and saves the workbook.
func (b *Book) Apply(ctx context.Context, action model.Action, data json.RawMessage) (Reply, error) {
	fields, err := decodeFields(data)
	if err != nil {
		return Reply{}, err
	}
	if err := b.acquire(ctx, b.WriteWait); err != nil {
		return Reply{}, err
	}
	defer b.lock.Release(1)

	reply := Reply{Result: "success"}
	switch action {
	case model.ActionCreateUser, model.ActionCreateStudent, model.ActionCreateRecord, model.ActionMarkAttendance, model.ActionCreateExam:
		s, _ := sheetByName(appendTargets[action])
		if err := b.upsert(s, prepare(action, fields)); err != nil {
			return Reply{}, err
		}
	case model.ActionUpdateUser:
		name := model.SheetUsers
		role, _ := fields["role"].(string)
		childID, _ := fields["childId"].(string)
		id, _ := fields["id"].(string)
		if role == "student" || (role == string(model.RoleParent) && childID != "" && childID == id) {
			name = model.SheetStudents
		}
		s, _ := sheetByName(name)
		patch := map[string]any{"id": fields["id"]}
		for _, k := range profileFields[name] {
			if v, ok := fields[k]; ok {
				patch[k] = v
			}
		}
		if err := b.update(s, patch); err != nil {
			return Reply{}, err
		}
		reply.AvatarURL, _ = fields["avatar"].(string)
	case model.ActionDeleteByID:
		name, _ := fields["sheetName"].(string)
		s, ok := sheetByName(name)
		if !ok {
			return Reply{}, model.Invalid("unknown sheet %q", name)
		}
		if err := b.delete(s, cellText(fields["id"])); err != nil {
			return Reply{}, err
		}
	default:
		return Reply{}, fmt.Errorf("%w %q", ErrUnknownAction, action)
	}
	if err := b.save(); err != nil {
		return Reply{}, err
	}
	b.log.Debug("workbook updated", zap.String("action", string(action)))
	return reply, nil
}

func decodeFields(data json.RawMessage) (map[string]any, error) {
	fields := map[string]any{}
	if len(bytes.TrimSpace(data)) == 0 {
		return fields, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, model.Invalid("data must be an object: %v", err)
	}
	return fields, nil
}

// prepare fills the per-action column defaults.
func prepare(action model.Action, fields map[string]any) map[string]any {
	switch action {
	case model.ActionCreateStudent:
		if cellText(fields["username"]) == "" {
			fields["username"] = fields["nis"]
		}
	case model.ActionCreateExam:
		if details, ok := fields["details"].(map[string]any); ok {
			if juz := cellText(details["juz"]); juz != "" {
				fields["juz"] = juz
			}
		}
		if cellText(fields["juz"]) == "" {
			fields["juz"] = "-"
		}
	}
	return fields
}

func (b *Book) acquire(ctx context.Context, wait time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	if err := b.lock.Acquire(ctx, 1); err != nil {
		return ErrBusy
	}
	return nil
}

func (b *Book) header(sheet string) ([]string, error) {
	rows, err := b.rows(sheet)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (b *Book) rows(sheet string) ([][]string, error) {
	rows, err := b.file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

// find returns the 1-based row whose first column equals id, or 0.
func (b *Book) find(sheet, id string) (int, error) {
	rows, err := b.rows(sheet)
	if err != nil {
		return 0, err
	}
	for i := 1; i < len(rows); i++ {
		if len(rows[i]) > 0 && rows[i][0] == id {
			return i + 1, nil
		}
	}
	return 0, nil
}

// upsert writes fields into the row with the same id, appending a row when
// none exists. Columns missing from fields keep their current value.
func (b *Book) upsert(s Sheet, fields map[string]any) error {
	id := cellText(fields["id"])
	if id == "" {
		return model.Invalid("id is required")
	}
	row, err := b.find(s.Name, id)
	if err != nil {
		return err
	}
	if row == 0 {
		rows, err := b.rows(s.Name)
		if err != nil {
			return err
		}
		row = len(rows) + 1
		for _, h := range s.Headers {
			if _, ok := fields[h]; !ok && numeric[h] {
				fields[h] = 0
			}
		}
	}
	return b.writeRow(s, row, fields)
}

// update changes an existing row; a missing id is not an error.
func (b *Book) update(s Sheet, fields map[string]any) error {
	row, err := b.find(s.Name, cellText(fields["id"]))
	if err != nil || row == 0 {
		return err
	}
	return b.writeRow(s, row, fields)
}

func (b *Book) writeRow(s Sheet, row int, fields map[string]any) error {
	for j, h := range s.Headers {
		v, ok := fields[h]
		if !ok {
			continue
		}
		c := cell(j+1, row)
		var err error
		if numeric[h] {
			err = b.file.SetCellValue(s.Name, c, cellNumber(v))
		} else {
			err = b.file.SetCellStr(s.Name, c, cellText(v))
		}
		if err != nil {
			return fmt.Errorf("write %s!%s: %w", s.Name, c, err)
		}
	}
	return nil
}

func (b *Book) delete(s Sheet, id string) error {
	row, err := b.find(s.Name, id)
	if err != nil || row == 0 {
		return err
	}
	return b.file.RemoveRow(s.Name, row)
}

// save writes to a temporary file first so a crash never leaves a
// truncated workbook.
func (b *Book) save() error {
	if dir := filepath.Dir(b.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := b.path + ".tmp"
	if err := b.file.SaveAs(tmp); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return os.Rename(tmp, b.path)
}

func cellText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case map[string]any, []any:
		b, _ := json.Marshal(t)
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

func cellNumber(v any) float64 {
	switch t := v.(type) {
	case json.Number:
		f, _ := t.Float64()
		return f
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f
	}
	return 0
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
