package model

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// text accepts both JSON strings and bare scalars. Spreadsheet cells that
// hold digits (NIS, passwords, phone numbers) come back as numbers unless
// they were written with a leading apostrophe.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = text(s)
		return nil
	}
	*t = text(b)
	return nil
}

// number accepts JSON numbers, numeric strings and empty cells.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*n = 0
			return nil
		}
		*n = number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = number(f)
	return nil
}

func (u *User) UnmarshalJSON(b []byte) error {
	type alias User
	aux := struct {
		*alias
		Username    text `json:"username"`
		Password    text `json:"password"`
		PhoneNumber text `json:"phoneNumber"`
		ChildID     text `json:"childId"`
	}{alias: (*alias)(u)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	u.Username = string(aux.Username)
	u.Password = string(aux.Password)
	u.PhoneNumber = string(aux.PhoneNumber)
	u.ChildID = string(aux.ChildID)
	return nil
}

func (s *Student) UnmarshalJSON(b []byte) error {
	type alias Student
	aux := struct {
		*alias
		NIS      text   `json:"nis"`
		Class    text   `json:"class"`
		TotalJuz number `json:"totalJuz"`
		Username text   `json:"username"`
		Password text   `json:"password"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	s.NIS = string(aux.NIS)
	s.Class = string(aux.Class)
	s.TotalJuz = float64(aux.TotalJuz)
	s.Username = string(aux.Username)
	s.Password = string(aux.Password)
	return nil
}

func (r *TahfidzRecord) UnmarshalJSON(b []byte) error {
	type alias TahfidzRecord
	aux := struct {
		*alias
		AyahStart number `json:"ayahStart"`
		AyahEnd   number `json:"ayahEnd"`
		Notes     text   `json:"notes"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	r.AyahStart = int(aux.AyahStart)
	r.AyahEnd = int(aux.AyahEnd)
	r.Notes = string(aux.Notes)
	return nil
}

func (e *Exam) UnmarshalJSON(b []byte) error {
	type alias Exam
	aux := struct {
		*alias
		Score number `json:"score"`
		Notes text   `json:"notes"`
		Juz   text   `json:"juz"`
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	e.Score = float64(aux.Score)
	e.Notes = string(aux.Notes)
	e.Juz = string(aux.Juz)
	return nil
}
