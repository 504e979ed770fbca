// Package notify composes the WhatsApp share links and e-mail copies sent
// around attendance approvals.
package notify

import (
	"fmt"
	"net/url"
	"strings"

	"tahfidz/internal/model"
)

// CleanPhone keeps only the digits of a phone number.
func CleanPhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ShareLink returns a wa.me link that opens a chat with text prefilled.
func ShareLink(phone, text string) string {
	return "https://wa.me/" + CleanPhone(phone) + "?text=" + escape(text)
}

// escape percent-encodes like encodeURIComponent (spaces become %20).
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// MagicLink builds the unauthenticated approve/reject link for a pending
// mark. base is the public address of the API.
func MagicLink(base, action string, a model.Attendance, name string) string {
	q := url.Values{}
	q.Set("action", action)
	q.Set("id", a.ID)
	q.Set("name", name)
	q.Set("date", a.Date)
	q.Set("session", string(a.Session))
	return strings.TrimRight(base, "/") + "/v1/approvals?" + q.Encode()
}

func reasonLabel(s model.AttendanceStatus) string {
	if s == model.StatusSick {
		return "Sakit"
	}
	return "Izin"
}

// PermissionRequest is the message a teacher sends the admin when
// reporting sick or permission.
func PermissionRequest(base string, a model.Attendance, name string) string {
	return fmt.Sprintf("Assalamu'alaikum Admin,\n\nSaya *%s* izin tidak hadir hari ini (%s) sesi *%s* dikarenakan *%s*.\n\nMohon persetujuannya:\n\n✅ *SETUJUI* (Klik link ini):\n%s\n\n❌ *TOLAK* (Klik link ini):\n%s",
		name, a.Date, a.Session.Label(), reasonLabel(a.Status),
		MagicLink(base, "approve", a, name),
		MagicLink(base, "reject", a, name))
}

// DecisionNotice is the message telling the subject how the admin decided.
func DecisionNotice(a model.Attendance) string {
	status := "DITOLAK"
	if a.ApprovalStatus == model.ApprovalApproved {
		status = "DISETUJUI"
	}
	return fmt.Sprintf("Assalamu'alaikum, pengajuan izin anda untuk tanggal %s sesi *%s* telah *%s* oleh Admin.",
		a.Date, a.Session.Label(), status)
}
