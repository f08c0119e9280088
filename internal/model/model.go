package model

import (
	"strings"
	"time"
)

// Role is the access level of a seeded user.
type Role string

const (
	RoleLecturer     Role = "Lecturer"
	RoleClassPrefect Role = "Class Prefect"
)

// User is an authenticated account. Passwords never leave the identity store.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Student is a registered student profile.
type Student struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullName"`
	IndexNumber  string    `json:"indexNumber"`
	FaceTemplate *string   `json:"faceTemplate"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// HasFaceTemplate reports whether a usable template is on file.
func (s Student) HasFaceTemplate() bool {
	return s.FaceTemplate != nil && strings.TrimSpace(*s.FaceTemplate) != ""
}

// StudentPatch carries the fields of a partial update; nil fields are left untouched.
type StudentPatch struct {
	FullName     *string `json:"fullName"`
	IndexNumber  *string `json:"indexNumber"`
	FaceTemplate *string `json:"faceTemplate"`
}

// Apply returns a copy of s with the patch applied.
func (p StudentPatch) Apply(s Student) Student {
	if p.FullName != nil {
		s.FullName = *p.FullName
	}
	if p.IndexNumber != nil {
		s.IndexNumber = *p.IndexNumber
	}
	if p.FaceTemplate != nil {
		tpl := *p.FaceTemplate
		s.FaceTemplate = &tpl
	}
	return s
}

// AttendanceRecord is one presence row. Name and index are snapshots taken at write time.
type AttendanceRecord struct {
	ID                 string    `json:"id"`
	StudentID          string    `json:"studentId"`
	StudentFullName    string    `json:"studentFullName"`
	StudentIndexNumber string    `json:"studentIndexNumber"`
	Timestamp          time.Time `json:"timestamp"`
	Date               string    `json:"date"` // YYYY-MM-DD
	Time               string    `json:"time"` // HH:MM:SS
}

// DayKey identifies the (student, day) slot a record occupies.
func (r AttendanceRecord) DayKey() string {
	return r.StudentID + "|" + r.Date
}

// AttendanceFilter narrows a ledger read. Zero fields do not filter.
type AttendanceFilter struct {
	StudentID string
	Date      string
	From      string // inclusive YYYY-MM-DD
	To        string // inclusive YYYY-MM-DD
}

// Match reports whether r passes the filter.
func (f AttendanceFilter) Match(r AttendanceRecord) bool {
	if f.StudentID != "" && r.StudentID != f.StudentID {
		return false
	}
	if f.Date != "" && r.Date != f.Date {
		return false
	}
	if f.From != "" && r.Date < f.From {
		return false
	}
	if f.To != "" && r.Date > f.To {
		return false
	}
	return true
}

// Date layouts used throughout the ledger.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)
