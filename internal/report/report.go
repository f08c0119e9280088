// Package report derives attendance statistics from registry and ledger snapshots.
// Every function here is pure; repeated calls over the same input give the same output.
package report

import (
	"context"
	"math"
	"sort"

	"smartattendance/internal/model"
)

// DayCount is the number of records on one calendar day.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// StudentSummary is one row of the per-student report.
type StudentSummary struct {
	StudentID   string  `json:"studentId"`
	FullName    string  `json:"fullName"`
	IndexNumber string  `json:"indexNumber"`
	DaysPresent int     `json:"daysPresent"`
	Percentage  float64 `json:"attendancePercentage"`
}

// DailySeries counts records per date, ascending, keeping the latest window days.
// A window of zero or less keeps every day.
func DailySeries(records []model.AttendanceRecord, window int) []DayCount {
	counts := make(map[string]int)
	for _, rec := range records {
		counts[rec.Date]++
	}
	series := make([]DayCount, 0, len(counts))
	for date, n := range counts {
		series = append(series, DayCount{Date: date, Count: n})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date < series[j].Date })
	if window > 0 && len(series) > window {
		series = series[len(series)-window:]
	}
	return series
}

// Summaries computes distinct days present and percentage for each registered student,
// sorted by days present descending. Ties keep registry order.
func Summaries(students []model.Student, records []model.AttendanceRecord, totalDays int) []StudentSummary {
	days := make(map[string]map[string]struct{})
	for _, rec := range records {
		set, ok := days[rec.StudentID]
		if !ok {
			set = make(map[string]struct{})
			days[rec.StudentID] = set
		}
		set[rec.Date] = struct{}{}
	}

	out := make([]StudentSummary, 0, len(students))
	for _, st := range students {
		present := len(days[st.ID])
		out = append(out, StudentSummary{
			StudentID:   st.ID,
			FullName:    st.FullName,
			IndexNumber: st.IndexNumber,
			DaysPresent: present,
			Percentage:  Percentage(present, totalDays),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DaysPresent > out[j].DaysPresent })
	return out
}

// Percentage is present/total*100 rounded to one decimal.
func Percentage(present, totalDays int) float64 {
	if totalDays <= 0 {
		return 0
	}
	return math.Round(float64(present)/float64(totalDays)*1000) / 10
}

// Flagged returns the summaries strictly below threshold, in input order.
func Flagged(summaries []StudentSummary, threshold float64) []StudentSummary {
	out := make([]StudentSummary, 0)
	for _, s := range summaries {
		if s.Percentage < threshold {
			out = append(out, s)
		}
	}
	return out
}

// AttendanceCounts counts raw ledger rows per student id.
func AttendanceCounts(records []model.AttendanceRecord) map[string]int {
	out := make(map[string]int)
	for _, rec := range records {
		out[rec.StudentID]++
	}
	return out
}

// Source supplies the snapshots a report is built from.
type Source interface {
	ListStudents(ctx context.Context) ([]model.Student, error)
	ListAttendance(ctx context.Context, filter model.AttendanceFilter) ([]model.AttendanceRecord, error)
}

// Options are the reporting constants.
type Options struct {
	TotalDays int
	Threshold float64
	Window    int
}

// DefaultOptions mirror the institutional defaults.
var DefaultOptions = Options{TotalDays: 30, Threshold: 75, Window: 30}

// Report is the full statistics view.
type Report struct {
	TotalStudents int              `json:"totalStudents"`
	TotalRecords  int              `json:"totalRecords"`
	TotalDays     int              `json:"totalInstructionalDays"`
	Threshold     float64          `json:"threshold"`
	Daily         []DayCount       `json:"daily"`
	Students      []StudentSummary `json:"students"`
	Flagged       []StudentSummary `json:"flagged"`
}

type Service struct {
	src  Source
	opts Options
}

func NewService(src Source, opts Options) *Service {
	if opts.TotalDays <= 0 {
		opts.TotalDays = DefaultOptions.TotalDays
	}
	if opts.Window <= 0 {
		opts.Window = DefaultOptions.Window
	}
	return &Service{src: src, opts: opts}
}

func (s *Service) Options() Options { return s.opts }

// Build reads both collections once and derives every view from that snapshot.
func (s *Service) Build(ctx context.Context) (Report, error) {
	students, records, err := s.snapshot(ctx)
	if err != nil {
		return Report{}, err
	}
	summaries := Summaries(students, records, s.opts.TotalDays)
	return Report{
		TotalStudents: len(students),
		TotalRecords:  len(records),
		TotalDays:     s.opts.TotalDays,
		Threshold:     s.opts.Threshold,
		Daily:         DailySeries(records, s.opts.Window),
		Students:      summaries,
		Flagged:       Flagged(summaries, s.opts.Threshold),
	}, nil
}

// Student returns the summary for one student and whether it is below threshold.
func (s *Service) Student(ctx context.Context, studentID string) (StudentSummary, bool, error) {
	st, err := s.findStudent(ctx, studentID)
	if err != nil {
		return StudentSummary{}, false, err
	}
	records, err := s.src.ListAttendance(ctx, model.AttendanceFilter{StudentID: studentID})
	if err != nil {
		return StudentSummary{}, false, err
	}
	sum := Summaries([]model.Student{st}, records, s.opts.TotalDays)[0]
	return sum, sum.Percentage < s.opts.Threshold, nil
}

func (s *Service) findStudent(ctx context.Context, id string) (model.Student, error) {
	students, err := s.src.ListStudents(ctx)
	if err != nil {
		return model.Student{}, err
	}
	for _, st := range students {
		if st.ID == id {
			return st, nil
		}
	}
	return model.Student{}, model.ErrStudentNotFound
}

func (s *Service) snapshot(ctx context.Context) ([]model.Student, []model.AttendanceRecord, error) {
	students, err := s.src.ListStudents(ctx)
	if err != nil {
		return nil, nil, err
	}
	records, err := s.src.ListAttendance(ctx, model.AttendanceFilter{})
	if err != nil {
		return nil, nil, err
	}
	return students, records, nil
}
