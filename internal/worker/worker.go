// Package worker consumes attendance events and reports on the marked student.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"

	"smartattendance/internal/model"
	"smartattendance/internal/queue"
	"smartattendance/internal/report"
)

// Summarizer recomputes a single student's attendance summary.
type Summarizer interface {
	Student(ctx context.Context, studentID string) (report.StudentSummary, bool, error)
}

// Worker processes attendance.marked messages.
type Worker struct {
	reports Summarizer
	// Flagged is called for students still below the threshold after a mark.
	Flagged func(sum report.StudentSummary)
}

func New(reports Summarizer) *Worker {
	return &Worker{reports: reports}
}

// Run consumes q until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("queue consume init failed: %w", err)
	}
	for msg := range messages {
		if err := w.Handle(ctx, msg); err != nil {
			log.Printf("worker: %s: %v", msg.Type, err)
		}
	}
	return nil
}

// Handle processes one message. Unknown types are ignored.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) error {
	if msg.Type != queue.TypeAttendanceMarked {
		return nil
	}
	var rec model.AttendanceRecord
	if err := msg.Decode(&rec); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}

	sum, flagged, err := w.reports.Student(ctx, rec.StudentID)
	if errors.Is(err, model.ErrStudentNotFound) {
		log.Printf("attendance %s for removed student %s (%s)", rec.Date, rec.StudentFullName, rec.StudentIndexNumber)
		return nil
	}
	if err != nil {
		return fmt.Errorf("summary for %s: %w", rec.StudentID, err)
	}

	log.Printf("marked %s (%s) present on %s at %s: %d days, %.1f%%",
		rec.StudentFullName, rec.StudentIndexNumber, rec.Date, rec.Time, sum.DaysPresent, sum.Percentage)
	if flagged {
		log.Printf("WARNING: %s (%s) is below the attendance threshold at %.1f%%", sum.FullName, sum.IndexNumber, sum.Percentage)
		if w.Flagged != nil {
			w.Flagged(sum)
		}
	}
	return nil
}
