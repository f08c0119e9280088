package model

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrStudentNotFound    = errors.New("student not found")
	ErrNoFaceData         = errors.New("this student has no facial data registered")
	ErrDuplicateIndex     = errors.New("student with this index number already exists")
	ErrAlreadyMarked      = errors.New("student has already been marked present today")
	ErrMalformedBackup    = errors.New("invalid backup file format")
	ErrStorageUnavailable = errors.New("storage unavailable")

	ErrValidation         = errors.New("invalid input")
	ErrForbidden          = errors.New("not allowed for this role")
	ErrVerificationFailed = errors.New("face verification failed")
	ErrInvalidStep        = errors.New("action not allowed at this step")
	ErrSessionNotFound    = errors.New("marking session not found")
)

// AlreadyMarkedError names the student that was rejected as a same-day duplicate.
type AlreadyMarkedError struct {
	StudentName string
	IndexNumber string
}

func (e *AlreadyMarkedError) Error() string {
	return fmt.Sprintf("Student %s (%s) has already been marked present today.", e.StudentName, e.IndexNumber)
}

func (e *AlreadyMarkedError) Is(target error) bool {
	return target == ErrAlreadyMarked
}

// Invalid builds a validation error for a single field.
func Invalid(field, msg string) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, msg)
}
