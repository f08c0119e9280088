package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"

	"smartattendance/internal/model"
)

// Dialect captures what differs between the supported SQL engines.
type Dialect struct {
	Name   string
	Schema []string
	rebind func(string) string
}

var placeholder = regexp.MustCompile(`\$(\d+)`)

var (
	Postgres = Dialect{
		Name: "postgres",
		Schema: []string{
			`CREATE TABLE IF NOT EXISTS students (
				id            TEXT PRIMARY KEY,
				full_name     TEXT NOT NULL,
				index_number  TEXT NOT NULL UNIQUE,
				face_template TEXT,
				registered_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS attendance_records (
				id                   TEXT PRIMARY KEY,
				student_id           TEXT NOT NULL,
				student_full_name    TEXT NOT NULL,
				student_index_number TEXT NOT NULL,
				recorded_at          TIMESTAMPTZ NOT NULL,
				day                  TEXT NOT NULL,
				time_of_day          TEXT NOT NULL,
				UNIQUE (student_id, day)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_attendance_day ON attendance_records(day)`,
		},
		rebind: func(q string) string { return q },
	}

	SQLite = Dialect{
		Name: "sqlite",
		Schema: []string{
			`CREATE TABLE IF NOT EXISTS students (
				id            TEXT PRIMARY KEY,
				full_name     TEXT NOT NULL,
				index_number  TEXT NOT NULL UNIQUE,
				face_template TEXT,
				registered_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS attendance_records (
				id                   TEXT PRIMARY KEY,
				student_id           TEXT NOT NULL,
				student_full_name    TEXT NOT NULL,
				student_index_number TEXT NOT NULL,
				recorded_at          TIMESTAMP NOT NULL,
				day                  TEXT NOT NULL,
				time_of_day          TEXT NOT NULL,
				UNIQUE (student_id, day)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_attendance_day ON attendance_records(day)`,
		},
		// ?NNN keeps explicit positions, so argument order need not follow placeholder order.
		rebind: func(q string) string { return placeholder.ReplaceAllString(q, "?$1") },
	}
)

// SQL persists students and attendance through database/sql.
// Uniqueness of index numbers and of (student, day) is enforced by the schema.
type SQL struct {
	db      *sql.DB
	dialect Dialect
}

// OpenPostgres connects through the pgx stdlib driver and migrates the schema.
func OpenPostgres(connString string) (*SQL, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return newSQL(db, Postgres)
}

// OpenSQLite opens (creating if needed) a SQLite database file and migrates the schema.
func OpenSQLite(path string) (*SQL, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	return newSQL(db, SQLite)
}

func newSQL(db *sql.DB, dialect Dialect) (*SQL, error) {
	s := &SQL{db: db, dialect: dialect}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Migrate creates missing tables; it is safe to run repeatedly.
func (s *SQL) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQL) q(query string) string { return s.dialect.rebind(query) }

// classify maps a unique violation to conflict and everything else to ErrStorageUnavailable.
func classify(err, conflict error) error {
	if err == nil {
		return nil
	}
	if conflict != nil && isUniqueViolation(err) {
		return conflict
	}
	return fmt.Errorf("%w: %w", model.ErrStorageUnavailable, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

const studentColumns = `id, full_name, index_number, face_template, registered_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanStudent(row scanner) (model.Student, error) {
	var st model.Student
	err := row.Scan(&st.ID, &st.FullName, &st.IndexNumber, &st.FaceTemplate, &st.RegisteredAt)
	return st, err
}

func (s *SQL) CreateStudent(ctx context.Context, st model.Student) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO students (`+studentColumns+`)
		VALUES ($1, $2, $3, $4, $5)
	`), st.ID, st.FullName, st.IndexNumber, st.FaceTemplate, st.RegisteredAt.UTC())
	return classify(err, model.ErrDuplicateIndex)
}

func (s *SQL) ListStudents(ctx context.Context) ([]model.Student, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+studentColumns+` FROM students ORDER BY registered_at, id`)
	if err != nil {
		return nil, classify(err, nil)
	}
	defer rows.Close()

	students := []model.Student{}
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, classify(err, nil)
		}
		students = append(students, st)
	}
	return students, classify(rows.Err(), nil)
}

func (s *SQL) getStudent(ctx context.Context, column, value string) (*model.Student, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+studentColumns+` FROM students WHERE `+column+` = $1`), value)
	st, err := scanStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, nil)
	}
	return &st, nil
}

func (s *SQL) GetStudentByID(ctx context.Context, id string) (*model.Student, error) {
	return s.getStudent(ctx, "id", id)
}

func (s *SQL) GetStudentByIndex(ctx context.Context, indexNumber string) (*model.Student, error) {
	return s.getStudent(ctx, "index_number", indexNumber)
}

func (s *SQL) UpdateStudent(ctx context.Context, st model.Student) error {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE students
		SET full_name = $2, index_number = $3, face_template = $4
		WHERE id = $1
	`), st.ID, st.FullName, st.IndexNumber, st.FaceTemplate)
	if err != nil {
		return classify(err, model.ErrDuplicateIndex)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err, nil)
	}
	if n == 0 {
		return model.ErrStudentNotFound
	}
	return nil
}

// DeleteStudent removes the profile row only; there is no foreign key from attendance_records.
func (s *SQL) DeleteStudent(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM students WHERE id = $1`), id)
	if err != nil {
		return false, classify(err, nil)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify(err, nil)
	}
	return n > 0, nil
}

func (s *SQL) InsertAttendance(ctx context.Context, rec model.AttendanceRecord) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO attendance_records
			(id, student_id, student_full_name, student_index_number, recorded_at, day, time_of_day)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`), rec.ID, rec.StudentID, rec.StudentFullName, rec.StudentIndexNumber, rec.Timestamp.UTC(), rec.Date, rec.Time)
	return classify(err, model.ErrAlreadyMarked)
}

func (s *SQL) ListAttendance(ctx context.Context, filter model.AttendanceFilter) ([]model.AttendanceRecord, error) {
	query := `SELECT id, student_id, student_full_name, student_index_number, recorded_at, day, time_of_day
		FROM attendance_records`
	args := []any{}
	clauses := []string{}
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.StudentID != "" {
		add("student_id = $%d", filter.StudentID)
	}
	if filter.Date != "" {
		add("day = $%d", filter.Date)
	}
	if filter.From != "" {
		add("day >= $%d", filter.From)
	}
	if filter.To != "" {
		add("day <= $%d", filter.To)
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY recorded_at, id"

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, classify(err, nil)
	}
	defer rows.Close()

	records := []model.AttendanceRecord{}
	for rows.Next() {
		var rec model.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.StudentFullName, &rec.StudentIndexNumber, &rec.Timestamp, &rec.Date, &rec.Time); err != nil {
			return nil, classify(err, nil)
		}
		records = append(records, rec)
	}
	return records, classify(rows.Err(), nil)
}

// Replace swaps both collections inside one transaction.
func (s *SQL) Replace(ctx context.Context, students []model.Student, records []model.AttendanceRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err, nil)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range []string{`DELETE FROM attendance_records`, `DELETE FROM students`} {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return classify(err, nil)
		}
	}
	for _, st := range students {
		if _, err = tx.ExecContext(ctx, s.q(`INSERT INTO students (`+studentColumns+`) VALUES ($1, $2, $3, $4, $5)`),
			st.ID, st.FullName, st.IndexNumber, st.FaceTemplate, st.RegisteredAt.UTC()); err != nil {
			return classify(err, model.ErrDuplicateIndex)
		}
	}
	for _, rec := range records {
		if _, err = tx.ExecContext(ctx, s.q(`
			INSERT INTO attendance_records
				(id, student_id, student_full_name, student_index_number, recorded_at, day, time_of_day)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`), rec.ID, rec.StudentID, rec.StudentFullName, rec.StudentIndexNumber, rec.Timestamp.UTC(), rec.Date, rec.Time); err != nil {
			return classify(err, model.ErrAlreadyMarked)
		}
	}
	if err = tx.Commit(); err != nil {
		return classify(err, nil)
	}
	return nil
}

func (s *SQL) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying connection.
func (s *SQL) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
