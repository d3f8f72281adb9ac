package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/typeshield/typeshield/internal/domain/model"
)

//go:embed sql/ddl.sql
var schemaFS embed.FS

// SQLiteStore implements Store on a sqlite database file. Timing vectors
// and rejection reasons are stored as JSON text columns.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) the database at path and
// applies the schema.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("open sqlite store: path not specified")
	}

	// Writers wait for the lock instead of failing fast with SQLITE_BUSY.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite store %s: %w", path, err)
	}

	ddl, err := schemaFS.ReadFile("sql/ddl.sql")
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(ddl)); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema to %s: %w", path, err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, user model.User) error {
	// The UNIQUE index on username is the arbiter; a pre-check would race
	// with concurrent registrations.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		user.ID.String(), user.Username, user.PasswordHash, user.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateUser
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a unique-constraint failure.
// String-based so this package stays off the driver's error types.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}

func (s *SQLiteStore) GetUserByName(ctx context.Context, username string) (model.User, error) {
	var (
		user model.User
		id   string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`,
		username).Scan(&id, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("select user: %w", err)
	}
	user.ID, err = uuid.Parse(id)
	if err != nil {
		return model.User{}, fmt.Errorf("parse user id: %w", err)
	}
	return user, nil
}

func (s *SQLiteStore) SaveTemplate(ctx context.Context, userID uuid.UUID, tmpl model.Template) error {
	dwell, err := json.Marshal(tmpl.DwellTimes)
	if err != nil {
		return fmt.Errorf("marshal dwell times: %w", err)
	}
	flight, err := json.Marshal(tmpl.FlightTimes)
	if err != nil {
		return fmt.Errorf("marshal flight times: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO templates (user_id, dwell_times, flight_times, total_time, error_count, created_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(user_id) DO UPDATE SET
		   dwell_times = excluded.dwell_times,
		   flight_times = excluded.flight_times,
		   total_time = excluded.total_time,
		   error_count = excluded.error_count`,
		userID.String(), string(dwell), string(flight), tmpl.TotalTime, tmpl.ErrorCount)
	if err != nil {
		return fmt.Errorf("save template: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTemplate(ctx context.Context, userID uuid.UUID) (model.Template, error) {
	var (
		tmpl   model.Template
		dwell  string
		flight string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT dwell_times, flight_times, total_time, error_count FROM templates WHERE user_id = ?`,
		userID.String()).Scan(&dwell, &flight, &tmpl.TotalTime, &tmpl.ErrorCount)
	if err == sql.ErrNoRows {
		return model.Template{}, ErrNoTemplate
	}
	if err != nil {
		return model.Template{}, fmt.Errorf("select template: %w", err)
	}
	if err := json.Unmarshal([]byte(dwell), &tmpl.DwellTimes); err != nil {
		return model.Template{}, fmt.Errorf("unmarshal dwell times: %w", err)
	}
	if err := json.Unmarshal([]byte(flight), &tmpl.FlightTimes); err != nil {
		return model.Template{}, fmt.Errorf("unmarshal flight times: %w", err)
	}
	return tmpl, nil
}

func (s *SQLiteStore) LogAttempt(ctx context.Context, rec model.AttemptRecord) error {
	reasons, err := json.Marshal(rec.Reasons)
	if err != nil {
		return fmt.Errorf("marshal reasons: %w", err)
	}

	var userID any
	if rec.UserID != uuid.Nil {
		userID = rec.UserID.String()
	}
	var score any
	if rec.Score != nil {
		score = *rec.Score
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO attempts (id, user_id, username, status, score, reasons, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), userID, rec.Username, rec.Status, score, string(reasons), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecentAttempts(ctx context.Context, userID uuid.UUID, limit int) ([]model.AttemptRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, status, score, reasons, created_at
		 FROM attempts WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("select attempts: %w", err)
	}
	defer rows.Close()

	records := make([]model.AttemptRecord, 0, limit)
	for rows.Next() {
		var (
			rec     model.AttemptRecord
			id      string
			score   sql.NullFloat64
			reasons string
		)
		if err := rows.Scan(&id, &rec.Username, &rec.Status, &score, &reasons, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		rec.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse attempt id: %w", err)
		}
		rec.UserID = userID
		if score.Valid {
			v := score.Float64
			rec.Score = &v
		}
		if err := json.Unmarshal([]byte(reasons), &rec.Reasons); err != nil {
			return nil, fmt.Errorf("unmarshal reasons: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return records, nil
}

func (s *SQLiteStore) AttemptTotals(ctx context.Context, userID uuid.UUID) (success, failure int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT
		   COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		   COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		 FROM attempts WHERE user_id = ?`,
		model.StatusSuccess, model.StatusFailure, userID.String()).Scan(&success, &failure)
	if err != nil {
		return 0, 0, fmt.Errorf("count attempts: %w", err)
	}
	return success, failure, nil
}

func (s *SQLiteStore) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
