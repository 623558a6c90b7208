package portal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// SQLiteStore stores portal records in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		verification_status TEXT NOT NULL,
		client_id TEXT NOT NULL DEFAULT '',
		questionnaire_status TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_role_status ON users(role, verification_status)`,
	`CREATE INDEX IF NOT EXISTS idx_users_client_id ON users(client_id)`,
	`CREATE TABLE IF NOT EXISTS answers (
		id TEXT PRIMARY KEY,
		vendor_id TEXT NOT NULL,
		question_key TEXT NOT NULL,
		answer_type TEXT NOT NULL,
		file_key TEXT NOT NULL DEFAULT '',
		comment TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE (vendor_id, question_key)
	)`,
	`CREATE TABLE IF NOT EXISTS summaries (
		id TEXT PRIMARY KEY,
		vendor_id TEXT NOT NULL UNIQUE,
		parsed_content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
}

// NewSQLiteStore creates the portal tables and indexes if needed.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to create portal schema: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func isSQLiteConflict(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u *User) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, normalizeEmail(u.Email), u.PasswordHash, string(u.Role), string(u.VerificationStatus),
		u.ClientID, u.QuestionnaireStatus, toMillis(u.CreatedAt))
	if isSQLiteConflict(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg any) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	return s.getUser(ctx, "id = ?", id)
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, "email = ?", normalizeEmail(email))
}

func (s *SQLiteStore) ListUsers(ctx context.Context, f UserFilter) ([]*User, error) {
	b := &sqlBuilder{placeholder: sqlitePlaceholder}
	query := `SELECT ` + userColumns + ` FROM users` + b.userWhere(f) + ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]*User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}
	return users, nil
}

func (s *SQLiteStore) CountUsers(ctx context.Context, f UserFilter) (int, error) {
	b := &sqlBuilder{placeholder: sqlitePlaceholder}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+b.userWhere(f), b.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, u *User) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET verification_status = ?, client_id = ?, questionnaire_status = ?
		WHERE id = ?
	`, string(u.VerificationStatus), u.ClientID, u.QuestionnaireStatus, u.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireAffected(result)
}

func (s *SQLiteStore) DeleteUser(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete user: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return err
	}
	for _, stmt := range []string{
		`DELETE FROM answers WHERE vendor_id = ?`,
		`DELETE FROM summaries WHERE vendor_id = ?`,
		`UPDATE users SET client_id = '' WHERE client_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("delete user records: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveAnswer(ctx context.Context, a *Answer) (bool, error) {
	proposed := a.ID
	var createdAt int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO answers (`+answerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (vendor_id, question_key) DO UPDATE SET
			answer_type = excluded.answer_type,
			file_key = excluded.file_key,
			comment = excluded.comment,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`, a.ID, a.VendorID, a.QuestionKey, string(a.AnswerType), a.FileKey, a.Comment,
		toMillis(a.CreatedAt), toMillis(a.UpdatedAt)).Scan(&a.ID, &createdAt)
	if err != nil {
		return false, fmt.Errorf("save answer: %w", err)
	}
	a.CreatedAt = fromMillis(createdAt)
	return a.ID == proposed, nil
}

func (s *SQLiteStore) GetAnswer(ctx context.Context, id string) (*Answer, error) {
	a, err := scanAnswer(s.db.QueryRowContext(ctx, `SELECT `+answerColumns+` FROM answers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query answer: %w", err)
	}
	return a, nil
}

func (s *SQLiteStore) UpdateAnswer(ctx context.Context, a *Answer) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE answers SET question_key = ?, answer_type = ?, file_key = ?, comment = ?, updated_at = ?
		WHERE id = ?
	`, a.QuestionKey, string(a.AnswerType), a.FileKey, a.Comment, toMillis(a.UpdatedAt), a.ID)
	if isSQLiteConflict(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("update answer: %w", err)
	}
	return requireAffected(result)
}

func (s *SQLiteStore) DeleteAnswer(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM answers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete answer: %w", err)
	}
	return requireAffected(result)
}

func (s *SQLiteStore) ListAnswers(ctx context.Context, vendorID string) ([]*Answer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+answerColumns+` FROM answers WHERE vendor_id = ? ORDER BY created_at DESC, id DESC
	`, vendorID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	answers := make([]*Answer, 0)
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan answer row: %w", err)
		}
		answers = append(answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answer rows: %w", err)
	}
	return answers, nil
}

func (s *SQLiteStore) CountAnswers(ctx context.Context, vendorIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(vendorIDs))
	if len(vendorIDs) == 0 {
		return counts, nil
	}
	b := &sqlBuilder{placeholder: sqlitePlaceholder}
	rows, err := s.db.QueryContext(ctx,
		`SELECT vendor_id, COUNT(*) FROM answers WHERE vendor_id IN `+b.in(vendorIDs)+` GROUP BY vendor_id`, b.args...)
	if err != nil {
		return nil, fmt.Errorf("count answers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan answer count: %w", err)
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) SaveSummary(ctx context.Context, sum *Summary) error {
	var createdAt int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO summaries (`+summaryColumns+`) VALUES (?, ?, ?, ?)
		ON CONFLICT (vendor_id) DO UPDATE SET parsed_content = excluded.parsed_content
		RETURNING id, created_at
	`, sum.ID, sum.VendorID, sum.ParsedContent, toMillis(sum.CreatedAt)).Scan(&sum.ID, &createdAt)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	sum.CreatedAt = fromMillis(createdAt)
	return nil
}

func (s *SQLiteStore) LatestSummary(ctx context.Context, vendorID string) (*Summary, error) {
	sum, err := scanSummary(s.db.QueryRowContext(ctx, `
		SELECT `+summaryColumns+` FROM summaries WHERE vendor_id = ? ORDER BY created_at DESC LIMIT 1
	`, vendorID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	return sum, nil
}

func (s *SQLiteStore) ListSummaries(ctx context.Context, vendorIDs []string) ([]*Summary, error) {
	out := make([]*Summary, 0)
	if len(vendorIDs) == 0 {
		return out, nil
	}
	b := &sqlBuilder{placeholder: sqlitePlaceholder}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+summaryColumns+` FROM summaries WHERE vendor_id IN `+b.in(vendorIDs)+` ORDER BY created_at DESC`, b.args...)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CountSummaries(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM summaries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count summaries: %w", err)
	}
	return n, nil
}

// Close is a no-op; the shared storage owns the connection.
func (s *SQLiteStore) Close() error {
	return nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
