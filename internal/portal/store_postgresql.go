package portal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLStore stores portal records in PostgreSQL.
type PostgreSQLStore struct {
	pool *pgxpool.Pool
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		verification_status TEXT NOT NULL,
		client_id TEXT NOT NULL DEFAULT '',
		questionnaire_status TEXT NOT NULL,
		created_at BIGINT NOT NULL
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
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		UNIQUE (vendor_id, question_key)
	)`,
	`CREATE TABLE IF NOT EXISTS summaries (
		id TEXT PRIMARY KEY,
		vendor_id TEXT NOT NULL UNIQUE,
		parsed_content TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
}

// NewPostgreSQLStore creates the portal tables and indexes if needed.
func NewPostgreSQLStore(ctx context.Context, pool *pgxpool.Pool) (*PostgreSQLStore, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create portal schema: %w", err)
		}
	}
	return &PostgreSQLStore{pool: pool}, nil
}

func isPostgresConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func requireAffectedPG(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgreSQLStore) CreateUser(ctx context.Context, u *User) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Name, normalizeEmail(u.Email), u.PasswordHash, string(u.Role), string(u.VerificationStatus),
		u.ClientID, u.QuestionnaireStatus, toMillis(u.CreatedAt))
	if isPostgresConflict(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgreSQLStore) getUser(ctx context.Context, where string, arg any) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func (s *PostgreSQLStore) GetUser(ctx context.Context, id string) (*User, error) {
	return s.getUser(ctx, "id = $1", id)
}

func (s *PostgreSQLStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, "email = $1", normalizeEmail(email))
}

func (s *PostgreSQLStore) ListUsers(ctx context.Context, f UserFilter) ([]*User, error) {
	b := &sqlBuilder{placeholder: postgresPlaceholder}
	query := `SELECT ` + userColumns + ` FROM users` + b.userWhere(f) + ` ORDER BY created_at DESC, id DESC`

	rows, err := s.pool.Query(ctx, query, b.args...)
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

func (s *PostgreSQLStore) CountUsers(ctx context.Context, f UserFilter) (int, error) {
	b := &sqlBuilder{placeholder: postgresPlaceholder}
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+b.userWhere(f), b.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (s *PostgreSQLStore) UpdateUser(ctx context.Context, u *User) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET verification_status = $1, client_id = $2, questionnaire_status = $3
		WHERE id = $4
	`, string(u.VerificationStatus), u.ClientID, u.QuestionnaireStatus, u.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireAffectedPG(tag)
}

func (s *PostgreSQLStore) DeleteUser(ctx context.Context, id string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if err := requireAffectedPG(tag); err != nil {
			return err
		}
		for _, stmt := range []string{
			`DELETE FROM answers WHERE vendor_id = $1`,
			`DELETE FROM summaries WHERE vendor_id = $1`,
			`UPDATE users SET client_id = '' WHERE client_id = $1`,
		} {
			if _, err := tx.Exec(ctx, stmt, id); err != nil {
				return fmt.Errorf("delete user records: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgreSQLStore) SaveAnswer(ctx context.Context, a *Answer) (bool, error) {
	proposed := a.ID
	var createdAt int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO answers (`+answerColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (vendor_id, question_key) DO UPDATE SET
			answer_type = EXCLUDED.answer_type,
			file_key = EXCLUDED.file_key,
			comment = EXCLUDED.comment,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`, a.ID, a.VendorID, a.QuestionKey, string(a.AnswerType), a.FileKey, a.Comment,
		toMillis(a.CreatedAt), toMillis(a.UpdatedAt)).Scan(&a.ID, &createdAt)
	if err != nil {
		return false, fmt.Errorf("save answer: %w", err)
	}
	a.CreatedAt = fromMillis(createdAt)
	return a.ID == proposed, nil
}

func (s *PostgreSQLStore) GetAnswer(ctx context.Context, id string) (*Answer, error) {
	a, err := scanAnswer(s.pool.QueryRow(ctx, `SELECT `+answerColumns+` FROM answers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query answer: %w", err)
	}
	return a, nil
}

func (s *PostgreSQLStore) UpdateAnswer(ctx context.Context, a *Answer) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE answers SET question_key = $1, answer_type = $2, file_key = $3, comment = $4, updated_at = $5
		WHERE id = $6
	`, a.QuestionKey, string(a.AnswerType), a.FileKey, a.Comment, toMillis(a.UpdatedAt), a.ID)
	if isPostgresConflict(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("update answer: %w", err)
	}
	return requireAffectedPG(tag)
}

func (s *PostgreSQLStore) DeleteAnswer(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM answers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete answer: %w", err)
	}
	return requireAffectedPG(tag)
}

func (s *PostgreSQLStore) ListAnswers(ctx context.Context, vendorID string) ([]*Answer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+answerColumns+` FROM answers WHERE vendor_id = $1 ORDER BY created_at DESC, id DESC
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

func (s *PostgreSQLStore) CountAnswers(ctx context.Context, vendorIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(vendorIDs))
	if len(vendorIDs) == 0 {
		return counts, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT vendor_id, COUNT(*) FROM answers WHERE vendor_id = ANY($1) GROUP BY vendor_id`, vendorIDs)
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

func (s *PostgreSQLStore) SaveSummary(ctx context.Context, sum *Summary) error {
	var createdAt int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO summaries (`+summaryColumns+`) VALUES ($1, $2, $3, $4)
		ON CONFLICT (vendor_id) DO UPDATE SET parsed_content = EXCLUDED.parsed_content
		RETURNING id, created_at
	`, sum.ID, sum.VendorID, sum.ParsedContent, toMillis(sum.CreatedAt)).Scan(&sum.ID, &createdAt)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	sum.CreatedAt = fromMillis(createdAt)
	return nil
}

func (s *PostgreSQLStore) LatestSummary(ctx context.Context, vendorID string) (*Summary, error) {
	sum, err := scanSummary(s.pool.QueryRow(ctx, `
		SELECT `+summaryColumns+` FROM summaries WHERE vendor_id = $1 ORDER BY created_at DESC LIMIT 1
	`, vendorID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	return sum, nil
}

func (s *PostgreSQLStore) ListSummaries(ctx context.Context, vendorIDs []string) ([]*Summary, error) {
	out := make([]*Summary, 0)
	if len(vendorIDs) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+summaryColumns+` FROM summaries WHERE vendor_id = ANY($1) ORDER BY created_at DESC`, vendorIDs)
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

func (s *PostgreSQLStore) CountSummaries(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM summaries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count summaries: %w", err)
	}
	return n, nil
}

// Close is a no-op; the shared storage owns the pool.
func (s *PostgreSQLStore) Close() error {
	return nil
}
