package portal

import (
	"fmt"
	"strings"
	"time"
)

const userColumns = "id, name, email, password_hash, role, verification_status, client_id, questionnaire_status, created_at"

const answerColumns = "id, vendor_id, question_key, answer_type, file_key, comment, created_at, updated_at"

const summaryColumns = "id, vendor_id, parsed_content, created_at"

// rowScanner is satisfied by *sql.Row, *sql.Rows, pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	var role, status string
	var createdAt int64
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &status,
		&u.ClientID, &u.QuestionnaireStatus, &createdAt); err != nil {
		return nil, err
	}
	u.Role = Role(role)
	u.VerificationStatus = VerificationStatus(status)
	u.CreatedAt = fromMillis(createdAt)
	return &u, nil
}

func scanAnswer(row rowScanner) (*Answer, error) {
	var a Answer
	var answerType string
	var createdAt, updatedAt int64
	if err := row.Scan(&a.ID, &a.VendorID, &a.QuestionKey, &answerType, &a.FileKey, &a.Comment,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	a.AnswerType = AnswerType(answerType)
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	return &a, nil
}

func scanSummary(row rowScanner) (*Summary, error) {
	var s Summary
	var createdAt int64
	if err := row.Scan(&s.ID, &s.VendorID, &s.ParsedContent, &createdAt); err != nil {
		return nil, err
	}
	s.CreatedAt = fromMillis(createdAt)
	return &s, nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// sqlBuilder accumulates positional arguments for one statement. The
// placeholder function renders the n-th (1-based) argument.
type sqlBuilder struct {
	placeholder func(n int) string
	args        []any
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return b.placeholder(len(b.args))
}

func (b *sqlBuilder) in(values []string) string {
	ph := make([]string, len(values))
	for i, v := range values {
		ph[i] = b.arg(v)
	}
	return "(" + strings.Join(ph, ", ") + ")"
}

// userWhere renders f as a WHERE clause ("" when f matches everything).
func (b *sqlBuilder) userWhere(f UserFilter) string {
	var conds []string
	if len(f.Roles) > 0 {
		conds = append(conds, "role IN "+b.in(roleStrings(f.Roles)))
	}
	if f.Status != "" {
		conds = append(conds, "verification_status = "+b.arg(string(f.Status)))
	}
	if f.ClientID != "" {
		conds = append(conds, "client_id = "+b.arg(f.ClientID))
	}
	if f.NameContains != "" {
		conds = append(conds, fmt.Sprintf(`LOWER(name) LIKE %s ESCAPE '\'`, b.arg(likePattern(f.NameContains))))
	}
	if f.EmailContains != "" {
		conds = append(conds, fmt.Sprintf(`LOWER(email) LIKE %s ESCAPE '\'`, b.arg(likePattern(f.EmailContains))))
	}
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func sqlitePlaceholder(int) string { return "?" }

func postgresPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }
