package portal

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a write would break a uniqueness rule.
	ErrConflict = errors.New("record already exists")
)

// Store persists users, answers and summaries.
// Implementations must be safe for concurrent use.
type Store interface {
	// CreateUser inserts u. ErrConflict if the email is taken.
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	// ListUsers returns matching users, newest first.
	ListUsers(ctx context.Context, f UserFilter) ([]*User, error)
	CountUsers(ctx context.Context, f UserFilter) (int, error)
	// UpdateUser writes u's verification status, client and questionnaire status.
	UpdateUser(ctx context.Context, u *User) error
	// DeleteUser removes the user with their answers and summary, and
	// detaches any vendors pointing at them as client.
	DeleteUser(ctx context.Context, id string) error

	// SaveAnswer inserts a or replaces the vendor's answer to the same
	// question. On return a holds the stored id and creation time; created
	// reports whether a new row was inserted.
	SaveAnswer(ctx context.Context, a *Answer) (created bool, err error)
	GetAnswer(ctx context.Context, id string) (*Answer, error)
	// UpdateAnswer overwrites the answer with a.ID. ErrConflict if the new
	// question key is already answered.
	UpdateAnswer(ctx context.Context, a *Answer) error
	DeleteAnswer(ctx context.Context, id string) error
	// ListAnswers returns a vendor's answers, newest first.
	ListAnswers(ctx context.Context, vendorID string) ([]*Answer, error)
	// CountAnswers returns the number of answers per vendor for vendorIDs.
	CountAnswers(ctx context.Context, vendorIDs []string) (map[string]int, error)

	// SaveSummary inserts or replaces the vendor's summary.
	SaveSummary(ctx context.Context, s *Summary) error
	LatestSummary(ctx context.Context, vendorID string) (*Summary, error)
	// ListSummaries returns the summaries of vendorIDs, newest first.
	ListSummaries(ctx context.Context, vendorIDs []string) ([]*Summary, error)
	CountSummaries(ctx context.Context) (int, error)

	Close() error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// likePattern escapes s for a LIKE ... ESCAPE '\' substring match.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(s)) + "%"
}

func roleStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func cloneUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func cloneAnswer(a *Answer) *Answer {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

func cloneSummary(s *Summary) *Summary {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
