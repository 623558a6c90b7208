// Package portaltest holds a behavioural suite every portal.Store
// implementation must pass.
package portaltest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendorrisk/internal/portal"
)

// base is millisecond aligned so every backend round-trips it exactly.
var base = time.UnixMilli(1_760_000_000_000).UTC()

func at(minutes int) time.Time {
	return base.Add(time.Duration(minutes) * time.Minute)
}

func user(id, email string, role portal.Role, status portal.VerificationStatus, minute int) *portal.User {
	return &portal.User{
		ID:                  id,
		Name:                "User " + id,
		Email:               email,
		PasswordHash:        "hash-" + id,
		Role:                role,
		VerificationStatus:  status,
		QuestionnaireStatus: portal.QuestionnairePending,
		CreatedAt:           at(minute),
	}
}

// RunStoreSuite runs the suite against stores built by newStore. Each subtest
// gets a fresh, empty store.
func RunStoreSuite(t *testing.T, newStore func(t *testing.T) portal.Store) {
	t.Helper()

	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("user filters", func(t *testing.T) { testUserFilters(t, newStore(t)) })
	t.Run("answers", func(t *testing.T) { testAnswers(t, newStore(t)) })
	t.Run("summaries", func(t *testing.T) { testSummaries(t, newStore(t)) })
	t.Run("delete user", func(t *testing.T) { testDeleteUser(t, newStore(t)) })
}

func testUsers(t *testing.T, s portal.Store) {
	ctx := context.Background()

	u := user("u1", "Alice@Example.com", portal.RoleClient, portal.StatusPending, 0)
	require.NoError(t, s.CreateUser(ctx, u))

	dup := user("u2", "alice@example.com", portal.RoleVendor, portal.StatusPending, 1)
	assert.ErrorIs(t, s.CreateUser(ctx, dup), portal.ErrConflict)

	got, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, "hash-u1", got.PasswordHash)
	assert.Equal(t, portal.RoleClient, got.Role)
	assert.True(t, got.CreatedAt.Equal(at(0)))

	byEmail, err := s.GetUserByEmail(ctx, " ALICE@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.ID)

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, portal.ErrNotFound)
	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, portal.ErrNotFound)

	got.VerificationStatus = portal.StatusApproved
	got.QuestionnaireStatus = portal.QuestionnaireCompleted
	require.NoError(t, s.UpdateUser(ctx, got))
	updated, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, portal.StatusApproved, updated.VerificationStatus)
	assert.Equal(t, portal.QuestionnaireCompleted, updated.QuestionnaireStatus)

	assert.ErrorIs(t, s.UpdateUser(ctx, user("ghost", "ghost@example.com", portal.RoleVendor, portal.StatusPending, 0)), portal.ErrNotFound)
}

func testUserFilters(t *testing.T, s portal.Store) {
	ctx := context.Background()

	company := user("co", "ops@risk.example", portal.RoleCompany, portal.StatusApproved, 0)
	client := user("c1", "buyer@acme.example", portal.RoleClient, portal.StatusApproved, 1)
	v1 := user("v1", "sales@widgets.example", portal.RoleVendor, portal.StatusApproved, 2)
	v1.Name = "Widgets 50% Off"
	v1.ClientID = "c1"
	v2 := user("v2", "hello@gadgets.example", portal.RoleVendor, portal.StatusPending, 3)
	v2.Name = "Gadgets"
	v2.ClientID = "c1"
	v3 := user("v3", "team@other.example", portal.RoleVendor, portal.StatusPending, 4)
	for _, u := range []*portal.User{company, client, v1, v2, v3} {
		require.NoError(t, s.CreateUser(ctx, u))
	}

	all, err := s.ListUsers(ctx, portal.UserFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"v3", "v2", "v1", "c1", "co"}, ids(all))

	tests := []struct {
		name string
		f    portal.UserFilter
		want []string
	}{
		{"by role", portal.UserFilter{Roles: []portal.Role{portal.RoleVendor}}, []string{"v3", "v2", "v1"}},
		{"by roles and status", portal.UserFilter{Roles: []portal.Role{portal.RoleClient, portal.RoleVendor}, Status: portal.StatusPending}, []string{"v3", "v2"}},
		{"by client", portal.UserFilter{ClientID: "c1"}, []string{"v2", "v1"}},
		{"name contains folds case", portal.UserFilter{ClientID: "c1", NameContains: "gadg"}, []string{"v2"}},
		{"name contains treats wildcards literally", portal.UserFilter{NameContains: "50%"}, []string{"v1"}},
		{"underscore is literal", portal.UserFilter{NameContains: "_"}, []string{}},
		{"email contains", portal.UserFilter{EmailContains: "WIDGETS"}, []string{"v1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListUsers(ctx, tt.f)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))

			n, err := s.CountUsers(ctx, tt.f)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), n)
		})
	}
}

func testAnswers(t *testing.T, s portal.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, user("v1", "v1@example.com", portal.RoleVendor, portal.StatusApproved, 0)))

	first := &portal.Answer{
		ID: "a1", VendorID: "v1", QuestionKey: "q1", AnswerType: portal.AnswerYesFile,
		FileKey: "1-policy.pdf", CreatedAt: at(1), UpdatedAt: at(1),
	}
	created, err := s.SaveAnswer(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	replacement := &portal.Answer{
		ID: "a-new", VendorID: "v1", QuestionKey: "q1", AnswerType: portal.AnswerNoComment,
		Comment: "policy retired", CreatedAt: at(5), UpdatedAt: at(5),
	}
	created, err = s.SaveAnswer(ctx, replacement)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "a1", replacement.ID)
	assert.True(t, replacement.CreatedAt.Equal(at(1)))

	got, err := s.GetAnswer(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, portal.AnswerNoComment, got.AnswerType)
	assert.Empty(t, got.FileKey)
	assert.Equal(t, "policy retired", got.Comment)
	assert.True(t, got.UpdatedAt.Equal(at(5)))

	second := &portal.Answer{
		ID: "a2", VendorID: "v1", QuestionKey: "q2", AnswerType: portal.AnswerNoComment,
		Comment: "no", CreatedAt: at(2), UpdatedAt: at(2),
	}
	_, err = s.SaveAnswer(ctx, second)
	require.NoError(t, err)

	list, err := s.ListAnswers(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a2", list[0].ID)
	assert.Equal(t, "a1", list[1].ID)

	second.QuestionKey = "q1"
	assert.ErrorIs(t, s.UpdateAnswer(ctx, second), portal.ErrConflict)

	second.QuestionKey = "q3"
	second.UpdatedAt = at(9)
	require.NoError(t, s.UpdateAnswer(ctx, second))
	moved, err := s.GetAnswer(ctx, "a2")
	require.NoError(t, err)
	assert.Equal(t, "q3", moved.QuestionKey)

	counts, err := s.CountAnswers(ctx, []string{"v1", "v-none"})
	require.NoError(t, err)
	assert.Equal(t, 2, counts["v1"])
	assert.Zero(t, counts["v-none"])

	require.NoError(t, s.DeleteAnswer(ctx, "a2"))
	assert.ErrorIs(t, s.DeleteAnswer(ctx, "a2"), portal.ErrNotFound)
	_, err = s.GetAnswer(ctx, "a2")
	assert.ErrorIs(t, err, portal.ErrNotFound)
	assert.ErrorIs(t, s.UpdateAnswer(ctx, second), portal.ErrNotFound)
}

func testSummaries(t *testing.T, s portal.Store) {
	ctx := context.Background()

	_, err := s.LatestSummary(ctx, "v1")
	assert.ErrorIs(t, err, portal.ErrNotFound)

	first := &portal.Summary{ID: "s1", VendorID: "v1", ParsedContent: "low risk", CreatedAt: at(1)}
	require.NoError(t, s.SaveSummary(ctx, first))

	again := &portal.Summary{ID: "s-new", VendorID: "v1", ParsedContent: "medium risk", CreatedAt: at(7)}
	require.NoError(t, s.SaveSummary(ctx, again))
	assert.Equal(t, "s1", again.ID)
	assert.True(t, again.CreatedAt.Equal(at(1)))

	other := &portal.Summary{ID: "s2", VendorID: "v2", ParsedContent: "high risk", CreatedAt: at(3)}
	require.NoError(t, s.SaveSummary(ctx, other))

	latest, err := s.LatestSummary(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "medium risk", latest.ParsedContent)

	list, err := s.ListSummaries(ctx, []string{"v1", "v2", "v3"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "s2", list[0].ID)
	assert.Equal(t, "s1", list[1].ID)

	empty, err := s.ListSummaries(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	n, err := s.CountSummaries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func testDeleteUser(t *testing.T, s portal.Store) {
	ctx := context.Background()

	client := user("c1", "c1@example.com", portal.RoleClient, portal.StatusApproved, 0)
	vendor := user("v1", "v1@example.com", portal.RoleVendor, portal.StatusApproved, 1)
	vendor.ClientID = "c1"
	other := user("v2", "v2@example.com", portal.RoleVendor, portal.StatusApproved, 2)
	other.ClientID = "c1"
	for _, u := range []*portal.User{client, vendor, other} {
		require.NoError(t, s.CreateUser(ctx, u))
	}
	_, err := s.SaveAnswer(ctx, &portal.Answer{
		ID: "a1", VendorID: "v1", QuestionKey: "q1", AnswerType: portal.AnswerNoComment,
		Comment: "no", CreatedAt: at(3), UpdatedAt: at(3),
	})
	require.NoError(t, err)
	require.NoError(t, s.SaveSummary(ctx, &portal.Summary{ID: "s1", VendorID: "v1", ParsedContent: "ok", CreatedAt: at(4)}))

	require.NoError(t, s.DeleteUser(ctx, "v1"))
	assert.ErrorIs(t, s.DeleteUser(ctx, "v1"), portal.ErrNotFound)

	answers, err := s.ListAnswers(ctx, "v1")
	require.NoError(t, err)
	assert.Empty(t, answers)
	_, err = s.LatestSummary(ctx, "v1")
	assert.ErrorIs(t, err, portal.ErrNotFound)

	require.NoError(t, s.DeleteUser(ctx, "c1"))
	detached, err := s.GetUser(ctx, "v2")
	require.NoError(t, err)
	assert.Empty(t, detached.ClientID)
}

func ids(users []*portal.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}
