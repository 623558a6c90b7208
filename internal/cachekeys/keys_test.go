package cachekeys

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeysAreDeterministic(t *testing.T) {
	assert.Equal(t, VendorQuestionnaire("v1"), VendorQuestionnaire("v1"))
	assert.Equal(t, "vendor:v1:questionnaire", VendorQuestionnaire("v1"))
	assert.Equal(t, "summary:vendor:v1:user:u2", VendorSummary("v1", "u2"))
	assert.Equal(t, "company:dashboard:stats", CompanyDashboardStats())
}

func TestDistinctViewsNeverCollide(t *testing.T) {
	id := "abc"
	keys := []string{
		CompanyDashboardStats(),
		AllClients(),
		AllVendors(),
		AllUsers(),
		PendingUsers(),
		ClientDetails(id),
		VendorSummaryForCompany(id),
		ClientVendorList(id),
		ClientDashboardStats(id),
		ClientVendors(id),
		ClientSummaries(id),
		QuestionnaireStatus(id),
		VendorQuestionnaire(id),
		VendorDashboardStats(id),
		VendorSummaryForVendor(id),
		VendorSummary(id, id),
	}

	seen := map[string]bool{}
	for _, k := range keys {
		assert.False(t, seen[k], "duplicate key %q", k)
		seen[k] = true
	}
}

func TestParametersCannotForgeKeys(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"separator in vendor id", VendorSummary("v1:user", "u2"), VendorSummary("v1", "user:u2")},
		{"client id shaped like suffix", ClientDashboardStats("c1:dashboard"), ClientVendorList("c1:dashboard:stats")},
		{"empty vs separator", VendorQuestionnaire(""), VendorQuestionnaire(":")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, tt.a, tt.b)
		})
	}
}

func TestAnswerChanged(t *testing.T) {
	keys := AnswerChanged("v1", "c1")
	assert.Contains(t, keys, VendorQuestionnaire("v1"))
	assert.Contains(t, keys, QuestionnaireStatus("v1"))
	assert.Contains(t, keys, ClientVendors("c1"))
	assert.Contains(t, keys, AllVendors())
	assert.Contains(t, keys, AllUsers())
	assert.Contains(t, keys, PendingUsers())

	withoutClient := AnswerChanged("v1", "")
	assert.NotContains(t, withoutClient, ClientVendors(""))
	assert.Contains(t, withoutClient, AllUsers())
	assert.Contains(t, withoutClient, PendingUsers())
}

func TestSummaryUploadedCoversViewers(t *testing.T) {
	keys := SummaryUploaded("v1", "c1", []string{"c1", "co1"})
	assert.Contains(t, keys, VendorSummary("v1", "c1"))
	assert.Contains(t, keys, VendorSummary("v1", "co1"))
	assert.Contains(t, keys, ClientSummaries("c1"))
	assert.Contains(t, keys, CompanyDashboardStats())
}

func TestVerificationChanged(t *testing.T) {
	vendor := VerificationChanged(UserRef{ID: "v1", IsVendor: true, ClientID: "c1"}, []string{"co1"})
	assert.Contains(t, vendor, PendingUsers())
	assert.Contains(t, vendor, VendorSummary("v1", "co1"))
	assert.Contains(t, vendor, ClientVendors("c1"))
	assert.NotContains(t, vendor, AllClients())

	client := VerificationChanged(UserRef{ID: "c1", IsClient: true}, nil)
	assert.Contains(t, client, AllClients())
	assert.Contains(t, client, ClientDetails("c1"))
}

func TestUserDeleted(t *testing.T) {
	keys := UserDeleted(UserRef{ID: "c1", IsClient: true, VendorIDs: []string{"v1", "v2"}}, nil)
	assert.Contains(t, keys, VendorDashboardStats("v2"))
	assert.Contains(t, keys, AllClients())

	vendor := UserDeleted(UserRef{ID: "v1", IsVendor: true}, nil)
	assert.Contains(t, vendor, VendorQuestionnaire("v1"))
}

func TestVendorClientChanged(t *testing.T) {
	keys := VendorClientChanged("v1", "old", "new")
	assert.Contains(t, keys, ClientVendors("old"))
	assert.Contains(t, keys, ClientVendors("new"))
	assert.Contains(t, keys, VendorSummary("v1", "new"))
	assert.Contains(t, keys, AllUsers())
	assert.Contains(t, keys, PendingUsers())
}

func TestKeysDeduplicates(t *testing.T) {
	k := &Keys{}
	k.Add("a", "b").Add("a", "c")
	assert.Equal(t, []string{"a", "b", "c"}, k.List())
}
