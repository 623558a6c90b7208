// Package cachekeys builds the cache keys of every cached portal view and the
// lists of keys each write path stales.
//
// A key is a namespace prefix followed by ':'-separated parameter slots.
// Parameters are query-escaped, so an id containing ':' cannot collide with
// another view's key.
package cachekeys

import (
	"net/url"
	"strings"
)

func join(parts ...string) string {
	return strings.Join(parts, ":")
}

func param(v string) string {
	return url.QueryEscape(v)
}

// CompanyDashboardStats keys the company's counters view.
func CompanyDashboardStats() string { return "company:dashboard:stats" }

// AllClients keys the list of approved clients.
func AllClients() string { return "company:clients:list" }

// AllVendors keys the approved vendors grouped by client.
func AllVendors() string { return "company:vendors:list" }

// AllUsers keys the company's user table.
func AllUsers() string { return "company:all:users" }

// PendingUsers keys the users awaiting verification.
func PendingUsers() string { return "company:pending:users" }

// ClientDetails keys the company's view of one client and its vendors.
func ClientDetails(clientID string) string {
	return join("company", "client", param(clientID), "details")
}

// VendorSummaryForCompany keys the company's profile of one vendor.
func VendorSummaryForCompany(vendorID string) string {
	return join("vendor", "summary", "company", param(vendorID))
}

// ClientVendorList keys a client's vendors with their latest summary.
func ClientVendorList(clientID string) string {
	return join("client", param(clientID), "vendors")
}

// ClientDashboardStats keys a client's counters view.
func ClientDashboardStats(clientID string) string {
	return join("client", param(clientID), "dashboard", "stats")
}

// ClientVendors keys a client's approved vendors with questionnaire status.
func ClientVendors(clientID string) string {
	return join("client", param(clientID), "all-vendors")
}

// ClientSummaries keys the summaries of a client's vendors.
func ClientSummaries(clientID string) string {
	return join("client", param(clientID), "summaries")
}

// QuestionnaireStatus keys a vendor's questionnaire completion.
func QuestionnaireStatus(vendorID string) string {
	return join("client", "vendor", param(vendorID), "questionnaireStatus")
}

// VendorQuestionnaire keys a vendor's own answers.
func VendorQuestionnaire(vendorID string) string {
	return join("vendor", param(vendorID), "questionnaire")
}

// VendorDashboardStats keys a vendor's counters view.
func VendorDashboardStats(vendorID string) string {
	return join("vendor", param(vendorID), "dashboard", "stats")
}

// VendorSummaryForVendor keys the latest summary as the vendor sees it.
func VendorSummaryForVendor(vendorID string) string {
	return join("vendor", "summary", "vendor", param(vendorID))
}

// VendorSummary keys the latest summary of vendorID as viewerID sees it.
func VendorSummary(vendorID, viewerID string) string {
	return join("summary", "vendor", param(vendorID), "user", param(viewerID))
}
