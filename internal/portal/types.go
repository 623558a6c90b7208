// Package portal holds the vendor risk portal's records, their persistence and
// the business operations on them. Every write operation stamps the freshness
// registry for each cached view it stales.
package portal

import (
	"time"
)

// Role is a portal account type.
type Role string

const (
	RoleCompany Role = "COMPANY"
	RoleClient  Role = "CLIENT"
	RoleVendor  Role = "VENDOR"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCompany, RoleClient, RoleVendor:
		return true
	}
	return false
}

// VerificationStatus tracks the company's review of an account.
type VerificationStatus string

const (
	StatusPending  VerificationStatus = "PENDING"
	StatusApproved VerificationStatus = "APPROVED"
	StatusRejected VerificationStatus = "REJECTED"
)

// AnswerType is how a vendor answered a question.
type AnswerType string

const (
	// AnswerYesFile answers yes with a supporting document.
	AnswerYesFile AnswerType = "YES_FILE"
	// AnswerNoComment answers no with an explanation.
	AnswerNoComment AnswerType = "NO_COMMENT"
)

// Valid reports whether t is a known answer type.
func (t AnswerType) Valid() bool {
	return t == AnswerYesFile || t == AnswerNoComment
}

// Questionnaire completion states stored on vendor accounts.
const (
	QuestionnairePending   = "PENDING"
	QuestionnaireCompleted = "COMPLETED"
)

// Question is one entry of the fixed vendor questionnaire.
type Question struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Questions is the questionnaire every vendor answers.
var Questions = []Question{
	{Key: "q1", Text: "Do you have a documented information security policy?"},
	{Key: "q2", Text: "Do you encrypt customer data at rest and in transit?"},
	{Key: "q3", Text: "Do you run regular third-party penetration tests?"},
	{Key: "q4", Text: "Do you have an incident response plan?"},
	{Key: "q5", Text: "Do you hold a current security certification (e.g. ISO 27001, SOC 2)?"},
}

// RequiredQuestionCount is the number of answers a complete questionnaire has.
const RequiredQuestionCount = 5

// User is a portal account. ClientID is set only for vendors attached to a client.
type User struct {
	ID                  string             `json:"id" bson:"_id"`
	Name                string             `json:"name" bson:"name"`
	Email               string             `json:"email" bson:"email"`
	PasswordHash        string             `json:"-" bson:"password_hash"`
	Role                Role               `json:"role" bson:"role"`
	VerificationStatus  VerificationStatus `json:"verificationStatus" bson:"verification_status"`
	ClientID            string             `json:"clientId,omitempty" bson:"client_id,omitempty"`
	QuestionnaireStatus string             `json:"questionnaireStatus" bson:"questionnaire_status"`
	CreatedAt           time.Time          `json:"createdAt" bson:"created_at"`
}

// Answer is a vendor's answer to one question. FileKey names the supporting
// document in the file store.
type Answer struct {
	ID          string     `json:"id" bson:"_id"`
	VendorID    string     `json:"vendorId" bson:"vendor_id"`
	QuestionKey string     `json:"questionKey" bson:"question_key"`
	AnswerType  AnswerType `json:"answerType" bson:"answer_type"`
	FileKey     string     `json:"fileKey,omitempty" bson:"file_key,omitempty"`
	Comment     string     `json:"comment,omitempty" bson:"comment,omitempty"`
	CreatedAt   time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" bson:"updated_at"`
}

// complete reports whether the answer carries the evidence its type requires.
func (a *Answer) complete() bool {
	switch a.AnswerType {
	case AnswerYesFile:
		return a.FileKey != ""
	case AnswerNoComment:
		return a.Comment != ""
	}
	return false
}

// Summary is the company's assessment of a vendor. A vendor has at most one.
type Summary struct {
	ID            string    `json:"id" bson:"_id"`
	VendorID      string    `json:"vendorId" bson:"vendor_id"`
	ParsedContent string    `json:"parsedContent" bson:"parsed_content"`
	CreatedAt     time.Time `json:"createdAt" bson:"created_at"`
}

// UserFilter selects users. Zero fields match everything.
type UserFilter struct {
	Roles    []Role
	Status   VerificationStatus
	ClientID string
	// NameContains and EmailContains match case-insensitively.
	NameContains  string
	EmailContains string
}
