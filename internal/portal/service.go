package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vendorrisk/internal/cachekeys"
	"vendorrisk/internal/core"
)

// Invalidator stamps cache keys as mutated. *freshness.Registry satisfies it.
type Invalidator interface {
	TouchAll(keys ...string) []int64
}

// FileStore keeps uploaded evidence documents.
type FileStore interface {
	Put(ctx context.Context, name, contentType string, r io.Reader) (string, error)
	URL(ctx context.Context, key string) (string, error)
}

// Upload is a file attached to a questionnaire answer.
type Upload struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// SignupInput is a new account request.
type SignupInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
	// ClientID is kept only for vendors.
	ClientID string `json:"clientId"`
}

// AnswerInput is a questionnaire submission.
type AnswerInput struct {
	QuestionKey string
	AnswerType  AnswerType
	Comment     string
	File        *Upload
}

// AnswerUpdate patches an answer. Empty fields are left unchanged.
type AnswerUpdate struct {
	QuestionKey string     `json:"questionKey"`
	AnswerType  AnswerType `json:"answerType"`
	FileKey     string     `json:"fileUrl"`
	Comment     string     `json:"comment"`
}

// Verification actions accepted by SetVerification.
const (
	ActionApprove = "APPROVE"
	ActionReject  = "REJECT"
)

// Service runs the portal's business operations. Every write stamps the
// freshness registry for each cached view it stales, after the store write
// succeeds.
type Service struct {
	store    Store
	registry Invalidator
	files    FileStore
	now      func() time.Time

	// userMu serializes read-modify-write cycles on user records.
	userMu sync.Mutex
}

// NewService creates a Service. files may be nil when uploads are disabled.
func NewService(store Store, registry Invalidator, files FileStore) *Service {
	return &Service{
		store:    store,
		registry: registry,
		files:    files,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Store returns the underlying record store.
func (s *Service) Store() Store {
	return s.store
}

func (s *Service) invalidate(op string, keys []string) {
	if len(keys) == 0 {
		return
	}
	s.registry.TouchAll(keys...)
	slog.Debug("views invalidated", "operation", op, "keys", len(keys))
}

// Signup creates a pending account. passwordHash is the already hashed password.
func (s *Service) Signup(ctx context.Context, in SignupInput, passwordHash string) (*User, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Email) == "" || passwordHash == "" {
		return nil, core.NewInvalidRequestError("name, email and password are required", nil)
	}
	if !in.Role.Valid() {
		return nil, core.NewInvalidRequestError("Role must be COMPANY, CLIENT or VENDOR", nil)
	}

	u := &User{
		ID:                  uuid.NewString(),
		Name:                strings.TrimSpace(in.Name),
		Email:               normalizeEmail(in.Email),
		PasswordHash:        passwordHash,
		Role:                in.Role,
		VerificationStatus:  StatusPending,
		QuestionnaireStatus: QuestionnairePending,
		CreatedAt:           s.now(),
	}
	if in.Role == RoleVendor {
		u.ClientID = in.ClientID
	}

	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, core.NewInvalidRequestError("Email already in use", err)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.invalidate("signup", cachekeys.UserSignedUp(u.ClientID))
	return u, nil
}

// SubmitAnswer creates or replaces vendor's answer to in.QuestionKey. created
// reports whether the answer is new.
func (s *Service) SubmitAnswer(ctx context.Context, vendorID string, in AnswerInput) (*Answer, bool, error) {
	if in.QuestionKey == "" || in.AnswerType == "" {
		return nil, false, core.NewInvalidRequestError("questionKey and answerType are required.", nil)
	}
	if !in.AnswerType.Valid() {
		return nil, false, core.NewInvalidRequestError("answerType must be YES_FILE or NO_COMMENT.", nil)
	}

	a := &Answer{
		ID:          uuid.NewString(),
		VendorID:    vendorID,
		QuestionKey: in.QuestionKey,
		AnswerType:  in.AnswerType,
	}
	switch in.AnswerType {
	case AnswerYesFile:
		if in.File == nil {
			return nil, false, core.NewInvalidRequestError("File is required for YES_FILE answers.", nil)
		}
		if s.files == nil {
			return nil, false, core.NewInternalError("File uploads are not configured.", nil)
		}
		key, err := s.files.Put(ctx, in.File.Name, in.File.ContentType, in.File.Body)
		if err != nil {
			return nil, false, err
		}
		a.FileKey = key
	case AnswerNoComment:
		if strings.TrimSpace(in.Comment) == "" {
			return nil, false, core.NewInvalidRequestError("Comment is required for NO_COMMENT answers.", nil)
		}
		a.Comment = in.Comment
	}

	now := s.now()
	a.CreatedAt, a.UpdatedAt = now, now
	created, err := s.store.SaveAnswer(ctx, a)
	if err != nil {
		return nil, false, fmt.Errorf("save answer: %w", err)
	}

	clientID, err := s.syncQuestionnaireStatus(ctx, vendorID)
	if err != nil {
		return nil, false, err
	}
	s.invalidate("submit_answer", cachekeys.AnswerChanged(vendorID, clientID))
	return a, created, nil
}

// ownedAnswer loads answer id and checks it belongs to vendorID. Missing and
// foreign answers are indistinguishable to the caller.
func (s *Service) ownedAnswer(ctx context.Context, vendorID, id string) (*Answer, error) {
	a, err := s.store.GetAnswer(ctx, id)
	if errors.Is(err, ErrNotFound) || (err == nil && a.VendorID != vendorID) {
		return nil, core.NewForbiddenError("Unauthorized access.")
	}
	if err != nil {
		return nil, fmt.Errorf("get answer: %w", err)
	}
	return a, nil
}

// UpdateAnswer patches one of vendorID's answers.
func (s *Service) UpdateAnswer(ctx context.Context, vendorID, id string, in AnswerUpdate) (*Answer, error) {
	a, err := s.ownedAnswer(ctx, vendorID, id)
	if err != nil {
		return nil, err
	}
	if in.AnswerType != "" && !in.AnswerType.Valid() {
		return nil, core.NewInvalidRequestError("answerType must be YES_FILE or NO_COMMENT.", nil)
	}
	if in.QuestionKey != "" {
		a.QuestionKey = in.QuestionKey
	}
	if in.AnswerType != "" {
		a.AnswerType = in.AnswerType
	}
	if in.FileKey != "" {
		a.FileKey = in.FileKey
	}
	if in.Comment != "" {
		a.Comment = in.Comment
	}
	a.UpdatedAt = s.now()

	if err := s.store.UpdateAnswer(ctx, a); err != nil {
		switch {
		case errors.Is(err, ErrConflict):
			return nil, core.NewConflictError("Question already answered.")
		case errors.Is(err, ErrNotFound):
			return nil, core.NewForbiddenError("Unauthorized access.")
		}
		return nil, fmt.Errorf("update answer: %w", err)
	}

	clientID, err := s.syncQuestionnaireStatus(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	s.invalidate("update_answer", cachekeys.AnswerChanged(vendorID, clientID))
	return a, nil
}

// DeleteAnswer removes one of vendorID's answers.
func (s *Service) DeleteAnswer(ctx context.Context, vendorID, id string) error {
	if _, err := s.ownedAnswer(ctx, vendorID, id); err != nil {
		return err
	}
	if err := s.store.DeleteAnswer(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return core.NewForbiddenError("Unauthorized access.")
		}
		return fmt.Errorf("delete answer: %w", err)
	}

	clientID, err := s.syncQuestionnaireStatus(ctx, vendorID)
	if err != nil {
		return err
	}
	s.invalidate("delete_answer", cachekeys.AnswerChanged(vendorID, clientID))
	return nil
}

// syncQuestionnaireStatus marks the vendor's questionnaire COMPLETED once
// every required question has a complete answer, PENDING otherwise. It
// returns the vendor's client.
func (s *Service) syncQuestionnaireStatus(ctx context.Context, vendorID string) (string, error) {
	answers, err := s.store.ListAnswers(ctx, vendorID)
	if err != nil {
		return "", fmt.Errorf("list answers: %w", err)
	}
	status := QuestionnairePending
	if countComplete(answers) >= RequiredQuestionCount {
		status = QuestionnaireCompleted
	}

	s.userMu.Lock()
	defer s.userMu.Unlock()

	vendor, err := s.store.GetUser(ctx, vendorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", core.NewNotFoundError("Vendor not found")
		}
		return "", fmt.Errorf("get vendor: %w", err)
	}
	if vendor.QuestionnaireStatus != status {
		vendor.QuestionnaireStatus = status
		if err := s.store.UpdateUser(ctx, vendor); err != nil {
			return "", fmt.Errorf("update questionnaire status: %w", err)
		}
	}
	return vendor.ClientID, nil
}

func countComplete(answers []*Answer) int {
	n := 0
	for _, a := range answers {
		if a.complete() {
			n++
		}
	}
	return n
}

// SetVerification approves or rejects userID.
func (s *Service) SetVerification(ctx context.Context, userID, action string) (*User, error) {
	var status VerificationStatus
	switch action {
	case ActionApprove:
		status = StatusApproved
	case ActionReject:
		status = StatusRejected
	default:
		return nil, core.NewInvalidRequestError("Action must be APPROVE or REJECT", nil)
	}

	s.userMu.Lock()
	u, err := s.store.GetUser(ctx, userID)
	if err == nil {
		u.VerificationStatus = status
		err = s.store.UpdateUser(ctx, u)
	}
	s.userMu.Unlock()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, core.NewNotFoundError("User not found or not approvable")
		}
		return nil, fmt.Errorf("update verification: %w", err)
	}

	ref, viewers, err := s.fanoutTargets(ctx, u)
	if err != nil {
		return nil, err
	}
	s.invalidate("set_verification", cachekeys.VerificationChanged(ref, viewers))
	return u, nil
}

// fanoutTargets describes u for the invalidation helpers and lists the users
// whose viewer-scoped summary keys may hold u's summary.
func (s *Service) fanoutTargets(ctx context.Context, u *User) (cachekeys.UserRef, []string, error) {
	ref := cachekeys.UserRef{
		ID:       u.ID,
		IsVendor: u.Role == RoleVendor,
		IsClient: u.Role == RoleClient,
		ClientID: u.ClientID,
	}
	if ref.IsClient {
		vendors, err := s.store.ListUsers(ctx, UserFilter{Roles: []Role{RoleVendor}, ClientID: u.ID})
		if err != nil {
			return ref, nil, fmt.Errorf("list client vendors: %w", err)
		}
		for _, v := range vendors {
			ref.VendorIDs = append(ref.VendorIDs, v.ID)
		}
	}
	if !ref.IsVendor {
		return ref, nil, nil
	}
	viewers, err := s.summaryViewers(ctx, u.ClientID)
	return ref, viewers, err
}

// summaryViewers returns clientID (if set) and every company user.
func (s *Service) summaryViewers(ctx context.Context, clientID string) ([]string, error) {
	companies, err := s.store.ListUsers(ctx, UserFilter{Roles: []Role{RoleCompany}})
	if err != nil {
		return nil, fmt.Errorf("list company users: %w", err)
	}
	viewers := make([]string, 0, len(companies)+1)
	if clientID != "" {
		viewers = append(viewers, clientID)
	}
	for _, c := range companies {
		viewers = append(viewers, c.ID)
	}
	return viewers, nil
}

// UploadSummary stores the company's summary for vendorID, replacing any
// previous one.
func (s *Service) UploadSummary(ctx context.Context, vendorID, content string) (*Summary, error) {
	if vendorID == "" || content == "" {
		return nil, core.NewInvalidRequestError("Missing vendorId or content", nil)
	}
	vendor, err := s.store.GetUser(ctx, vendorID)
	if errors.Is(err, ErrNotFound) || (err == nil && vendor.Role != RoleVendor) {
		return nil, core.NewNotFoundError("Vendor not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get vendor: %w", err)
	}

	sum := &Summary{
		ID:            uuid.NewString(),
		VendorID:      vendorID,
		ParsedContent: content,
		CreatedAt:     s.now(),
	}
	if err := s.store.SaveSummary(ctx, sum); err != nil {
		return nil, fmt.Errorf("save summary: %w", err)
	}

	viewers, err := s.summaryViewers(ctx, vendor.ClientID)
	if err != nil {
		return nil, err
	}
	s.invalidate("upload_summary", cachekeys.SummaryUploaded(vendorID, vendor.ClientID, viewers))
	return sum, nil
}

// DeleteUser removes userID with everything that hangs off the account.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return core.NewNotFoundError("User not found")
		}
		return fmt.Errorf("get user: %w", err)
	}
	// Collected before the delete detaches the client's vendors.
	ref, viewers, err := s.fanoutTargets(ctx, u)
	if err != nil {
		return err
	}

	s.userMu.Lock()
	err = s.store.DeleteUser(ctx, userID)
	s.userMu.Unlock()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return core.NewNotFoundError("User not found")
		}
		return fmt.Errorf("delete user: %w", err)
	}

	s.invalidate("delete_user", cachekeys.UserDeleted(ref, viewers))
	return nil
}

// SetClient attaches vendorID to an approved client.
func (s *Service) SetClient(ctx context.Context, vendorID, clientID string) (*User, error) {
	if clientID == "" {
		return nil, core.NewInvalidRequestError("Client ID is required", nil)
	}
	client, err := s.store.GetUser(ctx, clientID)
	if errors.Is(err, ErrNotFound) || (err == nil && (client.Role != RoleClient || client.VerificationStatus != StatusApproved)) {
		return nil, core.NewInvalidRequestError("Invalid client", err)
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}

	s.userMu.Lock()
	vendor, err := s.store.GetUser(ctx, vendorID)
	var previous string
	if err == nil {
		previous = vendor.ClientID
		vendor.ClientID = clientID
		err = s.store.UpdateUser(ctx, vendor)
	}
	s.userMu.Unlock()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, core.NewNotFoundError("Vendor not found")
		}
		return nil, fmt.Errorf("set client: %w", err)
	}

	s.invalidate("set_client", cachekeys.VendorClientChanged(vendorID, previous, clientID))
	return vendor, nil
}

// FileURL returns a download URL for an evidence document.
func (s *Service) FileURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", core.NewInvalidRequestError("fileKey is required", nil)
	}
	if s.files == nil {
		return "", core.NewInternalError("Failed to generate file URL", nil)
	}
	url, err := s.files.URL(ctx, key)
	if err != nil {
		return "", core.NewInternalError("Failed to generate file URL", err)
	}
	return url, nil
}
