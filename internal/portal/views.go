package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vendorrisk/internal/core"
)

// QuestionnaireStatusView is a vendor's questionnaire progress.
type QuestionnaireStatusView struct {
	VendorID          string `json:"vendorId"`
	TotalQuestions    int    `json:"totalQuestions"`
	Answered          int    `json:"answered"`
	CompletionPercent int    `json:"completionPercent"`
	Status            string `json:"status"`
}

// VendorDetails describes a vendor account and its client.
type VendorDetails struct {
	VendorName                string             `json:"vendorName"`
	ClientName                string             `json:"clientName"`
	VendorEmail               string             `json:"vendorEmail"`
	VendorRole                Role               `json:"vendorRole,omitempty"`
	VerificationStatus        VerificationStatus `json:"verificationStatus"`
	VendorQuestionnaireStatus string             `json:"vendorQuestionnaireStatus"`
}

// VendorDashboardStats is the vendor's landing page summary.
type VendorDashboardStats struct {
	TotalQuestions      int                `json:"totalQuestions"`
	AnsweredQuestions   int                `json:"answeredQuestions"`
	CompletionPercent   int                `json:"completionPercent"`
	QuestionnaireStatus string             `json:"questionnaireStatus"`
	VerificationStatus  VerificationStatus `json:"verificationStatus"`
	ClientName          string             `json:"clientName"`
	HasSummary          bool               `json:"hasSummary"`
}

// ClientDashboardStats counts a client's vendors and their progress.
type ClientDashboardStats struct {
	TotalVendors            int `json:"totalVendors"`
	CompletedQuestionnaires int `json:"completedQuestionnaires"`
	SummariesUploaded       int `json:"summariesUploaded"`
}

// CompanyStats is the company dashboard summary.
type CompanyStats struct {
	VerifiedClients int `json:"verifiedClients"`
	VerifiedVendors int `json:"verifiedVendors"`
	PendingUsers    int `json:"pendingUsers"`
	TotalSummaries  int `json:"totalSummaries"`
}

// SummaryRef points at a summary without its content.
type SummaryRef struct {
	ID        string    `json:"id"`
	VendorID  string    `json:"vendorId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ClientVendor is a row of a client's vendor list.
type ClientVendor struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Email         string      `json:"email"`
	LatestSummary *SummaryRef `json:"latestSummary"`
}

// VendorRow is a vendor listed under a client.
type VendorRow struct {
	ID                  string             `json:"id"`
	Name                string             `json:"name"`
	Email               string             `json:"email"`
	CreatedAt           time.Time          `json:"createdAt"`
	VerificationStatus  VerificationStatus `json:"verificationStatus"`
	QuestionnaireStatus string             `json:"questionnaireStatus"`
}

// ClientGroup is one approved client with its approved vendors.
type ClientGroup struct {
	ClientID   string      `json:"clientId"`
	ClientName string      `json:"clientName"`
	Vendors    []VendorRow `json:"vendors"`
}

// ClientDetailsView is the company's view of one client.
type ClientDetailsView struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Email              string             `json:"email"`
	VerificationStatus VerificationStatus `json:"verificationStatus"`
	CreatedAt          time.Time          `json:"createdAt"`
	Vendors            []VendorRow        `json:"vendors"`
}

// ClientRef is a selectable client.
type ClientRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// VendorRef names a vendor.
type VendorRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AnswerWithURL is an answer whose document key is replaced by a download URL.
// FileURL is nil when there is no document or no URL could be produced.
type AnswerWithURL struct {
	ID          string     `json:"id"`
	QuestionKey string     `json:"questionKey"`
	AnswerType  AnswerType `json:"answerType"`
	FileURL     *string    `json:"fileUrl"`
	Comment     string     `json:"comment,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// VendorAnswers is a vendor's questionnaire as shown to reviewers.
type VendorAnswers struct {
	Vendor  VendorRef       `json:"vendor"`
	Answers []AnswerWithURL `json:"answers"`
}

func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	p := (n*100 + total/2) / total
	return min(p, 100)
}

func vendorRow(u *User) VendorRow {
	return VendorRow{
		ID:                  u.ID,
		Name:                u.Name,
		Email:               u.Email,
		CreatedAt:           u.CreatedAt,
		VerificationStatus:  u.VerificationStatus,
		QuestionnaireStatus: u.QuestionnaireStatus,
	}
}

func vendorRows(users []*User) []VendorRow {
	rows := make([]VendorRow, len(users))
	for i, u := range users {
		rows[i] = vendorRow(u)
	}
	return rows
}

func userIDs(users []*User) []string {
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}

// vendor loads vendorID, failing with a 404 when it is missing or not a vendor.
func (s *Service) vendor(ctx context.Context, vendorID string) (*User, error) {
	if vendorID == "" {
		return nil, core.NewInvalidRequestError("vendorId is required", nil)
	}
	v, err := s.store.GetUser(ctx, vendorID)
	if errors.Is(err, ErrNotFound) || (err == nil && v.Role != RoleVendor) {
		return nil, core.NewNotFoundError("Vendor not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get vendor: %w", err)
	}
	return v, nil
}

func (s *Service) clientName(ctx context.Context, clientID string) (string, error) {
	if clientID == "" {
		return "N/A", nil
	}
	c, err := s.store.GetUser(ctx, clientID)
	if errors.Is(err, ErrNotFound) {
		return "N/A", nil
	}
	if err != nil {
		return "", fmt.Errorf("get client: %w", err)
	}
	return c.Name, nil
}

// VendorQuestionnaire returns the vendor's answers, newest first.
func (s *Service) VendorQuestionnaire(ctx context.Context, vendorID string) ([]*Answer, error) {
	answers, err := s.store.ListAnswers(ctx, vendorID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return answers, nil
}

// QuestionnaireStatus reports how much of the questionnaire vendorID has answered.
func (s *Service) QuestionnaireStatus(ctx context.Context, vendorID string) (*QuestionnaireStatusView, error) {
	v, err := s.vendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	answers, err := s.store.ListAnswers(ctx, vendorID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	answered := countComplete(answers)
	return &QuestionnaireStatusView{
		VendorID:          v.ID,
		TotalQuestions:    RequiredQuestionCount,
		Answered:          answered,
		CompletionPercent: percent(answered, RequiredQuestionCount),
		Status:            v.QuestionnaireStatus,
	}, nil
}

// VendorDetails describes vendorID. withRole adds the account role, as the
// vendor's own view shows it.
func (s *Service) VendorDetails(ctx context.Context, vendorID string, withRole bool) (*VendorDetails, error) {
	v, err := s.vendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	name, err := s.clientName(ctx, v.ClientID)
	if err != nil {
		return nil, err
	}
	d := &VendorDetails{
		VendorName:                v.Name,
		ClientName:                name,
		VendorEmail:               v.Email,
		VerificationStatus:        v.VerificationStatus,
		VendorQuestionnaireStatus: v.QuestionnaireStatus,
	}
	if withRole {
		d.VendorRole = v.Role
	}
	return d, nil
}

// VendorDashboardStats summarizes vendorID's progress for its dashboard.
func (s *Service) VendorDashboardStats(ctx context.Context, vendorID string) (*VendorDashboardStats, error) {
	v, err := s.vendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	answers, err := s.store.ListAnswers(ctx, vendorID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	name, err := s.clientName(ctx, v.ClientID)
	if err != nil {
		return nil, err
	}
	_, err = s.store.LatestSummary(ctx, vendorID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get summary: %w", err)
	}

	answered := countComplete(answers)
	return &VendorDashboardStats{
		TotalQuestions:      RequiredQuestionCount,
		AnsweredQuestions:   answered,
		CompletionPercent:   percent(answered, RequiredQuestionCount),
		QuestionnaireStatus: v.QuestionnaireStatus,
		VerificationStatus:  v.VerificationStatus,
		ClientName:          name,
		HasSummary:          err == nil,
	}, nil
}

// latestSummary returns the vendor's summary, nil when none exists.
func (s *Service) latestSummary(ctx context.Context, vendorID string) (*Summary, error) {
	sum, err := s.store.LatestSummary(ctx, vendorID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	return sum, nil
}

// OwnSummary returns the latest summary of the calling vendor. Unverified
// vendors may not see it.
func (s *Service) OwnSummary(ctx context.Context, vendorID string) (*Summary, error) {
	v, err := s.vendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	if v.VerificationStatus != StatusApproved {
		return nil, core.NewForbiddenError("Vendor not verified")
	}
	return s.latestSummary(ctx, vendorID)
}

// VendorSummaryFor returns vendorID's latest summary as viewer sees it.
// Clients only see their own vendors.
func (s *Service) VendorSummaryFor(ctx context.Context, viewer *User, vendorID string) (*Summary, error) {
	v, err := s.store.GetUser(ctx, vendorID)
	if errors.Is(err, ErrNotFound) || (err == nil && (v.Role != RoleVendor ||
		(viewer.Role == RoleClient && v.ClientID != viewer.ID))) {
		return nil, core.NewNotFoundError("Vendor not found or not accessible.")
	}
	if err != nil {
		return nil, fmt.Errorf("get vendor: %w", err)
	}
	if v.VerificationStatus != StatusApproved {
		return nil, core.NewForbiddenError("Vendor not verified.")
	}
	return s.latestSummary(ctx, vendorID)
}

func (s *Service) clientVendorUsers(ctx context.Context, clientID string, f UserFilter) ([]*User, error) {
	f.Roles = []Role{RoleVendor}
	f.ClientID = clientID
	vendors, err := s.store.ListUsers(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list client vendors: %w", err)
	}
	return vendors, nil
}

// ClientDashboardStats counts clientID's vendors, completed questionnaires
// and uploaded summaries.
func (s *Service) ClientDashboardStats(ctx context.Context, clientID string) (*ClientDashboardStats, error) {
	vendors, err := s.clientVendorUsers(ctx, clientID, UserFilter{})
	if err != nil {
		return nil, err
	}
	stats := &ClientDashboardStats{TotalVendors: len(vendors)}
	if len(vendors) == 0 {
		return stats, nil
	}

	ids := userIDs(vendors)
	counts, err := s.store.CountAnswers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("count answers: %w", err)
	}
	for _, n := range counts {
		if n >= RequiredQuestionCount {
			stats.CompletedQuestionnaires++
		}
	}
	summaries, err := s.store.ListSummaries(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	seen := make(map[string]struct{}, len(summaries))
	for _, sum := range summaries {
		seen[sum.VendorID] = struct{}{}
	}
	stats.SummariesUploaded = len(seen)
	return stats, nil
}

// ClientVendorList lists clientID's vendors with their latest summary. The
// name and email filters match case-insensitive substrings.
func (s *Service) ClientVendorList(ctx context.Context, clientID, name, email string) ([]ClientVendor, error) {
	vendors, err := s.clientVendorUsers(ctx, clientID, UserFilter{NameContains: name, EmailContains: email})
	if err != nil {
		return nil, err
	}
	out := make([]ClientVendor, 0, len(vendors))
	if len(vendors) == 0 {
		return out, nil
	}
	summaries, err := s.store.ListSummaries(ctx, userIDs(vendors))
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	// Summaries are newest first; keep the first per vendor.
	latest := make(map[string]*SummaryRef, len(summaries))
	for _, sum := range summaries {
		if _, ok := latest[sum.VendorID]; !ok {
			latest[sum.VendorID] = &SummaryRef{ID: sum.ID, CreatedAt: sum.CreatedAt}
		}
	}
	for _, v := range vendors {
		out = append(out, ClientVendor{ID: v.ID, Name: v.Name, Email: v.Email, LatestSummary: latest[v.ID]})
	}
	return out, nil
}

// ClientSummaries lists the summaries of clientID's vendors, newest first.
func (s *Service) ClientSummaries(ctx context.Context, clientID string) ([]SummaryRef, error) {
	vendors, err := s.clientVendorUsers(ctx, clientID, UserFilter{})
	if err != nil {
		return nil, err
	}
	out := make([]SummaryRef, 0)
	if len(vendors) == 0 {
		return out, nil
	}
	summaries, err := s.store.ListSummaries(ctx, userIDs(vendors))
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	for _, sum := range summaries {
		out = append(out, SummaryRef{ID: sum.ID, VendorID: sum.VendorID, CreatedAt: sum.CreatedAt})
	}
	return out, nil
}

// ClientVendors lists clientID's approved vendors.
func (s *Service) ClientVendors(ctx context.Context, clientID string) ([]VendorRow, error) {
	vendors, err := s.clientVendorUsers(ctx, clientID, UserFilter{Status: StatusApproved})
	if err != nil {
		return nil, err
	}
	return vendorRows(vendors), nil
}

// AllUsers lists every account, newest first.
func (s *Service) AllUsers(ctx context.Context) ([]*User, error) {
	users, err := s.store.ListUsers(ctx, UserFilter{})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// PendingUsers lists clients and vendors awaiting review.
func (s *Service) PendingUsers(ctx context.Context) ([]*User, error) {
	users, err := s.store.ListUsers(ctx, UserFilter{Roles: []Role{RoleClient, RoleVendor}, Status: StatusPending})
	if err != nil {
		return nil, fmt.Errorf("list pending users: %w", err)
	}
	return users, nil
}

// VendorsByClient groups approved vendors under their approved clients.
func (s *Service) VendorsByClient(ctx context.Context) ([]ClientGroup, error) {
	clients, err := s.store.ListUsers(ctx, UserFilter{Roles: []Role{RoleClient}, Status: StatusApproved})
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	vendors, err := s.store.ListUsers(ctx, UserFilter{Roles: []Role{RoleVendor}, Status: StatusApproved})
	if err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}
	byClient := make(map[string][]VendorRow)
	for _, v := range vendors {
		if v.ClientID != "" {
			byClient[v.ClientID] = append(byClient[v.ClientID], vendorRow(v))
		}
	}

	groups := make([]ClientGroup, 0, len(clients))
	for _, c := range clients {
		rows := byClient[c.ID]
		if rows == nil {
			rows = []VendorRow{}
		}
		groups = append(groups, ClientGroup{ClientID: c.ID, ClientName: c.Name, Vendors: rows})
	}
	return groups, nil
}

// CompanyStats counts verified accounts, pending reviews and summaries.
func (s *Service) CompanyStats(ctx context.Context) (*CompanyStats, error) {
	var stats CompanyStats
	counts := []struct {
		dst *int
		f   UserFilter
	}{
		{&stats.VerifiedClients, UserFilter{Roles: []Role{RoleClient}, Status: StatusApproved}},
		{&stats.VerifiedVendors, UserFilter{Roles: []Role{RoleVendor}, Status: StatusApproved}},
		{&stats.PendingUsers, UserFilter{Roles: []Role{RoleClient, RoleVendor}, Status: StatusPending}},
	}
	for _, c := range counts {
		n, err := s.store.CountUsers(ctx, c.f)
		if err != nil {
			return nil, fmt.Errorf("count users: %w", err)
		}
		*c.dst = n
	}
	n, err := s.store.CountSummaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("count summaries: %w", err)
	}
	stats.TotalSummaries = n
	return &stats, nil
}

// ClientDetails describes clientID and all of its vendors.
func (s *Service) ClientDetails(ctx context.Context, clientID string) (*ClientDetailsView, error) {
	c, err := s.store.GetUser(ctx, clientID)
	if errors.Is(err, ErrNotFound) || (err == nil && c.Role != RoleClient) {
		return nil, core.NewNotFoundError("Client not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	vendors, err := s.clientVendorUsers(ctx, clientID, UserFilter{})
	if err != nil {
		return nil, err
	}
	return &ClientDetailsView{
		ID:                 c.ID,
		Name:               c.Name,
		Email:              c.Email,
		VerificationStatus: c.VerificationStatus,
		CreatedAt:          c.CreatedAt,
		Vendors:            vendorRows(vendors),
	}, nil
}

// ApprovedClients lists the clients a vendor may attach to.
func (s *Service) ApprovedClients(ctx context.Context) ([]ClientRef, error) {
	clients, err := s.store.ListUsers(ctx, UserFilter{Roles: []Role{RoleClient}, Status: StatusApproved})
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	out := make([]ClientRef, len(clients))
	for i, c := range clients {
		out[i] = ClientRef{ID: c.ID, Name: c.Name, Email: c.Email}
	}
	return out, nil
}

// VendorAnswers returns vendorID's answers with download URLs. Clients see
// only their vendors and vendors only themselves.
func (s *Service) VendorAnswers(ctx context.Context, viewer *User, vendorID string) (*VendorAnswers, error) {
	v, err := s.vendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	if (viewer.Role == RoleClient && v.ClientID != viewer.ID) ||
		(viewer.Role == RoleVendor && v.ID != viewer.ID) {
		return nil, core.NewForbiddenError("Access denied")
	}

	answers, err := s.store.ListAnswers(ctx, vendorID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	out := &VendorAnswers{
		Vendor:  VendorRef{ID: v.ID, Name: v.Name},
		Answers: make([]AnswerWithURL, 0, len(answers)),
	}
	for _, a := range answers {
		row := AnswerWithURL{
			ID:          a.ID,
			QuestionKey: a.QuestionKey,
			AnswerType:  a.AnswerType,
			Comment:     a.Comment,
			CreatedAt:   a.CreatedAt,
		}
		if a.FileKey != "" && s.files != nil {
			if url, err := s.files.URL(ctx, a.FileKey); err == nil {
				row.FileURL = &url
			} else {
				slog.Warn("failed to sign evidence URL", "key", a.FileKey, "error", err)
			}
		}
		out.Answers = append(out.Answers, row)
	}
	return out, nil
}
