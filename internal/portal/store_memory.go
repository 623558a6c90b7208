package portal

import (
	"context"
	"slices"
	"sort"
	"sync"
)

// MemoryStore keeps every record in process. It backs tests and throwaway
// deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]*User
	answers   map[string]*Answer
	summaries map[string]*Summary // by vendor id
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]*User),
		answers:   make(map[string]*Answer),
		summaries: make(map[string]*Summary),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := normalizeEmail(u.Email)
	for _, existing := range s.users {
		if normalizeEmail(existing.Email) == email {
			return ErrConflict
		}
	}
	if _, ok := s.users[u.ID]; ok {
		return ErrConflict
	}
	stored := cloneUser(u)
	stored.Email = email
	s.users[u.ID] = stored
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = normalizeEmail(email)
	for _, u := range s.users {
		if normalizeEmail(u.Email) == email {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func matchUser(u *User, f UserFilter) bool {
	if len(f.Roles) > 0 && !slices.Contains(f.Roles, u.Role) {
		return false
	}
	if f.Status != "" && u.VerificationStatus != f.Status {
		return false
	}
	if f.ClientID != "" && u.ClientID != f.ClientID {
		return false
	}
	if f.NameContains != "" && !containsFold(u.Name, f.NameContains) {
		return false
	}
	if f.EmailContains != "" && !containsFold(u.Email, f.EmailContains) {
		return false
	}
	return true
}

func (s *MemoryStore) ListUsers(_ context.Context, f UserFilter) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*User, 0)
	for _, u := range s.users {
		if matchUser(u, f) {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) CountUsers(ctx context.Context, f UserFilter) (int, error) {
	users, err := s.ListUsers(ctx, f)
	if err != nil {
		return 0, err
	}
	return len(users), nil
}

func (s *MemoryStore) UpdateUser(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	existing.VerificationStatus = u.VerificationStatus
	existing.ClientID = u.ClientID
	existing.QuestionnaireStatus = u.QuestionnaireStatus
	return nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	delete(s.summaries, id)
	for answerID, a := range s.answers {
		if a.VendorID == id {
			delete(s.answers, answerID)
		}
	}
	for _, u := range s.users {
		if u.ClientID == id {
			u.ClientID = ""
		}
	}
	return nil
}

func (s *MemoryStore) SaveAnswer(_ context.Context, a *Answer) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.answers {
		if existing.VendorID == a.VendorID && existing.QuestionKey == a.QuestionKey {
			a.ID = existing.ID
			a.CreatedAt = existing.CreatedAt
			s.answers[a.ID] = cloneAnswer(a)
			return false, nil
		}
	}
	s.answers[a.ID] = cloneAnswer(a)
	return true, nil
}

func (s *MemoryStore) GetAnswer(_ context.Context, id string) (*Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.answers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAnswer(a), nil
}

func (s *MemoryStore) UpdateAnswer(_ context.Context, a *Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.answers[a.ID]; !ok {
		return ErrNotFound
	}
	for id, other := range s.answers {
		if id != a.ID && other.VendorID == a.VendorID && other.QuestionKey == a.QuestionKey {
			return ErrConflict
		}
	}
	s.answers[a.ID] = cloneAnswer(a)
	return nil
}

func (s *MemoryStore) DeleteAnswer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.answers[id]; !ok {
		return ErrNotFound
	}
	delete(s.answers, id)
	return nil
}

func (s *MemoryStore) ListAnswers(_ context.Context, vendorID string) ([]*Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Answer, 0)
	for _, a := range s.answers {
		if a.VendorID == vendorID {
			out = append(out, cloneAnswer(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) CountAnswers(_ context.Context, vendorIDs []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int, len(vendorIDs))
	for _, a := range s.answers {
		if slices.Contains(vendorIDs, a.VendorID) {
			counts[a.VendorID]++
		}
	}
	return counts, nil
}

func (s *MemoryStore) SaveSummary(_ context.Context, sum *Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.summaries[sum.VendorID]; ok {
		sum.ID = existing.ID
		sum.CreatedAt = existing.CreatedAt
	}
	s.summaries[sum.VendorID] = cloneSummary(sum)
	return nil
}

func (s *MemoryStore) LatestSummary(_ context.Context, vendorID string) (*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.summaries[vendorID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSummary(sum), nil
}

func (s *MemoryStore) ListSummaries(_ context.Context, vendorIDs []string) ([]*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Summary, 0)
	for _, id := range vendorIDs {
		if sum, ok := s.summaries[id]; ok {
			out = append(out, cloneSummary(sum))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CountSummaries(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.summaries), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
