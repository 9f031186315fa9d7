package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/appforge-ai/console-api/internal/model"
)

// RecordStore holds end-user data rows keyed by record ID.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]*model.Record
}

// NewRecordStore creates an empty record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{records: make(map[string]*model.Record)}
}

// Create creates a new record.
func (s *RecordStore) Create(req *model.CreateRecordRequest) *model.Record {
	now := time.Now()
	rec := &model.Record{
		ID:         uuid.Must(uuid.NewV7()).String(),
		ObjectName: req.ObjectName,
		Values:     req.Values,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.mu.Lock()
	s.records[rec.ID] = rec
	s.mu.Unlock()
	return rec
}

// Get returns one record by ID.
func (s *RecordStore) Get(id string) (*model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

// List returns records, optionally filtered by object name, ordered by
// creation time.
func (s *RecordStore) List(objectName string) []model.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Record, 0, len(s.records))
	for _, rec := range s.records {
		if objectName != "" && rec.ObjectName != objectName {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Update replaces a record's values.
func (s *RecordStore) Update(id string, values map[string]any) (*model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	rec.Values = values
	rec.UpdatedAt = time.Now()
	copied := *rec
	return &copied, nil
}

// Delete removes a record.
func (s *RecordStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

// UserStore holds end users.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]*model.User
}

// NewUserStore creates an empty user store.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*model.User)}
}

// Create creates a new user.
func (s *UserStore) Create(req *model.CreateUserRequest) *model.User {
	user := &model.User{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Email:     req.Email,
		Name:      req.Name,
		Role:      req.Role,
		CreatedAt: time.Now(),
	}
	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()
	return user
}

// Get returns one user by ID.
func (s *UserStore) Get(id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

// List returns all users ordered by creation time.
func (s *UserStore) List() []model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, *user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Delete removes a user.
func (s *UserStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}
