package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/appforge-ai/console-api/internal/model"
)

// AppStore holds applications.
type AppStore struct {
	mu   sync.RWMutex
	apps map[string]*model.App
}

// NewAppStore creates an empty app store.
func NewAppStore() *AppStore {
	return &AppStore{apps: make(map[string]*model.App)}
}

// Create creates a new app.
func (s *AppStore) Create(req *model.CreateAppRequest) *model.App {
	now := time.Now()
	app := &model.App{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.mu.Lock()
	s.apps[app.ID] = app
	s.mu.Unlock()
	return app
}

// Get returns one app by ID.
func (s *AppStore) Get(id string) (*model.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *app
	return &copied, nil
}

// List returns all apps ordered by creation time.
func (s *AppStore) List() []model.App {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.App, 0, len(s.apps))
	for _, app := range s.apps {
		out = append(out, *app)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Update modifies an app's name and description.
func (s *AppStore) Update(id string, req *model.CreateAppRequest) (*model.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return nil, ErrNotFound
	}
	if req.Name != "" {
		app.Name = req.Name
	}
	if req.Description != "" {
		app.Description = req.Description
	}
	app.UpdatedAt = time.Now()
	copied := *app
	return &copied, nil
}

// Delete removes an app.
func (s *AppStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[id]; !ok {
		return ErrNotFound
	}
	delete(s.apps, id)
	return nil
}
