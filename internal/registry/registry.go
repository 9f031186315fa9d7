// Package registry provides the in-memory schema and data stores behind the
// console's REST surface. The object, workflow, and layout stores also
// consume assistant-generated payload sections, so generated schema lands in
// the same place the REST surface reads.
package registry

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/appforge-ai/console-api/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("registry: not found")

// ObjectStore holds data-object definitions keyed by name.
type ObjectStore struct {
	mu      sync.RWMutex
	objects map[string]model.ObjectDef
}

// NewObjectStore creates an empty object store.
func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: make(map[string]model.ObjectDef)}
}

// ApplyGenerated merges assistant-generated object definitions, replacing
// same-named objects. It is the router's object consumer.
func (s *ObjectStore) ApplyGenerated(objects []model.ObjectDef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, def := range objects {
		s.objects[def.Name] = def
	}
}

// Upsert creates or replaces one object definition.
func (s *ObjectStore) Upsert(def model.ObjectDef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[def.Name] = def
}

// Get returns one object definition by name.
func (s *ObjectStore) Get(name string) (model.ObjectDef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.objects[name]
	if !ok {
		return model.ObjectDef{}, ErrNotFound
	}
	return def, nil
}

// List returns all object definitions ordered by name.
func (s *ObjectStore) List() []model.ObjectDef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ObjectDef, 0, len(s.objects))
	for _, def := range s.objects {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Delete removes one object definition.
func (s *ObjectStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[name]; !ok {
		return ErrNotFound
	}
	delete(s.objects, name)
	return nil
}

// WorkflowStore holds workflow definitions keyed by name.
type WorkflowStore struct {
	mu        sync.RWMutex
	workflows map[string]model.WorkflowDef
}

// NewWorkflowStore creates an empty workflow store.
func NewWorkflowStore() *WorkflowStore {
	return &WorkflowStore{workflows: make(map[string]model.WorkflowDef)}
}

// ApplyGenerated merges assistant-generated workflow definitions. It is the
// router's workflow consumer.
func (s *WorkflowStore) ApplyGenerated(workflows []model.WorkflowDef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, def := range workflows {
		s.workflows[def.Name] = def
	}
}

// Upsert creates or replaces one workflow definition.
func (s *WorkflowStore) Upsert(def model.WorkflowDef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[def.Name] = def
}

// Get returns one workflow definition by name.
func (s *WorkflowStore) Get(name string) (model.WorkflowDef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.workflows[name]
	if !ok {
		return model.WorkflowDef{}, ErrNotFound
	}
	return def, nil
}

// List returns all workflow definitions ordered by name.
func (s *WorkflowStore) List() []model.WorkflowDef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.WorkflowDef, 0, len(s.workflows))
	for _, def := range s.workflows {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Delete removes one workflow definition.
func (s *WorkflowStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[name]; !ok {
		return ErrNotFound
	}
	delete(s.workflows, name)
	return nil
}

// LayoutStore holds the current generated page layout.
type LayoutStore struct {
	mu       sync.RWMutex
	sections []model.LayoutSection
}

// NewLayoutStore creates an empty layout store.
func NewLayoutStore() *LayoutStore {
	return &LayoutStore{}
}

// ApplyGenerated replaces the layout with an assistant-generated one. It is
// the router's layout consumer.
func (s *LayoutStore) ApplyGenerated(layout []model.LayoutSection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections = append([]model.LayoutSection(nil), layout...)
}

// Get returns the current layout sections in order.
func (s *LayoutStore) Get() []model.LayoutSection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.LayoutSection(nil), s.sections...)
}

// SnapshotStore holds saved schema snapshots per app.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]model.SchemaSnapshot
}

// NewSnapshotStore creates an empty snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[string]model.SchemaSnapshot)}
}

// Save captures the current schema state for an app.
func (s *SnapshotStore) Save(appID string, objects []model.ObjectDef, workflows []model.WorkflowDef, layout []model.LayoutSection) model.SchemaSnapshot {
	snap := model.SchemaSnapshot{
		AppID:     appID,
		Objects:   objects,
		Workflows: workflows,
		Layout:    layout,
		SavedAt:   time.Now(),
	}
	s.mu.Lock()
	s.snapshots[appID] = snap
	s.mu.Unlock()
	return snap
}

// Get returns the last saved snapshot for an app.
func (s *SnapshotStore) Get(appID string) (model.SchemaSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[appID]
	if !ok {
		return model.SchemaSnapshot{}, ErrNotFound
	}
	return snap, nil
}
