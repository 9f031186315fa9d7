package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge-ai/console-api/internal/model"
)

func TestObjectStoreApplyGeneratedMergesByName(t *testing.T) {
	s := NewObjectStore()
	s.Upsert(model.ObjectDef{Name: "invoice", Fields: map[string]string{"total": "number"}})
	s.Upsert(model.ObjectDef{Name: "customer", Fields: map[string]string{"email": "text"}})

	s.ApplyGenerated([]model.ObjectDef{
		{Name: "invoice", Fields: map[string]string{"total": "number", "due": "date"}},
		{Name: "product", Fields: map[string]string{"sku": "text"}},
	})

	got := s.List()
	require.Len(t, got, 3)
	assert.Equal(t, "customer", got[0].Name)
	assert.Equal(t, "invoice", got[1].Name)
	assert.Equal(t, "product", got[2].Name)

	inv, err := s.Get("invoice")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"total": "number", "due": "date"}, inv.Fields,
		"generated definition replaces the same-named one")
}

func TestObjectStoreDelete(t *testing.T) {
	s := NewObjectStore()
	s.Upsert(model.ObjectDef{Name: "invoice"})

	require.NoError(t, s.Delete("invoice"))
	assert.ErrorIs(t, s.Delete("invoice"), ErrNotFound)

	_, err := s.Get("invoice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWorkflowStoreMergeAndList(t *testing.T) {
	s := NewWorkflowStore()
	s.ApplyGenerated([]model.WorkflowDef{
		{Name: "ship", Steps: []string{"pack", "send"}},
	})
	s.ApplyGenerated([]model.WorkflowDef{
		{Name: "ship", Steps: []string{"pack", "label", "send"}},
		{Name: "bill", Steps: []string{"draft", "email"}},
	})

	got := s.List()
	require.Len(t, got, 2)
	assert.Equal(t, "bill", got[0].Name)
	assert.Equal(t, []string{"pack", "label", "send"}, got[1].Steps)
}

func TestLayoutStoreReplacesWholesale(t *testing.T) {
	s := NewLayoutStore()
	s.ApplyGenerated([]model.LayoutSection{{Title: "Main", Fields: []string{"total"}}})
	s.ApplyGenerated([]model.LayoutSection{
		{Title: "Header", Fields: []string{"name"}},
		{Title: "Body", Fields: []string{"total", "due"}},
	})

	got := s.Get()
	require.Len(t, got, 2, "generated layout replaces, never merges")
	assert.Equal(t, "Header", got[0].Title)

	// The returned slice is a copy.
	got[0].Title = "mutated"
	assert.Equal(t, "Header", s.Get()[0].Title)
}

func TestAppStoreLifecycle(t *testing.T) {
	s := NewAppStore()

	app := s.Create(&model.CreateAppRequest{Name: "CRM", Description: "customer tracking"})
	require.NotEmpty(t, app.ID)

	got, err := s.Get(app.ID)
	require.NoError(t, err)
	assert.Equal(t, "CRM", got.Name)

	updated, err := s.Update(app.ID, &model.CreateAppRequest{Name: "CRM v2"})
	require.NoError(t, err)
	assert.Equal(t, "CRM v2", updated.Name)
	assert.Equal(t, "customer tracking", updated.Description, "empty fields are left alone")

	second := s.Create(&model.CreateAppRequest{Name: "Helpdesk"})
	apps := s.List()
	require.Len(t, apps, 2)
	assert.Equal(t, app.ID, apps[0].ID, "listed in creation order")
	assert.Equal(t, second.ID, apps[1].ID)

	require.NoError(t, s.Delete(app.ID))
	_, err = s.Get(app.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordStoreFiltersByObject(t *testing.T) {
	s := NewRecordStore()
	s.Create(&model.CreateRecordRequest{ObjectName: "invoice", Values: map[string]any{"total": 10}})
	s.Create(&model.CreateRecordRequest{ObjectName: "invoice", Values: map[string]any{"total": 20}})
	s.Create(&model.CreateRecordRequest{ObjectName: "customer", Values: map[string]any{"email": "a@b.c"}})

	assert.Len(t, s.List(""), 3)
	assert.Len(t, s.List("invoice"), 2)
	assert.Empty(t, s.List("product"))
}

func TestRecordStoreUpdateReplacesValues(t *testing.T) {
	s := NewRecordStore()
	rec := s.Create(&model.CreateRecordRequest{ObjectName: "invoice", Values: map[string]any{"total": 10}})

	updated, err := s.Update(rec.ID, map[string]any{"total": 25, "paid": true})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"total": 25, "paid": true}, updated.Values)

	_, err = s.Update("missing", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserStoreLifecycle(t *testing.T) {
	s := NewUserStore()
	u := s.Create(&model.CreateUserRequest{Email: "ops@example.com", Name: "Ops", Role: "admin"})

	got, err := s.Get(u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", got.Email)

	require.NoError(t, s.Delete(u.ID))
	assert.ErrorIs(t, s.Delete(u.ID), ErrNotFound)
}

func TestSnapshotStoreSaveAndGet(t *testing.T) {
	s := NewSnapshotStore()

	_, err := s.Get("app-1")
	assert.ErrorIs(t, err, ErrNotFound)

	snap := s.Save("app-1",
		[]model.ObjectDef{{Name: "invoice"}},
		[]model.WorkflowDef{{Name: "ship"}},
		[]model.LayoutSection{{Title: "Main"}},
	)
	assert.False(t, snap.SavedAt.IsZero())

	got, err := s.Get("app-1")
	require.NoError(t, err)
	assert.Len(t, got.Objects, 1)
	assert.Len(t, got.Workflows, 1)

	// A later save replaces the previous snapshot for the same app.
	s.Save("app-1", nil, nil, nil)
	got, err = s.Get("app-1")
	require.NoError(t, err)
	assert.Empty(t, got.Objects)
}
