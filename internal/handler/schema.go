package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/appforge-ai/console-api/internal/middleware"
	"github.com/appforge-ai/console-api/internal/model"
	"github.com/appforge-ai/console-api/internal/registry"
	"github.com/appforge-ai/console-api/pkg/logger"
)

// SchemaHandler handles the registry CRUD surface: apps, objects, workflows,
// records, users, layout, and schema save.
type SchemaHandler struct {
	apps      *registry.AppStore
	objects   *registry.ObjectStore
	workflows *registry.WorkflowStore
	records   *registry.RecordStore
	users     *registry.UserStore
	layout    *registry.LayoutStore
	snapshots *registry.SnapshotStore
	logger    *logger.Logger
}

// NewSchemaHandler creates a new schema handler.
func NewSchemaHandler(
	apps *registry.AppStore,
	objects *registry.ObjectStore,
	workflows *registry.WorkflowStore,
	records *registry.RecordStore,
	users *registry.UserStore,
	layout *registry.LayoutStore,
	snapshots *registry.SnapshotStore,
	log *logger.Logger,
) *SchemaHandler {
	return &SchemaHandler{
		apps:      apps,
		objects:   objects,
		workflows: workflows,
		records:   records,
		users:     users,
		layout:    layout,
		snapshots: snapshots,
		logger:    log,
	}
}

// CreateApp handles POST /api/v1/apps
func (h *SchemaHandler) CreateApp(w http.ResponseWriter, r *http.Request) {
	var req model.CreateAppRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateName(req.Name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, h.apps.Create(&req))
}

// ListApps handles GET /api/v1/apps
func (h *SchemaHandler) ListApps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.apps.List())
}

// GetApp handles GET /api/v1/apps/{id}
func (h *SchemaHandler) GetApp(w http.ResponseWriter, r *http.Request) {
	app, err := h.apps.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "app not found")
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// UpdateApp handles PUT /api/v1/apps/{id}
func (h *SchemaHandler) UpdateApp(w http.ResponseWriter, r *http.Request) {
	var req model.CreateAppRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	app, err := h.apps.Update(chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, http.StatusNotFound, "app not found")
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// DeleteApp handles DELETE /api/v1/apps/{id}
func (h *SchemaHandler) DeleteApp(w http.ResponseWriter, r *http.Request) {
	if err := h.apps.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, "app not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListObjects handles GET /api/v1/objects
func (h *SchemaHandler) ListObjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.objects.List())
}

// GetObject handles GET /api/v1/objects/{name}
func (h *SchemaHandler) GetObject(w http.ResponseWriter, r *http.Request) {
	def, err := h.objects.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusNotFound, "object not found")
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// UpsertObject handles PUT /api/v1/objects/{name}
func (h *SchemaHandler) UpsertObject(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := middleware.ValidateName(name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var def model.ObjectDef
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	def.Name = name
	h.objects.Upsert(def)
	writeJSON(w, http.StatusOK, def)
}

// DeleteObject handles DELETE /api/v1/objects/{name}
func (h *SchemaHandler) DeleteObject(w http.ResponseWriter, r *http.Request) {
	if err := h.objects.Delete(chi.URLParam(r, "name")); err != nil {
		writeError(w, http.StatusNotFound, "object not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListWorkflows handles GET /api/v1/workflows
func (h *SchemaHandler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.workflows.List())
}

// GetWorkflow handles GET /api/v1/workflows/{name}
func (h *SchemaHandler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	def, err := h.workflows.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusNotFound, "workflow not found")
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// UpsertWorkflow handles PUT /api/v1/workflows/{name}
func (h *SchemaHandler) UpsertWorkflow(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := middleware.ValidateName(name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var def model.WorkflowDef
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	def.Name = name
	h.workflows.Upsert(def)
	writeJSON(w, http.StatusOK, def)
}

// DeleteWorkflow handles DELETE /api/v1/workflows/{name}
func (h *SchemaHandler) DeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := h.workflows.Delete(chi.URLParam(r, "name")); err != nil {
		writeError(w, http.StatusNotFound, "workflow not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetLayout handles GET /api/v1/layout
func (h *SchemaHandler) GetLayout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.layout.Get())
}

// SetLayout handles PUT /api/v1/layout
func (h *SchemaHandler) SetLayout(w http.ResponseWriter, r *http.Request) {
	var sections []model.LayoutSection
	if err := json.NewDecoder(r.Body).Decode(&sections); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.layout.ApplyGenerated(sections)
	writeJSON(w, http.StatusOK, sections)
}

// CreateRecord handles POST /api/v1/records
func (h *SchemaHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var req model.CreateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateName(req.ObjectName); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.objects.Get(req.ObjectName); err != nil {
		writeError(w, http.StatusNotFound, "object not found")
		return
	}
	writeJSON(w, http.StatusCreated, h.records.Create(&req))
}

// ListRecords handles GET /api/v1/records?object=name
func (h *SchemaHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.records.List(r.URL.Query().Get("object")))
}

// GetRecord handles GET /api/v1/records/{id}
func (h *SchemaHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.records.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// UpdateRecord handles PUT /api/v1/records/{id}
func (h *SchemaHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	var values map[string]any
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec, err := h.records.Update(chi.URLParam(r, "id"), values)
	if err != nil {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteRecord handles DELETE /api/v1/records/{id}
func (h *SchemaHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.records.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateUser handles POST /api/v1/users
func (h *SchemaHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req model.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email cannot be empty")
		return
	}
	writeJSON(w, http.StatusCreated, h.users.Create(&req))
}

// ListUsers handles GET /api/v1/users
func (h *SchemaHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.users.List())
}

// DeleteUser handles DELETE /api/v1/users/{id}
func (h *SchemaHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveSchema handles POST /api/v1/schema/save. It snapshots the current
// registry state for an app.
func (h *SchemaHandler) SaveSchema(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AppID string `json:"app_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := h.apps.Get(req.AppID); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, "app not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load app")
		return
	}

	snap := h.snapshots.Save(req.AppID, h.objects.List(), h.workflows.List(), h.layout.Get())
	writeJSON(w, http.StatusOK, snap)
}

// GetSchema handles GET /api/v1/schema/{appID}
func (h *SchemaHandler) GetSchema(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Get(chi.URLParam(r, "appID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "schema not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
