package model

import (
	"time"
)

// App is an application whose schema the console manages.
type App struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateAppRequest is the request to create an app.
type CreateAppRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Record is an end-user data row for an object.
type Record struct {
	ID         string         `json:"id"`
	ObjectName string         `json:"object_name"`
	Values     map[string]any `json:"values"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// CreateRecordRequest is the request to create a record.
type CreateRecordRequest struct {
	ObjectName string         `json:"object_name"`
	Values     map[string]any `json:"values"`
}

// User is an end user known to the console.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateUserRequest is the request to create a user.
type CreateUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role,omitempty"`
}

// SchemaSnapshot is the full schema state saved for an app.
type SchemaSnapshot struct {
	AppID     string          `json:"app_id"`
	Objects   []ObjectDef     `json:"objects"`
	Workflows []WorkflowDef   `json:"workflows"`
	Layout    []LayoutSection `json:"layout"`
	SavedAt   time.Time       `json:"saved_at"`
}
