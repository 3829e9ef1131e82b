// Package backend is the narrow capability surface over the managed backend
// that owns all authoritative state: read rows matching filters, insert a
// row, patch a row, call a named server function. Handlers and actions only
// ever see these interfaces, so tests run against the in-memory Memory store.
package backend

import (
	"context"
	"errors"
	"time"

	"github.com/muni-incidencias/backend/internal/models"
)

// ErrNotFound marks a lookup that matched no row.
var ErrNotFound = errors.New("backend: not found")

// IncidentFilter narrows incident reads. Zero values mean "no constraint on
// that dimension"; the set dimensions compose conjunctively.
type IncidentFilter struct {
	From         *time.Time // created_at >= From
	To           *time.Time
	ToInclusive  bool // weekly windows close both ends, month windows are half-open
	AreaID       string
	Status       string
	TechnicianID string
	Limit        int
}

// NewIncident is the insert shape for a freshly registered incident.
type NewIncident struct {
	Code         string
	UserName     string
	AreaID       string
	TechnicianID *string
	Status       string
	Description  string
	Notes        *string
}

// IncidentPatch is a partial update addressed by incident code. Only fields
// whose pointer (or Set flag, for nullable columns) is armed are written.
type IncidentPatch struct {
	Status             *string
	ResolutionNotes    *string
	SetResolutionNotes bool
	ConfirmedBy        *string
	SetConfirmedBy     bool
	ConfirmedAt        *time.Time
}

// Store is everything this system asks of the managed backend's data plane.
type Store interface {
	ListAreas(ctx context.Context) ([]models.Area, error)
	ListTechnicians(ctx context.Context) ([]models.Technician, error)

	ListIncidents(ctx context.Context, f IncidentFilter) ([]models.IncidentRow, error)
	// ListIncidentDates returns the RFC 3339 creation timestamps of incidents
	// inside the window; the weekly chart only needs the dates.
	ListIncidentDates(ctx context.Context, from, to time.Time, toInclusive bool) ([]string, error)
	GetIncidentByCode(ctx context.Context, code string) (*models.IncidentRow, error)
	InsertIncident(ctx context.Context, inc NewIncident) error
	UpdateIncidentByCode(ctx context.Context, code string, patch IncidentPatch) error
	// NextIncidentCode calls the backend's code sequence function. An empty
	// string with nil error means the backend yielded nothing.
	NextIncidentCode(ctx context.Context) (string, error)
	DashboardSummary(ctx context.Context) ([]models.StatusTotal, error)

	ListSystemUsers(ctx context.Context) ([]models.SystemUser, error)
	UpsertSystemUser(ctx context.Context, u models.SystemUser) error
	UpdateSystemUser(ctx context.Context, id, role, status string) error
	DeleteSystemUser(ctx context.Context, id string) error
}
