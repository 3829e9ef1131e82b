package models

import "time"

// Incident lifecycle states, stored verbatim by the backend.
const (
	StatusPendiente = "Pendiente"
	StatusEnProceso = "En proceso"
	StatusResuelto  = "Resuelto"
)

// IncidentStatuses lists the valid lifecycle states in display order.
var IncidentStatuses = []string{StatusPendiente, StatusEnProceso, StatusResuelto}

func ValidIncidentStatus(s string) bool {
	for _, v := range IncidentStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// System user roles and account states.
const (
	RoleAdministrador = "Administrador"
	RoleOperador      = "Operador"

	UserActivo   = "Activo"
	UserInactivo = "Inactivo"
)

type Area struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Technician struct {
	ID       string  `json:"id"`
	FullName string  `json:"full_name"`
	Email    *string `json:"email"`
}

type Incident struct {
	ID              string     `json:"id"`
	Code            string     `json:"code"`
	UserName        string     `json:"user_name"`
	AreaID          string     `json:"area_id"`
	Description     string     `json:"description"`
	Notes           *string    `json:"notes"`
	ResolutionNotes *string    `json:"resolution_notes"`
	ConfirmedBy     *string    `json:"confirmed_by"`
	ConfirmedAt     *time.Time `json:"confirmed_at"`
	TechnicianID    *string    `json:"technician_id"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// IncidentRow is an incident joined with its area and technician names,
// the shape every list, detail and export view consumes.
type IncidentRow struct {
	Incident
	AreaName       *string `json:"area_name"`
	TechnicianName *string `json:"technician_name"`
}

type SystemUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// StatusTotal is one row of the backend's dashboard_summary view.
type StatusTotal struct {
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// WeeklyPoint is one slot of the Lun..Dom distribution series.
type WeeklyPoint struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}
