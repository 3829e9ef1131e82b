package actions

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"time"

	"github.com/muni-incidencias/backend/internal/backend"
	"github.com/muni-incidencias/backend/internal/models"
	"github.com/muni-incidencias/backend/internal/views"
)

// ActionResult is the discriminated outcome of the create-incident action.
type ActionResult struct {
	OK      bool                `json:"ok"`
	Code    string              `json:"code,omitempty"`
	Message string              `json:"message,omitempty"`
	Issues  map[string][]string `json:"issues,omitempty"`
}

type createIncidentInput struct {
	UserName     string  `form:"user_name" validate:"required,min=3"`
	AreaID       string  `form:"area_id" validate:"required,uuid"`
	TechnicianID *string `form:"technician_id" validate:"omitempty,uuid"`
	Status       string  `form:"status" validate:"required,oneof='Pendiente' 'En proceso' 'Resuelto'"`
	Description  string  `form:"description" validate:"required,min=10"`
	Notes        *string `form:"notes"`
}

// fallbackCode synthesizes INC-<year>-<100..999> when the backend's sequence
// yields nothing. Not globally unique under concurrent creation; the
// sequence function is the real generator and this only covers its absence.
func fallbackCode() string {
	return fmt.Sprintf("INC-%d-%03d", time.Now().Year(), 100+rand.Intn(900))
}

// CreateIncident validates the registration form and inserts the incident
// under a backend-generated code.
func (s *Service) CreateIncident(ctx context.Context, form url.Values) ActionResult {
	var technicianID *string
	if v := form.Get("technician_id"); v != "" && v != "none" {
		technicianID = &v
	}
	var notes *string
	if v := form.Get("notes"); v != "" {
		notes = &v
	}

	in := createIncidentInput{
		UserName:     form.Get("user_name"),
		AreaID:       form.Get("area_id"),
		TechnicianID: technicianID,
		Status:       form.Get("status"),
		Description:  form.Get("description"),
		Notes:        notes,
	}
	if in.Status == "" {
		in.Status = models.StatusPendiente
	}
	if err := s.validate.Struct(in); err != nil {
		return ActionResult{
			OK:      false,
			Message: "Revisa los campos obligatorios.",
			Issues:  fieldErrors(err),
		}
	}

	code, err := s.Store.NextIncidentCode(ctx)
	if err != nil {
		s.Logger.Error().Err(err).Msg("incident code sequence failed")
	}
	usedFallback := code == ""
	if usedFallback {
		code = fallbackCode()
	}

	insert := func(code string) error {
		return s.Store.InsertIncident(ctx, backend.NewIncident{
			Code:         code,
			UserName:     in.UserName,
			AreaID:       in.AreaID,
			TechnicianID: in.TechnicianID,
			Status:       in.Status,
			Description:  in.Description,
			Notes:        in.Notes,
		})
	}
	err = insert(code)
	// Fallback codes can collide; redraw a couple of times before giving up.
	for attempt := 0; err != nil && usedFallback && attempt < 2; attempt++ {
		s.Logger.Warn().Err(err).Str("code", code).Msg("insert with fallback code failed, redrawing")
		code = fallbackCode()
		err = insert(code)
	}
	if err != nil {
		s.Logger.Error().Err(err).Str("code", code).Msg("insert incident failed")
		return ActionResult{OK: false, Message: "No se pudo registrar la incidencia. Intentalo nuevamente."}
	}

	s.invalidate(views.Dashboard, views.Incidents)
	return ActionResult{OK: true, Code: code}
}

// StatusResult is the outcome of the status-update action.
type StatusResult struct {
	OK      bool   `json:"ok"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// UpdateIncidentStatus moves an incident to a new lifecycle state. The
// Resuelto/confirmed-by invariant is the confirmation action's to enforce.
func (s *Service) UpdateIncidentStatus(ctx context.Context, form url.Values) StatusResult {
	code := form.Get("code")
	status := form.Get("status")
	if code == "" || !models.ValidIncidentStatus(status) {
		return StatusResult{OK: false, Message: "No se pudo cambiar el estado."}
	}

	if err := s.Store.UpdateIncidentByCode(ctx, code, backend.IncidentPatch{Status: &status}); err != nil {
		s.Logger.Error().Err(err).Str("code", code).Msg("status update failed")
		return StatusResult{OK: false, Message: "No se pudo cambiar el estado."}
	}

	s.invalidate(views.Incidents, views.Dashboard)
	return StatusResult{OK: true, Status: status, Message: "Estado actualizado."}
}

// ConfirmResult is the outcome of the confirmation/closing action.
type ConfirmResult struct {
	OK              bool    `json:"ok"`
	Message         string  `json:"message,omitempty"`
	Status          string  `json:"status,omitempty"`
	ResolutionNotes *string `json:"resolution_notes"`
	ConfirmedBy     *string `json:"confirmed_by"`
}

type confirmInput struct {
	Code            string  `form:"code" validate:"required"`
	Status          string  `form:"status" validate:"required,oneof='Pendiente' 'En proceso' 'Resuelto'"`
	ResolutionNotes *string `form:"resolution_notes" validate:"omitempty,max=500"`
	ConfirmedBy     *string `form:"confirmed_by" validate:"omitempty,max=120"`
}

// ConfirmIncident records the resolution outcome. Closing as Resuelto
// requires a confirming party; that check runs before any backend write.
func (s *Service) ConfirmIncident(ctx context.Context, form url.Values) ConfirmResult {
	status := form.Get("status")
	if status == "" {
		status = models.StatusResuelto
	}
	in := confirmInput{
		Code:            form.Get("code"),
		Status:          status,
		ResolutionNotes: trimOrNil(form.Get("resolution_notes")),
		ConfirmedBy:     trimOrNil(form.Get("confirmed_by")),
	}
	if err := s.validate.Struct(in); err != nil {
		return ConfirmResult{OK: false, Message: "Datos invalidos. Revisa la informacion ingresada."}
	}

	if in.Status == models.StatusResuelto && in.ConfirmedBy == nil {
		return ConfirmResult{OK: false, Message: "Indica quien aprueba la resolucion del ticket."}
	}

	now := time.Now().UTC()
	err := s.Store.UpdateIncidentByCode(ctx, in.Code, backend.IncidentPatch{
		Status:             &in.Status,
		ResolutionNotes:    in.ResolutionNotes,
		SetResolutionNotes: true,
		ConfirmedBy:        in.ConfirmedBy,
		SetConfirmedBy:     true,
		ConfirmedAt:        &now,
	})
	if err != nil {
		s.Logger.Error().Err(err).Str("code", in.Code).Msg("confirm incident failed")
		return ConfirmResult{OK: false, Message: "No fue posible confirmar la incidencia."}
	}

	s.invalidate(views.IncidentDetail, views.Incidents, views.Dashboard)
	return ConfirmResult{
		OK:              true,
		Message:         "La incidencia se actualizo correctamente.",
		Status:          in.Status,
		ResolutionNotes: in.ResolutionNotes,
		ConfirmedBy:     in.ConfirmedBy,
	}
}
