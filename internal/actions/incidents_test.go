package actions

import (
	"context"
	"net/url"
	"regexp"
	"testing"

	"github.com/rs/zerolog"

	"github.com/muni-incidencias/backend/internal/backend"
	"github.com/muni-incidencias/backend/internal/models"
)

const (
	areaID = "2f1f9f9e-8f4a-4f0e-a6a1-0c8b5b6a7d01"
	techID = "6a7b8c9d-0e1f-4a2b-8c3d-4e5f6a7b8c9d"
)

func newService(store backend.Store) *Service {
	return New(store, nil, nil, nil, nil, zerolog.Nop())
}

func TestCreateIncident_FieldErrors(t *testing.T) {
	mem := &backend.Memory{}
	svc := newService(mem)

	form := url.Values{}
	form.Set("user_name", "ab")
	form.Set("area_id", "not-a-uuid")
	form.Set("description", "corto")

	res := svc.CreateIncident(context.Background(), form)
	if res.OK {
		t.Fatalf("expected validation failure, got %+v", res)
	}
	if len(res.Issues["user_name"]) == 0 {
		t.Fatalf("expected issue for user_name, got %v", res.Issues)
	}
	if len(res.Issues["area_id"]) == 0 {
		t.Fatalf("expected issue for area_id, got %v", res.Issues)
	}
	if len(res.Issues["description"]) == 0 {
		t.Fatalf("expected issue for description, got %v", res.Issues)
	}
	if mem.InsertCalls != 0 {
		t.Fatalf("expected no insert on validation failure, got %d", mem.InsertCalls)
	}
}

func TestCreateIncident_UsesSequenceCode(t *testing.T) {
	mem := &backend.Memory{NextCode: "INC-2026-041"}
	svc := newService(mem)

	form := url.Values{}
	form.Set("user_name", "Maria Quispe")
	form.Set("area_id", areaID)
	form.Set("technician_id", "none")
	form.Set("description", "La impresora del segundo piso no responde.")

	res := svc.CreateIncident(context.Background(), form)
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Code != "INC-2026-041" {
		t.Fatalf("expected sequence code, got %s", res.Code)
	}
	if mem.InsertCalls != 1 {
		t.Fatalf("expected 1 insert, got %d", mem.InsertCalls)
	}
	row := mem.Incidents[0]
	if row.TechnicianID != nil {
		t.Fatalf("expected technician_id=none to store null, got %v", *row.TechnicianID)
	}
	if row.Status != models.StatusPendiente {
		t.Fatalf("expected default status Pendiente, got %s", row.Status)
	}
}

func TestCreateIncident_FallbackCode(t *testing.T) {
	mem := &backend.Memory{}
	svc := newService(mem)

	form := url.Values{}
	form.Set("user_name", "Jorge Rojas")
	form.Set("area_id", areaID)
	form.Set("status", models.StatusEnProceso)
	form.Set("description", "El sistema de tramites se cierra al guardar.")

	res := svc.CreateIncident(context.Background(), form)
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	if !regexp.MustCompile(`^INC-\d{4}-\d{3}$`).MatchString(res.Code) {
		t.Fatalf("expected fallback code shape, got %s", res.Code)
	}
}

func TestUpdateIncidentStatus_RejectsUnknownStatus(t *testing.T) {
	mem := &backend.Memory{Incidents: []models.IncidentRow{
		{Incident: models.Incident{Code: "INC-2026-001", Status: models.StatusPendiente}},
	}}
	svc := newService(mem)

	form := url.Values{}
	form.Set("code", "INC-2026-001")
	form.Set("status", "Cerrado")

	res := svc.UpdateIncidentStatus(context.Background(), form)
	if res.OK {
		t.Fatalf("expected rejection of unknown status")
	}
	if mem.UpdateCalls != 0 {
		t.Fatalf("expected no update, got %d", mem.UpdateCalls)
	}
}

func TestUpdateIncidentStatus_Applies(t *testing.T) {
	mem := &backend.Memory{Incidents: []models.IncidentRow{
		{Incident: models.Incident{Code: "INC-2026-001", Status: models.StatusPendiente}},
	}}
	svc := newService(mem)

	form := url.Values{}
	form.Set("code", "INC-2026-001")
	form.Set("status", models.StatusEnProceso)

	res := svc.UpdateIncidentStatus(context.Background(), form)
	if !res.OK || res.Status != models.StatusEnProceso {
		t.Fatalf("expected status change, got %+v", res)
	}
	if mem.Incidents[0].Status != models.StatusEnProceso {
		t.Fatalf("expected stored status updated, got %s", mem.Incidents[0].Status)
	}
}

func TestConfirmIncident_ResueltoRequiresConfirmer(t *testing.T) {
	mem := &backend.Memory{Incidents: []models.IncidentRow{
		{Incident: models.Incident{Code: "INC-2026-002", Status: models.StatusEnProceso}},
	}}
	svc := newService(mem)

	form := url.Values{}
	form.Set("code", "INC-2026-002")
	form.Set("status", models.StatusResuelto)
	form.Set("confirmed_by", "   ")

	res := svc.ConfirmIncident(context.Background(), form)
	if res.OK {
		t.Fatalf("expected rejection without confirmer")
	}
	if res.Message != "Indica quien aprueba la resolucion del ticket." {
		t.Fatalf("unexpected message: %s", res.Message)
	}
	if mem.UpdateCalls != 0 {
		t.Fatalf("expected check before any write, got %d updates", mem.UpdateCalls)
	}
}

func TestConfirmIncident_DefaultsToResuelto(t *testing.T) {
	mem := &backend.Memory{Incidents: []models.IncidentRow{
		{Incident: models.Incident{Code: "INC-2026-003", Status: models.StatusEnProceso}},
	}}
	svc := newService(mem)

	form := url.Values{}
	form.Set("code", "INC-2026-003")
	form.Set("resolution_notes", " Se reemplazo el toner. ")
	form.Set("confirmed_by", "Jefa de area")

	res := svc.ConfirmIncident(context.Background(), form)
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Status != models.StatusResuelto {
		t.Fatalf("expected Resuelto default, got %s", res.Status)
	}
	row := mem.Incidents[0]
	if row.ResolutionNotes == nil || *row.ResolutionNotes != "Se reemplazo el toner." {
		t.Fatalf("expected trimmed notes, got %v", row.ResolutionNotes)
	}
	if row.ConfirmedAt == nil {
		t.Fatalf("expected confirmed_at stamped")
	}
}

func TestConfirmIncident_UnknownCode(t *testing.T) {
	mem := &backend.Memory{}
	svc := newService(mem)

	form := url.Values{}
	form.Set("code", "INC-2026-999")
	form.Set("status", models.StatusEnProceso)

	res := svc.ConfirmIncident(context.Background(), form)
	if res.OK {
		t.Fatalf("expected failure for unknown code")
	}
}
