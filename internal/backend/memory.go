package backend

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/muni-incidencias/backend/internal/models"
)

// Memory is an in-memory Store. Tests seed its slices directly and use the
// call counters to assert which writes were (not) attempted. Error fields,
// when set, make every read or write fail with that error.
type Memory struct {
	mu sync.Mutex

	Areas       []models.Area
	Technicians []models.Technician
	Incidents   []models.IncidentRow
	Users       []models.SystemUser
	Summary     []models.StatusTotal

	// Dates overrides ListIncidentDates when non-nil, so tests can feed
	// malformed timestamps through the weekly bucketing path.
	Dates []string

	NextCode    string
	NextCodeErr error
	ReadErr     error
	WriteErr    error

	InsertCalls int
	UpdateCalls int
	DeleteCalls int
	UpsertCalls int
}

var _ Store = (*Memory)(nil)

func (m *Memory) ListAreas(ctx context.Context) ([]models.Area, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return append([]models.Area(nil), m.Areas...), nil
}

func (m *Memory) ListTechnicians(ctx context.Context) ([]models.Technician, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return append([]models.Technician(nil), m.Technicians...), nil
}

func (m *Memory) ListIncidents(ctx context.Context, f IncidentFilter) ([]models.IncidentRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	var out []models.IncidentRow
	for _, r := range m.Incidents {
		if f.From != nil && r.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil {
			if f.ToInclusive {
				if r.CreatedAt.After(*f.To) {
					continue
				}
			} else if !r.CreatedAt.Before(*f.To) {
				continue
			}
		}
		if f.AreaID != "" && r.AreaID != f.AreaID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.TechnicianID != "" && (r.TechnicianID == nil || *r.TechnicianID != f.TechnicianID) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) ListIncidentDates(ctx context.Context, from, to time.Time, toInclusive bool) ([]string, error) {
	m.mu.Lock()
	if m.ReadErr != nil {
		m.mu.Unlock()
		return nil, m.ReadErr
	}
	if m.Dates != nil {
		dates := append([]string(nil), m.Dates...)
		m.mu.Unlock()
		return dates, nil
	}
	m.mu.Unlock()

	rows, err := m.ListIncidents(ctx, IncidentFilter{From: &from, To: &to, ToInclusive: toInclusive})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.CreatedAt.Format(time.RFC3339))
	}
	return out, nil
}

func (m *Memory) GetIncidentByCode(ctx context.Context, code string) (*models.IncidentRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	for i := range m.Incidents {
		if m.Incidents[i].Code == code {
			r := m.Incidents[i]
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) InsertIncident(ctx context.Context, inc NewIncident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.InsertCalls++
	now := time.Now().UTC()
	m.Incidents = append(m.Incidents, models.IncidentRow{Incident: models.Incident{
		Code:         inc.Code,
		UserName:     inc.UserName,
		AreaID:       inc.AreaID,
		TechnicianID: inc.TechnicianID,
		Status:       inc.Status,
		Description:  inc.Description,
		Notes:        inc.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}})
	return nil
}

func (m *Memory) UpdateIncidentByCode(ctx context.Context, code string, patch IncidentPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.UpdateCalls++
	for i := range m.Incidents {
		if m.Incidents[i].Code != code {
			continue
		}
		if patch.Status != nil {
			m.Incidents[i].Status = *patch.Status
		}
		if patch.SetResolutionNotes {
			m.Incidents[i].ResolutionNotes = patch.ResolutionNotes
		}
		if patch.SetConfirmedBy {
			m.Incidents[i].ConfirmedBy = patch.ConfirmedBy
		}
		if patch.ConfirmedAt != nil {
			m.Incidents[i].ConfirmedAt = patch.ConfirmedAt
		}
		m.Incidents[i].UpdatedAt = time.Now().UTC()
		return nil
	}
	return ErrNotFound
}

func (m *Memory) NextIncidentCode(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.NextCodeErr != nil {
		return "", m.NextCodeErr
	}
	return m.NextCode, nil
}

func (m *Memory) DashboardSummary(ctx context.Context) ([]models.StatusTotal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return append([]models.StatusTotal(nil), m.Summary...), nil
}

func (m *Memory) ListSystemUsers(ctx context.Context) ([]models.SystemUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return append([]models.SystemUser(nil), m.Users...), nil
}

func (m *Memory) UpsertSystemUser(ctx context.Context, u models.SystemUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.UpsertCalls++
	for i := range m.Users {
		if m.Users[i].ID == u.ID {
			m.Users[i].Username = u.Username
			m.Users[i].Role = u.Role
			m.Users[i].Status = u.Status
			return nil
		}
	}
	u.CreatedAt = time.Now().UTC()
	m.Users = append(m.Users, u)
	return nil
}

func (m *Memory) UpdateSystemUser(ctx context.Context, id, role, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.UpdateCalls++
	for i := range m.Users {
		if m.Users[i].ID == id {
			m.Users[i].Role = role
			m.Users[i].Status = status
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) DeleteSystemUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.DeleteCalls++
	for i := range m.Users {
		if m.Users[i].ID == id {
			m.Users = append(m.Users[:i], m.Users[i+1:]...)
			return nil
		}
	}
	return nil
}
