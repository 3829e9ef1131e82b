package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/muni-incidencias/backend/internal/models"
)

// PG talks to the managed backend's hosted Postgres.
type PG struct {
	Pool *pgxpool.Pool
}

func NewPG(ctx context.Context, databaseURL string) (*PG, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &PG{Pool: pool}, nil
}

func (s *PG) Close() {
	s.Pool.Close()
}

func (s *PG) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *PG) ListAreas(ctx context.Context) ([]models.Area, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, name FROM areas ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Area
	for rows.Next() {
		var a models.Area
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PG) ListTechnicians(ctx context.Context) ([]models.Technician, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, full_name, email FROM technicians ORDER BY full_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Technician
	for rows.Next() {
		var t models.Technician
		if err := rows.Scan(&t.ID, &t.FullName, &t.Email); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const incidentColumns = `i.id, i.code, i.user_name, i.area_id, i.description, i.notes,
	i.resolution_notes, i.confirmed_by, i.confirmed_at, i.technician_id, i.status,
	i.created_at, i.updated_at, a.name, t.full_name`

const incidentJoin = `FROM incidents i
	LEFT JOIN areas a ON a.id = i.area_id
	LEFT JOIN technicians t ON t.id = i.technician_id`

func scanIncidentRow(row pgx.Row) (models.IncidentRow, error) {
	var r models.IncidentRow
	err := row.Scan(
		&r.ID, &r.Code, &r.UserName, &r.AreaID, &r.Description, &r.Notes,
		&r.ResolutionNotes, &r.ConfirmedBy, &r.ConfirmedAt, &r.TechnicianID, &r.Status,
		&r.CreatedAt, &r.UpdatedAt, &r.AreaName, &r.TechnicianName,
	)
	return r, err
}

func (s *PG) ListIncidents(ctx context.Context, f IncidentFilter) ([]models.IncidentRow, error) {
	query := "SELECT " + incidentColumns + " " + incidentJoin
	var args []any
	var wheres []string
	if f.From != nil {
		args = append(args, *f.From)
		wheres = append(wheres, fmt.Sprintf("i.created_at >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		op := "<"
		if f.ToInclusive {
			op = "<="
		}
		wheres = append(wheres, fmt.Sprintf("i.created_at %s $%d", op, len(args)))
	}
	if f.AreaID != "" {
		args = append(args, f.AreaID)
		wheres = append(wheres, fmt.Sprintf("i.area_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		wheres = append(wheres, fmt.Sprintf("i.status = $%d", len(args)))
	}
	if f.TechnicianID != "" {
		args = append(args, f.TechnicianID)
		wheres = append(wheres, fmt.Sprintf("i.technician_id = $%d", len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY i.created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.IncidentRow
	for rows.Next() {
		r, err := scanIncidentRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PG) ListIncidentDates(ctx context.Context, from, to time.Time, toInclusive bool) ([]string, error) {
	op := "<"
	if toInclusive {
		op = "<="
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT created_at FROM incidents WHERE created_at >= $1 AND created_at `+op+` $2`,
		from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		out = append(out, ts.Format(time.RFC3339))
	}
	return out, rows.Err()
}

func (s *PG) GetIncidentByCode(ctx context.Context, code string) (*models.IncidentRow, error) {
	row := s.Pool.QueryRow(ctx,
		"SELECT "+incidentColumns+" "+incidentJoin+" WHERE i.code = $1", code)
	r, err := scanIncidentRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *PG) InsertIncident(ctx context.Context, inc NewIncident) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO incidents (code, user_name, area_id, technician_id, status, description, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, inc.Code, inc.UserName, inc.AreaID, inc.TechnicianID, inc.Status, inc.Description, inc.Notes)
	return err
}

func (s *PG) UpdateIncidentByCode(ctx context.Context, code string, patch IncidentPatch) error {
	var args []any
	var sets []string
	if patch.Status != nil {
		args = append(args, *patch.Status)
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	if patch.SetResolutionNotes {
		args = append(args, patch.ResolutionNotes)
		sets = append(sets, fmt.Sprintf("resolution_notes = $%d", len(args)))
	}
	if patch.SetConfirmedBy {
		args = append(args, patch.ConfirmedBy)
		sets = append(sets, fmt.Sprintf("confirmed_by = $%d", len(args)))
	}
	if patch.ConfirmedAt != nil {
		args = append(args, *patch.ConfirmedAt)
		sets = append(sets, fmt.Sprintf("confirmed_at = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, code)
	query := fmt.Sprintf("UPDATE incidents SET %s WHERE code = $%d", strings.Join(sets, ", "), len(args))

	tag, err := s.Pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PG) NextIncidentCode(ctx context.Context) (string, error) {
	var code *string
	if err := s.Pool.QueryRow(ctx, `SELECT incident_code_sequence()`).Scan(&code); err != nil {
		return "", err
	}
	if code == nil {
		return "", nil
	}
	return *code, nil
}

func (s *PG) DashboardSummary(ctx context.Context) ([]models.StatusTotal, error) {
	rows, err := s.Pool.Query(ctx, `SELECT status, total FROM dashboard_summary`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.StatusTotal
	for rows.Next() {
		var st models.StatusTotal
		if err := rows.Scan(&st.Status, &st.Total); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *PG) ListSystemUsers(ctx context.Context) ([]models.SystemUser, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, username, role, status, created_at FROM system_users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SystemUser
	for rows.Next() {
		var u models.SystemUser
		if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.Status, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *PG) UpsertSystemUser(ctx context.Context, u models.SystemUser) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO system_users (id, username, role, status)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			role = EXCLUDED.role,
			status = EXCLUDED.status
	`, u.ID, u.Username, u.Role, u.Status)
	return err
}

func (s *PG) UpdateSystemUser(ctx context.Context, id, role, status string) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE system_users SET role = $1, status = $2 WHERE id = $3`, role, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PG) DeleteSystemUser(ctx context.Context, id string) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM system_users WHERE id = $1`, id)
	return err
}
