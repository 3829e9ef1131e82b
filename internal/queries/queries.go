// Package queries holds the per-page data fetchers. Reads degrade: a
// backend failure is logged and the page gets an empty result set, never an
// error.
package queries

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/muni-incidencias/backend/internal/backend"
	"github.com/muni-incidencias/backend/internal/dates"
	"github.com/muni-incidencias/backend/internal/models"
)

// AllOption is the filter sentinel meaning "no constraint".
const AllOption = "all"

type Service struct {
	Store  backend.Store
	Logger zerolog.Logger
}

func emptyTotals() map[string]int {
	return map[string]int{
		models.StatusPendiente: 0,
		models.StatusEnProceso: 0,
		models.StatusResuelto:  0,
	}
}

// DashboardSummary reads the backend's precomputed per-status view and folds
// it into the fixed three-key map. Unrecognized statuses never count.
func (s *Service) DashboardSummary(ctx context.Context) map[string]int {
	totals := emptyTotals()
	rows, err := s.Store.DashboardSummary(ctx)
	if err != nil {
		s.Logger.Error().Err(err).Msg("dashboard summary fetch failed")
		return totals
	}
	for _, row := range rows {
		if _, ok := totals[row.Status]; ok {
			totals[row.Status] += row.Total
		}
	}
	return totals
}

// MonthlyStatusTotals folds the month's raw incidents into status totals.
// monthInput is a strict "YYYY-MM" or empty for the current month.
func (s *Service) MonthlyStatusTotals(ctx context.Context, monthInput string) map[string]int {
	start, end, _ := dates.MonthBounds(monthInput)
	return s.statusTotals(ctx, backend.IncidentFilter{From: &start, To: &end})
}

func (s *Service) statusTotals(ctx context.Context, f backend.IncidentFilter) map[string]int {
	totals := emptyTotals()
	rows, err := s.Store.ListIncidents(ctx, f)
	if err != nil {
		s.Logger.Error().Err(err).Msg("status totals fetch failed")
		return totals
	}
	for _, row := range rows {
		if _, ok := totals[row.Status]; ok {
			totals[row.Status]++
		}
	}
	return totals
}

// WeeklyDistribution buckets the trailing 7-day window into a fixed
// Lun..Dom series. Timestamps that do not parse are discarded.
func (s *Service) WeeklyDistribution(ctx context.Context) []models.WeeklyPoint {
	start, end := dates.LastNDaysRange(7)
	counts := make([]int, len(dates.WeekdayLabels))

	stamps, err := s.Store.ListIncidentDates(ctx, start, end, true)
	if err != nil {
		s.Logger.Error().Err(err).Msg("weekly distribution fetch failed")
	}
	for _, ts := range stamps {
		if idx := dates.WeekdayBucket(ts, dates.DefaultLocation); idx >= 0 {
			counts[idx]++
		}
	}

	series := make([]models.WeeklyPoint, len(dates.WeekdayLabels))
	for i, label := range dates.WeekdayLabels {
		series[i] = models.WeeklyPoint{Label: label, Value: counts[i]}
	}
	return series
}

// RecentIncidents returns the five most recently registered incidents.
func (s *Service) RecentIncidents(ctx context.Context) []models.IncidentRow {
	rows, err := s.Store.ListIncidents(ctx, backend.IncidentFilter{Limit: 5})
	if err != nil {
		s.Logger.Error().Err(err).Msg("recent incidents fetch failed")
		return []models.IncidentRow{}
	}
	return rows
}

// ListFilters are the incident-list dimensions. The "all" sentinel (or an
// empty value) leaves a dimension unconstrained; set filters compose
// conjunctively.
type ListFilters struct {
	Fecha   string // exact day, "YYYY-MM-DD"
	Area    string
	Estado  string
	Tecnico string
}

// FilterIncidents lists incidents joined with area and technician names,
// newest first, narrowed by the given filters.
func (s *Service) FilterIncidents(ctx context.Context, f ListFilters) []models.IncidentRow {
	filter := backend.IncidentFilter{}
	if f.Area != "" && f.Area != AllOption {
		filter.AreaID = f.Area
	}
	if f.Estado != "" && f.Estado != AllOption {
		filter.Status = f.Estado
	}
	if f.Tecnico != "" && f.Tecnico != AllOption {
		filter.TechnicianID = f.Tecnico
	}
	if f.Fecha != "" {
		if day, err := time.ParseInLocation("2006-01-02", f.Fecha, dates.DefaultLocation); err == nil {
			next := day.AddDate(0, 0, 1)
			filter.From = &day
			filter.To = &next
		}
	}

	rows, err := s.Store.ListIncidents(ctx, filter)
	if err != nil {
		s.Logger.Error().Err(err).Msg("incident list fetch failed")
		return []models.IncidentRow{}
	}
	return rows
}

// GetIncidentByCode loads the detail view. Backend failures are logged and
// surface as not-found so the page 404s instead of erroring.
func (s *Service) GetIncidentByCode(ctx context.Context, code string) (*models.IncidentRow, error) {
	row, err := s.Store.GetIncidentByCode(ctx, code)
	if err != nil {
		if !errors.Is(err, backend.ErrNotFound) {
			s.Logger.Error().Err(err).Str("code", code).Msg("incident detail fetch failed")
		}
		return nil, backend.ErrNotFound
	}
	return row, nil
}

func (s *Service) ListAreas(ctx context.Context) []models.Area {
	rows, err := s.Store.ListAreas(ctx)
	if err != nil {
		s.Logger.Error().Err(err).Msg("area list fetch failed")
		return []models.Area{}
	}
	return rows
}

func (s *Service) ListTechnicians(ctx context.Context) []models.Technician {
	rows, err := s.Store.ListTechnicians(ctx)
	if err != nil {
		s.Logger.Error().Err(err).Msg("technician list fetch failed")
		return []models.Technician{}
	}
	return rows
}

func (s *Service) ListSystemUsers(ctx context.Context) []models.SystemUser {
	rows, err := s.Store.ListSystemUsers(ctx)
	if err != nil {
		s.Logger.Error().Err(err).Msg("system user list fetch failed")
		return []models.SystemUser{}
	}
	return rows
}

// Report period kinds.
const (
	ReportMensual       = "mensual"
	ReportSemanal       = "semanal"
	ReportPersonalizado = "personalizado"
)

// ReportData feeds the reports page: status totals and the weekday series
// over the selected period.
type ReportData struct {
	Type         string               `json:"type"`
	MonthInput   string               `json:"month_input"`
	StatusTotals map[string]int       `json:"status_totals"`
	Weekly       []models.WeeklyPoint `json:"weekly"`
}

// ReportAggregates computes the reports-page aggregation. "semanal" uses the
// trailing 7 days closed on both ends; the other types use the month window
// half-open. An area other than the "all" sentinel narrows every count.
func (s *Service) ReportAggregates(ctx context.Context, tipo, fecha, area string) ReportData {
	if tipo != ReportSemanal && tipo != ReportPersonalizado {
		tipo = ReportMensual
	}

	_, _, canonical := dates.MonthBounds(fecha)
	filter := backend.IncidentFilter{}
	if tipo == ReportSemanal {
		start, end := dates.LastNDaysRange(7)
		filter.From, filter.To, filter.ToInclusive = &start, &end, true
	} else {
		start, end, _ := dates.MonthBounds(fecha)
		filter.From, filter.To = &start, &end
	}
	if area != "" && area != AllOption {
		filter.AreaID = area
	}

	totals := emptyTotals()
	counts := make([]int, len(dates.WeekdayLabels))
	rows, err := s.Store.ListIncidents(ctx, filter)
	if err != nil {
		s.Logger.Error().Err(err).Msg("report aggregation fetch failed")
	}
	for _, row := range rows {
		if _, ok := totals[row.Status]; ok {
			totals[row.Status]++
		}
		if idx := dates.WeekdayBucket(row.CreatedAt.Format(time.RFC3339), dates.DefaultLocation); idx >= 0 {
			counts[idx]++
		}
	}

	weekly := make([]models.WeeklyPoint, len(dates.WeekdayLabels))
	for i, label := range dates.WeekdayLabels {
		weekly[i] = models.WeeklyPoint{Label: label, Value: counts[i]}
	}
	return ReportData{Type: tipo, MonthInput: canonical, StatusTotals: totals, Weekly: weekly}
}
