package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/muni-incidencias/backend/internal/actions"
	"github.com/muni-incidencias/backend/internal/auth"
	"github.com/muni-incidencias/backend/internal/backend"
	"github.com/muni-incidencias/backend/internal/http/middleware"
	"github.com/muni-incidencias/backend/internal/models"
	"github.com/muni-incidencias/backend/internal/queries"
	"github.com/muni-incidencias/backend/internal/reports"
	"github.com/muni-incidencias/backend/internal/views"
)

// Pinger is the optional liveness probe of the data plane.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Queries *queries.Service
	Actions *actions.Service
	Cache   *views.Cache
	Pinger  Pinger
	Logger  zerolog.Logger
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

func (h *Handler) Healthz(c *gin.Context) {
	if h.Pinger != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := h.Pinger.Ping(ctx); err != nil {
			writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func postForm(c *gin.Context) (url.Values, bool) {
	if err := c.Request.ParseForm(); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid form payload", err.Error())
		return nil, false
	}
	return c.Request.PostForm, true
}

// @Summary Sign in
// @Tags auth
// @Accept x-www-form-urlencoded
// @Produce json
// @Router /login [post]
func (h *Handler) Login(c *gin.Context) {
	form, ok := postForm(c)
	if !ok {
		return
	}
	res := h.Actions.SignIn(c.Request.Context(), form)
	if !res.OK {
		c.JSON(http.StatusUnauthorized, res)
		return
	}
	for _, ck := range auth.SessionCookies(res.Session) {
		http.SetCookie(c.Writer, ck)
	}
	c.Redirect(http.StatusSeeOther, res.RedirectTo)
}

func (h *Handler) Logout(c *gin.Context) {
	access := ""
	if ck, err := c.Request.Cookie(auth.AccessCookie); err == nil {
		access = ck.Value
	}
	h.Actions.SignOut(c.Request.Context(), access)
	for _, ck := range auth.ClearCookies() {
		http.SetCookie(c.Writer, ck)
	}
	c.Redirect(http.StatusSeeOther, "/login")
}

// Dashboard renders the landing page data: per-status cards, the weekly and
// monthly charts and the five most recent incidents, fetched jointly.
func (h *Handler) Dashboard(c *gin.Context) {
	if cached, ok := h.Cache.Get(views.Dashboard); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	var (
		summary       map[string]int
		monthlyTotals map[string]int
		weekly        []models.WeeklyPoint
		recent        []models.IncidentRow
	)
	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error { summary = h.Queries.DashboardSummary(ctx); return nil })
	g.Go(func() error { monthlyTotals = h.Queries.MonthlyStatusTotals(ctx, ""); return nil })
	g.Go(func() error { weekly = h.Queries.WeeklyDistribution(ctx); return nil })
	g.Go(func() error { recent = h.Queries.RecentIncidents(ctx); return nil })
	_ = g.Wait()

	payload := gin.H{
		"summary":        summary,
		"monthly_totals": monthlyTotals,
		"weekly":         weekly,
		"recent":         recent,
	}
	h.Cache.Put(views.Dashboard, payload)
	c.JSON(http.StatusOK, payload)
}

func (h *Handler) IncidentsList(c *gin.Context) {
	filters := queries.ListFilters{
		Fecha:   c.Query("fecha"),
		Area:    c.DefaultQuery("area", queries.AllOption),
		Estado:  c.DefaultQuery("estado", queries.AllOption),
		Tecnico: c.DefaultQuery("tecnico", queries.AllOption),
	}
	unfiltered := filters == (queries.ListFilters{
		Area: queries.AllOption, Estado: queries.AllOption, Tecnico: queries.AllOption,
	})
	if unfiltered {
		if cached, ok := h.Cache.Get(views.Incidents); ok {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	var (
		areas       []models.Area
		technicians []models.Technician
		incidents   []models.IncidentRow
	)
	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error { areas = h.Queries.ListAreas(ctx); return nil })
	g.Go(func() error { technicians = h.Queries.ListTechnicians(ctx); return nil })
	g.Go(func() error { incidents = h.Queries.FilterIncidents(ctx, filters); return nil })
	_ = g.Wait()

	payload := gin.H{
		"filters":     filters,
		"areas":       areas,
		"technicians": technicians,
		"incidents":   incidents,
	}
	if unfiltered {
		h.Cache.Put(views.Incidents, payload)
	}
	c.JSON(http.StatusOK, payload)
}

// IncidentNew serves the registration form's reference data.
func (h *Handler) IncidentNew(c *gin.Context) {
	var (
		areas       []models.Area
		technicians []models.Technician
	)
	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error { areas = h.Queries.ListAreas(ctx); return nil })
	g.Go(func() error { technicians = h.Queries.ListTechnicians(ctx); return nil })
	_ = g.Wait()

	c.JSON(http.StatusOK, gin.H{
		"areas":       areas,
		"technicians": technicians,
		"statuses":    models.IncidentStatuses,
	})
}

// @Summary Register an incident
// @Tags incidents
// @Accept x-www-form-urlencoded
// @Produce json
// @Router /incidents [post]
func (h *Handler) IncidentCreate(c *gin.Context) {
	form, ok := postForm(c)
	if !ok {
		return
	}
	res := h.Actions.CreateIncident(c.Request.Context(), form)
	if !res.OK {
		c.JSON(http.StatusBadRequest, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) IncidentDetail(c *gin.Context) {
	code := c.Param("code")
	cacheKey := views.IncidentDetail + ":" + code
	if cached, ok := h.Cache.Get(cacheKey); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	row, err := h.Queries.GetIncidentByCode(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Incidencia no encontrada", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "No fue posible cargar la incidencia", nil)
		return
	}
	payload := gin.H{"incident": row, "statuses": models.IncidentStatuses}
	h.Cache.Put(cacheKey, payload)
	c.JSON(http.StatusOK, payload)
}

func (h *Handler) IncidentConfirm(c *gin.Context) {
	form, ok := postForm(c)
	if !ok {
		return
	}
	form.Set("code", c.Param("code"))
	res := h.Actions.ConfirmIncident(c.Request.Context(), form)
	if !res.OK {
		c.JSON(http.StatusBadRequest, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) IncidentStatus(c *gin.Context) {
	form, ok := postForm(c)
	if !ok {
		return
	}
	form.Set("code", c.Param("code"))
	res := h.Actions.UpdateIncidentStatus(c.Request.Context(), form)
	if !res.OK {
		c.JSON(http.StatusBadRequest, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Reports renders the aggregation page for the selected period and area.
func (h *Handler) Reports(c *gin.Context) {
	tipo := c.Query("tipo")
	fecha := c.Query("fecha")
	area := c.DefaultQuery("area", queries.AllOption)

	var (
		data  queries.ReportData
		areas []models.Area
	)
	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error { data = h.Queries.ReportAggregates(ctx, tipo, fecha, area); return nil })
	g.Go(func() error { areas = h.Queries.ListAreas(ctx); return nil })
	_ = g.Wait()

	c.JSON(http.StatusOK, gin.H{
		"report": data,
		"areas":  areas,
		"area":   area,
	})
}

func (h *Handler) Settings(c *gin.Context) {
	if cached, ok := h.Cache.Get(views.Settings); ok {
		c.JSON(http.StatusOK, cached)
		return
	}
	users := h.Queries.ListSystemUsers(c.Request.Context())
	payload := gin.H{
		"users":    users,
		"roles":    []string{models.RoleAdministrador, models.RoleOperador},
		"statuses": []string{models.UserActivo, models.UserInactivo},
	}
	h.Cache.Put(views.Settings, payload)
	c.JSON(http.StatusOK, payload)
}

func (h *Handler) UserCreate(c *gin.Context) {
	form, ok := postForm(c)
	if !ok {
		return
	}
	res := h.Actions.CreateUser(c.Request.Context(), form)
	if !res.OK {
		c.JSON(http.StatusBadRequest, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) UserUpdate(c *gin.Context) {
	form, ok := postForm(c)
	if !ok {
		return
	}
	form.Set("user_id", c.Param("id"))
	res := h.Actions.UpdateUser(c.Request.Context(), form)
	if !res.OK {
		c.JSON(http.StatusBadRequest, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) UserDelete(c *gin.Context) {
	form, ok := postForm(c)
	if !ok {
		return
	}
	form.Set("user_id", c.Param("id"))
	actorID := ""
	if sess := middleware.Session(c); sess != nil {
		actorID = sess.UserID
	}
	res := h.Actions.DeleteUser(c.Request.Context(), actorID, form)
	if !res.OK {
		c.JSON(http.StatusBadRequest, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary Export incidents as CSV
// @Tags exports
// @Produce text/csv
// @Router /api/incidents/export/csv [get]
func (h *Handler) ExportCSV(c *gin.Context) {
	rows := h.Queries.FilterIncidents(c.Request.Context(), queries.ListFilters{})

	var buf bytes.Buffer
	if err := reports.WriteCSV(&buf, rows); err != nil {
		writeError(c, http.StatusInternalServerError, "EXPORT_ERROR", "No se pudo generar el reporte.", nil)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="incidencias.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// @Summary Export incidents as PDF
// @Tags exports
// @Produce application/pdf
// @Router /api/incidents/export/pdf [get]
func (h *Handler) ExportPDF(c *gin.Context) {
	rows := h.Queries.FilterIncidents(c.Request.Context(), queries.ListFilters{})

	var buf bytes.Buffer
	if err := reports.WritePDF(&buf, rows); err != nil {
		h.Logger.Error().Err(err).Msg("pdf generation failed")
		writeError(c, http.StatusInternalServerError, "EXPORT_ERROR", "No se pudo generar el reporte.", nil)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="reporte-incidencias.pdf"`)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
