// Package reports renders the incident export payloads: a delimited text
// file and a paginated PDF, both over the same joined incident rows.
package reports

import (
	"io"
	"strings"
	"time"

	"github.com/muni-incidencias/backend/internal/models"
)

var csvHeader = []string{"Codigo", "Usuario", "Area", "Estado", "Tecnico", "Fecha de registro"}

// Placeholders for missing joined names.
const (
	areaPlaceholder       = "-"
	technicianPlaceholder = "Sin asignar"
)

// WriteCSV emits a header row plus one row per incident. Every cell is
// quoted, with embedded quotes doubled — consumers rely on the uniform
// quoting, which rules out encoding/csv's minimal-quoting output.
func WriteCSV(w io.Writer, rows []models.IncidentRow) error {
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, csvLine(csvHeader))
	for _, r := range rows {
		lines = append(lines, csvLine([]string{
			r.Code,
			r.UserName,
			stringOr(r.AreaName, areaPlaceholder),
			r.Status,
			stringOr(r.TechnicianName, technicianPlaceholder),
			r.CreatedAt.UTC().Format(time.RFC3339),
		}))
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n"))
	return err
}

func csvLine(cells []string) string {
	quoted := make([]string, len(cells))
	for i, c := range cells {
		quoted[i] = `"` + strings.ReplaceAll(c, `"`, `""`) + `"`
	}
	return strings.Join(quoted, ",")
}

func stringOr(v *string, fallback string) string {
	if v == nil || *v == "" {
		return fallback
	}
	return *v
}
