package reports

import (
	"io"

	"github.com/go-pdf/fpdf"

	"github.com/muni-incidencias/backend/internal/dates"
	"github.com/muni-incidencias/backend/internal/models"
)

const (
	pdfMargin    = 48.0
	pdfTopBottom = 72.0
	pdfRowStep   = 14.0
)

var pdfColumnX = []float64{48, 120, 240, 360, 430, 510}

var pdfHeaders = []string{"Codigo", "Usuario", "Area", "Estado", "Tecnico", "Fecha"}

// truncateCell caps a cell at 26 runes, cutting to 23 plus an ellipsis
// marker so columns stay aligned.
func truncateCell(v string) string {
	runes := []rune(v)
	if len(runes) <= 26 {
		return v
	}
	return string(runes[:23]) + "..."
}

// WritePDF renders the paginated incident report: a repeated title and
// column-header block per page, one 9pt line per incident, and a light
// separator rule every 25 data rows.
func WritePDF(w io.Writer, rows []models.IncidentRow) error {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageWidth, pageHeight := pdf.GetPageSize()
	var cursorY float64

	drawTitle := func() {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.Text(pdfMargin, cursorY, tr("Municipalidad Provincial de Huancayo"))
		cursorY += 18
		pdf.SetFont("Helvetica", "", 12)
		pdf.Text(pdfMargin, cursorY, tr("Reporte de incidencias"))
		cursorY += 30
	}

	drawTableHeader := func() {
		pdf.SetFont("Helvetica", "B", 10)
		for i, h := range pdfHeaders {
			pdf.Text(pdfColumnX[i], cursorY, tr(h))
		}
		cursorY += 16
		pdf.SetLineWidth(0.5)
		pdf.Line(pdfMargin, cursorY, pageWidth-pdfMargin, cursorY)
		cursorY += 12
	}

	newPage := func() {
		pdf.AddPage()
		cursorY = pdfTopBottom
		drawTitle()
		drawTableHeader()
	}

	newPage()
	pdf.SetFont("Helvetica", "", 9)

	for rowIndex, r := range rows {
		if cursorY > pageHeight-pdfTopBottom {
			newPage()
			pdf.SetFont("Helvetica", "", 9)
		}

		cells := []string{
			r.Code,
			r.UserName,
			stringOr(r.AreaName, areaPlaceholder),
			r.Status,
			stringOr(r.TechnicianName, technicianPlaceholder),
			r.CreatedAt.In(dates.DefaultLocation).Format("02/01/2006 15:04"),
		}
		for i, v := range cells {
			pdf.Text(pdfColumnX[i], cursorY, tr(truncateCell(v)))
		}
		cursorY += pdfRowStep

		if (rowIndex+1)%25 == 0 {
			pdf.SetLineWidth(0.25)
			pdf.Line(pdfMargin, cursorY-4, pageWidth-pdfMargin, cursorY-4)
		}
	}

	return pdf.Output(w)
}
