package reports

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/muni-incidencias/backend/internal/models"
)

func TestTruncateCell(t *testing.T) {
	if got := truncateCell("corto"); got != "corto" {
		t.Fatalf("expected short value untouched, got %s", got)
	}
	exact := strings.Repeat("a", 26)
	if got := truncateCell(exact); got != exact {
		t.Fatalf("expected 26-rune value untouched, got %s", got)
	}
	long := strings.Repeat("a", 27)
	if got := truncateCell(long); got != strings.Repeat("a", 23)+"..." {
		t.Fatalf("unexpected truncation: %s", got)
	}
	// Rune-based, not byte-based.
	accented := strings.Repeat("á", 30)
	got := truncateCell(accented)
	if got != strings.Repeat("á", 23)+"..." {
		t.Fatalf("unexpected multibyte truncation: %s", got)
	}
}

func TestWritePDF_ProducesDocument(t *testing.T) {
	rows := make([]models.IncidentRow, 0, 60)
	for i := 0; i < 60; i++ {
		rows = append(rows, models.IncidentRow{Incident: models.Incident{
			Code:      "INC-2026-001",
			UserName:  "Usuario con un nombre bastante largo para truncar",
			Status:    models.StatusPendiente,
			CreatedAt: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
		}})
	}

	var buf bytes.Buffer
	if err := WritePDF(&buf, rows); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected a PDF document, got %q", buf.Bytes()[:8])
	}
}
