package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hypernova-labs/nfse-dashboard/internal/database"
	"github.com/hypernova-labs/nfse-dashboard/internal/models"
	"github.com/hypernova-labs/nfse-dashboard/internal/notify"
)

// Archiver guarda una copia de un archivo generado y retorna su URL
type Archiver interface {
	Archive(ctx context.Context, fileName string, data []byte, contentType string) (string, error)
}

var logCSVHeader = []string{"Timestamp", "Tipo", "Mensagem", "Detalhes", "Notas", "Código HTTP"}

// LogViewer lista, filtra y exporta el registro de auditoría
type LogViewer struct {
	deps     Deps
	archiver Archiver
	location *time.Location
}

// NewLogViewer crea el visor; archiver puede ser nil
func NewLogViewer(deps Deps, archiver Archiver) *LogViewer {
	return &LogViewer{deps: deps, archiver: archiver, location: time.UTC}
}

// WithLocation define la zona horaria usada para comparar fechas de calendario
func (v *LogViewer) WithLocation(loc *time.Location) *LogViewer {
	if loc != nil {
		v.location = loc
	}
	return v
}

// List retorna las entradas que cumplen los filtros, más recientes primero
func (v *LogViewer) List(ctx context.Context, filters models.LogFilters) ([]models.LogEntry, error) {
	if filters.Date != "" {
		if _, err := time.Parse("2006-01-02", filters.Date); err != nil {
			v.deps.notify(notify.Error("Filtro inválido", "Data inválida: "+filters.Date))
			return nil, fmt.Errorf("%w: date %q", ErrInvalidFilters, filters.Date)
		}
	}
	if filters.Type != "" && filters.Type != "all" && !models.LogType(filters.Type).IsValid() {
		v.deps.notify(notify.Error("Filtro inválido", "Tipo de log inválido: "+filters.Type))
		return nil, fmt.Errorf("%w: type %q", ErrInvalidFilters, filters.Type)
	}

	q := database.Query{Order: &database.Order{Column: "timestamp", Ascending: false}}
	if filters.Type != "" && filters.Type != "all" {
		q.Filters = append(q.Filters, database.Eq("type", filters.Type))
	}

	rows, err := v.deps.Client.Query(ctx, database.TableLogs, q)
	if err != nil {
		v.deps.Logger.WithError(err).Error("Failed to list system logs")
		v.deps.notify(notify.Error("Erro ao carregar logs", errorText(err)))
		return nil, err
	}
	entries, err := database.DecodeRows[models.LogEntry](rows)
	if err != nil {
		return nil, err
	}

	search := strings.ToLower(strings.TrimSpace(filters.Search))
	out := make([]models.LogEntry, 0, len(entries))
	for _, e := range entries {
		if search != "" &&
			!strings.Contains(strings.ToLower(e.Message), search) &&
			!strings.Contains(strings.ToLower(e.DetailsText()), search) {
			continue
		}
		if filters.Date != "" && v.calendarDate(e.Timestamp) != filters.Date {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (v *LogViewer) calendarDate(timestamp string) string {
	t, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return ""
	}
	return t.In(v.location).Format("2006-01-02")
}

// Export genera el CSV de las entradas filtradas y lo archiva si hay storage
func (v *LogViewer) Export(ctx context.Context, filters models.LogFilters) ([]byte, *models.ExportResponse, error) {
	entries, err := v.List(ctx, filters)
	if err != nil {
		return nil, nil, err
	}

	data, err := EncodeLogsCSV(entries)
	if err != nil {
		return nil, nil, fmt.Errorf("error encoding logs csv: %w", err)
	}

	resp := &models.ExportResponse{
		FileName: fmt.Sprintf("logs_%s.csv", v.deps.now().In(v.location).Format("2006-01-02")),
	}

	if v.archiver != nil {
		key := "logs/" + strconv.FormatInt(v.deps.now().Unix(), 10) + "_" + resp.FileName
		url, err := v.archiver.Archive(ctx, key, data, "text/csv; charset=utf-8")
		if err != nil {
			// El CSV sigue disponible para descarga
			v.deps.Logger.WithError(err).WithField("file", key).Warn("Failed to archive logs export")
		} else {
			resp.ArchiveURL = url
		}
	}

	v.deps.notify(notify.Info("Logs exportados", "Arquivo CSV baixado com sucesso"))
	return data, resp, nil
}

// EncodeLogsCSV serializa las entradas con el encabezado del visor
func EncodeLogsCSV(entries []models.LogEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(logCSVHeader); err != nil {
		return nil, err
	}
	for _, e := range entries {
		notes := 0
		if e.NotesCount != nil {
			notes = *e.NotesCount
		}
		httpCode := ""
		if e.HTTPCode != nil {
			httpCode = strconv.Itoa(*e.HTTPCode)
		}
		record := []string{e.Timestamp, string(e.Type), e.Message, e.DetailsText(), strconv.Itoa(notes), httpCode}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
