package services

import (
	"bytes"
	"fmt"
	"time"

	"github.com/hypernova-labs/nfse-dashboard/internal/models"
	"github.com/jung-kurt/gofpdf"
	"github.com/sirupsen/logrus"
)

// ReportGenerator genera el relatório de estado del sistema en PDF
type ReportGenerator struct {
	logger *logrus.Logger
}

// NewReportGenerator crea una nueva instancia del generador
func NewReportGenerator(logger *logrus.Logger) *ReportGenerator {
	return &ReportGenerator{
		logger: logger,
	}
}

// GenerateStatusPDF arma el relatório con las tarjetas de estado y las notas con error
func (r *ReportGenerator) GenerateStatusPDF(status *models.DashboardStatus, failed []models.NfseNote, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	// Las fuentes base son cp1252; los textos vienen en UTF-8
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	// Header con color de fondo
	pdf.SetFillColor(37, 99, 235)
	pdf.Rect(0, 0, 210, 35, "F")

	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Arial", "B", 20)
	pdf.Cell(190, 14, tr("Relatório do Sistema NFSe"))
	pdf.Ln(14)
	pdf.SetFont("Arial", "", 11)
	pdf.Cell(190, 8, tr(fmt.Sprintf("Gerado em: %s", generatedAt.Format("02/01/2006 15:04:05"))))
	pdf.Ln(8)

	pdf.SetTextColor(31, 41, 55)
	pdf.SetY(45)
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(190, 8, tr("Status"))
	pdf.Ln(10)

	systemState := "Inativo"
	if status.IsSystemActive {
		systemState = "Ativo"
	}
	lastExecution := status.LastExecution
	if lastExecution == "" {
		lastExecution = "Nunca executado"
	}

	cards := [][2]string{
		{"Status do Sistema", systemState},
		{"Última Execução", lastExecution},
		{"Enviadas Hoje", fmt.Sprintf("%d", status.TotalSentToday)},
		{"Pendentes", fmt.Sprintf("%d", status.TotalPending)},
		{"Erros", fmt.Sprintf("%d", status.TotalErrors)},
	}
	pdf.SetFont("Arial", "", 11)
	for _, card := range cards {
		pdf.SetFillColor(243, 244, 246)
		pdf.CellFormat(70, 8, tr(card[0]), "1", 0, "L", true, 0, "")
		pdf.SetFillColor(255, 255, 255)
		pdf.CellFormat(60, 8, tr(card[1]), "1", 0, "L", true, 0, "")
		pdf.Ln(8)
	}

	pdf.Ln(8)
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(190, 8, tr("Notas com erro"))
	pdf.Ln(10)

	if len(failed) == 0 {
		pdf.SetFont("Arial", "", 10)
		pdf.Cell(190, 6, tr("Nenhuma nota com erro."))
		pdf.Ln(6)
	} else {
		colWidths := []float64{25, 45, 35, 30, 55}
		colHeaders := []string{"RPS", "CNPJ Prestador", "Emissão", "Valor", "Motivo"}

		pdf.SetFillColor(229, 231, 235)
		pdf.SetFont("Arial", "B", 10)
		for i, header := range colHeaders {
			pdf.CellFormat(colWidths[i], 8, tr(header), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(8)

		pdf.SetFont("Arial", "", 9)
		for i, note := range failed {
			if i%2 == 0 {
				pdf.SetFillColor(249, 250, 251)
			} else {
				pdf.SetFillColor(255, 255, 255)
			}
			reason := ""
			if note.MotivoErro != nil {
				reason = *note.MotivoErro
			}
			pdf.CellFormat(colWidths[0], 7, tr(note.RPS()), "1", 0, "L", true, 0, "")
			pdf.CellFormat(colWidths[1], 7, note.CNPJPrestador, "1", 0, "L", true, 0, "")
			pdf.CellFormat(colWidths[2], 7, note.DataEmissao, "1", 0, "C", true, 0, "")
			pdf.CellFormat(colWidths[3], 7, note.DisplayValue(), "1", 0, "R", true, 0, "")
			pdf.CellFormat(colWidths[4], 7, tr(reason), "1", 0, "L", true, 0, "")
			pdf.Ln(7)
		}
	}

	pdf.SetY(275)
	pdf.SetTextColor(107, 114, 128)
	pdf.SetFont("Arial", "", 8)
	pdf.Cell(190, 6, tr("Relatório gerado automaticamente pelo Sistema de Gerenciamento NFSe"))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("error generating PDF: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"failed_notes": len(failed),
		"pdf_size":     buf.Len(),
	}).Info("Status report generated")

	return buf.Bytes(), nil
}
