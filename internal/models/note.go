package models

import (
	"fmt"
	"strings"
	"time"
)

// NoteStatus representa el estado de una NFSe
type NoteStatus string

const (
	NoteStatusPending    NoteStatus = "Pendente"
	NoteStatusError      NoteStatus = "Erro"
	NoteStatusProcessing NoteStatus = "Processando"
	NoteStatusSent       NoteStatus = "Enviado"
	NoteStatusCancelled  NoteStatus = "Cancelado"
)

// StatusAll es el valor de filtro que no restringe el estado
const StatusAll = "all"

// IsValid indica si el estado pertenece al catálogo
func (s NoteStatus) IsValid() bool {
	switch s {
	case NoteStatusPending, NoteStatusError, NoteStatusProcessing, NoteStatusSent, NoteStatusCancelled:
		return true
	}
	return false
}

// ServiceCodes es el catálogo fijo de códigos de serviço
var ServiceCodes = map[string]string{
	"101": "Análise e desenvolvimento de sistemas",
	"201": "Serviços de informática",
	"301": "Consultoria",
	"401": "Treinamento",
}

// NfseNote representa una nota fiscal de serviço pendiente de envío
type NfseNote struct {
	ID                 string     `json:"id"`
	NumeroRPS          string     `json:"numero_rps"`
	SerieRPS           string     `json:"serie_rps"`
	DataEmissao        string     `json:"data_emissao"`
	CNPJPrestador      string     `json:"cnpj_prestador"`
	RazaoSocialTomador string     `json:"razao_social_tomador"`
	ValorServicos      float64    `json:"valor_servicos"`
	CdServico          string     `json:"cd_servico"`
	Status             NoteStatus `json:"status"`
	MotivoErro         *string    `json:"motivo_erro,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// RPS retorna la clave de exhibición número/série
func (n NfseNote) RPS() string {
	return n.NumeroRPS + "/" + n.SerieRPS
}

// DisplayValue formatea el valor del serviço con dos decimales
func (n NfseNote) DisplayValue() string {
	return fmt.Sprintf("R$ %.2f", n.ValorServicos)
}

// Validate verifica los invariantes de la nota
func (n NfseNote) Validate() error {
	if !n.Status.IsValid() {
		return fmt.Errorf("invalid note status: %q", n.Status)
	}
	if n.ValorServicos < 0 {
		return fmt.Errorf("negative service value: %.2f", n.ValorServicos)
	}
	if n.Status != NoteStatusError && n.MotivoErro != nil && *n.MotivoErro != "" {
		return fmt.Errorf("error reason present for status %s", n.Status)
	}
	return nil
}

// CanBeSent indica si la nota admite la transición a Processando
func (n NfseNote) CanBeSent() bool {
	return n.Status == NoteStatusPending
}

// NoteFilters representa los criterios de búsqueda de notas
type NoteFilters struct {
	CNPJPrestador string `json:"cnpj_prestador"`
	Status        string `json:"status"`
	CdServico     string `json:"cd_servico"`
	DataInicio    string `json:"data_inicio"`
	DataFim       string `json:"data_fim"`
}

const filterDateLayout = "2006-01-02"

// Validate verifica los filtros antes de consultar
func (f NoteFilters) Validate() error {
	if f.Status != "" && f.Status != StatusAll && !NoteStatus(f.Status).IsValid() {
		return fmt.Errorf("invalid status filter: %q", f.Status)
	}
	if f.CdServico != "" {
		if _, ok := ServiceCodes[f.CdServico]; !ok {
			return fmt.Errorf("unknown service code: %q", f.CdServico)
		}
	}

	var from, to time.Time
	var err error
	if f.DataInicio != "" {
		if from, err = time.Parse(filterDateLayout, f.DataInicio); err != nil {
			return fmt.Errorf("invalid data_inicio: %q", f.DataInicio)
		}
	}
	if f.DataFim != "" {
		if to, err = time.Parse(filterDateLayout, f.DataFim); err != nil {
			return fmt.Errorf("invalid data_fim: %q", f.DataFim)
		}
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return fmt.Errorf("data_inicio after data_fim")
	}
	return nil
}

// HasStatus indica si el filtro de estado restringe la búsqueda
func (f NoteFilters) HasStatus() bool {
	return f.Status != "" && f.Status != StatusAll
}

// Describe genera el texto de auditoría con los filtros usados
func (f NoteFilters) Describe(placeholder string) string {
	value := func(v string) string {
		if v == "" || v == StatusAll {
			return placeholder
		}
		return v
	}

	parts := []string{
		"CNPJ: " + value(f.CNPJPrestador),
		"Status: " + value(f.Status),
		"Serviço: " + value(f.CdServico),
		"Período: " + value(formatFilterDate(f.DataInicio)) + " - " + value(formatFilterDate(f.DataFim)),
	}
	return strings.Join(parts, ", ")
}

func formatFilterDate(value string) string {
	if value == "" {
		return ""
	}
	t, err := time.Parse(filterDateLayout, value)
	if err != nil {
		return value
	}
	return t.Format("02/01/2006")
}

// SearchRequest representa el request de búsqueda de notas
type SearchRequest struct {
	Filters NoteFilters `json:"filters"`
}

// ToggleSelectionRequest representa el request para alternar una selección
type ToggleSelectionRequest struct {
	ID string `json:"id" binding:"required"`
}

// NoteWorkflowState representa el estado visible de una pantalla de notas
type NoteWorkflowState struct {
	Filters        NoteFilters `json:"filters"`
	SearchExecuted bool        `json:"search_executed"`
	Results        []NfseNote  `json:"results"`
	SelectedIDs    []string    `json:"selected_ids"`
}

// SendResponse representa el resultado de un envío de notas
type SendResponse struct {
	Sent  int               `json:"sent"`
	State NoteWorkflowState `json:"state"`
}
