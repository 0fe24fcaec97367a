package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Tablas administradas por el backend
const (
	TableNotes    = "nfse_notes"
	TableLogs     = "system_logs"
	TableSettings = "system_settings"
	TableEmails   = "notification_emails"
)

// tableColumns limita las columnas aceptadas por tabla
var tableColumns = map[string]map[string]bool{
	TableNotes: columnSet(
		"id", "numero_rps", "serie_rps", "data_emissao", "cnpj_prestador",
		"razao_social_tomador", "valor_servicos", "cd_servico", "status",
		"motivo_erro", "created_at", "updated_at",
	),
	TableLogs: columnSet(
		"id", "timestamp", "type", "message", "details", "notes_count",
		"http_code", "user_agent", "ip_address", "created_at",
	),
	TableSettings: columnSet(
		"id", "key", "value", "description", "is_sensitive", "created_at", "updated_at",
	),
	TableEmails: columnSet(
		"id", "email", "name", "is_active", "created_at",
	),
}

func columnSet(columns ...string) map[string]bool {
	set := make(map[string]bool, len(columns))
	for _, c := range columns {
		set[c] = true
	}
	return set
}

var (
	// ErrNotFound se retorna cuando una mutación no encuentra la fila
	ErrNotFound = errors.New("row not found")
	// ErrUnknownTable se retorna para tablas fuera del catálogo
	ErrUnknownTable = errors.New("unknown table")
	// ErrUnknownColumn se retorna para columnas fuera del catálogo
	ErrUnknownColumn = errors.New("unknown column")
)

// Operator representa el operador de un filtro
type Operator string

const (
	OpEq    Operator = "eq"
	OpNeq   Operator = "neq"
	OpILike Operator = "ilike"
	OpGte   Operator = "gte"
	OpLte   Operator = "lte"
)

// Filter representa un predicado sobre una columna
type Filter struct {
	Column   string   `json:"column"`
	Operator Operator `json:"op"`
	Value    any      `json:"value"`
}

// Eq crea un filtro de igualdad
func Eq(column string, value any) Filter {
	return Filter{Column: column, Operator: OpEq, Value: value}
}

// Neq crea un filtro de desigualdad
func Neq(column string, value any) Filter {
	return Filter{Column: column, Operator: OpNeq, Value: value}
}

// ILike crea un filtro LIKE sin distinción de mayúsculas
func ILike(column, pattern string) Filter {
	return Filter{Column: column, Operator: OpILike, Value: pattern}
}

// Gte crea un filtro de cota inferior inclusiva
func Gte(column string, value any) Filter {
	return Filter{Column: column, Operator: OpGte, Value: value}
}

// Lte crea un filtro de cota superior inclusiva
func Lte(column string, value any) Filter {
	return Filter{Column: column, Operator: OpLte, Value: value}
}

// Order representa el ordenamiento de una consulta
type Order struct {
	Column    string `json:"column"`
	Ascending bool   `json:"ascending"`
}

// Query representa una consulta sobre una tabla
type Query struct {
	Filters []Filter `json:"filters,omitempty"`
	Order   *Order   `json:"order,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// Values representa las columnas a escribir
type Values map[string]any

// Client es el cliente genérico de acceso a datos
type Client interface {
	Query(ctx context.Context, table string, q Query) ([]json.RawMessage, error)
	Insert(ctx context.Context, table string, values Values) (json.RawMessage, error)
	Update(ctx context.Context, table string, match []Filter, values Values) (json.RawMessage, error)
	Delete(ctx context.Context, table string, match []Filter) error
}

// validateTable verifica la tabla y las columnas referenciadas
func validateTable(table string, filters []Filter, order *Order, values Values) error {
	columns, ok := tableColumns[table]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	for _, f := range filters {
		if !columns[f.Column] {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table, f.Column)
		}
		switch f.Operator {
		case OpEq, OpNeq, OpILike, OpGte, OpLte:
		default:
			return fmt.Errorf("unsupported operator %q", f.Operator)
		}
	}
	if order != nil && !columns[order.Column] {
		return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table, order.Column)
	}
	for column := range values {
		if !columns[column] {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table, column)
		}
	}
	return nil
}

// DecodeRows decodifica filas JSON en el tipo indicado
func DecodeRows[T any](rows []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		var item T
		if err := json.Unmarshal(row, &item); err != nil {
			return nil, fmt.Errorf("error decoding row: %w", err)
		}
		out = append(out, item)
	}
	return out, nil
}

// DecodeRow decodifica una fila JSON en el tipo indicado
func DecodeRow[T any](row json.RawMessage) (*T, error) {
	var item T
	if err := json.Unmarshal(row, &item); err != nil {
		return nil, fmt.Errorf("error decoding row: %w", err)
	}
	return &item, nil
}
