package database

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryClient implementa Client en memoria para desarrollo y tests
type MemoryClient struct {
	mu     sync.RWMutex
	tables map[string][]map[string]any
	now    func() time.Time
	failOn map[string]error
}

// NewMemoryClient crea un cliente en memoria vacío
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		tables: make(map[string][]map[string]any),
		now:    func() time.Time { return time.Now().UTC() },
		failOn: make(map[string]error),
	}
}

// SetClock reemplaza el reloj usado para timestamps automáticos
func (m *MemoryClient) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Fail fuerza un error en la operación indicada ("query", "insert", "update", "delete").
// Un err nil quita la falla.
func (m *MemoryClient) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failOn, op)
		return
	}
	m.failOn[op] = err
}

// Rows retorna una copia de todas las filas de la tabla
func (m *MemoryClient) Rows(table string) []json.RawMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return encodeRows(m.tables[table])
}

// Query retorna las filas que cumplen los filtros
func (m *MemoryClient) Query(ctx context.Context, table string, q Query) ([]json.RawMessage, error) {
	if err := validateTable(table, q.Filters, q.Order, nil); err != nil {
		return nil, err
	}
	filters, err := normalizeFilters(q.Filters)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failure("query"); err != nil {
		return nil, err
	}

	matched := make([]map[string]any, 0)
	for _, row := range m.tables[table] {
		if matchRow(row, filters) {
			matched = append(matched, row)
		}
	}

	if q.Order != nil {
		col, asc := q.Order.Column, q.Order.Ascending
		sort.SliceStable(matched, func(i, j int) bool {
			a, b := matched[i][col], matched[j][col]
			// nulos al final
			if a == nil || b == nil {
				return a != nil && b == nil
			}
			cmp, ok := compareValues(a, b)
			if !ok {
				return false
			}
			if asc {
				return cmp < 0
			}
			return cmp > 0
		})
	}

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	return encodeRows(matched), nil
}

// Insert inserta una fila asignando id y timestamps faltantes
func (m *MemoryClient) Insert(ctx context.Context, table string, values Values) (json.RawMessage, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("insert into %s without values", table)
	}
	if err := validateTable(table, nil, nil, values); err != nil {
		return nil, err
	}
	row, err := normalizeValues(values)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failure("insert"); err != nil {
		return nil, err
	}

	columns := tableColumns[table]
	now := m.now().Format(time.RFC3339Nano)
	if row["id"] == nil {
		row["id"] = uuid.New().String()
	}
	if columns["created_at"] && row["created_at"] == nil {
		row["created_at"] = now
	}
	if columns["updated_at"] && row["updated_at"] == nil {
		row["updated_at"] = now
	}

	m.tables[table] = append(m.tables[table], row)
	return encodeRow(row), nil
}

// Update actualiza las filas que cumplen match y retorna la primera
func (m *MemoryClient) Update(ctx context.Context, table string, match []Filter, values Values) (json.RawMessage, error) {
	if len(match) == 0 {
		return nil, fmt.Errorf("update on %s without match filters", table)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("update on %s without values", table)
	}
	if err := validateTable(table, match, nil, values); err != nil {
		return nil, err
	}
	filters, err := normalizeFilters(match)
	if err != nil {
		return nil, err
	}
	changes, err := normalizeValues(values)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failure("update"); err != nil {
		return nil, err
	}

	var first map[string]any
	for _, row := range m.tables[table] {
		if !matchRow(row, filters) {
			continue
		}
		for col, v := range changes {
			row[col] = v
		}
		if first == nil {
			first = row
		}
	}
	if first == nil {
		return nil, ErrNotFound
	}
	return encodeRow(first), nil
}

// Delete elimina las filas que cumplen match
func (m *MemoryClient) Delete(ctx context.Context, table string, match []Filter) error {
	if len(match) == 0 {
		return fmt.Errorf("delete on %s without match filters", table)
	}
	if err := validateTable(table, match, nil, nil); err != nil {
		return err
	}
	filters, err := normalizeFilters(match)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failure("delete"); err != nil {
		return err
	}

	rows := m.tables[table]
	kept := rows[:0]
	for _, row := range rows {
		if !matchRow(row, filters) {
			kept = append(kept, row)
		}
	}
	if len(kept) == len(rows) {
		return ErrNotFound
	}
	m.tables[table] = kept
	return nil
}

func (m *MemoryClient) failure(op string) error {
	if err, ok := m.failOn[op]; ok {
		return err
	}
	return nil
}

// normalizeValues pasa los valores por JSON para igualar la forma de las filas
func normalizeValues(values Values) (map[string]any, error) {
	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("error encoding values: %w", err)
	}
	row := make(map[string]any, len(values))
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("error decoding values: %w", err)
	}
	return row, nil
}

func normalizeFilters(filters []Filter) ([]Filter, error) {
	out := make([]Filter, len(filters))
	for i, f := range filters {
		data, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("error encoding filter value: %w", err)
		}
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("error decoding filter value: %w", err)
		}
		out[i] = Filter{Column: f.Column, Operator: f.Operator, Value: v}
	}
	return out, nil
}

func matchRow(row map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if !matchFilter(row[f.Column], f) {
			return false
		}
	}
	return true
}

func matchFilter(value any, f Filter) bool {
	switch f.Operator {
	case OpEq:
		return valuesEqual(value, f.Value)
	case OpNeq:
		return !valuesEqual(value, f.Value)
	case OpILike:
		s, ok := value.(string)
		pattern, okPattern := f.Value.(string)
		if !ok || !okPattern {
			return false
		}
		return likePattern(pattern).MatchString(s)
	case OpGte, OpLte:
		if value == nil || f.Value == nil {
			return false
		}
		cmp, ok := compareValues(value, f.Value)
		if !ok {
			return false
		}
		if f.Operator == OpGte {
			return cmp >= 0
		}
		return cmp <= 0
	}
	return false
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	cmp, ok := compareValues(a, b)
	return ok && cmp == 0
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02"}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// compareValues compara números, booleanos, fechas y cadenas
func compareValues(a, b any) (int, bool) {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if !av {
			return -1, true
		}
		return 1, true
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		if at, okA := parseTime(av); okA {
			if bt, okB := parseTime(bv); okB {
				return at.Compare(bt), true
			}
		}
		return strings.Compare(av, bv), true
	}
	return 0, false
}

// likePattern convierte un patrón LIKE en una expresión regular sin distinción de mayúsculas
func likePattern(pattern string) *regexp.Regexp {
	var sb strings.Builder
	sb.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.MustCompile(sb.String())
}

func encodeRow(row map[string]any) json.RawMessage {
	data, _ := json.Marshal(row)
	return data
}

func encodeRows(rows []map[string]any) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		out = append(out, encodeRow(row))
	}
	return out
}
