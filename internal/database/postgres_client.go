package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const queryTimeout = 30 * time.Second

// PostgresClient implementa Client sobre PostgreSQL retornando filas JSON
type PostgresClient struct {
	db     *DB
	logger *logrus.Logger
}

// NewPostgresClient crea una nueva instancia del cliente PostgreSQL
func NewPostgresClient(db *DB, logger *logrus.Logger) *PostgresClient {
	return &PostgresClient{
		db:     db,
		logger: logger,
	}
}

// Query retorna las filas que cumplen los filtros
func (c *PostgresClient) Query(ctx context.Context, table string, q Query) ([]json.RawMessage, error) {
	if err := validateTable(table, q.Filters, q.Order, nil); err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT row_to_json(t) FROM ")
	sb.WriteString(pq.QuoteIdentifier(table))
	sb.WriteString(" t")

	where, args := buildWhere(q.Filters, 1)
	sb.WriteString(where)

	if q.Order != nil {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(pq.QuoteIdentifier(q.Order.Column))
		if q.Order.Ascending {
			sb.WriteString(" ASC")
		} else {
			sb.WriteString(" DESC")
		}
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}

	return c.queryRows(ctx, sb.String(), args)
}

// Insert inserta una fila y retorna la fila resultante
func (c *PostgresClient) Insert(ctx context.Context, table string, values Values) (json.RawMessage, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("insert into %s without values", table)
	}
	if err := validateTable(table, nil, nil, values); err != nil {
		return nil, err
	}

	columns := sortedColumns(values)
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, col := range columns {
		quoted[i] = pq.QuoteIdentifier(col)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = values[col]
	}

	query := fmt.Sprintf("INSERT INTO %s AS t (%s) VALUES (%s) RETURNING row_to_json(t)",
		pq.QuoteIdentifier(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	rows, err := c.queryRows(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert into %s returned no row", table)
	}
	return rows[0], nil
}

// Update actualiza la fila que cumple match y la retorna
func (c *PostgresClient) Update(ctx context.Context, table string, match []Filter, values Values) (json.RawMessage, error) {
	if len(match) == 0 {
		return nil, fmt.Errorf("update on %s without match filters", table)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("update on %s without values", table)
	}
	if err := validateTable(table, match, nil, values); err != nil {
		return nil, err
	}

	columns := sortedColumns(values)
	sets := make([]string, len(columns))
	args := make([]interface{}, 0, len(columns)+len(match))
	for i, col := range columns {
		sets[i] = fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(col), i+1)
		args = append(args, values[col])
	}

	where, whereArgs := buildWhere(match, len(columns)+1)
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE %s AS t SET %s%s RETURNING row_to_json(t)",
		pq.QuoteIdentifier(table), strings.Join(sets, ", "), where)

	rows, err := c.queryRows(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

// Delete elimina las filas que cumplen match
func (c *PostgresClient) Delete(ctx context.Context, table string, match []Filter) error {
	if len(match) == 0 {
		return fmt.Errorf("delete on %s without match filters", table)
	}
	if err := validateTable(table, match, nil, nil); err != nil {
		return err
	}

	where, args := buildWhere(match, 1)
	query := "DELETE FROM " + pq.QuoteIdentifier(table) + where

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error deleting from %s: %w", table, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *PostgresClient) queryRows(ctx context.Context, query string, args []interface{}) ([]json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	c.logger.WithFields(logrus.Fields{
		"query": query,
		"args":  len(args),
	}).Debug("Executing data query")

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	defer rows.Close()

	out := []json.RawMessage{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		out = append(out, json.RawMessage(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// buildWhere arma la cláusula WHERE numerando parámetros desde start
func buildWhere(filters []Filter, start int) (string, []interface{}) {
	if len(filters) == 0 {
		return "", nil
	}

	clauses := make([]string, 0, len(filters))
	args := make([]interface{}, 0, len(filters))
	n := start
	for _, f := range filters {
		col := pq.QuoteIdentifier(f.Column)
		if f.Value == nil {
			switch f.Operator {
			case OpEq:
				clauses = append(clauses, col+" IS NULL")
				continue
			case OpNeq:
				clauses = append(clauses, col+" IS NOT NULL")
				continue
			}
		}

		var op string
		switch f.Operator {
		case OpEq:
			op = "="
		case OpNeq:
			op = "<>"
		case OpILike:
			op = "ILIKE"
		case OpGte:
			op = ">="
		case OpLte:
			op = "<="
		}
		clauses = append(clauses, fmt.Sprintf("%s %s $%d", col, op, n))
		args = append(args, f.Value)
		n++
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}

func sortedColumns(values Values) []string {
	columns := make([]string, 0, len(values))
	for col := range values {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}
