package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const cachePrefix = "nfse:cache:"

// Tablas que también escribe el pipeline externo de envío; sus consultas van
// siempre al backend porque el caché solo ve las mutaciones de este proceso.
var uncachedTables = map[string]bool{
	TableNotes: true,
	TableLogs:  true,
}

// Cache es el almacenamiento clave/valor usado por CachedClient
type Cache interface {
	GetValue(ctx context.Context, key string) (string, bool, error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Increment(ctx context.Context, key string) (int64, error)
}

// CachedClient agrega un caché de lectura sobre otro Client.
// Cada mutación incrementa la versión de la tabla, invalidando sus consultas.
type CachedClient struct {
	next   Client
	cache  Cache
	ttl    time.Duration
	logger *logrus.Logger
}

// NewCachedClient crea un cliente con caché de consultas
func NewCachedClient(next Client, cache Cache, ttl time.Duration, logger *logrus.Logger) *CachedClient {
	return &CachedClient{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

// Query retorna las filas desde el caché o desde el cliente subyacente
func (c *CachedClient) Query(ctx context.Context, table string, q Query) ([]json.RawMessage, error) {
	if err := validateTable(table, q.Filters, q.Order, nil); err != nil {
		return nil, err
	}

	if uncachedTables[table] {
		return c.next.Query(ctx, table, q)
	}

	key, err := c.queryKey(ctx, table, q)
	if err != nil {
		// Sin caché disponible se consulta directo
		c.logger.WithError(err).WithField("table", table).Warn("Query cache unavailable")
		return c.next.Query(ctx, table, q)
	}

	if cached, found, err := c.cache.GetValue(ctx, key); err == nil && found {
		var rows []json.RawMessage
		if err := json.Unmarshal([]byte(cached), &rows); err == nil {
			return rows, nil
		}
	}

	rows, err := c.next.Query(ctx, table, q)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(rows); err == nil {
		if err := c.cache.SetWithTTL(ctx, key, string(data), c.ttl); err != nil {
			c.logger.WithError(err).WithField("key", key).Warn("Error storing cached query")
		}
	}
	return rows, nil
}

// Insert delega la inserción e invalida la tabla
func (c *CachedClient) Insert(ctx context.Context, table string, values Values) (json.RawMessage, error) {
	row, err := c.next.Insert(ctx, table, values)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, table)
	return row, nil
}

// Update delega la actualización e invalida la tabla
func (c *CachedClient) Update(ctx context.Context, table string, match []Filter, values Values) (json.RawMessage, error) {
	row, err := c.next.Update(ctx, table, match, values)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, table)
	return row, nil
}

// Delete delega la eliminación e invalida la tabla
func (c *CachedClient) Delete(ctx context.Context, table string, match []Filter) error {
	if err := c.next.Delete(ctx, table, match); err != nil {
		return err
	}
	c.invalidate(ctx, table)
	return nil
}

func (c *CachedClient) invalidate(ctx context.Context, table string) {
	if _, err := c.cache.Increment(ctx, versionKey(table)); err != nil {
		c.logger.WithError(err).WithField("table", table).Warn("Error invalidating query cache")
	}
}

func (c *CachedClient) queryKey(ctx context.Context, table string, q Query) (string, error) {
	version, found, err := c.cache.GetValue(ctx, versionKey(table))
	if err != nil {
		return "", err
	}
	if !found {
		version = "0"
	}

	data, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("error encoding query: %w", err)
	}
	sum := sha256.Sum256(data)

	return fmt.Sprintf("%s%s:v%s:%s", cachePrefix, table, version, hex.EncodeToString(sum[:])), nil
}

func versionKey(table string) string {
	return cachePrefix + table + ":version"
}
