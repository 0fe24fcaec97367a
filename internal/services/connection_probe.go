package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/smtp"
	"net/url"
	"time"

	"github.com/hypernova-labs/nfse-dashboard/internal/database"
	"github.com/hypernova-labs/nfse-dashboard/internal/models"
)

// Tipos de prueba de conexión
const (
	ProbeDatabase = "database"
	ProbeAPI      = "api"
	ProbeEmail    = "email"
)

var probeLabels = map[string]string{
	ProbeDatabase: "banco de dados",
	ProbeAPI:      "API",
	ProbeEmail:    "email",
}

const probeTimeout = 10 * time.Second

// SettingValues es una copia de las configuraciones editadas
type SettingValues map[string]string

// Get retorna el valor o el default cuando está vacío
func (s SettingValues) Get(key, def string) string {
	if v := s[key]; v != "" {
		return v
	}
	return def
}

// ConnectionProbe verifica la conectividad con un sistema externo
type ConnectionProbe interface {
	Probe(ctx context.Context, settings SettingValues) error
}

// ProbeFunc adapta una función a ConnectionProbe
type ProbeFunc func(ctx context.Context, settings SettingValues) error

// Probe ejecuta la función
func (f ProbeFunc) Probe(ctx context.Context, settings SettingValues) error {
	return f(ctx, settings)
}

// DefaultProbes retorna las pruebas reales para banco, API y SMTP
func DefaultProbes(sslMode string) map[string]ConnectionProbe {
	return map[string]ConnectionProbe{
		ProbeDatabase: &DatabaseProbe{SSLMode: sslMode},
		ProbeAPI:      &APIProbe{Client: &http.Client{Timeout: probeTimeout}},
		ProbeEmail:    &SMTPProbe{},
	}
}

// DatabaseProbe abre una conexión con los parámetros db_* y ejecuta un ping
type DatabaseProbe struct {
	SSLMode string
}

// Probe verifica el banco de origen
func (p *DatabaseProbe) Probe(ctx context.Context, settings SettingValues) error {
	host := settings.Get(models.SettingDBHost, "")
	if host == "" {
		return fmt.Errorf("db_host não configurado")
	}

	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(settings.Get(models.SettingDBUser, ""), settings.Get(models.SettingDBPassword, "")),
		Host:     net.JoinHostPort(host, settings.Get(models.SettingDBPort, "5432")),
		Path:     "/" + settings.Get(models.SettingDBName, ""),
		RawQuery: url.Values{"sslmode": {sslMode}, "connect_timeout": {"5"}}.Encode(),
	}

	db, err := database.Open(dsn.String())
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return db.HealthCheck(ctx)
}

// APIProbe ejecuta un GET sobre api_url con la clave configurada
type APIProbe struct {
	Client *http.Client
}

// Probe verifica la API de envío
func (p *APIProbe) Probe(ctx context.Context, settings SettingValues) error {
	endpoint := settings.Get(models.SettingAPIURL, models.SettingDefaults[models.SettingAPIURL])

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("invalid api_url: %w", err)
	}
	if key := settings.Get(models.SettingAPIKey, ""); key != "" {
		req.Header.Set("X-API-KEY", key)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("error calling API: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("API rejected credentials: HTTP %d", resp.StatusCode)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("API unavailable: HTTP %d", resp.StatusCode)
	}
	return nil
}

// SMTPProbe abre una sesión SMTP, saluda y cierra
type SMTPProbe struct{}

// Probe verifica el servidor SMTP
func (p *SMTPProbe) Probe(ctx context.Context, settings SettingValues) error {
	host := settings.Get(models.SettingSMTPHost, "")
	if host == "" {
		return fmt.Errorf("smtp_host não configurado")
	}
	port := settings.Get(models.SettingSMTPPort, "587")
	addr := net.JoinHostPort(host, port)

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var conn net.Conn
	var err error
	if port == "465" {
		dialer := &tls.Dialer{Config: &tls.Config{ServerName: host}}
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	} else {
		var dialer net.Dialer
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("error connecting to SMTP: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("error starting SMTP session: %w", err)
	}
	defer client.Close()

	if err := client.Hello("localhost"); err != nil {
		return fmt.Errorf("SMTP EHLO failed: %w", err)
	}
	return client.Quit()
}
