package services

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hypernova-labs/nfse-dashboard/internal/database"
	"github.com/hypernova-labs/nfse-dashboard/internal/models"
	"github.com/hypernova-labs/nfse-dashboard/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoadedEditor(t *testing.T, env *testEnv, probes map[string]ConnectionProbe) *SettingsEditor {
	t.Helper()
	require.NoError(t, database.SeedSettings(context.Background(), env.memory))
	editor := NewSettingsEditor(env.deps, probes)
	require.NoError(t, editor.Load(context.Background()))
	return editor
}

func TestSettingsLoadAndGet(t *testing.T) {
	env := newTestEnv(t)
	editor := newLoadedEditor(t, env, nil)

	assert.Equal(t, "587", editor.Get(models.SettingSMTPPort, "25"))
	assert.Equal(t, "fallback", editor.Get(models.SettingDBHost, "fallback"))
	assert.Equal(t, "x", editor.Get("missing", "x"))
}

func TestSettingsSaveOnlyDirtyKeys(t *testing.T) {
	env := newTestEnv(t)
	editor := newLoadedEditor(t, env, nil)

	saved, err := editor.Save(context.Background())
	require.NoError(t, err)
	assert.Empty(t, saved)
	assert.Equal(t, 0, env.client.updateCount())
	assert.Empty(t, env.logs(t))

	require.NoError(t, editor.Set(models.SettingDBHost, "db.interno"))
	require.NoError(t, editor.Set(models.SettingRetryAttempts, "5"))
	// Mismo valor cargado: no queda sucia
	require.NoError(t, editor.Set(models.SettingSMTPPort, "587"))
	assert.Equal(t, []string{models.SettingDBHost, models.SettingRetryAttempts}, editor.DirtyKeys())

	saved, err = editor.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{models.SettingDBHost, models.SettingRetryAttempts}, saved)
	assert.Equal(t, 2, env.client.updateCount())
	assert.Empty(t, editor.DirtyKeys())

	success := env.logsOfType(t, models.LogTypeSuccess)
	require.Len(t, success, 1)
	assert.Equal(t, "Chaves alteradas: db_host, retry_attempts", success[0].DetailsText())

	toasts := env.queue.Drain()
	assert.Equal(t, notify.Info("Configurações salvas", "As configurações foram atualizadas com sucesso"), toasts[len(toasts)-1])

	// Un nuevo Save sin ediciones no llama al backend
	_, err = editor.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, env.client.updateCount())
}

func TestSettingsSaveFailure(t *testing.T) {
	env := newTestEnv(t)
	editor := newLoadedEditor(t, env, nil)

	require.NoError(t, editor.Set(models.SettingAPIURL, "https://api.exemplo.com"))
	env.memory.Fail("update", errBackend)

	_, err := editor.Save(context.Background())
	require.ErrorIs(t, err, errBackend)
	assert.Equal(t, []string{models.SettingAPIURL}, editor.DirtyKeys())

	failures := env.logsOfType(t, models.LogTypeError)
	require.Len(t, failures, 1)
	assert.Equal(t, "Erro ao salvar configurações", failures[0].Message)
}

func TestSettingsRejectsUnknownKey(t *testing.T) {
	env := newTestEnv(t)
	editor := newLoadedEditor(t, env, nil)

	assert.ErrorIs(t, editor.Set("new_key", "x"), ErrUnknownSetting)
	assert.ErrorIs(t, editor.SetMany(map[string]string{models.SettingDBHost: "h", "other": "x"}), ErrUnknownSetting)
	assert.Empty(t, editor.DirtyKeys())
}

func TestSettingsViewMasksSensitive(t *testing.T) {
	env := newTestEnv(t)
	editor := newLoadedEditor(t, env, nil)
	require.NoError(t, editor.Set(models.SettingAPIKey, "segredo"))

	find := func(view models.SettingsResponse, key string) models.SettingView {
		for _, s := range view.Settings {
			if s.Key == key {
				return s
			}
		}
		t.Fatalf("setting %s not in view", key)
		return models.SettingView{}
	}

	view := editor.View()
	apiKey := find(view, models.SettingAPIKey)
	assert.Equal(t, MaskedValue, apiKey.Value)
	assert.True(t, apiKey.Masked)
	assert.True(t, apiKey.Dirty)
	assert.Equal(t, []string{models.SettingAPIKey}, view.DirtyKeys)

	// Sensible vacía no se enmascara
	assert.Equal(t, "", find(view, models.SettingDBPassword).Value)

	editor.ToggleReveal(context.Background(), true)
	assert.Equal(t, "segredo", find(editor.View(), models.SettingAPIKey).Value)
}

func TestSettingsToggleRevealAudits(t *testing.T) {
	env := newTestEnv(t)
	editor := newLoadedEditor(t, env, nil)

	editor.ToggleReveal(context.Background(), true)
	editor.ToggleReveal(context.Background(), true)
	editor.ToggleReveal(context.Background(), false)

	security := env.logsOfType(t, models.LogTypeSecurity)
	require.Len(t, security, 2)
	assert.Equal(t, "Evento de Segurança: Campos sensíveis exibidos", security[0].Message)
	assert.Equal(t, "Evento de Segurança: Campos sensíveis ocultados", security[1].Message)
}

func TestSettingsTestConnection(t *testing.T) {
	env := newTestEnv(t)
	var seen SettingValues
	probes := map[string]ConnectionProbe{
		ProbeAPI: ProbeFunc(func(ctx context.Context, s SettingValues) error {
			seen = s
			return nil
		}),
		ProbeEmail: ProbeFunc(func(ctx context.Context, s SettingValues) error {
			return errors.New("connection refused")
		}),
	}
	editor := newLoadedEditor(t, env, probes)
	require.NoError(t, editor.Set(models.SettingAPIURL, "https://api.teste"))

	require.NoError(t, editor.TestConnection(context.Background(), ProbeAPI))
	assert.Equal(t, "https://api.teste", seen[models.SettingAPIURL])

	toasts := env.queue.Drain()
	require.Len(t, toasts, 2)
	assert.Equal(t, "Testando API...", toasts[0].Title)
	assert.Equal(t, notify.Info("Teste de API concluído", "Conexão estabelecida com sucesso"), toasts[1])

	err := editor.TestConnection(context.Background(), ProbeEmail)
	require.Error(t, err)
	toasts = env.queue.Drain()
	require.Len(t, toasts, 2)
	assert.Equal(t, notify.Error("Falha no teste de email", "connection refused"), toasts[1])

	assert.ErrorIs(t, editor.TestConnection(context.Background(), "ftp"), ErrUnknownProbe)

	assert.Len(t, env.logsOfType(t, models.LogTypeInfo), 2)
	assert.Len(t, env.logsOfType(t, models.LogTypeSuccess), 1)
	assert.Len(t, env.logsOfType(t, models.LogTypeError), 1)
}

func TestAPIProbe(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-KEY")
		if gotKey != "ok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	probe := &APIProbe{Client: srv.Client()}
	err := probe.Probe(context.Background(), SettingValues{models.SettingAPIURL: srv.URL, models.SettingAPIKey: "ok"})
	require.NoError(t, err)
	assert.Equal(t, "ok", gotKey)

	err = probe.Probe(context.Background(), SettingValues{models.SettingAPIURL: srv.URL, models.SettingAPIKey: "bad"})
	assert.Error(t, err)
}

func TestSMTPProbe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		conn.Write([]byte("220 localhost ESMTP\r\n"))
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			switch {
			case strings.HasPrefix(line, "EHLO"):
				conn.Write([]byte("250 localhost\r\n"))
			case strings.HasPrefix(line, "QUIT"):
				conn.Write([]byte("221 bye\r\n"))
				return
			default:
				conn.Write([]byte("502 not implemented\r\n"))
			}
		}
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)

	probe := &SMTPProbe{}
	require.NoError(t, probe.Probe(context.Background(), SettingValues{
		models.SettingSMTPHost: host,
		models.SettingSMTPPort: port,
	}))

	assert.Error(t, probe.Probe(context.Background(), SettingValues{}))
}

func TestDatabaseProbeRequiresHost(t *testing.T) {
	probe := &DatabaseProbe{}
	assert.Error(t, probe.Probe(context.Background(), SettingValues{}))
}
