package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hypernova-labs/nfse-dashboard/internal/audit"
	"github.com/hypernova-labs/nfse-dashboard/internal/database"
	"github.com/hypernova-labs/nfse-dashboard/internal/models"
	"github.com/hypernova-labs/nfse-dashboard/internal/notify"
	"golang.org/x/sync/errgroup"
)

// MaskedValue reemplaza los valores sensibles ocultos
const MaskedValue = "********"

// SettingsEditor mantiene un buffer de edición sobre system_settings
type SettingsEditor struct {
	deps   Deps
	probes map[string]ConnectionProbe

	mu            sync.Mutex
	loaded        map[string]models.SystemSetting
	buffer        map[string]string
	showSensitive bool
}

// NewSettingsEditor crea el editor con las pruebas de conexión indicadas
func NewSettingsEditor(deps Deps, probes map[string]ConnectionProbe) *SettingsEditor {
	return &SettingsEditor{
		deps:   deps,
		probes: probes,
		loaded: make(map[string]models.SystemSetting),
		buffer: make(map[string]string),
	}
}

// Load lee todas las configuraciones y reinicia el buffer
func (e *SettingsEditor) Load(ctx context.Context) error {
	settings, err := fetchSettings(ctx, e.deps.Client)
	if err != nil {
		e.deps.Logger.WithError(err).Error("Failed to load settings")
		e.deps.record(ctx, models.LogTypeError, "Erro ao carregar configurações", "Erro: "+errorText(err), nil)
		e.deps.notify(notify.Error("Erro ao carregar", "Não foi possível carregar as configurações"))
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = make(map[string]models.SystemSetting, len(settings))
	e.buffer = make(map[string]string, len(settings))
	for _, s := range settings {
		e.loaded[s.Key] = s
		e.buffer[s.Key] = valueOf(s.Value)
	}
	return nil
}

func fetchSettings(ctx context.Context, client database.Client) ([]models.SystemSetting, error) {
	rows, err := client.Query(ctx, database.TableSettings, database.Query{
		Order: &database.Order{Column: "key", Ascending: true},
	})
	if err != nil {
		return nil, err
	}
	return database.DecodeRows[models.SystemSetting](rows)
}

func valueOf(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// Get retorna el valor editado o def cuando la clave no tiene valor
func (e *SettingsEditor) Get(key, def string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v := e.buffer[key]; v != "" {
		return v
	}
	return def
}

// Set edita el buffer; solo acepta claves existentes
func (e *SettingsEditor) Set(key, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.loaded[key]; !ok {
		e.deps.notify(notify.Error("Configuração desconhecida", fmt.Sprintf("A chave %s não existe", key)))
		return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	e.buffer[key] = value
	return nil
}

// SetMany edita varias claves; no aplica nada si alguna es desconocida
func (e *SettingsEditor) SetMany(values map[string]string) error {
	e.mu.Lock()
	for key := range values {
		if _, ok := e.loaded[key]; !ok {
			e.mu.Unlock()
			e.deps.notify(notify.Error("Configuração desconhecida", fmt.Sprintf("A chave %s não existe", key)))
			return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
		}
	}
	for key, value := range values {
		e.buffer[key] = value
	}
	e.mu.Unlock()
	return nil
}

// DirtyKeys retorna las claves cuyo valor editado difiere del cargado
func (e *SettingsEditor) DirtyKeys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dirtyKeysLocked()
}

func (e *SettingsEditor) dirtyKeysLocked() []string {
	var keys []string
	for key, value := range e.buffer {
		if value != valueOf(e.loaded[key].Value) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Save persiste solo las claves modificadas, en paralelo
func (e *SettingsEditor) Save(ctx context.Context) ([]string, error) {
	e.mu.Lock()
	dirty := e.dirtyKeysLocked()
	pending := make(map[string]string, len(dirty))
	for _, key := range dirty {
		pending[key] = e.buffer[key]
	}
	e.mu.Unlock()

	if len(dirty) == 0 {
		e.deps.notify(notify.Info("Nenhuma alteração", "Não há configurações alteradas para salvar"))
		return nil, nil
	}

	var (
		savedMu sync.Mutex
		saved   = make(map[string]models.SystemSetting, len(dirty))
	)
	now := e.deps.now()
	g, gctx := errgroup.WithContext(ctx)
	for _, key := range dirty {
		key, value := key, pending[key]
		g.Go(func() error {
			row, err := e.deps.Client.Update(gctx, database.TableSettings,
				[]database.Filter{database.Eq("key", key)},
				database.Values{"value": value, "updated_at": now})
			if err != nil {
				return fmt.Errorf("error updating setting %s: %w", key, err)
			}
			setting, err := database.DecodeRow[models.SystemSetting](row)
			if err != nil {
				return err
			}
			savedMu.Lock()
			saved[key] = *setting
			savedMu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	e.mu.Lock()
	for key, setting := range saved {
		e.loaded[key] = setting
	}
	e.mu.Unlock()

	if err != nil {
		e.deps.Logger.WithError(err).WithField("keys", dirty).Error("Failed to save settings")
		e.deps.record(ctx, models.LogTypeError, "Erro ao salvar configurações",
			fmt.Sprintf("Erro ao salvar %d configurações: %s", len(dirty), errorText(err)), nil)
		e.deps.notify(notify.Error("Erro ao salvar", "Não foi possível salvar as configurações"))
		return nil, err
	}

	e.deps.record(ctx, models.LogTypeSuccess, "Configurações atualizadas",
		"Chaves alteradas: "+strings.Join(dirty, ", "), nil)
	e.deps.notify(notify.Info("Configurações salvas", "As configurações foram atualizadas com sucesso"))
	return dirty, nil
}

// ToggleReveal muestra u oculta todos los campos sensibles
func (e *SettingsEditor) ToggleReveal(ctx context.Context, visible bool) {
	e.mu.Lock()
	changed := e.showSensitive != visible
	e.showSensitive = visible
	e.mu.Unlock()

	if !changed {
		return
	}
	event := "Campos sensíveis ocultados"
	if visible {
		event = "Campos sensíveis exibidos"
	}
	e.deps.Audit.Record(ctx, audit.SecurityEvent(event, "Configurações do sistema"))
}

// View retorna las configuraciones para exhibir, enmascarando las sensibles
func (e *SettingsEditor) View() models.SettingsResponse {
	e.mu.Lock()
	defer e.mu.Unlock()

	dirty := e.dirtyKeysLocked()
	dirtySet := make(map[string]bool, len(dirty))
	for _, k := range dirty {
		dirtySet[k] = true
	}

	keys := make([]string, 0, len(e.loaded))
	for key := range e.loaded {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	views := make([]models.SettingView, 0, len(keys))
	for _, key := range keys {
		s := e.loaded[key]
		v := models.SettingView{
			Key:         key,
			Value:       e.buffer[key],
			Description: valueOf(s.Description),
			IsSensitive: s.IsSensitive,
			Dirty:       dirtySet[key],
		}
		if s.IsSensitive && !e.showSensitive && v.Value != "" {
			v.Value = MaskedValue
			v.Masked = true
		}
		views = append(views, v)
	}

	if dirty == nil {
		dirty = []string{}
	}
	return models.SettingsResponse{
		Settings:      views,
		ShowSensitive: e.showSensitive,
		DirtyKeys:     dirty,
	}
}

func (e *SettingsEditor) snapshot() SettingValues {
	e.mu.Lock()
	defer e.mu.Unlock()
	values := make(SettingValues, len(e.buffer))
	for k, v := range e.buffer {
		values[k] = v
	}
	return values
}

// TestConnection ejecuta la prueba real del tipo indicado con los valores editados
func (e *SettingsEditor) TestConnection(ctx context.Context, kind string) error {
	probe, ok := e.probes[kind]
	if !ok {
		e.deps.notify(notify.Error("Teste desconhecido", fmt.Sprintf("Tipo de teste inválido: %s", kind)))
		return fmt.Errorf("%w: %s", ErrUnknownProbe, kind)
	}
	label := probeLabels[kind]

	e.deps.record(ctx, models.LogTypeInfo, "Teste de conexão iniciado", "Tipo: "+label, nil)
	e.deps.notify(notify.Info(fmt.Sprintf("Testando %s...", label), "Verificando conectividade..."))

	if err := probe.Probe(ctx, e.snapshot()); err != nil {
		e.deps.Logger.WithError(err).WithField("kind", kind).Warn("Connection test failed")
		e.deps.record(ctx, models.LogTypeError, "Falha no teste de conexão",
			fmt.Sprintf("Tipo: %s, Erro: %s", label, errorText(err)), nil)
		e.deps.notify(notify.Error(fmt.Sprintf("Falha no teste de %s", label), errorText(err)))
		return err
	}

	e.deps.record(ctx, models.LogTypeSuccess, "Teste de conexão concluído", "Tipo: "+label, nil)
	e.deps.notify(notify.Info(fmt.Sprintf("Teste de %s concluído", label), "Conexão estabelecida com sucesso"))
	return nil
}
