package database

import (
	"context"
	"fmt"
	"time"

	"github.com/hypernova-labs/nfse-dashboard/internal/models"
)

type seedSetting struct {
	key         string
	description string
	sensitive   bool
}

// settingCatalog replica las claves sembradas por migrations/001_init.sql
var settingCatalog = []seedSetting{
	{models.SettingDBHost, "Servidor do banco de origem", false},
	{models.SettingDBPort, "Porta do banco de origem", false},
	{models.SettingDBName, "Nome do banco de origem", false},
	{models.SettingDBUser, "Usuário do banco de origem", false},
	{models.SettingDBPassword, "Senha do banco de origem", true},
	{models.SettingAPIURL, "URL da API de envio de NFSe", false},
	{models.SettingAPIKey, "Chave da API de envio de NFSe", true},
	{models.SettingSMTPHost, "Servidor SMTP", false},
	{models.SettingSMTPPort, "Porta SMTP", false},
	{models.SettingSMTPUser, "Usuário SMTP", false},
	{models.SettingSMTPPassword, "Senha SMTP", true},
	{models.SettingSMTPFromName, "Nome do remetente", false},
	{models.SettingScheduledTime, "Horário da execução diária", false},
	{models.SettingTimezone, "Fuso horário", false},
	{models.SettingRetryAttempts, "Tentativas de reenvio", false},
	{models.SettingRetryInterval, "Intervalo entre tentativas (minutos)", false},
	{models.SettingSystemActive, "Sistema ativo", false},
	{models.SettingLastExecution, "Última execução", false},
}

// SeedSettings inserta todas las claves conocidas con sus valores por defecto
func SeedSettings(ctx context.Context, client Client) error {
	for _, s := range settingCatalog {
		values := Values{
			"key":          s.key,
			"description":  s.description,
			"is_sensitive": s.sensitive,
		}
		if v, ok := models.SettingDefaults[s.key]; ok {
			values["value"] = v
		} else {
			values["value"] = nil
		}
		if _, err := client.Insert(ctx, TableSettings, values); err != nil {
			return fmt.Errorf("error seeding setting %s: %w", s.key, err)
		}
	}
	return nil
}

// SeedDemoData carga notas, configuraciones y destinatarios de demostración
func SeedDemoData(ctx context.Context, client Client) error {
	base := time.Date(2024, 5, 28, 12, 0, 0, 0, time.UTC)
	notes := []Values{
		{
			"numero_rps": "001", "serie_rps": "A1", "data_emissao": "2024-05-28",
			"cnpj_prestador": "12.345.678/0001-90", "razao_social_tomador": "Empresa ABC Ltda",
			"valor_servicos": 1500.00, "cd_servico": "101", "status": string(models.NoteStatusPending),
			"created_at": base,
		},
		{
			"numero_rps": "002", "serie_rps": "A1", "data_emissao": "2024-05-28",
			"cnpj_prestador": "12.345.678/0001-90", "razao_social_tomador": "Empresa XYZ S.A.",
			"valor_servicos": 2300.00, "cd_servico": "201", "status": string(models.NoteStatusPending),
			"created_at": base.Add(-time.Hour),
		},
		{
			"numero_rps": "003", "serie_rps": "A1", "data_emissao": "2024-05-27",
			"cnpj_prestador": "98.765.432/0001-10", "razao_social_tomador": "Empresa 123 Ltda",
			"valor_servicos": 850.00, "cd_servico": "301", "status": string(models.NoteStatusError),
			"motivo_erro": "CNPJ inválido", "created_at": base.Add(-24 * time.Hour),
		},
		{
			"numero_rps": "004", "serie_rps": "B1", "data_emissao": "2024-05-27",
			"cnpj_prestador": "12.345.678/0001-90", "razao_social_tomador": "Empresa DEF S.A.",
			"valor_servicos": 3200.00, "cd_servico": "101", "status": string(models.NoteStatusPending),
			"created_at": base.Add(-25 * time.Hour),
		},
	}
	for _, n := range notes {
		n["updated_at"] = n["created_at"]
		if _, err := client.Insert(ctx, TableNotes, n); err != nil {
			return fmt.Errorf("error seeding note %s: %w", n["numero_rps"], err)
		}
	}

	if err := SeedSettings(ctx, client); err != nil {
		return err
	}

	if _, err := client.Insert(ctx, TableEmails, Values{
		"email":     "fiscal@empresa.com",
		"name":      "Equipe Fiscal",
		"is_active": true,
	}); err != nil {
		return fmt.Errorf("error seeding notification email: %w", err)
	}

	return nil
}
