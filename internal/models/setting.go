package models

import "time"

// Claves conocidas de system_settings
const (
	SettingDBHost        = "db_host"
	SettingDBPort        = "db_port"
	SettingDBName        = "db_name"
	SettingDBUser        = "db_user"
	SettingDBPassword    = "db_password"
	SettingAPIURL        = "api_url"
	SettingAPIKey        = "api_key"
	SettingSMTPHost      = "smtp_host"
	SettingSMTPPort      = "smtp_port"
	SettingSMTPUser      = "smtp_user"
	SettingSMTPPassword  = "smtp_password"
	SettingSMTPFromName  = "smtp_from_name"
	SettingScheduledTime = "scheduled_time"
	SettingTimezone      = "timezone"
	SettingRetryAttempts = "retry_attempts"
	SettingRetryInterval = "retry_interval"
	SettingSystemActive  = "system_active"
	SettingLastExecution = "last_execution"
)

// SettingDefaults son los valores usados cuando la clave no tiene valor
var SettingDefaults = map[string]string{
	SettingDBPort:        "1433",
	SettingAPIURL:        "https://api.plugnotas.com.br/nfse",
	SettingSMTPPort:      "587",
	SettingSMTPFromName:  "Sistema NFSe",
	SettingScheduledTime: "18:00",
	SettingTimezone:      "America/Sao_Paulo",
	SettingRetryAttempts: "3",
	SettingRetryInterval: "30",
	SettingSystemActive:  "true",
}

// SystemSetting representa una fila de system_settings
type SystemSetting struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Value       *string   `json:"value"`
	Description *string   `json:"description"`
	IsSensitive bool      `json:"is_sensitive"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SettingView representa una configuración lista para exhibir
type SettingView struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
	IsSensitive bool   `json:"is_sensitive"`
	Masked      bool   `json:"masked"`
	Dirty       bool   `json:"dirty"`
}

// SettingsResponse representa la respuesta del editor de configuraciones
type SettingsResponse struct {
	Settings      []SettingView `json:"settings"`
	ShowSensitive bool          `json:"show_sensitive"`
	DirtyKeys     []string      `json:"dirty_keys"`
}

// RevealRequest representa el request para mostrar/ocultar campos sensibles
type RevealRequest struct {
	Visible bool `json:"visible"`
}

// UpdateSettingsRequest representa la edición de varias claves del buffer
type UpdateSettingsRequest struct {
	Values map[string]string `json:"values" binding:"required"`
}

// ConnectionTestResponse representa el resultado de una prueba de conexión
type ConnectionTestResponse struct {
	Kind string `json:"kind"`
	OK   bool   `json:"ok"`
}
