package models

// DashboardStatus representa las tarjetas de estado del panel
type DashboardStatus struct {
	IsSystemActive bool   `json:"is_system_active"`
	LastExecution  string `json:"last_execution"`
	TotalSentToday int    `json:"total_sent_today"`
	TotalErrors    int    `json:"total_errors"`
	TotalPending   int    `json:"total_pending"`
}

// ManualRunResponse representa la respuesta de una ejecución manual
type ManualRunResponse struct {
	EventID     string `json:"event_id"`
	RequestedAt string `json:"requested_at"`
}

// ExportResponse representa un archivo exportado y su copia en storage
type ExportResponse struct {
	FileName   string `json:"file_name"`
	ArchiveURL string `json:"archive_url,omitempty"`
}

// ClientEvent representa un evento de auditoría reportado por el navegador
type ClientEvent struct {
	Kind            string `json:"kind" binding:"required"`
	OuterWidth      int    `json:"outer_width,omitempty"`
	OuterHeight     int    `json:"outer_height,omitempty"`
	InnerWidth      int    `json:"inner_width,omitempty"`
	InnerHeight     int    `json:"inner_height,omitempty"`
	SelectionLength int    `json:"selection_length,omitempty"`
	Hidden          bool   `json:"hidden,omitempty"`
}

// ToggleResponse representa el nuevo estado del sistema
type ToggleResponse struct {
	IsSystemActive bool `json:"is_system_active"`
}

// SecurityEventResponse indica si el evento generó una entrada de auditoría
type SecurityEventResponse struct {
	Logged bool `json:"logged"`
}
