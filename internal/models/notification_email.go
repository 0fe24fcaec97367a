package models

import "time"

// NotificationEmail representa un destinatario de notificaciones
type NotificationEmail struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// AddEmailRequest representa el request para registrar un email
type AddEmailRequest struct {
	Email string  `json:"email"`
	Name  *string `json:"name,omitempty"`
}

// UpdateEmailRequest representa el request para activar/desactivar un email
type UpdateEmailRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// EmailTestResponse representa el resultado del envío de prueba
type EmailTestResponse struct {
	Recipients int `json:"recipients"`
}
