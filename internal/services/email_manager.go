package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hypernova-labs/nfse-dashboard/internal/database"
	"github.com/hypernova-labs/nfse-dashboard/internal/email"
	"github.com/hypernova-labs/nfse-dashboard/internal/models"
	"github.com/hypernova-labs/nfse-dashboard/internal/notify"
)

const testEmailSubject = "Teste de notificação - Sistema NFSe"

const testEmailBody = `Este é um email de teste do Sistema NFSe.

Você está recebendo esta mensagem porque seu endereço está cadastrado
na lista de notificações de envio de notas fiscais de serviço.`

// EmailManager administra la lista de destinatarios de notificaciones
type EmailManager struct {
	deps   Deps
	mailer email.Mailer

	mu     sync.Mutex
	emails []models.NotificationEmail
}

// NewEmailManager crea el administrador de destinatarios
func NewEmailManager(deps Deps, mailer email.Mailer) *EmailManager {
	if mailer == nil {
		mailer = email.Disabled{}
	}
	return &EmailManager{deps: deps, mailer: mailer}
}

// List retorna los destinatarios, más recientes primero
func (m *EmailManager) List(ctx context.Context) ([]models.NotificationEmail, error) {
	rows, err := m.deps.Client.Query(ctx, database.TableEmails, database.Query{
		Order: &database.Order{Column: "created_at", Ascending: false},
	})
	if err != nil {
		m.deps.Logger.WithError(err).Error("Failed to list notification emails")
		m.deps.record(ctx, models.LogTypeError, "Erro ao carregar emails", "Erro: "+errorText(err), nil)
		m.deps.notify(notify.Error("Erro ao carregar", "Não foi possível carregar a lista de emails"))
		return nil, err
	}
	emails, err := database.DecodeRows[models.NotificationEmail](rows)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.emails = emails
	m.mu.Unlock()
	return emails, nil
}

// Add registra un destinatario tras validar formato y duplicados
func (m *EmailManager) Add(ctx context.Context, address string, name *string) (*models.NotificationEmail, error) {
	address = strings.TrimSpace(address)
	if !strings.Contains(address, "@") {
		m.deps.notify(notify.Error("Email inválido", "Por favor, insira um email válido"))
		return nil, ErrInvalidEmail
	}
	if m.isDuplicate(address) {
		m.deps.notify(notify.Error("Email já cadastrado", "Este email já está na lista"))
		return nil, ErrDuplicateEmail
	}

	values := database.Values{"email": address, "is_active": true}
	if name != nil && strings.TrimSpace(*name) != "" {
		values["name"] = strings.TrimSpace(*name)
	}

	row, err := m.deps.Client.Insert(ctx, database.TableEmails, values)
	if err != nil {
		m.deps.Logger.WithError(err).WithField("email", address).Error("Failed to add notification email")
		m.deps.record(ctx, models.LogTypeError, "Erro ao adicionar email", "Erro: "+errorText(err), nil)
		m.deps.notify(notify.Error("Erro ao adicionar", "Não foi possível adicionar o email"))
		return nil, err
	}
	added, err := database.DecodeRow[models.NotificationEmail](row)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.emails = append([]models.NotificationEmail{*added}, m.emails...)
	m.mu.Unlock()

	m.deps.record(ctx, models.LogTypeInfo, "Email de notificação adicionado", address, nil)
	m.deps.notify(notify.Info("Email adicionado", "Email adicionado com sucesso à lista de notificações"))
	return added, nil
}

func (m *EmailManager) isDuplicate(address string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.emails {
		if strings.EqualFold(e.Email, address) {
			return true
		}
	}
	return false
}

// Remove elimina un destinatario
func (m *EmailManager) Remove(ctx context.Context, id string) error {
	err := m.deps.Client.Delete(ctx, database.TableEmails, []database.Filter{database.Eq("id", id)})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			m.deps.notify(notify.Error("Email não encontrado", "O email informado não está na lista"))
			return err
		}
		m.deps.Logger.WithError(err).WithField("email_id", id).Error("Failed to remove notification email")
		m.deps.record(ctx, models.LogTypeError, "Erro ao remover email", "Erro: "+errorText(err), nil)
		m.deps.notify(notify.Error("Erro ao remover", "Não foi possível remover o email"))
		return err
	}

	var removed string
	m.mu.Lock()
	kept := m.emails[:0]
	for _, e := range m.emails {
		if e.ID == id {
			removed = e.Email
			continue
		}
		kept = append(kept, e)
	}
	m.emails = kept
	m.mu.Unlock()

	m.deps.record(ctx, models.LogTypeInfo, "Email de notificação removido", removed, nil)
	m.deps.notify(notify.Info("Email removido", "Email removido da lista de notificações"))
	return nil
}

// SetActive activa o desactiva un destinatario
func (m *EmailManager) SetActive(ctx context.Context, id string, active bool) (*models.NotificationEmail, error) {
	row, err := m.deps.Client.Update(ctx, database.TableEmails,
		[]database.Filter{database.Eq("id", id)}, database.Values{"is_active": active})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			m.deps.notify(notify.Error("Email não encontrado", "O email informado não está na lista"))
			return nil, err
		}
		m.deps.Logger.WithError(err).WithField("email_id", id).Error("Failed to update notification email")
		m.deps.record(ctx, models.LogTypeError, "Erro ao atualizar email", "Erro: "+errorText(err), nil)
		m.deps.notify(notify.Error("Erro ao atualizar", "Não foi possível atualizar o email"))
		return nil, err
	}
	updated, err := database.DecodeRow[models.NotificationEmail](row)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	for i := range m.emails {
		if m.emails[i].ID == id {
			m.emails[i] = *updated
		}
	}
	m.mu.Unlock()

	title := "Email desativado"
	if active {
		title = "Email ativado"
	}
	m.deps.notify(notify.Info(title, updated.Email))
	return updated, nil
}

// SendTest envía un email de prueba a todos los destinatarios activos
func (m *EmailManager) SendTest(ctx context.Context) (int, error) {
	emails, err := m.List(ctx)
	if err != nil {
		return 0, err
	}

	var recipients []string
	for _, e := range emails {
		if e.IsActive {
			recipients = append(recipients, e.Email)
		}
	}
	if len(recipients) == 0 {
		m.deps.notify(notify.Error("Nenhum destinatário ativo", "Ative pelo menos um email para receber o teste"))
		return 0, ErrNoRecipients
	}

	if err := m.mailer.SendTo(testEmailSubject, testEmailBody, recipients); err != nil {
		m.deps.Logger.WithError(err).Error("Failed to send test email")
		m.deps.record(ctx, models.LogTypeError, "Erro no envio de email de teste", "Erro: "+errorText(err), nil)
		m.deps.notify(notify.Error("Erro no envio", "Não foi possível enviar o email de teste"))
		return 0, err
	}

	m.deps.record(ctx, models.LogTypeSuccess, "Email de teste enviado",
		fmt.Sprintf("%d destinatários", len(recipients)), nil)
	m.deps.notify(notify.Info("Email de teste enviado", "Um email de teste foi enviado para todos os destinatários"))
	return len(recipients), nil
}
