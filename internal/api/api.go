package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hypernova-labs/nfse-dashboard/internal/database"
	"github.com/hypernova-labs/nfse-dashboard/internal/email"
	"github.com/hypernova-labs/nfse-dashboard/internal/models"
	"github.com/hypernova-labs/nfse-dashboard/internal/notify"
	"github.com/hypernova-labs/nfse-dashboard/internal/services"
	"github.com/sirupsen/logrus"
)

// Options configura las sesiones del panel
type Options struct {
	SessionHashKey []byte
	SessionTTL     time.Duration
	SecureCookie   bool
}

// API maneja todos los endpoints del panel
type API struct {
	sessions *sessionStore
	logger   *logrus.Logger
}

// NewAPI crea una nueva instancia de la API
func NewAPI(backend *Backend, opts Options) *API {
	if backend.Now == nil {
		backend.Now = func() time.Time { return time.Now().UTC() }
	}
	if backend.Reports == nil {
		backend.Reports = services.NewReportGenerator(backend.Logger)
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 8 * time.Hour
	}
	return &API{
		sessions: newSessionStore(backend, opts.SessionHashKey, opts.SessionTTL, opts.SecureCookie),
		logger:   backend.Logger,
	}
}

// RegisterRoutes registra los endpoints del panel en el grupo indicado
func (api *API) RegisterRoutes(v1 *gin.RouterGroup) {
	v1.GET("/dashboard", api.GetDashboard)
	v1.POST("/system/toggle", api.ToggleSystem)
	v1.POST("/system/run", api.ManualRun)
	v1.GET("/reports/status.pdf", api.StatusReport)

	customSend := v1.Group("/custom-send")
	{
		pick := func(s *Session) *services.NoteWorkflow { return s.CustomSend }
		customSend.GET("", api.noteState(pick))
		customSend.POST("/search", api.searchNotes(pick))
		customSend.POST("/selection/toggle", api.toggleSelection(pick))
		customSend.POST("/selection/all", api.selectAll(pick))
		customSend.DELETE("/selection", api.clearSelection(pick))
		customSend.POST("/send", api.BulkSend)
	}

	notes := v1.Group("/notes")
	{
		pick := func(s *Session) *services.NoteWorkflow { return s.Notes }
		notes.GET("", api.noteState(pick))
		notes.POST("/search", api.searchNotes(pick))
		notes.POST("/:id/send", api.SendNote)
	}

	emails := v1.Group("/emails")
	{
		emails.GET("", api.ListEmails)
		emails.POST("", api.AddEmail)
		emails.PATCH("/:id", api.UpdateEmail)
		emails.DELETE("/:id", api.RemoveEmail)
		emails.POST("/test", api.SendTestEmail)
	}

	v1.GET("/logs", api.ListLogs)
	v1.GET("/logs/export", api.ExportLogs)

	settings := v1.Group("/settings")
	{
		settings.GET("", api.GetSettings)
		settings.POST("/load", api.LoadSettings)
		settings.PATCH("", api.UpdateSettings)
		settings.POST("/save", api.SaveSettings)
		settings.POST("/reveal", api.RevealSettings)
		settings.POST("/test/:kind", api.TestConnection)
	}

	v1.POST("/security/events", api.SecurityEvent)
}

type envelope struct {
	Data          any                   `json:"data,omitempty"`
	Error         *models.ErrorInfo     `json:"error,omitempty"`
	Notifications []notify.Notification `json:"notifications"`
}

func (api *API) respond(c *gin.Context, sess *Session, status int, data any) {
	c.JSON(status, envelope{Data: data, Notifications: sess.Queue.Drain()})
}

func (api *API) fail(c *gin.Context, sess *Session, err error) {
	status, resp := errorResponse(err)
	if status >= http.StatusInternalServerError {
		api.logger.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
	}
	c.JSON(status, envelope{Error: &resp.Error, Notifications: sess.Queue.Drain()})
}

func (api *API) badRequest(c *gin.Context, sess *Session, field string, err error) {
	resp := models.NewValidationError("Invalid request format", []models.ErrorDetail{
		{Field: field, Issue: err.Error()},
	})
	c.JSON(http.StatusBadRequest, envelope{Error: &resp.Error, Notifications: sess.Queue.Drain()})
}

// errorResponse traduce los errores de los servicios a la respuesta estandarizada
func errorResponse(err error) (int, models.ErrorResponse) {
	switch {
	case errors.Is(err, services.ErrInvalidFilters),
		errors.Is(err, services.ErrNoSelection),
		errors.Is(err, services.ErrNoteNotSendable),
		errors.Is(err, services.ErrInvalidEmail),
		errors.Is(err, services.ErrNoRecipients),
		errors.Is(err, services.ErrUnknownSetting),
		errors.Is(err, services.ErrUnknownProbe),
		errors.Is(err, services.ErrUnknownEvent):
		return http.StatusBadRequest, models.NewErrorResponse(models.ErrorCodeInvalidRequest, err.Error())
	case errors.Is(err, services.ErrNoteNotFound), errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound, models.NewNotFoundError(err.Error())
	case errors.Is(err, services.ErrDuplicateEmail), errors.Is(err, services.ErrSystemInactive):
		return http.StatusConflict, models.NewConflictError(err.Error())
	case errors.Is(err, services.ErrDispatchDisabled), errors.Is(err, email.ErrDisabled):
		return http.StatusServiceUnavailable, models.NewUnavailableError(err.Error())
	case errors.Is(err, database.ErrUnknownTable), errors.Is(err, database.ErrUnknownColumn):
		return http.StatusInternalServerError, models.NewInternalError(err.Error())
	default:
		return http.StatusBadGateway, models.NewBadGatewayError(err.Error())
	}
}

// GetDashboard retorna las tarjetas de estado
func (api *API) GetDashboard(c *gin.Context) {
	sess := api.sessions.get(c)
	status, err := sess.Dashboard.Status(c.Request.Context())
	if err != nil {
		api.fail(c, sess, err)
		return
	}
	api.respond(c, sess, http.StatusOK, status)
}

// ToggleSystem activa o desactiva el envío automático
func (api *API) ToggleSystem(c *gin.Context) {
	sess := api.sessions.get(c)
	active, err := sess.Dashboard.Toggle(c.Request.Context())
	if err != nil {
		api.fail(c, sess, err)
		return
	}
	api.respond(c, sess, http.StatusOK, models.ToggleResponse{IsSystemActive: active})
}

// ManualRun solicita una ejecución inmediata
func (api *API) ManualRun(c *gin.Context) {
	sess := api.sessions.get(c)
	resp, err := sess.Dashboard.ManualRun(c.Request.Context())
	if err != nil {
		api.fail(c, sess, err)
		return
	}
	api.respond(c, sess, http.StatusAccepted, resp)
}

// StatusReport descarga el relatório de estado en PDF
func (api *API) StatusReport(c *gin.Context) {
	sess := api.sessions.get(c)
	data, resp, err := sess.Dashboard.StatusReport(c.Request.Context())
	if err != nil {
		api.fail(c, sess, err)
		return
	}
	sendFile(c, "application/pdf", data, resp)
}

func sendFile(c *gin.Context, contentType string, data []byte, resp *models.ExportResponse) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", resp.FileName))
	c.Header("Content-Length", strconv.Itoa(len(data)))
	if resp.ArchiveURL != "" {
		c.Header("X-Archive-URL", resp.ArchiveURL)
	}
	c.Data(http.StatusOK, contentType, data)
}

type workflowPicker func(*Session) *services.NoteWorkflow

func (api *API) noteState(pick workflowPicker) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := api.sessions.get(c)
		api.respond(c, sess, http.StatusOK, pick(sess).State())
	}
}

func (api *API) searchNotes(pick workflowPicker) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := api.sessions.get(c)

		var req models.SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			api.badRequest(c, sess, "body", err)
			return
		}

		workflow := pick(sess)
		if _, err := workflow.Search(c.Request.Context(), req.Filters); err != nil {
			api.fail(c, sess, err)
			return
		}
		api.respond(c, sess, http.StatusOK, workflow.State())
	}
}

func (api *API) toggleSelection(pick workflowPicker) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := api.sessions.get(c)

		var req models.ToggleSelectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			api.badRequest(c, sess, "id", err)
			return
		}

		workflow := pick(sess)
		if !workflow.ToggleSelection(req.ID) {
			api.fail(c, sess, services.ErrNoteNotFound)
			return
		}
		api.respond(c, sess, http.StatusOK, workflow.State())
	}
}

func (api *API) selectAll(pick workflowPicker) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := api.sessions.get(c)
		workflow := pick(sess)
		workflow.SelectAll()
		api.respond(c, sess, http.StatusOK, workflow.State())
	}
}

func (api *API) clearSelection(pick workflowPicker) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := api.sessions.get(c)
		workflow := pick(sess)
		workflow.ClearSelection()
		api.respond(c, sess, http.StatusOK, workflow.State())
	}
}

// BulkSend envía las notas seleccionadas en Envio Personalizado
func (api *API) BulkSend(c *gin.Context) {
	sess := api.sessions.get(c)
	sent, err := sess.CustomSend.BulkSend(c.Request.Context())
	if err != nil {
		api.fail(c, sess, err)
		return
	}
	api.respond(c, sess, http.StatusOK, models.SendResponse{Sent: sent, State: sess.CustomSend.State()})
}

// SendNote envía una nota individual desde Notas Disponíveis
func (api *API) SendNote(c *gin.Context) {
	sess := api.sessions.get(c)
	if _, err := sess.Notes.SendNote(c.Request.Context(), c.Param("id")); err != nil {
		api.fail(c, sess, err)
		return
	}
	api.respond(c, sess, http.StatusOK, models.SendResponse{Sent: 1, State: sess.Notes.State()})
}

// ListEmails lista los destinatarios de notificaciones
func (api *API) ListEmails(c *gin.Context) {
	sess := api.sessions.get(c)
	emails, err := sess.Emails.List(c.Request.Context())
	if err != nil {
		api.fail(c, sess, err)
		return
	}
	api.respond(c, sess, http.StatusOK, emails)
}

// AddEmail registra un destinatario
func (api *API) AddEmail(c *gin.Context) {
	sess := api.sessions.get(c)

	var req models.AddEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.badRequest(c, sess, "body", err)
		return
	}

	// La validación de duplicados usa la lista vigente de la sesión
	if _, err := sess.Emails.List(c.Request.Context()); err != nil {
		api.fail(c, sess, err)
		return
	}
	added, err := sess.Emails.Add(c.Request.Context(), req.Email, req.Name)
	if err != nil {
		api.fail(c, sess, err)
		return
	}
	api.respond(c, sess, http.StatusCreated, added)
}

// UpdateEmail activa o desactiva un destinatario
func (api *API) UpdateEmail(c *gin.Context) {
	sess := api.sessions.get(c)

	var req models.UpdateEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.badRequest(c, sess, "is_active", err)
		return
	}

	updated, err := sess.Emails.SetActive(c.Request.Context(), c.Param("id"), *req.IsActive)
	if err != nil {
		api.fail(c, sess, err)
		return
	}
	api.respond(c, sess, http.StatusOK, updated)
}

// RemoveEmail elimina un destinatario
func (api *API) RemoveEmail(c *gin.Context) {
	sess := api.sessions.get(c)
	if err := sess.Emails.Remove(c.Request.Context(), c.Param("id")); err != nil {
		api.fail(c, sess, err)
		return
	}
	api.respond(c, sess, http.StatusOK, gin.H{"id": c.Param("id")})
}

// SendTestEmail envía el email de prueba a los destinatarios activos
func (api *API) SendTestEmail(c *gin.Context) {
	sess := api.sessions.get(c)
	sent, err := sess.Emails.SendTest(c.Request.Context())
	if err != nil {
		api.fail(c, sess, err)
		return
	}
	api.respond(c, sess, http.StatusOK, models.EmailTestResponse{Recipients: sent})
}

// ListLogs lista el registro de auditoría filtrado
func (api *API) ListLogs(c *gin.Context) {
	sess := api.sessions.get(c)

	var filters models.LogFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		api.badRequest(c, sess, "query", err)
		return
	}

	entries, err := sess.Logs.List(c.Request.Context(), filters)
	if err != nil {
		api.fail(c, sess, err)
		return
	}
	api.respond(c, sess, http.StatusOK, entries)
}

// ExportLogs descarga el CSV del registro filtrado
func (api *API) ExportLogs(c *gin.Context) {
	sess := api.sessions.get(c)

	var filters models.LogFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		api.badRequest(c, sess, "query", err)
		return
	}

	data, resp, err := sess.Logs.Export(c.Request.Context(), filters)
	if err != nil {
		api.fail(c, sess, err)
		return
	}
	sendFile(c, "text/csv; charset=utf-8", data, resp)
}

// GetSettings retorna las configuraciones, enmascarando las sensibles
func (api *API) GetSettings(c *gin.Context) {
	sess := api.sessions.get(c)
	if err := sess.EnsureSettings(c.Request.Context()); err != nil {
		api.fail(c, sess, err)
		return
	}
	api.respond(c, sess, http.StatusOK, sess.Settings.View())
}

// LoadSettings descarta las ediciones y recarga del backend
func (api *API) LoadSettings(c *gin.Context) {
	sess := api.sessions.get(c)
	if err := sess.ReloadSettings(c.Request.Context()); err != nil {
		api.fail(c, sess, err)
		return
	}
	api.respond(c, sess, http.StatusOK, sess.Settings.View())
}

// UpdateSettings edita el buffer sin persistir
func (api *API) UpdateSettings(c *gin.Context) {
	sess := api.sessions.get(c)

	var req models.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.badRequest(c, sess, "values", err)
		return
	}
	if err := sess.EnsureSettings(c.Request.Context()); err != nil {
		api.fail(c, sess, err)
		return
	}
	if err := sess.Settings.SetMany(req.Values); err != nil {
		api.fail(c, sess, err)
		return
	}
	api.respond(c, sess, http.StatusOK, sess.Settings.View())
}

// SaveSettings persiste las claves modificadas
func (api *API) SaveSettings(c *gin.Context) {
	sess := api.sessions.get(c)
	if err := sess.EnsureSettings(c.Request.Context()); err != nil {
		api.fail(c, sess, err)
		return
	}
	if _, err := sess.Settings.Save(c.Request.Context()); err != nil {
		api.fail(c, sess, err)
		return
	}
	api.respond(c, sess, http.StatusOK, sess.Settings.View())
}

// RevealSettings muestra u oculta los campos sensibles
func (api *API) RevealSettings(c *gin.Context) {
	sess := api.sessions.get(c)

	var req models.RevealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.badRequest(c, sess, "visible", err)
		return
	}
	if err := sess.EnsureSettings(c.Request.Context()); err != nil {
		api.fail(c, sess, err)
		return
	}
	sess.Settings.ToggleReveal(c.Request.Context(), req.Visible)
	api.respond(c, sess, http.StatusOK, sess.Settings.View())
}

// TestConnection ejecuta la prueba de conexión indicada
func (api *API) TestConnection(c *gin.Context) {
	sess := api.sessions.get(c)
	if err := sess.EnsureSettings(c.Request.Context()); err != nil {
		api.fail(c, sess, err)
		return
	}

	kind := c.Param("kind")
	if err := sess.Settings.TestConnection(c.Request.Context(), kind); err != nil {
		api.fail(c, sess, err)
		return
	}
	api.respond(c, sess, http.StatusOK, models.ConnectionTestResponse{Kind: kind, OK: true})
}

// SecurityEvent recibe los eventos de auditoría del navegador
func (api *API) SecurityEvent(c *gin.Context) {
	sess := api.sessions.get(c)

	var event models.ClientEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		api.badRequest(c, sess, "kind", err)
		return
	}

	logged, err := sess.Security.Handle(c.Request.Context(), event)
	if err != nil {
		api.fail(c, sess, err)
		return
	}
	api.respond(c, sess, http.StatusOK, models.SecurityEventResponse{Logged: logged})
}
