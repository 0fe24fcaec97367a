package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/hypernova-labs/nfse-dashboard/internal/audit"
	"github.com/hypernova-labs/nfse-dashboard/internal/database"
	"github.com/hypernova-labs/nfse-dashboard/internal/email"
	"github.com/hypernova-labs/nfse-dashboard/internal/notify"
	"github.com/hypernova-labs/nfse-dashboard/internal/services"
	"github.com/sirupsen/logrus"
)

// SessionCookie es el nombre de la cookie firmada de sesión
const SessionCookie = "nfse_session"

// Backend agrupa los colaboradores compartidos por todas las sesiones.
// Dispatcher y Archiver quedan en nil cuando no están configurados.
type Backend struct {
	Client     database.Client
	Audit      *audit.Writer
	Logger     *logrus.Logger
	Mailer     email.Mailer
	Dispatcher services.RunDispatcher
	Archiver   services.Archiver
	Probes     map[string]services.ConnectionProbe
	Reports    *services.ReportGenerator
	Now        func() time.Time
}

// Session mantiene los objetos de flujo de una pestaña del panel
type Session struct {
	ID         string
	Queue      *notify.Queue
	CustomSend *services.NoteWorkflow
	Notes      *services.NoteWorkflow
	Settings   *services.SettingsEditor
	Emails     *services.EmailManager
	Dashboard  *services.Dashboard
	Logs       *services.LogViewer
	Security   *services.SecurityMonitor

	mu             sync.Mutex
	settingsLoaded bool
	lastSeen       time.Time
}

func newSession(b *Backend, userAgent, clientIP string) *Session {
	queue := notify.NewQueue()
	deps := services.Deps{
		Client:   b.Client,
		Audit:    b.Audit.ForClient(userAgent, clientIP),
		Notifier: notify.Multi{queue, notify.NewLogSink(b.Logger)},
		Logger:   b.Logger,
		Now:      b.Now,
	}

	return &Session{
		ID:         uuid.NewString(),
		Queue:      queue,
		CustomSend: services.NewCustomSendWorkflow(deps),
		Notes:      services.NewAvailableNotesWorkflow(deps),
		Settings:   services.NewSettingsEditor(deps, b.Probes),
		Emails:     services.NewEmailManager(deps, b.Mailer),
		Dashboard:  services.NewDashboard(deps, b.Dispatcher, b.Archiver, b.Reports),
		Logs:       services.NewLogViewer(deps, b.Archiver),
		Security:   services.NewSecurityMonitor(deps, userAgent),
	}
}

// EnsureSettings carga el editor la primera vez que se usa
func (s *Session) EnsureSettings(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settingsLoaded {
		return nil
	}
	if err := s.Settings.Load(ctx); err != nil {
		return err
	}
	s.settingsLoaded = true
	return nil
}

// ReloadSettings descarta las ediciones y vuelve a leer del backend
func (s *Session) ReloadSettings(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Settings.Load(ctx); err != nil {
		return err
	}
	s.settingsLoaded = true
	return nil
}

// sessionStore resuelve la sesión de cada request a partir de la cookie firmada
type sessionStore struct {
	backend *Backend
	codec   *securecookie.SecureCookie
	ttl     time.Duration
	secure  bool
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func newSessionStore(backend *Backend, hashKey []byte, ttl time.Duration, secure bool) *sessionStore {
	if len(hashKey) == 0 {
		hashKey = securecookie.GenerateRandomKey(32)
	}
	codec := securecookie.New(hashKey, nil)
	codec.MaxAge(int(ttl / time.Second))

	return &sessionStore{
		backend:  backend,
		codec:    codec,
		ttl:      ttl,
		secure:   secure,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// get retorna la sesión del request, creando una nueva si no existe o expiró
func (s *sessionStore) get(c *gin.Context) *Session {
	now := s.now()

	if raw, err := c.Cookie(SessionCookie); err == nil {
		var id string
		if err := s.codec.Decode(SessionCookie, raw, &id); err == nil {
			s.mu.Lock()
			sess, ok := s.sessions[id]
			if ok && now.Sub(sess.lastSeen) < s.ttl {
				sess.lastSeen = now
				s.mu.Unlock()
				return sess
			}
			delete(s.sessions, id)
			s.mu.Unlock()
		}
	}

	sess := newSession(s.backend, c.Request.UserAgent(), c.ClientIP())
	sess.lastSeen = now

	s.mu.Lock()
	s.sweepLocked(now)
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	encoded, err := s.codec.Encode(SessionCookie, sess.ID)
	if err != nil {
		s.backend.Logger.WithError(err).Error("Failed to encode session cookie")
		return sess
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(SessionCookie, encoded, int(s.ttl/time.Second), "/", "", s.secure, true)

	s.backend.Logger.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"client_ip":  c.ClientIP(),
	}).Debug("Dashboard session created")
	return sess
}

func (s *sessionStore) sweepLocked(now time.Time) {
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) >= s.ttl {
			delete(s.sessions, id)
		}
	}
}

func (s *sessionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
