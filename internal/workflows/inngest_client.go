package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hypernova-labs/nfse-dashboard/internal/config"
	"github.com/inngest/inngestgo"
	"github.com/sirupsen/logrus"
)

// ManualRunEvent es el evento consumido por el motor de ejecución de NFSe
const ManualRunEvent = "nfse/manual-run.requested"

// ErrNotConfigured indica que Inngest no tiene credenciales
var ErrNotConfigured = errors.New("inngest not configured")

// InngestClient publica eventos hacia el motor de ejecución
type InngestClient struct {
	client inngestgo.Client
	logger *logrus.Logger
}

// NewInngestClient crea una nueva instancia del cliente
func NewInngestClient(cfg *config.Config, logger *logrus.Logger) (*InngestClient, error) {
	if cfg.Inngest.EventKey == "" {
		return nil, fmt.Errorf("%w: INNGEST_EVENT_KEY", ErrNotConfigured)
	}

	opts := inngestgo.ClientOpts{
		EventKey: &cfg.Inngest.EventKey,
		AppID:    cfg.Inngest.AppID,
		Dev:      &cfg.Inngest.Dev,
	}
	if cfg.Inngest.SigningKey != "" {
		opts.SigningKey = &cfg.Inngest.SigningKey
	}

	client, err := inngestgo.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("error creating Inngest client: %w", err)
	}

	return &InngestClient{
		client: client,
		logger: logger,
	}, nil
}

// DispatchManualRun solicita una ejecución inmediata y retorna el id del evento
func (c *InngestClient) DispatchManualRun(ctx context.Context, requestedAt time.Time, source string) (string, error) {
	id, err := c.client.Send(ctx, inngestgo.Event{
		Name: ManualRunEvent,
		Data: map[string]any{
			"requested_at": requestedAt.Format(time.RFC3339),
			"source":       source,
		},
	})
	if err != nil {
		return "", fmt.Errorf("error sending %s event: %w", ManualRunEvent, err)
	}

	c.logger.WithFields(logrus.Fields{
		"event":    ManualRunEvent,
		"event_id": id,
		"source":   source,
	}).Info("Manual run dispatched")

	return id, nil
}
