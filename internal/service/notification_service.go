package service

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/maintenance-service/internal/config"
	"github.com/spec-kit/maintenance-service/internal/events"
)

// notificationRoute says how one event type is surfaced.
type notificationRoute struct {
	name    string
	level   zapcore.Level
	email   bool
	webhook bool
	// emailIf narrows email delivery; nil means always when email is set.
	emailIf func(events.Event) bool
}

var notificationRoutes = map[events.EventType]notificationRoute{
	events.EventTicketCreated: {name: "TicketCreated", level: zapcore.InfoLevel, email: true, webhook: true, emailIf: func(e events.Event) bool {
		payload, ok := e.Payload.(events.TicketCreatedPayload)
		return ok && payload.Emergency
	}},
	events.EventTicketStatusChanged: {name: "TicketStatusChanged", level: zapcore.InfoLevel, webhook: true},
	events.EventTicketAssigned:      {name: "TicketAssigned", level: zapcore.InfoLevel, email: true},
	events.EventMaterialIssued:      {name: "MaterialIssued", level: zapcore.DebugLevel, webhook: true},
	events.EventMaterialReversed:    {name: "MaterialReversed", level: zapcore.DebugLevel, webhook: true},
	events.EventStockReceived:       {name: "StockReceived", level: zapcore.DebugLevel, webhook: true},
	events.EventStockAlert:          {name: "StockAlert", level: zapcore.WarnLevel, email: true, webhook: true},
}

// NotificationService fans committed events out to the log and to the
// configured email and webhook channels. Delivery is stubbed.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{dispatcher: dispatcher, logger: logger, cfg: cfg}
}

// RegisterHandlers subscribes to every routed event type.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for eventType := range notificationRoutes {
		n.dispatcher.Subscribe(eventType, n.notify)
	}
}

func (n *NotificationService) notify(ctx context.Context, event events.Event) error {
	route, ok := notificationRoutes[event.Type]
	if !ok {
		return nil
	}
	if ce := n.logger.Check(route.level, route.name); ce != nil {
		ce.Write(
			zap.String("event_id", event.ID),
			zap.String("ticket_id", event.TicketID),
			zap.String("actor_id", event.ActorID),
			zap.Any("payload", event.Payload))
	}
	if route.email && (route.emailIf == nil || route.emailIf(event)) {
		n.sendEmail(ctx, event)
	}
	if route.webhook {
		n.postWebhook(ctx, event)
	}
	return nil
}

// TODO: replace with an SMTP sender once a mail relay is provisioned.
func (n *NotificationService) sendEmail(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("email notification queued",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) postWebhook(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("webhook notification queued",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
}
