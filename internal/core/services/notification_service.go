package services

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Event types emitted by the inventory core
const (
	EventUnitCreated          = "unit.created"
	EventUnitTransitioned     = "unit.transitioned"
	EventSweepCompleted       = "sweep.completed"
	EventReservationCreated   = "reservation.created"
	EventReservationCommitted = "reservation.committed"
	EventReservationReleased  = "reservation.released"
	EventHoldExpired          = "reservation.hold_expired"
	EventHoldBroken           = "reservation.hold_broken"
	EventDonationRecorded     = "donation.recorded"
	EventCollectionIncomplete = "donation.unit_missing"
	EventRequestStatusChanged = "request.status_changed"
)

// Event is a signal other systems may consume. Delivery to people is not our concern.
type Event struct {
	Type    string                 `json:"type"`
	Subject string                 `json:"subject"`
	Data    map[string]interface{} `json:"data,omitempty"`
	At      time.Time              `json:"at"`
}

// EventPublisher receives inventory events
type EventPublisher interface {
	Publish(ctx context.Context, e Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

// NotificationService logs every event and forwards it to a webhook when one is configured
type NotificationService struct {
	webhookURL string
	enabled    bool
	timeout    time.Duration
	logger     *zap.Logger
	wg         sync.WaitGroup
}

// NewNotificationService creates a new notification service
func NewNotificationService(webhookURL string, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		webhookURL: webhookURL,
		enabled:    webhookURL != "",
		timeout:    5 * time.Second,
		logger:     logger,
	}
}

// IsEnabled reports whether webhook forwarding is on
func (s *NotificationService) IsEnabled() bool {
	return s.enabled
}

func (s *NotificationService) Publish(_ context.Context, e Event) {
	s.logger.Info("event",
		zap.String("type", e.Type),
		zap.String("subject", e.Subject),
		zap.Any("data", e.Data),
		zap.Time("at", e.At),
	)

	if !s.enabled {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sendWebhook(e)
	}()
}

// Close waits for in-flight webhook posts
func (s *NotificationService) Close() {
	s.wg.Wait()
}

func (s *NotificationService) sendWebhook(e Event) {
	agent := fiber.Post(s.webhookURL).JSON(e).Timeout(s.timeout)
	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		s.logger.Warn("webhook delivery failed", zap.String("type", e.Type), zap.Errors("errors", errs))
		return
	}
	if code >= fiber.StatusBadRequest {
		s.logger.Warn("webhook rejected event", zap.String("type", e.Type), zap.Int("status", code))
	}
}
