package notify

import (
	"encoding/json"
	"fmt"

	"github.com/draftwise/coverletter-api/pkg/events"
	"github.com/draftwise/coverletter-api/pkg/logger"
)

// Consumer listens to lifecycle events and records them for operations. It is
// the audit trail for purchases: every order and every grant shows up here
// regardless of which request path produced it.
type Consumer struct {
	bus events.Subscriber
}

func NewConsumer(bus events.Subscriber) *Consumer {
	return &Consumer{bus: bus}
}

// Start registers the subscriptions. Queue groups keep processing single-shot
// when multiple instances run.
func (c *Consumer) Start() error {
	if err := c.bus.QueueSubscribe(events.OrderCreated, "notify", c.handleOrderCreated); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", events.OrderCreated, err)
	}
	if err := c.bus.QueueSubscribe(events.PaymentVerified, "notify", c.handlePaymentVerified); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", events.PaymentVerified, err)
	}
	if err := c.bus.QueueSubscribe(events.UserRegistered, "notify", c.handleUserRegistered); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", events.UserRegistered, err)
	}
	if err := c.bus.QueueSubscribe(events.LetterGenerated, "notify", c.handleLetterGenerated); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", events.LetterGenerated, err)
	}
	if err := c.bus.QueueSubscribe(events.NotifySend, "notify", c.handleNotifySend); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", events.NotifySend, err)
	}
	return nil
}

func (c *Consumer) handleOrderCreated(msg *events.Message) {
	var event events.OrderCreatedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.Error("Failed to decode order created event", "error", err)
		return
	}
	logger.Info("Order created",
		"order_id", event.OrderID,
		"user_id", event.UserID,
		"package_id", event.PackageID,
		"amount", event.Amount,
		"currency", event.Currency,
		"gateway", event.Gateway)
}

func (c *Consumer) handlePaymentVerified(msg *events.Message) {
	var event events.PaymentVerifiedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.Error("Failed to decode payment verified event", "error", err)
		return
	}
	logger.Info("Payment verified",
		"order_id", event.OrderID,
		"payment_id", event.PaymentID,
		"user_id", event.UserID,
		"credits_added", event.CreditsAdded,
		"gateway", event.Gateway)
}

func (c *Consumer) handleUserRegistered(msg *events.Message) {
	var event events.UserRegisteredEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.Error("Failed to decode user registered event", "error", err)
		return
	}
	logger.Info("User registered", "user_id", event.UserID, "email", event.Email)
}

func (c *Consumer) handleNotifySend(msg *events.Message) {
	var event events.NotificationEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.Error("Failed to decode notification event", "error", err)
		return
	}
	logger.Info("Notification requested",
		"type", event.Type,
		"recipient", event.Recipient,
		"subject", event.Subject)
}

func (c *Consumer) handleLetterGenerated(msg *events.Message) {
	var event events.LetterGeneratedEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.Error("Failed to decode letter generated event", "error", err)
		return
	}
	logger.Info("Letter generated",
		"letter_id", event.LetterID,
		"user_id", event.UserID,
		"guest_ip", event.GuestIP,
		"job_title", event.JobTitle)
}
