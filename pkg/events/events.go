package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/draftwise/coverletter-api/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	ID        string
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
			ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event subjects
const (
	// Credit order events
	OrderCreated    = "credits.order.created"
	PaymentVerified = "credits.payment.verified"

	// Letter events
	LetterGenerated = "letter.generated"

	// User events
	UserRegistered = "user.registered"
	EmailVerified  = "user.email.verified"

	// Notification events
	NotifySend = "notify.send"
)

// Event payloads
type OrderCreatedEvent struct {
	OrderID   string    `json:"order_id"`
	UserID    int64     `json:"user_id"`
	UserEmail string    `json:"user_email"`
	PackageID string    `json:"package_id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Gateway   string    `json:"gateway"`
	CreatedAt time.Time `json:"created_at"`
}

type PaymentVerifiedEvent struct {
	OrderID      string    `json:"order_id"`
	PaymentID    string    `json:"payment_id"`
	UserID       int64     `json:"user_id"`
	UserEmail    string    `json:"user_email"`
	PackageID    string    `json:"package_id"`
	CreditsAdded int       `json:"credits_added"`
	Gateway      string    `json:"gateway"`
	VerifiedAt   time.Time `json:"verified_at"`
}

type LetterGeneratedEvent struct {
	LetterID    int64     `json:"letter_id"`
	UserID      int64     `json:"user_id,omitempty"`
	GuestIP     string    `json:"guest_ip,omitempty"`
	JobTitle    string    `json:"job_title"`
	GeneratedAt time.Time `json:"generated_at"`
}

type UserRegisteredEvent struct {
	UserID       int64     `json:"user_id"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
}

type NotificationEvent struct {
	Type      string                 `json:"type"`
	Recipient string                 `json:"recipient"`
	Subject   string                 `json:"subject"`
	Data      map[string]interface{} `json:"data"`
}
