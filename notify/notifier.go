// Package notify delivers user notifications produced by review
// decisions and settlements. Delivery is fire-and-forget: failures
// are logged and never propagated to the caller.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/photon-storage/go-common/log"

	"github.com/photon-storage/bounty-hub/database/orm"
)

// Notifier records notifications and publishes a kafka event for
// downstream delivery (email, push).
type Notifier struct {
	db       *gorm.DB
	producer sarama.SyncProducer
	topic    string
}

// NewProducer connects a sarama sync producer with the delivery
// guarantees notification events need.
func NewProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	return sarama.NewSyncProducer(brokers, cfg)
}

// New returns a new notifier instance. producer may be nil, in which
// case only notification rows are written.
func New(db *gorm.DB, producer sarama.SyncProducer, topic string) *Notifier {
	return &Notifier{
		db:       db,
		producer: producer,
		topic:    topic,
	}
}

type event struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	ActionURL string    `json:"action_url"`
	CreatedAt time.Time `json:"created_at"`
}

// Enqueue records one notification for the user. Errors are logged
// and swallowed; a lost notification must not fail a settlement.
func (n *Notifier) Enqueue(
	ctx context.Context,
	userID string,
	title string,
	message string,
	actionURL string,
) {
	row := &orm.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      "SUBMISSION",
		ActionURL: actionURL,
	}
	if err := n.db.WithContext(ctx).Create(row).Error; err != nil {
		log.Error("create notification row failed",
			"user", userID,
			"error", err,
		)
	}

	if n.producer == nil {
		return
	}

	value, err := json.Marshal(&event{
		ID:        row.ID,
		UserID:    userID,
		Title:     title,
		Message:   message,
		ActionURL: actionURL,
		CreatedAt: time.Now(),
	})
	if err != nil {
		log.Error("marshal notification event failed", "error", err)
		return
	}

	if _, _, err := n.producer.SendMessage(&sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(userID),
		Value: sarama.ByteEncoder(value),
	}); err != nil {
		log.Error("publish notification event failed",
			"topic", n.topic,
			"error", err,
		)
	}
}
