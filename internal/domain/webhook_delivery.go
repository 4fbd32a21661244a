package domain

import "time"

// Webhook delivery outbox states.
const (
	DeliveryPending = "pending"
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
)

// WebhookDelivery is an outbox row for one event envelope headed to one
// instance's webhook URL. The delivery service drains pending and
// failed rows; retry bookkeeping lives here, not in the dispatcher.
type WebhookDelivery struct {
	ID         int64     `json:"id,string" gorm:"primaryKey"`
	InstanceID int64     `json:"instance_id,string" gorm:"index"`
	EventID    int64     `json:"event_id,string" gorm:"index"`
	Kind       string    `json:"kind"`
	Url        string    `json:"url"`
	Payload    string    `json:"payload"` // canonical envelope, json
	Status     string    `json:"status" gorm:"index"`
	Retries    int       `json:"retries"`
	LastError  string    `json:"last_error"`
	NextTryAt  time.Time `json:"next_try_at" gorm:"index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (WebhookDelivery) TableName() string {
	return "webhook_delivery"
}
