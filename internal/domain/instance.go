package domain

import "time"

// Instance session status values. The in-memory session manager is the
// authority for the live value; these rows keep the last persisted
// state for dashboards and restarts.
const (
	InstanceDisconnected = "disconnected"
	InstanceConnecting   = "connecting"
	InstanceAwaitingScan = "awaiting_scan"
	InstanceConnected    = "connected"
)

// WaInstance is one tenant's WhatsApp instance: API token, webhook
// configuration and the last known session state.
type WaInstance struct {
	ID          int64  `json:"id,string" gorm:"primaryKey"`
	Name        string `json:"name" gorm:"index"`
	Token       string `json:"token" gorm:"uniqueIndex"`
	Status      string `json:"status"`
	WebhookUrl  string `json:"webhook_url"`
	// Events is a comma separated list of subscribed event kinds,
	// empty means all.
	Events string `json:"events"`
	// Account identity, populated once the session reaches connected.
	AccountNumber  string    `json:"account_number"`
	AccountName    string    `json:"account_name"`
	AccountPicture string    `json:"account_picture"`
	Remark         string    `json:"remark"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (WaInstance) TableName() string {
	return "wa_instance"
}

// WaMessageLog records every normalized inbound message and successful
// outbound send, best effort.
type WaMessageLog struct {
	ID         int64     `json:"id,string" gorm:"primaryKey"`
	InstanceID int64     `json:"instance_id,string" gorm:"index"`
	MessageID  string    `json:"message_id" gorm:"index"`
	FromJid    string    `json:"from_jid"`
	ToJid      string    `json:"to_jid"`
	Body       string    `json:"body"`
	Type       string    `json:"type"`
	FromMe     bool      `json:"from_me"`
	Ack        int       `json:"ack"`
	Timestamp  time.Time `json:"timestamp"`
	CreatedAt  time.Time `json:"created_at"`
}

func (WaMessageLog) TableName() string {
	return "wa_message_log"
}
