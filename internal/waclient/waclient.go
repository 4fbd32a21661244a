// Package waclient defines the capability contract for the external
// protocol client that speaks the WhatsApp wire protocol. The gateway
// never implements this itself; it consumes a Factory and reacts to
// the notification stream each client emits.
package waclient

import (
	"context"
	"time"
)

// NotificationKind enumerates the raw notifications a protocol client
// may emit. The session manager normalizes these into canonical event
// envelopes; anything outside this set is dropped by the dispatcher.
type NotificationKind string

const (
	NotifyQR            NotificationKind = "qr"
	NotifyReady         NotificationKind = "ready"
	NotifyAuthenticated NotificationKind = "authenticated"
	NotifyAuthFailure   NotificationKind = "auth_failure"
	NotifyDisconnected  NotificationKind = "disconnected"
	NotifyMessage       NotificationKind = "message"
	NotifyMessageCreate NotificationKind = "message_create"
	NotifyMessageAck    NotificationKind = "message_ack"
	NotifyMessageRevoke NotificationKind = "message_revoke"
	NotifyGroupJoin     NotificationKind = "group_join"
	NotifyGroupLeave    NotificationKind = "group_leave"
	NotifyGroupUpdate   NotificationKind = "group_update"
	NotifyCall          NotificationKind = "call"
)

// Notification is the tagged union carried on the stream returned by
// Initialize. Exactly the fields valid for Kind are populated.
type Notification struct {
	Kind      NotificationKind
	Timestamp time.Time

	// NotifyQR
	QR string

	// NotifyReady
	Account *AccountInfo

	// NotifyAuthFailure / NotifyDisconnected
	Reason string

	// NotifyMessage / NotifyMessageCreate / NotifyMessageRevoke
	Message *Message

	// NotifyMessageAck
	Ack *MessageAck

	// NotifyGroupJoin / NotifyGroupLeave / NotifyGroupUpdate
	Group *GroupEvent

	// NotifyCall
	Call *CallInfo
}

// AccountInfo identifies the authenticated WhatsApp account.
type AccountInfo struct {
	Number      string `json:"number"`
	DisplayName string `json:"display_name"`
	PictureURL  string `json:"picture_url"`
}

// Message is the normalized message record. Protocol clients convert
// their native representation before emitting; the gateway never sees
// wire-level message shapes.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Body      string    `json:"body"`
	Type      string    `json:"type"` // chat, image, video, audio, document, location, vcard
	Timestamp time.Time `json:"timestamp"`
	FromMe    bool      `json:"from_me"`
	HasMedia  bool      `json:"has_media"`
	Ack       int       `json:"ack"`
}

// MessageAck reports a delivery state change for a previously sent
// message.
type MessageAck struct {
	MessageID string `json:"message_id"`
	ChatJid   string `json:"chat_jid"`
	Ack       int    `json:"ack"` // 1 sent, 2 delivered, 3 read
}

// GroupEvent describes a group membership or metadata change.
type GroupEvent struct {
	ChatJid      string   `json:"chat_jid"`
	Subject      string   `json:"subject"`
	Actor        string   `json:"actor"`
	Participants []string `json:"participants"`
}

// CallInfo describes an incoming call notification.
type CallInfo struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	IsVideo bool   `json:"is_video"`
}

// ChatKind discriminates the two chat variants.
type ChatKind string

const (
	ChatDirect ChatKind = "direct"
	ChatGroup  ChatKind = "group"
)

// Chat is a conversation. Group holds the group-only fields and is set
// if and only if Kind == ChatGroup; callers must check the
// discriminant instead of assuming group fields exist.
type Chat struct {
	Jid           string     `json:"jid"`
	Name          string     `json:"name"`
	Kind          ChatKind   `json:"kind"`
	UnreadCount   int        `json:"unread_count"`
	LastMessageAt time.Time  `json:"last_message_at"`
	Group         *GroupInfo `json:"group,omitempty"`
}

// IsGroup reports whether the chat is the group variant.
func (c *Chat) IsGroup() bool {
	return c.Kind == ChatGroup
}

// GroupInfo carries the fields only group chats have.
type GroupInfo struct {
	Owner        string        `json:"owner"`
	Subject      string        `json:"subject"`
	Description  string        `json:"description"`
	Participants []Participant `json:"participants"`
}

type Participant struct {
	Jid     string `json:"jid"`
	IsAdmin bool   `json:"is_admin"`
}

// Contact is an address book entry.
type Contact struct {
	Jid        string `json:"jid"`
	Name       string `json:"name"`
	ShortName  string `json:"short_name"`
	Number     string `json:"number"`
	IsBusiness bool   `json:"is_business"`
}

// MediaSource describes outbound media, either by URL or inline bytes.
type MediaSource struct {
	URL      string `json:"url"`
	Data     []byte `json:"-"`
	MimeType string `json:"mime_type"`
	FileName string `json:"file_name"`
}

// Client is one instance's live protocol session. Initialize starts
// the session (resuming from whatever credential material lives under
// the client's credential directory) and returns the notification
// stream; the stream is closed when the client shuts down.
// Notifications for one client are emitted in order.
//
// All blocking methods honor ctx cancellation.
type Client interface {
	Initialize(ctx context.Context) (<-chan Notification, error)

	SendText(ctx context.Context, to string, text string) (*Message, error)
	SendMedia(ctx context.Context, to string, media MediaSource, caption string) (*Message, error)
	SendLocation(ctx context.Context, to string, lat, lon float64, label string) (*Message, error)
	SendContactCard(ctx context.Context, to string, contactJid string) (*Message, error)

	React(ctx context.Context, chatJid, messageID, reaction string) error
	RevokeMessage(ctx context.Context, chatJid, messageID string, forEveryone bool) error
	MarkChatRead(ctx context.Context, chatJid string) error

	ListChats(ctx context.Context) ([]Chat, error)
	GetChat(ctx context.Context, jid string) (*Chat, error)
	ListContacts(ctx context.Context) ([]Contact, error)
	GetContact(ctx context.Context, jid string) (*Contact, error)
	ProfilePicture(ctx context.Context, jid string) (string, error)

	CreateGroup(ctx context.Context, subject string, participants []string) (*Chat, error)
	AddParticipants(ctx context.Context, groupJid string, participants []string) error
	RemoveParticipants(ctx context.Context, groupJid string, participants []string) error
	LeaveGroup(ctx context.Context, groupJid string) error
	GroupInviteLink(ctx context.Context, groupJid string) (string, error)

	// Logout invalidates the remote session; Destroy only releases
	// local resources, the remote session stays linked.
	Logout(ctx context.Context) error
	Destroy(ctx context.Context) error
}

// Factory creates protocol clients bound to an instance's credential
// directory. The factory must not perform I/O beyond what is needed to
// construct the client; connecting happens in Initialize.
type Factory interface {
	NewClient(instanceID int64, credentialDir string) (Client, error)
}
