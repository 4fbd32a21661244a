package wamanager

import (
	"context"
	"sync"
	"time"

	"github.com/talkincode/wagate/internal/waclient"
)

// Status is the session lifecycle state. Transitions happen only in
// the state machine table implemented by the dispatcher and the four
// lifecycle commands.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusAwaitingScan Status = "awaiting_scan"
	StatusConnected    Status = "connected"
)

// Session is one instance's live handle: the protocol client plus the
// mutable lifecycle fields. All mutable fields are guarded by mu;
// client and credentialDir are immutable after creation so blocking
// protocol calls never need the lock.
type Session struct {
	instanceID    int64
	client        waclient.Client
	credentialDir string

	mu         sync.RWMutex
	status     Status
	qr         string
	qrRendered string
	qrIssuedAt time.Time
	account    *waclient.AccountInfo
	lastError  string

	// dispatcher lifetime
	stream <-chan waclient.Notification
	cancel context.CancelFunc
	done   chan struct{}
}

// Snapshot is the read-only view served to status pollers. Reads never
// block writers beyond the brief copy.
type Snapshot struct {
	InstanceID     int64     `json:"instance_id,string"`
	Status         Status    `json:"status"`
	QR             string    `json:"qr,omitempty"`
	QRRendered     string    `json:"qr_rendered,omitempty"`
	QRIssuedAt     time.Time `json:"qr_issued_at,omitempty"`
	AccountNumber  string    `json:"account_number,omitempty"`
	AccountName    string    `json:"account_name,omitempty"`
	AccountPicture string    `json:"account_picture,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
}

func newSession(instanceID int64, client waclient.Client, credentialDir string) *Session {
	return &Session{
		instanceID:    instanceID,
		client:        client,
		credentialDir: credentialDir,
		status:        StatusDisconnected,
	}
}

func (s *Session) snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		InstanceID: s.instanceID,
		Status:     s.status,
		QR:         s.qr,
		QRRendered: s.qrRendered,
		QRIssuedAt: s.qrIssuedAt,
		LastError:  s.lastError,
	}
	if s.account != nil {
		snap.AccountNumber = s.account.Number
		snap.AccountName = s.account.DisplayName
		snap.AccountPicture = s.account.PictureURL
	}
	return snap
}

func (s *Session) currentStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// setStatus applies a transition. The qr fields are populated if and
// only if the session is awaiting a scan, so every transition away
// from AwaitingScan clears them.
func (s *Session) setStatus(st Status) {
	s.status = st
	if st != StatusAwaitingScan {
		s.qr = ""
		s.qrRendered = ""
		s.qrIssuedAt = time.Time{}
	}
}

func (s *Session) setQR(raw, rendered string) {
	s.status = StatusAwaitingScan
	s.qr = raw
	s.qrRendered = rendered
	s.qrIssuedAt = time.Now()
}
