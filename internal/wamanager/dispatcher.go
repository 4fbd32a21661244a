package wamanager

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/talkincode/wagate/internal/domain"
	"github.com/talkincode/wagate/internal/waclient"
	"github.com/talkincode/wagate/pkg/common"
	"github.com/talkincode/wagate/pkg/metrics"
)

// dispatch consumes one session's notification stream in emission
// order, applies state transitions, mirrors state to the repository
// and publishes canonical envelopes. One goroutine per session; no
// cross-instance ordering exists or is promised.
func (m *Manager) dispatch(ctx context.Context, sess *Session, ch <-chan waclient.Notification, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				m.streamClosed(sess, ch)
				return
			}
			m.handleNotification(sess, n)
		}
	}
}

// streamClosed treats an unannounced stream shutdown as an unsolicited
// disconnect so the state machine never strands a session in a live
// state with no client behind it. A stream that is no longer the
// session's current one belongs to a superseded dispatcher and must
// not transition anything.
func (m *Manager) streamClosed(sess *Session, ch <-chan waclient.Notification) {
	sess.mu.Lock()
	if sess.stream != ch || sess.status == StatusDisconnected {
		sess.mu.Unlock()
		return
	}
	sess.setStatus(StatusDisconnected)
	sess.lastError = "notification stream closed"
	sess.mu.Unlock()

	m.persistStatus(sess.instanceID, domain.InstanceDisconnected)
	m.emit(sess, EventDisconnected, map[string]interface{}{"reason": "stream closed"})
}

// handleNotification maps one raw notification through the state
// machine. A malformed notification is logged and dropped; it must
// never take the dispatcher down.
func (m *Manager) handleNotification(sess *Session, n waclient.Notification) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("wamanager: notification handler panic",
				zap.Int64("instance_id", sess.instanceID),
				zap.String("kind", string(n.Kind)),
				zap.Any("panic", r))
		}
	}()

	switch n.Kind {
	case waclient.NotifyQR:
		m.onQR(sess, n)
	case waclient.NotifyReady:
		m.onReady(sess, n)
	case waclient.NotifyAuthenticated:
		m.emit(sess, EventAuthenticated, nil)
	case waclient.NotifyAuthFailure:
		m.onAuthFailure(sess, n)
	case waclient.NotifyDisconnected:
		m.onDisconnected(sess, n)
	case waclient.NotifyMessage:
		if n.Message == nil {
			m.dropMalformed(sess, n)
			return
		}
		metrics.Counter(metrics.MessagesReceived, 1)
		m.emit(sess, EventMessage, n.Message)
		m.logMessage(sess.instanceID, n.Message)
	case waclient.NotifyMessageCreate:
		if n.Message == nil {
			m.dropMalformed(sess, n)
			return
		}
		m.emit(sess, EventMessageCreate, n.Message)
		m.logMessage(sess.instanceID, n.Message)
	case waclient.NotifyMessageAck:
		if n.Ack == nil {
			m.dropMalformed(sess, n)
			return
		}
		m.emit(sess, EventMessageAck, n.Ack)
	case waclient.NotifyMessageRevoke:
		if n.Message == nil {
			m.dropMalformed(sess, n)
			return
		}
		m.emit(sess, EventMessageRevoke, n.Message)
	case waclient.NotifyGroupJoin, waclient.NotifyGroupLeave, waclient.NotifyGroupUpdate:
		if n.Group == nil {
			m.dropMalformed(sess, n)
			return
		}
		kind := map[waclient.NotificationKind]EventKind{
			waclient.NotifyGroupJoin:   EventGroupJoin,
			waclient.NotifyGroupLeave:  EventGroupLeave,
			waclient.NotifyGroupUpdate: EventGroupUpdate,
		}[n.Kind]
		m.emit(sess, kind, n.Group)
	case waclient.NotifyCall:
		if n.Call == nil {
			m.dropMalformed(sess, n)
			return
		}
		m.emit(sess, EventCall, n.Call)
	default:
		zap.L().Warn("wamanager: unknown notification kind dropped",
			zap.Int64("instance_id", sess.instanceID),
			zap.String("kind", string(n.Kind)))
	}
}

func (m *Manager) dropMalformed(sess *Session, n waclient.Notification) {
	zap.L().Warn("wamanager: malformed notification dropped",
		zap.Int64("instance_id", sess.instanceID),
		zap.String("kind", string(n.Kind)))
}

// onQR: Connecting/AwaitingScan -> AwaitingScan with a fresh challenge.
// The persisted status stays "connecting"; awaiting_scan is an
// in-memory distinction surfaced through the snapshot.
func (m *Manager) onQR(sess *Session, n waclient.Notification) {
	if n.QR == "" {
		m.dropMalformed(sess, n)
		return
	}
	sess.mu.Lock()
	if sess.status != StatusConnecting && sess.status != StatusAwaitingScan {
		sess.mu.Unlock()
		zap.L().Debug("wamanager: qr notification outside pairing, dropped",
			zap.Int64("instance_id", sess.instanceID))
		return
	}
	rendered := renderQR(n.QR)
	sess.setQR(n.QR, rendered)
	sess.mu.Unlock()

	m.persistStatus(sess.instanceID, domain.InstanceConnecting)
	m.emit(sess, EventQR, map[string]interface{}{
		"qr":          n.QR,
		"qr_rendered": rendered,
	})
}

// onReady: Connecting/AwaitingScan -> Connected. Challenge fields are
// cleared unconditionally and the account identity becomes
// authoritative.
func (m *Manager) onReady(sess *Session, n waclient.Notification) {
	sess.mu.Lock()
	if sess.status == StatusConnected || sess.status == StatusDisconnected {
		sess.mu.Unlock()
		return
	}
	sess.setStatus(StatusConnected)
	sess.account = n.Account
	sess.lastError = ""
	sess.mu.Unlock()

	m.persistStatus(sess.instanceID, domain.InstanceConnected)
	if n.Account != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := m.repo.UpdateAccountIdentity(ctx, sess.instanceID,
			n.Account.Number, n.Account.DisplayName, n.Account.PictureURL); err != nil {
			zap.L().Warn("wamanager: account identity persist failed",
				zap.Int64("instance_id", sess.instanceID), zap.Error(err))
		}
		cancel()
	}
	m.emit(sess, EventReady, n.Account)
	zap.L().Info("wamanager: session connected",
		zap.Int64("instance_id", sess.instanceID))
}

// onAuthFailure: any state -> Disconnected; the handle is retained so
// the caller can retry pairing with a fresh connect.
func (m *Manager) onAuthFailure(sess *Session, n waclient.Notification) {
	sess.mu.Lock()
	sess.setStatus(StatusDisconnected)
	sess.lastError = n.Reason
	sess.mu.Unlock()

	m.persistStatus(sess.instanceID, domain.InstanceDisconnected)
	m.emit(sess, EventAuthFailure, map[string]interface{}{"reason": n.Reason})
	zap.L().Warn("wamanager: authentication failed",
		zap.Int64("instance_id", sess.instanceID), zap.String("reason", n.Reason))
}

// onDisconnected: live states -> Disconnected, handle retained. No
// reconnect is attempted unless configured; recovery is otherwise an
// explicit caller decision.
func (m *Manager) onDisconnected(sess *Session, n waclient.Notification) {
	sess.mu.Lock()
	if sess.status == StatusDisconnected {
		sess.mu.Unlock()
		return
	}
	sess.setStatus(StatusDisconnected)
	sess.lastError = n.Reason
	sess.mu.Unlock()

	m.persistStatus(sess.instanceID, domain.InstanceDisconnected)
	m.emit(sess, EventDisconnected, map[string]interface{}{"reason": n.Reason})
	zap.L().Info("wamanager: session disconnected",
		zap.Int64("instance_id", sess.instanceID), zap.String("reason", n.Reason))

	if m.cfg.AutoReconnect {
		go m.delayedReconnect(sess.instanceID)
	}
}

func (m *Manager) delayedReconnect(id int64) {
	time.Sleep(m.cfg.AutoReconnectDelay)
	sess := m.reg.get(id)
	if sess == nil || sess.currentStatus() != StatusDisconnected {
		return
	}
	if _, err := m.Connect(context.Background(), id); err != nil {
		zap.L().Warn("wamanager: auto reconnect failed",
			zap.Int64("instance_id", id), zap.Error(err))
	}
}

// emit journals and publishes one canonical envelope. Publication is
// asynchronous; a slow subscriber never backs up this dispatcher.
func (m *Manager) emit(sess *Session, kind EventKind, payload interface{}) {
	ev := &Event{
		ID:         common.UUIDint64(),
		InstanceID: sess.instanceID,
		Kind:       kind,
		Payload:    payload,
		Timestamp:  time.Now(),
	}
	if m.journal != nil {
		if data, err := ev.Encode(); err != nil {
			zap.L().Warn("wamanager: event encode failed", zap.Error(err))
		} else if err := m.journal.Append(ev.InstanceID, ev.ID, data); err != nil {
			zap.L().Warn("wamanager: journal append failed",
				zap.Int64("instance_id", ev.InstanceID), zap.Error(err))
		}
	}
	metrics.Counter(metrics.EventsDispatched, 1)
	if m.broker != nil {
		m.broker.Publish(ev.InstanceID, ev)
	}
}
