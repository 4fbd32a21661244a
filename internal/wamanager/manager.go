// Package wamanager is the instance session manager: the registry of
// live protocol sessions, the per-session lifecycle state machine, the
// notification dispatcher and the command facade the API layer calls.
package wamanager

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/talkincode/wagate/internal/bus"
	"github.com/talkincode/wagate/internal/domain"
	"github.com/talkincode/wagate/internal/journal"
	"github.com/talkincode/wagate/internal/repository"
	"github.com/talkincode/wagate/internal/sessionstore"
	"github.com/talkincode/wagate/internal/waclient"
	"github.com/talkincode/wagate/pkg/common"
	"github.com/talkincode/wagate/pkg/metrics"
)

// Config holds the manager tunables. Zero values get sane defaults.
type Config struct {
	// TeardownTimeout bounds how long lifecycle commands wait for the
	// protocol client to release resources; cleanup proceeds on expiry.
	TeardownTimeout time.Duration
	// AutoReconnect triggers one delayed reconnect attempt after an
	// unsolicited disconnect notification. Off by default: recovery is
	// an explicit caller decision.
	AutoReconnect      bool
	AutoReconnectDelay time.Duration
}

func (c *Config) defaults() {
	if c.TeardownTimeout <= 0 {
		c.TeardownTimeout = 10 * time.Second
	}
	if c.AutoReconnectDelay <= 0 {
		c.AutoReconnectDelay = 15 * time.Second
	}
}

// Manager owns every live session of the process. Constructed once and
// passed explicitly to its callers; there is no package-global
// instance.
type Manager struct {
	cfg     Config
	factory waclient.Factory
	store   *sessionstore.Store
	repo    repository.InstanceRepository
	broker  *bus.Broker
	journal *journal.Journal // optional
	reg     *registry
}

func New(cfg Config, factory waclient.Factory, store *sessionstore.Store,
	repo repository.InstanceRepository, broker *bus.Broker, jnl *journal.Journal) *Manager {
	cfg.defaults()
	return &Manager{
		cfg:     cfg,
		factory: factory,
		store:   store,
		repo:    repo,
		broker:  broker,
		journal: jnl,
		reg:     newRegistry(),
	}
}

// ---------------------------------------------------------------------
// lifecycle commands

// Connect creates (or resumes) the instance's session and starts the
// protocol client. Calling it on a session that is already connecting
// or connected is a no-op returning the current snapshot.
func (m *Manager) Connect(ctx context.Context, id int64) (Snapshot, error) {
	if sess := m.reg.get(id); sess != nil {
		sess.mu.Lock()
		switch sess.status {
		case StatusConnected, StatusConnecting, StatusAwaitingScan:
			sess.mu.Unlock()
			return sess.snapshot(), nil
		}
		sess.setStatus(StatusConnecting)
		sess.lastError = ""
		sess.mu.Unlock()
		return m.startSession(ctx, sess)
	}

	if _, err := m.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrInstanceNotFound) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, errors.Wrap(err, "wamanager: instance lookup")
	}
	dir, err := m.store.EnsureDir(id)
	if err != nil {
		return Snapshot{}, err
	}
	client, err := m.factory.NewClient(id, dir)
	if err != nil {
		return Snapshot{}, deliveryErr("create client", err)
	}
	sess := newSession(id, client, dir)
	sess.status = StatusConnecting
	if err := m.reg.put(id, sess); err != nil {
		// lost the race to a concurrent connect; the winner's handle
		// is the live one
		if winner := m.reg.get(id); winner != nil {
			return winner.snapshot(), nil
		}
		return Snapshot{}, err
	}
	return m.startSession(ctx, sess)
}

// startSession runs Initialize outside any lock and hands the
// notification stream to a dedicated dispatcher goroutine.
func (m *Manager) startSession(ctx context.Context, sess *Session) (Snapshot, error) {
	m.persistStatus(sess.instanceID, domain.InstanceConnecting)
	m.stopDispatcher(sess)

	ch, err := sess.client.Initialize(ctx)
	if err != nil {
		sess.mu.Lock()
		sess.setStatus(StatusDisconnected)
		sess.lastError = err.Error()
		sess.mu.Unlock()
		m.persistStatus(sess.instanceID, domain.InstanceDisconnected)
		return sess.snapshot(), deliveryErr("initialize", err)
	}

	dctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	sess.mu.Lock()
	sess.stream = ch
	sess.cancel = cancel
	sess.done = done
	sess.mu.Unlock()
	go m.dispatch(dctx, sess, ch, done)

	zap.L().Info("wamanager: session started",
		zap.Int64("instance_id", sess.instanceID))
	return sess.snapshot(), nil
}

// Disconnect releases the protocol client's resources but keeps the
// handle registered so a later Connect resumes from the persisted
// credentials.
func (m *Manager) Disconnect(ctx context.Context, id int64) (Snapshot, *TeardownWarning, error) {
	sess := m.reg.get(id)
	if sess == nil {
		return Snapshot{}, nil, ErrNotFound
	}
	sess.mu.Lock()
	sess.setStatus(StatusDisconnected)
	sess.mu.Unlock()

	warn := m.release(sess, false)
	m.persistStatus(id, domain.InstanceDisconnected)
	return sess.snapshot(), warn, nil
}

// Logout invalidates the remote session, wipes the instance's
// credential material and removes the handle. A subsequent Connect
// behaves as first-time pairing.
func (m *Manager) Logout(ctx context.Context, id int64) (*TeardownWarning, error) {
	sess := m.reg.get(id)
	if sess == nil {
		return nil, ErrNotFound
	}
	sess.mu.Lock()
	sess.setStatus(StatusDisconnected)
	sess.account = nil
	sess.mu.Unlock()

	warn := m.release(sess, true)
	if err := m.store.RemoveAll(id); err != nil {
		warn = appendWarning(warn, id, "credential removal: "+err.Error())
		zap.L().Warn("wamanager: logout credential removal failed",
			zap.Int64("instance_id", id), zap.Error(err))
	}
	m.reg.remove(id)
	m.persistStatus(id, domain.InstanceDisconnected)
	if err := m.repo.ClearAccountIdentity(ctx, id); err != nil {
		zap.L().Warn("wamanager: clear account identity failed",
			zap.Int64("instance_id", id), zap.Error(err))
	}
	zap.L().Info("wamanager: instance logged out", zap.Int64("instance_id", id))
	return warn, nil
}

// Delete tears the session down and removes credential material and
// journal history. It is idempotent: deleting a never-registered id
// succeeds. Persisted instance metadata is the caller's concern.
func (m *Manager) Delete(ctx context.Context, id int64) (*TeardownWarning, error) {
	var warn *TeardownWarning
	if sess := m.reg.get(id); sess != nil {
		sess.mu.Lock()
		sess.setStatus(StatusDisconnected)
		sess.mu.Unlock()
		warn = m.release(sess, false)
		m.reg.remove(id)
	}
	if err := m.store.RemoveAll(id); err != nil {
		warn = appendWarning(warn, id, "credential removal: "+err.Error())
		zap.L().Warn("wamanager: delete credential removal failed",
			zap.Int64("instance_id", id), zap.Error(err))
	}
	if m.journal != nil {
		if err := m.journal.Drop(id); err != nil {
			zap.L().Warn("wamanager: delete journal drop failed",
				zap.Int64("instance_id", id), zap.Error(err))
		}
	}
	return warn, nil
}

// Status returns the live snapshot for a registered session.
func (m *Manager) Status(id int64) (Snapshot, error) {
	sess := m.reg.get(id)
	if sess == nil {
		return Snapshot{}, ErrNotFound
	}
	return sess.snapshot(), nil
}

// List returns the ids of every registered session.
func (m *Manager) List() []int64 {
	return m.reg.listIDs()
}

// ResumeConnected reconnects every instance whose persisted status was
// connected when the process last stopped. Used at boot when
// session.connect_on_boot is enabled.
func (m *Manager) ResumeConnected(ctx context.Context) {
	insts, err := m.repo.List(ctx)
	if err != nil {
		zap.L().Warn("wamanager: resume query failed", zap.Error(err))
		return
	}
	for _, inst := range insts {
		if inst.Status != domain.InstanceConnected {
			continue
		}
		if _, err := m.Connect(ctx, inst.ID); err != nil {
			zap.L().Warn("wamanager: resume connect failed",
				zap.Int64("instance_id", inst.ID), zap.Error(err))
		}
	}
}

// stopDispatcher cancels the session's previous dispatcher goroutine
// and waits for it to exit. Resuming a session re-initializes the
// protocol client, which drops the old notification stream; a
// dispatcher still attached to that stream would read the close as an
// unsolicited disconnect and wreck the fresh pairing.
func (m *Manager) stopDispatcher(sess *Session) {
	sess.mu.Lock()
	cancel, done := sess.cancel, sess.done
	sess.cancel, sess.done = nil, nil
	sess.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// release asks the protocol client to shut down, with a bounded wait.
// Failures are folded into a warning; local cleanup never depends on a
// clean remote shutdown.
func (m *Manager) release(sess *Session, logout bool) *TeardownWarning {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.TeardownTimeout)
	defer cancel()

	var details []string
	if logout {
		if err := sess.client.Logout(ctx); err != nil {
			details = append(details, "logout: "+err.Error())
		}
	}
	if err := sess.client.Destroy(ctx); err != nil {
		details = append(details, "destroy: "+err.Error())
	}

	sess.mu.Lock()
	if sess.cancel != nil {
		sess.cancel()
		sess.cancel = nil
	}
	sess.mu.Unlock()

	if len(details) == 0 {
		return nil
	}
	detail := strings.Join(details, "; ")
	zap.L().Warn("wamanager: teardown partial failure",
		zap.Int64("instance_id", sess.instanceID), zap.String("detail", detail))
	return &TeardownWarning{InstanceID: sess.instanceID, Detail: detail}
}

func appendWarning(w *TeardownWarning, id int64, detail string) *TeardownWarning {
	if w == nil {
		return &TeardownWarning{InstanceID: id, Detail: detail}
	}
	w.Detail += "; " + detail
	return w
}

// persistStatus mirrors the in-memory state to the repository. The
// in-memory state stays authoritative; persistence failures are logged
// and never roll a command back.
func (m *Manager) persistStatus(id int64, status string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.repo.UpdateStatus(ctx, id, status); err != nil {
		zap.L().Warn("wamanager: persistence unavailable",
			zap.Int64("instance_id", id),
			zap.String("status", status),
			zap.Error(err))
	}
}

// ---------------------------------------------------------------------
// send / query operations (require connected)

func (m *Manager) connected(id int64) (*Session, error) {
	sess := m.reg.get(id)
	if sess == nil {
		return nil, ErrNotFound
	}
	if sess.currentStatus() != StatusConnected {
		return nil, ErrNotConnected
	}
	return sess, nil
}

func (m *Manager) SendText(ctx context.Context, id int64, to, text string) (*waclient.Message, error) {
	sess, err := m.connected(id)
	if err != nil {
		return nil, err
	}
	msg, err := sess.client.SendText(ctx, NormalizeJid(to), text)
	if err != nil {
		return nil, deliveryErr("send text", err)
	}
	metrics.Counter(metrics.MessagesSent, 1)
	m.logMessage(id, msg)
	return msg, nil
}

func (m *Manager) SendMedia(ctx context.Context, id int64, to string, media waclient.MediaSource, caption string) (*waclient.Message, error) {
	sess, err := m.connected(id)
	if err != nil {
		return nil, err
	}
	msg, err := sess.client.SendMedia(ctx, NormalizeJid(to), media, caption)
	if err != nil {
		return nil, deliveryErr("send media", err)
	}
	metrics.Counter(metrics.MessagesSent, 1)
	m.logMessage(id, msg)
	return msg, nil
}

func (m *Manager) SendLocation(ctx context.Context, id int64, to string, lat, lon float64, label string) (*waclient.Message, error) {
	sess, err := m.connected(id)
	if err != nil {
		return nil, err
	}
	msg, err := sess.client.SendLocation(ctx, NormalizeJid(to), lat, lon, label)
	if err != nil {
		return nil, deliveryErr("send location", err)
	}
	metrics.Counter(metrics.MessagesSent, 1)
	m.logMessage(id, msg)
	return msg, nil
}

func (m *Manager) SendContactCard(ctx context.Context, id int64, to, contactJid string) (*waclient.Message, error) {
	sess, err := m.connected(id)
	if err != nil {
		return nil, err
	}
	msg, err := sess.client.SendContactCard(ctx, NormalizeJid(to), NormalizeJid(contactJid))
	if err != nil {
		return nil, deliveryErr("send contact card", err)
	}
	metrics.Counter(metrics.MessagesSent, 1)
	m.logMessage(id, msg)
	return msg, nil
}

func (m *Manager) React(ctx context.Context, id int64, chatJid, messageID, reaction string) error {
	sess, err := m.connected(id)
	if err != nil {
		return err
	}
	return deliveryErr("react", sess.client.React(ctx, NormalizeJid(chatJid), messageID, reaction))
}

func (m *Manager) DeleteMessage(ctx context.Context, id int64, chatJid, messageID string, forEveryone bool) error {
	sess, err := m.connected(id)
	if err != nil {
		return err
	}
	return deliveryErr("delete message", sess.client.RevokeMessage(ctx, NormalizeJid(chatJid), messageID, forEveryone))
}

func (m *Manager) MarkChatRead(ctx context.Context, id int64, chatJid string) error {
	sess, err := m.connected(id)
	if err != nil {
		return err
	}
	return deliveryErr("mark chat read", sess.client.MarkChatRead(ctx, NormalizeJid(chatJid)))
}

func (m *Manager) ListChats(ctx context.Context, id int64) ([]waclient.Chat, error) {
	sess, err := m.connected(id)
	if err != nil {
		return nil, err
	}
	chats, err := sess.client.ListChats(ctx)
	if err != nil {
		return nil, deliveryErr("list chats", err)
	}
	return chats, nil
}

func (m *Manager) GetChat(ctx context.Context, id int64, jid string) (*waclient.Chat, error) {
	sess, err := m.connected(id)
	if err != nil {
		return nil, err
	}
	chat, err := sess.client.GetChat(ctx, NormalizeJid(jid))
	if err != nil {
		return nil, deliveryErr("get chat", err)
	}
	return chat, nil
}

func (m *Manager) ListContacts(ctx context.Context, id int64) ([]waclient.Contact, error) {
	sess, err := m.connected(id)
	if err != nil {
		return nil, err
	}
	contacts, err := sess.client.ListContacts(ctx)
	if err != nil {
		return nil, deliveryErr("list contacts", err)
	}
	return contacts, nil
}

func (m *Manager) GetContact(ctx context.Context, id int64, jid string) (*waclient.Contact, error) {
	sess, err := m.connected(id)
	if err != nil {
		return nil, err
	}
	contact, err := sess.client.GetContact(ctx, NormalizeJid(jid))
	if err != nil {
		return nil, deliveryErr("get contact", err)
	}
	return contact, nil
}

func (m *Manager) ProfilePicture(ctx context.Context, id int64, jid string) (string, error) {
	sess, err := m.connected(id)
	if err != nil {
		return "", err
	}
	url, err := sess.client.ProfilePicture(ctx, NormalizeJid(jid))
	if err != nil {
		return "", deliveryErr("profile picture", err)
	}
	return url, nil
}

func (m *Manager) CreateGroup(ctx context.Context, id int64, subject string, participants []string) (*waclient.Chat, error) {
	sess, err := m.connected(id)
	if err != nil {
		return nil, err
	}
	normalized := make([]string, 0, len(participants))
	for _, p := range participants {
		normalized = append(normalized, NormalizeJid(p))
	}
	chat, err := sess.client.CreateGroup(ctx, subject, normalized)
	if err != nil {
		return nil, deliveryErr("create group", err)
	}
	return chat, nil
}

func (m *Manager) AddGroupParticipants(ctx context.Context, id int64, groupJid string, participants []string) error {
	sess, err := m.connected(id)
	if err != nil {
		return err
	}
	normalized := make([]string, 0, len(participants))
	for _, p := range participants {
		normalized = append(normalized, NormalizeJid(p))
	}
	return deliveryErr("add participants", sess.client.AddParticipants(ctx, NormalizeJid(groupJid), normalized))
}

func (m *Manager) RemoveGroupParticipants(ctx context.Context, id int64, groupJid string, participants []string) error {
	sess, err := m.connected(id)
	if err != nil {
		return err
	}
	normalized := make([]string, 0, len(participants))
	for _, p := range participants {
		normalized = append(normalized, NormalizeJid(p))
	}
	return deliveryErr("remove participants", sess.client.RemoveParticipants(ctx, NormalizeJid(groupJid), normalized))
}

func (m *Manager) LeaveGroup(ctx context.Context, id int64, groupJid string) error {
	sess, err := m.connected(id)
	if err != nil {
		return err
	}
	return deliveryErr("leave group", sess.client.LeaveGroup(ctx, NormalizeJid(groupJid)))
}

func (m *Manager) GroupInviteLink(ctx context.Context, id int64, groupJid string) (string, error) {
	sess, err := m.connected(id)
	if err != nil {
		return "", err
	}
	link, err := sess.client.GroupInviteLink(ctx, NormalizeJid(groupJid))
	if err != nil {
		return "", deliveryErr("group invite link", err)
	}
	return link, nil
}

// RecentEvents serves the instance's journaled envelopes for polling
// consumers, oldest first.
func (m *Manager) RecentEvents(id int64, limit int) ([]*Event, error) {
	if m.journal == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	raw, err := m.journal.Recent(id, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*Event, 0, len(raw))
	for _, data := range raw {
		ev, err := DecodeEvent(data)
		if err != nil {
			zap.L().Warn("wamanager: journal decode failed", zap.Error(err))
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// logMessage records a normalized message row, best effort.
func (m *Manager) logMessage(id int64, msg *waclient.Message) {
	if msg == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	row := &domain.WaMessageLog{
		ID:         common.UUIDint64(),
		InstanceID: id,
		MessageID:  msg.ID,
		FromJid:    msg.From,
		ToJid:      msg.To,
		Body:       msg.Body,
		Type:       msg.Type,
		FromMe:     msg.FromMe,
		Ack:        msg.Ack,
		Timestamp:  msg.Timestamp,
	}
	if err := m.repo.SaveMessage(ctx, row); err != nil {
		zap.L().Warn("wamanager: message log failed",
			zap.Int64("instance_id", id), zap.Error(err))
	}
}
