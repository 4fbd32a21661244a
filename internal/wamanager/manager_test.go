package wamanager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkincode/wagate/internal/bus"
	"github.com/talkincode/wagate/internal/domain"
	"github.com/talkincode/wagate/internal/repository"
	"github.com/talkincode/wagate/internal/sessionstore"
	"github.com/talkincode/wagate/internal/waclient"
)

// ---------------------------------------------------------------------
// fakes

type fakeClient struct {
	mu         sync.Mutex
	ch         chan waclient.Notification
	initCalls  int
	initErr    error
	sendErr    error
	logoutErr  error
	destroyErr error
	logouts    int
	destroys   int
	sentTo     []string
}

func (f *fakeClient) Initialize(ctx context.Context) (<-chan waclient.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	if f.initErr != nil {
		return nil, f.initErr
	}
	// a real client drops the previous stream when initialized again
	if f.ch != nil {
		close(f.ch)
	}
	f.ch = make(chan waclient.Notification, 32)
	return f.ch, nil
}

func (f *fakeClient) emit(n waclient.Notification) {
	f.mu.Lock()
	ch := f.ch
	f.mu.Unlock()
	ch <- n
}

func (f *fakeClient) SendText(ctx context.Context, to, text string) (*waclient.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sentTo = append(f.sentTo, to)
	return &waclient.Message{ID: "m1", To: to, Body: text, Type: "chat", FromMe: true, Timestamp: time.Now()}, nil
}

func (f *fakeClient) SendMedia(ctx context.Context, to string, media waclient.MediaSource, caption string) (*waclient.Message, error) {
	return f.SendText(ctx, to, caption)
}

func (f *fakeClient) SendLocation(ctx context.Context, to string, lat, lon float64, label string) (*waclient.Message, error) {
	return f.SendText(ctx, to, label)
}

func (f *fakeClient) SendContactCard(ctx context.Context, to, contactJid string) (*waclient.Message, error) {
	return f.SendText(ctx, to, contactJid)
}

func (f *fakeClient) React(ctx context.Context, chatJid, messageID, reaction string) error { return nil }
func (f *fakeClient) RevokeMessage(ctx context.Context, chatJid, messageID string, forEveryone bool) error {
	return nil
}
func (f *fakeClient) MarkChatRead(ctx context.Context, chatJid string) error { return nil }

func (f *fakeClient) ListChats(ctx context.Context) ([]waclient.Chat, error) {
	return []waclient.Chat{{Jid: "1@s.whatsapp.net", Kind: waclient.ChatDirect}}, nil
}
func (f *fakeClient) GetChat(ctx context.Context, jid string) (*waclient.Chat, error) {
	return &waclient.Chat{Jid: jid, Kind: waclient.ChatDirect}, nil
}
func (f *fakeClient) ListContacts(ctx context.Context) ([]waclient.Contact, error) { return nil, nil }
func (f *fakeClient) GetContact(ctx context.Context, jid string) (*waclient.Contact, error) {
	return &waclient.Contact{Jid: jid}, nil
}
func (f *fakeClient) ProfilePicture(ctx context.Context, jid string) (string, error) {
	return "https://example.com/p.jpg", nil
}

func (f *fakeClient) CreateGroup(ctx context.Context, subject string, participants []string) (*waclient.Chat, error) {
	return &waclient.Chat{Jid: "123-456@g.us", Kind: waclient.ChatGroup, Group: &waclient.GroupInfo{Subject: subject}}, nil
}
func (f *fakeClient) AddParticipants(ctx context.Context, groupJid string, participants []string) error {
	return nil
}
func (f *fakeClient) RemoveParticipants(ctx context.Context, groupJid string, participants []string) error {
	return nil
}
func (f *fakeClient) LeaveGroup(ctx context.Context, groupJid string) error { return nil }
func (f *fakeClient) GroupInviteLink(ctx context.Context, groupJid string) (string, error) {
	return "https://chat.whatsapp.com/abc", nil
}

func (f *fakeClient) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	return f.logoutErr
}

func (f *fakeClient) Destroy(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroys++
	if f.ch != nil {
		close(f.ch)
		f.ch = nil
	}
	return f.destroyErr
}

type fakeFactory struct {
	mu      sync.Mutex
	clients map[int64]*fakeClient
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{clients: map[int64]*fakeClient{}}
}

func (f *fakeFactory) NewClient(instanceID int64, credentialDir string) (waclient.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.clients[instanceID]; ok {
		return c, nil
	}
	c := &fakeClient{}
	f.clients[instanceID] = c
	return c, nil
}

func (f *fakeFactory) client(instanceID int64) *fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clients[instanceID]
}

type fakeRepo struct {
	mu        sync.Mutex
	instances map[int64]*domain.WaInstance
	statuses  map[int64][]string
	getErr    error
}

var _ repository.InstanceRepository = (*fakeRepo)(nil)

func newFakeRepo(ids ...int64) *fakeRepo {
	r := &fakeRepo{instances: map[int64]*domain.WaInstance{}, statuses: map[int64][]string{}}
	for _, id := range ids {
		r.instances[id] = &domain.WaInstance{ID: id, Status: domain.InstanceDisconnected}
	}
	return r
}

func (r *fakeRepo) GetByID(ctx context.Context, id int64) (*domain.WaInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	inst, ok := r.instances[id]
	if !ok {
		return nil, repository.ErrInstanceNotFound
	}
	cp := *inst
	return &cp, nil
}

func (r *fakeRepo) GetByToken(ctx context.Context, token string) (*domain.WaInstance, error) {
	return nil, repository.ErrInstanceNotFound
}

func (r *fakeRepo) List(ctx context.Context) ([]domain.WaInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.WaInstance
	for _, inst := range r.instances {
		out = append(out, *inst)
	}
	return out, nil
}

func (r *fakeRepo) Create(ctx context.Context, inst *domain.WaInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[inst.ID] = inst
	return nil
}

func (r *fakeRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, id)
	return nil
}

func (r *fakeRepo) UpdateStatus(ctx context.Context, id int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[id]; ok {
		inst.Status = status
	}
	r.statuses[id] = append(r.statuses[id], status)
	return nil
}

func (r *fakeRepo) UpdateAccountIdentity(ctx context.Context, id int64, number, name, picture string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[id]; ok {
		inst.AccountNumber = number
		inst.AccountName = name
		inst.AccountPicture = picture
	}
	return nil
}

func (r *fakeRepo) ClearAccountIdentity(ctx context.Context, id int64) error {
	return r.UpdateAccountIdentity(ctx, id, "", "", "")
}

func (r *fakeRepo) UpdateWebhook(ctx context.Context, id int64, url, events string) error {
	return nil
}

func (r *fakeRepo) SaveMessage(ctx context.Context, msg *domain.WaMessageLog) error {
	return nil
}

func (r *fakeRepo) persistedStatus(id int64) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[id]; ok {
		return inst.Status
	}
	return ""
}

// ---------------------------------------------------------------------
// helpers

func newTestManager(t *testing.T, ids ...int64) (*Manager, *fakeFactory, *fakeRepo) {
	t.Helper()
	factory := newFakeFactory()
	repo := newFakeRepo(ids...)
	store := sessionstore.New(t.TempDir())
	m := New(Config{TeardownTimeout: time.Second}, factory, store, repo, bus.New(), nil)
	return m, factory, repo
}

func waitStatus(t *testing.T, m *Manager, id int64, want Status) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		s, err := m.Status(id)
		if err != nil {
			return false
		}
		snap = s
		return s.Status == want
	}, 2*time.Second, 10*time.Millisecond, "status never reached %s", want)
	return snap
}

// ---------------------------------------------------------------------
// tests

func TestConnectUnknownInstance(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, err := m.Connect(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConnectLifecycle(t *testing.T) {
	m, factory, repo := newTestManager(t, 1)

	snap, err := m.Connect(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, StatusConnecting, snap.Status)
	assert.Empty(t, snap.QR)

	client := factory.client(1)
	require.NotNil(t, client)

	client.emit(waclient.Notification{Kind: waclient.NotifyQR, QR: "challenge-1"})
	snap = waitStatus(t, m, 1, StatusAwaitingScan)
	assert.Equal(t, "challenge-1", snap.QR)
	assert.False(t, snap.QRIssuedAt.IsZero())

	client.emit(waclient.Notification{Kind: waclient.NotifyReady,
		Account: &waclient.AccountInfo{Number: "5511999999999", DisplayName: "Ana"}})
	snap = waitStatus(t, m, 1, StatusConnected)
	assert.Empty(t, snap.QR, "challenge must be cleared outside awaiting_scan")
	assert.Empty(t, snap.QRRendered)
	assert.True(t, snap.QRIssuedAt.IsZero())
	assert.Equal(t, "5511999999999", snap.AccountNumber)

	require.Eventually(t, func() bool {
		return repo.persistedStatus(1) == domain.InstanceConnected
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConnectIdempotentWhileLive(t *testing.T) {
	m, factory, _ := newTestManager(t, 1)

	_, err := m.Connect(context.Background(), 1)
	require.NoError(t, err)
	client := factory.client(1)

	// connecting
	_, err = m.Connect(context.Background(), 1)
	require.NoError(t, err)

	client.emit(waclient.Notification{Kind: waclient.NotifyQR, QR: "q"})
	waitStatus(t, m, 1, StatusAwaitingScan)
	_, err = m.Connect(context.Background(), 1)
	require.NoError(t, err)

	client.emit(waclient.Notification{Kind: waclient.NotifyReady, Account: &waclient.AccountInfo{Number: "1"}})
	waitStatus(t, m, 1, StatusConnected)
	_, err = m.Connect(context.Background(), 1)
	require.NoError(t, err)

	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Equal(t, 1, client.initCalls, "live session must not be reinitialized")
}

func TestQRRefreshReplacesChallenge(t *testing.T) {
	m, factory, _ := newTestManager(t, 1)
	_, err := m.Connect(context.Background(), 1)
	require.NoError(t, err)
	client := factory.client(1)

	client.emit(waclient.Notification{Kind: waclient.NotifyQR, QR: "first"})
	waitStatus(t, m, 1, StatusAwaitingScan)
	client.emit(waclient.Notification{Kind: waclient.NotifyQR, QR: "second"})

	require.Eventually(t, func() bool {
		s, err := m.Status(1)
		return err == nil && s.QR == "second"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAuthFailureRetainsHandle(t *testing.T) {
	m, factory, _ := newTestManager(t, 1)
	_, err := m.Connect(context.Background(), 1)
	require.NoError(t, err)

	factory.client(1).emit(waclient.Notification{Kind: waclient.NotifyAuthFailure, Reason: "pairing rejected"})
	snap := waitStatus(t, m, 1, StatusDisconnected)
	assert.Equal(t, "pairing rejected", snap.LastError)

	// handle retained, a fresh connect restarts the client
	_, err = m.Connect(context.Background(), 1)
	require.NoError(t, err)
	client := factory.client(1)
	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Equal(t, 2, client.initCalls)
}

func TestDisconnectKeepsHandleAndCredentials(t *testing.T) {
	factory := newFakeFactory()
	repo := newFakeRepo(1)
	store := sessionstore.New(t.TempDir())
	m := New(Config{TeardownTimeout: time.Second}, factory, store, repo, bus.New(), nil)

	_, err := m.Connect(context.Background(), 1)
	require.NoError(t, err)

	snap, warn, err := m.Disconnect(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, warn)
	assert.Equal(t, StatusDisconnected, snap.Status)
	assert.True(t, store.Exists(1), "credentials must survive disconnect")

	// handle still registered
	_, err = m.Status(1)
	assert.NoError(t, err)

	client := factory.client(1)
	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Equal(t, 1, client.destroys)
	assert.Zero(t, client.logouts, "disconnect never invalidates the remote session")
}

func TestLogoutRemovesEverything(t *testing.T) {
	factory := newFakeFactory()
	repo := newFakeRepo(1)
	store := sessionstore.New(t.TempDir())
	m := New(Config{TeardownTimeout: time.Second}, factory, store, repo, bus.New(), nil)

	_, err := m.Connect(context.Background(), 1)
	require.NoError(t, err)

	warn, err := m.Logout(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, warn)
	assert.False(t, store.Exists(1), "logout must wipe credential material")

	_, err = m.Status(1)
	assert.ErrorIs(t, err, ErrNotFound)

	client := factory.client(1)
	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Equal(t, 1, client.logouts)
}

func TestLogoutProceedsDespiteTeardownFailure(t *testing.T) {
	factory := newFakeFactory()
	repo := newFakeRepo(1)
	store := sessionstore.New(t.TempDir())
	m := New(Config{TeardownTimeout: 50 * time.Millisecond}, factory, store, repo, bus.New(), nil)

	_, err := m.Connect(context.Background(), 1)
	require.NoError(t, err)
	client := factory.client(1)
	client.mu.Lock()
	client.logoutErr = errors.New("network down")
	client.mu.Unlock()

	warn, err := m.Logout(context.Background(), 1)
	require.NoError(t, err, "teardown failure is a warning, not a command failure")
	require.NotNil(t, warn)
	assert.Contains(t, warn.Detail, "network down")

	_, err = m.Status(1)
	assert.ErrorIs(t, err, ErrNotFound, "cleanup proceeds despite the warning")
	assert.False(t, store.Exists(1))
}

func TestDisconnectUnknown(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, _, err := m.Disconnect(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Logout(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteIdempotent(t *testing.T) {
	m, _, _ := newTestManager(t, 1)

	warn, err := m.Delete(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, warn)

	// repeat on an id that never had a session
	warn, err = m.Delete(context.Background(), 777)
	require.NoError(t, err)
	assert.Nil(t, warn)
}

func TestSendRequiresConnected(t *testing.T) {
	m, factory, _ := newTestManager(t, 1)

	_, err := m.SendText(context.Background(), 1, "5511999999999", "hi")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.Connect(context.Background(), 1)
	require.NoError(t, err)
	_, err = m.SendText(context.Background(), 1, "5511999999999", "hi")
	assert.ErrorIs(t, err, ErrNotConnected)

	factory.client(1).emit(waclient.Notification{Kind: waclient.NotifyReady, Account: &waclient.AccountInfo{Number: "1"}})
	waitStatus(t, m, 1, StatusConnected)

	msg, err := m.SendText(context.Background(), 1, "+55 11 99999-9999", "hi")
	require.NoError(t, err)
	assert.Equal(t, "5511999999999@s.whatsapp.net", msg.To, "address must be normalized before delivery")
}

func TestSendFailureWrapsCause(t *testing.T) {
	m, factory, _ := newTestManager(t, 1)
	_, err := m.Connect(context.Background(), 1)
	require.NoError(t, err)
	client := factory.client(1)
	client.emit(waclient.Notification{Kind: waclient.NotifyReady, Account: &waclient.AccountInfo{Number: "1"}})
	waitStatus(t, m, 1, StatusConnected)

	cause := errors.New("socket closed")
	client.mu.Lock()
	client.sendErr = cause
	client.mu.Unlock()

	_, err = m.SendText(context.Background(), 1, "123", "hi")
	var de *DeliveryError
	require.ErrorAs(t, err, &de)
	assert.ErrorIs(t, err, cause)
}

func TestEventOrderingPerInstance(t *testing.T) {
	factory := newFakeFactory()
	repo := newFakeRepo(1)
	store := sessionstore.New(t.TempDir())
	broker := bus.New()
	m := New(Config{TeardownTimeout: time.Second}, factory, store, repo, broker, nil)

	got := make(chan EventKind, 16)
	require.NoError(t, broker.Subscribe(bus.InstanceTopic(1), func(ev *Event) {
		got <- ev.Kind
	}))

	_, err := m.Connect(context.Background(), 1)
	require.NoError(t, err)
	client := factory.client(1)
	client.emit(waclient.Notification{Kind: waclient.NotifyQR, QR: "q"})
	client.emit(waclient.Notification{Kind: waclient.NotifyReady, Account: &waclient.AccountInfo{Number: "1"}})
	client.emit(waclient.Notification{Kind: waclient.NotifyMessage,
		Message: &waclient.Message{ID: "m1", Body: "hello"}})

	var kinds []EventKind
	require.Eventually(t, func() bool {
		for {
			select {
			case k := <-got:
				kinds = append(kinds, k)
			default:
				return len(kinds) >= 3
			}
		}
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []EventKind{EventQR, EventReady, EventMessage}, kinds[:3])
}

func TestUnsolicitedDisconnect(t *testing.T) {
	m, factory, repo := newTestManager(t, 1)
	_, err := m.Connect(context.Background(), 1)
	require.NoError(t, err)
	client := factory.client(1)
	client.emit(waclient.Notification{Kind: waclient.NotifyReady, Account: &waclient.AccountInfo{Number: "1"}})
	waitStatus(t, m, 1, StatusConnected)

	client.emit(waclient.Notification{Kind: waclient.NotifyDisconnected, Reason: "phone offline"})
	snap := waitStatus(t, m, 1, StatusDisconnected)
	assert.Equal(t, "phone offline", snap.LastError)

	// handle retained for a later connect
	_, err = m.Status(1)
	assert.NoError(t, err)
	require.Eventually(t, func() bool {
		return repo.persistedStatus(1) == domain.InstanceDisconnected
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReconnectAfterUnsolicitedDisconnect(t *testing.T) {
	m, factory, _ := newTestManager(t, 1)

	_, err := m.Connect(context.Background(), 1)
	require.NoError(t, err)
	client := factory.client(1)
	client.emit(waclient.Notification{Kind: waclient.NotifyReady, Account: &waclient.AccountInfo{Number: "1"}})
	waitStatus(t, m, 1, StatusConnected)

	client.emit(waclient.Notification{Kind: waclient.NotifyDisconnected, Reason: "connection lost"})
	waitStatus(t, m, 1, StatusDisconnected)

	// resuming re-initializes the client, dropping the old stream; the
	// fresh pairing challenge must not be lost to the old dispatcher
	_, err = m.Connect(context.Background(), 1)
	require.NoError(t, err)
	client.emit(waclient.Notification{Kind: waclient.NotifyQR, QR: "fresh-pairing"})

	snap := waitStatus(t, m, 1, StatusAwaitingScan)
	assert.Equal(t, "fresh-pairing", snap.QR)

	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Equal(t, 2, client.initCalls)
}

func TestConnectRepoFailureSurfaces(t *testing.T) {
	m, _, repo := newTestManager(t)
	repo.getErr = errors.New("connection refused")

	_, err := m.Connect(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound, "a persistence failure is not a missing instance")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestConcurrentIndependentSends(t *testing.T) {
	m, factory, _ := newTestManager(t, 1, 2)
	for _, id := range []int64{1, 2} {
		_, err := m.Connect(context.Background(), id)
		require.NoError(t, err)
		factory.client(id).emit(waclient.Notification{Kind: waclient.NotifyReady,
			Account: &waclient.AccountInfo{Number: "1"}})
		waitStatus(t, m, id, StatusConnected)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		for _, id := range []int64{1, 2} {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				_, err := m.SendText(context.Background(), id, "123456", "ping")
				errs <- err
			}(id)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}
