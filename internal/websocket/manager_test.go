package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/pubquiz-api/internal/service/sessionmanager"
	"github.com/yourusername/pubquiz-api/pkg/auth"
)

// fakeSnapshotSource отдает заранее подготовленные снапшоты по ролям
type fakeSnapshotSource struct {
	mu        sync.Mutex
	snapshots map[string]*sessionmanager.Snapshot
	err       error
	builds    int
}

func (f *fakeSnapshotSource) BuildSnapshot(sessionID uint, role string) (*sessionmanager.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds++
	if f.err != nil {
		return nil, f.err
	}
	snap, ok := f.snapshots[role]
	if !ok {
		return nil, errors.New("snapshot not prepared")
	}
	return snap, nil
}

func (f *fakeSnapshotSource) buildCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.builds
}

func newTestManager(t *testing.T, source *fakeSnapshotSource) (*Manager, *SessionHub) {
	t.Helper()
	hub := NewSessionHub(2)
	t.Cleanup(hub.Shutdown)
	return NewManager(hub, source, NoOpPubSub{}), hub
}

func decodeEvent(t *testing.T, raw []byte) Event {
	t.Helper()
	var event Event
	require.NoError(t, json.Unmarshal(raw, &event))
	return event
}

func TestManager_SnapshotOnRegister(t *testing.T) {
	source := &fakeSnapshotSource{snapshots: map[string]*sessionmanager.Snapshot{
		auth.RolePlayer: {SessionID: 7, Status: "in_progress", Version: 4},
	}}
	_, hub := newTestManager(t, source)

	player := NewClient(hub, nil, 7, auth.RolePlayer, 1)
	hub.Register(player)

	event := decodeEvent(t, receive(t, player))
	assert.Equal(t, SESSION_SNAPSHOT, event.Type)
	assert.Equal(t, int64(4), player.LastAckedVersion())
}

func TestManager_PushSkipsUpToDateClients(t *testing.T) {
	source := &fakeSnapshotSource{snapshots: map[string]*sessionmanager.Snapshot{
		auth.RolePlayer: {SessionID: 7, Status: "in_progress", Version: 4},
		auth.RoleHost:   {SessionID: 7, Status: "in_progress", Version: 4},
	}}
	manager, hub := newTestManager(t, source)

	fresh := NewClient(hub, nil, 7, auth.RolePlayer, 1)
	stale := NewClient(hub, nil, 7, auth.RolePlayer, 2)
	hub.Register(fresh)
	hub.Register(stale)

	// Снапшоты при регистрации
	receive(t, fresh)
	receive(t, stale)

	// Один клиент отстал на версию, другой уже видел четвертую
	stale.ResetVersion()
	stale.MarkVersion(3)
	fresh.MarkVersion(4)

	manager.pushSnapshots(7, 4)

	event := decodeEvent(t, receive(t, stale))
	assert.Equal(t, SESSION_SNAPSHOT, event.Type)
	assert.Equal(t, int64(4), stale.LastAckedVersion())
	assertNoMessage(t, fresh)
}

func TestManager_PushDoesNotBuildWithoutStaleClients(t *testing.T) {
	source := &fakeSnapshotSource{snapshots: map[string]*sessionmanager.Snapshot{
		auth.RolePlayer: {SessionID: 7, Version: 4},
	}}
	manager, hub := newTestManager(t, source)

	player := NewClient(hub, nil, 7, auth.RolePlayer, 1)
	hub.Register(player)
	receive(t, player)
	builds := source.buildCount()

	manager.pushSnapshots(7, 4)

	assert.Equal(t, builds, source.buildCount(), "снапшот не собирается без отставших клиентов")
	assertNoMessage(t, player)
}

func TestManager_PlayerGetsDegradedSnapshotOnFailure(t *testing.T) {
	source := &fakeSnapshotSource{err: errors.New("db down")}
	manager, hub := newTestManager(t, source)

	player := NewClient(hub, nil, 7, auth.RolePlayer, 1)
	host := NewClient(hub, nil, 7, auth.RoleHost, 0)
	hub.Register(player)
	hub.Register(host)

	// При регистрации игрок получает деградированный снапшот
	event := decodeEvent(t, receive(t, player))
	assert.Equal(t, SESSION_SNAPSHOT, event.Type)
	data, ok := event.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "waiting", data["status"])
	assert.NotContains(t, string(mustMarshal(t, event)), "db down")

	// Ведущий не получает ничего кроме записи в лог
	assertNoMessage(t, host)

	manager.pushSnapshots(7, 9)
	event = decodeEvent(t, receive(t, player))
	data = event.Data.(map[string]interface{})
	assert.Equal(t, "waiting", data["status"])
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestManager_HandleMessageDispatch(t *testing.T) {
	source := &fakeSnapshotSource{snapshots: map[string]*sessionmanager.Snapshot{}}
	manager, hub := newTestManager(t, source)

	var got json.RawMessage
	manager.RegisterHandler(ANSWER_SUBMIT, func(data json.RawMessage, client *Client) error {
		got = data
		return nil
	})

	client := NewClient(hub, nil, 7, auth.RolePlayer, 1)

	err := manager.HandleMessage([]byte(`{"type":"answer:submit","data":{"question_id":3,"answer":"Рейкьявик"}}`), client)
	require.NoError(t, err)
	assert.JSONEq(t, `{"question_id":3,"answer":"Рейкьявик"}`, string(got))
}

func TestManager_HandleMessageUnknownType(t *testing.T) {
	source := &fakeSnapshotSource{snapshots: map[string]*sessionmanager.Snapshot{}}
	manager, hub := newTestManager(t, source)

	client := NewClient(hub, nil, 7, auth.RoleHost, 0)

	err := manager.HandleMessage([]byte(`{"type":"no:such:thing"}`), client)
	require.NoError(t, err, "неизвестный тип не закрывает соединение")

	event := decodeEvent(t, receive(t, client))
	assert.Equal(t, SERVER_ERROR, event.Type)
}

func TestManager_HandlerErrorMaskedForPlayers(t *testing.T) {
	source := &fakeSnapshotSource{snapshots: map[string]*sessionmanager.Snapshot{}}
	manager, hub := newTestManager(t, source)

	manager.RegisterHandler(BUZZ_CLAIM, func(data json.RawMessage, client *Client) error {
		return errors.New("pq: deadlock detected")
	})

	player := NewClient(hub, nil, 7, auth.RolePlayer, 1)
	require.NoError(t, manager.HandleMessage([]byte(`{"type":"buzz:claim","data":{}}`), player))

	raw := receive(t, player)
	event := decodeEvent(t, raw)
	assert.Equal(t, SERVER_ERROR, event.Type)
	assert.NotContains(t, string(raw), "deadlock")

	host := NewClient(hub, nil, 7, auth.RoleHost, 0)
	manager.RegisterHandler(SNAPSHOT_REQUEST, func(data json.RawMessage, client *Client) error {
		return errors.New("pq: deadlock detected")
	})
	require.NoError(t, manager.HandleMessage([]byte(`{"type":"snapshot:request","data":{}}`), host))
	assert.Contains(t, string(receive(t, host)), "deadlock")
}

func TestManager_MalformedMessageClosesConnection(t *testing.T) {
	source := &fakeSnapshotSource{snapshots: map[string]*sessionmanager.Snapshot{}}
	manager, hub := newTestManager(t, source)

	client := NewClient(hub, nil, 7, auth.RoleHost, 0)
	err := manager.HandleMessage([]byte(`{not json`), client)
	assert.Error(t, err)
}
